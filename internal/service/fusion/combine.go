package fusion

import (
	"fmt"
	"sort"

	"github.com/wonny/quantengine/internal/domain/signals"
)

// Fusion 가중 결합 결과
type Fusion struct {
	Direction  signals.Direction
	Strength   float64
	Confidence float64
	LongScore  float64
	ShortScore float64
	Supporting []signals.StrategyID
	Reason     string
}

// 결합 사유
const (
	reasonNoSignal    = "no signal: every strategy was neutral or failed"
	reasonConflicting = "conflicting signals: long and short scores tie"
)

// Fuse 전략 신호를 가중 결합한다.
//
// NEUTRAL 이 아니고 fallback 이 아닌 신호만 기여한다.
// score_i = strength × confidence × weight 를 LONG/SHORT 버킷별로 누적하고,
// strength = max(long, short) / Σ기여 가중치, confidence = 기여 신호 confidence 평균.
// 전략 ID 정렬 순서로 순회하므로 완료 순서와 무관하게 결과가 같다.
func Fuse(sigs map[signals.StrategyID]signals.Signal, weights map[signals.StrategyID]float64) Fusion {
	ids := make([]signals.StrategyID, 0, len(sigs))
	for id := range sigs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var f Fusion
	var totalWeight, confidenceSum float64

	for _, id := range ids {
		sig := sigs[id]
		if sig.IsFallback || sig.Direction == signals.DirectionNeutral {
			continue
		}
		w := weights[id]
		if w <= 0 {
			continue
		}

		score := sig.Strength * sig.Confidence * w
		switch sig.Direction {
		case signals.DirectionLong:
			f.LongScore += score
		case signals.DirectionShort:
			f.ShortScore += score
		default:
			continue
		}

		totalWeight += w
		confidenceSum += sig.Confidence
		f.Supporting = append(f.Supporting, id)
	}

	if len(f.Supporting) == 0 {
		f.Direction = signals.DirectionNeutral
		f.Reason = reasonNoSignal
		return f
	}

	f.Confidence = confidenceSum / float64(len(f.Supporting))

	switch {
	case f.LongScore > f.ShortScore:
		f.Direction = signals.DirectionLong
		f.Strength = f.LongScore / totalWeight
	case f.ShortScore > f.LongScore:
		f.Direction = signals.DirectionShort
		f.Strength = f.ShortScore / totalWeight
	default:
		f.Direction = signals.DirectionNeutral
		f.Reason = reasonConflicting
		return f
	}

	f.Reason = fmt.Sprintf("%d of %d strategies support %s", len(f.Supporting), len(sigs), f.Direction)
	return f
}
