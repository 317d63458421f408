package signals

import (
	"context"

	"github.com/wonny/quantengine/internal/domain/market"
	"github.com/wonny/quantengine/internal/domain/signals"
	"github.com/wonny/quantengine/internal/strategy/indicator"
)

// TrendBreakoutParams 추세 돌파 파라미터
type TrendBreakoutParams struct {
	TrendPeriod       int     `yaml:"trend_period" json:"trend_period" default:"20"`
	BreakoutThreshold float64 `yaml:"breakout_threshold" json:"breakout_threshold" default:"0.02"`
	VolumeSpike       float64 `yaml:"volume_spike" json:"volume_spike" default:"1.8"`
}

// DefaultTrendBreakoutParams 기본값
func DefaultTrendBreakoutParams() TrendBreakoutParams {
	return TrendBreakoutParams{
		TrendPeriod:       20,
		BreakoutThreshold: 0.02,
		VolumeSpike:       1.8,
	}
}

const (
	breakoutStrength   = 0.8
	breakoutConfidence = 0.75
)

// TrendBreakout 저항/지지 돌파 + 거래량 급증 전략
type TrendBreakout struct {
	params TrendBreakoutParams
}

// NewTrendBreakout 새 추세 돌파 전략 생성
func NewTrendBreakout(params TrendBreakoutParams) *TrendBreakout {
	return &TrendBreakout{params: params}
}

// ID implements Generator.
func (b *TrendBreakout) ID() signals.StrategyID {
	return signals.StrategyTrendBreakout
}

// Generate 돌파 신호 생성
// 저항/지지는 현재 봉을 제외한 직전 trendPeriod 봉의 고가/저가
func (b *TrendBreakout) Generate(ctx context.Context, series market.PriceSeries) (signals.Signal, error) {
	if err := ctx.Err(); err != nil {
		return signals.Signal{}, err
	}

	p := b.params
	n := series.Len()
	if p.TrendPeriod < 1 || n < p.TrendPeriod+1 || !indicator.Valid(series.Closes()) {
		return signals.Neutral(b.ID(), "insufficient data"), nil
	}

	prior := market.PriceSeries{Bars: series.Bars[n-1-p.TrendPeriod : n-1]}
	resistance := indicator.Highest(prior.Highs(), p.TrendPeriod)
	support := indicator.Lowest(prior.Lows(), p.TrendPeriod)
	avgVolume := indicator.Mean(prior.Volumes())

	last := series.Last()
	spike := avgVolume > 0 && last.Volume > avgVolume*p.VolumeSpike

	params := map[string]float64{
		"resistance":   resistance,
		"support":      support,
		"avg_volume":   avgVolume,
		"volume_ratio": 0,
	}
	if avgVolume > 0 {
		params["volume_ratio"] = last.Volume / avgVolume
	}

	switch {
	case last.Close > resistance*(1+p.BreakoutThreshold) && spike:
		return signals.Signal{
			StrategyID: b.ID(),
			Direction:  signals.DirectionLong,
			Strength:   breakoutStrength,
			Confidence: breakoutConfidence,
			Parameters: params,
			Reason:     "resistance breakout on volume spike",
		}, nil
	case last.Close < support*(1-p.BreakoutThreshold) && spike:
		return signals.Signal{
			StrategyID: b.ID(),
			Direction:  signals.DirectionShort,
			Strength:   breakoutStrength,
			Confidence: breakoutConfidence,
			Parameters: params,
			Reason:     "support breakdown on volume spike",
		}, nil
	}

	sig := signals.Neutral(b.ID(), "no breakout")
	sig.Parameters = params
	return sig, nil
}
