package signals

import (
	"context"
	"math"

	"github.com/wonny/quantengine/internal/domain/market"
	"github.com/wonny/quantengine/internal/domain/signals"
	"github.com/wonny/quantengine/internal/strategy/indicator"
)

// =============================================================================
// Pattern catalogue
// =============================================================================

const (
	PatternDoubleTop     = "double_top"
	PatternDoubleBottom  = "double_bottom"
	PatternHeadShoulders = "head_shoulders"
	PatternBullishFlag   = "bullish_flag"
)

// 패턴별 고정 신뢰도
var patternCatalogue = map[string]signals.Pattern{
	PatternDoubleTop:     {Name: PatternDoubleTop, Direction: signals.DirectionShort, Reliability: 0.75, Confidence: 0.70},
	PatternDoubleBottom:  {Name: PatternDoubleBottom, Direction: signals.DirectionLong, Reliability: 0.78, Confidence: 0.70},
	PatternHeadShoulders: {Name: PatternHeadShoulders, Direction: signals.DirectionShort, Reliability: 0.82, Confidence: 0.75},
	PatternBullishFlag:   {Name: PatternBullishFlag, Direction: signals.DirectionLong, Reliability: 0.70, Confidence: 0.65},
}

const (
	extremaWindow     = 2    // 극값 판정 좌우 봉 수
	twinTolerance     = 0.02 // 쌍봉/쌍바닥 가격 차 허용
	shoulderTolerance = 0.03 // 양 어깨 가격 차 허용
	headMargin        = 0.01 // 머리가 어깨보다 높아야 하는 최소 비율
	flagPoleRise      = 0.05
	flagMaxRange      = 0.02
	flagPoleBars      = 10
	flagBars          = 5
	minTwinBars       = 10
	minHeadShouldBars = 20
)

type extremum struct {
	index int
	price float64
}

// findPeaks returns indices strictly above the two bars on either side.
func findPeaks(prices []float64) []extremum {
	var out []extremum
	for i := extremaWindow; i < len(prices)-extremaWindow; i++ {
		peak := true
		for k := 1; k <= extremaWindow; k++ {
			if prices[i] <= prices[i-k] || prices[i] <= prices[i+k] {
				peak = false
				break
			}
		}
		if peak {
			out = append(out, extremum{index: i, price: prices[i]})
		}
	}
	return out
}

// findTroughs returns indices strictly below the two bars on either side.
func findTroughs(prices []float64) []extremum {
	inverted := make([]float64, len(prices))
	for i, p := range prices {
		inverted[i] = -p
	}
	troughs := findPeaks(inverted)
	for i := range troughs {
		troughs[i].price = -troughs[i].price
	}
	return troughs
}

// DetectDoubleTop 쌍봉: 마지막 두 고점 차이 2% 미만
func DetectDoubleTop(prices []float64) (signals.Pattern, bool) {
	if len(prices) < minTwinBars {
		return signals.Pattern{}, false
	}
	peaks := findPeaks(prices)
	if len(peaks) < 2 {
		return signals.Pattern{}, false
	}
	a, b := peaks[len(peaks)-2], peaks[len(peaks)-1]
	if math.Abs(b.price-a.price)/a.price < twinTolerance {
		return patternCatalogue[PatternDoubleTop], true
	}
	return signals.Pattern{}, false
}

// DetectDoubleBottom 쌍바닥: 마지막 두 저점 차이 2% 미만
func DetectDoubleBottom(prices []float64) (signals.Pattern, bool) {
	if len(prices) < minTwinBars {
		return signals.Pattern{}, false
	}
	troughs := findTroughs(prices)
	if len(troughs) < 2 {
		return signals.Pattern{}, false
	}
	a, b := troughs[len(troughs)-2], troughs[len(troughs)-1]
	if math.Abs(b.price-a.price)/a.price < twinTolerance {
		return patternCatalogue[PatternDoubleBottom], true
	}
	return signals.Pattern{}, false
}

// DetectHeadAndShoulders 머리어깨형: 마지막 세 고점 중 가운데가 가장 높고 양 어깨가 3% 이내
func DetectHeadAndShoulders(prices []float64) (signals.Pattern, bool) {
	if len(prices) < minHeadShouldBars {
		return signals.Pattern{}, false
	}
	peaks := findPeaks(prices)
	if len(peaks) < 3 {
		return signals.Pattern{}, false
	}
	left, head, right := peaks[len(peaks)-3], peaks[len(peaks)-2], peaks[len(peaks)-1]
	shoulder := math.Max(left.price, right.price)
	if head.price <= shoulder*(1+headMargin) {
		return signals.Pattern{}, false
	}
	if math.Abs(left.price-right.price)/left.price >= shoulderTolerance {
		return signals.Pattern{}, false
	}
	return patternCatalogue[PatternHeadShoulders], true
}

// DetectBullishFlag 상승 깃발: 5% 이상 상승(깃대) 후 2% 이내 박스권 횡보(깃발)
func DetectBullishFlag(prices []float64) (signals.Pattern, bool) {
	n := len(prices)
	if n < flagPoleBars+flagBars {
		return signals.Pattern{}, false
	}
	poleStart := prices[n-flagPoleBars-flagBars]
	poleEnd := prices[n-flagBars-1]
	if poleStart <= 0 || (poleEnd-poleStart)/poleStart < flagPoleRise {
		return signals.Pattern{}, false
	}

	flag := prices[n-flagBars:]
	hi := indicator.Highest(flag, flagBars)
	lo := indicator.Lowest(flag, flagBars)
	if hi <= 0 || (hi-lo)/hi >= flagMaxRange || lo <= poleStart {
		return signals.Pattern{}, false
	}
	return patternCatalogue[PatternBullishFlag], true
}

// =============================================================================
// Price action strategy
// =============================================================================

type detector func(prices []float64) (signals.Pattern, bool)

// PriceAction 패턴 감지기 조합 전략 (가장 신뢰도 높은 패턴 채택)
type PriceAction struct {
	detectors []detector
}

// NewPriceAction 새 가격 패턴 전략 생성
func NewPriceAction() *PriceAction {
	return &PriceAction{
		detectors: []detector{
			DetectHeadAndShoulders,
			DetectDoubleBottom,
			DetectDoubleTop,
			DetectBullishFlag,
		},
	}
}

// ID implements Generator.
func (a *PriceAction) ID() signals.StrategyID {
	return signals.StrategyPriceAction
}

// Generate 감지된 패턴 중 신뢰도 최대 패턴으로 신호 생성
func (a *PriceAction) Generate(ctx context.Context, series market.PriceSeries) (signals.Signal, error) {
	if err := ctx.Err(); err != nil {
		return signals.Signal{}, err
	}

	closes := series.Closes()
	if len(closes) < minTwinBars || !indicator.Valid(closes) {
		return signals.Neutral(a.ID(), "insufficient data"), nil
	}

	var (
		best     signals.Pattern
		found    bool
		detected int
	)
	for _, detect := range a.detectors {
		p, ok := detect(closes)
		if !ok {
			continue
		}
		detected++
		if !found || p.Reliability > best.Reliability {
			best, found = p, true
		}
	}

	if !found {
		return signals.Neutral(a.ID(), "no pattern"), nil
	}

	pattern := best
	return signals.Signal{
		StrategyID: a.ID(),
		Direction:  best.Direction,
		Strength:   best.Reliability,
		Confidence: best.Confidence,
		Pattern:    &pattern,
		Parameters: map[string]float64{"patterns_detected": float64(detected)},
		Reason:     best.Name,
	}, nil
}
