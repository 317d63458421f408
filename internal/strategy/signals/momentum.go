package signals

import (
	"context"
	"math"

	"github.com/wonny/quantengine/internal/domain/market"
	"github.com/wonny/quantengine/internal/domain/signals"
	"github.com/wonny/quantengine/internal/strategy/indicator"
)

// MomentumParams 복합 모멘텀 파라미터
type MomentumParams struct {
	RSIPeriod        int `yaml:"rsi_period" json:"rsi_period" default:"14"`
	StochasticPeriod int `yaml:"stochastic_period" json:"stochastic_period" default:"14"`
	StochasticSmooth int `yaml:"stochastic_smooth" json:"stochastic_smooth" default:"3"`
	MACDFast         int `yaml:"macd_fast" json:"macd_fast" default:"12"`
	MACDSlow         int `yaml:"macd_slow" json:"macd_slow" default:"26"`
	MACDSignal       int `yaml:"macd_signal" json:"macd_signal" default:"9"`
}

// DefaultMomentumParams 기본값 (RSI 14, Stoch 14/3, MACD 12/26/9)
func DefaultMomentumParams() MomentumParams {
	return MomentumParams{
		RSIPeriod:        14,
		StochasticPeriod: 14,
		StochasticSmooth: 3,
		MACDFast:         12,
		MACDSlow:         26,
		MACDSignal:       9,
	}
}

// momentumThreshold 방향 결정 임계값 (±0.3)
const momentumThreshold = 0.3

// CompositeMomentum RSI + Stochastic + MACD 투표 전략
type CompositeMomentum struct {
	params MomentumParams
}

// NewCompositeMomentum 새 복합 모멘텀 전략 생성
func NewCompositeMomentum(params MomentumParams) *CompositeMomentum {
	return &CompositeMomentum{params: params}
}

// ID implements Generator.
func (c *CompositeMomentum) ID() signals.StrategyID {
	return signals.StrategyCompositeMomentum
}

// Generate 모멘텀 점수 = 지표별 투표 합 / 투표 수 ([-1, 1])
func (c *CompositeMomentum) Generate(ctx context.Context, series market.PriceSeries) (signals.Signal, error) {
	if err := ctx.Err(); err != nil {
		return signals.Signal{}, err
	}

	p := c.params
	closes := series.Closes()
	minLen := p.RSIPeriod + 1
	if p.StochasticPeriod+p.StochasticSmooth-1 > minLen {
		minLen = p.StochasticPeriod + p.StochasticSmooth - 1
	}
	if p.MACDSlow > minLen {
		minLen = p.MACDSlow
	}
	if len(closes) < minLen || !indicator.Valid(closes) {
		return signals.Neutral(c.ID(), "insufficient data"), nil
	}

	rsi := indicator.RSI(closes, p.RSIPeriod)
	stoch := indicator.Stochastic(series.Highs(), series.Lows(), closes, p.StochasticPeriod, p.StochasticSmooth)
	macd := indicator.MACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)

	votes := [3]int{}
	switch {
	case rsi < 30:
		votes[0] = 1
	case rsi > 70:
		votes[0] = -1
	}
	switch {
	case stoch.K < 20 && stoch.D < 20:
		votes[1] = 1
	case stoch.K > 80 && stoch.D > 80:
		votes[1] = -1
	}
	switch {
	case macd.Histogram > 0 && macd.MACD > macd.Signal:
		votes[2] = 1
	case macd.Histogram < 0 && macd.MACD < macd.Signal:
		votes[2] = -1
	}

	sum := votes[0] + votes[1] + votes[2]
	score := float64(sum) / float64(len(votes))

	params := map[string]float64{
		"rsi":            rsi,
		"stochastic_k":   stoch.K,
		"stochastic_d":   stoch.D,
		"macd":           macd.MACD,
		"macd_signal":    macd.Signal,
		"macd_histogram": macd.Histogram,
		"momentum_score": score,
	}

	direction := signals.DirectionNeutral
	sign := 0
	switch {
	case score > momentumThreshold:
		direction, sign = signals.DirectionLong, 1
	case score < -momentumThreshold:
		direction, sign = signals.DirectionShort, -1
	}

	if direction == signals.DirectionNeutral {
		sig := signals.Neutral(c.ID(), "no momentum consensus")
		sig.Parameters = params
		return sig, nil
	}

	// 신뢰도: 최종 방향에 동의한 지표 비율
	agree := 0
	for _, v := range votes {
		if v == sign {
			agree++
		}
	}

	return signals.Signal{
		StrategyID: c.ID(),
		Direction:  direction,
		Strength:   math.Abs(score),
		Confidence: float64(agree) / float64(len(votes)),
		Parameters: params,
	}, nil
}
