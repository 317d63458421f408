package signals

import (
	"context"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/wonny/quantengine/internal/domain/market"
	"github.com/wonny/quantengine/internal/domain/signals"
	"github.com/wonny/quantengine/internal/strategy/indicator"
)

// MeanReversionParams 평균 회귀 파라미터
type MeanReversionParams struct {
	ShortPeriod        int     `yaml:"short_period" json:"short_period" default:"10"`
	LongPeriod         int     `yaml:"long_period" json:"long_period" default:"30"`
	DeviationThreshold float64 `yaml:"deviation_threshold" json:"deviation_threshold" default:"2.0"`
	ConfirmationPeriod int     `yaml:"confirmation_period" json:"confirmation_period" default:"3"`
	VolumeFilter       bool    `yaml:"volume_filter" json:"volume_filter" default:"true"`
}

// DefaultMeanReversionParams 기본값
func DefaultMeanReversionParams() MeanReversionParams {
	return MeanReversionParams{
		ShortPeriod:        10,
		LongPeriod:         30,
		DeviationThreshold: 2.0,
		ConfirmationPeriod: 3,
		VolumeFilter:       true,
	}
}

// MeanReversion z-score 기반 평균 회귀 전략
type MeanReversion struct {
	params MeanReversionParams
}

// NewMeanReversion 새 평균 회귀 전략 생성
func NewMeanReversion(params MeanReversionParams) *MeanReversion {
	return &MeanReversion{params: params}
}

// ID implements Generator.
func (m *MeanReversion) ID() signals.StrategyID {
	return signals.StrategyMeanReversion
}

// Generate 평균 회귀 신호 생성
// z > threshold: 과매수 -> SHORT, z < -threshold: 과매도 -> LONG
func (m *MeanReversion) Generate(ctx context.Context, series market.PriceSeries) (signals.Signal, error) {
	if err := ctx.Err(); err != nil {
		return signals.Signal{}, err
	}

	p := m.params
	closes := series.Closes()
	if p.LongPeriod < 2 || p.ConfirmationPeriod < 1 {
		return signals.Neutral(m.ID(), "invalid parameters"), nil
	}
	// 확인 구간은 직전 longPeriod 이동평균이 필요
	if len(closes) < p.LongPeriod+p.ConfirmationPeriod || !indicator.Valid(closes) {
		return signals.Neutral(m.ID(), "insufficient data"), nil
	}

	window := closes[len(closes)-p.LongPeriod:]
	longMA := indicator.Mean(window)
	deviation := indicator.StdDev(window)
	if deviation == 0 {
		return signals.Neutral(m.ID(), "zero deviation"), nil
	}

	price := closes[len(closes)-1]
	z := (price - longMA) / deviation

	volumePassed := true
	if p.VolumeFilter {
		volumes := series.Volumes()
		volumePassed = volumes[len(volumes)-1] > indicator.SMA(volumes, p.ShortPeriod)
	}

	confirmations := 0
	for i := 1; i <= p.ConfirmationPeriod; i++ {
		px := closes[len(closes)-i]
		ma := indicator.SMA(closes[:len(closes)-i], p.LongPeriod)
		if math.Abs(px-ma) > p.DeviationThreshold*deviation {
			confirmations++
		}
	}

	params := map[string]float64{
		"z_score":       z,
		"long_ma":       longMA,
		"short_ma":      indicator.SMA(closes, p.ShortPeriod),
		"deviation":     deviation,
		"confirmations": float64(confirmations),
	}

	direction := signals.DirectionNeutral
	switch {
	case z > p.DeviationThreshold:
		direction = signals.DirectionShort
	case z < -p.DeviationThreshold:
		direction = signals.DirectionLong
	}

	if direction == signals.DirectionNeutral {
		sig := signals.Neutral(m.ID(), "within deviation band")
		sig.Parameters = params
		return sig, nil
	}

	confidence := float64(confirmations) / float64(p.ConfirmationPeriod) * 0.8
	if volumePassed {
		confidence += 0.2
	}

	log.Debug().
		Str("symbol", series.Symbol).
		Float64("z_score", z).
		Int("confirmations", confirmations).
		Bool("volume_passed", volumePassed).
		Msg("Mean reversion signal")

	return signals.Signal{
		StrategyID: m.ID(),
		Direction:  direction,
		Strength:   math.Min(math.Abs(z)/3, 1),
		Confidence: clamp01(confidence),
		Parameters: params,
	}, nil
}
