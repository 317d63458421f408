package predictor

import (
	"context"
	"math"

	"github.com/wonny/quantengine/internal/domain/signals"
	"github.com/wonny/quantengine/internal/strategy/indicator"
)

// TrendPredictor 다중 구간 추세 + 회귀 적합도 기반 예측
type TrendPredictor struct{}

// NewTrendPredictor 새 추세 예측 모델 생성
func NewTrendPredictor() *TrendPredictor {
	return &TrendPredictor{}
}

// ID implements Predictor.
func (t *TrendPredictor) ID() signals.ModelID {
	return signals.ModelTrend
}

// Predict 점수 = (추세 + 패턴 + 모멘텀) / 3
// 신뢰도 = min(1, n/30 × 0.6 + R² × 0.4)
func (t *TrendPredictor) Predict(ctx context.Context, in Input) (signals.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return signals.Prediction{}, err
	}

	closes := in.Series.Closes()
	if len(closes) < 3 {
		return signals.Prediction{Model: t.ID(), Score: 0.5, Confidence: 0.1}, nil
	}

	// 단기 가중치 우선
	trend := simpleTrend(lastN(closes, 5))*0.5 + simpleTrend(lastN(closes, 10))*0.3 + simpleTrend(closes)*0.2

	pattern := 0.5
	if recent := simpleTrend(lastN(closes, 5)); recent > 0.6 {
		pattern = 0.7
	} else if recent < 0.4 {
		pattern = 0.3
	}

	momentum := 0.5
	var factors []float64
	if in.Indicators != nil && in.Indicators.RSI != nil {
		factors = append(factors, rsiMomentum(*in.Indicators.RSI))
	}
	if in.Indicators != nil && in.Indicators.MACD != nil {
		if *in.Indicators.MACD > 0 {
			factors = append(factors, 0.7)
		} else {
			factors = append(factors, 0.3)
		}
	}
	if len(factors) > 0 {
		momentum = indicator.Mean(factors)
	}

	reg := indicator.LinearRegression(closes)
	confidence := math.Min(1, float64(len(closes))/30*0.6+clamp01(reg.R2)*0.4)

	return signals.Prediction{
		Model:      t.ID(),
		Score:      clamp01((trend + pattern + momentum) / 3),
		Confidence: confidence,
		Details: map[string]float64{
			"trend":    trend,
			"pattern":  pattern,
			"momentum": momentum,
			"slope":    reg.Slope,
			"r2":       reg.R2,
		},
	}, nil
}

// simpleTrend 0.5 + (마지막/처음 - 1) × 5, [0,1] 범위
func simpleTrend(prices []float64) float64 {
	if len(prices) < 2 || prices[0] <= 0 {
		return 0.5
	}
	change := (prices[len(prices)-1] - prices[0]) / prices[0]
	return clamp01(0.5 + change*5)
}

func rsiMomentum(rsi float64) float64 {
	switch {
	case rsi < 30:
		return 0.8
	case rsi > 70:
		return 0.2
	case rsi > 50:
		return 0.6
	default:
		return 0.4
	}
}
