// Package predictor contains the deterministic heuristic scorers used by the
// prediction ensemble. Scores live in [0, 1] with 0.5 meaning "no view".
package predictor

import (
	"context"

	"github.com/wonny/quantengine/internal/domain/market"
	"github.com/wonny/quantengine/internal/domain/signals"
)

// Input 예측 입력 (지표 스냅샷은 부분 누락 허용)
type Input struct {
	Series     market.PriceSeries
	Indicators *market.Indicators
}

// Predictor 예측 모델
type Predictor interface {
	ID() signals.ModelID
	Predict(ctx context.Context, in Input) (signals.Prediction, error)
}

// DefaultPredictors returns price, trend, volatility and sentiment predictors.
func DefaultPredictors() []Predictor {
	return []Predictor{
		NewPricePredictor(),
		NewTrendPredictor(),
		NewVolatilityPredictor(),
		NewSentimentPredictor(),
	}
}

// Fallback 모델 실패 시 대체 예측 (score 0.5, confidence 0.1)
func Fallback(id signals.ModelID, err error) signals.Prediction {
	p := signals.Prediction{
		Model:      id,
		Score:      0.5,
		Confidence: 0.1,
		IsFallback: true,
	}
	if err != nil {
		p.Error = err.Error()
	}
	return p
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func value(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
