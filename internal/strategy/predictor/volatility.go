package predictor

import (
	"context"
	"math"

	"github.com/wonny/quantengine/internal/domain/signals"
	"github.com/wonny/quantengine/internal/strategy/indicator"
)

// dataRecency 데이터 최신성 가정치
const dataRecency = 0.8

// VolatilityPredictor 변동성 수준 예측
type VolatilityPredictor struct{}

// NewVolatilityPredictor 새 변동성 예측 모델 생성
func NewVolatilityPredictor() *VolatilityPredictor {
	return &VolatilityPredictor{}
}

// ID implements Predictor.
func (v *VolatilityPredictor) ID() signals.ModelID {
	return signals.ModelVolatility
}

// Predict 점수 = min(1, 수익률 표준편차 × 10)
// 신뢰도 = min(1, n/30 × 0.6 + 0.8 × 0.4)
func (v *VolatilityPredictor) Predict(ctx context.Context, in Input) (signals.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return signals.Prediction{}, err
	}

	closes := in.Series.Closes()
	confidence := math.Min(1, float64(len(closes))/30*0.6+dataRecency*0.4)
	if len(closes) < 2 {
		return signals.Prediction{Model: v.ID(), Score: 0.5, Confidence: confidence}, nil
	}

	vol := indicator.Volatility(closes)
	return signals.Prediction{
		Model:      v.ID(),
		Score:      math.Min(1, vol*10),
		Confidence: confidence,
		Details:    map[string]float64{"volatility": vol},
	}, nil
}
