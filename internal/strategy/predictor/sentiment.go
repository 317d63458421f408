package predictor

import (
	"context"
	"math"

	"github.com/wonny/quantengine/internal/domain/signals"
)

// SentimentPredictor 공포탐욕지수 / put-call 비율 기반 심리 예측
type SentimentPredictor struct{}

// NewSentimentPredictor 새 심리 예측 모델 생성
func NewSentimentPredictor() *SentimentPredictor {
	return &SentimentPredictor{}
}

// ID implements Predictor.
func (s *SentimentPredictor) ID() signals.ModelID {
	return signals.ModelSentiment
}

// Predict 공포탐욕지수/100 과 (1 - min(1, putCall/2)) 의 평균
// 신뢰도 = 0.3 + 입력 요인당 0.3
func (s *SentimentPredictor) Predict(ctx context.Context, in Input) (signals.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return signals.Prediction{}, err
	}

	score := 0.5
	confidence := 0.3
	details := map[string]float64{}

	if in.Indicators != nil {
		if fg := in.Indicators.FearGreed; fg != nil {
			score = clamp01(*fg / 100)
			confidence += 0.3
			details["fear_greed"] = *fg
		}
		if pc := in.Indicators.PutCallRatio; pc != nil && *pc >= 0 {
			// put/call 이 높을수록 공포
			putCallScore := 1 - math.Min(1, *pc/2)
			score = (score + putCallScore) / 2
			confidence += 0.3
			details["put_call_ratio"] = *pc
		}
	}

	return signals.Prediction{
		Model:      s.ID(),
		Score:      score,
		Confidence: math.Min(1, confidence),
		Details:    details,
	}, nil
}
