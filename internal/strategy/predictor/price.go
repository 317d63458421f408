package predictor

import (
	"context"

	"github.com/wonny/quantengine/internal/domain/signals"
	"github.com/wonny/quantengine/internal/strategy/indicator"
)

// modelConsistency 모델 일관성 가정치
const modelConsistency = 0.8

// PricePredictor 가격 모멘텀 예측 (추세 + 거래량 + RSI/MACD)
type PricePredictor struct{}

// NewPricePredictor 새 가격 예측 모델 생성
func NewPricePredictor() *PricePredictor {
	return &PricePredictor{}
}

// ID implements Predictor.
func (p *PricePredictor) ID() signals.ModelID {
	return signals.ModelPrice
}

// Predict 점수 = (최근 10봉 평균 변화율 + 거래량 확인 + 기술적 분석) / 3
func (p *PricePredictor) Predict(ctx context.Context, in Input) (signals.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return signals.Prediction{}, err
	}

	closes := in.Series.Closes()
	volumes := in.Series.Volumes()
	if len(closes) < 2 {
		return signals.Prediction{Model: p.ID(), Score: 0.5, Confidence: quality(in) / 2}, nil
	}

	trend := clamp01(0.5 + indicator.Mean(indicator.Returns(lastN(closes, 10)))*10)

	volume := 0.5
	if len(volumes) >= 2 && volumes[len(volumes)-1] > indicator.Mean(volumes)*1.2 {
		volume = 0.7
	}

	rsi := indicator.RSI(closes, 14)
	macd := indicator.MACD(closes, 12, 26, 9).MACD
	if in.Indicators != nil {
		rsi = value(in.Indicators.RSI, rsi)
		macd = value(in.Indicators.MACD, macd)
	}
	technical := 0.5
	switch {
	case rsi < 30:
		technical += 0.2
	case rsi > 70:
		technical -= 0.2
	}
	switch {
	case macd > 0:
		technical += 0.1
	case macd < 0:
		technical -= 0.1
	}
	technical = clamp01(technical)

	return signals.Prediction{
		Model:      p.ID(),
		Score:      clamp01((trend + volume + technical) / 3),
		Confidence: (quality(in) + modelConsistency) / 2,
		Details: map[string]float64{
			"trend":     trend,
			"volume":    volume,
			"technical": technical,
			"rsi":       rsi,
			"macd":      macd,
		},
	}, nil
}

// quality 데이터 품질: 가격 20개 이상 0.3, 거래량 20개 이상 0.3, 지표 스냅샷 0.4
func quality(in Input) float64 {
	q := 0.0
	if in.Series.Len() >= 20 {
		q += 0.3
		volumes := 0
		for _, b := range in.Series.Bars {
			if b.Volume > 0 {
				volumes++
			}
		}
		if volumes >= 20 {
			q += 0.3
		}
	}
	if in.Indicators != nil {
		q += 0.4
	}
	return q
}

func lastN(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}
