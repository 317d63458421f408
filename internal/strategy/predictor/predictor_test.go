package predictor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quantengine/internal/domain/market"
	"github.com/wonny/quantengine/internal/domain/signals"
)

func series(closes ...float64) market.PriceSeries {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		bars[i] = market.Bar{Date: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1000}
	}
	return market.PriceSeries{Symbol: "TEST", Bars: bars}
}

func flat(n int, v float64) market.PriceSeries {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = v
	}
	return series(closes...)
}

func TestPricePredictor(t *testing.T) {
	ctx := context.Background()
	p := NewPricePredictor()

	t.Run("flat series with full data is neutral and confident", func(t *testing.T) {
		in := Input{Series: flat(30, 100), Indicators: &market.Indicators{}}
		pred, err := p.Predict(ctx, in)
		require.NoError(t, err)
		assert.InDelta(t, 0.5, pred.Score, 1e-9)
		// 품질 1.0 + 일관성 0.8
		assert.InDelta(t, 0.9, pred.Confidence, 1e-9)
	})

	t.Run("oversold snapshot lifts score", func(t *testing.T) {
		in := Input{
			Series:     flat(30, 100),
			Indicators: &market.Indicators{RSI: market.Float(25), MACD: market.Float(1)},
		}
		pred, err := p.Predict(ctx, in)
		require.NoError(t, err)
		assert.InDelta(t, (0.5+0.5+0.8)/3, pred.Score, 1e-9)
	})

	t.Run("short series", func(t *testing.T) {
		pred, err := p.Predict(ctx, Input{Series: series(100)})
		require.NoError(t, err)
		assert.Equal(t, 0.5, pred.Score)
		assert.Equal(t, 0.0, pred.Confidence)
	})
}

func TestTrendPredictor(t *testing.T) {
	ctx := context.Background()
	tp := NewTrendPredictor()

	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	pred, err := tp.Predict(ctx, Input{Series: series(closes...)})
	require.NoError(t, err)
	assert.Greater(t, pred.Score, 0.5)
	// 완전 선형 -> R² = 1, n = 30 -> 신뢰도 1
	assert.InDelta(t, 1.0, pred.Confidence, 1e-9)
	assert.InDelta(t, 1.0, pred.Details["slope"], 1e-9)

	short, err := tp.Predict(ctx, Input{Series: series(1, 2)})
	require.NoError(t, err)
	assert.Equal(t, 0.5, short.Score)
}

func TestVolatilityPredictor(t *testing.T) {
	pred, err := NewVolatilityPredictor().Predict(context.Background(), Input{Series: flat(30, 100)})
	require.NoError(t, err)
	assert.Equal(t, 0.0, pred.Score)
	assert.InDelta(t, 0.92, pred.Confidence, 1e-9)
}

func TestSentimentPredictor(t *testing.T) {
	ctx := context.Background()
	s := NewSentimentPredictor()

	pred, err := s.Predict(ctx, Input{})
	require.NoError(t, err)
	assert.Equal(t, 0.5, pred.Score)
	assert.InDelta(t, 0.3, pred.Confidence, 1e-9)

	pred, err = s.Predict(ctx, Input{Indicators: &market.Indicators{
		FearGreed:    market.Float(80),
		PutCallRatio: market.Float(0.5),
	}})
	require.NoError(t, err)
	// (0.8 + 0.75) / 2
	assert.InDelta(t, 0.775, pred.Score, 1e-9)
	assert.InDelta(t, 0.9, pred.Confidence, 1e-9)
}

func TestFallback(t *testing.T) {
	fb := Fallback(signals.ModelTrend, errors.New("boom"))
	assert.Equal(t, 0.5, fb.Score)
	assert.Equal(t, 0.1, fb.Confidence)
	assert.True(t, fb.IsFallback)
	assert.Equal(t, "boom", fb.Error)
}

func TestPredictors_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, p := range DefaultPredictors() {
		_, err := p.Predict(ctx, Input{Series: flat(30, 100)})
		assert.ErrorIs(t, err, context.Canceled)
	}
}
