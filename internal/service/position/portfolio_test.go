package position

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quantengine/internal/domain/market"
	"github.com/wonny/quantengine/internal/domain/risk"
	"github.com/wonny/quantengine/internal/domain/signals"
)

type seriesProvider map[string][]float64

func (p seriesProvider) GetSeries(_ context.Context, symbol string, tf market.Timeframe) (market.PriceSeries, error) {
	closes, ok := p[symbol]
	if !ok {
		return market.PriceSeries{}, market.ErrSymbolNotFound
	}
	s := market.PriceSeries{Symbol: symbol, Timeframe: tf}
	for _, c := range closes {
		s.Bars = append(s.Bars, market.Bar{Close: c})
	}
	return s, nil
}

func (p seriesProvider) GetIndicators(context.Context, string) (*market.Indicators, error) {
	return &market.Indicators{}, nil
}

func TestPortfolioSource_Snapshot(t *testing.T) {
	provider := seriesProvider{
		"AAPL": {100, 110, 99},
		"MSFT": {300, 303, 306},
		"SPY":  {400, 404, 408},
	}

	t.Run("no open positions", func(t *testing.T) {
		f := newFixture(t)
		_, _, err := NewPortfolioSource(f.m, provider, "", "").Snapshot(context.Background())
		assert.ErrorIs(t, err, risk.ErrInsufficientData)
	})

	t.Run("weights by notional", func(t *testing.T) {
		f := newFixture(t)
		f.prices.Set("AAPL", "100")
		f.prices.Set("MSFT", "300")

		_, err := f.m.OpenPosition(context.Background(), decision("AAPL", signals.DirectionLong))
		require.NoError(t, err)
		_, err = f.m.OpenPosition(context.Background(), decision("MSFT", signals.DirectionLong))
		require.NoError(t, err)

		p, bench, err := NewPortfolioSource(f.m, provider, market.Timeframe1d, "SPY").Snapshot(context.Background())
		require.NoError(t, err)

		require.Len(t, p.Assets, 2)
		assert.Equal(t, "AAPL", p.Assets[0].Symbol)
		assert.Equal(t, "MSFT", p.Assets[1].Symbol)
		// 12800 × 100 vs 4266 × 300
		assert.InDelta(t, 1280000+1279800, p.TotalValue, 1e-6)
		assert.InDelta(t, 1280000.0/2559800, p.Assets[0].Weight, 1e-9)
		assert.InDelta(t, 1.0, p.Assets[0].Weight+p.Assets[1].Weight, 1e-9)

		require.Len(t, p.Assets[0].Returns, 2)
		assert.InDelta(t, 0.1, p.Assets[0].Returns[0], 1e-12)
		assert.InDelta(t, -0.1, p.Assets[0].Returns[1], 1e-12)

		assert.Equal(t, []float64{400, 404, 408}, bench)
	})

	t.Run("missing series", func(t *testing.T) {
		f := newFixture(t)
		f.prices.Set("TSLA", "100")
		_, err := f.m.OpenPosition(context.Background(), decision("TSLA", signals.DirectionLong))
		require.NoError(t, err)

		_, _, err = NewPortfolioSource(f.m, provider, "", "").Snapshot(context.Background())
		assert.ErrorIs(t, err, market.ErrSymbolNotFound)
	})
}
