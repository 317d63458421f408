package marketdata

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quantengine/internal/domain/market"
)

func TestStaticProvider(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	p := NewStaticProvider()
	p.SetSeries(market.PriceSeries{
		Symbol:    "AAPL",
		Timeframe: market.Timeframe1d,
		Bars:      []market.Bar{{Date: day, Close: 170}, {Date: day.AddDate(0, 0, 1), Close: 172.5}},
	})
	p.SetSeries(market.PriceSeries{
		Symbol:    "AAPL",
		Timeframe: market.Timeframe1h,
		Bars:      []market.Bar{{Date: day.Add(26 * time.Hour), Close: 173}},
	})

	t.Run("series by timeframe", func(t *testing.T) {
		s, err := p.GetSeries(ctx, "AAPL", market.Timeframe1d)
		require.NoError(t, err)
		assert.Equal(t, 2, s.Len())

		_, err = p.GetSeries(ctx, "AAPL", market.Timeframe4h)
		assert.ErrorIs(t, err, market.ErrSymbolNotFound)
		_, err = p.GetSeries(ctx, "MSFT", market.Timeframe1d)
		assert.ErrorIs(t, err, market.ErrSymbolNotFound)
	})

	t.Run("current price uses the most recent bar", func(t *testing.T) {
		price, err := p.CurrentPrice(ctx, "AAPL")
		require.NoError(t, err)
		assert.Equal(t, "173", price.String())

		p.SetPrice("AAPL", decimal.NewFromInt(180))
		price, err = p.CurrentPrice(ctx, "AAPL")
		require.NoError(t, err)
		assert.Equal(t, "180", price.String())

		_, err = p.CurrentPrice(ctx, "MSFT")
		assert.ErrorIs(t, err, market.ErrSymbolNotFound)
	})

	t.Run("indicators stored or derived", func(t *testing.T) {
		ind, err := p.GetIndicators(ctx, "AAPL")
		require.NoError(t, err)
		assert.Empty(t, ind.Keys())

		p.SetIndicators("AAPL", &market.Indicators{FearGreed: market.Float(20)})
		ind, err = p.GetIndicators(ctx, "AAPL")
		require.NoError(t, err)
		assert.Equal(t, 20.0, *ind.FearGreed)

		_, err = p.GetIndicators(ctx, "MSFT")
		assert.ErrorIs(t, err, market.ErrSymbolNotFound)
	})

	assert.ElementsMatch(t, []string{"AAPL"}, p.Symbols())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid snapshot", func(t *testing.T) {
		path := filepath.Join(dir, "market.json")
		body := `{
			"series": [
				{"symbol": "BTCUSDT", "bars": [
					{"date": "2024-03-01T00:00:00Z", "open": 1, "high": 2, "low": 0.5, "close": 1.5, "volume": 10}
				]}
			],
			"indicators": {"BTCUSDT": {"rsi": 28.5}}
		}`
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

		p, err := LoadFile(path)
		require.NoError(t, err)

		s, err := p.GetSeries(context.Background(), "BTCUSDT", market.Timeframe1d)
		require.NoError(t, err)
		assert.Equal(t, 1.5, s.Last().Close)

		ind, err := p.GetIndicators(context.Background(), "BTCUSDT")
		require.NoError(t, err)
		assert.Equal(t, 28.5, *ind.RSI)
	})

	t.Run("missing symbol", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"series":[{"bars":[]}]}`), 0o600))

		_, err := LoadFile(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(dir, "nope.json"))
		assert.Error(t, err)
	})
}
