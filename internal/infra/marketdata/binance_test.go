package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quantengine/internal/domain/market"
	"github.com/wonny/quantengine/internal/pkg/config"
)

const klinesBody = `[
	[1709251200000,"100.0","110.0","95.0","105.0","1200.5",1709254799999,"0",10,"0","0","0"],
	[1709254800000,"105.0","112.0","101.0","111.5","900.0",1709258399999,"0",12,"0","0","0"]
]`

func newTestProvider(t *testing.T, handler http.HandlerFunc) *BinanceProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewBinanceProvider(config.BinanceConfig{Limit: 2, RateLimit: 100, Burst: 10}, WithBaseURL(srv.URL))
}

func TestBinanceProvider_GetSeries(t *testing.T) {
	t.Run("converts klines", func(t *testing.T) {
		var query string
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/fapi/v1/klines", r.URL.Path)
			query = r.URL.RawQuery
			fmt.Fprint(w, klinesBody)
		})

		series, err := p.GetSeries(context.Background(), "BTCUSDT", market.Timeframe1h)
		require.NoError(t, err)

		assert.Contains(t, query, "symbol=BTCUSDT")
		assert.Contains(t, query, "interval=1h")
		assert.Contains(t, query, "limit=2")

		require.Equal(t, 2, series.Len())
		assert.Equal(t, "BTCUSDT", series.Symbol)
		assert.Equal(t, market.Timeframe1h, series.Timeframe)

		first := series.Bars[0]
		assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), first.Date)
		assert.Equal(t, 100.0, first.Open)
		assert.Equal(t, 110.0, first.High)
		assert.Equal(t, 95.0, first.Low)
		assert.Equal(t, 105.0, first.Close)
		assert.Equal(t, 1200.5, first.Volume)
		assert.Equal(t, 111.5, series.Last().Close)
	})

	t.Run("retries transient failures", func(t *testing.T) {
		var calls int32
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, `{"code":-1000,"msg":"unknown"}`)
				return
			}
			fmt.Fprint(w, klinesBody)
		})

		series, err := p.GetSeries(context.Background(), "BTCUSDT", market.Timeframe1h)
		require.NoError(t, err)
		assert.Equal(t, 2, series.Len())
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		var calls int32
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusBadGateway)
			fmt.Fprint(w, `{"code":-1000,"msg":"unknown"}`)
		})

		_, err := p.GetSeries(context.Background(), "BTCUSDT", market.Timeframe1h)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "after 3 attempts")
		assert.Equal(t, int32(maxRetries), atomic.LoadInt32(&calls))
	})

	t.Run("invalid symbol is not retried", func(t *testing.T) {
		var calls int32
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"code":-1121,"msg":"Invalid symbol."}`)
		})

		_, err := p.GetSeries(context.Background(), "NOPE", market.Timeframe1h)
		assert.ErrorIs(t, err, market.ErrSymbolNotFound)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("empty response", func(t *testing.T) {
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `[]`)
		})

		_, err := p.GetSeries(context.Background(), "BTCUSDT", market.Timeframe1h)
		assert.ErrorIs(t, err, market.ErrEmptySeries)
	})

	t.Run("unsupported timeframe", func(t *testing.T) {
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})

		_, err := p.GetSeries(context.Background(), "BTCUSDT", market.Timeframe("7m"))
		assert.Error(t, err)
	})
}

func TestBinanceProvider_CurrentPrice(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v2/ticker/price", r.URL.Path)
		fmt.Fprint(w, `[{"symbol":"BTCUSDT","price":"64123.45","time":1709251200000}]`)
	})

	price, err := p.CurrentPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "64123.45", price.String())

	_, err = p.CurrentPrice(context.Background(), "ETHUSDT")
	assert.ErrorIs(t, err, market.ErrSymbolNotFound)
}

func TestBinanceProvider_GetIndicators(t *testing.T) {
	var rows []string
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 40; i++ {
		c := 100 + float64(i)
		rows = append(rows, fmt.Sprintf(`[%d,"%.1f","%.1f","%.1f","%.1f","10",0,"0",1,"0","0","0"]`,
			start.Add(time.Duration(i)*time.Hour).UnixMilli(), c-0.5, c+1, c-1, c))
	}
	body := "[" + strings.Join(rows, ",") + "]"

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))
		fmt.Fprint(w, body)
	})

	ind, err := p.GetIndicators(context.Background(), "BTCUSDT")
	require.NoError(t, err)

	require.NotNil(t, ind.RSI)
	assert.Equal(t, 100.0, *ind.RSI)
	require.NotNil(t, ind.MACD)
	assert.Greater(t, *ind.MACD, 0.0)
	require.NotNil(t, ind.StochasticK)
	assert.Nil(t, ind.FearGreed)
	assert.Nil(t, ind.PutCallRatio)
}

func TestDeriveIndicators_ShortSeries(t *testing.T) {
	ind := DeriveIndicators(market.PriceSeries{Bars: []market.Bar{{Close: 1}}})
	assert.Empty(t, ind.Keys())

	bars := make([]market.Bar, 20)
	for i := range bars {
		bars[i] = market.Bar{High: 2, Low: 1, Close: 1.5}
	}
	ind = DeriveIndicators(market.PriceSeries{Bars: bars})
	assert.NotNil(t, ind.RSI)
	assert.NotNil(t, ind.StochasticK)
	assert.Nil(t, ind.MACD)
}
