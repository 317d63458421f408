package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quantengine/internal/api/handlers"
	"github.com/wonny/quantengine/internal/api/middleware"
	"github.com/wonny/quantengine/internal/domain/market"
	"github.com/wonny/quantengine/internal/domain/position"
	"github.com/wonny/quantengine/internal/domain/risk"
	"github.com/wonny/quantengine/internal/domain/signals"
	"github.com/wonny/quantengine/internal/infra/marketdata"
	"github.com/wonny/quantengine/internal/service/fusion"
)

type stubAnalyzer struct {
	err      error
	lastOpts fusion.Options
	lastBars int
}

func (s *stubAnalyzer) Analyze(_ context.Context, symbol string, series market.PriceSeries, opts fusion.Options) (*signals.FusedDecision, error) {
	s.lastOpts = opts
	s.lastBars = series.Len()
	if s.err != nil {
		return nil, s.err
	}
	return &signals.FusedDecision{
		ID:         uuid.New(),
		Symbol:     symbol,
		Direction:  signals.DirectionLong,
		Strength:   0.8,
		Confidence: 0.8,
		Executable: true,
		LastPrice:  100,
	}, nil
}

func (s *stubAnalyzer) Forecast(_ context.Context, _ string, _ market.PriceSeries, _ *market.Indicators) *signals.Forecast {
	return &signals.Forecast{Score: 0.5, Confidence: 0.3, IsFallback: true}
}

type stubRisk struct {
	latest *risk.Report
}

func (s *stubRisk) AssessPortfolioRisk(_ context.Context, p risk.Portfolio, _ []float64) *risk.Report {
	return &risk.Report{OverallScore: float64(len(p.Assets)) / 10, Level: risk.LevelLow}
}

func (s *stubRisk) Latest() *risk.Report { return s.latest }

type stubPositions struct {
	openErr  error
	closeErr error
	opened   []*signals.FusedDecision
	byID     map[uuid.UUID]*position.Position
	closedAt decimal.Decimal
}

func (s *stubPositions) OpenPosition(_ context.Context, d *signals.FusedDecision) (*position.Position, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.opened = append(s.opened, d)
	p := &position.Position{ID: uuid.New(), Symbol: d.Symbol, Side: position.SideBuy, Quantity: 10, Status: position.StatusMonitoring}
	s.byID[p.ID] = p
	return p, nil
}

func (s *stubPositions) ClosePosition(_ context.Context, id uuid.UUID, exit decimal.Decimal) (*position.Position, error) {
	if s.closeErr != nil {
		return nil, s.closeErr
	}
	p, ok := s.byID[id]
	if !ok {
		return nil, position.ErrPositionNotFound
	}
	s.closedAt = exit
	p.Status = position.StatusClosed
	return p, nil
}

func (s *stubPositions) Get(id uuid.UUID) (*position.Position, error) {
	p, ok := s.byID[id]
	if !ok {
		return nil, position.ErrPositionNotFound
	}
	return p, nil
}

func (s *stubPositions) List(status ...position.Status) []*position.Position {
	var out []*position.Position
	for _, p := range s.byID {
		if len(status) == 0 || p.Status == status[0] {
			out = append(out, p)
		}
	}
	return out
}

func (s *stubPositions) Performance() position.Performance {
	return position.Performance{TotalTrades: 3, WinningTrades: 2, WinRate: 2.0 / 3}
}

type fixture struct {
	handler   http.Handler
	analyzer  *stubAnalyzer
	risk      *stubRisk
	positions *stubPositions
	market    *marketdata.StaticProvider
	health    *handlers.HealthHandler
}

func newFixture() *fixture {
	f := &fixture{
		analyzer:  &stubAnalyzer{},
		risk:      &stubRisk{},
		positions: &stubPositions{byID: make(map[uuid.UUID]*position.Position)},
		market:    marketdata.NewStaticProvider(),
		health:    handlers.NewHealthHandler("test"),
	}
	f.handler = NewRouter(&Config{
		Health:    f.health,
		Analysis:  handlers.NewAnalysisHandler(f.analyzer, f.risk, f.risk),
		Positions: handlers.NewPositionHandler(f.positions, f.analyzer),
		Market:    handlers.NewMarketHandler(f.market),
	})
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Meta  struct {
		RequestID string `json:"request_id"`
		Count     int    `json:"count"`
	} `json:"meta"`
	Error struct {
		Code   string `json:"code"`
		Fields []struct {
			Field string `json:"field"`
		} `json:"fields"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestHealth(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	rec = f.do(http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	f.health.AddCheck("database", func(context.Context) error { return errors.New("down") })
	rec = f.do(http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "database: down")
}

func TestMetricsEndpoint(t *testing.T) {
	rec := newFixture().do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRequestIDPropagation(t *testing.T) {
	f := newFixture()
	req := httptest.NewRequest(http.MethodGet, "/api/performance", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, "req-123", decode(t, rec).Meta.RequestID)
}

func TestAnalyze(t *testing.T) {
	t.Run("decision", func(t *testing.T) {
		f := newFixture()
		rec := f.do(http.MethodPost, "/api/analyze",
			`{"symbol":"AAPL","timeframe":"1d","bars":[{"close":1},{"close":2}],"skip_cache":true}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var d signals.FusedDecision
		require.NoError(t, json.Unmarshal(decode(t, rec).Data, &d))
		assert.Equal(t, "AAPL", d.Symbol)
		assert.Equal(t, market.Timeframe1d, f.analyzer.lastOpts.Timeframe)
		assert.True(t, f.analyzer.lastOpts.SkipCache)
		assert.Equal(t, 2, f.analyzer.lastBars)
	})

	t.Run("validation", func(t *testing.T) {
		f := newFixture()
		rec := f.do(http.MethodPost, "/api/analyze", `{"timeframe":"7m"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		env := decode(t, rec)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
		var fields []string
		for _, fe := range env.Error.Fields {
			fields = append(fields, fe.Field)
		}
		assert.ElementsMatch(t, []string{"symbol", "timeframe"}, fields)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := newFixture().do(http.MethodPost, "/api/analyze", `{"symbol":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_PARAMETER", decode(t, rec).Error.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		rec := newFixture().do(http.MethodPost, "/api/analyze", `{"symbol":"AAPL","foo":1}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	errCases := []struct {
		name string
		err  error
		want int
	}{
		{"unknown symbol", market.ErrSymbolNotFound, http.StatusNotFound},
		{"no data", signals.ErrDataInsufficient, http.StatusUnprocessableEntity},
		{"provider failure", errors.New("connection reset"), http.StatusBadGateway},
	}
	for _, tc := range errCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			f.analyzer.err = tc.err
			rec := f.do(http.MethodPost, "/api/analyze", `{"symbol":"AAPL"}`)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestForecastAndRisk(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPost, "/api/forecast", `{"symbol":"AAPL","indicators":{"rsi":25}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(decode(t, rec).Data), `"is_fallback":true`)

	rec = f.do(http.MethodPost, "/api/risk", `{"portfolio":{"assets":[{"symbol":"A","weight":0.5},{"symbol":"B","weight":0.5}],"total_value":1000}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var report risk.Report
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &report))
	assert.InDelta(t, 0.2, report.OverallScore, 1e-9)

	rec = f.do(http.MethodGet, "/api/risk/latest", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	f.risk.latest = &risk.Report{Level: risk.LevelHigh}
	rec = f.do(http.MethodGet, "/api/risk/latest", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPositions(t *testing.T) {
	f := newFixture()

	// open by analyzing a symbol
	rec := f.do(http.MethodPost, "/api/positions", `{"symbol":"AAPL"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var opened position.Position
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &opened))
	assert.Equal(t, "AAPL", opened.Symbol)
	require.Len(t, f.positions.opened, 1)

	// open from a posted decision
	rec = f.do(http.MethodPost, "/api/positions", `{"decision":{"symbol":"MSFT","direction":"LONG","executable":true}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "MSFT", f.positions.opened[1].Symbol)

	rec = f.do(http.MethodPost, "/api/positions", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/positions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode(t, rec).Meta.Count)

	rec = f.do(http.MethodGet, "/api/positions?status=BOGUS", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/positions/"+opened.ID.String(), "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/positions/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/positions/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// close without a body uses the market price
	rec = f.do(http.MethodPost, "/api/positions/"+opened.ID.String()+"/close", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, f.positions.closedAt.IsZero())

	rec = f.do(http.MethodPost, "/api/positions/"+opened.ID.String()+"/close", `{"exit_price":"101.5"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "101.5", f.positions.closedAt.String())

	rec = f.do(http.MethodPost, "/api/positions/"+opened.ID.String()+"/close", `{"exit_price":"-1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/performance", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var perf position.Performance
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &perf))
	assert.Equal(t, 3, perf.TotalTrades)
}

func TestPositionErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"trading limit", position.ErrTradingLimit, http.StatusConflict},
		{"not executable", position.ErrNotExecutable, http.StatusUnprocessableEntity},
		{"invalid price", position.ErrInvalidPrice, http.StatusUnprocessableEntity},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.positions.openErr = tt.err
			rec := f.do(http.MethodPost, "/api/positions", `{"symbol":"AAPL"}`)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestMarket(t *testing.T) {
	f := newFixture()
	f.market.SetSeries(market.PriceSeries{
		Symbol:    "AAPL",
		Timeframe: market.Timeframe1d,
		Bars:      []market.Bar{{Close: 100}, {Close: 101}, {Close: 102.5}},
	})

	t.Run("price", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/api/market/AAPL/price", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, string(decode(t, rec).Data), `"price":"102.5"`)

		rec = f.do(http.MethodGet, "/api/market/TSLA/price", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("batch prices", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/api/market/prices", `{"symbols":["AAPL","TSLA"]}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var got []handlers.PriceResult
		env := decode(t, rec)
		require.NoError(t, json.Unmarshal(env.Data, &got))
		require.Len(t, got, 2)
		assert.True(t, got[0].Found)
		assert.False(t, got[1].Found)
		assert.Equal(t, 2, env.Meta.Count)

		rec = f.do(http.MethodPost, "/api/market/prices", `{"symbols":[]}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("series", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/api/market/AAPL/series", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 3, decode(t, rec).Meta.Count)

		rec = f.do(http.MethodGet, "/api/market/AAPL/series?timeframe=2h", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("indicators", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/api/market/AAPL/indicators", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRecovery(t *testing.T) {
	f := newFixture()
	// OpenPosition writes to a nil map and panics
	f.positions.byID = nil

	rec := f.do(http.MethodPost, "/api/positions", `{"symbol":"AAPL"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_SERVER_ERROR")
}

func TestCORSPreflight(t *testing.T) {
	h := NewRouter(&Config{
		Analysis:       handlers.NewAnalysisHandler(&stubAnalyzer{}, &stubRisk{}, nil),
		AllowedOrigins: []string{"http://localhost:3099"},
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/analyze", nil)
	req.Header.Set("Origin", "http://localhost:3099")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3099", rec.Header().Get("Access-Control-Allow-Origin"))
}
