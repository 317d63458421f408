package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/wonny/quantengine/internal/api/response"
	"github.com/wonny/quantengine/internal/domain/market"
	"github.com/wonny/quantengine/internal/domain/risk"
	"github.com/wonny/quantengine/internal/domain/signals"
	"github.com/wonny/quantengine/internal/service/fusion"
)

// Analyzer 신호 융합 / 예측 엔진
type Analyzer interface {
	Analyze(ctx context.Context, symbol string, series market.PriceSeries, opts fusion.Options) (*signals.FusedDecision, error)
	Forecast(ctx context.Context, symbol string, series market.PriceSeries, ind *market.Indicators) *signals.Forecast
}

// RiskAssessor 포트폴리오 리스크 평가
type RiskAssessor interface {
	AssessPortfolioRisk(ctx context.Context, p risk.Portfolio, marketValues []float64) *risk.Report
}

// RiskReporter 주기 점검의 최신 리포트
type RiskReporter interface {
	Latest() *risk.Report
}

// AnalysisHandler serves decisions, forecasts and risk reports
type AnalysisHandler struct {
	analyzer Analyzer
	risk     RiskAssessor
	reporter RiskReporter
}

// NewAnalysisHandler creates a new AnalysisHandler (reporter may be nil)
func NewAnalysisHandler(analyzer Analyzer, risk RiskAssessor, reporter RiskReporter) *AnalysisHandler {
	return &AnalysisHandler{analyzer: analyzer, risk: risk, reporter: reporter}
}

// AnalyzeRequest POST /api/analyze body
type AnalyzeRequest struct {
	Symbol        string           `json:"symbol" validate:"required,max=32"`
	Timeframe     market.Timeframe `json:"timeframe,omitempty" validate:"omitempty,oneof=1m 15m 1h 4h 1d"`
	Bars          []market.Bar     `json:"bars,omitempty"`
	IndicatorKeys []string         `json:"indicator_keys,omitempty"`
	Portfolio     *risk.Portfolio  `json:"portfolio,omitempty"`
	MarketSeries  []float64        `json:"market_series,omitempty"`
	SkipCache     bool             `json:"skip_cache,omitempty"`
}

func (req AnalyzeRequest) series() market.PriceSeries {
	return market.PriceSeries{Symbol: req.Symbol, Timeframe: req.Timeframe, Bars: req.Bars}
}

// ForecastRequest POST /api/forecast body
type ForecastRequest struct {
	Symbol     string             `json:"symbol" validate:"required,max=32"`
	Timeframe  market.Timeframe   `json:"timeframe,omitempty" validate:"omitempty,oneof=1m 15m 1h 4h 1d"`
	Bars       []market.Bar       `json:"bars,omitempty"`
	Indicators *market.Indicators `json:"indicators,omitempty"`
}

// RiskRequest POST /api/risk body
type RiskRequest struct {
	Portfolio    risk.Portfolio `json:"portfolio"`
	MarketValues []float64      `json:"market_values,omitempty"`
}

// Analyze runs every strategy and returns the fused decision
// POST /api/analyze
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	decision, err := h.analyzer.Analyze(r.Context(), req.Symbol, req.series(), fusion.Options{
		Timeframe:     req.Timeframe,
		IndicatorKeys: req.IndicatorKeys,
		Portfolio:     req.Portfolio,
		MarketSeries:  req.MarketSeries,
		SkipCache:     req.SkipCache,
	})
	if err != nil {
		writeMarketError(w, r, err)
		return
	}

	response.Success(w, r, decision)
}

// Forecast runs the prediction ensemble
// POST /api/forecast
func (h *AnalysisHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	var req ForecastRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	series := market.PriceSeries{Symbol: req.Symbol, Timeframe: req.Timeframe, Bars: req.Bars}
	response.Success(w, r, h.analyzer.Forecast(r.Context(), req.Symbol, series, req.Indicators))
}

// AssessRisk evaluates the posted portfolio
// POST /api/risk
func (h *AnalysisHandler) AssessRisk(w http.ResponseWriter, r *http.Request) {
	var req RiskRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	response.Success(w, r, h.risk.AssessPortfolioRisk(r.Context(), req.Portfolio, req.MarketValues))
}

// LatestRisk returns the last scheduled portfolio report
// GET /api/risk/latest
func (h *AnalysisHandler) LatestRisk(w http.ResponseWriter, r *http.Request) {
	if h.reporter == nil {
		response.Unavailable(w, r, "risk monitoring is not running")
		return
	}
	report := h.reporter.Latest()
	if report == nil {
		response.Unavailable(w, r, "no risk report yet")
		return
	}
	response.Success(w, r, report)
}

func writeMarketError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, market.ErrSymbolNotFound):
		response.NotFound(w, r, err.Error())
	case errors.Is(err, signals.ErrDataInsufficient), errors.Is(err, market.ErrEmptySeries):
		response.BusinessRuleViolation(w, r, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		response.Unavailable(w, r, err.Error())
	default:
		response.ExternalAPIError(w, r, "market data", err)
	}
}
