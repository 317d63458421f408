package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/wonny/quantengine/internal/api/response"
	"github.com/wonny/quantengine/internal/domain/market"
)

// MarketSource 시세 조회
type MarketSource interface {
	market.Provider
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// MarketHandler handles market data requests
type MarketHandler struct {
	source MarketSource
}

// NewMarketHandler creates a new MarketHandler
func NewMarketHandler(source MarketSource) *MarketHandler {
	return &MarketHandler{source: source}
}

// PriceResult 현재가 조회 결과
type PriceResult struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	Found  bool            `json:"found"`
}

// BatchPriceRequest POST /api/market/prices body
type BatchPriceRequest struct {
	Symbols []string `json:"symbols" validate:"required,min=1,max=100,dive,required,max=32"`
}

// GetPrice returns the latest price for a symbol
// GET /api/market/{symbol}/price
func (h *MarketHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	price, err := h.source.CurrentPrice(r.Context(), symbol)
	if err != nil {
		log.Debug().Err(err).Str("symbol", symbol).Msg("Price not found")
		writeMarketError(w, r, err)
		return
	}

	response.Success(w, r, PriceResult{Symbol: symbol, Price: price, Found: true})
}

// GetPrices returns prices for multiple symbols; missing symbols are reported with found=false
// POST /api/market/prices
func (h *MarketHandler) GetPrices(w http.ResponseWriter, r *http.Request) {
	var req BatchPriceRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	results := make([]PriceResult, 0, len(req.Symbols))
	for _, symbol := range req.Symbols {
		price, err := h.source.CurrentPrice(r.Context(), symbol)
		if err != nil {
			results = append(results, PriceResult{Symbol: symbol})
			continue
		}
		results = append(results, PriceResult{Symbol: symbol, Price: price, Found: true})
	}

	response.SuccessList(w, r, results, len(results))
}

// GetSeries returns OHLCV bars
// GET /api/market/{symbol}/series?timeframe=1d
func (h *MarketHandler) GetSeries(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	tf := market.Timeframe(r.URL.Query().Get("timeframe"))
	switch tf {
	case "":
		tf = market.Timeframe1d
	case market.Timeframe1m, market.Timeframe15m, market.Timeframe1h, market.Timeframe4h, market.Timeframe1d:
	default:
		response.BadRequest(w, r, "timeframe must be one of 1m, 15m, 1h, 4h, 1d")
		return
	}

	series, err := h.source.GetSeries(r.Context(), symbol, tf)
	if err != nil {
		writeMarketError(w, r, err)
		return
	}

	response.SuccessList(w, r, series, series.Len())
}

// GetIndicators returns the indicator snapshot
// GET /api/market/{symbol}/indicators
func (h *MarketHandler) GetIndicators(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	ind, err := h.source.GetIndicators(r.Context(), symbol)
	if err != nil {
		writeMarketError(w, r, err)
		return
	}

	response.Success(w, r, ind)
}
