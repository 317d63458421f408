package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wonny/quantengine/internal/api/response"
	"github.com/wonny/quantengine/internal/domain/market"
	"github.com/wonny/quantengine/internal/domain/position"
	"github.com/wonny/quantengine/internal/domain/signals"
	"github.com/wonny/quantengine/internal/service/fusion"
)

// PositionService 포지션 라이프사이클 관리자
type PositionService interface {
	OpenPosition(ctx context.Context, d *signals.FusedDecision) (*position.Position, error)
	ClosePosition(ctx context.Context, id uuid.UUID, exitPrice decimal.Decimal) (*position.Position, error)
	Get(id uuid.UUID) (*position.Position, error)
	List(status ...position.Status) []*position.Position
	Performance() position.Performance
}

// PositionHandler handles position lifecycle endpoints
type PositionHandler struct {
	positions PositionService
	analyzer  Analyzer
}

// NewPositionHandler creates a new PositionHandler
func NewPositionHandler(positions PositionService, analyzer Analyzer) *PositionHandler {
	return &PositionHandler{positions: positions, analyzer: analyzer}
}

// OpenPositionRequest POST /api/positions body.
// decision 이 없으면 symbol 을 분석해서 나온 결정으로 진입
type OpenPositionRequest struct {
	Decision  *signals.FusedDecision `json:"decision,omitempty"`
	Symbol    string                 `json:"symbol,omitempty" validate:"required_without=Decision,max=32"`
	Timeframe market.Timeframe       `json:"timeframe,omitempty" validate:"omitempty,oneof=1m 15m 1h 4h 1d"`
	Bars      []market.Bar           `json:"bars,omitempty"`
}

// ClosePositionRequest POST /api/positions/{id}/close body (optional)
type ClosePositionRequest struct {
	ExitPrice *decimal.Decimal `json:"exit_price,omitempty"`
}

// Open enters a position from a decision
// POST /api/positions
func (h *PositionHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req OpenPositionRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	decision := req.Decision
	if decision == nil {
		series := market.PriceSeries{Symbol: req.Symbol, Timeframe: req.Timeframe, Bars: req.Bars}
		d, err := h.analyzer.Analyze(r.Context(), req.Symbol, series, fusion.Options{Timeframe: req.Timeframe})
		if err != nil {
			writeMarketError(w, r, err)
			return
		}
		decision = d
	}

	pos, err := h.positions.OpenPosition(r.Context(), decision)
	if err != nil {
		writePositionError(w, r, err)
		return
	}
	response.Created(w, r, pos, "position opened")
}

// List returns positions, optionally filtered by ?status=
// GET /api/positions
func (h *PositionHandler) List(w http.ResponseWriter, r *http.Request) {
	var statuses []position.Status
	for _, s := range r.URL.Query()["status"] {
		st := position.Status(s)
		switch st {
		case position.StatusOpen, position.StatusMonitoring, position.StatusClosed:
			statuses = append(statuses, st)
		default:
			response.BadRequest(w, r, "unknown status: "+s)
			return
		}
	}

	list := h.positions.List(statuses...)
	response.SuccessList(w, r, list, len(list))
}

// Get returns one position
// GET /api/positions/{id}
func (h *PositionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := positionID(w, r)
	if !ok {
		return
	}

	pos, err := h.positions.Get(id)
	if err != nil {
		writePositionError(w, r, err)
		return
	}
	response.Success(w, r, pos)
}

// Close exits a position at exit_price, or at the market price when omitted
// POST /api/positions/{id}/close
func (h *PositionHandler) Close(w http.ResponseWriter, r *http.Request) {
	id, ok := positionID(w, r)
	if !ok {
		return
	}

	var req ClosePositionRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	exit := decimal.Zero
	if req.ExitPrice != nil {
		if !req.ExitPrice.IsPositive() {
			response.BadRequest(w, r, "exit_price must be positive")
			return
		}
		exit = *req.ExitPrice
	}

	pos, err := h.positions.ClosePosition(r.Context(), id, exit)
	if err != nil {
		writePositionError(w, r, err)
		return
	}
	response.SuccessWithMessage(w, r, pos, "position closed")
}

// Performance returns aggregate trading statistics
// GET /api/performance
func (h *PositionHandler) Performance(w http.ResponseWriter, r *http.Request) {
	response.Success(w, r, h.positions.Performance())
}

func positionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, r, "invalid position id")
		return uuid.Nil, false
	}
	return id, true
}

func writePositionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, position.ErrPositionNotFound):
		response.NotFound(w, r, err.Error())
	case errors.Is(err, position.ErrTradingLimit):
		response.Conflict(w, r, err.Error())
	case errors.Is(err, position.ErrNotExecutable), errors.Is(err, position.ErrInvalidPrice):
		response.BusinessRuleViolation(w, r, err.Error())
	default:
		response.InternalError(w, r, err)
	}
}
