package position

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ====================
// Position (포지션 수명주기)
// ====================

// Side 매매 방향
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Status 포지션 상태 (OPEN -> MONITORING -> CLOSED, 역방향 불가)
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusMonitoring Status = "MONITORING"
	StatusClosed     Status = "CLOSED"
)

// CanTransitionTo reports whether the state machine allows s -> next.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusOpen:
		return next == StatusMonitoring
	case StatusMonitoring:
		return next == StatusClosed
	default:
		return false
	}
}

// ExitReason 청산 사유
type ExitReason string

const (
	ExitTakeProfit ExitReason = "TAKE_PROFIT"
	ExitStopLoss   ExitReason = "STOP_LOSS"
	ExitEmergency  ExitReason = "EMERGENCY"
	ExitManual     ExitReason = "MANUAL"
)

// Position 포지션 (Manager 단독 소유, quantity 불변)
type Position struct {
	ID            uuid.UUID        `json:"id"`
	DecisionID    uuid.UUID        `json:"decision_id"`
	Symbol        string           `json:"symbol"`
	Side          Side             `json:"side"`
	Quantity      int64            `json:"quantity"`
	EntryPrice    decimal.Decimal  `json:"entry_price"`
	StopLoss      decimal.Decimal  `json:"stop_loss"`
	TakeProfit    decimal.Decimal  `json:"take_profit"`
	StopLossPct   float64          `json:"stop_loss_pct"`
	TakeProfitPct float64          `json:"take_profit_pct"`
	Status        Status           `json:"status"`
	CurrentPrice  decimal.Decimal  `json:"current_price"`
	UnrealizedPL  decimal.Decimal  `json:"unrealized_pl"`
	RealizedPL    decimal.Decimal  `json:"realized_pl"`
	Commission    decimal.Decimal  `json:"commission"`
	ExitPrice     *decimal.Decimal `json:"exit_price,omitempty"`
	ExitReason    ExitReason       `json:"exit_reason,omitempty"`
	Strength      float64          `json:"strength"`
	Confidence    float64          `json:"confidence"`
	RiskScore     float64          `json:"risk_score"`
	OpenedAt      time.Time        `json:"opened_at"`
	ClosedAt      *time.Time       `json:"closed_at,omitempty"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Notional returns entry price × quantity.
func (p *Position) Notional() decimal.Decimal {
	return p.EntryPrice.Mul(decimal.NewFromInt(p.Quantity))
}

// Performance 누적 성과
type Performance struct {
	TotalTrades   int             `json:"total_trades"`
	WinningTrades int             `json:"winning_trades"`
	LosingTrades  int             `json:"losing_trades"`
	WinRate       float64         `json:"win_rate"`
	TotalProfit   decimal.Decimal `json:"total_profit"`
	DailyPL       decimal.Decimal `json:"daily_pl"`
	OpenPositions int             `json:"open_positions"`
}
