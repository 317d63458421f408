package signals

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wonny/quantengine/internal/domain/risk"
)

// ====================
// Signal (전략 출력)
// ====================

// Direction 신호 방향
type Direction string

const (
	DirectionLong    Direction = "LONG"
	DirectionShort   Direction = "SHORT"
	DirectionNeutral Direction = "NEUTRAL"
)

// StrategyID 전략 식별자
type StrategyID string

const (
	StrategyMeanReversion     StrategyID = "mean_reversion"
	StrategyTrendBreakout     StrategyID = "trend_breakout"
	StrategyCompositeMomentum StrategyID = "composite_momentum"
	StrategyPriceAction       StrategyID = "price_action"
)

// Signal 전략이 생성한 방향성 신호 (생성 후 불변)
type Signal struct {
	StrategyID StrategyID         `json:"strategy_id"`
	Direction  Direction          `json:"direction"`
	Strength   float64            `json:"strength"`             // 0-1
	Confidence float64            `json:"confidence"`           // 0-1
	Parameters map[string]float64 `json:"parameters,omitempty"`
	Pattern    *Pattern           `json:"pattern,omitempty"`
	Reason     string             `json:"reason,omitempty"`
	IsFallback bool               `json:"is_fallback"`
}

// Neutral builds a NEUTRAL signal with zero strength and confidence.
func Neutral(id StrategyID, reason string) Signal {
	return Signal{
		StrategyID: id,
		Direction:  DirectionNeutral,
		Reason:     reason,
	}
}

// Fallback builds the substitute signal for a failed or timed-out strategy.
func Fallback(id StrategyID, reason string) Signal {
	s := Neutral(id, reason)
	s.IsFallback = true
	return s
}

// Pattern 가격 패턴 감지 결과
type Pattern struct {
	Name        string    `json:"name"`
	Direction   Direction `json:"direction"`
	Reliability float64   `json:"reliability"`
	Confidence  float64   `json:"confidence"`
}

// ====================
// FusedDecision (융합 결과)
// ====================

// FusedDecision 여러 전략을 결합한 최종 의사결정 (요청마다 재계산)
type FusedDecision struct {
	ID                   uuid.UUID             `json:"id"`
	Symbol               string                `json:"symbol"`
	Direction            Direction             `json:"direction"`
	Strength             float64               `json:"strength"`
	Confidence           float64               `json:"confidence"`
	RiskLevel            risk.Level            `json:"risk_level"`
	RiskScore            float64               `json:"risk_score"`
	Volatility           float64               `json:"volatility"`
	LastPrice            float64               `json:"last_price"`
	Executable           bool                  `json:"executable"`
	SupportingStrategies []StrategyID          `json:"supporting_strategies"`
	Signals              map[StrategyID]Signal `json:"signals"`
	Recommendations      []string              `json:"recommendations"`
	Reason               string                `json:"reason,omitempty"`
	IsFallback           bool                  `json:"is_fallback"`
	Fingerprint          string                `json:"fingerprint"`
	GeneratedAt          time.Time             `json:"generated_at"`
}

// GateBlockers 자동 실행을 막는 사유 목록 (비어 있으면 실행 가능)
// 알 수 없는 리스크 등급은 차단한다.
func (d *FusedDecision) GateBlockers(confidenceGate, strengthGate float64, blocking risk.Level) []string {
	var blocked []string

	if d.Direction != DirectionLong && d.Direction != DirectionShort {
		blocked = append(blocked, fmt.Sprintf("direction is %s", d.Direction))
	}
	if d.Confidence < confidenceGate {
		blocked = append(blocked, fmt.Sprintf("confidence %.2f < %.2f", d.Confidence, confidenceGate))
	}
	if d.Strength < strengthGate {
		blocked = append(blocked, fmt.Sprintf("strength %.2f < %.2f", d.Strength, strengthGate))
	}
	switch {
	case d.RiskLevel.Rank() < 0:
		blocked = append(blocked, fmt.Sprintf("unknown risk level %q", d.RiskLevel))
	case d.RiskLevel.AtLeast(blocking):
		blocked = append(blocked, fmt.Sprintf("risk level %s blocks auto-execution", d.RiskLevel))
	}

	return blocked
}

// ====================
// Prediction ensemble
// ====================

// ModelID 예측 모델 식별자
type ModelID string

const (
	ModelPrice      ModelID = "price"
	ModelTrend      ModelID = "trend"
	ModelVolatility ModelID = "volatility"
	ModelSentiment  ModelID = "sentiment"
)

// Prediction 단일 예측 모델 출력 (score 0-1, 0.5 = 중립)
type Prediction struct {
	Model      ModelID            `json:"model"`
	Score      float64            `json:"score"`
	Confidence float64            `json:"confidence"`
	Details    map[string]float64 `json:"details,omitempty"`
	IsFallback bool               `json:"is_fallback"`
	Error      string             `json:"error,omitempty"`
}

// Outlook 앙상블 방향
type Outlook string

const (
	OutlookBullish Outlook = "BULLISH"
	OutlookBearish Outlook = "BEARISH"
	OutlookNeutral Outlook = "NEUTRAL"
)

// Action 앙상블 권고 행동
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Forecast 예측 앙상블 결과
type Forecast struct {
	Symbol          string                 `json:"symbol"`
	Score           float64                `json:"score"`
	Confidence      float64                `json:"confidence"`
	Outlook         Outlook                `json:"outlook"`
	Magnitude       float64                `json:"magnitude"`
	Recommendation  Action                 `json:"recommendation"`
	StopLossAdvised bool                   `json:"stop_loss_advised"` // 변동성 점수 > 0.8
	Predictions     map[ModelID]Prediction `json:"predictions"`
	Contributing    []ModelID              `json:"contributing"`
	IsFallback      bool                   `json:"is_fallback"`
	Reason          string                 `json:"reason,omitempty"`
	GeneratedAt     time.Time              `json:"generated_at"`
}
