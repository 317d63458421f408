package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/quantengine/internal/domain/position"
	"github.com/wonny/quantengine/internal/domain/signals"
)

// EventType 알림 이벤트 종류
type EventType string

const (
	EventDecision       EventType = "decision"
	EventPositionClosed EventType = "position_closed"
)

// Event 외부로 내보내는 알림 (Decision / Position 중 하나만 채워짐)
type Event struct {
	ID        uuid.UUID              `json:"id"`
	Type      EventType              `json:"type"`
	Symbol    string                 `json:"symbol"`
	Timestamp time.Time              `json:"timestamp"`
	Decision  *signals.FusedDecision `json:"decision,omitempty"`
	Position  *position.Position     `json:"position,omitempty"`
}

// Publisher 이벤트 발행 대상
type Publisher interface {
	Name() string
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// NewDecisionEvent wraps a fused decision
func NewDecisionEvent(d *signals.FusedDecision, now time.Time) Event {
	return Event{
		ID:        uuid.New(),
		Type:      EventDecision,
		Symbol:    d.Symbol,
		Timestamp: now,
		Decision:  d,
	}
}

// NewPositionEvent wraps a closed position
func NewPositionEvent(p *position.Position, now time.Time) Event {
	return Event{
		ID:        uuid.New(),
		Type:      EventPositionClosed,
		Symbol:    p.Symbol,
		Timestamp: now,
		Position:  p,
	}
}

func (e Event) encode() ([]byte, error) {
	return json.Marshal(e)
}
