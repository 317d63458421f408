package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"

	"github.com/wonny/quantengine/internal/domain/position"
	"github.com/wonny/quantengine/internal/domain/signals"
	"github.com/wonny/quantengine/internal/pkg/metrics"
)

const defaultPublishTimeout = 5 * time.Second

// Fanout dispatches every event to all publishers asynchronously.
// It implements signals.DecisionSink and position.Archive; a failing
// publisher is logged and counted but never fails the caller.
type Fanout struct {
	publishers []Publisher
	timeout    time.Duration
	clock      clock.Clock

	wg sync.WaitGroup
}

// FanoutOption configures a Fanout
type FanoutOption func(*Fanout)

// WithPublishTimeout bounds each publisher call
func WithPublishTimeout(d time.Duration) FanoutOption {
	return func(f *Fanout) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithFanoutClock overrides the event timestamp clock
func WithFanoutClock(c clock.Clock) FanoutOption {
	return func(f *Fanout) {
		f.clock = c
	}
}

// NewFanout creates a fanout over publishers (nil entries are skipped)
func NewFanout(publishers []Publisher, opts ...FanoutOption) *Fanout {
	f := &Fanout{
		timeout: defaultPublishTimeout,
		clock:   clock.New(),
	}
	for _, p := range publishers {
		if p != nil {
			f.publishers = append(f.publishers, p)
		}
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Publishers returns the configured publisher names
func (f *Fanout) Publishers() []string {
	names := make([]string, len(f.publishers))
	for i, p := range f.publishers {
		names[i] = p.Name()
	}
	return names
}

// PublishDecision implements signals.DecisionSink
func (f *Fanout) PublishDecision(ctx context.Context, d *signals.FusedDecision) error {
	if d == nil {
		return errors.New("nil decision")
	}
	f.dispatch(ctx, NewDecisionEvent(d, f.clock.Now()))
	return nil
}

// ArchivePosition implements position.Archive
func (f *Fanout) ArchivePosition(ctx context.Context, p *position.Position) error {
	if p == nil {
		return errors.New("nil position")
	}
	f.dispatch(ctx, NewPositionEvent(p, f.clock.Now()))
	return nil
}

func (f *Fanout) dispatch(ctx context.Context, evt Event) {
	// 호출자 취소와 분리, publisher별 타임아웃만 적용
	base := context.WithoutCancel(ctx)

	for _, p := range f.publishers {
		f.wg.Add(1)
		go func(p Publisher) {
			defer f.wg.Done()

			pubCtx, cancel := context.WithTimeout(base, f.timeout)
			defer cancel()

			if err := p.Publish(pubCtx, evt); err != nil {
				metrics.SinkFailures.WithLabelValues(p.Name(), string(evt.Type)).Inc()
				log.Warn().
					Err(err).
					Str("publisher", p.Name()).
					Str("event", string(evt.Type)).
					Str("symbol", evt.Symbol).
					Msg("notification publish failed")
			}
		}(p)
	}
}

// Close waits for in-flight publishes, then closes every publisher
func (f *Fanout) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	var errs []error
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("wait publishes: %w", ctx.Err()))
	}

	for _, p := range f.publishers {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// StorePublisher forwards events to the durable stores
type StorePublisher struct {
	decisions signals.DecisionSink
	archive   position.Archive
}

// NewStorePublisher wraps a decision sink and a position archive (either may be nil)
func NewStorePublisher(decisions signals.DecisionSink, archive position.Archive) *StorePublisher {
	return &StorePublisher{decisions: decisions, archive: archive}
}

func (s *StorePublisher) Name() string { return "store" }

func (s *StorePublisher) Publish(ctx context.Context, evt Event) error {
	switch evt.Type {
	case EventDecision:
		if s.decisions == nil || evt.Decision == nil {
			return nil
		}
		return s.decisions.PublishDecision(ctx, evt.Decision)
	case EventPositionClosed:
		if s.archive == nil || evt.Position == nil {
			return nil
		}
		return s.archive.ArchivePosition(ctx, evt.Position)
	default:
		return fmt.Errorf("unknown event type %q", evt.Type)
	}
}

func (s *StorePublisher) Close() error { return nil }
