package risk

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"

	"github.com/wonny/quantengine/internal/domain/risk"
)

// Scheduler 주기적 포트폴리오 리스크 점검
type Scheduler struct {
	engine   *Engine
	source   risk.PortfolioSource
	clock    clock.Clock
	interval time.Duration

	mu        sync.RWMutex
	latest    *risk.Report
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewScheduler creates a scheduler that re-assesses the portfolio every interval.
func NewScheduler(engine *Engine, source risk.PortfolioSource, clk clock.Clock, interval time.Duration) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	return &Scheduler{
		engine:   engine,
		source:   source,
		clock:    clk,
		interval: interval,
	}
}

// Start 점검 루프 시작 (이미 실행 중이면 무시)
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		log.Warn().Msg("Risk scheduler already running")
		return nil
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.isRunning = true

	// ticker 는 goroutine 밖에서 생성 (mock clock 에서 Add 와의 경합 방지)
	ticker := s.clock.Ticker(s.interval)
	go s.loop(ctx, ticker, s.done)

	log.Info().Dur("interval", s.interval).Msg("✅ Risk scheduler started")
	return nil
}

// Stop 루프 종료 후 goroutine 이 끝날 때까지 대기
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.cancel()
	done := s.done
	s.isRunning = false
	s.mu.Unlock()

	<-done
	log.Info().Msg("✅ Risk scheduler stopped")
}

// IsRunning returns whether the loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Latest 가장 최근 리포트 (아직 없으면 nil)
func (s *Scheduler) Latest() *risk.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// RunOnce 즉시 한 번 점검
func (s *Scheduler) RunOnce(ctx context.Context) *risk.Report {
	portfolio, market, err := s.source.Snapshot(ctx)
	var report *risk.Report
	if err != nil {
		log.Warn().Err(err).Msg("portfolio snapshot unavailable")
		report = s.engine.FallbackReport(err.Error())
	} else {
		report = s.engine.AssessPortfolioRisk(ctx, portfolio, market)
	}

	for _, w := range report.Warnings {
		log.Warn().Str("severity", w.Severity).Msg(w.Message)
	}

	s.mu.Lock()
	s.latest = report
	s.mu.Unlock()

	return report
}

func (s *Scheduler) loop(ctx context.Context, ticker *clock.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}
