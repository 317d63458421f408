package position

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/wonny/quantengine/internal/domain/position"
	"github.com/wonny/quantengine/internal/domain/risk"
	"github.com/wonny/quantengine/internal/domain/signals"
	"github.com/wonny/quantengine/internal/pkg/config"
	"github.com/wonny/quantengine/internal/pkg/metrics"
)

// archiveTimeout 청산 포지션 보관 제한 시간
const archiveTimeout = 5 * time.Second

// Manager 포지션 수명주기 관리자
//
// 포지션 테이블의 단일 소유자. 포지션마다 모니터 고루틴은 최대 하나이며,
// 청산 시 모니터를 취소한 뒤에는 어떤 부수효과도 남기지 않는다.
type Manager struct {
	cfg     config.PositionConfig
	gate    config.FusionConfig
	prices  position.PriceSource
	archive position.Archive
	clock   clock.Clock

	mu        sync.RWMutex
	positions map[uuid.UUID]*position.Position
	monitors  map[uuid.UUID]*monitor
	lastEntry map[string]time.Time // 심볼별 마지막 진입 (쿨다운)
	day       string
	dailyPL   decimal.Decimal
	stats     tradeStats

	// 모니터/보관 고루틴의 부모 컨텍스트 (Shutdown 에서 취소)
	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	// 리스크 점검 루프
	runMu     sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

type monitor struct {
	cancel context.CancelFunc
	done   chan struct{}
}

type tradeStats struct {
	total       int
	winning     int
	losing      int
	totalProfit decimal.Decimal
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithPriceSource sets the current-price feed polled by monitors.
func WithPriceSource(p position.PriceSource) ManagerOption {
	return func(m *Manager) {
		m.prices = p
	}
}

// WithGate sets the execution thresholds re-checked on every open.
func WithGate(cfg config.FusionConfig) ManagerOption {
	return func(m *Manager) {
		m.gate = cfg
	}
}

// WithArchive sets where closed positions are reported.
func WithArchive(a position.Archive) ManagerOption {
	return func(m *Manager) {
		m.archive = a
	}
}

// WithManagerClock sets the clock driving monitors and the risk check.
func WithManagerClock(c clock.Clock) ManagerOption {
	return func(m *Manager) {
		m.clock = c
	}
}

// NewManager creates a position manager.
func NewManager(cfg config.PositionConfig, opts ...ManagerOption) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("position config: %w", err)
	}

	m := &Manager{
		cfg:       cfg,
		gate:      config.Default().Engine.Fusion,
		clock:     clock.New(),
		positions: make(map[uuid.UUID]*position.Position),
		monitors:  make(map[uuid.UUID]*monitor),
		lastEntry: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.baseCtx, m.baseCancel = context.WithCancel(context.Background())
	m.day = dayKey(m.clock.Now())

	return m, nil
}

// =============================================================================
// Open
// =============================================================================

// OpenPosition 실행 가능한 의사결정으로 포지션을 연다.
//
// Executable 플래그를 믿지 않고 실행 게이트를 다시 적용한다 (API 로 들어온 결정 포함).
// 진입가는 PriceSource 현재가, 없으면 의사결정의 마지막 가격을 쓴다.
// 한도 점검과 등록은 하나의 임계 구역에서 수행된다.
func (m *Manager) OpenPosition(ctx context.Context, d *signals.FusedDecision) (*position.Position, error) {
	if d == nil || !d.Executable {
		return nil, position.ErrNotExecutable
	}
	if blocked := d.GateBlockers(m.gate.ConfidenceGate, m.gate.StrengthGate, risk.Level(m.gate.BlockingLevel)); len(blocked) > 0 {
		log.Warn().Str("symbol", d.Symbol).Strs("blocked", blocked).Msg("open rejected by execution gate")
		return nil, fmt.Errorf("%w: %s", position.ErrNotExecutable, strings.Join(blocked, "; "))
	}

	entry, err := m.entryPrice(ctx, d)
	if err != nil {
		return nil, err
	}

	qty, err := SizePosition(m.cfg, d.Strength, d.RiskScore, entry)
	if err != nil {
		return nil, err
	}

	side := position.SideBuy
	if d.Direction == signals.DirectionShort {
		side = position.SideSell
	}
	slPct, tpPct := ExitPercents(m.cfg, d.Volatility, d.Strength)
	stop, take := ExitLevels(side, entry, slPct, tpPct)
	now := m.clock.Now()

	p := &position.Position{
		ID:            uuid.New(),
		DecisionID:    d.ID,
		Symbol:        d.Symbol,
		Side:          side,
		Quantity:      qty,
		EntryPrice:    entry,
		StopLoss:      stop,
		TakeProfit:    take,
		StopLossPct:   slPct,
		TakeProfitPct: tpPct,
		Status:        position.StatusOpen,
		CurrentPrice:  entry,
		UnrealizedPL:  decimal.Zero,
		RealizedPL:    decimal.Zero,
		Commission:    Commission(m.cfg, qty, entry),
		Strength:      d.Strength,
		Confidence:    d.Confidence,
		RiskScore:     d.RiskScore,
		OpenedAt:      now,
		UpdatedAt:     now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkLimitsLocked(d.Symbol, now); err != nil {
		return nil, err
	}

	m.positions[p.ID] = p
	m.lastEntry[d.Symbol] = now

	// 체결 직후 MONITORING 진입
	if p.Status.CanTransitionTo(position.StatusMonitoring) {
		p.Status = position.StatusMonitoring
	}
	m.startMonitorLocked(p.ID)
	metrics.OpenPositions.Set(float64(m.openCountLocked()))

	log.Info().
		Str("position_id", p.ID.String()).
		Str("symbol", p.Symbol).
		Str("side", string(p.Side)).
		Int64("qty", p.Quantity).
		Str("entry", p.EntryPrice.String()).
		Str("stop_loss", p.StopLoss.StringFixed(4)).
		Str("take_profit", p.TakeProfit.StringFixed(4)).
		Msg("position opened")

	return snapshot(p), nil
}

func (m *Manager) entryPrice(ctx context.Context, d *signals.FusedDecision) (decimal.Decimal, error) {
	if m.prices != nil {
		price, err := m.prices.CurrentPrice(ctx, d.Symbol)
		if err == nil && price.IsPositive() {
			return price, nil
		}
		if err != nil {
			log.Warn().Err(err).Str("symbol", d.Symbol).Msg("current price unavailable, using decision price")
		}
	}
	if d.LastPrice > 0 {
		return decimal.NewFromFloat(d.LastPrice), nil
	}
	return decimal.Zero, fmt.Errorf("%w: no entry price for %s", position.ErrInvalidPrice, d.Symbol)
}

// checkLimitsLocked 최대 포지션, 심볼 쿨다운, 일일 손실 한도
func (m *Manager) checkLimitsLocked(symbol string, now time.Time) error {
	m.rollDayLocked()
	if n := m.openCountLocked(); n >= m.cfg.MaxPositions {
		return fmt.Errorf("%w: %d open positions (max %d)", position.ErrTradingLimit, n, m.cfg.MaxPositions)
	}
	if last, ok := m.lastEntry[symbol]; ok && m.cfg.SymbolCooldown > 0 && now.Sub(last) < m.cfg.SymbolCooldown {
		return fmt.Errorf("%w: %s in cooldown until %s", position.ErrTradingLimit, symbol, last.Add(m.cfg.SymbolCooldown).Format(time.RFC3339))
	}
	if m.dailyLossBreachedLocked() {
		return fmt.Errorf("%w: daily loss limit reached", position.ErrTradingLimit)
	}
	return nil
}

// =============================================================================
// Monitor
// =============================================================================

// startMonitorLocked 포지션별 모니터 (ticker 는 고루틴 시작 전에 생성)
func (m *Manager) startMonitorLocked(id uuid.UUID) {
	if _, exists := m.monitors[id]; exists {
		return
	}

	ctx, cancel := context.WithCancel(m.baseCtx)
	mon := &monitor{cancel: cancel, done: make(chan struct{})}
	m.monitors[id] = mon
	ticker := m.clock.Ticker(m.cfg.MonitorInterval)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(mon.done)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkPosition(ctx, id)
			}
		}
	}()
}

// checkPosition 현재가로 평가손익 갱신 후 TP/SL/비상 청산 판단
func (m *Manager) checkPosition(ctx context.Context, id uuid.UUID) {
	m.mu.RLock()
	p, ok := m.positions[id]
	if !ok || p.Status == position.StatusClosed {
		m.mu.RUnlock()
		return
	}
	symbol := p.Symbol
	m.mu.RUnlock()

	if m.prices == nil {
		return
	}
	price, err := m.prices.CurrentPrice(ctx, symbol)
	if ctx.Err() != nil {
		return
	}
	if err != nil || !price.IsPositive() {
		log.Warn().Err(err).Str("position_id", id.String()).Str("symbol", symbol).Msg("monitor price unavailable")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// 가격 조회 중 취소/청산되었으면 부수효과 없음
	if ctx.Err() != nil || p.Status == position.StatusClosed {
		return
	}

	m.rollDayLocked()
	p.CurrentPrice = price
	p.UnrealizedPL = UnrealizedPL(p, price)
	p.UpdatedAt = m.clock.Now()

	var reason position.ExitReason
	pl := PLPercent(p.Side, p.EntryPrice, price)
	switch {
	case pl >= p.TakeProfitPct:
		reason = position.ExitTakeProfit
	case pl <= -p.StopLossPct:
		reason = position.ExitStopLoss
	case m.dailyLossBreachedLocked():
		reason = position.ExitEmergency
	default:
		return
	}

	log.Info().
		Str("position_id", id.String()).
		Str("symbol", symbol).
		Float64("pl_pct", pl).
		Str("reason", string(reason)).
		Msg("exit condition met")
	m.closeLocked(p, price, reason)
}

// =============================================================================
// Close
// =============================================================================

// ClosePosition 포지션 청산 (멱등)
//
// 이미 청산된 포지션은 같은 종료 상태를 그대로 반환하고 손익을 다시 반영하지 않는다.
// exitPrice 가 0 이면 현재가를 조회한다. 반환 전에 모니터 종료를 기다린다.
func (m *Manager) ClosePosition(ctx context.Context, id uuid.UUID, exitPrice decimal.Decimal) (*position.Position, error) {
	m.mu.RLock()
	p, ok := m.positions[id]
	var symbol string
	var closed bool
	if ok {
		symbol = p.Symbol
		closed = p.Status == position.StatusClosed
	}
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", position.ErrPositionNotFound, id)
	}
	if !closed && !exitPrice.IsPositive() {
		price, err := m.marketPrice(ctx, id, symbol)
		if err != nil {
			return nil, err
		}
		exitPrice = price
	}

	m.mu.Lock()
	if p.Status == position.StatusClosed {
		out := snapshot(p)
		m.mu.Unlock()
		log.Warn().Str("position_id", id.String()).Msg("close ignored: position already closed")
		return out, nil
	}
	mon := m.closeLocked(p, exitPrice, position.ExitManual)
	out := snapshot(p)
	m.mu.Unlock()

	if mon != nil {
		<-mon.done
	}
	return out, nil
}

// CloseAll 열린 포지션 전부 청산 (비상 청산용)
func (m *Manager) CloseAll(ctx context.Context, reason position.ExitReason) []*position.Position {
	m.mu.RLock()
	var targets []*position.Position
	for _, p := range m.positions {
		if p.Status != position.StatusClosed {
			targets = append(targets, p)
		}
	}
	m.mu.RUnlock()

	sort.Slice(targets, func(i, j int) bool { return targets[i].OpenedAt.Before(targets[j].OpenedAt) })

	var out []*position.Position
	var waits []*monitor
	for _, p := range targets {
		id, symbol := p.ID, p.Symbol
		price, err := m.marketPrice(ctx, id, symbol)
		if err != nil {
			log.Error().Err(err).Str("position_id", id.String()).Msg("close all: no exit price")
			continue
		}

		m.mu.Lock()
		if p.Status != position.StatusClosed {
			if mon := m.closeLocked(p, price, reason); mon != nil {
				waits = append(waits, mon)
			}
			out = append(out, snapshot(p))
		}
		m.mu.Unlock()
	}

	for _, mon := range waits {
		<-mon.done
	}
	return out
}

// marketPrice 청산가: 현재가 → 마지막 관측가 → 진입가
func (m *Manager) marketPrice(ctx context.Context, id uuid.UUID, symbol string) (decimal.Decimal, error) {
	if m.prices != nil {
		price, err := m.prices.CurrentPrice(ctx, symbol)
		if err == nil && price.IsPositive() {
			return price, nil
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	p := m.positions[id]
	if p != nil && p.CurrentPrice.IsPositive() {
		return p.CurrentPrice, nil
	}
	return decimal.Zero, fmt.Errorf("%w: no exit price for %s", position.ErrInvalidPrice, symbol)
}

// closeLocked 청산 처리. 취소한 모니터를 반환하며 호출자는 락 해제 후 종료를 기다릴 수 있다.
func (m *Manager) closeLocked(p *position.Position, exitPrice decimal.Decimal, reason position.ExitReason) *monitor {
	if !p.Status.CanTransitionTo(position.StatusClosed) {
		log.Warn().Str("position_id", p.ID.String()).Str("status", string(p.Status)).Msg("invalid transition to CLOSED")
		return nil
	}

	mon := m.monitors[p.ID]
	if mon != nil {
		mon.cancel()
		delete(m.monitors, p.ID)
	}

	m.rollDayLocked()
	now := m.clock.Now()
	exitCommission := Commission(m.cfg, p.Quantity, exitPrice)
	realized := RealizedPL(p, exitPrice, exitCommission)

	price := exitPrice
	p.Status = position.StatusClosed
	p.ExitPrice = &price
	p.ExitReason = reason
	p.CurrentPrice = exitPrice
	p.UnrealizedPL = decimal.Zero
	p.RealizedPL = realized
	p.Commission = p.Commission.Add(exitCommission)
	p.ClosedAt = &now
	p.UpdatedAt = now

	m.dailyPL = m.dailyPL.Add(realized)
	m.stats.total++
	if realized.IsPositive() {
		m.stats.winning++
	} else {
		m.stats.losing++
	}
	m.stats.totalProfit = m.stats.totalProfit.Add(realized)

	metrics.ClosedPositions.WithLabelValues(string(reason)).Inc()
	metrics.RealizedPL.Set(m.stats.totalProfit.InexactFloat64())
	metrics.OpenPositions.Set(float64(m.openCountLocked()))

	log.Info().
		Str("position_id", p.ID.String()).
		Str("symbol", p.Symbol).
		Str("reason", string(reason)).
		Str("exit", exitPrice.String()).
		Str("realized_pl", realized.StringFixed(2)).
		Msg("position closed")

	m.archiveAsync(snapshot(p))
	return mon
}

func (m *Manager) archiveAsync(p *position.Position) {
	if m.archive == nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := m.archive.ArchivePosition(ctx, p); err != nil {
			log.Warn().Err(err).Str("position_id", p.ID.String()).Msg("archive closed position failed")
		}
	}()
}

// =============================================================================
// Queries
// =============================================================================

// Get 포지션 스냅샷 조회
func (m *Manager) Get(id uuid.UUID) (*position.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.positions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", position.ErrPositionNotFound, id)
	}
	return snapshot(p), nil
}

// List 진입 시각 순 포지션 목록 (status 지정 시 해당 상태만)
func (m *Manager) List(status ...position.Status) []*position.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*position.Position, 0, len(m.positions))
	for _, p := range m.positions {
		if len(status) > 0 && !hasStatus(status, p.Status) {
			continue
		}
		out = append(out, snapshot(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].OpenedAt.Before(out[j].OpenedAt)
	})
	return out
}

// Performance 누적 성과
func (m *Manager) Performance() position.Performance {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollDayLocked()

	perf := position.Performance{
		TotalTrades:   m.stats.total,
		WinningTrades: m.stats.winning,
		LosingTrades:  m.stats.losing,
		TotalProfit:   m.stats.totalProfit,
		DailyPL:       m.dailyPL,
		OpenPositions: m.openCountLocked(),
	}
	if m.stats.total > 0 {
		perf.WinRate = float64(m.stats.winning) / float64(m.stats.total)
	}
	return perf
}

// MonitorCount 실행 중인 모니터 수
func (m *Manager) MonitorCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.monitors)
}

// =============================================================================
// Risk check loop
// =============================================================================

// Start 주기적 일일 손실 점검 시작
func (m *Manager) Start(ctx context.Context) error {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.isRunning {
		log.Warn().Msg("Position manager already running")
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.isRunning = true
	ticker := m.clock.Ticker(m.cfg.RiskCheckInterval)

	go func() {
		defer close(m.done)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				m.RiskCheck(runCtx)
			}
		}
	}()

	log.Info().Dur("interval", m.cfg.RiskCheckInterval).Msg("✅ Position manager started")
	return nil
}

// Stop 점검 루프 중지 (포지션과 모니터는 유지)
func (m *Manager) Stop() {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if !m.isRunning {
		return
	}
	m.cancel()
	<-m.done
	m.isRunning = false

	log.Info().Msg("✅ Position manager stopped")
}

// IsRunning reports whether the risk check loop is active.
func (m *Manager) IsRunning() bool {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	return m.isRunning
}

// RiskCheck 일일 손실 한도 초과 시 전 포지션 비상 청산
func (m *Manager) RiskCheck(ctx context.Context) bool {
	m.mu.Lock()
	m.rollDayLocked()
	breached := m.dailyLossBreachedLocked()
	dailyPL := m.dailyPL
	m.mu.Unlock()

	if !breached {
		return false
	}

	log.Error().
		Str("daily_pl", dailyPL.StringFixed(2)).
		Float64("limit", m.cfg.DailyLossLimit).
		Msg("daily loss limit breached, closing all positions")
	m.CloseAll(ctx, position.ExitEmergency)
	return true
}

// Shutdown 점검 루프와 모든 모니터를 멈추고 보관 작업을 기다린다.
// 열린 포지션은 청산하지 않는다.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.Stop()

	m.mu.Lock()
	for id, mon := range m.monitors {
		mon.cancel()
		delete(m.monitors, id)
	}
	m.mu.Unlock()
	m.baseCancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("✅ Position manager shut down")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("position manager shutdown: %w", ctx.Err())
	}
}

// =============================================================================
// Helpers
// =============================================================================

// dailyLossBreachedLocked 당일 실현 + 미실현 손익이 -(한도 × 계좌) 이하
func (m *Manager) dailyLossBreachedLocked() bool {
	total := m.dailyPL
	for _, p := range m.positions {
		if p.Status != position.StatusClosed {
			total = total.Add(p.UnrealizedPL)
		}
	}
	limit := decimal.NewFromFloat(m.cfg.AccountSize * m.cfg.DailyLossLimit)
	return total.LessThanOrEqual(limit.Neg())
}

func (m *Manager) rollDayLocked() {
	if today := dayKey(m.clock.Now()); today != m.day {
		m.day = today
		m.dailyPL = decimal.Zero
	}
}

func (m *Manager) openCountLocked() int {
	n := 0
	for _, p := range m.positions {
		if p.Status != position.StatusClosed {
			n++
		}
	}
	return n
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func hasStatus(list []position.Status, s position.Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// snapshot 호출자에게 넘기는 복사본 (모니터와 경합하지 않도록)
func snapshot(p *position.Position) *position.Position {
	cp := *p
	return &cp
}
