package fusion

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/quantengine/internal/domain/market"
	"github.com/wonny/quantengine/internal/domain/risk"
	"github.com/wonny/quantengine/internal/domain/signals"
	"github.com/wonny/quantengine/internal/pkg/config"
	"github.com/wonny/quantengine/internal/pkg/metrics"
	riskengine "github.com/wonny/quantengine/internal/service/risk"
	"github.com/wonny/quantengine/internal/strategy/indicator"
	"github.com/wonny/quantengine/internal/strategy/predictor"
	strategy "github.com/wonny/quantengine/internal/strategy/signals"
)

// sinkTimeout 의사결정 발행 제한 시간
const sinkTimeout = 5 * time.Second

// RiskAssessor 리스크 게이트용 포트폴리오 평가기 (항상 완전한 리포트 반환)
type RiskAssessor interface {
	AssessPortfolioRisk(ctx context.Context, p risk.Portfolio, marketValues []float64) *risk.Report
}

// Options 분석 옵션
type Options struct {
	Timeframe     market.Timeframe
	IndicatorKeys []string
	// Portfolio 리스크 게이트 대상. nil 이면 해당 심볼 단일 보유로 평가
	Portfolio *risk.Portfolio
	// MarketSeries 베타 계산용 벤치마크 가격 이력
	MarketSeries []float64
	SkipCache    bool
}

// Engine 전략 신호 융합 엔진
type Engine struct {
	cfg      config.FusionConfig
	ensemble config.EnsembleConfig
	sizing   config.PositionConfig

	generators   []strategy.Generator
	weights      map[signals.StrategyID]float64
	predictors   []predictor.Predictor
	modelWeights map[signals.ModelID]float64

	risk     RiskAssessor
	provider market.Provider
	sink     signals.DecisionSink
	clock    clock.Clock

	decisions *Cache[*signals.FusedDecision]
	forecasts *Cache[*signals.Forecast]
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithGenerators replaces the default strategy set.
func WithGenerators(gens ...strategy.Generator) EngineOption {
	return func(e *Engine) {
		e.generators = gens
	}
}

// WithPredictors replaces the default prediction models.
func WithPredictors(preds ...predictor.Predictor) EngineOption {
	return func(e *Engine) {
		e.predictors = preds
	}
}

// WithRiskAssessor sets the risk gate.
func WithRiskAssessor(r RiskAssessor) EngineOption {
	return func(e *Engine) {
		e.risk = r
	}
}

// WithProvider sets the market data provider used when a caller passes no series.
func WithProvider(p market.Provider) EngineOption {
	return func(e *Engine) {
		e.provider = p
	}
}

// WithSink sets where fresh decisions are published.
func WithSink(s signals.DecisionSink) EngineOption {
	return func(e *Engine) {
		e.sink = s
	}
}

// WithClock sets the clock used for timestamps and cache expiry.
func WithClock(c clock.Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// NewEngine creates a fusion engine. Weight tables are validated here: every
// generator and predictor must have a weight.
func NewEngine(cfg config.EngineConfig, opts ...EngineOption) (*Engine, error) {
	if err := cfg.Fusion.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Ensemble.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg.Fusion,
		ensemble: cfg.Ensemble,
		sizing:   cfg.Position,
		clock:    clock.New(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.generators == nil {
		e.generators = []strategy.Generator{
			strategy.NewMeanReversion(cfg.Strategies.MeanReversion),
			strategy.NewTrendBreakout(cfg.Strategies.TrendBreakout),
			strategy.NewCompositeMomentum(cfg.Strategies.Momentum),
			strategy.NewPriceAction(),
		}
	}
	if e.predictors == nil {
		e.predictors = predictor.DefaultPredictors()
	}
	if e.risk == nil {
		r, err := riskengine.NewEngine(cfg.Risk, e.clock)
		if err != nil {
			return nil, err
		}
		e.risk = r
	}

	e.weights = make(map[signals.StrategyID]float64, len(e.generators))
	for _, g := range e.generators {
		w, ok := cfg.Fusion.Weights[string(g.ID())]
		if !ok {
			return nil, fmt.Errorf("%w: no fusion weight for strategy %q", signals.ErrInvalidWeights, g.ID())
		}
		e.weights[g.ID()] = w
	}

	e.modelWeights = make(map[signals.ModelID]float64, len(e.predictors))
	for _, p := range e.predictors {
		w, ok := cfg.Ensemble.Weights[string(p.ID())]
		if !ok {
			return nil, fmt.Errorf("%w: no ensemble weight for model %q", signals.ErrInvalidWeights, p.ID())
		}
		e.modelWeights[p.ID()] = w
	}

	e.decisions = NewCache[*signals.FusedDecision](cfg.Fusion.CacheSize, cfg.Fusion.CacheTTL, e.clock)
	e.forecasts = NewCache[*signals.Forecast](cfg.Fusion.CacheSize, cfg.Fusion.CacheTTL, e.clock)

	return e, nil
}

// CacheLen 캐시된 의사결정 수
func (e *Engine) CacheLen() int {
	return e.decisions.Len()
}

// =============================================================================
// Analyze
// =============================================================================

// Analyze 전략을 동시에 실행해 하나의 의사결정으로 융합한다.
//
// 개별 전략의 실패/타임아웃은 fallback 신호로 대체되며 분석을 중단시키지 않는다.
// 오류는 시세를 얻지 못했거나 ctx 가 취소된 경우에만 반환한다. 반환된 결과는 캐시와 공유되므로 수정하지 말 것.
func (e *Engine) Analyze(ctx context.Context, symbol string, series market.PriceSeries, opts Options) (*signals.FusedDecision, error) {
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", signals.ErrDataInsufficient)
	}

	tf := opts.Timeframe
	if tf == "" {
		tf = series.Timeframe
	}
	if tf == "" {
		tf = market.Timeframe1h
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := Fingerprint([]string{symbol}, tf, opts.IndicatorKeys)

	compute := func() (*signals.FusedDecision, error) {
		s, err := e.resolveSeries(ctx, symbol, tf, series)
		if err != nil {
			return nil, err
		}
		d := e.analyze(ctx, symbol, s, opts)
		// 호출자 취소로 생긴 fallback 은 캐시하거나 발행하지 않는다
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d.Fingerprint = key
		e.publish(ctx, d)
		return d, nil
	}

	if opts.SkipCache {
		return compute()
	}

	d, _, err := e.decisions.GetOrCompute(key, compute)
	return d, err
}

func (e *Engine) resolveSeries(ctx context.Context, symbol string, tf market.Timeframe, series market.PriceSeries) (market.PriceSeries, error) {
	if series.Len() > 0 || e.provider == nil {
		if series.Symbol == "" {
			series.Symbol = symbol
		}
		return series, nil
	}

	s, err := e.provider.GetSeries(ctx, symbol, tf)
	if err != nil {
		return market.PriceSeries{}, fmt.Errorf("fetch series %s/%s: %w", symbol, tf, err)
	}
	return s, nil
}

func (e *Engine) analyze(ctx context.Context, symbol string, series market.PriceSeries, opts Options) *signals.FusedDecision {
	start := time.Now()
	defer func() {
		metrics.AnalysisLatency.WithLabelValues("analyze").Observe(time.Since(start).Seconds())
	}()

	tasks := make([]Task[signals.Signal], len(e.generators))
	for i, gen := range e.generators {
		tasks[i] = Task[signals.Signal]{
			Name: string(gen.ID()),
			Run: func(ctx context.Context) (signals.Signal, error) {
				return gen.Generate(ctx, series)
			},
		}
	}

	var (
		results []Result[signals.Signal]
		report  *risk.Report
		g       errgroup.Group
	)
	g.Go(func() error {
		results = RunAll(ctx, e.cfg.StrategyTimeout, tasks)
		return nil
	})
	g.Go(func() error {
		report = e.assessRisk(ctx, symbol, series, opts)
		return nil
	})
	_ = g.Wait()

	degraded := report.IsFallback
	sigs := make(map[signals.StrategyID]signals.Signal, len(results))
	for i, res := range results {
		id := e.generators[i].ID()
		if res.Err != nil {
			reason := "error"
			if isTimeout(res.Err) {
				reason = "timeout"
			}
			metrics.EstimatorFailures.WithLabelValues(string(id), reason).Inc()
			log.Warn().Err(res.Err).Str("symbol", symbol).Str("strategy", string(id)).Msg("strategy replaced by fallback")
			sigs[id] = signals.Fallback(id, res.Err.Error())
			degraded = true
			continue
		}
		sig := res.Value
		sig.StrategyID = id
		sigs[id] = sig
	}

	fused := Fuse(sigs, e.weights)
	closes := series.Closes()

	d := &signals.FusedDecision{
		ID:                   uuid.New(),
		Symbol:               symbol,
		Direction:            fused.Direction,
		Strength:             fused.Strength,
		Confidence:           fused.Confidence,
		RiskLevel:            report.Level,
		RiskScore:            report.OverallScore,
		Volatility:           indicator.Volatility(closes),
		SupportingStrategies: fused.Supporting,
		Signals:              sigs,
		Reason:               fused.Reason,
		IsFallback:           degraded,
		GeneratedAt:          e.clock.Now(),
	}
	if len(closes) > 0 {
		d.LastPrice = closes[len(closes)-1]
	}
	if d.SupportingStrategies == nil {
		d.SupportingStrategies = []signals.StrategyID{}
	}

	executable, blocked := Gate(e.cfg, d)
	d.Executable = executable
	if !executable && fused.Direction != signals.DirectionNeutral {
		d.Reason = fused.Reason + "; not executable: " + joinReasons(blocked)
	}
	d.Recommendations = TradeRecommendations(e.sizing, d)

	metrics.Decisions.WithLabelValues(string(d.Direction), strconv.FormatBool(d.Executable)).Inc()
	log.Debug().
		Str("symbol", symbol).
		Str("direction", string(d.Direction)).
		Float64("strength", d.Strength).
		Float64("confidence", d.Confidence).
		Str("risk_level", string(d.RiskLevel)).
		Bool("executable", d.Executable).
		Msg("decision fused")

	return d
}

// assessRisk 포트폴리오가 없으면 해당 심볼 단일 보유 포트폴리오로 평가
func (e *Engine) assessRisk(ctx context.Context, symbol string, series market.PriceSeries, opts Options) *risk.Report {
	if opts.Portfolio != nil {
		return e.risk.AssessPortfolioRisk(ctx, *opts.Portfolio, opts.MarketSeries)
	}

	closes := series.Closes()
	p := risk.Portfolio{
		Assets: []risk.Asset{{Symbol: symbol, Weight: 1, Returns: indicator.Returns(closes)}},
		Values: closes,
	}
	if len(closes) > 0 {
		p.TotalValue = closes[len(closes)-1]
	}
	return e.risk.AssessPortfolioRisk(ctx, p, opts.MarketSeries)
}

// publish 새로 계산된 의사결정을 비동기로 발행 (실패는 로그만)
func (e *Engine) publish(ctx context.Context, d *signals.FusedDecision) {
	if e.sink == nil {
		return
	}
	go func() {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
		defer cancel()
		if err := e.sink.PublishDecision(pctx, d); err != nil {
			log.Warn().Err(err).Str("symbol", d.Symbol).Msg("decision publish failed")
		}
	}()
}
