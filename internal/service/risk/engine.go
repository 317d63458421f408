package risk

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"

	"github.com/wonny/quantengine/internal/domain/risk"
	"github.com/wonny/quantengine/internal/pkg/config"
	"github.com/wonny/quantengine/internal/pkg/metrics"
	"github.com/wonny/quantengine/internal/strategy/indicator"
)

// Engine 포트폴리오 리스크 분석 엔진
//
// 상태가 없으므로 여러 goroutine 에서 동시에 호출해도 안전하다.
// Monte Carlo 난수는 호출마다 설정된 seed 로 새로 만들어 같은 입력에 같은 리포트를 낸다.
type Engine struct {
	cfg       config.RiskConfig
	scenarios []risk.StressScenario
	clock     clock.Clock
}

// NewEngine creates a risk engine after validating cfg. With no scenarios, DefaultScenarios is used.
func NewEngine(cfg config.RiskConfig, clk clock.Clock, scenarios ...risk.StressScenario) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("risk config: %w", err)
	}
	if clk == nil {
		clk = clock.New()
	}
	if len(scenarios) == 0 {
		scenarios = DefaultScenarios()
	}
	return &Engine{
		cfg:       cfg,
		scenarios: scenarios,
		clock:     clk,
	}, nil
}

// AssessPortfolioRisk 포트폴리오 스냅샷과 벤치마크 가격 이력으로 리스크 리포트 생성
//
// 항상 완전한 리포트를 반환한다. 계산이 불가능하면 IsFallback 이 설정된
// MEDIUM 기본 리포트와 진단 메시지를 돌려준다.
func (e *Engine) AssessPortfolioRisk(ctx context.Context, p risk.Portfolio, marketValues []float64) (report *risk.Report) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("risk assessment panicked")
			report = e.fallback(fmt.Errorf("%w: %v", risk.ErrRiskComputation, r))
		}
	}()

	report, err := e.assess(ctx, p, marketValues)
	if err != nil {
		log.Warn().Err(err).Int("assets", len(p.Assets)).Msg("risk assessment degraded to fallback")
		return e.fallback(err)
	}

	metrics.RiskScore.Set(report.OverallScore)
	log.Debug().
		Float64("score", report.OverallScore).
		Str("level", string(report.Level)).
		Int("warnings", len(report.Warnings)).
		Msg("portfolio risk assessed")

	return report
}

func (e *Engine) assess(ctx context.Context, p risk.Portfolio, marketValues []float64) (*risk.Report, error) {
	if err := validatePortfolio(p); err != nil {
		return nil, err
	}

	returns := PortfolioReturns(p)
	if len(returns) == 0 {
		return nil, fmt.Errorf("%w: no portfolio return history", risk.ErrInsufficientData)
	}

	confidence := e.cfg.Confidence
	th := e.cfg.Thresholds

	report := &risk.Report{
		ComputedAt: e.clock.Now(),
	}

	// VaR (3 methods)
	rng := rand.New(rand.NewSource(e.cfg.Seed))
	varValue, breakdown, ok, err := CalculateVaR(ctx, returns, confidence, e.cfg.MonteCarloSamples, rng)
	if err != nil {
		return nil, fmt.Errorf("%w: monte carlo: %v", risk.ErrRiskComputation, err)
	}
	report.VaRBreakdown = breakdown
	if ok {
		report.VaR = ptr(varValue)
		report.ExceedanceProbability = ptr(ExceedanceProbability(returns, varValue))
	}

	if es, ok := ExpectedShortfall(returns, confidence); ok {
		report.ExpectedShortfall = ptr(es)
	}

	// Drawdown: 평가금액 이력 우선, 없으면 수익률로 복원한 경로
	path := p.Values
	if len(path) < 2 {
		path = valuePath(returns)
	}
	if len(path) >= 2 {
		report.MaxDrawdown = ptr(CalculateMaxDrawdown(path))
	}

	if vol, ok := CalculateVolatility(returns); ok {
		report.Volatility = ptr(vol)
	}
	if sharpe, ok := CalculateSharpe(returns, e.cfg.RiskFreeRate); ok {
		report.Sharpe = ptr(sharpe)
	}
	if sortino, ok := CalculateSortino(returns, e.cfg.RiskFreeRate); ok {
		report.Sortino = ptr(sortino)
	}

	report.Beta = CalculateBeta(returns, indicator.Returns(marketValues))
	report.CorrelationMatrix, report.HighCorrelations = CalculateCorrelationMatrix(p.Assets, th.CorrelationAlert)
	report.Sensitivity = CalculateSensitivity(report.Beta, report.Volatility, p)

	var parametric float64
	if breakdown.Parametric != nil {
		parametric = *breakdown.Parametric
	}
	report.StressResults = RunStressTests(baseValue(p), parametric, p.Duration, e.scenarios)

	report.OverallScore = OverallScore(Metrics{
		VaR:               report.VaR,
		ExpectedShortfall: report.ExpectedShortfall,
		MaxDrawdown:       report.MaxDrawdown,
		Volatility:        report.Volatility,
		Sharpe:            report.Sharpe,
		Beta:              ptr(report.Beta),
	}, th)
	report.Level = ClassifyLevel(report.OverallScore)
	report.Recommendations = Recommendations(report, th)
	report.Warnings = Warnings(report, th)

	return report, nil
}

// FallbackReport MEDIUM 기본값의 대체 리포트
func (e *Engine) FallbackReport(diagnostic string) *risk.Report {
	return e.fallback(fmt.Errorf("%w: %s", risk.ErrRiskComputation, diagnostic))
}

func (e *Engine) fallback(cause error) *risk.Report {
	metrics.RiskFallbacks.Inc()
	return &risk.Report{
		Beta:              1,
		CorrelationMatrix: map[string]float64{},
		StressResults:     []risk.StressResult{},
		OverallScore:      0.5,
		Level:             risk.LevelMedium,
		Recommendations: []risk.Recommendation{{
			Type:     "ERROR_RECOVERY",
			Priority: "HIGH",
			Message:  "check risk inputs and rerun the assessment",
		}},
		Warnings: []risk.Warning{{
			Severity: "HIGH",
			Message:  "risk data unavailable",
		}},
		IsFallback: true,
		Diagnostic: cause.Error(),
		ComputedAt: e.clock.Now(),
	}
}

func validatePortfolio(p risk.Portfolio) error {
	if p.TotalValue < 0 || !finite(p.TotalValue) {
		return fmt.Errorf("%w: total value %v", risk.ErrInvalidPortfolio, p.TotalValue)
	}
	for _, v := range p.Values {
		if !finite(v) || v < 0 {
			return fmt.Errorf("%w: valuation %v", risk.ErrInvalidPortfolio, v)
		}
	}
	for _, r := range p.Returns {
		if !finite(r) {
			return fmt.Errorf("%w: non-finite return", risk.ErrInvalidPortfolio)
		}
	}
	for _, a := range p.Assets {
		if !finite(a.Weight) {
			return fmt.Errorf("%w: asset %s weight", risk.ErrInvalidPortfolio, a.Symbol)
		}
		for _, r := range a.Returns {
			if !finite(r) {
				return fmt.Errorf("%w: asset %s non-finite return", risk.ErrInvalidPortfolio, a.Symbol)
			}
		}
	}
	return nil
}

func baseValue(p risk.Portfolio) float64 {
	if p.TotalValue > 0 {
		return p.TotalValue
	}
	if n := len(p.Values); n > 0 {
		return p.Values[n-1]
	}
	return 0
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
