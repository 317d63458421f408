package risk

import (
	"math"

	"github.com/wonny/quantengine/internal/domain/risk"
)

// =============================================================================
// Stress Testing
// =============================================================================

// DefaultScenarios 기본 스트레스 시나리오
func DefaultScenarios() []risk.StressScenario {
	return []risk.StressScenario{
		{
			Name:                "CRASH_2008",
			Description:         "2008 global financial crisis",
			MarketDecline:       -0.40,
			VolatilityIncrease:  0.30,
			CorrelationIncrease: 0.20,
		},
		{
			Name:               "COVID_CRASH",
			Description:        "2020 pandemic sell-off",
			MarketDecline:      -0.30,
			VolatilityIncrease: 0.40,
			LiquidityDecrease:  0.50,
		},
		{
			Name:          "INTEREST_RATE_SHOCK",
			Description:   "sudden policy rate hike",
			MarketDecline: -0.15,
			RateIncrease:  0.02,
		},
		{
			Name:          "FLASH_CRASH",
			Description:   "intraday liquidity collapse",
			MarketDecline: -0.20,
		},
	}
}

const (
	volatilityValueFactor = 0.10 // 변동성 증가분의 평가금액 영향
	liquidityValueFactor  = 0.15 // 유동성 감소분의 평가금액 영향
	correlationVaRFactor  = 0.5  // 상관관계 증가분의 VaR 배수 영향
)

// ApplyScenario 시나리오 하나를 평가금액과 parametric VaR 에 곱셈으로 적용
//
// MarketImpact 는 2차 조정 전 1차 하락분 (value × decline) 이다.
// 금리 충격은 듀레이션이 있는 포트폴리오에만 -duration × Δrate 로 반영한다.
func ApplyScenario(baseValue, parametricVaR, duration float64, s risk.StressScenario) risk.StressResult {
	result := risk.StressResult{
		Scenario:     s.Name,
		BaseValue:    baseValue,
		MarketImpact: baseValue * s.MarketDecline,
	}

	stressed := baseValue * (1 + s.MarketDecline)
	if s.VolatilityIncrease != 0 {
		stressed *= 1 - s.VolatilityIncrease*volatilityValueFactor
	}
	if s.LiquidityDecrease != 0 {
		stressed *= 1 - s.LiquidityDecrease*liquidityValueFactor
	}
	if s.RateIncrease != 0 && duration > 0 {
		stressed *= math.Max(0, 1-duration*s.RateIncrease)
	}

	result.StressedValue = stressed
	result.ValueImpact = stressed - baseValue
	if baseValue != 0 {
		result.ImpactPercent = result.ValueImpact / baseValue
	}

	multiplier := 1 + s.VolatilityIncrease + s.CorrelationIncrease*correlationVaRFactor
	result.StressedVaR = parametricVaR * multiplier
	result.RecoveryTime = EstimateRecoveryTime(result.ImpactPercent)

	return result
}

// RunStressTests 모든 시나리오 실행 (입력 순서 유지)
func RunStressTests(baseValue, parametricVaR, duration float64, scenarios []risk.StressScenario) []risk.StressResult {
	results := make([]risk.StressResult, 0, len(scenarios))
	for _, s := range scenarios {
		results = append(results, ApplyScenario(baseValue, parametricVaR, duration, s))
	}
	return results
}

// EstimateRecoveryTime 손실 심각도 구간별 회복 기간 추정
func EstimateRecoveryTime(impact float64) string {
	severity := math.Abs(impact)
	switch {
	case severity < 0.1:
		return "1-2 weeks"
	case severity < 0.2:
		return "1-3 months"
	case severity < 0.3:
		return "3-6 months"
	case severity < 0.4:
		return "6-12 months"
	default:
		return "over 1 year"
	}
}
