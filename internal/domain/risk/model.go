package risk

import "time"

// ====================
// Risk Level (6단계)
// ====================

// Level 리스크 등급
type Level string

const (
	LevelVeryLow  Level = "VERY_LOW"
	LevelLow      Level = "LOW"
	LevelMedium   Level = "MEDIUM"
	LevelHigh     Level = "HIGH"
	LevelVeryHigh Level = "VERY_HIGH"
	LevelExtreme  Level = "EXTREME"
)

// Rank returns the ordinal of the level (VERY_LOW=0 .. EXTREME=5), -1 if unknown.
func (l Level) Rank() int {
	switch l {
	case LevelVeryLow:
		return 0
	case LevelLow:
		return 1
	case LevelMedium:
		return 2
	case LevelHigh:
		return 3
	case LevelVeryHigh:
		return 4
	case LevelExtreme:
		return 5
	default:
		return -1
	}
}

// AtLeast reports whether l is the same tier as other or above it.
func (l Level) AtLeast(other Level) bool {
	return l.Rank() >= other.Rank() && l.Rank() >= 0
}

// ====================
// Portfolio snapshot
// ====================

// Asset 보유 자산
type Asset struct {
	Symbol  string    `json:"symbol"`
	Weight  float64   `json:"weight"`  // 포트폴리오 내 비중
	Returns []float64 `json:"returns"` // 기간 수익률
}

// Portfolio 리스크 평가 입력 스냅샷
type Portfolio struct {
	Assets     []Asset   `json:"assets"`
	Returns    []float64 `json:"returns,omitempty"`   // 포트폴리오 수익률 (비어 있으면 비중 가중합으로 계산)
	Values     []float64 `json:"values,omitempty"`    // 평가금액 이력 (drawdown 용)
	TotalValue float64   `json:"total_value"`
	Duration   float64   `json:"duration,omitempty"`  // 금리 민감도용 듀레이션 (없으면 기본값)
	Liquidity  float64   `json:"liquidity,omitempty"` // 0-1, 높을수록 유동성 양호
}

// ====================
// Report
// ====================

// VaRBreakdown 방법론별 VaR (계산 불가 시 nil)
type VaRBreakdown struct {
	Historical *float64 `json:"historical,omitempty"`
	Parametric *float64 `json:"parametric,omitempty"`
	MonteCarlo *float64 `json:"monte_carlo,omitempty"`
}

// StressScenario 스트레스 시나리오 정의
type StressScenario struct {
	Name                string  `json:"name"`
	Description         string  `json:"description"`
	MarketDecline       float64 `json:"market_decline"`       // e.g. -0.40
	VolatilityIncrease  float64 `json:"volatility_increase"`  // e.g. 0.30
	CorrelationIncrease float64 `json:"correlation_increase"` // e.g. 0.20
	LiquidityDecrease   float64 `json:"liquidity_decrease"`   // e.g. 0.50
	RateIncrease        float64 `json:"rate_increase"`        // e.g. 0.02
}

// StressResult 시나리오별 결과
type StressResult struct {
	Scenario      string  `json:"scenario"`
	BaseValue     float64 `json:"base_value"`
	MarketImpact  float64 `json:"market_impact"`  // 1차 하락분 (2차 조정 전)
	StressedValue float64 `json:"stressed_value"` // 2차 조정 후 평가금액
	ValueImpact   float64 `json:"value_impact"`   // StressedValue - BaseValue
	ImpactPercent float64 `json:"impact_percent"`
	StressedVaR   float64 `json:"stressed_var"`
	RecoveryTime  string  `json:"recovery_time"`
}

// Sensitivity 요인별 민감도
type Sensitivity struct {
	Market       float64 `json:"market"`
	InterestRate float64 `json:"interest_rate"`
	Volatility   float64 `json:"volatility"`
	Liquidity    float64 `json:"liquidity"`
}

// Recommendation 리스크 완화 권고
type Recommendation struct {
	Type     string `json:"type"`
	Priority string `json:"priority"`
	Message  string `json:"message"`
}

// Warning 리스크 경고
type Warning struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// Report 포트폴리오 리스크 리포트 (요청 시 재계산, in-place 변경 없음)
type Report struct {
	VaR                   *float64           `json:"var,omitempty"`
	VaRBreakdown          VaRBreakdown       `json:"var_breakdown"`
	ExceedanceProbability *float64           `json:"exceedance_probability,omitempty"`
	ExpectedShortfall     *float64           `json:"expected_shortfall,omitempty"`
	MaxDrawdown           *float64           `json:"max_drawdown,omitempty"`
	Volatility            *float64           `json:"volatility,omitempty"`
	Sharpe                *float64           `json:"sharpe,omitempty"`
	Sortino               *float64           `json:"sortino,omitempty"`
	Beta                  float64            `json:"beta"`
	CorrelationMatrix     map[string]float64 `json:"correlation_matrix"`
	HighCorrelations      []string           `json:"high_correlations,omitempty"`
	StressResults         []StressResult     `json:"stress_results"`
	Sensitivity           Sensitivity        `json:"sensitivity"`
	OverallScore          float64            `json:"overall_score"`
	Level                 Level              `json:"level"`
	Recommendations       []Recommendation   `json:"recommendations,omitempty"`
	Warnings              []Warning          `json:"warnings,omitempty"`
	IsFallback            bool               `json:"is_fallback"`
	Diagnostic            string             `json:"diagnostic,omitempty"`
	ComputedAt            time.Time          `json:"computed_at"`
}
