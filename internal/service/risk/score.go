package risk

import (
	"fmt"
	"math"

	"github.com/wonny/quantengine/internal/domain/risk"
	"github.com/wonny/quantengine/internal/pkg/config"
)

// =============================================================================
// Overall Score
// =============================================================================

// 종합 점수 가중치
const (
	weightVaR        = 0.25
	weightShortfall  = 0.20
	weightDrawdown   = 0.20
	weightVolatility = 0.15
	weightSharpe     = 0.10
	weightBeta       = 0.10
)

// Metrics 종합 점수 입력 (nil = 계산 불가, 가중평균에서 제외)
type Metrics struct {
	VaR               *float64
	ExpectedShortfall *float64
	MaxDrawdown       *float64
	Volatility        *float64
	Sharpe            *float64
	Beta              *float64
}

// OverallScore 정규화된 하위 점수의 가중평균 (0-1)
// 계산 가능한 지표가 하나도 없으면 0.5
func OverallScore(m Metrics, th config.RiskThresholds) float64 {
	var total, weights float64

	add := func(v *float64, weight float64, sub func(float64) float64) {
		if v == nil {
			return
		}
		total += clamp01(sub(*v)) * weight
		weights += weight
	}

	add(m.VaR, weightVaR, func(v float64) float64 { return v / th.VaR95 })
	add(m.ExpectedShortfall, weightShortfall, func(v float64) float64 { return v / th.VaR99 })
	add(m.MaxDrawdown, weightDrawdown, func(v float64) float64 { return v / th.MaxDrawdown })
	add(m.Volatility, weightVolatility, func(v float64) float64 { return v / th.Volatility })
	add(m.Sharpe, weightSharpe, func(v float64) float64 { return 1 - v/th.SharpeMin })
	add(m.Beta, weightBeta, func(v float64) float64 {
		if th.Beta <= 1 {
			return 0
		}
		return math.Abs(v-1) / (th.Beta - 1)
	})

	if weights == 0 {
		return 0.5
	}
	return total / weights
}

// ClassifyLevel 점수 → 6단계 등급
func ClassifyLevel(score float64) risk.Level {
	switch {
	case score > 0.8:
		return risk.LevelExtreme
	case score > 0.7:
		return risk.LevelVeryHigh
	case score > 0.6:
		return risk.LevelHigh
	case score > 0.4:
		return risk.LevelMedium
	case score > 0.3:
		return risk.LevelLow
	default:
		return risk.LevelVeryLow
	}
}

// =============================================================================
// Recommendations & Warnings
// =============================================================================

// Recommendations 임계값 초과 지표별 완화 권고
func Recommendations(r *risk.Report, th config.RiskThresholds) []risk.Recommendation {
	var recs []risk.Recommendation

	if r.VaR != nil && *r.VaR > th.VaR95 {
		recs = append(recs, risk.Recommendation{
			Type:     "VAR_REDUCTION",
			Priority: "HIGH",
			Message:  fmt.Sprintf("reduce high-risk position sizes: VaR %.2f%% exceeds limit", *r.VaR*100),
		})
	}
	if r.MaxDrawdown != nil && *r.MaxDrawdown > th.MaxDrawdown {
		recs = append(recs, risk.Recommendation{
			Type:     "DRAWDOWN_CONTROL",
			Priority: "HIGH",
			Message:  fmt.Sprintf("tighten trailing stops and reduce concentration: drawdown %.2f%%", *r.MaxDrawdown*100),
		})
	}
	if len(r.HighCorrelations) > 0 {
		recs = append(recs, risk.Recommendation{
			Type:     "DIVERSIFICATION",
			Priority: "MEDIUM",
			Message:  fmt.Sprintf("diversify: %d highly correlated asset pairs", len(r.HighCorrelations)),
		})
	}
	if r.Sharpe != nil && *r.Sharpe < th.SharpeMin {
		recs = append(recs, risk.Recommendation{
			Type:     "PORTFOLIO_OPTIMIZATION",
			Priority: "MEDIUM",
			Message:  fmt.Sprintf("rebalance for risk-adjusted return: sharpe %.2f below target", *r.Sharpe),
		})
	}

	return recs
}

// 경고 임계값
const (
	criticalDrawdown   = 0.2
	criticalVolatility = 0.3
)

// Warnings 위험 수준 경고
func Warnings(r *risk.Report, th config.RiskThresholds) []risk.Warning {
	var warnings []risk.Warning

	if r.VaR != nil && *r.VaR > th.VaR99 {
		warnings = append(warnings, risk.Warning{
			Severity: "CRITICAL",
			Message:  fmt.Sprintf("VaR %.2f%% breaches the 99%% limit", *r.VaR*100),
		})
	}
	if r.MaxDrawdown != nil && *r.MaxDrawdown > criticalDrawdown {
		warnings = append(warnings, risk.Warning{
			Severity: "HIGH",
			Message:  fmt.Sprintf("drawdown %.2f%% is in the danger zone", *r.MaxDrawdown*100),
		})
	}
	if r.Volatility != nil && *r.Volatility > criticalVolatility {
		warnings = append(warnings, risk.Warning{
			Severity: "MEDIUM",
			Message:  fmt.Sprintf("portfolio volatility %.2f%% is very high", *r.Volatility*100),
		})
	}

	return warnings
}

// =============================================================================
// Sensitivity
// =============================================================================

// defaultLiquidity 유동성 정보가 없을 때
const defaultLiquidity = 0.5

// CalculateSensitivity 요인별 민감도 (0-1 정규화)
func CalculateSensitivity(beta float64, volatility *float64, p risk.Portfolio) risk.Sensitivity {
	s := risk.Sensitivity{
		Market:       math.Abs(beta - 1),
		InterestRate: math.Min(1, math.Max(0, p.Duration)/10),
	}
	if volatility != nil {
		s.Volatility = math.Min(1, *volatility*2)
	}

	liquidity := p.Liquidity
	if liquidity <= 0 {
		liquidity = defaultLiquidity
	}
	s.Liquidity = clamp01(1 - liquidity)

	return s
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
