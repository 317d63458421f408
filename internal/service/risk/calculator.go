package risk

import (
	"fmt"
	"math"
	"sort"

	"github.com/wonny/quantengine/internal/domain/risk"
	"github.com/wonny/quantengine/internal/strategy/indicator"
)

// =============================================================================
// Return Series
// =============================================================================

// PortfolioReturns 포트폴리오 기간 수익률
// 우선순위: 명시적 Returns → 평가금액 이력(Values) → 자산 비중 가중합
func PortfolioReturns(p risk.Portfolio) []float64 {
	if len(p.Returns) > 0 {
		return p.Returns
	}
	if len(p.Values) >= 2 {
		return indicator.Returns(p.Values)
	}
	return weightedAssetReturns(p.Assets)
}

// weightedAssetReturns aligns asset return series on their most recent
// observations and sums them by weight.
func weightedAssetReturns(assets []risk.Asset) []float64 {
	n := 0
	for _, a := range assets {
		if a.Weight == 0 || len(a.Returns) == 0 {
			continue
		}
		if n == 0 || len(a.Returns) < n {
			n = len(a.Returns)
		}
	}
	if n == 0 {
		return nil
	}

	out := make([]float64, n)
	for _, a := range assets {
		if a.Weight == 0 || len(a.Returns) == 0 {
			continue
		}
		offset := len(a.Returns) - n
		for i := 0; i < n; i++ {
			out[i] += a.Weight * a.Returns[offset+i]
		}
	}
	return out
}

// =============================================================================
// Risk Calculations
// =============================================================================

// CalculateVolatility 기간 수익률의 모표준편차 (연환산하지 않음)
// 수익률이 2개 미만이면 계산 불가
func CalculateVolatility(returns []float64) (float64, bool) {
	if len(returns) < 2 {
		return 0, false
	}
	return indicator.StdDev(returns), true
}

// CalculateMaxDrawdown 최대 낙폭 (running peak 기준, 양수 비율)
func CalculateMaxDrawdown(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	peak := values[0]
	maxDD := 0.0
	for _, v := range values[1:] {
		if v > peak {
			peak = v
			continue
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - v) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// valuePath rebuilds a unit value path from returns for drawdown when no
// valuation history is available.
func valuePath(returns []float64) []float64 {
	if len(returns) == 0 {
		return nil
	}
	path := make([]float64, 0, len(returns)+1)
	v := 1.0
	path = append(path, v)
	for _, r := range returns {
		v *= 1.0 + r
		path = append(path, v)
	}
	return path
}

// CalculateSharpe 샤프 비율 (meanReturn - riskFree) / volatility
func CalculateSharpe(returns []float64, riskFreeRate float64) (float64, bool) {
	vol, ok := CalculateVolatility(returns)
	if !ok || vol == 0 {
		return 0, false
	}
	return (indicator.Mean(returns) - riskFreeRate) / vol, true
}

// CalculateSortino 소르티노 비율 (하방 편차는 음수 수익률만 사용)
func CalculateSortino(returns []float64, riskFreeRate float64) (float64, bool) {
	if len(returns) < 2 {
		return 0, false
	}

	var sumSquaredNegative float64
	var countNegative int
	for _, r := range returns {
		if r < 0 {
			sumSquaredNegative += r * r
			countNegative++
		}
	}
	if countNegative == 0 {
		return 0, false
	}

	downside := math.Sqrt(sumSquaredNegative / float64(countNegative))
	if downside == 0 {
		return 0, false
	}
	return (indicator.Mean(returns) - riskFreeRate) / downside, true
}

// =============================================================================
// Benchmark Calculations
// =============================================================================

// CalculateBeta 베타 (시장 민감도)
// 길이 불일치, 2개 미만, 시장 분산 0 이면 1
func CalculateBeta(portfolioReturns, marketReturns []float64) float64 {
	if len(portfolioReturns) != len(marketReturns) || len(portfolioReturns) < 2 {
		return 1
	}

	marketVariance := CalculateVariance(marketReturns)
	if marketVariance == 0 {
		return 1
	}
	return CalculateCovariance(portfolioReturns, marketReturns) / marketVariance
}

// CalculateCorrelation 피어슨 상관계수 (길이 불일치/데이터 부족 시 0)
func CalculateCorrelation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}
	sx := math.Sqrt(CalculateVariance(x))
	sy := math.Sqrt(CalculateVariance(y))
	if sx*sy == 0 {
		return 0
	}
	return CalculateCovariance(x, y) / (sx * sy)
}

// CalculateCorrelationMatrix 자산 쌍별 상관계수 ("A-B" 키)와 임계값 초과 쌍
func CalculateCorrelationMatrix(assets []risk.Asset, alert float64) (map[string]float64, []string) {
	matrix := make(map[string]float64)
	var high []string

	for i := 0; i < len(assets); i++ {
		for j := i + 1; j < len(assets); j++ {
			pair := fmt.Sprintf("%s-%s", assets[i].Symbol, assets[j].Symbol)
			corr := CalculateCorrelation(assets[i].Returns, assets[j].Returns)
			matrix[pair] = corr
			if math.Abs(corr) > alert {
				high = append(high, pair)
			}
		}
	}

	sort.Strings(high)
	return matrix, high
}

// =============================================================================
// Statistical Helpers
// =============================================================================

// CalculateVariance 모분산
func CalculateVariance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := indicator.Mean(values)
	var sumSquaredDiff float64
	for _, v := range values {
		diff := v - mean
		sumSquaredDiff += diff * diff
	}
	return sumSquaredDiff / float64(len(values))
}

// CalculateCovariance 모공분산
func CalculateCovariance(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}

	meanX := indicator.Mean(x)
	meanY := indicator.Mean(y)

	var sum float64
	for i := range x {
		sum += (x[i] - meanX) * (y[i] - meanY)
	}
	return sum / float64(len(x))
}

func sortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}

// quantileIndex floor((1-confidence)·n), clamped into the slice.
// 1e-9 보정: (1-0.9)*10 = 0.9999999999999998 같은 부동소수 오차 방지
func quantileIndex(n int, confidence float64) int {
	idx := int(math.Floor((1.0-confidence)*float64(n) + 1e-9))
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}
