package risk

import (
	"context"
	"math"
	"math/rand"

	"github.com/wonny/quantengine/internal/domain/risk"
	"github.com/wonny/quantengine/internal/strategy/indicator"
)

// =============================================================================
// Value at Risk
// =============================================================================

// zScores 단측 정규분포 임계값
var zScores = map[float64]float64{
	0.90: 1.282,
	0.95: 1.645,
	0.99: 2.326,
}

// ZScore 신뢰수준별 z 값 (테이블에 없으면 0.95 값)
func ZScore(confidence float64) float64 {
	for c, z := range zScores {
		if math.Abs(c-confidence) < 1e-9 {
			return z
		}
	}
	return zScores[0.95]
}

// HistoricalVaR 실현 수익률의 (1-confidence) 분위수 손실
func HistoricalVaR(returns []float64, confidence float64) (float64, bool) {
	if len(returns) == 0 {
		return 0, false
	}
	sorted := sortedCopy(returns)
	return math.Abs(sorted[quantileIndex(len(sorted), confidence)]), true
}

// ParametricVaR volatility × z(confidence)
func ParametricVaR(returns []float64, confidence float64) (float64, bool) {
	vol, ok := CalculateVolatility(returns)
	if !ok {
		return 0, false
	}
	return vol * ZScore(confidence), true
}

// MonteCarloVaR 수익률 평균/표준편차로 적합한 정규분포에서 samples 개를 뽑아
// HistoricalVaR 와 같은 분위수를 취한다. 정규분포 근사이므로 fat tail 은 반영하지 않음.
func MonteCarloVaR(ctx context.Context, returns []float64, confidence float64, samples int, rng *rand.Rand) (float64, bool, error) {
	if len(returns) == 0 || samples <= 0 {
		return 0, false, nil
	}

	mean := indicator.Mean(returns)
	std := indicator.StdDev(returns)

	simulated := make([]float64, samples)
	for i := range simulated {
		// 1024 샘플마다 취소 확인
		if i&1023 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, false, err
			}
		}
		simulated[i] = normalSample(rng, mean, std)
	}

	sorted := sortedCopy(simulated)
	return math.Abs(sorted[quantileIndex(len(sorted), confidence)]), true, nil
}

// normalSample Box–Muller 변환
func normalSample(rng *rand.Rand, mean, std float64) float64 {
	u := 0.0
	for u == 0 {
		u = rng.Float64()
	}
	v := 0.0
	for v == 0 {
		v = rng.Float64()
	}
	z := math.Sqrt(-2.0*math.Log(u)) * math.Cos(2.0*math.Pi*v)
	return mean + std*z
}

// CalculateVaR 세 방법론으로 VaR 를 구하고 계산된 값들의 산술평균을 반환
// 어느 방법도 값을 내지 못하면 ok=false
func CalculateVaR(ctx context.Context, returns []float64, confidence float64, samples int, rng *rand.Rand) (float64, risk.VaRBreakdown, bool, error) {
	var breakdown risk.VaRBreakdown
	var values []float64

	if v, ok := HistoricalVaR(returns, confidence); ok {
		breakdown.Historical = ptr(v)
		values = append(values, v)
	}
	if v, ok := ParametricVaR(returns, confidence); ok {
		breakdown.Parametric = ptr(v)
		values = append(values, v)
	}
	v, ok, err := MonteCarloVaR(ctx, returns, confidence, samples, rng)
	if err != nil {
		return 0, breakdown, false, err
	}
	if ok {
		breakdown.MonteCarlo = ptr(v)
		values = append(values, v)
	}

	if len(values) == 0 {
		return 0, breakdown, false, nil
	}
	return indicator.Mean(values), breakdown, true, nil
}

// ExceedanceProbability 실현 수익률 중 -VaR 보다 나쁜 비율
func ExceedanceProbability(returns []float64, varValue float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	var count int
	for _, r := range returns {
		if r < -varValue {
			count++
		}
	}
	return float64(count) / float64(len(returns))
}

// ExpectedShortfall VaR 분위수 이하 꼬리 수익률의 평균 손실
// 꼬리가 비면 분위수 자체(최저 수익률)를 사용
func ExpectedShortfall(returns []float64, confidence float64) (float64, bool) {
	if len(returns) == 0 {
		return 0, false
	}
	sorted := sortedCopy(returns)
	cutoff := quantileIndex(len(sorted), confidence)
	if cutoff <= 0 {
		cutoff = 1
	}
	return math.Abs(indicator.Mean(sorted[:cutoff])), true
}

func ptr(v float64) *float64 {
	return &v
}
