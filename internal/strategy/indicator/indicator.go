// Package indicator provides pure technical indicator functions over float series.
//
// Every function degrades gracefully on short input: it returns a documented
// neutral default instead of an error, so strategies can always produce a signal.
package indicator

import (
	"math"
)

// =============================================================================
// Basic statistics
// =============================================================================

// Mean 산술 평균 (빈 입력은 0)
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev 모표준편차
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

// Returns 단순 수익률 r[i] = (p[i] - p[i-1]) / p[i-1]
// 직전 가격이 0 이하인 구간은 건너뜀
func Returns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] <= 0 {
			continue
		}
		out = append(out, (prices[i]-prices[i-1])/prices[i-1])
	}
	return out
}

// tail returns the last n values (all of them when n exceeds the length).
func tail(values []float64, n int) []float64 {
	if n <= 0 || n >= len(values) {
		return values
	}
	return values[len(values)-n:]
}

// =============================================================================
// Moving averages
// =============================================================================

// SMA 단순 이동평균. 데이터가 period보다 짧으면 가용 데이터 전체 평균
func SMA(values []float64, period int) float64 {
	if len(values) == 0 || period <= 0 {
		return 0
	}
	return Mean(tail(values, period))
}

// EMA 지수 이동평균 (alpha = 2/(period+1), 첫 값으로 시드)
func EMA(values []float64, period int) float64 {
	series := EMASeries(values, period)
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

// EMASeries returns the EMA value at every index of values.
func EMASeries(values []float64, period int) []float64 {
	if len(values) == 0 || period <= 0 {
		return nil
	}
	alpha := 2.0 / float64(period+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// =============================================================================
// Oscillators
// =============================================================================

// RSI 상대강도지수 (0-100)
// 데이터 부족 시 50(중립), 평균 손실 0이면 100
func RSI(values []float64, period int) float64 {
	if period <= 0 || len(values) < period+1 {
		return 50
	}

	window := values[len(values)-period-1:]
	var gains, losses float64
	for i := 1; i < len(window); i++ {
		change := window[i] - window[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// MACDResult MACD 계산 결과
type MACDResult struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// MACD = EMA(fast) - EMA(slow), signal = EMA(MACD, signalPeriod)
// slow보다 짧은 시계열은 0 반환
func MACD(values []float64, fast, slow, signalPeriod int) MACDResult {
	if fast <= 0 || slow <= 0 || signalPeriod <= 0 || len(values) < slow {
		return MACDResult{}
	}

	fastSeries := EMASeries(values, fast)
	slowSeries := EMASeries(values, slow)

	line := make([]float64, len(values))
	for i := range values {
		line[i] = fastSeries[i] - slowSeries[i]
	}

	signal := EMA(line[slow-1:], signalPeriod)
	macd := line[len(line)-1]
	return MACDResult{
		MACD:      macd,
		Signal:    signal,
		Histogram: macd - signal,
	}
}

// StochasticResult %K / %D
type StochasticResult struct {
	K float64 `json:"k"`
	D float64 `json:"d"`
}

// Stochastic %K = (close - periodLow) / (periodHigh - periodLow) × 100, %D = 최근 dPeriod개 %K 평균
// 데이터 부족 시 50/50, 고저 범위 0이면 %K 50
func Stochastic(highs, lows, closes []float64, period, dPeriod int) StochasticResult {
	n := len(closes)
	if period <= 0 || n < period || len(highs) != n || len(lows) != n {
		return StochasticResult{K: 50, D: 50}
	}
	if dPeriod <= 0 {
		dPeriod = 1
	}

	percentK := func(end int) float64 {
		hh := math.Inf(-1)
		ll := math.Inf(1)
		for i := end - period + 1; i <= end; i++ {
			hh = math.Max(hh, highs[i])
			ll = math.Min(ll, lows[i])
		}
		if hh == ll {
			return 50
		}
		return (closes[end] - ll) / (hh - ll) * 100
	}

	var ks []float64
	for end := n - 1; end >= period-1 && len(ks) < dPeriod; end-- {
		ks = append(ks, percentK(end))
	}

	return StochasticResult{K: ks[0], D: Mean(ks)}
}

// =============================================================================
// Volatility
// =============================================================================

// ATR 평균 실체 범위 (최근 period개 true range 평균)
// true range 계산에는 직전 종가가 필요하므로 period+1개 미만이면 0
func ATR(highs, lows, closes []float64, period int) float64 {
	n := len(closes)
	if period <= 0 || n < period+1 || len(highs) != n || len(lows) != n {
		return 0
	}

	var sum float64
	for i := n - period; i < n; i++ {
		prevClose := closes[i-1]
		tr := math.Max(highs[i]-lows[i], math.Max(math.Abs(highs[i]-prevClose), math.Abs(lows[i]-prevClose)))
		sum += tr
	}
	return sum / float64(period)
}

// Volatility 단순 수익률의 표준편차 (비연환산)
func Volatility(prices []float64) float64 {
	return StdDev(Returns(prices))
}

// =============================================================================
// Trend
// =============================================================================

// Regression 선형 회귀 결과
type Regression struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	R2        float64 `json:"r2"`
}

// LinearRegression fits y = slope·x + intercept over x = 0..n-1.
// Fewer than two points yields a flat line through the last value.
func LinearRegression(values []float64) Regression {
	n := len(values)
	if n == 0 {
		return Regression{}
	}
	if n < 2 {
		return Regression{Intercept: values[0]}
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return Regression{Intercept: values[n-1]}
	}

	slope := (fn*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / fn

	meanY := sumY / fn
	var ssTot, ssRes float64
	for i, y := range values {
		pred := slope*float64(i) + intercept
		ssRes += (y - pred) * (y - pred)
		ssTot += (y - meanY) * (y - meanY)
	}
	r2 := 0.0
	if ssTot > 0 {
		r2 = 1 - ssRes/ssTot
	}

	return Regression{Slope: slope, Intercept: intercept, R2: r2}
}

// Highest 최근 n개 최댓값
func Highest(values []float64, n int) float64 {
	w := tail(values, n)
	if len(w) == 0 {
		return 0
	}
	out := w[0]
	for _, v := range w[1:] {
		out = math.Max(out, v)
	}
	return out
}

// Lowest 최근 n개 최솟값
func Lowest(values []float64, n int) float64 {
	w := tail(values, n)
	if len(w) == 0 {
		return 0
	}
	out := w[0]
	for _, v := range w[1:] {
		out = math.Min(out, v)
	}
	return out
}

// Valid reports whether every value is a finite positive number.
func Valid(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return false
		}
	}
	return true
}
