package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestSMA(t *testing.T) {
	assert.InDelta(t, 4.0, SMA([]float64{1, 2, 3, 4, 5}, 3), 1e-9)
	// 데이터 부족 시 가용 데이터 평균
	assert.InDelta(t, 2.0, SMA([]float64{1, 2, 3}, 10), 1e-9)
	assert.Equal(t, 0.0, SMA(nil, 5))
	assert.Equal(t, 0.0, SMA([]float64{1, 2}, 0))
}

func TestEMA(t *testing.T) {
	assert.InDelta(t, 2.0+5.0/9.0, EMA([]float64{1, 2, 3}, 2), 1e-9)
	assert.InDelta(t, 7.0, EMA(constant(20, 7), 5), 1e-9)
	assert.Equal(t, 0.0, EMA(nil, 5))
}

func TestRSI(t *testing.T) {
	t.Run("short series is neutral", func(t *testing.T) {
		assert.Equal(t, 50.0, RSI([]float64{1, 2, 3}, 14))
	})

	t.Run("flat series is neutral", func(t *testing.T) {
		assert.Equal(t, 50.0, RSI(constant(30, 100), 14))
	})

	t.Run("only gains saturate at 100", func(t *testing.T) {
		assert.Equal(t, 100.0, RSI(ramp(30, 10, 1), 14))
	})

	t.Run("balanced moves give 50", func(t *testing.T) {
		assert.InDelta(t, 50.0, RSI([]float64{1, 2, 1}, 2), 1e-9)
	})

	t.Run("only losses give 0", func(t *testing.T) {
		assert.InDelta(t, 0.0, RSI(ramp(30, 100, -1), 14), 1e-9)
	})
}

func TestMACD(t *testing.T) {
	assert.Equal(t, MACDResult{}, MACD(ramp(10, 1, 1), 12, 26, 9))

	rising := MACD(ramp(60, 10, 0.5), 12, 26, 9)
	assert.Greater(t, rising.MACD, 0.0)
	assert.InDelta(t, rising.MACD-rising.Signal, rising.Histogram, 1e-12)

	flat := MACD(constant(60, 10), 12, 26, 9)
	assert.InDelta(t, 0.0, flat.MACD, 1e-12)
	assert.InDelta(t, 0.0, flat.Histogram, 1e-12)
}

func TestStochastic(t *testing.T) {
	closes := ramp(16, 1, 1)
	res := Stochastic(closes, closes, closes, 14, 3)
	assert.InDelta(t, 100.0, res.K, 1e-9)
	assert.InDelta(t, 100.0, res.D, 1e-9)

	flat := constant(20, 5)
	res = Stochastic(flat, flat, flat, 14, 3)
	assert.Equal(t, 50.0, res.K)

	short := Stochastic([]float64{1}, []float64{1}, []float64{1}, 14, 3)
	assert.Equal(t, StochasticResult{K: 50, D: 50}, short)
}

func TestATR(t *testing.T) {
	highs := []float64{10, 11, 12}
	lows := []float64{9, 10, 11}
	closes := []float64{9.5, 10.5, 11.5}
	assert.InDelta(t, 1.5, ATR(highs, lows, closes, 2), 1e-9)
	assert.Equal(t, 0.0, ATR(highs, lows, closes, 5))
}

func TestVolatility(t *testing.T) {
	assert.Equal(t, 0.0, Volatility(constant(30, 100)))
	assert.Equal(t, 0.0, Volatility([]float64{100}))

	// 수익률 +10%, -10% 반복 -> 표준편차 0.1 근처
	prices := []float64{100, 110, 99, 108.9, 98.01}
	assert.InDelta(t, 0.1, Volatility(prices), 1e-9)
}

func TestLinearRegression(t *testing.T) {
	reg := LinearRegression([]float64{1, 3, 5, 7})
	assert.InDelta(t, 2.0, reg.Slope, 1e-9)
	assert.InDelta(t, 1.0, reg.Intercept, 1e-9)
	assert.InDelta(t, 1.0, reg.R2, 1e-9)

	single := LinearRegression([]float64{42})
	assert.Equal(t, 0.0, single.Slope)
	assert.Equal(t, 42.0, single.Intercept)
}

func TestReturnsAndValid(t *testing.T) {
	r := Returns([]float64{100, 110, 99})
	assert.Len(t, r, 2)
	assert.InDelta(t, 0.1, r[0], 1e-12)
	assert.InDelta(t, -0.1, r[1], 1e-12)

	assert.True(t, Valid([]float64{1, 2, 3}))
	assert.False(t, Valid([]float64{1, math.NaN()}))
	assert.False(t, Valid([]float64{1, -2}))
}

func TestHighestLowest(t *testing.T) {
	v := []float64{5, 1, 9, 3, 4}
	assert.Equal(t, 4.0, Highest(v, 2))
	assert.Equal(t, 9.0, Highest(v, 10))
	assert.Equal(t, 1.0, Lowest(v, 5))
}
