package risk

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quantengine/internal/domain/risk"
)

func ladderReturns() []float64 {
	// -0.08 .. 0.11
	out := make([]float64, 20)
	for i := range out {
		out[i] = float64(i-8) / 100
	}
	return out
}

func TestPortfolioReturns(t *testing.T) {
	t.Run("explicit returns win", func(t *testing.T) {
		p := risk.Portfolio{Returns: []float64{0.01}, Values: []float64{100, 200}}
		assert.Equal(t, []float64{0.01}, PortfolioReturns(p))
	})

	t.Run("derived from valuations", func(t *testing.T) {
		got := PortfolioReturns(risk.Portfolio{Values: []float64{100, 110}})
		require.Len(t, got, 1)
		assert.InDelta(t, 0.1, got[0], 1e-12)
	})

	t.Run("weighted assets aligned on latest observations", func(t *testing.T) {
		p := risk.Portfolio{Assets: []risk.Asset{
			{Symbol: "A", Weight: 0.5, Returns: []float64{0.1, 0.2, 0.3}},
			{Symbol: "B", Weight: 0.5, Returns: []float64{0.0, 0.1}},
		}}
		got := PortfolioReturns(p)
		require.Len(t, got, 2)
		assert.InDelta(t, 0.1, got[0], 1e-12)
		assert.InDelta(t, 0.2, got[1], 1e-12)
	})

	t.Run("nothing available", func(t *testing.T) {
		assert.Empty(t, PortfolioReturns(risk.Portfolio{}))
	})
}

func TestCalculateMaxDrawdown(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"running peak moves to 130 before the 80 trough", []float64{100, 120, 90, 130, 80}, 50.0 / 130.0},
		{"single peak then trough", []float64{100, 120, 80}, 1.0 / 3.0},
		{"monotonic increase", []float64{100, 110, 120}, 0},
		{"too short", []float64{100}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CalculateMaxDrawdown(tt.values), 1e-12)
		})
	}
}

func TestCalculateSharpeAndSortino(t *testing.T) {
	sharpe, ok := CalculateSharpe([]float64{0.01, 0.03}, 0)
	require.True(t, ok)
	assert.InDelta(t, 2.0, sharpe, 1e-9)

	_, ok = CalculateSharpe([]float64{0.01, 0.01}, 0)
	assert.False(t, ok, "zero volatility")

	sortino, ok := CalculateSortino([]float64{0.02, -0.01}, 0)
	require.True(t, ok)
	assert.InDelta(t, 0.5, sortino, 1e-9)

	_, ok = CalculateSortino([]float64{0.02, 0.01}, 0)
	assert.False(t, ok, "no downside returns")
}

func TestCalculateBeta(t *testing.T) {
	market := []float64{0.01, 0.02, 0.03}

	assert.InDelta(t, 2.0, CalculateBeta([]float64{0.02, 0.04, 0.06}, market), 1e-9)
	assert.Equal(t, 1.0, CalculateBeta([]float64{0.02, 0.04}, market), "length mismatch")
	assert.Equal(t, 1.0, CalculateBeta([]float64{0.02}, []float64{0.01}), "too short")
	assert.Equal(t, 1.0, CalculateBeta([]float64{0.02, 0.04}, []float64{0.01, 0.01}), "flat market")
}

func TestCalculateCorrelationMatrix(t *testing.T) {
	assets := []risk.Asset{
		{Symbol: "A", Returns: []float64{1, 2, 3}},
		{Symbol: "B", Returns: []float64{2, 4, 6}},
		{Symbol: "C", Returns: []float64{3, 2, 1}},
		{Symbol: "D", Returns: []float64{1, 2}},
	}

	matrix, high := CalculateCorrelationMatrix(assets, 0.8)

	assert.Len(t, matrix, 6)
	assert.InDelta(t, 1.0, matrix["A-B"], 1e-9)
	assert.InDelta(t, -1.0, matrix["A-C"], 1e-9)
	assert.Equal(t, 0.0, matrix["A-D"], "mismatched lengths")
	assert.Equal(t, []string{"A-B", "A-C", "B-C"}, high)
}

func TestHistoricalVaRAndShortfall(t *testing.T) {
	returns := ladderReturns()

	v, ok := HistoricalVaR(returns, 0.95)
	require.True(t, ok)
	assert.InDelta(t, 0.07, v, 1e-12) // floor(0.05*20)=1 → -0.07

	es, ok := ExpectedShortfall(returns, 0.95)
	require.True(t, ok)
	assert.InDelta(t, 0.08, es, 1e-12)

	_, ok = HistoricalVaR(nil, 0.95)
	assert.False(t, ok)
	_, ok = ExpectedShortfall(nil, 0.95)
	assert.False(t, ok)
}

func TestQuantileIndex_FloatingPoint(t *testing.T) {
	assert.Equal(t, 1, quantileIndex(10, 0.90))
	assert.Equal(t, 1, quantileIndex(20, 0.95))
	assert.Equal(t, 0, quantileIndex(5, 0.95))
}

func TestParametricVaR(t *testing.T) {
	v, ok := ParametricVaR([]float64{0.01, -0.01}, 0.95)
	require.True(t, ok)
	assert.InDelta(t, 0.01645, v, 1e-12)

	v, _ = ParametricVaR([]float64{0.01, -0.01}, 0.99)
	assert.InDelta(t, 0.02326, v, 1e-12)

	_, ok = ParametricVaR([]float64{0.01}, 0.95)
	assert.False(t, ok)

	t.Run("non-decreasing in volatility at constant mean", func(t *testing.T) {
		base := ladderReturns()
		mean := 0.0
		for _, r := range base {
			mean += r
		}
		mean /= float64(len(base))

		prev := -1.0
		for k := 1.0; k <= 5.0; k += 0.5 {
			scaled := make([]float64, len(base))
			for i, r := range base {
				scaled[i] = mean + k*(r-mean)
			}
			v, ok := ParametricVaR(scaled, 0.95)
			require.True(t, ok)
			assert.GreaterOrEqual(t, v, prev)
			prev = v
		}
	})
}

func TestZScore(t *testing.T) {
	assert.Equal(t, 1.282, ZScore(0.90))
	assert.Equal(t, 1.645, ZScore(0.95))
	assert.Equal(t, 2.326, ZScore(0.99))
	assert.Equal(t, 1.645, ZScore(0.975), "unknown level falls back to 95%")
}

func TestMonteCarloVaR(t *testing.T) {
	ctx := context.Background()

	t.Run("seeded runs are identical", func(t *testing.T) {
		returns := ladderReturns()
		a, ok, err := MonteCarloVaR(ctx, returns, 0.95, 10000, rand.New(rand.NewSource(7)))
		require.NoError(t, err)
		require.True(t, ok)
		b, _, _ := MonteCarloVaR(ctx, returns, 0.95, 10000, rand.New(rand.NewSource(7)))
		assert.Equal(t, a, b)
	})

	t.Run("approximates the parametric value for zero-mean returns", func(t *testing.T) {
		returns := []float64{0.02, -0.02}
		v, ok, err := MonteCarloVaR(ctx, returns, 0.95, 10000, rand.New(rand.NewSource(42)))
		require.NoError(t, err)
		require.True(t, ok)
		assert.InDelta(t, 1.645*0.02, v, 0.002)
	})

	t.Run("zero dispersion collapses to the mean", func(t *testing.T) {
		v, ok, err := MonteCarloVaR(ctx, []float64{-0.01, -0.01}, 0.95, 10000, rand.New(rand.NewSource(1)))
		require.NoError(t, err)
		require.True(t, ok)
		assert.InDelta(t, 0.01, v, 1e-12)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, _, err := MonteCarloVaR(cctx, ladderReturns(), 0.95, 10000, rand.New(rand.NewSource(1)))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCalculateVaR(t *testing.T) {
	ctx := context.Background()

	t.Run("averages the methods that produced a value", func(t *testing.T) {
		// 수익률 1개: parametric 불가, historical/monte carlo 는 -0.05 로 수렴
		v, breakdown, ok, err := CalculateVaR(ctx, []float64{-0.05}, 0.95, 10000, rand.New(rand.NewSource(1)))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Nil(t, breakdown.Parametric)
		require.NotNil(t, breakdown.Historical)
		require.NotNil(t, breakdown.MonteCarlo)
		assert.InDelta(t, 0.05, v, 1e-12)
	})

	t.Run("all three methods", func(t *testing.T) {
		returns := ladderReturns()
		v, breakdown, ok, err := CalculateVaR(ctx, returns, 0.95, 10000, rand.New(rand.NewSource(1)))
		require.NoError(t, err)
		require.True(t, ok)
		want := (*breakdown.Historical + *breakdown.Parametric + *breakdown.MonteCarlo) / 3
		assert.InDelta(t, want, v, 1e-12)
	})

	t.Run("no data", func(t *testing.T) {
		_, _, ok, err := CalculateVaR(ctx, nil, 0.95, 10000, rand.New(rand.NewSource(1)))
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestExceedanceProbability(t *testing.T) {
	assert.Equal(t, 0.25, ExceedanceProbability([]float64{-0.1, -0.02, 0.01, 0.03}, 0.05))
	assert.Equal(t, 0.0, ExceedanceProbability(nil, 0.05))
	assert.False(t, math.IsNaN(ExceedanceProbability([]float64{0}, 0)))
}
