// Package signals holds the strategy signal generators.
//
// Each generator is independently callable and never fails on short or
// malformed input: it returns a NEUTRAL signal with zero confidence instead.
package signals

import (
	"context"

	"github.com/wonny/quantengine/internal/domain/market"
	"github.com/wonny/quantengine/internal/domain/signals"
)

// Generator 전략 신호 생성기
type Generator interface {
	// ID returns the strategy identifier used as the fusion weight key.
	ID() signals.StrategyID

	// Generate produces a signal for the series. An error is reserved for
	// cancellation; bad data yields a NEUTRAL signal instead.
	Generate(ctx context.Context, series market.PriceSeries) (signals.Signal, error)
}

// DefaultGenerators returns the built-in strategy set with default parameters.
func DefaultGenerators() []Generator {
	return []Generator{
		NewMeanReversion(DefaultMeanReversionParams()),
		NewTrendBreakout(DefaultTrendBreakoutParams()),
		NewCompositeMomentum(DefaultMomentumParams()),
		NewPriceAction(),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
