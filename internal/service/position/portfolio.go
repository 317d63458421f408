package position

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/wonny/quantengine/internal/domain/market"
	"github.com/wonny/quantengine/internal/domain/position"
	"github.com/wonny/quantengine/internal/domain/risk"
	"github.com/wonny/quantengine/internal/strategy/indicator"
)

// PortfolioSource builds the risk scheduler's snapshot from open positions
// (implements risk.PortfolioSource)
type PortfolioSource struct {
	manager   *Manager
	provider  market.Provider
	timeframe market.Timeframe
	benchmark string
}

// NewPortfolioSource creates a source; benchmark may be empty (beta defaults to 1)
func NewPortfolioSource(m *Manager, provider market.Provider, timeframe market.Timeframe, benchmark string) *PortfolioSource {
	if timeframe == "" {
		timeframe = market.Timeframe1d
	}
	return &PortfolioSource{manager: m, provider: provider, timeframe: timeframe, benchmark: benchmark}
}

// Snapshot weights each symbol by its current notional
func (s *PortfolioSource) Snapshot(ctx context.Context) (risk.Portfolio, []float64, error) {
	open := s.manager.List(position.StatusOpen, position.StatusMonitoring)
	if len(open) == 0 {
		return risk.Portfolio{}, nil, fmt.Errorf("no open positions: %w", risk.ErrInsufficientData)
	}

	notional := make(map[string]decimal.Decimal)
	total := decimal.Zero
	for _, p := range open {
		price := p.CurrentPrice
		if !price.IsPositive() {
			price = p.EntryPrice
		}
		v := price.Mul(decimal.NewFromInt(p.Quantity))
		notional[p.Symbol] = notional[p.Symbol].Add(v)
		total = total.Add(v)
	}
	if !total.IsPositive() {
		return risk.Portfolio{}, nil, fmt.Errorf("zero portfolio value: %w", risk.ErrInvalidPortfolio)
	}

	symbols := make([]string, 0, len(notional))
	for sym := range notional {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	portfolio := risk.Portfolio{TotalValue: total.InexactFloat64()}
	for _, sym := range symbols {
		series, err := s.provider.GetSeries(ctx, sym, s.timeframe)
		if err != nil {
			return risk.Portfolio{}, nil, fmt.Errorf("series %s: %w", sym, err)
		}
		portfolio.Assets = append(portfolio.Assets, risk.Asset{
			Symbol:  sym,
			Weight:  notional[sym].Div(total).InexactFloat64(),
			Returns: indicator.Returns(series.Closes()),
		})
	}

	var benchmark []float64
	if s.benchmark != "" {
		series, err := s.provider.GetSeries(ctx, s.benchmark, s.timeframe)
		if err != nil {
			return risk.Portfolio{}, nil, fmt.Errorf("benchmark %s: %w", s.benchmark, err)
		}
		benchmark = series.Closes()
	}

	return portfolio, benchmark, nil
}
