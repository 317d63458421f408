package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/wonny/quantengine/internal/domain/market"
)

// StaticProvider in-memory 시장 데이터 (백테스트, CLI 파일 입력, 테스트)
type StaticProvider struct {
	mu         sync.RWMutex
	series     map[string]map[market.Timeframe]market.PriceSeries
	indicators map[string]*market.Indicators
	prices     map[string]decimal.Decimal
}

// Snapshot JSON 파일 포맷
type Snapshot struct {
	Series     []market.PriceSeries          `json:"series"`
	Indicators map[string]*market.Indicators `json:"indicators,omitempty"`
}

// NewStaticProvider creates an empty provider
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		series:     make(map[string]map[market.Timeframe]market.PriceSeries),
		indicators: make(map[string]*market.Indicators),
		prices:     make(map[string]decimal.Decimal),
	}
}

// LoadFile reads a JSON Snapshot from path
func LoadFile(path string) (*StaticProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read market file: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse market file: %w", err)
	}

	p := NewStaticProvider()
	for _, s := range snap.Series {
		if s.Symbol == "" {
			return nil, fmt.Errorf("parse market file: series without symbol")
		}
		if s.Timeframe == "" {
			s.Timeframe = market.Timeframe1d
		}
		p.SetSeries(s)
	}
	for symbol, ind := range snap.Indicators {
		p.SetIndicators(symbol, ind)
	}
	return p, nil
}

// SetSeries stores a series under its symbol and timeframe
func (p *StaticProvider) SetSeries(s market.PriceSeries) {
	p.mu.Lock()
	defer p.mu.Unlock()

	byFrame, ok := p.series[s.Symbol]
	if !ok {
		byFrame = make(map[market.Timeframe]market.PriceSeries)
		p.series[s.Symbol] = byFrame
	}
	byFrame[s.Timeframe] = s
}

// SetIndicators stores an indicator snapshot
func (p *StaticProvider) SetIndicators(symbol string, ind *market.Indicators) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.indicators[symbol] = ind
}

// SetPrice overrides the current price of symbol
func (p *StaticProvider) SetPrice(symbol string, price decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[symbol] = price
}

// Symbols returns every symbol with at least one series
func (p *StaticProvider) Symbols() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]string, 0, len(p.series))
	for s := range p.series {
		out = append(out, s)
	}
	return out
}

// GetSeries implements market.Provider
func (p *StaticProvider) GetSeries(_ context.Context, symbol string, timeframe market.Timeframe) (market.PriceSeries, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s, ok := p.series[symbol][timeframe]
	if !ok {
		return market.PriceSeries{}, fmt.Errorf("%s/%s: %w", symbol, timeframe, market.ErrSymbolNotFound)
	}
	return s, nil
}

// GetIndicators returns the stored snapshot, or one derived from the daily series
func (p *StaticProvider) GetIndicators(_ context.Context, symbol string) (*market.Indicators, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if ind, ok := p.indicators[symbol]; ok && ind != nil {
		return ind, nil
	}
	byFrame, ok := p.series[symbol]
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, market.ErrSymbolNotFound)
	}
	if s, ok := byFrame[market.Timeframe1d]; ok {
		return DeriveIndicators(s), nil
	}
	return &market.Indicators{}, nil
}

// CurrentPrice returns the override price, else the close of the most recent bar
func (p *StaticProvider) CurrentPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if price, ok := p.prices[symbol]; ok {
		return price, nil
	}

	var latest market.Bar
	for _, s := range p.series[symbol] {
		if s.Len() == 0 {
			continue
		}
		if last := s.Last(); last.Date.After(latest.Date) || latest.Date.IsZero() {
			latest = last
		}
	}
	if latest.Close <= 0 {
		return decimal.Zero, fmt.Errorf("%s: %w", symbol, market.ErrSymbolNotFound)
	}
	return decimal.NewFromFloat(latest.Close), nil
}
