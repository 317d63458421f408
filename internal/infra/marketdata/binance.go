package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/wonny/quantengine/internal/domain/market"
	"github.com/wonny/quantengine/internal/pkg/config"
	"github.com/wonny/quantengine/internal/strategy/indicator"
)

const (
	maxRetries     = 3
	baseBackoff    = 100 * time.Millisecond
	invalidSymbol  = -1121
	indicatorFrame = market.Timeframe1h
)

var supportedIntervals = map[market.Timeframe]string{
	market.Timeframe1m:  "1m",
	market.Timeframe15m: "15m",
	market.Timeframe1h:  "1h",
	market.Timeframe4h:  "4h",
	market.Timeframe1d:  "1d",
}

// BinanceProvider serves futures klines as price series
// (implements market.Provider and position.PriceSource)
type BinanceProvider struct {
	client      *futures.Client
	rateLimiter *rate.Limiter
	limit       int
}

// BinanceOption configures a BinanceProvider
type BinanceOption func(*BinanceProvider)

// WithBaseURL points the client at another endpoint (testnet, local stub)
func WithBaseURL(url string) BinanceOption {
	return func(p *BinanceProvider) {
		p.client.BaseURL = url
	}
}

// WithHTTPClient replaces the underlying http client
func WithHTTPClient(c *http.Client) BinanceOption {
	return func(p *BinanceProvider) {
		p.client.HTTPClient = c
	}
}

// NewBinanceProvider creates a rate limited futures market data client
func NewBinanceProvider(cfg config.BinanceConfig, opts ...BinanceOption) *BinanceProvider {
	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	client.HTTPClient = &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	limit := cfg.Limit
	if limit <= 0 {
		limit = 500
	}
	rps := cfg.RateLimit
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 20
	}

	p := &BinanceProvider{
		client:      client,
		rateLimiter: rate.NewLimiter(rate.Limit(rps), burst),
		limit:       limit,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GetSeries fetches the latest klines for symbol in chronological order
func (p *BinanceProvider) GetSeries(ctx context.Context, symbol string, timeframe market.Timeframe) (market.PriceSeries, error) {
	interval, ok := supportedIntervals[timeframe]
	if !ok {
		return market.PriceSeries{}, fmt.Errorf("unsupported timeframe %q", timeframe)
	}

	klines, err := p.klines(ctx, symbol, interval)
	if err != nil {
		return market.PriceSeries{}, err
	}
	if len(klines) == 0 {
		return market.PriceSeries{}, fmt.Errorf("%s: %w", symbol, market.ErrEmptySeries)
	}

	series := market.PriceSeries{Symbol: symbol, Timeframe: timeframe, Bars: make([]market.Bar, 0, len(klines))}
	for _, k := range klines {
		bar, err := klineToBar(k)
		if err != nil {
			return market.PriceSeries{}, fmt.Errorf("convert kline %d: %w", k.OpenTime, err)
		}
		series.Bars = append(series.Bars, bar)
	}
	return series, nil
}

// GetIndicators derives an oscillator snapshot from hourly klines.
// 심리 지표(fear/greed, put/call)는 제공하지 않음
func (p *BinanceProvider) GetIndicators(ctx context.Context, symbol string) (*market.Indicators, error) {
	series, err := p.GetSeries(ctx, symbol, indicatorFrame)
	if err != nil {
		return nil, err
	}
	return DeriveIndicators(series), nil
}

// CurrentPrice returns the last traded price from the ticker endpoint
func (p *BinanceProvider) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := p.rateLimiter.Wait(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("rate limiter: %w", err)
	}

	prices, err := p.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return decimal.Zero, mapAPIError(symbol, fmt.Errorf("get price: %w", err))
	}
	for _, sp := range prices {
		if sp.Symbol != symbol {
			continue
		}
		price, err := decimal.NewFromString(sp.Price)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parse price %q: %w", sp.Price, err)
		}
		return price, nil
	}
	return decimal.Zero, fmt.Errorf("%s: %w", symbol, market.ErrSymbolNotFound)
}

// klines retries transient failures with exponential backoff
func (p *BinanceProvider) klines(ctx context.Context, symbol, interval string) ([]*futures.Kline, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := p.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		klines, err := p.client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			Limit(p.limit).
			Do(ctx)
		if err == nil {
			return klines, nil
		}

		lastErr = mapAPIError(symbol, err)
		if errors.Is(lastErr, market.ErrSymbolNotFound) || ctx.Err() != nil {
			return nil, lastErr
		}

		if attempt == maxRetries-1 {
			break
		}

		backoff := baseBackoff * time.Duration(1<<attempt)
		log.Warn().
			Err(err).
			Str("symbol", symbol).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("kline fetch failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, fmt.Errorf("get klines after %d attempts: %w", maxRetries, lastErr)
}

func mapAPIError(symbol string, err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) && apiErr.Code == invalidSymbol {
		return fmt.Errorf("%s: %w", symbol, market.ErrSymbolNotFound)
	}
	return err
}

func klineToBar(k *futures.Kline) (market.Bar, error) {
	raw := [5]string{k.Open, k.High, k.Low, k.Close, k.Volume}
	var values [5]float64
	for i, r := range raw {
		v, err := strconv.ParseFloat(r, 64)
		if err != nil {
			return market.Bar{}, fmt.Errorf("parse %q: %w", r, err)
		}
		values[i] = v
	}

	return market.Bar{
		Date:   time.UnixMilli(k.OpenTime).UTC(),
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		Volume: values[4],
	}, nil
}

// DeriveIndicators computes RSI(14), MACD(12,26,9) and Stochastic(14,3) from a series
func DeriveIndicators(series market.PriceSeries) *market.Indicators {
	ind := &market.Indicators{}
	closes := series.Closes()
	if len(closes) < 2 {
		return ind
	}

	if len(closes) > 14 {
		ind.RSI = market.Float(indicator.RSI(closes, 14))
	}
	if len(closes) >= 26 {
		macd := indicator.MACD(closes, 12, 26, 9)
		ind.MACD = market.Float(macd.MACD)
		ind.MACDSignal = market.Float(macd.Signal)
	}
	if len(closes) >= 14 {
		stoch := indicator.Stochastic(series.Highs(), series.Lows(), closes, 14, 3)
		ind.StochasticK = market.Float(stoch.K)
		ind.StochasticD = market.Float(stoch.D)
	}
	return ind
}
