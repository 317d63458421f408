package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/wonny/quantengine/internal/domain/market"
)

// defaultSeriesLimit 시계열 조회 기본 봉 수
const defaultSeriesLimit = 500

// PriceRepository serves stored bars and indicator snapshots
// (implements market.Provider and position.PriceSource)
type PriceRepository struct {
	pool  *pgxpool.Pool
	limit int
}

// NewPriceRepository creates a new PriceRepository
func NewPriceRepository(pool *pgxpool.Pool) *PriceRepository {
	return &PriceRepository{pool: pool, limit: defaultSeriesLimit}
}

// ============================================================================
// Bars
// ============================================================================

// GetSeries returns the latest bars in chronological order
func (r *PriceRepository) GetSeries(ctx context.Context, symbol string, timeframe market.Timeframe) (market.PriceSeries, error) {
	query := `
		SELECT ts, open, high, low, close, volume
		FROM (
			SELECT ts, open, high, low, close, volume
			FROM market.price_bars
			WHERE symbol = $1 AND timeframe = $2
			ORDER BY ts DESC
			LIMIT $3
		) latest
		ORDER BY ts ASC
	`

	rows, err := r.pool.Query(ctx, query, symbol, timeframe, r.limit)
	if err != nil {
		return market.PriceSeries{}, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	series := market.PriceSeries{Symbol: symbol, Timeframe: timeframe}
	for rows.Next() {
		var b market.Bar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return market.PriceSeries{}, fmt.Errorf("scan bar: %w", err)
		}
		series.Bars = append(series.Bars, b)
	}
	if err := rows.Err(); err != nil {
		return market.PriceSeries{}, fmt.Errorf("rows error: %w", err)
	}
	return series, nil
}

// SaveSeries upserts bars keyed by (symbol, timeframe, ts)
func (r *PriceRepository) SaveSeries(ctx context.Context, series market.PriceSeries) (int, error) {
	if series.Len() == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO market.price_bars (symbol, timeframe, ts, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol, timeframe, ts) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume
	`

	batch := &pgx.Batch{}
	for _, b := range series.Bars {
		batch.Queue(query, series.Symbol, series.Timeframe, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range series.Bars {
		if _, err := br.Exec(); err != nil {
			return i, fmt.Errorf("upsert bar %d: %w", i, err)
		}
	}
	return series.Len(), nil
}

// CurrentPrice returns the close of the most recent bar of any timeframe
func (r *PriceRepository) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	query := `
		SELECT close
		FROM market.price_bars
		WHERE symbol = $1
		ORDER BY ts DESC
		LIMIT 1
	`

	var last float64
	if err := r.pool.QueryRow(ctx, query, symbol).Scan(&last); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("no price for %s", symbol)
		}
		return decimal.Zero, fmt.Errorf("query current price: %w", err)
	}
	return decimal.NewFromFloat(last), nil
}

// ============================================================================
// Indicators
// ============================================================================

// GetIndicators returns the latest indicator snapshot; NULL columns stay nil
func (r *PriceRepository) GetIndicators(ctx context.Context, symbol string) (*market.Indicators, error) {
	query := `
		SELECT rsi, macd, macd_signal, stochastic_k, stochastic_d, fear_greed, put_call_ratio
		FROM market.indicator_snapshots
		WHERE symbol = $1
		ORDER BY ts DESC
		LIMIT 1
	`

	var ind market.Indicators
	err := r.pool.QueryRow(ctx, query, symbol).Scan(
		&ind.RSI,
		&ind.MACD,
		&ind.MACDSignal,
		&ind.StochasticK,
		&ind.StochasticD,
		&ind.FearGreed,
		&ind.PutCallRatio,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// 스냅샷 없음 = 모든 지표 "알 수 없음"
			return &market.Indicators{}, nil
		}
		return nil, fmt.Errorf("query indicators: %w", err)
	}
	return &ind, nil
}
