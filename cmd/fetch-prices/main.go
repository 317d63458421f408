// fetch-prices: Binance 선물 캔들을 price_bars 테이블로 적재
//
// 사용법:
//
//	go run ./cmd/fetch-prices BTCUSDT ETHUSDT
//	FETCH_TIMEFRAME=1h go run ./cmd/fetch-prices BTCUSDT
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/wonny/quantengine/internal/domain/market"
	"github.com/wonny/quantengine/internal/infra/database/postgres"
	"github.com/wonny/quantengine/internal/infra/marketdata"
	"github.com/wonny/quantengine/internal/pkg/config"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	symbols := os.Args[1:]
	if len(symbols) == 0 {
		fmt.Println("Usage: fetch-prices SYMBOL [SYMBOL...]")
		os.Exit(1)
	}

	if !cfg.Database.Enabled {
		fmt.Println("DATABASE_URL is required")
		os.Exit(1)
	}

	timeframe := market.Timeframe(cfg.Market.Timeframe)
	if tf := os.Getenv("FETCH_TIMEFRAME"); tf != "" {
		timeframe = market.Timeframe(tf)
	}

	// Connect to database
	ctx := context.Background()
	dbPool, err := postgres.NewPool(ctx, cfg.Database, cfg.Logging)
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	binance := marketdata.NewBinanceProvider(cfg.Binance)
	priceRepo := postgres.NewPriceRepository(dbPool.Pool)

	fmt.Printf("Fetching %s klines for %d symbols: %s\n", timeframe, len(symbols), strings.Join(symbols, ", "))

	saved, failed := 0, 0
	for _, symbol := range symbols {
		series, err := binance.GetSeries(ctx, symbol, timeframe)
		if err != nil {
			fmt.Printf("Failed to fetch %s: %v\n", symbol, err)
			failed++
			continue
		}

		n, err := priceRepo.SaveSeries(ctx, series)
		if err != nil {
			fmt.Printf("Failed to save %s: %v\n", symbol, err)
			failed++
			continue
		}
		saved += n

		last := series.Bars[len(series.Bars)-1]
		fmt.Printf("  %s: %d bars, last close %.4f (%s)\n",
			symbol, n, last.Close, last.Date.Format("2006-01-02 15:04"))
	}

	fmt.Printf("✅ Saved %d bars (%d symbols failed)\n", saved, failed)
	if failed > 0 {
		os.Exit(1)
	}
}
