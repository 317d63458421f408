package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/quantengine/internal/domain/market"
	"github.com/wonny/quantengine/internal/infra/marketdata"
	"github.com/wonny/quantengine/internal/service/fusion"
	riskengine "github.com/wonny/quantengine/internal/service/risk"
)

var (
	analyzeFile      string
	analyzeTimeframe string
	analyzeForecast  bool
)

// analyzeCmd 단일 심볼 분석
var analyzeCmd = &cobra.Command{
	Use:   "analyze SYMBOL",
	Short: "심볼 분석 (융합 의사결정)",
	Long: `전략 신호를 융합한 의사결정을 JSON 으로 출력합니다.
--file 이 없으면 Binance 선물 시세를 사용합니다.

Examples:
  go run ./cmd/quant analyze BTCUSDT --timeframe 4h
  go run ./cmd/quant analyze AAPL --file testdata/market.json --forecast`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeFile, "file", "f", "", "market snapshot JSON")
	analyzeCmd.Flags().StringVarP(&analyzeTimeframe, "timeframe", "t", "1d", "bar timeframe (1m, 15m, 1h, 4h, 1d)")
	analyzeCmd.Flags().BoolVar(&analyzeForecast, "forecast", false, "also print the ensemble forecast")
}

type analyzeOutput struct {
	Decision any `json:"decision"`
	Forecast any `json:"forecast,omitempty"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var provider market.Provider
	if analyzeFile != "" {
		provider, err = marketdata.LoadFile(analyzeFile)
		if err != nil {
			return err
		}
	} else {
		provider = marketdata.NewBinanceProvider(cfg.Binance)
	}

	assessor, err := riskengine.NewEngine(cfg.Engine.Risk, nil)
	if err != nil {
		return err
	}

	engine, err := fusion.NewEngine(cfg.Engine,
		fusion.WithRiskAssessor(assessor),
		fusion.WithProvider(provider),
	)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	symbol := args[0]
	tf := market.Timeframe(analyzeTimeframe)

	series, err := provider.GetSeries(ctx, symbol, tf)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", symbol, err)
	}

	decision, err := engine.Analyze(ctx, symbol, series, fusion.Options{Timeframe: tf, SkipCache: true})
	if err != nil {
		return err
	}
	out := analyzeOutput{Decision: decision}

	if analyzeForecast {
		ind, err := provider.GetIndicators(ctx, symbol)
		if err != nil {
			return fmt.Errorf("indicators %s: %w", symbol, err)
		}
		out.Forecast = engine.Forecast(ctx, symbol, series, ind)
	}

	return printJSON(cmd.OutOrStdout(), out)
}
