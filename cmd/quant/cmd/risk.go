package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/quantengine/internal/domain/risk"
	riskengine "github.com/wonny/quantengine/internal/service/risk"
)

var riskPortfolioFile string

// riskCmd 포트폴리오 리스크 평가
var riskCmd = &cobra.Command{
	Use:   "risk",
	Short: "포트폴리오 리스크 리포트",
	Long: `포트폴리오 JSON 을 읽어 VaR, 낙폭, 스트레스 테스트 결과를 출력합니다.

파일 형식:
  {"portfolio": {"assets": [{"symbol": "AAPL", "weight": 0.6, "returns": [...]}], "total_value": 100000},
   "market_values": [...]}

Examples:
  go run ./cmd/quant risk --portfolio portfolio.json`,
	RunE: runRisk,
}

func init() {
	riskCmd.Flags().StringVarP(&riskPortfolioFile, "portfolio", "p", "", "portfolio JSON file")
	_ = riskCmd.MarkFlagRequired("portfolio")
}

type riskInput struct {
	Portfolio    risk.Portfolio `json:"portfolio"`
	MarketValues []float64      `json:"market_values,omitempty"`
}

func runRisk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(riskPortfolioFile)
	if err != nil {
		return fmt.Errorf("read portfolio: %w", err)
	}
	var in riskInput
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("parse portfolio: %w", err)
	}

	engine, err := riskengine.NewEngine(cfg.Engine.Risk, nil)
	if err != nil {
		return err
	}
	report := engine.AssessPortfolioRisk(cmd.Context(), in.Portfolio, in.MarketValues)

	return printJSON(cmd.OutOrStdout(), report)
}
