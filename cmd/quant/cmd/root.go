// Package cmd - quant CLI commands
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/wonny/quantengine/internal/pkg/config"
	"github.com/wonny/quantengine/internal/pkg/logger"
)

const cliVersion = "1.0.0"

var (
	// 공통 플래그
	cfgFile string
	verbose bool
)

// rootCmd 루트 커맨드
var rootCmd = &cobra.Command{
	Use:   "quant",
	Short: "Quant Decision Engine - CLI",
	Long: `Quant Decision Engine - CLI

Usage:
    go run ./cmd/quant [command]

Commands:
    analyze     SYMBOL        - Fused decision for one symbol
    risk        --portfolio   - Portfolio risk report
    backend     start/stop    - Runtime server (Port 8099)
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute 루트 커맨드 실행
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "engine YAML file (default is $QUANT_CONFIG_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(riskCmd)
	rootCmd.AddCommand(backendCmd)
}

// initConfig reads in .env and ENV variables if set
func initConfig() error {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		// .env 파일이 없어도 계속 진행 (환경변수로 설정 가능)
		if verbose {
			fmt.Fprintln(os.Stderr, "Warning: .env file not found, using environment variables")
		}
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	return logger.Init(logger.Config{
		Level:          level,
		Format:         "pretty",
		ServiceName:    "quant-cli",
		ServiceVersion: cliVersion,
	})
}

// loadConfig --config 가 없으면 QUANT_CONFIG_FILE 사용
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = os.Getenv("QUANT_CONFIG_FILE")
	}
	return config.LoadFile(path)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
