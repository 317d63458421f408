// Package main - quant CLI
// 통합 CLI 진입점
//
// 사용법:
//
//	go run ./cmd/quant analyze BTCUSDT
//	go run ./cmd/quant risk --portfolio portfolio.json
//	go run ./cmd/quant backend start
package main

import (
	"os"

	"github.com/wonny/quantengine/cmd/quant/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
