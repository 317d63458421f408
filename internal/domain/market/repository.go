package market

import "context"

// Provider 시장 데이터 공급자
type Provider interface {
	// 심볼/주기별 시계열 조회
	GetSeries(ctx context.Context, symbol string, timeframe Timeframe) (PriceSeries, error)

	// 최신 지표 스냅샷 조회 (부분 누락 허용)
	GetIndicators(ctx context.Context, symbol string) (*Indicators, error)
}
