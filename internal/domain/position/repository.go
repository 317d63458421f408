package position

import (
	"context"

	"github.com/shopspring/decimal"
)

// Archive 청산된 포지션 보관 (fire-and-forget)
type Archive interface {
	// 청산 포지션 기록
	ArchivePosition(ctx context.Context, pos *Position) error
}

// PriceSource 모니터 루프용 현재가 조회
type PriceSource interface {
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}
