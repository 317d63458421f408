package market

import "errors"

var (
	// ErrSymbolNotFound 심볼 데이터 없음
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrEmptySeries 빈 시계열
	ErrEmptySeries = errors.New("empty price series")
)
