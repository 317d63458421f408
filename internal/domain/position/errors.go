package position

import "errors"

var (
	// ErrPositionNotFound 포지션 없음
	ErrPositionNotFound = errors.New("position not found")

	// ErrInvalidTransition 허용되지 않는 상태 전이
	ErrInvalidTransition = errors.New("invalid position state transition")

	// ErrTradingLimit 거래 한도 초과 (최대 포지션, 재진입 쿨다운, 일일 손실)
	ErrTradingLimit = errors.New("trading limit reached")

	// ErrNotExecutable 실행 불가 의사결정
	ErrNotExecutable = errors.New("decision is not executable")

	// ErrInvalidPrice 잘못된 가격
	ErrInvalidPrice = errors.New("invalid price")
)
