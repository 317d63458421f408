package risk

import "errors"

var (
	// ErrInsufficientData 계산에 필요한 데이터 부족
	ErrInsufficientData = errors.New("insufficient portfolio data")

	// ErrRiskComputation 리스크 계산 실패
	ErrRiskComputation = errors.New("risk computation failed")

	// ErrInvalidPortfolio 잘못된 포트폴리오 입력 (NaN, 음수 평가금액 등)
	ErrInvalidPortfolio = errors.New("invalid portfolio")
)
