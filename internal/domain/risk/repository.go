package risk

import "context"

// PortfolioSource 주기적 리스크 점검용 포트폴리오 스냅샷 공급자
type PortfolioSource interface {
	// 현재 포트폴리오와 벤치마크 가격 이력 조회
	Snapshot(ctx context.Context) (Portfolio, []float64, error)
}
