package signals

import "context"

// DecisionSink 확정된 의사결정 보고 대상 (fire-and-forget)
type DecisionSink interface {
	// 융합 결과 발행
	PublishDecision(ctx context.Context, decision *FusedDecision) error
}
