package signals

import "errors"

var (
	// ErrDataInsufficient 지표 계산에 필요한 데이터 부족
	ErrDataInsufficient = errors.New("insufficient data")

	// ErrEstimatorFailure 전략/예측 모델 실패
	ErrEstimatorFailure = errors.New("estimator failure")

	// ErrStrategyTimeout 전략 제한 시간 초과
	ErrStrategyTimeout = errors.New("strategy timed out")

	// ErrInvalidWeights 가중치 테이블 오류
	ErrInvalidWeights = errors.New("invalid weight table")
)
