package fusion

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/quantengine/internal/domain/signals"
)

// Task 동시 실행 단위 (전략 또는 예측 모델 하나)
type Task[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// Result 태스크별 결과. Err 가 nil 이 아니면 Value 는 의미 없음.
type Result[T any] struct {
	Name    string
	Value   T
	Err     error
	Elapsed time.Duration
}

// RunAll 모든 태스크를 동시에 실행하고 입력 순서대로 결과를 모은다.
//
// 한 태스크의 실패/타임아웃/패닉은 그 태스크의 Result.Err 로만 기록되고
// 그룹 전체를 중단시키지 않는다. timeout 이 지나면 태스크가 반환하지 않아도
// ErrStrategyTimeout 으로 기록하고 다음으로 진행한다.
func RunAll[T any](ctx context.Context, timeout time.Duration, tasks []Task[T]) []Result[T] {
	results := make([]Result[T], len(tasks))

	var g errgroup.Group
	for i, task := range tasks {
		g.Go(func() error {
			results[i] = runOne(ctx, timeout, task)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func runOne[T any](ctx context.Context, timeout time.Duration, task Task[T]) Result[T] {
	start := time.Now()
	res := Result[T]{Name: task.Name}

	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%w: panic: %v", signals.ErrEstimatorFailure, r)}
			}
		}()
		v, err := task.Run(tctx)
		done <- outcome{value: v, err: err}
	}()

	select {
	case out := <-done:
		res.Value, res.Err = out.value, out.err
		if res.Err != nil && tctx.Err() == context.DeadlineExceeded {
			res.Err = fmt.Errorf("%w: %s after %s", signals.ErrStrategyTimeout, task.Name, timeout)
		}
	case <-tctx.Done():
		if ctx.Err() != nil {
			res.Err = ctx.Err()
		} else {
			res.Err = fmt.Errorf("%w: %s after %s", signals.ErrStrategyTimeout, task.Name, timeout)
		}
	}

	res.Elapsed = time.Since(start)
	return res
}
