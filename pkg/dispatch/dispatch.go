// Package dispatch runs embarrassingly parallel batch tasks over a fixed
// worker pool. Results arrive in completion order, never in dispatch order;
// callers must not rely on ordering beyond the Ordinal carried with each
// result. A failing task cancels the whole batch (fail-fast).
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/tremor-labs/tremor-engine/pkg/apperrors"
)

// Pool is a fixed-size worker pool for CPU-bound batch tasks.
type Pool struct {
	workers int
	logger  *zap.Logger
}

// NewPool creates a pool with the given number of workers.
func NewPool(workers int, logger *zap.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		workers: workers,
		logger:  logger.Named("dispatch"),
	}
}

// Result pairs a task result with the ordinal of the argument that produced
// it. The ordinal lets reducers restore a deterministic order when they need
// one.
type Result[R any] struct {
	Ordinal int
	Value   R
}

// Map applies task to every argument and returns the results in completion
// order. The first task error cancels the remaining tasks and is returned
// wrapped in apperrors.ErrTaskFailed; no partial results are returned in
// that case.
func Map[A, R any](ctx context.Context, p *Pool, args []A, task func(context.Context, A) (R, error)) ([]Result[R], error) {
	results := make([]Result[R], 0, len(args))
	err := run(ctx, p, args, task, func(r Result[R]) {
		results = append(results, r)
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// MapReduce applies task to every argument and folds the results into acc in
// completion order. The reduction runs single-threaded in the calling
// goroutine.
func MapReduce[A, R, Acc any](ctx context.Context, p *Pool, args []A, task func(context.Context, A) (R, error), reduce func(Acc, Result[R]) Acc, acc Acc) (Acc, error) {
	err := run(ctx, p, args, task, func(r Result[R]) {
		acc = reduce(acc, r)
	})
	if err != nil {
		var zero Acc
		return zero, err
	}
	return acc, nil
}

func run[A, R any](ctx context.Context, p *Pool, args []A, task func(context.Context, A) (R, error), collect func(Result[R])) error {
	if len(args) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type indexed struct {
		ordinal int
		arg     A
	}
	jobs := make(chan indexed)
	out := make(chan Result[R])
	errc := make(chan error, p.workers)

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				value, err := task(ctx, job.arg)
				if err != nil {
					p.logger.Error("Task failed, cancelling batch",
						zap.Int("ordinal", job.ordinal),
						zap.Error(err))
					errc <- fmt.Errorf("task %d: %w", job.ordinal, err)
					cancel()
					return
				}
				select {
				case out <- Result[R]{Ordinal: job.ordinal, Value: value}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, arg := range args {
			select {
			case jobs <- indexed{ordinal: i, arg: arg}:
			case <-ctx.Done():
				return
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	collected := 0
	for collected < len(args) {
		select {
		case r := <-out:
			collect(r)
			collected++
		case <-done:
			// Workers exited early: either a task failed or the parent
			// context was cancelled.
			select {
			case err := <-errc:
				return fmt.Errorf("%w: %v", apperrors.ErrTaskFailed, err)
			default:
				return ctx.Err()
			}
		}
	}

	wg.Wait()
	return nil
}
