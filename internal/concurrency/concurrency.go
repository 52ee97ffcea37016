package concurrency

import (
	"context"

	"github.com/sourcegraph/conc/pool"
)

// NewPool returns a new pool where each task respects context cancellation.
// Wait() will only return the first error seen.
func NewPool(ctx context.Context, maxGoroutines int) *pool.ContextPool {
	return pool.New().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError().
		WithMaxGoroutines(maxGoroutines)
}

// Map applies fn to every item with at most maxGoroutines running at once.
// Results keep the order of items. The first error cancels the remaining work
// and is returned.
func Map[T, R any](ctx context.Context, maxGoroutines int, items []T, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	if maxGoroutines < 1 {
		maxGoroutines = 1
	}

	results := make([]R, len(items))
	p := NewPool(ctx, maxGoroutines)
	for i, item := range items {
		p.Go(func(ctx context.Context) error {
			r, err := fn(ctx, item)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
