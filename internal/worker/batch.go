package worker

import (
	"context"
)

// indexedJob adapts a function over one batch item to the Job interface
type indexedJob[T, R any] struct {
	index int
	item  T
	fn    func(ctx context.Context, index int, item T) R
}

// Execute runs the wrapped function
func (j *indexedJob[T, R]) Execute(ctx context.Context) Result {
	return &indexedResult[R]{index: j.index, value: j.fn(ctx, j.index, j.item)}
}

// indexedResult carries a value back to its input position
type indexedResult[R any] struct {
	index int
	value R
}

// GetError returns nil; per-item failures are part of the value
func (r *indexedResult[R]) GetError() error {
	return nil
}

// Map applies fn to every item on a pool of workers and returns the values in
// input order. The output always has len(items) entries.
func Map[T, R any](ctx context.Context, workers int, items []T, fn func(ctx context.Context, index int, item T) R, opts ...PoolOption) []R {
	out := make([]R, len(items))
	if len(items) == 0 {
		return out
	}

	if workers > len(items) {
		workers = len(items)
	}

	pool := NewPool(ctx, workers, opts...)
	defer pool.Shutdown()

	jobs := make([]Job, len(items))
	for i, item := range items {
		jobs[i] = &indexedJob[T, R]{index: i, item: item, fn: fn}
	}

	for _, result := range pool.Run(jobs) {
		r := result.(*indexedResult[R])
		out[r.index] = r.value
	}
	return out
}
