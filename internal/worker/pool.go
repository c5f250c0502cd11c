package worker

import (
	"context"
	"sync"
	"sync/atomic"
)

// Job is a unit of work run by a Pool
type Job interface {
	Execute(ctx context.Context) Result
}

// Result is what a Job hands back
type Result interface {
	GetError() error
}

// ProgressFunc is called after each job finishes with the number of
// finished jobs and the batch size. It may be called concurrently.
type ProgressFunc func(done, total int)

// PoolOption customizes a Pool
type PoolOption func(*Pool)

// WithProgress reports job completion to fn
func WithProgress(fn ProgressFunc) PoolOption {
	return func(p *Pool) { p.progress = fn }
}

// Pool runs batches of jobs on a fixed number of goroutines.
//
// Every submitted job is executed, even after the pool context is cancelled:
// jobs observe cancellation through the context they receive and are expected
// to return quickly with a degraded result.
type Pool struct {
	workers  int
	ctx      context.Context
	cancel   context.CancelFunc
	progress ProgressFunc
}

// NewPool creates a pool bound to ctx
func NewPool(ctx context.Context, workers int, opts ...PoolOption) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)

	p := &Pool{workers: workers, ctx: ctx, cancel: cancel}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes every job and returns the results in completion order
func (p *Pool) Run(jobs []Job) []Result {
	queue := make(chan Job)
	results := make(chan Result, len(jobs))

	var finished atomic.Int64
	var wg sync.WaitGroup
	for range min(p.workers, max(len(jobs), 1)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range queue {
				results <- job.Execute(p.ctx)
				if p.progress != nil {
					p.progress(int(finished.Add(1)), len(jobs))
				}
			}
		}()
	}

	for _, job := range jobs {
		queue <- job
	}
	close(queue)
	wg.Wait()
	close(results)

	out := make([]Result, 0, len(jobs))
	for r := range results {
		out = append(out, r)
	}
	return out
}

// Shutdown cancels the pool context; running jobs see ctx.Done()
func (p *Pool) Shutdown() {
	p.cancel()
}

// Workers returns the pool size
func (p *Pool) Workers() int {
	return p.workers
}
