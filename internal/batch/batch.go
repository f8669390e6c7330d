// Package batch provides a bounded, order-preserving worker pool for fanning
// a slice of inputs out across a provider (or any other per-item function)
// that exposes no native batch method. It generalizes the teacher's
// channel+sync.WaitGroup worker pool (internal/service.GeocodingService's
// jobs-channel loop) into a reusable generic helper, and adds an
// errgroup-based cancellation-aware variant for two-way fan-out callers
// (internal/districtassign) that need to abort together on first error.
package batch

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the worker-pool size used when a caller passes <= 0.
const DefaultConcurrency = 3

// Result pairs one input's output with any error produced for it, keeping
// results addressable by the caller's original index.
type Result[Out any] struct {
	Value Out
	Err   error
}

// Run fans items out across concurrency workers and returns one Result per
// item, in input order. Cancellation is cooperative: once ctx is done, the
// pool stops handing out new items but lets in-flight calls to fn drain and
// still records their results.
func Run[In, Out any](ctx context.Context, items []In, concurrency int, fn func(context.Context, In) (Out, error)) []Result[Out] {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]Result[Out], len(items))
	type job struct {
		index int
		item  In
	}

	jobs := make(chan job, len(items))
	var wg sync.WaitGroup

	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if err := ctx.Err(); err != nil {
					results[j.index] = Result[Out]{Err: err}
					continue
				}
				out, err := fn(ctx, j.item)
				results[j.index] = Result[Out]{Value: out, Err: err}
			}
		}()
	}

	for i, item := range items {
		select {
		case <-ctx.Done():
			results[i] = Result[Out]{Err: ctx.Err()}
			continue
		default:
		}
		jobs <- job{index: i, item: item}
	}
	close(jobs)

	wg.Wait()
	return results
}

// RunGroup is the errgroup-based variant for callers that want the whole
// fan-out to abort as soon as any single call returns an error (rather than
// batch.Run's "collect every result" semantics). It returns the first error
// reported, if any; concurrency <= 0 falls back to DefaultConcurrency.
func RunGroup(ctx context.Context, n int, concurrency int, fn func(ctx context.Context, i int) error) error {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i := 0; i < n; i++ {
		idx := i
		g.Go(func() error {
			return fn(gctx, idx)
		})
	}

	return g.Wait()
}
