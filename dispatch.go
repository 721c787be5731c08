package sqsrepo

import (
	"context"

	"golang.org/x/sync/errgroup"
)

type batchFunc[T any] func(ctx context.Context, batch []T) (*Result[T], error)

// dispatchBatches runs fn for every batch, at most concurrency at a time, and
// concatenates the per-batch results in batch order. The first error cancels
// the batches that have not started yet; those, and the batch that failed,
// are reported in Failed so the result still accounts for every item.
func dispatchBatches[T any](ctx context.Context, concurrency int, batches [][]T, fn batchFunc[T]) (*Result[T], error) {
	results := make([]*Result[T], len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	total := 0

	for i, batch := range batches {
		total += len(batch)

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = &Result[T]{Failed: batch}
				return err
			}

			r, err := fn(gctx, batch)
			if err != nil {
				results[i] = &Result[T]{Failed: batch}
				return err
			}

			results[i] = r

			return nil
		})
	}

	err := g.Wait()

	merged := newResult[T](total)
	for _, r := range results {
		merged.merge(r)
	}

	return merged, err
}
