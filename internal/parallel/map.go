// Package parallel fans work out over a bounded worker pool while the
// caller consumes the results as a plain iterator. It is used to
// classify many historical run directories at once.
package parallel

import (
	"context"
	"iter"

	"golang.org/x/sync/errgroup"
)

// MapSeq applies mapFunc to every element of seq using at most limit
// concurrent workers and yields the results in completion order, not
// input order. Input elements carrying an error are skipped. Breaking
// out of the result loop or cancelling ctx stops the remaining work.
//
//	for entry, err := range parallel.MapSeq(ctx, 4, ids, classify) { ... }
func MapSeq[E, D any](
	ctx context.Context,
	limit int,
	seq iter.Seq2[E, error],
	mapFunc func(context.Context, E) (D, error),
) iter.Seq2[D, error] {
	type result struct {
		d D
		e error
	}

	return func(yield func(D, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		// one extra slot for the feeding goroutine itself
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(limit + 1)
		results := make(chan result, limit)

		g.Go(func() error {
			for e, err := range seq {
				if err != nil {
					continue
				}
				g.Go(func() error {
					d, mapErr := mapFunc(gctx, e)
					select {
					case <-gctx.Done():
						return gctx.Err()
					case results <- result{d: d, e: mapErr}:
						return nil
					}
				})
			}
			return nil
		})

		go func() {
			_ = g.Wait()
			close(results)
		}()

		for r := range results {
			if ctx.Err() != nil {
				return
			}
			if !yield(r.d, r.e) {
				return
			}
		}
	}
}
