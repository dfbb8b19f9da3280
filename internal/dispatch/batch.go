package dispatch

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"apidiff/internal/core"
)

// SendBatch dispatches requests in chunks of batchSize, all sends within
// a chunk running concurrently and each chunk completing before the next
// starts. The returned slice always has len(requests) outcomes in input
// order, regardless of completion order; one request's failure (or panic)
// never aborts its siblings.
//
// Cancellation stops new chunks from starting; requests that never ran
// are filled in as failed outcomes carrying the context error, so nothing
// is silently dropped.
func (d *Dispatcher) SendBatch(ctx context.Context, requests []core.Request, batchSize int) []core.Outcome {
	if batchSize <= 0 {
		batchSize = len(requests)
	}

	outcomes := make([]core.Outcome, len(requests))

	for start := 0; start < len(requests); start += batchSize {
		if err := ctx.Err(); err != nil {
			for i := start; i < len(requests); i++ {
				outcomes[i] = d.failed(requests[i], 0, 0, &core.DispatchError{Kind: core.KindUnexpected, Cause: err})
				d.observe(outcomes[i])
			}
			break
		}

		end := start + batchSize
		if end > len(requests) {
			end = len(requests)
		}

		var g errgroup.Group
		for i := start; i < end; i++ {
			idx := i
			req := requests[i]
			g.Go(func() error {
				defer func() {
					// A panicking send must surface as a failed outcome
					// for its own slot only.
					if r := recover(); r != nil {
						outcomes[idx] = d.failed(req, 0, 0, &core.DispatchError{
							Kind:  core.KindUnexpected,
							Cause: fmt.Errorf("panic during dispatch: %v", r),
						})
					}
					d.observe(outcomes[idx])
				}()
				outcomes[idx] = d.Send(ctx, req)
				return nil
			})
		}
		// Workers never return errors; Wait is the chunk barrier.
		_ = g.Wait()
	}

	return outcomes
}
