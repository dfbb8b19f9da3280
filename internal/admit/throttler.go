// Package admit bounds how many requests may execute concurrently and,
// optionally, how fast they may be dispatched.
package admit

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// DefaultParallel is the admission slot count used when none is configured.
const DefaultParallel = 10

// Throttler gates dispatch with a weighted semaphore (in-flight cap) and an
// optional token-bucket rate limiter (requests per second). It does not
// retry or inspect outcomes; it only governs admission.
type Throttler struct {
	sem     *semaphore.Weighted
	mu      sync.RWMutex
	limiter *rate.Limiter // nil when no RPS cap is set
}

// New creates a Throttler with the given parallelism. rps of 0 disables
// rate limiting (admission is bounded only by the semaphore).
func New(parallel int, rps int) *Throttler {
	if parallel <= 0 {
		parallel = DefaultParallel
	}
	t := &Throttler{
		sem: semaphore.NewWeighted(int64(parallel)),
	}
	if rps > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	}
	return t
}

// Acquire blocks until an admission slot is free and the rate limiter
// permits dispatch, or the context is cancelled. Every successful Acquire
// must be paired with exactly one Release on all exit paths.
func (t *Throttler) Acquire(ctx context.Context) error {
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	t.mu.RLock()
	limiter := t.limiter
	t.mu.RUnlock()

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			t.sem.Release(1)
			return err
		}
	}
	return nil
}

// Release frees an admission slot.
func (t *Throttler) Release() {
	t.sem.Release(1)
}

// SetRate adjusts the RPS cap at runtime. rps of 0 removes the cap.
func (t *Throttler) SetRate(rps int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rps <= 0 {
		t.limiter = nil
		return
	}
	if t.limiter == nil {
		t.limiter = rate.NewLimiter(rate.Limit(rps), rps)
		return
	}
	t.limiter.SetLimit(rate.Limit(rps))
	t.limiter.SetBurst(rps)
}
