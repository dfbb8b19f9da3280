// Package breaker implements a consecutive-failure circuit breaker that
// fast-fails dispatch while the target is unhealthy.
package breaker

import (
	"sync"
	"time"

	"apidiff/internal/core"
)

const (
	// DefaultThreshold is the consecutive-failure count that opens the
	// breaker.
	DefaultThreshold = 5
	// DefaultCooldown is how long the breaker stays open before requests
	// are admitted again.
	DefaultCooldown = 60 * time.Second
)

// Breaker tracks consecutive dispatch failures and rejects requests for a
// cooldown window once the threshold is reached.
//
// There is no half-open state: when the cooldown elapses the breaker is
// simply closed again, and the next recorded failure re-opens it
// immediately. Safe for concurrent use; one instance is shared by all
// in-flight sends of a dispatcher.
type Breaker struct {
	mu        sync.Mutex
	failures  int
	openedAt  time.Time
	threshold int
	cooldown  time.Duration
	clock     core.Clock
}

// New creates a Breaker. Zero threshold or cooldown fall back to the
// defaults. A nil clock uses real time.
func New(threshold int, cooldown time.Duration, clock core.Clock) *Breaker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if clock == nil {
		clock = core.RealClock{}
	}
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		clock:     clock,
	}
}

// Allow reports whether a request may proceed. Openness is re-evaluated
// lazily: once the cooldown has elapsed the breaker counts as closed
// again. The failure streak survives the lazy close, so a single failing
// probe re-opens the breaker immediately; only a success clears it.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.openedAt.IsZero() {
		return true
	}
	if b.clock.Since(b.openedAt) < b.cooldown {
		return false
	}
	// Cooldown elapsed: closed again without requiring a success.
	b.openedAt = time.Time{}
	return true
}

// RecordSuccess clears the failure streak and closes the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.openedAt = time.Time{}
}

// RecordFailure increments the failure streak and opens the breaker when
// the threshold is reached. At or past the threshold every failure
// restamps the open window, so a failed probe after the cooldown starts a
// fresh cooldown. Returns true if this call transitioned the breaker from
// closed to open.
func (b *Breaker) RecordFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.failures < b.threshold {
		return false
	}
	opened := b.openedAt.IsZero()
	b.openedAt = b.clock.Now()
	return opened
}

// State returns a snapshot of the breaker for logging and health output.
func (b *Breaker) State() (open bool, failures int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	open = !b.openedAt.IsZero() && b.clock.Since(b.openedAt) < b.cooldown
	return open, b.failures
}
