// Package retry provides the stateless backoff policy used between
// dispatch attempts.
package retry

import "time"

const (
	// DefaultMaxRetries is the number of re-attempts after the initial try.
	DefaultMaxRetries = 3
	// DefaultBaseDelay seeds the exponential backoff.
	DefaultBaseDelay = 1 * time.Second
	// DefaultMaxDelay caps any single backoff wait.
	DefaultMaxDelay = 30 * time.Second
)

// Policy computes backoff delays. It is a pure function of the attempt
// index and its configuration; it carries no state between calls and is
// safe to share across goroutines.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Default returns the standard policy: 3 retries, 1s base, 30s cap.
func Default() Policy {
	return Policy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
	}
}

// Attempts returns the total number of tries, including the first.
func (p Policy) Attempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

// Delay returns the wait before the given 0-based attempt. Attempt 0 has
// no delay; attempt n waits base * 2^(n-1), capped at MaxDelay.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	max := p.MaxDelay
	if max <= 0 {
		max = DefaultMaxDelay
	}

	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
