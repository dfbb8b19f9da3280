// Package collector aggregates dispatch outcomes and computes run metrics.
package collector

import (
	"sync"
	"time"

	"apidiff/internal/core"
)

// Collector aggregates outcomes from concurrent sends and produces a
// summary. Unlike a sampling collector it never drops: every outcome of a
// run is part of the regression record.
type Collector struct {
	outcomes  []core.Outcome
	ch        chan core.Outcome
	done      chan struct{}
	mu        sync.Mutex
	startTime time.Time
	endTime   time.Time
}

// NewCollector creates a Collector and starts its collection goroutine.
func NewCollector() *Collector {
	c := &Collector{
		outcomes:  make([]core.Outcome, 0),
		ch:        make(chan core.Outcome, 1024),
		done:      make(chan struct{}),
		startTime: time.Now(),
	}
	go c.collect()
	return c
}

func (c *Collector) collect() {
	for out := range c.ch {
		c.mu.Lock()
		c.outcomes = append(c.outcomes, out)
		c.mu.Unlock()
	}
	close(c.done)
}

// Report records one outcome. Blocks if the buffer is full; thread-safe.
func (c *Collector) Report(out core.Outcome) {
	c.ch <- out
}

// Close stops accepting outcomes and waits for the pending ones to be
// recorded.
func (c *Collector) Close() {
	c.endTime = time.Now()
	close(c.ch)
	<-c.done
}

// Outcomes returns a copy of the collected outcomes.
func (c *Collector) Outcomes() []core.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]core.Outcome, len(c.outcomes))
	copy(result, c.outcomes)
	return result
}

// Completed returns how many outcomes have been recorded so far.
func (c *Collector) Completed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.outcomes)
}

// Progress returns recorded and failed counts for live display.
func (c *Collector) Progress() (completed, failed int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, out := range c.outcomes {
		if !out.Success {
			failed++
		}
	}
	return len(c.outcomes), failed
}

// Duration returns the run duration: start to Close if closed, start to
// now while still running.
func (c *Collector) Duration() time.Duration {
	if !c.endTime.IsZero() {
		return c.endTime.Sub(c.startTime)
	}
	return time.Since(c.startTime)
}
