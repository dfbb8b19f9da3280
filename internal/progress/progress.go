// Package progress prints live run status to stderr.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"apidiff/internal/collector"
)

type Progress struct {
	startTime time.Time
	collector *collector.Collector
	total     int
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopped   atomic.Bool
	quiet     bool
	output    io.Writer
	mu        sync.Mutex
}

// NewProgress creates a reporter over the collector. total is the number
// of requests the run will dispatch; 0 when unknown.
func NewProgress(c *collector.Collector, total int, quiet bool) *Progress {
	return &Progress{
		collector: c,
		total:     total,
		quiet:     quiet,
		output:    os.Stderr,
	}
}

func (p *Progress) SetOutput(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.output = w
}

func (p *Progress) Start() {
	if p.quiet {
		return
	}
	p.startTime = time.Now()
	p.stopCh = make(chan struct{})
	p.ticker = time.NewTicker(1 * time.Second)
	go p.run()
}

func (p *Progress) run() {
	for {
		select {
		case <-p.stopCh:
			return
		case <-p.ticker.C:
			p.printProgress()
		}
	}
}

func (p *Progress) printProgress() {
	completed, failed := p.collector.Progress()
	elapsed := time.Since(p.startTime).Round(time.Second)
	mins := int(elapsed.Minutes())
	secs := int(elapsed.Seconds()) % 60

	p.mu.Lock()
	if p.total > 0 {
		pct := float64(completed) / float64(p.total) * 100
		fmt.Fprintf(p.output, "\033[K[%02d:%02d] Completed: %d/%d (%.0f%%) | Failed: %d",
			mins, secs, completed, p.total, pct, failed)
	} else {
		fmt.Fprintf(p.output, "\033[K[%02d:%02d] Completed: %d | Failed: %d",
			mins, secs, completed, failed)
	}
	p.mu.Unlock()
}

func (p *Progress) Stop() {
	if p.quiet || p.stopped.Swap(true) {
		return
	}
	if p.ticker != nil {
		p.ticker.Stop()
	}
	if p.stopCh != nil {
		close(p.stopCh)
	}
	p.mu.Lock()
	fmt.Fprintf(p.output, "\033[K")
	p.mu.Unlock()
}

func (p *Progress) Print(message string) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	fmt.Fprintf(p.output, "\033[K%s\n", message)
	p.mu.Unlock()
}

func (p *Progress) Printf(format string, args ...interface{}) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	fmt.Fprintf(p.output, "\033[K"+format+"\n", args...)
	p.mu.Unlock()
}
