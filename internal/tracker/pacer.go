package tracker

import (
	"context"
	"sync"
	"time"
)

// Pacer enforces a fixed pause between the end of one page fetch and the start
// of the next
type Pacer struct {
	delay time.Duration

	mu   sync.Mutex
	last time.Time
}

// NewPacer creates a pacer; a non-positive delay disables pacing
func NewPacer(delay time.Duration) *Pacer {
	return &Pacer{delay: delay}
}

// Wait blocks until delay has passed since the last Done. It only fails when
// ctx ends, and then returns ctx's error.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.delay <= 0 {
		return nil
	}

	p.mu.Lock()
	last := p.last
	p.mu.Unlock()
	if last.IsZero() {
		return nil
	}

	remaining := p.delay - time.Since(last)
	if remaining <= 0 {
		return nil
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Done marks the end of a fetch
func (p *Pacer) Done() {
	p.mu.Lock()
	p.last = time.Now()
	p.mu.Unlock()
}
