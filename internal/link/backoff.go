package link

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// Backoff yields capped exponentially increasing waits for reconnection.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64

	next time.Duration
}

// DefaultBackoff starts at 100ms and doubles up to 5s.
func DefaultBackoff() *Backoff {
	return &Backoff{Initial: 100 * time.Millisecond, Max: 5 * time.Second, Factor: 2}
}

// Next returns the wait before the next attempt.
func (b *Backoff) Next() time.Duration {
	if b.next <= 0 {
		b.next = b.Initial
	}
	d := b.next
	grown := time.Duration(float64(b.next) * b.Factor)
	if grown > b.Max || grown <= 0 {
		grown = b.Max
	}
	b.next = grown
	if d > b.Max {
		d = b.Max
	}
	return d
}

// Reset returns to the initial wait after a successful attempt.
func (b *Backoff) Reset() { b.next = 0 }

// Sleep waits for d on clk or until ctx is done.
func Sleep(ctx context.Context, clk clock.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := clk.Timer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
