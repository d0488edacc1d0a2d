package pipeline

import (
	"context"
	"sync"

	"go.uber.org/atomic"

	"github.com/banshee-data/guidecane/internal/rangeframe"
)

// Mailbox hands frames from the producer to the decision loop. It holds a
// single frame: a newer frame replaces an unconsumed one, so the loop
// always works on the most recent view and never queues stale frames.
type Mailbox struct {
	mu    sync.Mutex
	frame *rangeframe.Frame
	ready chan struct{}

	submitted atomic.Int64
	coalesced atomic.Int64
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{ready: make(chan struct{}, 1)}
}

// Put stores f, replacing any frame not yet taken.
func (m *Mailbox) Put(f *rangeframe.Frame) {
	if f == nil {
		return
	}
	m.mu.Lock()
	if m.frame != nil {
		m.coalesced.Inc()
	}
	m.frame = f
	m.mu.Unlock()
	m.submitted.Inc()
	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// Take blocks until a frame is available or ctx is done.
func (m *Mailbox) Take(ctx context.Context) (*rangeframe.Frame, error) {
	for {
		if f := m.TryTake(); f != nil {
			return f, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-m.ready:
		}
	}
}

// TryTake returns the pending frame, or nil.
func (m *Mailbox) TryTake() *rangeframe.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := m.frame
	m.frame = nil
	return f
}

// Counts returns the number of frames put and the number replaced before
// being taken.
func (m *Mailbox) Counts() (submitted, coalesced int64) {
	return m.submitted.Load(), m.coalesced.Load()
}
