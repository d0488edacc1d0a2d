package link

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned when sending on a closed connection.
var ErrClosed = errors.New("link: closed")

// ErrDown is returned when sending while the link is down.
var ErrDown = errors.New("link: down")

// EventKind tags an Event.
type EventKind int

const (
	EventUp EventKind = iota
	EventDown
	EventPacket
)

func (k EventKind) String() string {
	switch k {
	case EventUp:
		return "up"
	case EventDown:
		return "down"
	case EventPacket:
		return "packet"
	default:
		return "unknown"
	}
}

// Event is one occurrence on a link. Payload is set for EventPacket and
// Err may explain an EventDown.
type Event struct {
	Kind    EventKind
	Payload []byte
	At      time.Time
	Err     error
}

// Conn is one established link.
type Conn interface {
	// Send transmits one encoded packet without waiting for delivery.
	Send(payload []byte) error
	// Events delivers link activity. The channel is closed by Close.
	Events() <-chan Event
	Close() error
}

// Dialer establishes a Conn.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// LinkState is a snapshot of one side's view of the link.
type LinkState struct {
	Connected  bool      `json:"connected"`
	Since      time.Time `json:"since"`
	LastPacket time.Time `json:"last_packet"`
}

// StateTracker maintains a LinkState. Safe for concurrent use.
type StateTracker struct {
	mu    sync.RWMutex
	state LinkState
}

// MarkUp records a link-up; the last-packet time is reset.
func (t *StateTracker) MarkUp(at time.Time) {
	t.mu.Lock()
	t.state = LinkState{Connected: true, Since: at}
	t.mu.Unlock()
}

// MarkDown records a link-down.
func (t *StateTracker) MarkDown(at time.Time) {
	t.mu.Lock()
	t.state.Connected = false
	t.state.Since = at
	t.mu.Unlock()
}

// MarkPacket records packet activity.
func (t *StateTracker) MarkPacket(at time.Time) {
	t.mu.Lock()
	t.state.LastPacket = at
	t.mu.Unlock()
}

// State returns the current snapshot.
func (t *StateTracker) State() LinkState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// eventQueue is the buffered event channel shared by the back ends. Emits
// never block; packets that do not fit are dropped and counted.
type eventQueue struct {
	mu      sync.Mutex
	ch      chan Event
	closed  bool
	dropped int64
}

func newEventQueue(size int) *eventQueue {
	return &eventQueue{ch: make(chan Event, size)}
}

func (q *eventQueue) emit(ev Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	select {
	case q.ch <- ev:
		return true
	default:
		q.dropped++
		return false
	}
}

func (q *eventQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

func (q *eventQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *eventQueue) droppedCount() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
