// Package safety supervises the decision side of the link. On link-down
// it zeroes the outgoing command before anything else can be sent,
// suspends the sender, resets smoothing state and reconnects with capped
// exponential backoff. Both sides resume from zero.
package safety

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"

	"github.com/banshee-data/guidecane/internal/link"
	"github.com/banshee-data/guidecane/internal/monitoring"
)

// Supervisor owns the sender's connection lifecycle.
type Supervisor struct {
	dialer  link.Dialer
	sender  *link.Sender
	clk     clock.Clock
	backoff *link.Backoff
	state   link.StateTracker

	mu    sync.Mutex
	hooks []func()

	connects    atomic.Int64
	disconnects atomic.Int64
}

// NewSupervisor creates a supervisor. A nil backoff uses link.DefaultBackoff.
func NewSupervisor(dialer link.Dialer, sender *link.Sender, clk clock.Clock, backoff *link.Backoff) *Supervisor {
	if clk == nil {
		clk = clock.New()
	}
	if backoff == nil {
		backoff = link.DefaultBackoff()
	}
	return &Supervisor{dialer: dialer, sender: sender, clk: clk, backoff: backoff}
}

// OnReset registers a hook run on every link-down, after the sender has
// been zeroed and suspended.
func (s *Supervisor) OnReset(fn func()) {
	s.mu.Lock()
	s.hooks = append(s.hooks, fn)
	s.mu.Unlock()
}

// State returns the sender side's link state.
func (s *Supervisor) State() link.LinkState { return s.state.State() }

// Counts returns how many times the link came up and went down.
func (s *Supervisor) Counts() (connects, disconnects int64) {
	return s.connects.Load(), s.disconnects.Load()
}

// Run dials, supervises and redials until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	s.sender.Zero()
	for {
		conn, err := s.dialer.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait := s.backoff.Next()
			monitoring.Logf("[Supervisor] dial failed, retrying in %v: %v", wait, err)
			if err := link.Sleep(ctx, s.clk, wait); err != nil {
				return err
			}
			continue
		}
		s.backoff.Reset()
		err = s.watch(ctx, conn)
		if ctx.Err() != nil {
			s.sender.Zero()
			s.sender.SetConn(nil)
			conn.Close()
			s.state.MarkDown(s.clk.Now())
			return ctx.Err()
		}
		s.linkDown()
		conn.Close()
		monitoring.Logf("[Supervisor] link down: %v", err)
	}
}

// watch blocks until the connection reports down or ctx ends.
func (s *Supervisor) watch(ctx context.Context, conn link.Conn) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-conn.Events():
			if !ok {
				return link.ErrClosed
			}
			switch ev.Kind {
			case link.EventUp:
				s.linkUp(conn, ev)
			case link.EventPacket:
				s.state.MarkPacket(ev.At)
			case link.EventDown:
				if ev.Err != nil {
					return ev.Err
				}
				return link.ErrDown
			}
		}
	}
}

func (s *Supervisor) linkUp(conn link.Conn, ev link.Event) {
	// Resume from zero: the first packet after reconnect is neutral.
	s.sender.Zero()
	s.sender.SetConn(conn)
	s.state.MarkUp(ev.At)
	s.connects.Inc()
	monitoring.Logf("[Supervisor] link up")
}

func (s *Supervisor) linkDown() {
	s.sender.Zero()
	s.sender.SetConn(nil)
	if s.state.State().Connected {
		s.disconnects.Inc()
	}
	s.state.MarkDown(s.clk.Now())

	s.mu.Lock()
	hooks := append([]func(){}, s.hooks...)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}
