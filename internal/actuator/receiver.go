package actuator

import (
	"context"
	"errors"

	"github.com/benbjohnson/clock"

	"github.com/banshee-data/guidecane/internal/link"
	"github.com/banshee-data/guidecane/internal/monitoring"
)

// Receiver is the actuation side's single dispatch loop: it dials the
// link, forwards packets to the actuator and clears the snapshot on each
// link-up. Staleness, not link-down, is what stops the motor.
type Receiver struct {
	dialer  link.Dialer
	act     *Actuator
	clk     clock.Clock
	backoff *link.Backoff
	state   link.StateTracker
}

// NewReceiver creates a receiver. A nil backoff uses link.DefaultBackoff.
func NewReceiver(dialer link.Dialer, act *Actuator, clk clock.Clock, backoff *link.Backoff) *Receiver {
	if clk == nil {
		clk = clock.New()
	}
	if backoff == nil {
		backoff = link.DefaultBackoff()
	}
	return &Receiver{dialer: dialer, act: act, clk: clk, backoff: backoff}
}

// State returns the receive side's link state.
func (r *Receiver) State() link.LinkState { return r.state.State() }

// Run dials and dispatches until ctx is cancelled.
func (r *Receiver) Run(ctx context.Context) error {
	for {
		conn, err := r.dialer.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait := r.backoff.Next()
			monitoring.Logf("[Receiver] dial failed, retrying in %v: %v", wait, err)
			if err := link.Sleep(ctx, r.clk, wait); err != nil {
				return err
			}
			continue
		}
		r.backoff.Reset()
		err = r.dispatch(ctx, conn)
		conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		monitoring.Logf("[Receiver] link lost: %v", err)
	}
}

var errEventsClosed = errors.New("event channel closed")

func (r *Receiver) dispatch(ctx context.Context, conn link.Conn) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-conn.Events():
			if !ok {
				r.state.MarkDown(r.clk.Now())
				return errEventsClosed
			}
			switch ev.Kind {
			case link.EventUp:
				r.act.Clear()
				r.state.MarkUp(ev.At)
				monitoring.Logf("[Receiver] link up")
			case link.EventPacket:
				r.state.MarkPacket(ev.At)
				// Malformed payloads are logged by the actuator.
				_ = r.act.HandlePayload(ev.Payload, ev.At)
			case link.EventDown:
				r.state.MarkDown(ev.At)
				if ev.Err != nil {
					return ev.Err
				}
				return link.ErrDown
			}
		}
	}
}
