package link

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"

	"github.com/banshee-data/guidecane/internal/monitoring"
	"github.com/banshee-data/guidecane/internal/packet"
)

// SenderStats counts transmissions.
type SenderStats struct {
	Sent      int64     `json:"sent"`
	Failed    int64     `json:"failed"`
	Skipped   int64     `json:"skipped"`
	Published int64     `json:"published"`
	LastSent  time.Time `json:"last_sent"`
}

// Sender transmits the most recent packet at a fixed cadence. Packets are
// fire-and-forget: a failed send is counted and never retried. Publish,
// Zero and SetConn are safe to call from any goroutine.
type Sender struct {
	codec packet.Codec
	clk   clock.Clock

	rate    atomic.Float64
	rateCh  chan struct{}
	pending atomic.Pointer[packet.Packet]

	connMu sync.RWMutex
	conn   Conn

	sent      atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64
	published atomic.Int64
	lastSent  atomic.Time
}

// NewSender creates a sender. rateHz is clamped to [1, 100].
func NewSender(codec packet.Codec, clk clock.Clock, rateHz float64) *Sender {
	if clk == nil {
		clk = clock.New()
	}
	s := &Sender{codec: codec, clk: clk, rateCh: make(chan struct{}, 1)}
	s.rate.Store(clampRate(rateHz))
	zero := packet.Zero()
	s.pending.Store(&zero)
	return s
}

func clampRate(hz float64) float64 {
	if hz < 1 {
		return 1
	}
	if hz > 100 {
		return 100
	}
	return hz
}

// Codec returns the codec fixed for this sender.
func (s *Sender) Codec() packet.Codec { return s.codec }

// Publish replaces the pending packet. Only the latest is ever sent.
func (s *Sender) Publish(p packet.Packet) {
	s.pending.Store(&p)
	s.published.Inc()
}

// Zero replaces the pending packet with a neutral command.
func (s *Sender) Zero() {
	zero := packet.Zero()
	s.pending.Store(&zero)
}

// Pending returns the packet the next tick would send.
func (s *Sender) Pending() packet.Packet { return *s.pending.Load() }

// SetConn attaches a connection; nil suspends sending.
func (s *Sender) SetConn(c Conn) {
	s.connMu.Lock()
	s.conn = c
	s.connMu.Unlock()
}

// SetRate changes the send cadence; Run picks it up on its next tick.
func (s *Sender) SetRate(hz float64) {
	s.rate.Store(clampRate(hz))
	select {
	case s.rateCh <- struct{}{}:
	default:
	}
}

// Rate returns the send cadence in Hz.
func (s *Sender) Rate() float64 { return s.rate.Load() }

// Stats returns transmission counters.
func (s *Sender) Stats() SenderStats {
	return SenderStats{
		Sent:      s.sent.Load(),
		Failed:    s.failed.Load(),
		Skipped:   s.skipped.Load(),
		Published: s.published.Load(),
		LastSent:  s.lastSent.Load(),
	}
}

// SendOnce encodes and sends the pending packet. It reports whether a
// packet left the sender.
func (s *Sender) SendOnce() bool {
	s.connMu.RLock()
	conn := s.conn
	s.connMu.RUnlock()
	if conn == nil {
		s.skipped.Inc()
		return false
	}
	p := s.pending.Load()
	if err := conn.Send(s.codec.Encode(*p)); err != nil {
		if s.failed.Inc()%50 == 1 {
			monitoring.Logf("[Sender] send failed (total=%d): %v", s.failed.Load(), err)
		}
		return false
	}
	s.sent.Inc()
	s.lastSent.Store(s.clk.Now())
	return true
}

func (s *Sender) period() time.Duration {
	return time.Duration(float64(time.Second) / s.rate.Load())
}

// Run sends at the configured cadence until ctx is cancelled.
func (s *Sender) Run(ctx context.Context) error {
	ticker := s.clk.Ticker(s.period())
	defer ticker.Stop()
	monitoring.Logf("[Sender] running at %.1f Hz (%s)", s.rate.Load(), s.codec.Protocol())
	for {
		select {
		case <-ctx.Done():
			st := s.Stats()
			monitoring.Logf("[Sender] stopped sent=%d failed=%d", st.Sent, st.Failed)
			return ctx.Err()
		case <-s.rateCh:
			ticker.Reset(s.period())
		case <-ticker.C:
			s.SendOnce()
		}
	}
}
