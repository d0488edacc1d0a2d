package link

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"
)

// MemoryConfig configures an in-process link.
type MemoryConfig struct {
	// Loss is the probability in [0, 1] that a packet is dropped.
	Loss float64
	// Latency delays every delivered packet.
	Latency time.Duration
	Seed    int64
	Clock   clock.Clock
}

// Memory is an in-process link between two sides, A and B. It simulates
// loss, latency and link-down for the simulator and tests.
type Memory struct {
	mu   sync.Mutex
	cfg  MemoryConfig
	clk  clock.Clock
	rnd  *rand.Rand
	down bool
	ends [2]*MemoryConn

	delivered atomic.Int64
	lost      atomic.Int64
}

// NewMemory creates a link that starts up.
func NewMemory(cfg MemoryConfig) *Memory {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Memory{cfg: cfg, clk: clk, rnd: rand.New(rand.NewSource(cfg.Seed))}
}

// A returns the dialer for side A (by convention the decision side).
func (m *Memory) A() Dialer { return memoryDialer{m: m, side: 0} }

// B returns the dialer for side B (by convention the actuation side).
func (m *Memory) B() Dialer { return memoryDialer{m: m, side: 1} }

// SetDown drops the link: both open ends receive EventDown and further
// sends and dials fail with ErrDown until SetUp.
func (m *Memory) SetDown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down = true
	now := m.clk.Now()
	for _, end := range m.ends {
		if end != nil {
			end.events.emit(Event{Kind: EventDown, At: now, Err: ErrDown})
		}
	}
}

// SetUp restores the link; sides must dial again.
func (m *Memory) SetUp() {
	m.mu.Lock()
	m.down = false
	m.mu.Unlock()
}

// IsDown reports whether the link is down.
func (m *Memory) IsDown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.down
}

// MemoryStats counts packets through the link.
type MemoryStats struct {
	Delivered int64 `json:"delivered"`
	Lost      int64 `json:"lost"`
}

// Stats returns delivery counters.
func (m *Memory) Stats() MemoryStats {
	return MemoryStats{Delivered: m.delivered.Load(), Lost: m.lost.Load()}
}

type memoryDialer struct {
	m    *Memory
	side int
}

func (d memoryDialer) Dial(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := d.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, ErrDown
	}
	if old := m.ends[d.side]; old != nil {
		old.events.close()
	}
	c := &MemoryConn{m: m, side: d.side, events: newEventQueue(256)}
	m.ends[d.side] = c
	c.events.emit(Event{Kind: EventUp, At: m.clk.Now()})
	return c, nil
}

// MemoryConn is one end of a Memory link.
type MemoryConn struct {
	m      *Memory
	side   int
	events *eventQueue

	// inflight holds delayed packets in send order. Each latency timer
	// releases the oldest one, so timers firing out of order cannot
	// reorder the stream.
	flightMu sync.Mutex
	inflight []flight
}

type flight struct {
	peer *MemoryConn
	data []byte
}

// Events implements Conn.
func (c *MemoryConn) Events() <-chan Event { return c.events.ch }

// Send delivers payload to the other end, subject to loss and latency.
// A dropped packet is not an error.
func (c *MemoryConn) Send(payload []byte) error {
	m := c.m
	m.mu.Lock()
	if c.events.isClosed() {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.down {
		m.mu.Unlock()
		return ErrDown
	}
	peer := m.ends[1-c.side]
	lost := peer == nil || (m.cfg.Loss > 0 && m.rnd.Float64() < m.cfg.Loss)
	m.mu.Unlock()

	if lost {
		m.lost.Inc()
		return nil
	}
	data := make([]byte, len(payload))
	copy(data, payload)
	if m.cfg.Latency > 0 {
		c.flightMu.Lock()
		c.inflight = append(c.inflight, flight{peer: peer, data: data})
		c.flightMu.Unlock()
		m.clk.AfterFunc(m.cfg.Latency, c.releaseOldest)
		return nil
	}
	m.deliver(peer, data)
	return nil
}

func (c *MemoryConn) releaseOldest() {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()
	if len(c.inflight) == 0 {
		return
	}
	f := c.inflight[0]
	c.inflight[0] = flight{}
	c.inflight = c.inflight[1:]
	c.m.deliver(f.peer, f.data)
}

func (m *Memory) deliver(peer *MemoryConn, data []byte) {
	if peer.events.emit(Event{Kind: EventPacket, Payload: data, At: m.clk.Now()}) {
		m.delivered.Inc()
	} else {
		m.lost.Inc()
	}
}

// Close detaches this end and closes its event channel.
func (c *MemoryConn) Close() error {
	m := c.m
	m.mu.Lock()
	if m.ends[c.side] == c {
		m.ends[c.side] = nil
	}
	m.mu.Unlock()
	c.events.close()
	return nil
}
