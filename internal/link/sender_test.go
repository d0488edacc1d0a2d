package link

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/guidecane/internal/packet"
)

// recordingConn captures sent payloads.
type recordingConn struct {
	mu     sync.Mutex
	sent   [][]byte
	err    error
	events chan Event
}

func newRecordingConn() *recordingConn {
	return &recordingConn{events: make(chan Event)}
}

func (c *recordingConn) Send(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, append([]byte(nil), b...))
	return nil
}

func (c *recordingConn) Events() <-chan Event { return c.events }
func (c *recordingConn) Close() error         { return nil }

func (c *recordingConn) payloads() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

func TestSenderSendsOnlyLatest(t *testing.T) {
	t.Parallel()

	codec := packet.Continuous{}
	s := NewSender(codec, clock.NewMock(), 15)
	conn := newRecordingConn()
	s.SetConn(conn)

	s.Publish(packet.Packet{Speed: 0.1, Mode: packet.ModeSteer})
	s.Publish(packet.Packet{Speed: 0.2, Mode: packet.ModeSteer})
	s.Publish(packet.Packet{Speed: 0.3, Mode: packet.ModeSteer})
	require.True(t, s.SendOnce())

	sent := conn.payloads()
	require.Len(t, sent, 1)
	p, err := codec.Decode(sent[0])
	require.NoError(t, err)
	assert.Equal(t, float32(0.3), p.Speed)

	st := s.Stats()
	assert.Equal(t, int64(1), st.Sent)
	assert.Equal(t, int64(3), st.Published)
}

func TestSenderStartsAndZeroesNeutral(t *testing.T) {
	t.Parallel()

	s := NewSender(packet.Continuous{}, nil, 15)
	assert.Equal(t, packet.Zero(), s.Pending())

	s.Publish(packet.Packet{Speed: -1, Auxiliary: 0.4, Mode: packet.ModeCritical})
	s.Zero()
	assert.Equal(t, packet.Zero(), s.Pending())
}

func TestSenderSuspendedWithoutConn(t *testing.T) {
	t.Parallel()

	s := NewSender(packet.Continuous{}, clock.NewMock(), 15)
	assert.False(t, s.SendOnce())
	assert.Equal(t, int64(1), s.Stats().Skipped)

	conn := newRecordingConn()
	s.SetConn(conn)
	assert.True(t, s.SendOnce())
	s.SetConn(nil)
	assert.False(t, s.SendOnce())
	assert.Len(t, conn.payloads(), 1)
}

func TestSenderCountsFailuresWithoutRetry(t *testing.T) {
	t.Parallel()

	s := NewSender(packet.Continuous{}, clock.NewMock(), 15)
	conn := newRecordingConn()
	conn.err = errors.New("radio off")
	s.SetConn(conn)

	assert.False(t, s.SendOnce())
	assert.False(t, s.SendOnce())
	st := s.Stats()
	assert.Equal(t, int64(2), st.Failed)
	assert.Zero(t, st.Sent)
	assert.True(t, st.LastSent.IsZero())
}

func TestSenderRunAtFixedCadence(t *testing.T) {
	t.Parallel()

	mock := clock.NewMock()
	s := NewSender(packet.Discrete{Threshold: 0.2}, mock, 10)
	conn := newRecordingConn()
	s.SetConn(conn)
	s.Publish(packet.Packet{Speed: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// Wait for Run to register its ticker, then step one period at a time.
	require.Eventually(t, func() bool {
		mock.Add(100 * time.Millisecond)
		return len(conn.payloads()) >= 3
	}, 2*time.Second, 5*time.Millisecond)

	for _, b := range conn.payloads() {
		assert.Equal(t, []byte{0x01}, b)
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestSenderRateClamp(t *testing.T) {
	t.Parallel()

	s := NewSender(packet.Continuous{}, clock.NewMock(), 0)
	assert.Equal(t, 1.0, s.Rate())
	s.SetRate(500)
	assert.Equal(t, 100.0, s.Rate())
	s.SetRate(20)
	assert.Equal(t, 20.0, s.Rate())
	assert.Equal(t, 50*time.Millisecond, s.period())
	assert.Equal(t, "continuous", s.Codec().Protocol())
}
