package link

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nextEvent(t *testing.T, c Conn) Event {
	t.Helper()
	select {
	case ev, ok := <-c.Events():
		require.True(t, ok, "event channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for link event")
		return Event{}
	}
}

func TestUDPLoopback(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rx, err := UDP{Listen: "127.0.0.1:0", ReadTimeout: 20 * time.Millisecond}.Dial(ctx)
	require.NoError(t, err)
	defer rx.Close()
	assert.Equal(t, EventUp, nextEvent(t, rx).Kind)

	addr := rx.(*UDPConn).LocalAddr().String()
	tx, err := UDP{Remote: addr, Listen: "127.0.0.1:0"}.Dial(ctx)
	require.NoError(t, err)
	defer tx.Close()
	assert.Equal(t, EventUp, nextEvent(t, tx).Kind)

	payload := []byte{0, 0, 0x80, 0x3f, 0, 0, 0, 0x3f, 2, 0, 0, 0}
	require.NoError(t, tx.Send(payload))

	ev := nextEvent(t, rx)
	assert.Equal(t, EventPacket, ev.Kind)
	assert.Equal(t, payload, ev.Payload)
	assert.Equal(t, int64(1), rx.(*UDPConn).Received())
}

func TestUDPCloseClosesEvents(t *testing.T) {
	t.Parallel()

	c, err := UDP{Listen: "127.0.0.1:0", ReadTimeout: 10 * time.Millisecond}.Dial(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "second close is a no-op")

	for range c.Events() {
	}
	assert.ErrorIs(t, c.Send([]byte{1}), ErrClosed)
}

func TestUDPSendWithoutRemote(t *testing.T) {
	t.Parallel()

	c, err := UDP{Listen: "127.0.0.1:0"}.Dial(context.Background())
	require.NoError(t, err)
	defer c.Close()
	assert.Error(t, c.Send([]byte{1}))
}

func TestUDPBadAddress(t *testing.T) {
	t.Parallel()

	_, err := UDP{Remote: "not an address"}.Dial(context.Background())
	assert.Error(t, err)
	_, err = UDP{Listen: "::::"}.Dial(context.Background())
	assert.Error(t, err)
}

// failingSocket accepts no writes and never yields a datagram.
type failingSocket struct {
	mu     sync.Mutex
	closed bool
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func (s *failingSocket) ReadFromUDP([]byte) (int, *net.UDPAddr, error) {
	time.Sleep(5 * time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, nil, net.ErrClosed
	}
	return 0, nil, &net.OpError{Op: "read", Net: "udp", Err: timeoutErr{}}
}

func (s *failingSocket) WriteToUDP([]byte, *net.UDPAddr) (int, error) {
	return 0, errors.New("network is unreachable")
}

func (s *failingSocket) SetReadDeadline(time.Time) error { return nil }

func (s *failingSocket) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *failingSocket) LocalAddr() net.Addr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 7420}
}

type failingFactory struct {
	sock  *failingSocket
	calls int
}

func (f *failingFactory) ListenUDP(string, *net.UDPAddr) (UDPSocket, error) {
	f.calls++
	return f.sock, nil
}

func TestUDPSendFailureReportsDown(t *testing.T) {
	t.Parallel()

	factory := &failingFactory{sock: &failingSocket{}}
	c, err := UDP{Remote: "127.0.0.1:9", SocketFactory: factory}.Dial(context.Background())
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, 1, factory.calls)
	assert.Equal(t, EventUp, nextEvent(t, c).Kind)

	assert.Error(t, c.Send([]byte{1}))
	assert.Error(t, c.Send([]byte{2}))

	ev := nextEvent(t, c)
	assert.Equal(t, EventDown, ev.Kind)
	assert.Error(t, ev.Err)

	select {
	case ev := <-c.Events():
		t.Fatalf("unexpected second event %v", ev.Kind)
	case <-time.After(30 * time.Millisecond):
	}
}
