package link

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"

	"github.com/banshee-data/guidecane/internal/monitoring"
)

// UDP dials a datagram link. Remote is where Send goes (empty for a
// listen-only receiver); Listen is the local bind address.
type UDP struct {
	Remote        string
	Listen        string
	SocketFactory UDPSocketFactory // Optional: factory for creating UDP sockets (for testing)
	Clock         clock.Clock
	// ReadTimeout bounds each read so Close is observed promptly.
	ReadTimeout time.Duration
}

// Dial binds the local socket and starts the receive loop. The returned
// connection emits EventUp immediately.
func (u UDP) Dial(ctx context.Context) (Conn, error) {
	factory := u.SocketFactory
	if factory == nil {
		factory = RealUDPSocketFactory{}
	}
	clk := u.Clock
	if clk == nil {
		clk = clock.New()
	}
	readTimeout := u.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 100 * time.Millisecond
	}

	var remote *net.UDPAddr
	if u.Remote != "" {
		addr, err := net.ResolveUDPAddr("udp", u.Remote)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve UDP address %q: %w", u.Remote, err)
		}
		remote = addr
	}
	var local *net.UDPAddr
	if u.Listen != "" {
		addr, err := net.ResolveUDPAddr("udp", u.Listen)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve UDP listen address %q: %w", u.Listen, err)
		}
		local = addr
	}

	sock, err := factory.ListenUDP("udp", local)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on UDP address: %w", err)
	}

	c := &UDPConn{
		sock:        sock,
		remote:      remote,
		clk:         clk,
		readTimeout: readTimeout,
		events:      newEventQueue(64),
		done:        make(chan struct{}),
	}
	c.events.emit(Event{Kind: EventUp, At: clk.Now()})
	monitoring.Logf("[Link] UDP up local=%v remote=%v", sock.LocalAddr(), remote)

	c.wg.Add(1)
	go c.readLoop()
	return c, nil
}

// UDPConn is an established UDP link.
type UDPConn struct {
	sock        UDPSocket
	remote      *net.UDPAddr
	clk         clock.Clock
	readTimeout time.Duration
	events      *eventQueue
	done        chan struct{}
	closeOnce   sync.Once
	wg          sync.WaitGroup
	downOnce    sync.Once

	received atomic.Int64
}

// LocalAddr returns the bound address.
func (c *UDPConn) LocalAddr() net.Addr { return c.sock.LocalAddr() }

// Events implements Conn.
func (c *UDPConn) Events() <-chan Event { return c.events.ch }

// Received returns the number of datagrams read.
func (c *UDPConn) Received() int64 { return c.received.Load() }

// Send writes one datagram to the remote address. A write failure reports
// the link down.
func (c *UDPConn) Send(payload []byte) error {
	if c.events.isClosed() {
		return ErrClosed
	}
	if c.remote == nil {
		return errors.New("link: UDP connection has no remote address")
	}
	if _, err := c.sock.WriteToUDP(payload, c.remote); err != nil {
		c.downOnce.Do(func() {
			c.events.emit(Event{Kind: EventDown, At: c.clk.Now(), Err: err})
		})
		return fmt.Errorf("UDP send: %w", err)
	}
	return nil
}

// Close stops the receive loop and closes the socket and event channel.
func (c *UDPConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.sock.Close()
		c.wg.Wait()
		c.events.close()
	})
	return err
}

func (c *UDPConn) readLoop() {
	defer c.wg.Done()
	buffer := make([]byte, 512)
	var deadlineErrLogged bool
	for {
		select {
		case <-c.done:
			return
		default:
		}
		if err := c.sock.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil && !deadlineErrLogged {
			monitoring.Logf("[Link] failed to set read deadline: %v", err)
			deadlineErrLogged = true
		}
		n, _, err := c.sock.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case <-c.done:
				return
			default:
			}
			monitoring.Logf("[Link] UDP read error: %v", err)
			continue
		}
		c.received.Inc()
		payload := make([]byte, n)
		copy(payload, buffer[:n])
		c.events.emit(Event{Kind: EventPacket, Payload: payload, At: c.clk.Now()})
	}
}
