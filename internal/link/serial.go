package link

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/banshee-data/guidecane/internal/monitoring"
)

// Serial dials a link over a serial port. Each packet travels as one line
// of lowercase hex terminated by '\n'.
type Serial struct {
	Device  string
	Options PortOptions
	Opener  SerialPortOpener // Optional: defaults to OpenSerialPort
	Clock   clock.Clock
}

// Dial opens the port and starts the line reader.
func (s Serial) Dial(ctx context.Context) (Conn, error) {
	mode, err := s.Options.SerialMode()
	if err != nil {
		return nil, err
	}
	opener := s.Opener
	if opener == nil {
		opener = OpenSerialPort
	}
	clk := s.Clock
	if clk == nil {
		clk = clock.New()
	}
	port, err := opener(s.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", s.Device, err)
	}

	c := &SerialConn{port: port, clk: clk, events: newEventQueue(64), closing: make(chan struct{})}
	c.events.emit(Event{Kind: EventUp, At: clk.Now()})
	monitoring.Logf("[Link] serial up device=%s baud=%d", s.Device, mode.BaudRate)

	c.wg.Add(1)
	go c.readLoop()
	return c, nil
}

// SerialConn is an established serial link.
type SerialConn struct {
	port     SerialPorter
	clk      clock.Clock
	events   *eventQueue
	writeMu  sync.Mutex
	wg       sync.WaitGroup
	once     sync.Once
	closing  chan struct{}
	downOnce sync.Once
}

// Events implements Conn.
func (c *SerialConn) Events() <-chan Event { return c.events.ch }

// EncodeLine renders a payload as one hex line.
func EncodeLine(payload []byte) []byte {
	line := make([]byte, hex.EncodedLen(len(payload))+1)
	hex.Encode(line, payload)
	line[len(line)-1] = '\n'
	return line
}

// DecodeLine parses one hex line, ignoring surrounding whitespace.
func DecodeLine(line string) ([]byte, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, errors.New("empty line")
	}
	return hex.DecodeString(line)
}

// Send writes one packet line.
func (c *SerialConn) Send(payload []byte) error {
	if c.events.isClosed() {
		return ErrClosed
	}
	c.writeMu.Lock()
	_, err := c.port.Write(EncodeLine(payload))
	c.writeMu.Unlock()
	if err != nil {
		c.reportDown(err)
		return fmt.Errorf("serial send: %w", err)
	}
	return nil
}

// Close closes the port, waits for the reader and closes the event channel.
func (c *SerialConn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closing)
		err = c.port.Close()
		c.wg.Wait()
		c.events.close()
	})
	return err
}

func (c *SerialConn) isClosing() bool {
	select {
	case <-c.closing:
		return true
	default:
		return false
	}
}

func (c *SerialConn) reportDown(err error) {
	c.downOnce.Do(func() {
		c.events.emit(Event{Kind: EventDown, At: c.clk.Now(), Err: err})
	})
}

func (c *SerialConn) readLoop() {
	defer c.wg.Done()
	scanner := bufio.NewScanner(c.port)
	for scanner.Scan() {
		payload, err := DecodeLine(scanner.Text())
		if err != nil {
			monitoring.Logf("[Link] discarding malformed serial line: %v", err)
			continue
		}
		c.events.emit(Event{Kind: EventPacket, Payload: payload, At: c.clk.Now()})
	}
	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	if !c.isClosing() {
		monitoring.Logf("[Link] serial read ended: %v", err)
		c.reportDown(err)
	}
}
