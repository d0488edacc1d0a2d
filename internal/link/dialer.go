package link

import (
	"fmt"

	"github.com/benbjohnson/clock"

	"github.com/banshee-data/guidecane/internal/config"
)

// Role selects which end of a deployed link to open.
type Role int

const (
	// RoleSender is the decision side; it transmits to the remote address.
	RoleSender Role = iota
	// RoleReceiver is the actuation side; it listens on the local address.
	RoleReceiver
)

func (r Role) String() string {
	if r == RoleReceiver {
		return "receiver"
	}
	return "sender"
}

// NewDialer builds the dialer for one side of a deployment link. Memory
// links connect two sides of one process and cannot be created here.
func NewDialer(cfg config.LinkConfig, role Role, clk clock.Clock) (Dialer, error) {
	switch cfg.Kind {
	case config.LinkUDP, "":
		if role == RoleReceiver {
			if cfg.Listen == "" {
				return nil, fmt.Errorf("udp receiver needs a listen address")
			}
			return UDP{Listen: cfg.Listen, Clock: clk}, nil
		}
		if cfg.Address == "" {
			return nil, fmt.Errorf("udp sender needs a remote address")
		}
		return UDP{Remote: cfg.Address, Clock: clk}, nil
	case config.LinkSerial:
		opts := PortOptions{
			BaudRate: cfg.Serial.BaudRate,
			DataBits: cfg.Serial.DataBits,
			StopBits: cfg.Serial.StopBits,
			Parity:   cfg.Serial.Parity,
		}
		if _, err := opts.Normalize(); err != nil {
			return nil, fmt.Errorf("serial link: %w", err)
		}
		return Serial{Device: cfg.SerialDevice, Options: opts, Clock: clk}, nil
	case config.LinkMemory:
		return nil, fmt.Errorf("memory links are in-process only")
	default:
		return nil, fmt.Errorf("unknown link kind %q", cfg.Kind)
	}
}
