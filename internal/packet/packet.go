// Package packet encodes steering decisions into control packets.
//
// Two wire protocols exist: the canonical 12-byte continuous packet
// (float32 speed, float32 auxiliary, uint32 mode, little-endian) and a
// legacy single signed byte carrying -1, 0 or +1. A link picks one codec
// at setup and never mixes them.
package packet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/banshee-data/guidecane/internal/config"
	"github.com/banshee-data/guidecane/internal/steering"
)

var (
	// ErrBadLength is returned when a payload has the wrong size.
	ErrBadLength = errors.New("packet: bad length")
	// ErrBadValue is returned when a discrete payload is not -1, 0 or +1.
	ErrBadValue = errors.New("packet: bad value")
)

// Mode is the wire mode field.
type Mode uint32

const (
	ModeIdle     = Mode(steering.ModeIdle)
	ModeSteer    = Mode(steering.ModeSteer)
	ModeForced   = Mode(steering.ModeForced)
	ModeCritical = Mode(steering.ModeCritical)
	ModeClear    = Mode(steering.ModeClear)
)

func (m Mode) String() string { return steering.Mode(m).String() }

// Packet is one control message.
type Packet struct {
	Speed     float32 `json:"speed"`
	Auxiliary float32 `json:"auxiliary"`
	Mode      Mode    `json:"mode"`
}

// NoObstacle is the auxiliary value sent when nothing is in range.
const NoObstacle float32 = -1

// FromDecision builds the packet for a steering decision. The auxiliary
// field carries the closest obstacle distance, or NoObstacle.
func FromDecision(d steering.Decision) Packet {
	aux := NoObstacle
	if d.HasClosest {
		aux = float32(d.Closest)
	}
	return Packet{Speed: float32(d.Command), Auxiliary: aux, Mode: Mode(d.Mode)}
}

// Zero is the neutral packet sent on link loss.
func Zero() Packet {
	return Packet{Speed: 0, Auxiliary: NoObstacle, Mode: ModeIdle}
}

// Codec converts packets to and from wire bytes.
type Codec interface {
	Protocol() string
	Size() int
	Encode(Packet) []byte
	Decode([]byte) (Packet, error)
}

// ParseProtocol returns the codec for a protocol name. threshold is used
// by the discrete codec only.
func ParseProtocol(name string, threshold float64) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case config.ProtocolContinuous, "":
		return Continuous{}, nil
	case config.ProtocolDiscrete:
		return Discrete{Threshold: threshold}, nil
	default:
		return nil, fmt.Errorf("unknown protocol %q (want %q or %q)", name, config.ProtocolContinuous, config.ProtocolDiscrete)
	}
}

func checkLength(b []byte, want int) error {
	if len(b) != want {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrBadLength, len(b), want)
	}
	return nil
}
