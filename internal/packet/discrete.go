package packet

import (
	"fmt"

	"github.com/banshee-data/guidecane/internal/config"
)

// DiscreteSize is the wire size of a legacy discrete packet.
const DiscreteSize = 1

// Discrete is the legacy one-byte codec. Encode maps speed to -1, 0 or +1
// using Threshold; auxiliary and mode are not carried.
type Discrete struct {
	Threshold float64
}

func (Discrete) Protocol() string { return config.ProtocolDiscrete }

func (Discrete) Size() int { return DiscreteSize }

func (c Discrete) Encode(p Packet) []byte {
	var v int8
	switch {
	case float64(p.Speed) >= c.Threshold && p.Speed > 0:
		v = 1
	case float64(p.Speed) <= -c.Threshold && p.Speed < 0:
		v = -1
	}
	return []byte{byte(v)}
}

// Decode yields a full-magnitude speed for ±1 and a neutral packet for 0.
// The auxiliary distance is unknown on this protocol.
func (Discrete) Decode(b []byte) (Packet, error) {
	if err := checkLength(b, DiscreteSize); err != nil {
		return Packet{}, err
	}
	v := int8(b[0])
	switch v {
	case -1, 1:
		return Packet{Speed: float32(v), Auxiliary: NoObstacle, Mode: ModeSteer}, nil
	case 0:
		return Packet{Speed: 0, Auxiliary: NoObstacle, Mode: ModeIdle}, nil
	default:
		return Packet{}, fmt.Errorf("%w: %d", ErrBadValue, v)
	}
}
