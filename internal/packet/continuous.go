package packet

import (
	"encoding/binary"
	"math"

	"github.com/banshee-data/guidecane/internal/config"
)

// ContinuousSize is the wire size of a continuous packet.
const ContinuousSize = 12

// Continuous is the canonical 12-byte little-endian codec:
//
//	offset 0  float32 speed
//	offset 4  float32 auxiliary
//	offset 8  uint32  mode
type Continuous struct{}

func (Continuous) Protocol() string { return config.ProtocolContinuous }

func (Continuous) Size() int { return ContinuousSize }

// Encode writes p bit-exactly, including NaN payloads and subnormals.
func (Continuous) Encode(p Packet) []byte {
	b := make([]byte, ContinuousSize)
	binary.LittleEndian.PutUint32(b[0:4], math.Float32bits(p.Speed))
	binary.LittleEndian.PutUint32(b[4:8], math.Float32bits(p.Auxiliary))
	binary.LittleEndian.PutUint32(b[8:12], uint32(p.Mode))
	return b
}

// Decode is the exact inverse of Encode.
func (Continuous) Decode(b []byte) (Packet, error) {
	if err := checkLength(b, ContinuousSize); err != nil {
		return Packet{}, err
	}
	return Packet{
		Speed:     math.Float32frombits(binary.LittleEndian.Uint32(b[0:4])),
		Auxiliary: math.Float32frombits(binary.LittleEndian.Uint32(b[4:8])),
		Mode:      Mode(binary.LittleEndian.Uint32(b[8:12])),
	}, nil
}
