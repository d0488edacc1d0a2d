package link

import (
	"time"

	"github.com/banshee-data/guidecane/internal/packet"
)

// CaptureFunc receives each decoded packet with its capture timestamp.
type CaptureFunc func(at time.Time, p packet.Packet)

// CaptureStats summarises a capture replay.
type CaptureStats struct {
	Frames   int
	Decoded  int
	Rejected int
}
