//go:build !pcap
// +build !pcap

package link

import (
	"context"
	"fmt"

	"github.com/banshee-data/guidecane/internal/packet"
)

// ReadCapture is a stub implementation when PCAP support is disabled.
// Build with -tags=pcap to enable capture replay.
func ReadCapture(ctx context.Context, file string, udpPort int, codec packet.Codec, fn CaptureFunc) (CaptureStats, error) {
	return CaptureStats{}, fmt.Errorf("PCAP support not enabled: rebuild with -tags=pcap to enable capture replay")
}
