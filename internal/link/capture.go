//go:build pcap
// +build pcap

package link

import (
	"context"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/banshee-data/guidecane/internal/monitoring"
	"github.com/banshee-data/guidecane/internal/packet"
)

// ReadCapture decodes control packets from the UDP payloads of a pcap
// file. Payloads the codec rejects are counted and skipped.
// This function is only available when building with the 'pcap' build tag.
func ReadCapture(ctx context.Context, file string, udpPort int, codec packet.Codec, fn CaptureFunc) (CaptureStats, error) {
	var stats CaptureStats
	handle, err := pcap.OpenOffline(file)
	if err != nil {
		return stats, fmt.Errorf("failed to open PCAP file %s: %w", file, err)
	}
	defer handle.Close()

	filterStr := fmt.Sprintf("udp port %d", udpPort)
	if err := handle.SetBPFFilter(filterStr); err != nil {
		return stats, fmt.Errorf("failed to set BPF filter '%s': %w", filterStr, err)
	}

	source := gopacket.NewPacketSource(handle, handle.LinkType())
	for {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case pkt := <-source.Packets():
			if pkt == nil {
				monitoring.Logf("[Capture] %s: %d frames, %d decoded, %d rejected", file, stats.Frames, stats.Decoded, stats.Rejected)
				return stats, nil
			}
			stats.Frames++
			udpLayer := pkt.Layer(layers.LayerTypeUDP)
			if udpLayer == nil {
				continue
			}
			udp, ok := udpLayer.(*layers.UDP)
			if !ok || len(udp.Payload) == 0 {
				continue
			}
			p, err := codec.Decode(udp.Payload)
			if err != nil {
				stats.Rejected++
				continue
			}
			stats.Decoded++
			if fn != nil {
				fn(pkt.Metadata().Timestamp, p)
			}
		}
	}
}
