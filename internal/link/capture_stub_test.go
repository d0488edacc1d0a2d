//go:build !pcap
// +build !pcap

package link

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/guidecane/internal/packet"
)

func TestReadCaptureStub(t *testing.T) {
	t.Parallel()

	_, err := ReadCapture(context.Background(), "capture.pcap", 7420, packet.Continuous{}, nil)
	assert.ErrorContains(t, err, "PCAP support not enabled")
}
