package actuator

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/guidecane/internal/link"
	"github.com/banshee-data/guidecane/internal/packet"
)

func TestReceiverDispatchesAndClearsOnReconnect(t *testing.T) {
	t.Parallel()

	mem := link.NewMemory(link.MemoryConfig{})
	a := New(testConfig(), packet.Continuous{}, clock.New(), nil)
	r := NewReceiver(mem.B(), a, clock.New(), &link.Backoff{Initial: time.Millisecond, Max: 5 * time.Millisecond, Factor: 2})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return r.State().Connected }, 2*time.Second, time.Millisecond)

	tx, err := mem.A().Dial(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Send(encode(0.7, 1.2)))
	require.NoError(t, tx.Send([]byte{1, 2, 3}))

	require.Eventually(t, func() bool {
		return a.Stats().Received == 1 && a.Stats().Rejected == 1
	}, 2*time.Second, time.Millisecond)
	c, ok := a.Latest()
	require.True(t, ok)
	assert.Equal(t, float32(0.7), c.Packet.Speed)
	assert.False(t, r.State().LastPacket.IsZero())

	mem.SetDown()
	require.Eventually(t, func() bool { return !r.State().Connected }, 2*time.Second, time.Millisecond)

	mem.SetUp()
	require.Eventually(t, func() bool { return r.State().Connected }, 2*time.Second, time.Millisecond)
	_, ok = a.Latest()
	assert.False(t, ok, "snapshot cleared on link-up")

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
