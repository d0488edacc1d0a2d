package actuator

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/guidecane/internal/packet"
)

func TestPulsePeriod(t *testing.T) {
	t.Parallel()

	cfg := testConfig().Pulse
	tests := []struct {
		name     string
		distance float64
		want     time.Duration
		wantOK   bool
	}{
		{"no obstacle", float64(packet.NoObstacle), 0, false},
		{"beyond far", 2.5, 0, false},
		{"inside near", 0.1, 150 * time.Millisecond, true},
		{"at near", 0.3, 150 * time.Millisecond, true},
		{"at far", 2.0, time.Second, true},
		{"halfway", 1.15, 575 * time.Millisecond, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := cfg.Period(tt.distance)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, float64(tt.want), float64(got), float64(time.Microsecond))
		})
	}
}

func TestPulseTaskNext(t *testing.T) {
	t.Parallel()

	a := New(testConfig(), packet.Continuous{}, clock.NewMock(), nil)
	p := NewPulseTask(a, NewRecordingDriver(0), clock.NewMock())
	now := time.Unix(0, 0)

	_, pulse := p.Next(now)
	assert.False(t, pulse, "no snapshot")

	require.NoError(t, a.HandlePayload(encode(0.5, 0.3), now))
	wait, pulse := p.Next(now)
	assert.True(t, pulse)
	assert.Equal(t, 150*time.Millisecond, wait)

	_, pulse = p.Next(now.Add(time.Second))
	assert.False(t, pulse, "stale snapshot")
}

func TestPulseTaskRun(t *testing.T) {
	t.Parallel()

	mock := clock.NewMock()
	drv := NewRecordingDriver(0)
	a := New(testConfig(), packet.Continuous{}, mock, drv)
	p := NewPulseTask(a, drv, mock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		// Keep the snapshot fresh while time advances.
		_ = a.HandlePayload(encode(0.2, 0.3), mock.Now())
		mock.Add(150 * time.Millisecond)
		return drv.Pulses() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
