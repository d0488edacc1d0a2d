package steering

import (
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBiasInput(t *testing.T) {
	t.Parallel()

	mock := clock.NewMock()
	b := NewBiasInput(mock, 3*time.Second)

	_, ok := b.Get(mock.Now())
	assert.False(t, ok)
	assert.Nil(t, b.Current())

	require.NoError(t, b.Set(0.4))
	v, ok := b.Get(mock.Now())
	require.True(t, ok)
	assert.Equal(t, 0.4, v)

	mock.Add(3 * time.Second)
	_, ok = b.Get(mock.Now())
	assert.True(t, ok, "exactly at the TTL is still fresh")

	mock.Add(time.Millisecond)
	_, ok = b.Get(mock.Now())
	assert.False(t, ok, "stale bias reads as absent")

	require.NoError(t, b.Set(2.5))
	cur := b.Current()
	require.NotNil(t, cur)
	assert.Equal(t, 1.0, *cur)

	b.Clear()
	assert.Nil(t, b.Current())

	assert.Error(t, b.Set(math.NaN()))
	assert.Error(t, b.Set(math.Inf(-1)))
}

func TestBiasInputZeroTTLNeverExpires(t *testing.T) {
	t.Parallel()

	mock := clock.NewMock()
	b := NewBiasInput(mock, 0)
	require.NoError(t, b.Set(-0.2))
	mock.Add(time.Hour)
	v, ok := b.Get(mock.Now())
	assert.True(t, ok)
	assert.Equal(t, -0.2, v)

	b.SetTTL(time.Minute)
	_, ok = b.Get(mock.Now())
	assert.False(t, ok)
}

func TestMergeBias(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                 string
		cmd, bias, proximity float64
		want                 float64
	}{
		{"far obstacle passes bias through", 0, 0.5, 0, 0.5},
		{"near obstacle overrides bias", 0.6, -0.9, 1, 0.6},
		{"halfway", 0.2, 0.4, 0.5, 0.4},
		{"clamped high", 0.9, 0.8, 0, 1},
		{"clamped low", -0.9, -0.8, 0.25, -1},
		{"proximity out of range", 0, 1, 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, MergeBias(tt.cmd, tt.bias, tt.proximity), 1e-12)
		})
	}
}
