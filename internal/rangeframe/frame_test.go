package rangeframe

import (
	"context"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrame_At(t *testing.T) {
	f := NewUniformFrame(4, 3, 2.5)

	d, ok := f.At(1, 1)
	require.True(t, ok)
	assert.Equal(t, float32(2.5), d)

	_, ok = f.At(-1, 0)
	assert.False(t, ok, "out of bounds")
	_, ok = f.At(4, 0)
	assert.False(t, ok, "out of bounds")

	f.Depth[0] = float32(math.NaN())
	_, ok = f.At(0, 0)
	assert.False(t, ok, "NaN is never usable")

	f.Depth[1] = float32(math.Inf(1))
	_, ok = f.At(1, 0)
	assert.False(t, ok, "Inf is never usable")

	f.Valid[2] = false
	_, ok = f.At(2, 0)
	assert.False(t, ok, "validity flag honoured")
}

func TestFrame_NilValidMeansAllValid(t *testing.T) {
	f := &Frame{Width: 2, Height: 1, Depth: []float32{1, 2}}
	d, ok := f.At(1, 0)
	require.True(t, ok)
	assert.Equal(t, float32(2), d)

	f.InvalidateCanonical(0, 0)
	_, ok = f.At(0, 0)
	assert.False(t, ok)
	_, ok = f.At(1, 0)
	assert.True(t, ok)
}

func TestOrientation_CanonicalMapping(t *testing.T) {
	tests := []struct {
		orientation Orientation
		rawX, rawY  int
	}{
		{Upright, 0, 0},
		{Mirrored, 3, 0},
		{Inverted, 3, 2},
	}
	for _, tt := range tests {
		t.Run(tt.orientation.String(), func(t *testing.T) {
			f := NewFrame(4, 3)
			f.Orientation = tt.orientation
			f.SetCanonical(0, 0, 1.25)

			d, ok := f.At(tt.rawX, tt.rawY)
			require.True(t, ok, "canonical (0,0) should land on raw (%d,%d)", tt.rawX, tt.rawY)
			assert.Equal(t, float32(1.25), d)

			d, ok = f.Canonical(0, 0)
			require.True(t, ok)
			assert.Equal(t, float32(1.25), d)
		})
	}
}

func TestParseOrientation(t *testing.T) {
	for _, o := range []Orientation{Upright, Inverted, Mirrored} {
		got, err := ParseOrientation(o.String())
		require.NoError(t, err)
		assert.Equal(t, o, got)
	}
	_, err := ParseOrientation("sideways")
	assert.Error(t, err)
}

func TestNormalizedX(t *testing.T) {
	f := NewFrame(4, 1)
	assert.InDelta(t, -0.75, f.NormalizedX(0), 1e-9)
	assert.InDelta(t, 0.75, f.NormalizedX(3), 1e-9)
}

func TestScene_RenderObstacleSameSideForAnyOrientation(t *testing.T) {
	for _, o := range []Orientation{Upright, Inverted, Mirrored} {
		t.Run(o.String(), func(t *testing.T) {
			s := Scene{Width: 40, Height: 20, Background: 4, Orientation: o}
			s.Obstacles = []Obstacle{{Left: -1, Right: -0.5, Top: 0, Bottom: 1, Distance: 0.8}}
			f := s.Render(7, time.Unix(10, 0))

			assert.Equal(t, uint64(7), f.Seq)
			left, ok := f.Canonical(2, 10)
			require.True(t, ok)
			assert.Equal(t, float32(0.8), left)
			right, ok := f.Canonical(37, 10)
			require.True(t, ok)
			assert.Equal(t, float32(4), right)
		})
	}
}

func TestScene_FloorGrowsTowardHorizon(t *testing.T) {
	s := Scene{Width: 8, Height: 100, FloorHeight: 1, VerticalFOV: 60}
	f := s.Render(1, time.Time{})

	near, ok := f.Canonical(4, 99)
	require.True(t, ok)
	far, ok := f.Canonical(4, 60)
	require.True(t, ok)
	assert.Greater(t, far, near)

	_, ok = f.Canonical(4, 10)
	assert.False(t, ok, "no background above the horizon")
}

func TestScene_Holes(t *testing.T) {
	s := Scene{Width: 10, Height: 10, Background: 3}
	s.Holes = []Hole{{Left: -1, Right: 1, Top: 0, Bottom: 0.5}}
	f := s.Render(1, time.Time{})

	_, ok := f.Canonical(5, 1)
	assert.False(t, ok)
	_, ok = f.Canonical(5, 8)
	assert.True(t, ok)
}

func TestApproachingObstacle(t *testing.T) {
	script := ApproachingObstacle(Scene{Width: 10, Height: 10}, -0.2, 0.2, 3, 1, 1)

	s := script(500 * time.Millisecond)
	require.Len(t, s.Obstacles, 1)
	assert.InDelta(t, 2.5, s.Obstacles[0].Distance, 1e-9)

	// wraps after travelling the full span
	s = script(2500 * time.Millisecond)
	assert.InDelta(t, 2.5, s.Obstacles[0].Distance, 1e-9)
}

func TestScriptByName(t *testing.T) {
	for _, name := range []string{"clear", "wall", "doorway", "approach"} {
		script, ok := ScriptByName(name, DefaultScene())
		require.True(t, ok, name)
		require.NotNil(t, script(0).Render(1, time.Time{}))
	}
	_, ok := ScriptByName("maze", DefaultScene())
	assert.False(t, ok)
}

func TestSource_EmitsFramesOnTicks(t *testing.T) {
	mock := clock.NewMock()
	src := NewSource(mock, 20, Static(Scene{Width: 4, Height: 4, Background: 2}))

	var count atomic.Int64
	var lastSeq atomic.Uint64
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- src.Run(ctx, func(f *Frame) {
			count.Add(1)
			lastSeq.Store(f.Seq)
		})
	}()

	require.Eventually(t, func() bool {
		mock.Add(50 * time.Millisecond)
		return count.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, lastSeq.Load(), uint64(3))

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
