package steering

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/guidecane/internal/perception"
)

func profileOf(cols ...float64) perception.ClearanceProfile {
	p := perception.NewClearanceProfile(len(cols))
	for i, c := range cols {
		p.Columns[i] = c
		if c > 0 {
			p.Counts[i] = 1
		}
	}
	return p
}

func TestGapDirection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		profile    perception.ClearanceProfile
		defaultDir float64
		want       float64
		wantOK     bool
	}{
		{
			name:       "uniform profile goes straight",
			profile:    perception.UniformProfile(16, 4.0),
			defaultDir: 1,
			want:       0,
			wantOK:     true,
		},
		{
			name:       "all columns empty",
			profile:    perception.NewClearanceProfile(16),
			defaultDir: 1,
			want:       0,
			wantOK:     false,
		},
		{
			name:       "gap at far left",
			profile:    profileOf(5, 5, 1, 1, 1, 1, 1, 1),
			defaultDir: 1,
			want:       -1,
			wantOK:     true,
		},
		{
			name:       "gap at far right",
			profile:    profileOf(1, 1, 1, 1, 1, 1, 5, 5),
			defaultDir: -1,
			want:       1,
			wantOK:     true,
		},
		{
			// A lone bright column loses to a wider, slightly shallower gap.
			name:       "kernel suppresses single-column noise",
			profile:    profileOf(1, 1, 3, 1, 1, 1, 1, 1, 1, 1, 2.8, 2.8, 2.8, 1, 1, 1),
			defaultDir: 1,
			want:       11.0/15*2 - 1,
			wantOK:     true,
		},
		{
			name:       "tie prefers the column nearest centre",
			profile:    profileOf(5, 5, 5, 1, 5, 5, 5, 5),
			defaultDir: -1,
			want:       5.0/7*2 - 1,
			wantOK:     true,
		},
		{
			name:       "symmetric tie follows default right",
			profile:    profileOf(5, 5, 1, 1, 1, 1, 5, 5),
			defaultDir: 1,
			want:       1,
			wantOK:     true,
		},
		{
			name:       "symmetric tie follows default left",
			profile:    profileOf(5, 5, 1, 1, 1, 1, 5, 5),
			defaultDir: -1,
			want:       -1,
			wantOK:     true,
		},
		{
			name:       "two columns renormalise at the edges",
			profile:    profileOf(2, 2),
			defaultDir: 1,
			want:       0,
			wantOK:     true,
		},
		{
			name:       "single column",
			profile:    profileOf(3),
			defaultDir: 1,
			want:       0,
			wantOK:     true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := GapDirection(tt.profile, tt.defaultDir)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestGapDirectionUniformProfilesGoStraight(t *testing.T) {
	t.Parallel()

	for _, n := range []int{7, 8, 15, 16} {
		for cm := 1; cm <= 500; cm++ {
			d := float64(cm) / 100
			dir, ok := GapDirection(perception.UniformProfile(n, d), 1)
			require.True(t, ok)
			require.Equalf(t, 0.0, dir, "n=%d d=%.2f", n, d)

			dir, _ = GapDirection(perception.UniformProfile(n, d), -1)
			require.Equalf(t, 0.0, dir, "n=%d d=%.2f default left", n, d)
		}
	}
}

func TestGapDirectionNearEqualEdgeLosesToCentre(t *testing.T) {
	t.Parallel()

	// 1.52 renormalises at the edges to a value one ulp above the interior.
	p := perception.UniformProfile(15, 1.52)
	smoothed := SmoothProfile(p)
	assert.InDelta(t, smoothed[7], smoothed[0], 1e-12)

	dir, ok := GapDirection(p, 1)
	require.True(t, ok)
	assert.Equal(t, 0.0, dir)
}

func TestGapDirectionNeverSelectsEmptyColumn(t *testing.T) {
	t.Parallel()

	// The middle column carries a stale clearance but no samples.
	p := profileOf(4, 10, 4)
	p.Counts[1] = 0

	smoothed := SmoothProfile(p)
	require.Greater(t, smoothed[1], smoothed[0])

	got, ok := GapDirection(p, 1)
	require.True(t, ok)
	assert.Equal(t, 1.0, got)

	got, _ = GapDirection(p, -1)
	assert.Equal(t, -1.0, got)
}

func TestSmoothProfile(t *testing.T) {
	t.Parallel()

	got := SmoothProfile(profileOf(4, 0, 8, 4))
	want := []float64{
		(0.5*4 + 0.25*0) / 0.75,
		0.25*4 + 0.5*0 + 0.25*8,
		0.25*0 + 0.5*8 + 0.25*4,
		(0.25*8 + 0.5*4) / 0.75,
	}
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-12, "column %d", i)
	}
}

func TestClosestDistance(t *testing.T) {
	t.Parallel()

	_, ok := ClosestDistance(perception.ObstacleZones{})
	assert.False(t, ok)

	d, ok := ClosestDistance(perception.ObstacleZones{
		Left:  perception.Zone{Nearest: 1.5, Average: 2, Count: 3},
		Right: perception.Zone{Nearest: 0.9, Average: 1, Count: 2},
	})
	require.True(t, ok)
	assert.Equal(t, 0.9, d)
}
