package perception

import "math"

// ClearanceProfile holds the average clearance of N equal-width columns
// spanning the forward field of view, left to right. A column with zero
// valid samples has clearance 0.
type ClearanceProfile struct {
	Columns []float64
	Counts  []int
}

// NewClearanceProfile returns an empty profile with n columns.
func NewClearanceProfile(n int) ClearanceProfile {
	return ClearanceProfile{Columns: make([]float64, n), Counts: make([]int, n)}
}

// UniformProfile returns a profile with every column at d, one sample each.
func UniformProfile(n int, d float64) ClearanceProfile {
	p := NewClearanceProfile(n)
	for i := range p.Columns {
		p.Columns[i] = d
		p.Counts[i] = 1
	}
	return p
}

// Len returns the number of columns.
func (p ClearanceProfile) Len() int { return len(p.Columns) }

// Empty reports whether column i received no valid samples.
func (p ClearanceProfile) Empty(i int) bool {
	return i < 0 || i >= len(p.Counts) || p.Counts[i] == 0
}

// AllEmpty reports whether no column received a valid sample.
func (p ClearanceProfile) AllEmpty() bool {
	for i := range p.Columns {
		if !p.Empty(i) {
			return false
		}
	}
	return true
}

// Zone summarises one third of the field of view.
type Zone struct {
	Nearest float64
	Average float64
	Count   int
}

// Present reports whether the zone saw any valid sample.
func (z Zone) Present() bool { return z.Count > 0 }

// ObstacleZones is the per-frame obstacle summary.
//
// LateralBias is the inverse-distance-weighted horizontal centroid of
// near samples: positive means obstacles are concentrated to the right.
// GapDirection is filled by the steering engine with the raw direction of
// the clearest column.
type ObstacleZones struct {
	Left, Center, Right Zone
	LateralBias         float64
	GapDirection        float64
}

// Closest returns the minimum nearest distance across present zones.
// ok is false when all three are absent, which downstream treats as a clear path.
func (z ObstacleZones) Closest() (float64, bool) {
	closest := math.Inf(1)
	ok := false
	for _, zone := range []Zone{z.Left, z.Center, z.Right} {
		if zone.Present() && zone.Nearest < closest {
			closest = zone.Nearest
			ok = true
		}
	}
	if !ok {
		return 0, false
	}
	return closest, true
}
