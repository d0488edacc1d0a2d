package perception

import (
	"go.uber.org/atomic"

	"github.com/banshee-data/guidecane/internal/rangeframe"
)

// FloorFilter rejects samples that look like ground:
//
//   - rising: the sample OffsetRows above is farther by more than RiseDelta,
//     i.e. the surface slopes away from the user;
//   - flat: in the lower part of the frame (canonical row at or below
//     LowerPartStart of the height) the vertical gradient over the same
//     offset is within FlatEpsilon.
//
// A FlatEpsilon of zero disables the flat rule. It is off by default: any
// vertical face in the lower part also has a flat gradient, so the rule only
// suits mounts where nothing but floor can appear there.
type FloorFilter struct {
	OffsetRows     int
	RiseDelta      float64
	FlatEpsilon    float64
	LowerPartStart float64

	// Statistics are read by the monitor while frames are profiled.
	samplesChecked atomic.Int64
	samplesKept    atomic.Int64
	rejectedRising atomic.Int64
	rejectedFlat   atomic.Int64
}

// NewFloorFilter constructs a floor filter.
func NewFloorFilter(offsetRows int, riseDelta, flatEpsilon, lowerPartStart float64) *FloorFilter {
	if offsetRows < 1 {
		offsetRows = 1
	}
	return &FloorFilter{
		OffsetRows:     offsetRows,
		RiseDelta:      riseDelta,
		FlatEpsilon:    flatEpsilon,
		LowerPartStart: lowerPartStart,
	}
}

// DefaultFloorFilter returns the filter used with the default tuning.
func DefaultFloorFilter() *FloorFilter {
	return NewFloorFilter(6, 0.25, 0, 0.6)
}

// IsFloor reports whether the sample d at canonical (cx, cy) is ground.
func (f *FloorFilter) IsFloor(frame *rangeframe.Frame, cx, cy int, d float32) bool {
	f.samplesChecked.Inc()
	above, ok := frame.Canonical(cx, cy-f.OffsetRows)
	if !ok {
		f.samplesKept.Inc()
		return false
	}
	rise := float64(above - d)
	if rise > f.RiseDelta {
		f.rejectedRising.Inc()
		return true
	}
	lower := float64(cy) >= f.LowerPartStart*float64(frame.Height)
	if lower && f.FlatEpsilon > 0 && rise >= -f.FlatEpsilon && rise <= f.FlatEpsilon {
		f.rejectedFlat.Inc()
		return true
	}
	f.samplesKept.Inc()
	return false
}

// Stats returns current filter statistics for monitoring and parameter tuning.
func (f *FloorFilter) Stats() (checked, kept, rising, flat int64) {
	return f.samplesChecked.Load(), f.samplesKept.Load(), f.rejectedRising.Load(), f.rejectedFlat.Load()
}

// ResetStats clears accumulated statistics counters.
func (f *FloorFilter) ResetStats() {
	f.samplesChecked.Store(0)
	f.samplesKept.Store(0)
	f.rejectedRising.Store(0)
	f.rejectedFlat.Store(0)
}
