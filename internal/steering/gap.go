package steering

import (
	"math"

	"github.com/banshee-data/guidecane/internal/perception"
)

// gapKernel is applied to each column and its immediate neighbours.
var gapKernel = [3]float64{0.25, 0.5, 0.25}

// tieTolerance is the relative difference below which two smoothed
// clearances count as equal. Edge columns are renormalised and differ from
// interior ones by rounding even on a uniform profile.
const tieTolerance = 1e-9

// SmoothProfile convolves the column clearances with gapKernel. Edge
// columns renormalise over the neighbours that exist. Empty columns
// contribute zero clearance.
func SmoothProfile(profile perception.ClearanceProfile) []float64 {
	n := profile.Len()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum, weight float64
		for k := -1; k <= 1; k++ {
			j := i + k
			if j < 0 || j >= n {
				continue
			}
			w := gapKernel[k+1]
			sum += w * profile.Columns[j]
			weight += w
		}
		out[i] = sum / weight
	}
	return out
}

// GapDirection returns the raw direction in [-1, 1] of the column with
// the largest smoothed clearance. Empty columns are never selected. Ties
// go to the column nearest the centre; two tied columns straddling the
// centre mean straight ahead, any other equidistant pair resolves to the
// side of defaultDir. ok is false when every column is empty, in which
// case the direction is 0 (go straight).
func GapDirection(profile perception.ClearanceProfile, defaultDir float64) (float64, bool) {
	n := profile.Len()
	if n == 0 || profile.AllEmpty() {
		return 0, false
	}
	smoothed := SmoothProfile(profile)
	centre := float64(n-1) / 2

	var scale float64
	for _, v := range smoothed {
		scale = math.Max(scale, math.Abs(v))
	}
	eps := tieTolerance * scale

	best := -1
	straddle := false
	for i := 0; i < n; i++ {
		if profile.Empty(i) {
			continue
		}
		if best < 0 || smoothed[i] > smoothed[best]+eps {
			best = i
			straddle = false
			continue
		}
		if smoothed[i] < smoothed[best]-eps {
			continue
		}
		di := math.Abs(float64(i) - centre)
		db := math.Abs(float64(best) - centre)
		switch {
		case di < db:
			best = i
			straddle = false
		case di == db && i-best == 1:
			straddle = true
		case di == db && (float64(i)-centre)*defaultDir > 0:
			best = i
		}
	}
	if straddle {
		return 0, true
	}
	return indexToDirection(best, n), true
}

func indexToDirection(i, n int) float64 {
	if n <= 1 {
		return 0
	}
	return float64(i)/float64(n-1)*2 - 1
}

// ClosestDistance is the minimum nearest distance over the present zones.
// ok is false when all zones are absent, which means a clear path.
func ClosestDistance(zones perception.ObstacleZones) (float64, bool) {
	return zones.Closest()
}
