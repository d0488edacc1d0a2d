package perception

import (
	"math"

	"github.com/banshee-data/guidecane/internal/config"
	"github.com/banshee-data/guidecane/internal/rangeframe"
)

// Config holds the sampling parameters of a ZoneProfiler.
type Config struct {
	BandTop    float64 // fraction of height where the sampled band starts
	BandBottom float64 // fraction of height where the sampled band ends
	StrideX    int
	StrideY    int
	MinRange   float64 // metres
	MaxRange   float64 // metres
	Columns    int
	// ObstacleRange bounds the samples that contribute to LateralBias.
	ObstacleRange float64

	FloorOffsetRows   int
	FloorRiseDelta    float64
	FloorFlatEpsilon  float64
	FloorLowerPartTop float64
}

// DefaultConfig returns the profiler configuration of the default tuning.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning extracts the profiler parameters from a tuning config.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		BandTop:           cfg.GetBandTop(),
		BandBottom:        cfg.GetBandBottom(),
		StrideX:           cfg.GetStrideX(),
		StrideY:           cfg.GetStrideY(),
		MinRange:          cfg.GetMinRangeM(),
		MaxRange:          cfg.GetMaxRangeM(),
		Columns:           cfg.GetColumns(),
		ObstacleRange:     cfg.GetSensingDistanceM(),
		FloorOffsetRows:   cfg.GetFloorOffsetRows(),
		FloorRiseDelta:    cfg.GetFloorRiseDeltaM(),
		FloorFlatEpsilon:  cfg.GetFloorFlatEpsilonM(),
		FloorLowerPartTop: cfg.GetLowerPartStart(),
	}
}

// ProfileStats counts what happened to the samples of the last frame.
type ProfileStats struct {
	Sampled    int
	Invalid    int
	OutOfRange int
	Floor      int
	Kept       int
}

// ZoneProfiler reduces a range frame to a clearance profile and
// left/center/right obstacle zones. It is not safe for concurrent use.
type ZoneProfiler struct {
	cfg   Config
	floor *FloorFilter
	last  ProfileStats
}

// NewZoneProfiler constructs a profiler; zero strides and columns are
// replaced by 1.
func NewZoneProfiler(cfg Config) *ZoneProfiler {
	if cfg.StrideX < 1 {
		cfg.StrideX = 1
	}
	if cfg.StrideY < 1 {
		cfg.StrideY = 1
	}
	if cfg.Columns < 1 {
		cfg.Columns = 1
	}
	return &ZoneProfiler{
		cfg:   cfg,
		floor: NewFloorFilter(cfg.FloorOffsetRows, cfg.FloorRiseDelta, cfg.FloorFlatEpsilon, cfg.FloorLowerPartTop),
	}
}

// Config returns the active configuration.
func (p *ZoneProfiler) Config() Config { return p.cfg }

// FloorFilter exposes the floor filter for statistics.
func (p *ZoneProfiler) FloorFilter() *FloorFilter { return p.floor }

// LastStats returns the sample statistics of the most recent Profile call.
func (p *ZoneProfiler) LastStats() ProfileStats { return p.last }

type zoneAcc struct {
	nearest float64
	sum     float64
	count   int
}

func (a *zoneAcc) add(d float64) {
	if a.count == 0 || d < a.nearest {
		a.nearest = d
	}
	a.sum += d
	a.count++
}

func (a zoneAcc) zone() Zone {
	if a.count == 0 {
		return Zone{}
	}
	return Zone{Nearest: a.nearest, Average: a.sum / float64(a.count), Count: a.count}
}

// Profile samples the central band of frame and returns the clearance
// profile and obstacle zones. GapDirection is left at zero.
func (p *ZoneProfiler) Profile(frame *rangeframe.Frame) (ClearanceProfile, ObstacleZones) {
	cfg := p.cfg
	profile := NewClearanceProfile(cfg.Columns)
	var zones ObstacleZones
	p.last = ProfileStats{}
	if frame == nil || frame.Width <= 0 || frame.Height <= 0 {
		return profile, zones
	}

	y0 := int(math.Floor(cfg.BandTop * float64(frame.Height)))
	y1 := int(math.Ceil(cfg.BandBottom * float64(frame.Height)))
	if y0 < 0 {
		y0 = 0
	}
	if y1 > frame.Height {
		y1 = frame.Height
	}

	var thirds [3]zoneAcc
	colSum := make([]float64, cfg.Columns)
	var weightSum, weightedX float64

	for cy := y0; cy < y1; cy += cfg.StrideY {
		for cx := 0; cx < frame.Width; cx += cfg.StrideX {
			p.last.Sampled++
			v, ok := frame.Canonical(cx, cy)
			if !ok {
				p.last.Invalid++
				continue
			}
			d := float64(v)
			if d < cfg.MinRange || d > cfg.MaxRange {
				p.last.OutOfRange++
				continue
			}
			if p.floor.IsFloor(frame, cx, cy, v) {
				p.last.Floor++
				continue
			}
			p.last.Kept++

			third := cx * 3 / frame.Width
			thirds[third].add(d)

			col := cx * cfg.Columns / frame.Width
			colSum[col] += d
			profile.Counts[col]++

			if d < cfg.ObstacleRange {
				w := 1 / d
				weightSum += w
				weightedX += w * frame.NormalizedX(cx)
			}
		}
	}

	for i := range colSum {
		if profile.Counts[i] > 0 {
			profile.Columns[i] = colSum[i] / float64(profile.Counts[i])
		}
	}
	zones.Left = thirds[0].zone()
	zones.Center = thirds[1].zone()
	zones.Right = thirds[2].zone()
	if weightSum > 0 {
		zones.LateralBias = clamp(weightedX/weightSum, -1, 1)
	}
	return profile, zones
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
