package steering

import (
	"fmt"
	"math"

	"github.com/banshee-data/guidecane/internal/config"
	"github.com/banshee-data/guidecane/internal/perception"
)

// Mode classifies a decision. Values match the wire mode field.
type Mode uint32

const (
	ModeIdle Mode = iota
	ModeSteer
	ModeForced
	ModeCritical
	ModeClear
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeSteer:
		return "steer"
	case ModeForced:
		return "forced"
	case ModeCritical:
		return "critical"
	case ModeClear:
		return "clear"
	default:
		return fmt.Sprintf("mode(%d)", uint32(m))
	}
}

// Config holds the policy thresholds and smoothing factors.
type Config struct {
	Strategy            string
	SensingDistance     float64
	ForcedSteerDistance float64
	CriticalDistance    float64
	NearFieldDistance   float64
	// MaxRange stands in for the average distance of an absent side.
	MaxRange         float64
	MinMagnitude     float64
	Deadband         float64
	BiasDeadband     float64
	GapAlpha         float64
	SideAlpha        float64
	CommandAlpha     float64
	DefaultDirection float64
}

// DefaultConfig returns the policy of the default tuning.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning extracts the policy parameters from a tuning config.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		Strategy:            cfg.GetSteeringStrategy(),
		SensingDistance:     cfg.GetSensingDistanceM(),
		ForcedSteerDistance: cfg.GetForcedSteerDistanceM(),
		CriticalDistance:    cfg.GetCriticalDistanceM(),
		NearFieldDistance:   cfg.GetNearFieldDistanceM(),
		MaxRange:            cfg.GetMaxRangeM(),
		MinMagnitude:        cfg.GetMinMagnitude(),
		Deadband:            cfg.GetDeadband(),
		BiasDeadband:        cfg.GetBiasDeadband(),
		GapAlpha:            cfg.GetGapAlpha(),
		SideAlpha:           cfg.GetSideAlpha(),
		CommandAlpha:        cfg.GetCommandAlpha(),
		DefaultDirection:    cfg.GetDefaultDirection(),
	}
}

// Decision is the committed steering output for one frame.
type Decision struct {
	Command    float64
	Confidence float64
	Mode       Mode
	Rationale  string

	Closest    float64
	HasClosest bool
	Proximity  float64
	RawGap     float64
	NavBias    float64
	HasNavBias bool

	Filters FilterSnapshot
	Zones   perception.ObstacleZones
}

// Engine applies the steering policy. It owns all smoothing state; use
// one engine per decision stream. Not safe for concurrent use.
type Engine struct {
	cfg     Config
	filters FilterState
}

// NewEngine creates an engine with unprimed filters.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg:     cfg,
		filters: NewFilterState(cfg.GapAlpha, cfg.SideAlpha, cfg.CommandAlpha),
	}
}

// Config returns the active policy.
func (e *Engine) Config() Config { return e.cfg }

// SetConfig swaps the policy, keeping the smoothing state.
func (e *Engine) SetConfig(cfg Config) {
	e.cfg = cfg
	e.filters.SetAlphas(cfg.GapAlpha, cfg.SideAlpha, cfg.CommandAlpha)
}

// Reset clears every smoothing stage so the next frame starts from zero.
func (e *Engine) Reset() { e.filters.Reset() }

// Filters returns the current smoothed state.
func (e *Engine) Filters() FilterSnapshot { return e.filters.Snapshot() }

// Proximity ramps from 0 at the sensing distance to 1 at the near-field floor.
func (e *Engine) Proximity(d float64) float64 {
	span := e.cfg.SensingDistance - e.cfg.NearFieldDistance
	if span <= 0 {
		if d < e.cfg.SensingDistance {
			return 1
		}
		return 0
	}
	return clamp((e.cfg.SensingDistance-d)/span, 0, 1)
}

// Decide produces the decision for one frame. bias is the optional
// navigation bias; nil means none.
func (e *Engine) Decide(zones perception.ObstacleZones, profile perception.ClearanceProfile, bias *float64) Decision {
	cfg := e.cfg
	f := &e.filters

	raw, _ := GapDirection(profile, cfg.DefaultDirection)
	zones.GapDirection = raw
	gap := f.Gap.Update(raw)
	lateral := f.Bias.Update(zones.LateralBias)
	left := f.LeftAvg.Update(sideAverage(zones.Left, cfg.MaxRange))
	right := f.RightAvg.Update(sideAverage(zones.Right, cfg.MaxRange))

	closest, hasClosest := zones.Closest()
	d := Decision{
		Closest:    closest,
		HasClosest: hasClosest,
		RawGap:     raw,
		Zones:      zones,
	}
	if bias != nil && !math.IsNaN(*bias) {
		d.NavBias = clamp(*bias, -1, 1)
		d.HasNavBias = true
	}

	switch {
	case !hasClosest || closest >= cfg.SensingDistance:
		d.Mode = ModeClear
		d.Confidence = 1
		d.Rationale = "clear path"
		if d.HasNavBias {
			d.Command = d.NavBias
			d.Rationale = "clear path, following route"
		}
		f.Command.Set(d.Command)

	case zones.Center.Present() && zones.Center.Nearest < cfg.ForcedSteerDistance:
		dir, why := e.forcedDirection(left, right, lateral)
		d.Confidence = 1
		d.Proximity = e.Proximity(zones.Center.Nearest)
		if zones.Center.Nearest < cfg.CriticalDistance {
			d.Mode = ModeCritical
			d.Command = dir
			d.Rationale = fmt.Sprintf("critical: obstacle ahead at %.2fm, steer %s (%s)", zones.Center.Nearest, sideName(dir), why)
		} else {
			d.Mode = ModeForced
			target := dir * math.Max(d.Proximity, cfg.MinMagnitude)
			out := f.Command.Update(target)
			if out*dir <= 0 || math.Abs(out) < cfg.MinMagnitude {
				out = dir * cfg.MinMagnitude
			}
			d.Command = clamp(out, -1, 1)
			d.Rationale = fmt.Sprintf("forced: obstacle ahead at %.2fm, steer %s (%s)", zones.Center.Nearest, sideName(dir), why)
		}
		f.Command.Set(d.Command)

	default:
		d.Mode = ModeSteer
		d.Proximity = e.Proximity(closest)
		var dir float64
		how := "toward gap"
		if cfg.Strategy == config.StrategyBias {
			dir = -lateral
			how = "away from obstacles"
			d.Confidence = clamp(math.Abs(lateral), 0, 1)
		} else {
			dir = gap
			d.Confidence = clamp(math.Abs(gap), 0, 1)
		}
		target := 0.0
		if math.Abs(dir) >= cfg.Deadband {
			target = clamp(math.Copysign(math.Max(math.Abs(dir), cfg.MinMagnitude), dir)*d.Proximity, -1, 1)
		}
		if d.HasNavBias {
			target = MergeBias(target, d.NavBias, d.Proximity)
		}
		d.Command = clamp(f.Command.Update(target), -1, 1)
		if target == 0 && !d.HasNavBias {
			d.Rationale = fmt.Sprintf("obstacle at %.2fm, holding course", closest)
		} else {
			d.Rationale = fmt.Sprintf("obstacle at %.2fm, steer %s %s", closest, sideName(target), how)
		}
	}

	d.Filters = f.Snapshot()
	return d
}

// forcedDirection picks the side with more room, then the side away from
// the obstacle centroid, then the configured default.
func (e *Engine) forcedDirection(left, right, lateral float64) (float64, string) {
	switch {
	case left > right:
		return -1, "more room left"
	case right > left:
		return 1, "more room right"
	case lateral > e.cfg.BiasDeadband:
		return -1, "obstacles concentrated right"
	case lateral < -e.cfg.BiasDeadband:
		return 1, "obstacles concentrated left"
	case e.cfg.DefaultDirection < 0:
		return -1, "default direction"
	default:
		return 1, "default direction"
	}
}

func sideAverage(z perception.Zone, maxRange float64) float64 {
	if !z.Present() {
		return maxRange
	}
	return z.Average
}

func sideName(v float64) string {
	if v < 0 {
		return "left"
	}
	return "right"
}
