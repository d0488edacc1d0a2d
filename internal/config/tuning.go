package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// Strategy names accepted by the steering_strategy field.
const (
	StrategyGap  = "gap"
	StrategyBias = "bias"
)

// Protocol names accepted by the protocol field.
const (
	ProtocolContinuous = "continuous"
	ProtocolDiscrete   = "discrete"
)

// TuningConfig represents the root configuration for tuning parameters.
// The same JSON is used for startup configuration and for hot reloads, so
// every field is optional and falls back to the Get* default when omitted.
type TuningConfig struct {
	// Zone profiler
	BandTop           *float64 `json:"band_top,omitempty"`
	BandBottom        *float64 `json:"band_bottom,omitempty"`
	StrideX           *int     `json:"stride_x,omitempty"`
	StrideY           *int     `json:"stride_y,omitempty"`
	MinRangeM         *float64 `json:"min_range_m,omitempty"`
	MaxRangeM         *float64 `json:"max_range_m,omitempty"`
	Columns           *int     `json:"columns,omitempty"`
	FloorOffsetRows   *int     `json:"floor_offset_rows,omitempty"`
	FloorRiseDeltaM   *float64 `json:"floor_rise_delta_m,omitempty"`
	FloorFlatEpsilonM *float64 `json:"floor_flat_epsilon_m,omitempty"`
	LowerPartStart    *float64 `json:"lower_part_start,omitempty"`

	// Steering policy
	SteeringStrategy     *string  `json:"steering_strategy,omitempty"`
	SensingDistanceM     *float64 `json:"sensing_distance_m,omitempty"`
	ForcedSteerDistanceM *float64 `json:"forced_steer_distance_m,omitempty"`
	CriticalDistanceM    *float64 `json:"critical_distance_m,omitempty"`
	NearFieldDistanceM   *float64 `json:"near_field_distance_m,omitempty"`
	MinMagnitude         *float64 `json:"min_magnitude,omitempty"`
	Deadband             *float64 `json:"deadband,omitempty"`
	BiasDeadband         *float64 `json:"bias_deadband,omitempty"`
	GapAlpha             *float64 `json:"gap_alpha,omitempty"`
	SideAlpha            *float64 `json:"side_alpha,omitempty"`
	CommandAlpha         *float64 `json:"command_alpha,omitempty"`
	DefaultDirection     *float64 `json:"default_direction,omitempty"`
	NavBiasTTL           *string  `json:"nav_bias_ttl,omitempty"` // duration string like "3s"

	// Transport
	Protocol          *string  `json:"protocol,omitempty"`
	SendRateHz        *float64 `json:"send_rate_hz,omitempty"`
	DiscreteThreshold *float64 `json:"discrete_threshold,omitempty"`

	// Actuator
	StalenessTimeout *string  `json:"staleness_timeout,omitempty"` // empty means per-protocol default
	TickRateHz       *float64 `json:"tick_rate_hz,omitempty"`
	TimeConstant     *string  `json:"time_constant,omitempty"`
	DriveScale       *float64 `json:"drive_scale,omitempty"`
	MaxDrive         *float64 `json:"max_drive,omitempty"`
	PulseNearM       *float64 `json:"pulse_near_m,omitempty"`
	PulseFarM        *float64 `json:"pulse_far_m,omitempty"`
	PulseMinPeriod   *string  `json:"pulse_min_period,omitempty"`
	PulseMaxPeriod   *string  `json:"pulse_max_period,omitempty"`
	PulseWidth       *string  `json:"pulse_width,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated from
// the Get* defaults. Useful for writing a fresh defaults file.
func DefaultTuningConfig() *TuningConfig {
	e := EmptyTuningConfig()
	return &TuningConfig{
		BandTop:           ptrFloat64(e.GetBandTop()),
		BandBottom:        ptrFloat64(e.GetBandBottom()),
		StrideX:           ptrInt(e.GetStrideX()),
		StrideY:           ptrInt(e.GetStrideY()),
		MinRangeM:         ptrFloat64(e.GetMinRangeM()),
		MaxRangeM:         ptrFloat64(e.GetMaxRangeM()),
		Columns:           ptrInt(e.GetColumns()),
		FloorOffsetRows:   ptrInt(e.GetFloorOffsetRows()),
		FloorRiseDeltaM:   ptrFloat64(e.GetFloorRiseDeltaM()),
		FloorFlatEpsilonM: ptrFloat64(e.GetFloorFlatEpsilonM()),
		LowerPartStart:    ptrFloat64(e.GetLowerPartStart()),

		SteeringStrategy:     ptrString(e.GetSteeringStrategy()),
		SensingDistanceM:     ptrFloat64(e.GetSensingDistanceM()),
		ForcedSteerDistanceM: ptrFloat64(e.GetForcedSteerDistanceM()),
		CriticalDistanceM:    ptrFloat64(e.GetCriticalDistanceM()),
		NearFieldDistanceM:   ptrFloat64(e.GetNearFieldDistanceM()),
		MinMagnitude:         ptrFloat64(e.GetMinMagnitude()),
		Deadband:             ptrFloat64(e.GetDeadband()),
		BiasDeadband:         ptrFloat64(e.GetBiasDeadband()),
		GapAlpha:             ptrFloat64(e.GetGapAlpha()),
		SideAlpha:            ptrFloat64(e.GetSideAlpha()),
		CommandAlpha:         ptrFloat64(e.GetCommandAlpha()),
		DefaultDirection:     ptrFloat64(e.GetDefaultDirection()),
		NavBiasTTL:           ptrString(e.GetNavBiasTTL().String()),

		Protocol:          ptrString(e.GetProtocol()),
		SendRateHz:        ptrFloat64(e.GetSendRateHz()),
		DiscreteThreshold: ptrFloat64(e.GetDiscreteThreshold()),

		StalenessTimeout: ptrString(""),
		TickRateHz:       ptrFloat64(e.GetTickRateHz()),
		TimeConstant:     ptrString(e.GetTimeConstant().String()),
		DriveScale:       ptrFloat64(e.GetDriveScale()),
		MaxDrive:         ptrFloat64(e.GetMaxDrive()),
		PulseNearM:       ptrFloat64(e.GetPulseNearM()),
		PulseFarM:        ptrFloat64(e.GetPulseFarM()),
		PulseMinPeriod:   ptrString(e.GetPulseMinPeriod().String()),
		PulseMaxPeriod:   ptrString(e.GetPulseMaxPeriod().String()),
		PulseWidth:       ptrString(e.GetPulseWidth().String()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from cmd/tools/x/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid. Only fields that
// are set are checked individually; the distance ordering is checked on the
// effective (defaulted) values.
func (c *TuningConfig) Validate() error {
	if c.BandTop != nil && (*c.BandTop < 0 || *c.BandTop >= 1) {
		return fmt.Errorf("band_top must be in [0, 1), got %f", *c.BandTop)
	}
	if c.BandBottom != nil && (*c.BandBottom <= 0 || *c.BandBottom > 1) {
		return fmt.Errorf("band_bottom must be in (0, 1], got %f", *c.BandBottom)
	}
	if c.GetBandTop() >= c.GetBandBottom() {
		return fmt.Errorf("band_top (%f) must be below band_bottom (%f)", c.GetBandTop(), c.GetBandBottom())
	}
	if c.StrideX != nil && *c.StrideX < 1 {
		return fmt.Errorf("stride_x must be at least 1, got %d", *c.StrideX)
	}
	if c.StrideY != nil && *c.StrideY < 1 {
		return fmt.Errorf("stride_y must be at least 1, got %d", *c.StrideY)
	}
	if c.GetMinRangeM() < 0 || c.GetMinRangeM() >= c.GetMaxRangeM() {
		return fmt.Errorf("min_range_m (%f) must be non-negative and below max_range_m (%f)", c.GetMinRangeM(), c.GetMaxRangeM())
	}
	if c.Columns != nil && (*c.Columns < 3 || *c.Columns > 256) {
		return fmt.Errorf("columns must be in [3, 256], got %d", *c.Columns)
	}
	if c.FloorOffsetRows != nil && *c.FloorOffsetRows < 1 {
		return fmt.Errorf("floor_offset_rows must be at least 1, got %d", *c.FloorOffsetRows)
	}
	if c.FloorFlatEpsilonM != nil && *c.FloorFlatEpsilonM < 0 {
		return fmt.Errorf("floor_flat_epsilon_m must be non-negative, got %f", *c.FloorFlatEpsilonM)
	}
	if c.LowerPartStart != nil && (*c.LowerPartStart < 0 || *c.LowerPartStart > 1) {
		return fmt.Errorf("lower_part_start must be in [0, 1], got %f", *c.LowerPartStart)
	}

	if s := c.GetSteeringStrategy(); s != StrategyGap && s != StrategyBias {
		return fmt.Errorf("steering_strategy must be %q or %q, got %q", StrategyGap, StrategyBias, s)
	}
	crit, forced, sensing, near := c.GetCriticalDistanceM(), c.GetForcedSteerDistanceM(), c.GetSensingDistanceM(), c.GetNearFieldDistanceM()
	if crit <= 0 || crit > forced || forced > sensing {
		return fmt.Errorf("distances must satisfy 0 < critical (%f) <= forced (%f) <= sensing (%f)", crit, forced, sensing)
	}
	if near < 0 || near >= sensing {
		return fmt.Errorf("near_field_distance_m (%f) must be in [0, sensing_distance_m)", near)
	}
	for name, v := range map[string]*float64{
		"gap_alpha":     c.GapAlpha,
		"side_alpha":    c.SideAlpha,
		"command_alpha": c.CommandAlpha,
	} {
		if v != nil && (*v <= 0 || *v > 1) {
			return fmt.Errorf("%s must be in (0, 1], got %f", name, *v)
		}
	}
	if c.MinMagnitude != nil && (*c.MinMagnitude < 0 || *c.MinMagnitude > 1) {
		return fmt.Errorf("min_magnitude must be in [0, 1], got %f", *c.MinMagnitude)
	}
	if c.DefaultDirection != nil && *c.DefaultDirection != 1 && *c.DefaultDirection != -1 {
		return fmt.Errorf("default_direction must be -1 or +1, got %f", *c.DefaultDirection)
	}

	if p := c.GetProtocol(); p != ProtocolContinuous && p != ProtocolDiscrete {
		return fmt.Errorf("protocol must be %q or %q, got %q", ProtocolContinuous, ProtocolDiscrete, p)
	}
	if r := c.GetSendRateHz(); r < 10 || r > 20 {
		return fmt.Errorf("send_rate_hz must be in [10, 20], got %f", r)
	}
	if c.TickRateHz != nil && *c.TickRateHz <= 0 {
		return fmt.Errorf("tick_rate_hz must be positive, got %f", *c.TickRateHz)
	}
	if c.MaxDrive != nil && *c.MaxDrive <= 0 {
		return fmt.Errorf("max_drive must be positive, got %f", *c.MaxDrive)
	}

	for name, v := range map[string]*string{
		"nav_bias_ttl":      c.NavBiasTTL,
		"staleness_timeout": c.StalenessTimeout,
		"time_constant":     c.TimeConstant,
		"pulse_min_period":  c.PulseMinPeriod,
		"pulse_max_period":  c.PulseMaxPeriod,
		"pulse_width":       c.PulseWidth,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, *v)
		}
	}
	if c.GetPulseNearM() >= c.GetPulseFarM() {
		return fmt.Errorf("pulse_near_m (%f) must be below pulse_far_m (%f)", c.GetPulseNearM(), c.GetPulseFarM())
	}

	return nil
}

func parseDurationOr(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def // default on parse error
	}
	return d
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

// GetBandTop returns the top of the sampled vertical band as a fraction of frame height.
func (c *TuningConfig) GetBandTop() float64 { return floatOr(c.BandTop, 0.25) }

// GetBandBottom returns the bottom of the sampled vertical band as a fraction of frame height.
func (c *TuningConfig) GetBandBottom() float64 { return floatOr(c.BandBottom, 0.75) }

// GetStrideX returns the horizontal sample stride in pixels.
func (c *TuningConfig) GetStrideX() int { return intOr(c.StrideX, 4) }

// GetStrideY returns the vertical sample stride in pixels.
func (c *TuningConfig) GetStrideY() int { return intOr(c.StrideY, 4) }

// GetMinRangeM returns the nearest trusted sensor distance.
func (c *TuningConfig) GetMinRangeM() float64 { return floatOr(c.MinRangeM, 0.2) }

// GetMaxRangeM returns the farthest trusted sensor distance.
func (c *TuningConfig) GetMaxRangeM() float64 { return floatOr(c.MaxRangeM, 5.0) }

// GetColumns returns the number of clearance profile buckets.
func (c *TuningConfig) GetColumns() int { return intOr(c.Columns, 16) }

// GetFloorOffsetRows returns the vertical offset used by the floor test.
func (c *TuningConfig) GetFloorOffsetRows() int { return intOr(c.FloorOffsetRows, 6) }

// GetFloorRiseDeltaM returns the distance rise over the offset that marks a sample as floor.
func (c *TuningConfig) GetFloorRiseDeltaM() float64 { return floatOr(c.FloorRiseDeltaM, 0.25) }

// GetFloorFlatEpsilonM returns the flat-gradient tolerance for the lower part of the frame.
// Zero, the default, disables the flat-gradient rule.
func (c *TuningConfig) GetFloorFlatEpsilonM() float64 { return floatOr(c.FloorFlatEpsilonM, 0) }

// GetLowerPartStart returns where the lower part of the frame begins, as a fraction of height.
func (c *TuningConfig) GetLowerPartStart() float64 { return floatOr(c.LowerPartStart, 0.6) }

// GetSteeringStrategy returns "gap" (canonical) or "bias" (legacy lateral-bias steering).
func (c *TuningConfig) GetSteeringStrategy() string {
	if c.SteeringStrategy == nil || *c.SteeringStrategy == "" {
		return StrategyGap
	}
	return strings.ToLower(strings.TrimSpace(*c.SteeringStrategy))
}

// GetSensingDistanceM returns the distance at which avoidance starts.
func (c *TuningConfig) GetSensingDistanceM() float64 { return floatOr(c.SensingDistanceM, 2.0) }

// GetForcedSteerDistanceM returns the center distance below which steering is mandatory.
func (c *TuningConfig) GetForcedSteerDistanceM() float64 {
	return floatOr(c.ForcedSteerDistanceM, 1.0)
}

// GetCriticalDistanceM returns the center distance below which steering is maximal.
func (c *TuningConfig) GetCriticalDistanceM() float64 { return floatOr(c.CriticalDistanceM, 0.6) }

// GetNearFieldDistanceM returns the distance at which the proximity factor saturates.
func (c *TuningConfig) GetNearFieldDistanceM() float64 { return floatOr(c.NearFieldDistanceM, 0.5) }

// GetMinMagnitude returns the floor magnitude applied to non-zero steering.
func (c *TuningConfig) GetMinMagnitude() float64 { return floatOr(c.MinMagnitude, 0.3) }

// GetDeadband returns the direction magnitude treated as straight ahead.
func (c *TuningConfig) GetDeadband() float64 { return floatOr(c.Deadband, 0.05) }

// GetBiasDeadband returns the lateral bias magnitude treated as balanced.
func (c *TuningConfig) GetBiasDeadband() float64 { return floatOr(c.BiasDeadband, 0.05) }

// GetGapAlpha returns the slow EMA weight for the gap direction and lateral bias.
func (c *TuningConfig) GetGapAlpha() float64 { return floatOr(c.GapAlpha, 0.1) }

// GetSideAlpha returns the slow EMA weight for left/right average distances.
func (c *TuningConfig) GetSideAlpha() float64 { return floatOr(c.SideAlpha, 0.1) }

// GetCommandAlpha returns the fast EMA weight for the emitted command.
func (c *TuningConfig) GetCommandAlpha() float64 { return floatOr(c.CommandAlpha, 0.2) }

// GetDefaultDirection returns the tie-break direction: +1 steers right, -1 steers left.
func (c *TuningConfig) GetDefaultDirection() float64 { return floatOr(c.DefaultDirection, 1) }

// GetNavBiasTTL returns how long a navigation bias stays valid without a refresh.
func (c *TuningConfig) GetNavBiasTTL() time.Duration {
	return parseDurationOr(c.NavBiasTTL, 3*time.Second)
}

// GetProtocol returns the wire protocol name.
func (c *TuningConfig) GetProtocol() string {
	if c.Protocol == nil || *c.Protocol == "" {
		return ProtocolContinuous
	}
	return strings.ToLower(strings.TrimSpace(*c.Protocol))
}

// GetSendRateHz returns the fixed packet cadence.
func (c *TuningConfig) GetSendRateHz() float64 { return floatOr(c.SendRateHz, 15) }

// GetDiscreteThreshold returns the |speed| above which the legacy protocol sends ±1.
func (c *TuningConfig) GetDiscreteThreshold() float64 { return floatOr(c.DiscreteThreshold, 0.2) }

// GetStalenessTimeout returns the packet staleness window. When unset the
// window depends on the protocol: 250ms continuous, 500ms discrete.
func (c *TuningConfig) GetStalenessTimeout() time.Duration {
	def := 250 * time.Millisecond
	if c.GetProtocol() == ProtocolDiscrete {
		def = 500 * time.Millisecond
	}
	return parseDurationOr(c.StalenessTimeout, def)
}

// GetTickRateHz returns the motor task rate.
func (c *TuningConfig) GetTickRateHz() float64 { return floatOr(c.TickRateHz, 50) }

// GetTimeConstant returns the leaky integrator time constant.
func (c *TuningConfig) GetTimeConstant() time.Duration {
	return parseDurationOr(c.TimeConstant, 500*time.Millisecond)
}

// GetDriveScale returns the multiplier from |S/tau| to drive magnitude.
func (c *TuningConfig) GetDriveScale() float64 { return floatOr(c.DriveScale, 1.0) }

// GetMaxDrive returns the actuator's maximum drive magnitude.
func (c *TuningConfig) GetMaxDrive() float64 { return floatOr(c.MaxDrive, 1.0) }

// GetPulseNearM returns the distance at which haptic pulses are fastest.
func (c *TuningConfig) GetPulseNearM() float64 { return floatOr(c.PulseNearM, 0.3) }

// GetPulseFarM returns the distance beyond which no haptic pulses are emitted.
func (c *TuningConfig) GetPulseFarM() float64 { return floatOr(c.PulseFarM, 2.0) }

// GetPulseMinPeriod returns the pulse period at PulseNearM.
func (c *TuningConfig) GetPulseMinPeriod() time.Duration {
	return parseDurationOr(c.PulseMinPeriod, 150*time.Millisecond)
}

// GetPulseMaxPeriod returns the pulse period at PulseFarM.
func (c *TuningConfig) GetPulseMaxPeriod() time.Duration {
	return parseDurationOr(c.PulseMaxPeriod, time.Second)
}

// GetPulseWidth returns how long each haptic pulse lasts.
func (c *TuningConfig) GetPulseWidth() time.Duration {
	return parseDurationOr(c.PulseWidth, 40*time.Millisecond)
}
