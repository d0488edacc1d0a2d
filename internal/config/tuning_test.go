package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	require.NotNil(t, cfg.CriticalDistanceM)
	assert.Equal(t, 0.6, *cfg.CriticalDistanceM)
	require.NotNil(t, cfg.TimeConstant)
	assert.Equal(t, "500ms", *cfg.TimeConstant)
	require.NotNil(t, cfg.Columns)
	assert.Equal(t, 16, *cfg.Columns)

	assert.Equal(t, 1.0, cfg.GetForcedSteerDistanceM())
	assert.Equal(t, 15.0, cfg.GetSendRateHz())
	assert.Equal(t, 250*time.Millisecond, cfg.GetStalenessTimeout())
	assert.Equal(t, 3*time.Second, cfg.GetNavBiasTTL())
	assert.NoError(t, cfg.Validate())
}

func TestEmptyTuningConfig_Defaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	assert.Equal(t, StrategyGap, cfg.GetSteeringStrategy())
	assert.Equal(t, ProtocolContinuous, cfg.GetProtocol())
	assert.Equal(t, 0.2, cfg.GetCommandAlpha())
	assert.Equal(t, 1.0, cfg.GetDefaultDirection())
	assert.Equal(t, 500*time.Millisecond, cfg.GetTimeConstant())
	assert.Equal(t, 50.0, cfg.GetTickRateHz())
	assert.NoError(t, cfg.Validate())
}

func TestGetStalenessTimeout_PerProtocol(t *testing.T) {
	discrete := ProtocolDiscrete
	cfg := &TuningConfig{Protocol: &discrete}
	assert.Equal(t, 500*time.Millisecond, cfg.GetStalenessTimeout())

	explicit := "300ms"
	cfg.StalenessTimeout = &explicit
	assert.Equal(t, 300*time.Millisecond, cfg.GetStalenessTimeout())

	bad := "soon"
	cfg.StalenessTimeout = &bad
	assert.Equal(t, 500*time.Millisecond, cfg.GetStalenessTimeout(), "parse errors fall back to the default")
}

func TestLoadTuningConfig(t *testing.T) {
	path := writeConfig(t, "tuning.json", `{
  "critical_distance_m": 0.5,
  "forced_steer_distance_m": 0.9,
  "protocol": "Discrete",
  "time_constant": "400ms"
}`)

	cfg, err := LoadTuningConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 0.5, cfg.GetCriticalDistanceM())
	assert.Equal(t, 0.9, cfg.GetForcedSteerDistanceM())
	assert.Equal(t, ProtocolDiscrete, cfg.GetProtocol())
	assert.Equal(t, 400*time.Millisecond, cfg.GetTimeConstant())
	// untouched fields keep their defaults
	assert.Equal(t, 2.0, cfg.GetSensingDistanceM())
}

func TestLoadTuningConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"wrong extension", "tuning.yaml", `{}`, ".json extension"},
		{"bad json", "tuning.json", `{`, "failed to parse"},
		{"critical above forced", "tuning.json", `{"critical_distance_m": 1.5}`, "critical"},
		{"alpha out of range", "tuning.json", `{"command_alpha": 1.5}`, "command_alpha"},
		{"send rate too fast", "tuning.json", `{"send_rate_hz": 60}`, "send_rate_hz"},
		{"bad duration", "tuning.json", `{"time_constant": "fast"}`, "time_constant"},
		{"bad default direction", "tuning.json", `{"default_direction": 0}`, "default_direction"},
		{"bad strategy", "tuning.json", `{"steering_strategy": "repel"}`, "steering_strategy"},
		{"inverted band", "tuning.json", `{"band_top": 0.8, "band_bottom": 0.5}`, "band_top"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.body)
			_, err := LoadTuningConfig(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadTuningConfig_TooLarge(t *testing.T) {
	body := `{"columns": 16` + strings.Repeat(" ", 1024*1024) + `}`
	path := writeConfig(t, "big.json", body)
	_, err := LoadTuningConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestLoadTuningConfig_Missing(t *testing.T) {
	_, err := LoadTuningConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	require.NotNil(t, cfg)

	// The defaults file and the Get* fallbacks must agree.
	empty := EmptyTuningConfig()
	assert.Equal(t, empty.GetCriticalDistanceM(), cfg.GetCriticalDistanceM())
	assert.Equal(t, empty.GetSensingDistanceM(), cfg.GetSensingDistanceM())
	assert.Equal(t, empty.GetCommandAlpha(), cfg.GetCommandAlpha())
	assert.Equal(t, empty.GetTimeConstant(), cfg.GetTimeConstant())
	assert.Equal(t, empty.GetStalenessTimeout(), cfg.GetStalenessTimeout())
	assert.Equal(t, empty.GetColumns(), cfg.GetColumns())
}
