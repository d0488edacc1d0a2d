package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Link kinds accepted by DeploymentConfig.Link.Kind.
const (
	LinkUDP    = "udp"
	LinkSerial = "serial"
	LinkMemory = "memory"
)

// DeploymentConfig describes where the two halves of the cane run and how they
// talk to each other. Unlike TuningConfig it is not hot reloaded.
type DeploymentConfig struct {
	Link       LinkConfig      `yaml:"link"`
	Protocol   string          `yaml:"protocol"`
	Monitor    MonitorConfig   `yaml:"monitor"`
	Telemetry  TelemetryConfig `yaml:"telemetry"`
	TuningPath string          `yaml:"tuning_path"`
	Actuator   ActuatorConfig  `yaml:"actuator"`
}

// LinkConfig selects the transport back end.
type LinkConfig struct {
	Kind         string       `yaml:"kind"`
	Address      string       `yaml:"address"` // remote address for the sender
	Listen       string       `yaml:"listen"`  // local address for the receiver
	SerialDevice string       `yaml:"serial_device"`
	Serial       SerialConfig `yaml:"serial"`
}

// SerialConfig mirrors the serial port options of the link package.
type SerialConfig struct {
	BaudRate int    `yaml:"baud_rate"`
	DataBits int    `yaml:"data_bits"`
	StopBits int    `yaml:"stop_bits"`
	Parity   string `yaml:"parity"`
}

// MonitorConfig configures the diagnostics HTTP server.
type MonitorConfig struct {
	Listen string `yaml:"listen"`
}

// TelemetryConfig configures the diagnostics store. An empty path disables it.
type TelemetryConfig struct {
	DBPath string `yaml:"db_path"`
}

// ActuatorConfig selects the motor output on the receiving side.
type ActuatorConfig struct {
	Driver         string `yaml:"driver"` // recording | pwm
	PWMPin         string `yaml:"pwm_pin"`
	DirPin         string `yaml:"dir_pin"`
	PulsePin       string `yaml:"pulse_pin"`
	PWMFrequencyHz int    `yaml:"pwm_frequency_hz"`
}

// DefaultDeploymentConfig returns a configuration suitable for running both
// halves on one machine over UDP loopback.
func DefaultDeploymentConfig() *DeploymentConfig {
	return &DeploymentConfig{
		Link: LinkConfig{
			Kind:    LinkUDP,
			Address: "127.0.0.1:7420",
			Listen:  ":7420",
		},
		Protocol:   ProtocolContinuous,
		Monitor:    MonitorConfig{Listen: ":8081"},
		TuningPath: DefaultConfigPath,
		Actuator:   ActuatorConfig{Driver: "recording", PWMFrequencyHz: 20000},
	}
}

// LoadDeploymentConfig reads a YAML deployment file on top of the defaults.
func LoadDeploymentConfig(path string) (*DeploymentConfig, error) {
	cleanPath := filepath.Clean(path)
	switch ext := filepath.Ext(cleanPath); ext {
	case ".yml", ".yaml":
	default:
		return nil, fmt.Errorf("deployment file must have .yml or .yaml extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read deployment file: %w", err)
	}

	cfg := DefaultDeploymentConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse deployment YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid deployment: %w", err)
	}
	return cfg, nil
}

// Validate checks the link and protocol selections.
func (d *DeploymentConfig) Validate() error {
	d.Link.Kind = strings.ToLower(strings.TrimSpace(d.Link.Kind))
	switch d.Link.Kind {
	case LinkUDP:
		if d.Link.Address == "" && d.Link.Listen == "" {
			return fmt.Errorf("udp link needs an address or a listen address")
		}
	case LinkSerial:
		if d.Link.SerialDevice == "" {
			return fmt.Errorf("serial link needs serial_device")
		}
	case LinkMemory:
	default:
		return fmt.Errorf("unknown link kind %q", d.Link.Kind)
	}

	d.Protocol = strings.ToLower(strings.TrimSpace(d.Protocol))
	if d.Protocol == "" {
		d.Protocol = ProtocolContinuous
	}
	if d.Protocol != ProtocolContinuous && d.Protocol != ProtocolDiscrete {
		return fmt.Errorf("protocol must be %q or %q, got %q", ProtocolContinuous, ProtocolDiscrete, d.Protocol)
	}

	switch d.Actuator.Driver {
	case "", "recording", "pwm":
	default:
		return fmt.Errorf("unknown actuator driver %q", d.Actuator.Driver)
	}
	return nil
}
