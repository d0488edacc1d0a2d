package actuator

import (
	"errors"
	"fmt"
	"math"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// PWMConfig names the GPIO pins driving the motor.
type PWMConfig struct {
	PWMPin    string
	DirPin    string
	PulsePin  string // optional
	Frequency physic.Frequency
}

// PWMDriver drives an H-bridge: PWM duty sets magnitude, a direction pin
// sets the sign. An optional pulse pin drives a haptic buzzer.
type PWMDriver struct {
	pwm   gpio.PinIO
	dir   gpio.PinIO
	pulse gpio.PinIO
	freq  physic.Frequency
}

// NewPWMDriver initialises the host drivers and resolves the pins by name.
func NewPWMDriver(cfg PWMConfig) (*PWMDriver, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	pwm := gpioreg.ByName(cfg.PWMPin)
	if pwm == nil {
		return nil, fmt.Errorf("unknown PWM pin %q", cfg.PWMPin)
	}
	dir := gpioreg.ByName(cfg.DirPin)
	if dir == nil {
		return nil, fmt.Errorf("unknown direction pin %q", cfg.DirPin)
	}
	var pulse gpio.PinIO
	if cfg.PulsePin != "" {
		if pulse = gpioreg.ByName(cfg.PulsePin); pulse == nil {
			return nil, fmt.Errorf("unknown pulse pin %q", cfg.PulsePin)
		}
	}
	return NewPWMDriverWithPins(pwm, dir, pulse, cfg.Frequency)
}

// NewPWMDriverWithPins builds a driver from already-resolved pins.
func NewPWMDriverWithPins(pwm, dir, pulse gpio.PinIO, freq physic.Frequency) (*PWMDriver, error) {
	if pwm == nil || dir == nil {
		return nil, errors.New("PWM and direction pins are required")
	}
	if freq <= 0 {
		freq = 20 * physic.KiloHertz
	}
	d := &PWMDriver{pwm: pwm, dir: dir, pulse: pulse, freq: freq}
	if err := d.SetDrive(0, 0); err != nil {
		return nil, err
	}
	if pulse != nil {
		if err := pulse.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("pulse pin: %w", err)
		}
	}
	return d, nil
}

// SetDrive implements Driver. mag is clamped to [0, 1] of full duty.
func (d *PWMDriver) SetDrive(dir int, mag float64) error {
	level := gpio.Low
	if dir > 0 {
		level = gpio.High
	}
	if err := d.dir.Out(level); err != nil {
		return fmt.Errorf("direction pin: %w", err)
	}
	if dir == 0 || math.IsNaN(mag) {
		mag = 0
	}
	mag = math.Max(0, math.Min(1, mag))
	duty := gpio.Duty(math.Round(mag * float64(gpio.DutyMax)))
	if err := d.pwm.PWM(duty, d.freq); err != nil {
		return fmt.Errorf("pwm pin: %w", err)
	}
	return nil
}

// Pulse implements Pulser. The pin is raised now and lowered after width
// on a timer so the caller never blocks.
func (d *PWMDriver) Pulse(width time.Duration) error {
	if d.pulse == nil {
		return nil
	}
	if err := d.pulse.Out(gpio.High); err != nil {
		return fmt.Errorf("pulse pin: %w", err)
	}
	time.AfterFunc(width, func() { _ = d.pulse.Out(gpio.Low) })
	return nil
}

// Halt stops the motor and releases the pulse pin.
func (d *PWMDriver) Halt() error {
	err := d.SetDrive(0, 0)
	if d.pulse != nil {
		if perr := d.pulse.Out(gpio.Low); err == nil {
			err = perr
		}
	}
	return err
}
