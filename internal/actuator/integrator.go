package actuator

import (
	"math"
	"time"
)

// LeakyIntegrator is a first-order lag: dS/dt = input - S/tau. The drive
// magnitude is |S/tau| * Scale clamped to MaxDrive, so a constant input u
// settles at |u| * Scale.
type LeakyIntegrator struct {
	Tau      time.Duration
	Scale    float64
	MaxDrive float64

	s float64
}

// NewLeakyIntegrator returns an integrator at rest.
func NewLeakyIntegrator(tau time.Duration, scale, maxDrive float64) *LeakyIntegrator {
	return &LeakyIntegrator{Tau: tau, Scale: scale, MaxDrive: maxDrive}
}

// Step advances the state by dt with the given input, in Euler steps no
// longer than tau/10 so the decay stays monotone.
func (l *LeakyIntegrator) Step(input float64, dt time.Duration) {
	if dt <= 0 || l.Tau <= 0 {
		return
	}
	tau := l.Tau.Seconds()
	remaining := dt.Seconds()
	maxStep := tau / 10
	for remaining > 0 {
		h := math.Min(remaining, maxStep)
		l.s += h * (input - l.s/tau)
		remaining -= h
	}
}

// State returns S.
func (l *LeakyIntegrator) State() float64 { return l.s }

// Drive returns the direction (-1, 0, +1) and magnitude of the physical output.
func (l *LeakyIntegrator) Drive() (int, float64) {
	if l.Tau <= 0 || l.s == 0 {
		return 0, 0
	}
	mag := math.Abs(l.s/l.Tau.Seconds()) * l.Scale
	if l.MaxDrive > 0 && mag > l.MaxDrive {
		mag = l.MaxDrive
	}
	dir := 1
	if l.s < 0 {
		dir = -1
	}
	return dir, mag
}

// Reset zeroes the state. This is the only way S steps to zero.
func (l *LeakyIntegrator) Reset() { l.s = 0 }
