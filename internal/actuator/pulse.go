package actuator

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/banshee-data/guidecane/internal/monitoring"
)

// PulseConfig maps obstacle distance to haptic pulse period.
type PulseConfig struct {
	NearDistance float64
	FarDistance  float64
	MinPeriod    time.Duration
	MaxPeriod    time.Duration
	Width        time.Duration
}

// Period returns the pulse period for an auxiliary distance: MinPeriod at
// or inside NearDistance, MaxPeriod at FarDistance, linear in between.
// No pulses beyond FarDistance or for a negative (no obstacle) distance.
func (c PulseConfig) Period(distance float64) (time.Duration, bool) {
	if distance < 0 || distance > c.FarDistance {
		return 0, false
	}
	if distance <= c.NearDistance || c.FarDistance <= c.NearDistance {
		return c.MinPeriod, true
	}
	frac := (distance - c.NearDistance) / (c.FarDistance - c.NearDistance)
	return c.MinPeriod + time.Duration(frac*float64(c.MaxPeriod-c.MinPeriod)), true
}

// PulseTask emits haptic pulses from the actuator's latest fresh snapshot.
type PulseTask struct {
	act    *Actuator
	pulser Pulser
	clk    clock.Clock
	cfg    PulseConfig
}

// NewPulseTask creates a pulse task reading from act.
func NewPulseTask(act *Actuator, pulser Pulser, clk clock.Clock) *PulseTask {
	if clk == nil {
		clk = clock.New()
	}
	return &PulseTask{act: act, pulser: pulser, clk: clk, cfg: act.Config().Pulse}
}

// Next returns how long to wait before the next check and whether to
// pulse now.
func (p *PulseTask) Next(now time.Time) (time.Duration, bool) {
	c, ok := p.act.Fresh(now)
	if !ok {
		return p.cfg.MinPeriod, false
	}
	period, ok := p.cfg.Period(float64(c.Packet.Auxiliary))
	if !ok {
		return p.cfg.MinPeriod, false
	}
	return period, true
}

// Run pulses until ctx is cancelled.
func (p *PulseTask) Run(ctx context.Context) error {
	for {
		wait, pulse := p.Next(p.clk.Now())
		if pulse {
			if err := p.pulser.Pulse(p.cfg.Width); err != nil {
				monitoring.Logf("[Pulse] pulser error: %v", err)
			}
		}
		if wait <= 0 {
			wait = 50 * time.Millisecond
		}
		timer := p.clk.Timer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
