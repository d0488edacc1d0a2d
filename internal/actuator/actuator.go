package actuator

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"

	"github.com/banshee-data/guidecane/internal/config"
	"github.com/banshee-data/guidecane/internal/monitoring"
	"github.com/banshee-data/guidecane/internal/packet"
)

// Config holds the actuation parameters.
type Config struct {
	Staleness time.Duration
	TickRate  float64 // Hz
	Tau       time.Duration
	Scale     float64
	MaxDrive  float64
	Pulse     PulseConfig
}

// ConfigFromTuning extracts the actuation parameters from a tuning config.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		Staleness: cfg.GetStalenessTimeout(),
		TickRate:  cfg.GetTickRateHz(),
		Tau:       cfg.GetTimeConstant(),
		Scale:     cfg.GetDriveScale(),
		MaxDrive:  cfg.GetMaxDrive(),
		Pulse: PulseConfig{
			NearDistance: cfg.GetPulseNearM(),
			FarDistance:  cfg.GetPulseFarM(),
			MinPeriod:    cfg.GetPulseMinPeriod(),
			MaxPeriod:    cfg.GetPulseMaxPeriod(),
			Width:        cfg.GetPulseWidth(),
		},
	}
}

// Command is the immutable snapshot written by the receive path.
type Command struct {
	Packet   packet.Packet
	Received time.Time
	Seq      uint64
}

// Stats reports actuator counters. Drive is the signed output of the last tick.
type Stats struct {
	Received   int64   `json:"received"`
	Rejected   int64   `json:"rejected"`
	Ticks      int64   `json:"ticks"`
	StaleTicks int64   `json:"stale_ticks"`
	Drive      float64 `json:"drive"`
}

// Actuator owns the motor state. HandlePayload may run concurrently with
// Tick; Tick itself must only be called from the motor task.
type Actuator struct {
	cfg    Config
	codec  packet.Codec
	clk    clock.Clock
	driver Driver

	snapshot atomic.Pointer[Command]
	seq      atomic.Uint64

	// Motor task state.
	integ    *LeakyIntegrator
	lastTick time.Time

	received   atomic.Int64
	rejected   atomic.Int64
	ticks      atomic.Int64
	staleTicks atomic.Int64
	drive      atomic.Float64
}

// New creates an actuator for one link protocol.
func New(cfg Config, codec packet.Codec, clk clock.Clock, driver Driver) *Actuator {
	if clk == nil {
		clk = clock.New()
	}
	if cfg.TickRate <= 0 {
		cfg.TickRate = 50
	}
	return &Actuator{
		cfg:    cfg,
		codec:  codec,
		clk:    clk,
		driver: driver,
		integ:  NewLeakyIntegrator(cfg.Tau, cfg.Scale, cfg.MaxDrive),
	}
}

// HandlePayload decodes one received payload and publishes it as the
// latest command. Malformed payloads are logged and discarded; the
// previous snapshot stays in force.
func (a *Actuator) HandlePayload(b []byte, at time.Time) error {
	p, err := a.codec.Decode(b)
	if err != nil {
		a.rejected.Inc()
		monitoring.Logf("[Actuator] discarding packet: %v", err)
		return fmt.Errorf("decode control packet: %w", err)
	}
	a.received.Inc()
	a.snapshot.Store(&Command{Packet: p, Received: at, Seq: a.seq.Inc()})
	return nil
}

// Clear drops the snapshot so the motor decays from its current state.
// Called on link-up so a stale decision is never replayed.
func (a *Actuator) Clear() { a.snapshot.Store(nil) }

// Latest returns the current snapshot.
func (a *Actuator) Latest() (Command, bool) {
	c := a.snapshot.Load()
	if c == nil {
		return Command{}, false
	}
	return *c, true
}

// Fresh returns the snapshot if it is within the staleness window at now.
func (a *Actuator) Fresh(now time.Time) (Command, bool) {
	c := a.snapshot.Load()
	if c == nil || now.Sub(c.Received) > a.cfg.Staleness {
		return Command{}, false
	}
	return *c, true
}

// Tick advances the motor state to now and updates the driver. A stale or
// missing snapshot forces zero input.
func (a *Actuator) Tick(now time.Time) (int, float64) {
	dt := time.Duration(float64(time.Second) / a.cfg.TickRate)
	if !a.lastTick.IsZero() {
		dt = now.Sub(a.lastTick)
	}
	a.lastTick = now

	input := 0.0
	if c, ok := a.Fresh(now); ok {
		input = clampSpeed(float64(c.Packet.Speed))
	} else {
		a.staleTicks.Inc()
	}
	a.integ.Step(input, dt)
	dir, mag := a.integ.Drive()
	a.ticks.Inc()
	a.drive.Store(float64(dir) * mag)
	if a.driver != nil {
		if err := a.driver.SetDrive(dir, mag); err != nil {
			monitoring.Logf("[Actuator] driver error: %v", err)
		}
	}
	return dir, mag
}

func clampSpeed(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-1, math.Min(1, v))
}

// Run ticks the motor task at TickRate until ctx is cancelled, then
// releases the drive.
func (a *Actuator) Run(ctx context.Context) error {
	period := time.Duration(float64(time.Second) / a.cfg.TickRate)
	ticker := a.clk.Ticker(period)
	defer ticker.Stop()
	monitoring.Logf("[Actuator] motor task at %.0f Hz, tau=%v, staleness=%v", a.cfg.TickRate, a.cfg.Tau, a.cfg.Staleness)
	for {
		select {
		case <-ctx.Done():
			if a.driver != nil {
				_ = a.driver.SetDrive(0, 0)
			}
			return ctx.Err()
		case <-ticker.C:
			a.Tick(a.clk.Now())
		}
	}
}

// Stats returns actuator counters.
func (a *Actuator) Stats() Stats {
	return Stats{
		Received:   a.received.Load(),
		Rejected:   a.rejected.Load(),
		Ticks:      a.ticks.Load(),
		StaleTicks: a.staleTicks.Load(),
		Drive:      a.drive.Load(),
	}
}

// Config returns the actuation parameters.
func (a *Actuator) Config() Config { return a.cfg }
