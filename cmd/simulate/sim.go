package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"

	"github.com/banshee-data/guidecane/internal/actuator"
	"github.com/banshee-data/guidecane/internal/config"
	"github.com/banshee-data/guidecane/internal/link"
	"github.com/banshee-data/guidecane/internal/packet"
	"github.com/banshee-data/guidecane/internal/pipeline"
	"github.com/banshee-data/guidecane/internal/rangeframe"
	"github.com/banshee-data/guidecane/internal/safety"
	"github.com/banshee-data/guidecane/internal/steering"
)

// Options configures one simulation run.
type Options struct {
	Duration time.Duration
	Scene    string
	FPS      float64
	Loss     float64
	Latency  time.Duration
	Seed     int64
	// DropAt and DropFor take the link down once during the run. Zero
	// DropFor keeps the link up.
	DropAt  time.Duration
	DropFor time.Duration
	Tuning  *config.TuningConfig
}

// Summary is what a run observed on both sides.
type Summary struct {
	Frames        int64
	Coalesced     int64
	Modes         map[string]int64
	MaxSteerDelta float64
	Sent          int64
	Delivered     int64
	Lost          int64
	Received      int64
	Rejected      int64
	StaleTicks    int64
	MaxDrive      float64
	FinalDrive    float64
	Connects      int64
	Disconnects   int64
	Resets        int64
}

type modeCounter struct {
	mu        sync.Mutex
	modes     map[string]int64
	lastSteer *float64
	maxDelta  float64
}

func (m *modeCounter) Consume(r pipeline.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modes[r.Decision.Mode.String()]++
	if r.Decision.Mode != steering.ModeSteer {
		m.lastSteer = nil
		return
	}
	cmd := r.Decision.Command
	if m.lastSteer != nil {
		m.maxDelta = math.Max(m.maxDelta, math.Abs(cmd-*m.lastSteer))
	}
	m.lastSteer = &cmd
}

// maxDriveDriver records the largest drive magnitude seen.
type maxDriveDriver struct {
	max atomic.Float64
}

func (d *maxDriveDriver) SetDrive(dir int, mag float64) error {
	if mag > d.max.Load() {
		d.max.Store(mag)
	}
	return nil
}

func (d *maxDriveDriver) Pulse(time.Duration) error { return nil }

// Simulate runs both sides of the cane over an in-process lossy link.
func Simulate(ctx context.Context, opts Options) (Summary, error) {
	tuning := opts.Tuning
	if tuning == nil {
		tuning = config.DefaultTuningConfig()
	}
	script, ok := rangeframe.ScriptByName(opts.Scene, rangeframe.DefaultScene())
	if !ok {
		return Summary{}, fmt.Errorf("unknown scene %q", opts.Scene)
	}
	codec, err := packet.ParseProtocol(tuning.GetProtocol(), tuning.GetDiscreteThreshold())
	if err != nil {
		return Summary{}, err
	}

	clk := clock.New()
	mem := link.NewMemory(link.MemoryConfig{Loss: opts.Loss, Latency: opts.Latency, Seed: opts.Seed, Clock: clk})
	fastRetry := &link.Backoff{Initial: 20 * time.Millisecond, Max: 200 * time.Millisecond, Factor: 2}

	sender := link.NewSender(codec, clk, tuning.GetSendRateHz())
	supervisor := safety.NewSupervisor(mem.A(), sender, clk, fastRetry)
	pipe := pipeline.New(pipeline.Options{Tuning: tuning, Clock: clk, Sender: sender})
	supervisor.OnReset(pipe.ResetFilters)
	modes := &modeCounter{modes: map[string]int64{}}
	pipe.AddSink(modes)

	drv := &maxDriveDriver{}
	act := actuator.New(actuator.ConfigFromTuning(tuning), codec, clk, drv)
	receiver := actuator.NewReceiver(mem.B(), act, clk, fastRetry)

	ctx, cancel := context.WithTimeout(ctx, opts.Duration)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 8)
	start := func(fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				errCh <- err
			}
		}()
	}
	start(act.Run)
	start(receiver.Run)
	start(supervisor.Run)
	start(sender.Run)
	start(pipe.Run)
	start(func(ctx context.Context) error {
		return rangeframe.NewSource(clk, opts.FPS, script).Run(ctx, pipe.Submit)
	})
	if opts.DropFor > 0 {
		start(func(ctx context.Context) error {
			if err := link.Sleep(ctx, clk, opts.DropAt); err != nil {
				return err
			}
			mem.SetDown()
			err := link.Sleep(ctx, clk, opts.DropFor)
			mem.SetUp()
			return err
		})
	}
	wg.Wait()
	close(errCh)

	var firstErr error
	for err := range errCh {
		if firstErr == nil {
			firstErr = err
		}
	}

	ps := pipe.Stats()
	ss := sender.Stats()
	ms := mem.Stats()
	as := act.Stats()
	connects, disconnects := supervisor.Counts()
	modes.mu.Lock()
	defer modes.mu.Unlock()
	return Summary{
		Frames:        ps.Frames,
		Coalesced:     ps.Coalesced,
		Modes:         modes.modes,
		MaxSteerDelta: modes.maxDelta,
		Sent:          ss.Sent,
		Delivered:     ms.Delivered,
		Lost:          ms.Lost,
		Received:      as.Received,
		Rejected:      as.Rejected,
		StaleTicks:    as.StaleTicks,
		MaxDrive:      drv.max.Load(),
		FinalDrive:    as.Drive,
		Connects:      connects,
		Disconnects:   disconnects,
		Resets:        ps.Resets,
	}, firstErr
}

// Print writes a human-readable summary.
func (s Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "frames:        %d (coalesced %d)\n", s.Frames, s.Coalesced)
	names := make([]string, 0, len(s.Modes))
	for name := range s.Modes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-10s   %d\n", name, s.Modes[name])
	}
	fmt.Fprintf(w, "max steer step: %.3f\n", s.MaxSteerDelta)
	fmt.Fprintf(w, "packets:       sent %d, delivered %d, lost %d\n", s.Sent, s.Delivered, s.Lost)
	fmt.Fprintf(w, "actuator:      received %d, rejected %d, stale ticks %d\n", s.Received, s.Rejected, s.StaleTicks)
	fmt.Fprintf(w, "drive:         max %.3f, final %.3f\n", s.MaxDrive, s.FinalDrive)
	fmt.Fprintf(w, "link:          %d connects, %d disconnects, %d filter resets\n", s.Connects, s.Disconnects, s.Resets)
}
