// Package pipeline runs the decision side: each range frame is profiled,
// steered, filtered and merged with the route bias, and the committed
// decision is published to the sender and to diagnostic sinks.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"

	"github.com/banshee-data/guidecane/internal/config"
	"github.com/banshee-data/guidecane/internal/link"
	"github.com/banshee-data/guidecane/internal/monitoring"
	"github.com/banshee-data/guidecane/internal/packet"
	"github.com/banshee-data/guidecane/internal/perception"
	"github.com/banshee-data/guidecane/internal/rangeframe"
	"github.com/banshee-data/guidecane/internal/steering"
)

// Record is everything known about one processed frame.
type Record struct {
	Seq      uint64                  `json:"seq"`
	Captured time.Time               `json:"captured"`
	Decided  time.Time               `json:"decided"`
	Latency  time.Duration           `json:"latency_ns"`
	Decision steering.Decision       `json:"decision"`
	Packet   packet.Packet           `json:"packet"`
	Profile  perception.ProfileStats `json:"profile"`
}

// Sink receives every committed record. Sinks must not block: the
// decision loop calls them inline.
type Sink interface {
	Consume(Record)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Record)

// Consume implements Sink.
func (f SinkFunc) Consume(r Record) { f(r) }

// Stats summarises pipeline activity.
type Stats struct {
	Frames      int64         `json:"frames"`
	Submitted   int64         `json:"submitted"`
	Coalesced   int64         `json:"coalesced"`
	Resets      int64         `json:"resets"`
	LastLatency time.Duration `json:"last_latency_ns"`
}

// Pipeline owns the profiler and steering engine. Process and Run must be
// called from a single goroutine; every other method is safe for
// concurrent use.
type Pipeline struct {
	clk     clock.Clock
	bias    *steering.BiasInput
	sender  *link.Sender
	mailbox *Mailbox

	profiler *perception.ZoneProfiler
	engine   *steering.Engine

	sinkMu sync.RWMutex
	sinks  []Sink

	pendingTuning atomic.Pointer[config.TuningConfig]
	resetPending  atomic.Bool

	frames  atomic.Int64
	resets  atomic.Int64
	latency atomic.Duration
	last    atomic.Pointer[Record]
}

// Options configures a Pipeline. Sender may be nil when decisions are only
// consumed by sinks.
type Options struct {
	Tuning *config.TuningConfig
	Clock  clock.Clock
	Bias   *steering.BiasInput
	Sender *link.Sender
}

// New creates a pipeline from the given tuning.
func New(opts Options) *Pipeline {
	tuning := opts.Tuning
	if tuning == nil {
		tuning = config.EmptyTuningConfig()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	bias := opts.Bias
	if bias == nil {
		bias = steering.NewBiasInput(clk, tuning.GetNavBiasTTL())
	}
	return &Pipeline{
		clk:      clk,
		bias:     bias,
		sender:   opts.Sender,
		mailbox:  NewMailbox(),
		profiler: perception.NewZoneProfiler(perception.ConfigFromTuning(tuning)),
		engine:   steering.NewEngine(steering.ConfigFromTuning(tuning)),
	}
}

// Bias returns the navigation bias input.
func (p *Pipeline) Bias() *steering.BiasInput { return p.bias }

// AddSink registers a record consumer.
func (p *Pipeline) AddSink(s Sink) {
	p.sinkMu.Lock()
	p.sinks = append(p.sinks, s)
	p.sinkMu.Unlock()
}

// Submit hands a frame to the decision loop, replacing any frame it has
// not yet picked up.
func (p *Pipeline) Submit(f *rangeframe.Frame) { p.mailbox.Put(f) }

// UpdateTuning schedules a configuration change. It takes effect before
// the next frame is processed. The wire protocol is fixed at startup and
// is not changed here.
func (p *Pipeline) UpdateTuning(cfg *config.TuningConfig) {
	if cfg == nil {
		return
	}
	p.pendingTuning.Store(cfg)
	if p.sender != nil {
		p.sender.SetRate(cfg.GetSendRateHz())
	}
	p.bias.SetTTL(cfg.GetNavBiasTTL())
}

// ResetFilters clears all smoothing state before the next frame.
func (p *Pipeline) ResetFilters() { p.resetPending.Store(true) }

// Last returns the most recent record, or nil before the first frame.
func (p *Pipeline) Last() *Record { return p.last.Load() }

// Stats returns pipeline counters.
func (p *Pipeline) Stats() Stats {
	submitted, coalesced := p.mailbox.Counts()
	return Stats{
		Frames:      p.frames.Load(),
		Submitted:   submitted,
		Coalesced:   coalesced,
		Resets:      p.resets.Load(),
		LastLatency: p.latency.Load(),
	}
}

// applyPending installs deferred tuning and resets between frames.
func (p *Pipeline) applyPending() {
	if cfg := p.pendingTuning.Swap(nil); cfg != nil {
		p.profiler = perception.NewZoneProfiler(perception.ConfigFromTuning(cfg))
		p.engine.SetConfig(steering.ConfigFromTuning(cfg))
		monitoring.Logf("[Pipeline] tuning applied: strategy=%s sensing=%.2fm forced=%.2fm critical=%.2fm",
			cfg.GetSteeringStrategy(), cfg.GetSensingDistanceM(), cfg.GetForcedSteerDistanceM(), cfg.GetCriticalDistanceM())
	}
	if p.resetPending.Swap(false) {
		p.engine.Reset()
		p.resets.Inc()
	}
}

// Process runs one frame through profiling and steering. It never fails:
// unusable samples only reduce what the profile sees.
func (p *Pipeline) Process(f *rangeframe.Frame) Record {
	p.applyPending()

	profile, zones := p.profiler.Profile(f)
	d := p.engine.Decide(zones, profile, p.bias.Current())

	now := p.clk.Now()
	rec := Record{
		Decided:  now,
		Decision: d,
		Packet:   packet.FromDecision(d),
		Profile:  p.profiler.LastStats(),
	}
	if f != nil {
		rec.Seq = f.Seq
		rec.Captured = f.Captured
		if !f.Captured.IsZero() {
			rec.Latency = now.Sub(f.Captured)
		}
	}
	p.frames.Inc()
	p.latency.Store(rec.Latency)
	p.last.Store(&rec)
	return rec
}

// Commit publishes a record to the sender and every sink.
func (p *Pipeline) Commit(rec Record) {
	if p.sender != nil {
		p.sender.Publish(rec.Packet)
	}
	p.sinkMu.RLock()
	sinks := p.sinks
	p.sinkMu.RUnlock()
	for _, s := range sinks {
		s.Consume(rec)
	}
}

// Run processes frames from the mailbox until ctx is cancelled. A frame
// that has been taken is always processed and committed.
func (p *Pipeline) Run(ctx context.Context) error {
	monitoring.Logf("[Pipeline] running")
	for {
		f, err := p.mailbox.Take(ctx)
		if err != nil {
			st := p.Stats()
			monitoring.Logf("[Pipeline] stopped frames=%d coalesced=%d", st.Frames, st.Coalesced)
			return err
		}
		p.Commit(p.Process(f))
	}
}
