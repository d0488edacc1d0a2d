package monitor

import (
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/guidecane/internal/packet"
	"github.com/banshee-data/guidecane/internal/pipeline"
)

// DecisionView is the JSON form of a committed decision.
type DecisionView struct {
	Seq        uint64        `json:"seq"`
	Decided    time.Time     `json:"decided"`
	LatencyMs  float64       `json:"latency_ms"`
	Mode       string        `json:"mode"`
	Command    float64       `json:"command"`
	Confidence float64       `json:"confidence"`
	Proximity  float64       `json:"proximity"`
	RawGap     float64       `json:"raw_gap"`
	Closest    *float64      `json:"closest_m,omitempty"`
	NavBias    *float64      `json:"nav_bias,omitempty"`
	Left       *float64      `json:"left_m,omitempty"`
	Center     *float64      `json:"center_m,omitempty"`
	Right      *float64      `json:"right_m,omitempty"`
	Lateral    float64       `json:"lateral_bias"`
	Rationale  string        `json:"rationale"`
	Packet     packet.Packet `json:"packet"`
}

func optional(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}

// NewDecisionView flattens a pipeline record for display.
func NewDecisionView(r pipeline.Record) DecisionView {
	d := r.Decision
	z := d.Zones
	return DecisionView{
		Seq:        r.Seq,
		Decided:    r.Decided,
		LatencyMs:  float64(r.Latency) / float64(time.Millisecond),
		Mode:       d.Mode.String(),
		Command:    d.Command,
		Confidence: d.Confidence,
		Proximity:  d.Proximity,
		RawGap:     d.RawGap,
		Closest:    optional(d.Closest, d.HasClosest),
		NavBias:    optional(d.NavBias, d.HasNavBias),
		Left:       optional(z.Left.Nearest, z.Left.Present()),
		Center:     optional(z.Center.Nearest, z.Center.Present()),
		Right:      optional(z.Right.Nearest, z.Right.Present()),
		Lateral:    z.LateralBias,
		Rationale:  d.Rationale,
		Packet:     r.Packet,
	}
}

// CommandSummary describes the recent command distribution.
type CommandSummary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	// MaxStep is the largest change between consecutive commands.
	MaxStep float64 `json:"max_step"`
}

// History keeps the most recent decisions in a ring buffer.
type History struct {
	mu    sync.RWMutex
	buf   []DecisionView
	next  int
	full  bool
	total int64
}

// NewHistory creates a history holding up to capacity decisions.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 600
	}
	return &History{buf: make([]DecisionView, capacity)}
}

// Add appends a decision, evicting the oldest when full.
func (h *History) Add(v DecisionView) {
	h.mu.Lock()
	h.buf[h.next] = v
	h.next = (h.next + 1) % len(h.buf)
	if h.next == 0 {
		h.full = true
	}
	h.total++
	h.mu.Unlock()
}

// Len returns the number of decisions held.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.full {
		return len(h.buf)
	}
	return h.next
}

// Total returns how many decisions were ever added.
func (h *History) Total() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}

// Recent returns up to limit of the newest decisions, oldest first.
// limit <= 0 returns everything held.
func (h *History) Recent(limit int) []DecisionView {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := h.next
	if h.full {
		n = len(h.buf)
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]DecisionView, limit)
	start := h.next - limit
	for i := 0; i < limit; i++ {
		idx := (start + i + len(h.buf)) % len(h.buf)
		out[i] = h.buf[idx]
	}
	return out
}

// Summary computes statistics over the commands currently held.
func (h *History) Summary() CommandSummary {
	recent := h.Recent(0)
	if len(recent) == 0 {
		return CommandSummary{}
	}
	cmds := make([]float64, len(recent))
	for i, v := range recent {
		cmds[i] = v.Command
	}
	s := CommandSummary{Count: len(cmds), Min: floats.Min(cmds), Max: floats.Max(cmds)}
	if len(cmds) > 1 {
		s.Mean, s.StdDev = stat.MeanStdDev(cmds, nil)
		for i := 1; i < len(cmds); i++ {
			s.MaxStep = math.Max(s.MaxStep, math.Abs(cmds[i]-cmds[i-1]))
		}
	} else {
		s.Mean = cmds[0]
	}
	return s
}
