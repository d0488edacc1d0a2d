package steering

import (
	"fmt"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"
)

type biasSample struct {
	value float64
	at    time.Time
}

// BiasInput holds the latest navigation bias from the route planner. The
// planner refreshes it at about 1 Hz; a value older than the TTL reads as
// absent. Safe for concurrent use.
type BiasInput struct {
	clk    clock.Clock
	ttl    atomic.Duration
	latest atomic.Pointer[biasSample]
}

// NewBiasInput creates an empty bias input. A nil clock uses wall time.
func NewBiasInput(clk clock.Clock, ttl time.Duration) *BiasInput {
	if clk == nil {
		clk = clock.New()
	}
	b := &BiasInput{clk: clk}
	b.ttl.Store(ttl)
	return b
}

// Set records a new bias, clamped to [-1, 1].
func (b *BiasInput) Set(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("navigation bias must be finite, got %v", v)
	}
	b.latest.Store(&biasSample{value: clamp(v, -1, 1), at: b.clk.Now()})
	return nil
}

// Clear drops the current bias.
func (b *BiasInput) Clear() { b.latest.Store(nil) }

// SetTTL changes the freshness window.
func (b *BiasInput) SetTTL(ttl time.Duration) { b.ttl.Store(ttl) }

// Get returns the bias if one was set within the TTL before now.
func (b *BiasInput) Get(now time.Time) (float64, bool) {
	s := b.latest.Load()
	if s == nil {
		return 0, false
	}
	if ttl := b.ttl.Load(); ttl > 0 && now.Sub(s.at) > ttl {
		return 0, false
	}
	return s.value, true
}

// Current is Get at the input's clock time, as a pointer for Engine.Decide.
func (b *BiasInput) Current() *float64 {
	v, ok := b.Get(b.clk.Now())
	if !ok {
		return nil
	}
	return &v
}

// MergeBias adds the navigation bias scaled by (1 - proximity) so that
// avoidance increasingly overrides route intent as obstacles close in.
func MergeBias(cmd, bias, proximity float64) float64 {
	return clamp(cmd+bias*(1-clamp(proximity, 0, 1)), -1, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
