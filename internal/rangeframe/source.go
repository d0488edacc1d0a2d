package rangeframe

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// Source emits rendered frames at a fixed rate, standing in for the
// depth-capture collaborator.
type Source struct {
	clock  clock.Clock
	fps    float64
	script Script
}

// NewSource creates a Source. A nil clock uses the wall clock.
func NewSource(clk clock.Clock, fps float64, script Script) *Source {
	if clk == nil {
		clk = clock.New()
	}
	if fps <= 0 {
		fps = 30
	}
	return &Source{clock: clk, fps: fps, script: script}
}

// Run renders and emits one frame per tick until ctx is cancelled.
// emit must not retain the frame beyond the call unless it owns it; each
// frame is freshly allocated.
func (s *Source) Run(ctx context.Context, emit func(*Frame)) error {
	ticker := s.clock.Ticker(time.Duration(float64(time.Second) / s.fps))
	defer ticker.Stop()

	start := s.clock.Now()
	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			seq++
			emit(s.script(now.Sub(start)).Render(seq, now))
		}
	}
}
