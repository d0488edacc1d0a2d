package telemetry

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"

	"github.com/banshee-data/guidecane/internal/monitoring"
	"github.com/banshee-data/guidecane/internal/pipeline"
)

// RecorderStats counts recorded and dropped decisions.
type RecorderStats struct {
	Written int64 `json:"written"`
	Dropped int64 `json:"dropped"`
	Failed  int64 `json:"failed"`
}

// Recorder is a pipeline sink that batches decisions into the store off
// the decision loop. When the buffer is full, records are dropped rather
// than delaying the next frame.
type Recorder struct {
	store      *Store
	session    string
	clk        clock.Clock
	ch         chan pipeline.Record
	batchSize  int
	flushEvery time.Duration

	written atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

// NewRecorder creates a recorder for one session.
func NewRecorder(store *Store, sessionID string, clk clock.Clock) *Recorder {
	if clk == nil {
		clk = clock.New()
	}
	return &Recorder{
		store:      store,
		session:    sessionID,
		clk:        clk,
		ch:         make(chan pipeline.Record, 1024),
		batchSize:  64,
		flushEvery: time.Second,
	}
}

// Session returns the session id records are written under.
func (r *Recorder) Session() string { return r.session }

// Consume implements pipeline.Sink.
func (r *Recorder) Consume(rec pipeline.Record) {
	select {
	case r.ch <- rec:
	default:
		if r.dropped.Inc()%100 == 1 {
			monitoring.Logf("[Recorder] buffer full, dropped %d records", r.dropped.Load())
		}
	}
}

// Stats returns recorder counters.
func (r *Recorder) Stats() RecorderStats {
	return RecorderStats{Written: r.written.Load(), Dropped: r.dropped.Load(), Failed: r.failed.Load()}
}

func (r *Recorder) flush(batch []pipeline.Record) []pipeline.Record {
	if len(batch) == 0 {
		return batch
	}
	if err := r.store.InsertDecisions(r.session, batch); err != nil {
		r.failed.Add(int64(len(batch)))
		monitoring.Logf("[Recorder] failed to write %d records: %v", len(batch), err)
	} else {
		r.written.Add(int64(len(batch)))
	}
	return batch[:0]
}

// Run writes batches until ctx is cancelled, then drains what is buffered.
func (r *Recorder) Run(ctx context.Context) error {
	ticker := r.clk.Ticker(r.flushEvery)
	defer ticker.Stop()

	batch := make([]pipeline.Record, 0, r.batchSize)
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case rec := <-r.ch:
					batch = append(batch, rec)
				default:
					r.flush(batch)
					return ctx.Err()
				}
			}
		case rec := <-r.ch:
			batch = append(batch, rec)
			if len(batch) >= r.batchSize {
				batch = r.flush(batch)
			}
		case <-ticker.C:
			batch = r.flush(batch)
		}
	}
}
