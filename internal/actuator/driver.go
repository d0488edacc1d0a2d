package actuator

import (
	"sync"
	"time"
)

// Driver sets the physical motor output. dir is -1, 0 or +1; mag is in
// [0, MaxDrive].
type Driver interface {
	SetDrive(dir int, mag float64) error
}

// Pulser emits one haptic pulse of the given width without blocking.
type Pulser interface {
	Pulse(width time.Duration) error
}

// DriveSample is one recorded SetDrive call.
type DriveSample struct {
	Dir int
	Mag float64
}

// Signed returns dir*mag.
func (s DriveSample) Signed() float64 { return float64(s.Dir) * s.Mag }

// RecordingDriver records outputs for simulation and tests.
type RecordingDriver struct {
	mu      sync.Mutex
	drives  []DriveSample
	pulses  []time.Duration
	limit   int
	dropped int
}

// NewRecordingDriver keeps at most limit drive samples (0 = unbounded),
// discarding the oldest.
func NewRecordingDriver(limit int) *RecordingDriver {
	return &RecordingDriver{limit: limit}
}

// SetDrive implements Driver.
func (r *RecordingDriver) SetDrive(dir int, mag float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drives = append(r.drives, DriveSample{Dir: dir, Mag: mag})
	if r.limit > 0 && len(r.drives) > r.limit {
		n := len(r.drives) - r.limit
		r.drives = append(r.drives[:0], r.drives[n:]...)
		r.dropped += n
	}
	return nil
}

// Pulse implements Pulser.
func (r *RecordingDriver) Pulse(width time.Duration) error {
	r.mu.Lock()
	r.pulses = append(r.pulses, width)
	r.mu.Unlock()
	return nil
}

// Drives returns a copy of the recorded drive samples.
func (r *RecordingDriver) Drives() []DriveSample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]DriveSample(nil), r.drives...)
}

// Last returns the most recent drive sample.
func (r *RecordingDriver) Last() (DriveSample, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.drives) == 0 {
		return DriveSample{}, false
	}
	return r.drives[len(r.drives)-1], true
}

// Pulses returns the number of pulses emitted.
func (r *RecordingDriver) Pulses() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pulses)
}
