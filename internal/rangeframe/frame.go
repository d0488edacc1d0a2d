package rangeframe

import (
	"fmt"
	"math"
	"time"
)

// Orientation describes how the sensor is mounted relative to the user.
type Orientation uint8

const (
	// Upright: raw pixel (0,0) is the top-left of the user's view.
	Upright Orientation = iota
	// Inverted: sensor rotated 180 degrees, both axes mirrored.
	Inverted
	// Mirrored: horizontal flip only (e.g. a front-facing camera).
	Mirrored
)

func (o Orientation) String() string {
	switch o {
	case Upright:
		return "upright"
	case Inverted:
		return "inverted"
	case Mirrored:
		return "mirrored"
	default:
		return fmt.Sprintf("orientation(%d)", uint8(o))
	}
}

// ParseOrientation maps a name to an Orientation.
func ParseOrientation(s string) (Orientation, error) {
	switch s {
	case "", "upright":
		return Upright, nil
	case "inverted":
		return Inverted, nil
	case "mirrored":
		return Mirrored, nil
	}
	return Upright, fmt.Errorf("unknown orientation %q", s)
}

// MirrorX reports whether raw horizontal positions must be flipped.
func (o Orientation) MirrorX() bool { return o == Inverted || o == Mirrored }

// MirrorY reports whether raw vertical positions must be flipped.
func (o Orientation) MirrorY() bool { return o == Inverted }

// Frame is one snapshot of the depth grid. Depth is row-major in metres.
// Valid may be nil, in which case every sample is considered valid by the
// producer (non-finite values are still rejected downstream).
type Frame struct {
	Width       int
	Height      int
	Depth       []float32
	Valid       []bool
	Orientation Orientation
	Seq         uint64
	Captured    time.Time
}

// NewFrame allocates a frame with every sample invalid.
func NewFrame(width, height int) *Frame {
	return &Frame{
		Width:  width,
		Height: height,
		Depth:  make([]float32, width*height),
		Valid:  make([]bool, width*height),
	}
}

// NewUniformFrame allocates a frame with every sample valid at distance d.
func NewUniformFrame(width, height int, d float32) *Frame {
	f := NewFrame(width, height)
	for i := range f.Depth {
		f.Depth[i] = d
		f.Valid[i] = true
	}
	return f
}

// At returns the raw sample at (x, y) and whether it is usable.
// Out-of-bounds and non-finite samples are reported as unusable.
func (f *Frame) At(x, y int) (float32, bool) {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return 0, false
	}
	i := y*f.Width + x
	if i >= len(f.Depth) {
		return 0, false
	}
	if f.Valid != nil && !f.Valid[i] {
		return 0, false
	}
	d := f.Depth[i]
	if math.IsNaN(float64(d)) || math.IsInf(float64(d), 0) {
		return 0, false
	}
	return d, true
}

// Canonical returns the sample at canonical coordinates (cx, cy), i.e.
// after undoing the mounting orientation.
func (f *Frame) Canonical(cx, cy int) (float32, bool) {
	x, y := cx, cy
	if f.Orientation.MirrorX() {
		x = f.Width - 1 - cx
	}
	if f.Orientation.MirrorY() {
		y = f.Height - 1 - cy
	}
	return f.At(x, y)
}

// SetCanonical writes a valid sample at canonical coordinates.
func (f *Frame) SetCanonical(cx, cy int, d float32) {
	x, y := cx, cy
	if f.Orientation.MirrorX() {
		x = f.Width - 1 - cx
	}
	if f.Orientation.MirrorY() {
		y = f.Height - 1 - cy
	}
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return
	}
	i := y*f.Width + x
	f.Depth[i] = d
	if f.Valid != nil {
		f.Valid[i] = true
	}
}

// InvalidateCanonical marks the sample at canonical coordinates unusable.
func (f *Frame) InvalidateCanonical(cx, cy int) {
	x, y := cx, cy
	if f.Orientation.MirrorX() {
		x = f.Width - 1 - cx
	}
	if f.Orientation.MirrorY() {
		y = f.Height - 1 - cy
	}
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return
	}
	if f.Valid == nil {
		f.Valid = make([]bool, len(f.Depth))
		for i := range f.Valid {
			f.Valid[i] = true
		}
	}
	f.Valid[y*f.Width+x] = false
}

// NormalizedX maps a canonical column to [-1, +1], left edge negative.
func (f *Frame) NormalizedX(cx int) float64 {
	if f.Width <= 1 {
		return 0
	}
	return (float64(cx)+0.5)/float64(f.Width)*2 - 1
}
