package rangeframe

import (
	"math"
	"time"
)

// Obstacle is an axis-aligned box in the user's view. Left/Right are
// normalised horizontal positions in [-1, 1]; Top/Bottom are fractions of
// frame height in [0, 1].
type Obstacle struct {
	Left, Right float64
	Top, Bottom float64
	Distance    float64
}

// Hole is a region with no valid returns (glare, absorbent surfaces).
type Hole struct {
	Left, Right float64
	Top, Bottom float64
}

// Scene is a synthetic view rendered into a Frame.
type Scene struct {
	Width       int
	Height      int
	Orientation Orientation

	// Background is the distance of everything not otherwise covered.
	// Zero leaves uncovered samples invalid (open space beyond range).
	Background float64

	// FloorHeight is the sensor height above a level floor in metres.
	// Zero disables floor rendering. The floor occupies rows below the
	// horizon (half height) with distance growing toward the horizon.
	FloorHeight float64
	// VerticalFOV is the full vertical field of view in degrees (default 60).
	VerticalFOV float64

	Obstacles []Obstacle
	Holes     []Hole
}

// DefaultScene returns a 160x120 upright scene with a floor and a far wall.
func DefaultScene() Scene {
	return Scene{
		Width:       160,
		Height:      120,
		Background:  4.0,
		FloorHeight: 0.9,
		VerticalFOV: 60,
	}
}

// Render draws the scene into a new frame.
func (s Scene) Render(seq uint64, at time.Time) *Frame {
	f := NewFrame(s.Width, s.Height)
	f.Orientation = s.Orientation
	f.Seq = seq
	f.Captured = at

	fov := s.VerticalFOV
	if fov <= 0 {
		fov = 60
	}
	halfTan := math.Tan(fov / 2 * math.Pi / 180)
	horizon := float64(s.Height) / 2

	for cy := 0; cy < s.Height; cy++ {
		fy := (float64(cy) + 0.5) / float64(s.Height)
		for cx := 0; cx < s.Width; cx++ {
			nx := f.NormalizedX(cx)
			d := math.Inf(1)
			if s.Background > 0 {
				d = s.Background
			}
			if s.FloorHeight > 0 && float64(cy)+0.5 > horizon {
				ratio := (float64(cy) + 0.5 - horizon) / horizon
				if fd := s.FloorHeight / (ratio * halfTan); fd < d {
					d = fd
				}
			}
			for _, o := range s.Obstacles {
				if nx >= o.Left && nx <= o.Right && fy >= o.Top && fy <= o.Bottom && o.Distance < d {
					d = o.Distance
				}
			}
			hole := false
			for _, h := range s.Holes {
				if nx >= h.Left && nx <= h.Right && fy >= h.Top && fy <= h.Bottom {
					hole = true
					break
				}
			}
			if hole || math.IsInf(d, 1) {
				continue
			}
			f.SetCanonical(cx, cy, float32(d))
		}
	}
	return f
}

// Script produces the scene to render at a given time since start.
type Script func(elapsed time.Duration) Scene

// Static always renders the same scene.
func Static(s Scene) Script {
	return func(time.Duration) Scene { return s }
}

// ApproachingObstacle renders a pillar that starts at startDist and moves
// toward the user at speed m/s, wrapping back once it passes minDist. The
// pillar spans [left, right] horizontally.
func ApproachingObstacle(base Scene, left, right, startDist, minDist, speed float64) Script {
	span := startDist - minDist
	return func(elapsed time.Duration) Scene {
		s := base
		travelled := speed * elapsed.Seconds()
		if span > 0 {
			travelled = math.Mod(travelled, span)
		}
		s.Obstacles = append(append([]Obstacle(nil), base.Obstacles...), Obstacle{
			Left: left, Right: right, Top: 0.05, Bottom: 0.95,
			Distance: startDist - travelled,
		})
		return s
	}
}

// ScriptByName returns one of the built-in demo scripts.
func ScriptByName(name string, base Scene) (Script, bool) {
	switch name {
	case "clear":
		s := base
		s.Background = 0
		return Static(s), true
	case "wall":
		s := base
		s.Obstacles = append(s.Obstacles, Obstacle{Left: -1, Right: 1, Top: 0, Bottom: 1, Distance: 1.5})
		return Static(s), true
	case "doorway":
		s := base
		s.Obstacles = append(s.Obstacles,
			Obstacle{Left: -1, Right: -0.1, Top: 0, Bottom: 1, Distance: 1.2},
			Obstacle{Left: 0.3, Right: 1, Top: 0, Bottom: 1, Distance: 1.2},
		)
		return Static(s), true
	case "approach", "":
		return ApproachingObstacle(base, -0.2, 0.35, 3.5, 0.4, 0.8), true
	}
	return nil, false
}
