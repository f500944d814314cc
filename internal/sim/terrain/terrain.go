package terrain

import (
	"fmt"

	"shadowchase.ai/internal/sim/geom"
)

type Circle struct {
	Center geom.Vec2 `json:"center" yaml:"center"`
	Radius float64   `json:"radius" yaml:"radius"`
}

// Map is static level geometry. Points outside Bounds are treated as solid.
type Map struct {
	Bounds  geom.Rect
	Rects   []geom.Rect
	Circles []Circle

	// ProbeRadius is the radius of the disc tested around each query point.
	ProbeRadius float64
}

func New(bounds geom.Rect, rects []geom.Rect, circles []Circle, probe float64) (*Map, error) {
	if bounds.Max.X <= bounds.Min.X || bounds.Max.Y <= bounds.Min.Y {
		return nil, fmt.Errorf("terrain: empty bounds %v", bounds)
	}
	for i, r := range rects {
		if r.Max.X < r.Min.X || r.Max.Y < r.Min.Y {
			return nil, fmt.Errorf("terrain: rect %d has min > max", i)
		}
	}
	for i, c := range circles {
		if c.Radius <= 0 {
			return nil, fmt.Errorf("terrain: circle %d radius must be > 0", i)
		}
	}
	if probe < 0 {
		return nil, fmt.Errorf("terrain: probe radius must be >= 0")
	}
	return &Map{
		Bounds:      bounds,
		Rects:       append([]geom.Rect(nil), rects...),
		Circles:     append([]Circle(nil), circles...),
		ProbeRadius: probe,
	}, nil
}

// IsObstacle reports whether the probe disc around p overlaps any obstacle or
// leaves the bounds.
func (m *Map) IsObstacle(p geom.Vec2) bool {
	if !m.Bounds.Contains(p) {
		return true
	}
	for _, r := range m.Rects {
		if r.IntersectsDisc(p, m.ProbeRadius) {
			return true
		}
	}
	for _, c := range m.Circles {
		lim := c.Radius + m.ProbeRadius
		if c.Center.DistSq(p) <= lim*lim {
			return true
		}
	}
	return false
}

// Clamp moves p back inside the bounds.
func (m *Map) Clamp(p geom.Vec2) geom.Vec2 {
	return m.Bounds.ClosestPoint(p)
}
