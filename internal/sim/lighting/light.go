package lighting

import (
	"fmt"

	"shadowchase.ai/internal/sim/geom"
)

type Kind string

const (
	KindGlobal Kind = "GLOBAL"
	KindPoint  Kind = "POINT"
)

// Blink toggles a light on a fixed tick cycle: OnTicks lit, then OffTicks dark,
// shifted by PhaseTicks.
type Blink struct {
	OnTicks    int `json:"on_ticks" yaml:"on_ticks"`
	OffTicks   int `json:"off_ticks" yaml:"off_ticks"`
	PhaseTicks int `json:"phase_ticks,omitempty" yaml:"phase_ticks"`
}

func (b Blink) OnAt(tick uint64) bool {
	period := b.OnTicks + b.OffTicks
	if period <= 0 || b.OffTicks <= 0 {
		return true
	}
	if b.OnTicks <= 0 {
		return false
	}
	pos := (int64(tick) + int64(b.PhaseTicks)) % int64(period)
	if pos < 0 {
		pos += int64(period)
	}
	return pos < int64(b.OnTicks)
}

// Light is a global or point/cone light source. Angles are full cone widths in
// degrees; 360 lights every direction. Facing 0 points along +Y.
type Light struct {
	ID              string    `json:"id" yaml:"id"`
	Kind            Kind      `json:"kind" yaml:"kind"`
	Pos             geom.Vec2 `json:"pos" yaml:"pos"`
	FacingDeg       float64   `json:"facing_deg" yaml:"facing_deg"`
	InnerRadius     float64   `json:"inner_radius" yaml:"inner_radius"`
	OuterRadius     float64   `json:"outer_radius" yaml:"outer_radius"`
	InnerAngle      float64   `json:"inner_angle" yaml:"inner_angle"`
	OuterAngle      float64   `json:"outer_angle" yaml:"outer_angle"`
	Intensity       float64   `json:"intensity" yaml:"intensity"`
	Enabled         bool      `json:"enabled" yaml:"enabled"`
	PathfindVisible bool      `json:"pathfind_visible" yaml:"pathfind_visible"`
	Blink           *Blink    `json:"blink,omitempty" yaml:"blink"`
}

// ActiveAt reports whether the light emits anything on the given tick.
func (l Light) ActiveAt(tick uint64) bool {
	if !l.Enabled || l.Intensity <= 0 {
		return false
	}
	if l.Blink != nil && !l.Blink.OnAt(tick) {
		return false
	}
	return true
}

// Reach returns the radius and full cone angle in use.
func (l Light) Reach(includeOuter bool) (radius, angle float64) {
	if includeOuter {
		return l.OuterRadius, l.OuterAngle
	}
	return l.InnerRadius, l.InnerAngle
}

func (l Light) Validate() error {
	switch l.Kind {
	case KindGlobal:
		return nil
	case KindPoint:
	default:
		return fmt.Errorf("light %q: unknown kind %q", l.ID, l.Kind)
	}
	if l.InnerRadius < 0 || l.OuterRadius < 0 {
		return fmt.Errorf("light %q: radius must be >= 0", l.ID)
	}
	if l.OuterRadius < l.InnerRadius {
		return fmt.Errorf("light %q: outer_radius < inner_radius", l.ID)
	}
	if l.InnerAngle < 0 || l.OuterAngle < 0 || l.InnerAngle > 360 || l.OuterAngle > 360 {
		return fmt.Errorf("light %q: angles must be within [0,360]", l.ID)
	}
	if l.Blink != nil && (l.Blink.OnTicks < 0 || l.Blink.OffTicks < 0) {
		return fmt.Errorf("light %q: blink ticks must be >= 0", l.ID)
	}
	return nil
}
