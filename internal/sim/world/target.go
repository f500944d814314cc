package world

import (
	"math"

	"shadowchase.ai/internal/sim/geom"
	"shadowchase.ai/internal/sim/lighting"
	"shadowchase.ai/internal/sim/scenario"
	"shadowchase.ai/internal/sim/terrain"
)

const flashlightID = "target_flashlight"

// Target is the pursued agent. It patrols its route until a steering client
// takes over, and follows the client's direction from then on.
type Target struct {
	Pos       geom.Vec2
	Facing    geom.Vec2
	Speed     float64
	Health    float64
	MaxHealth float64
	Alive     bool

	route    []geom.Vec2
	routeIdx int

	steerDir geom.Vec2
	steered  bool

	flashlight *scenario.Flashlight
}

func newTarget(ts scenario.TargetSpec) *Target {
	t := &Target{
		Pos:       ts.Start,
		Facing:    geom.V(0, 1),
		Speed:     ts.Speed,
		Health:    ts.MaxHealth,
		MaxHealth: ts.MaxHealth,
		Alive:     true,
		route:     append([]geom.Vec2(nil), ts.Route...),
	}
	if ts.Flashlight != nil {
		f := *ts.Flashlight
		t.flashlight = &f
	}
	return t
}

// move advances the target by one tick. Steps that would end inside an
// obstacle are refused.
func (t *Target) move(tm *terrain.Map, dt float64) {
	if !t.Alive || t.Speed <= 0 {
		return
	}
	var next geom.Vec2
	switch {
	case t.steered:
		if t.steerDir.LenSq() == 0 {
			return
		}
		next = t.Pos.Add(t.steerDir.Scale(t.Speed * dt))
	case len(t.route) > 0:
		wp := t.route[t.routeIdx]
		next = t.Pos.MoveToward(wp, t.Speed*dt)
		if next == wp {
			t.routeIdx = (t.routeIdx + 1) % len(t.route)
		}
	default:
		return
	}
	next = tm.Clamp(next)
	if tm.IsObstacle(next) {
		return
	}
	if d := next.Sub(t.Pos); d.LenSq() > 0 {
		t.Facing = d.Normalize()
	}
	t.Pos = next
}

func (t *Target) applyDamage(d float64) (died bool) {
	if !t.Alive || d <= 0 {
		return false
	}
	t.Health = math.Max(0, t.Health-d)
	if t.Health == 0 {
		t.Alive = false
		return true
	}
	return false
}

// light returns the flashlight cone, if the target carries one.
func (t *Target) light() (lighting.Light, bool) {
	f := t.flashlight
	if f == nil || !t.Alive {
		return lighting.Light{}, false
	}
	return f.Light(flashlightID, t.Pos, geom.HeadingDeg(t.Facing)), true
}
