package lighting

import (
	"shadowchase.ai/internal/sim/geom"
)

type cone struct {
	global   bool
	pos      geom.Vec2
	facing   geom.Vec2
	radiusSq float64
	half     float64 // half cone angle, degrees
	pathfind bool
}

func (c cone) lights(p geom.Vec2) bool {
	if c.global {
		return true
	}
	d := p.Sub(c.pos)
	if d.LenSq() > c.radiusSq {
		return false
	}
	if c.half >= 180 {
		return true
	}
	return geom.AngleDeg(c.facing, d) <= c.half
}

// Snapshot is the frozen light state of one tick. It is immutable after
// construction and safe to share across every planning call in that tick.
type Snapshot struct {
	tick  uint64
	cones []cone
}

// NewSnapshot captures the lights that are active on tick.
func NewSnapshot(lights []Light, tick uint64, includeOuter bool) *Snapshot {
	s := &Snapshot{tick: tick, cones: make([]cone, 0, len(lights))}
	for _, l := range lights {
		if !l.ActiveAt(tick) {
			continue
		}
		c := cone{global: l.Kind == KindGlobal, pathfind: l.PathfindVisible}
		if !c.global {
			r, a := l.Reach(includeOuter)
			c.pos = l.Pos
			c.facing = geom.Heading(l.FacingDeg)
			c.radiusSq = r * r
			c.half = a * 0.5
		}
		s.cones = append(s.cones, c)
	}
	return s
}

func (s *Snapshot) Tick() uint64 { return s.tick }

// Active returns how many lights are emitting in this snapshot.
func (s *Snapshot) Active() int { return len(s.cones) }

// IsIlluminated checks every active light.
func (s *Snapshot) IsIlluminated(p geom.Vec2) bool {
	for _, c := range s.cones {
		if c.lights(p) {
			return true
		}
	}
	return false
}

// Planning returns the view that path planning uses: only lights flagged
// pathfind-visible are considered.
func (s *Snapshot) Planning() PlanningView { return PlanningView{s: s} }

type PlanningView struct {
	s *Snapshot
}

func (v PlanningView) IsIlluminated(p geom.Vec2) bool {
	if v.s == nil {
		return false
	}
	for _, c := range v.s.cones {
		if c.pathfind && c.lights(p) {
			return true
		}
	}
	return false
}
