package pursuit

import (
	"shadowchase.ai/internal/sim/geom"
	"shadowchase.ai/internal/sim/nav"
)

type Stats struct {
	Speed          float64 `json:"speed" yaml:"speed"`
	AttackRange    float64 `json:"attack_range" yaml:"attack_range"`
	AttackCooldown float64 `json:"attack_cooldown" yaml:"attack_cooldown"`
	Damage         float64 `json:"damage" yaml:"damage"`
}

type Params struct {
	// ReplanDistance is the target displacement that forces a new plan.
	// Normally one lattice step.
	ReplanDistance    float64
	WaypointTolerance float64
}

// Env is what a pursuer reads from the world during one tick.
type Env interface {
	// IsIlluminated sees every active light, not only the pathfind-visible ones.
	IsIlluminated(p geom.Vec2) bool
	FindPath(start, goal geom.Vec2) nav.Result
}

type Action string

const (
	ActionIdle   Action = "IDLE"
	ActionFrozen Action = "FROZEN"
	ActionAttack Action = "ATTACK"
	ActionWindup Action = "WINDUP" // in range, cooldown still running
	ActionReplan Action = "REPLAN"
	ActionMove   Action = "MOVE"
	ActionHold   Action = "HOLD" // no usable waypoint
)

type StepInput struct {
	Target    geom.Vec2
	HasTarget bool
	DT        float64
}

type StepResult struct {
	Action Action
	Plan   *nav.Result // set on ActionReplan
	Damage float64     // set on ActionAttack
}

type Pursuer struct {
	ID    string
	Pos   geom.Vec2
	Stats Stats

	waypoints  []geom.Vec2
	cursor     int
	lastTarget geom.Vec2
	hasPlan    bool
	cooldown   float64
	last       Action
}

// New returns a pursuer with its attack cooldown already running, so the first
// hit lands one full cooldown after it comes into range.
func New(id string, pos geom.Vec2, stats Stats) *Pursuer {
	return &Pursuer{ID: id, Pos: pos, Stats: stats, cooldown: stats.AttackCooldown, last: ActionIdle}
}

// Step advances the pursuer by one tick.
func (p *Pursuer) Step(env Env, prm Params, in StepInput) StepResult {
	res := p.step(env, prm, in)
	p.last = res.Action
	return res
}

func (p *Pursuer) step(env Env, prm Params, in StepInput) StepResult {
	if p.cooldown > 0 {
		p.cooldown -= in.DT
		if p.cooldown < 0 {
			p.cooldown = 0
		}
	}
	if !in.HasTarget {
		return StepResult{Action: ActionIdle}
	}
	if env.IsIlluminated(p.Pos) {
		return StepResult{Action: ActionFrozen}
	}

	if p.Stats.AttackRange > 0 && p.Pos.Dist(in.Target) <= p.Stats.AttackRange {
		if p.cooldown <= 0 {
			p.cooldown = p.Stats.AttackCooldown
			return StepResult{Action: ActionAttack, Damage: p.Stats.Damage}
		}
		return StepResult{Action: ActionWindup}
	}

	if !p.hasPlan || in.Target.Dist(p.lastTarget) > prm.ReplanDistance {
		r := env.FindPath(p.Pos, in.Target)
		p.waypoints = r.Path
		p.cursor = 0
		p.lastTarget = in.Target
		p.hasPlan = true
		return StepResult{Action: ActionReplan, Plan: &r}
	}

	if p.cursor >= len(p.waypoints) {
		return StepResult{Action: ActionHold}
	}
	wp := p.waypoints[p.cursor]
	p.Pos = p.Pos.MoveToward(wp, p.Stats.Speed*in.DT)
	if p.Pos.Dist(wp) <= prm.WaypointTolerance {
		p.cursor++
	}
	return StepResult{Action: ActionMove}
}

// CurrentWaypoints returns a copy of the active plan.
func (p *Pursuer) CurrentWaypoints() []geom.Vec2 {
	return append([]geom.Vec2(nil), p.waypoints...)
}

// IsFollowing reports whether there is a waypoint left to walk toward.
func (p *Pursuer) IsFollowing() bool {
	return p.hasPlan && p.cursor < len(p.waypoints)
}

func (p *Pursuer) Cursor() int        { return p.cursor }
func (p *Pursuer) LastAction() Action { return p.last }
func (p *Pursuer) Cooldown() float64  { return p.cooldown }

// LastTarget is the target position recorded by the most recent plan.
func (p *Pursuer) LastTarget() (geom.Vec2, bool) { return p.lastTarget, p.hasPlan }

// State is the mutable part of a pursuer, enough to resume it exactly.
type State struct {
	Pos        geom.Vec2
	Waypoints  []geom.Vec2
	Cursor     int
	LastTarget geom.Vec2
	HasPlan    bool
	Cooldown   float64
	Last       Action
}

func (p *Pursuer) State() State {
	return State{
		Pos:        p.Pos,
		Waypoints:  p.CurrentWaypoints(),
		Cursor:     p.cursor,
		LastTarget: p.lastTarget,
		HasPlan:    p.hasPlan,
		Cooldown:   p.cooldown,
		Last:       p.last,
	}
}

// Restore builds a pursuer from a saved State.
func Restore(id string, stats Stats, st State) *Pursuer {
	p := New(id, st.Pos, stats)
	p.waypoints = append([]geom.Vec2(nil), st.Waypoints...)
	p.cursor = st.Cursor
	p.lastTarget = st.LastTarget
	p.hasPlan = st.HasPlan
	p.cooldown = st.Cooldown
	if st.Last != "" {
		p.last = st.Last
	}
	return p
}
