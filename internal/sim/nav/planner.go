package nav

import (
	"container/heap"
	"math"

	"shadowchase.ai/internal/sim/geom"
)

type Outcome string

const (
	OutcomeFound       Outcome = "FOUND"
	OutcomeJump        Outcome = "JUMP"
	OutcomeGoalBlocked Outcome = "GOAL_BLOCKED"
	OutcomeUnreachable Outcome = "UNREACHABLE"
	OutcomeBudget      Outcome = "BUDGET"
)

// Result is the outcome of one FindPath call. Path is empty unless the goal
// was reached (by jump or by search).
type Result struct {
	Path     []geom.Vec2
	Outcome  Outcome
	Expanded int // nodes popped from the fringe
	RawLen   int // chain length before simplification
}

func (r Result) Ok() bool { return len(r.Path) > 0 }

type Config struct {
	Step          float64
	MaxIterations int
}

// Planner runs light-avoiding A* over a lattice of Step spacing. It holds no
// per-search state, so one Planner may serve many agents within a tick.
type Planner struct {
	q         Quantizer
	maxIter   int
	obstacles ObstacleOracle
	light     IlluminationOracle
	edgeCost  [8]float64
}

// NewPlanner builds a planner over the given oracles. Nil oracles mean an open
// plane and total darkness respectively.
func NewPlanner(cfg Config, obstacles ObstacleOracle, light IlluminationOracle) *Planner {
	if cfg.Step <= 0 {
		cfg.Step = 0.5
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 4096
	}
	if obstacles == nil {
		obstacles = NoObstacles
	}
	if light == nil {
		light = Dark
	}
	p := &Planner{
		q:         Quantizer{Step: cfg.Step},
		maxIter:   cfg.MaxIterations,
		obstacles: obstacles,
		light:     light,
	}
	for i, off := range neighborOffsets {
		p.edgeCost[i] = cfg.Step * math.Hypot(float64(off.I), float64(off.J))
	}
	return p
}

func (p *Planner) Quantizer() Quantizer { return p.q }
func (p *Planner) Step() float64        { return p.q.Step }

// Passable reports whether pt is both obstacle-free and unlit.
func (p *Planner) Passable(pt geom.Vec2) bool {
	return !p.obstacles.IsObstacle(pt) && !p.light.IsIlluminated(pt)
}

// CanJump walks from a toward b in whole Step increments and reports whether
// every sample is passable. The origin is not sampled, and neither is the
// trailing partial segment shorter than one step.
func (p *Planner) CanJump(a, b geom.Vec2) bool {
	d := b.Sub(a)
	dist := d.Len()
	n := int(math.Floor(dist/p.q.Step + 1e-9))
	if n <= 0 {
		return true
	}
	dir := d.Scale(1 / dist)
	for k := 1; k <= n; k++ {
		if !p.Passable(a.Add(dir.Scale(float64(k) * p.q.Step))) {
			return false
		}
	}
	return true
}

// FindPath plans from start to goal. A straight jumpable segment short-circuits
// the search; otherwise the quantized chain found by A* is simplified.
//
// Closed positions are never reopened even if a cheaper route reaches them
// later. With a consistent heuristic on a uniform lattice this does not cost
// optimality.
func (p *Planner) FindPath(start, goal geom.Vec2) Result {
	if !p.Passable(goal) {
		return Result{Outcome: OutcomeGoalBlocked}
	}
	if p.CanJump(start, goal) {
		return Result{Path: []geom.Vec2{start, goal}, Outcome: OutcomeJump, RawLen: 2}
	}

	startQ := p.q.Quantize(start)
	goalQ := p.q.Quantize(goal)
	goalW := p.q.World(goalQ)
	// The search ends on the goal's lattice point, which may be lit even when goal is not.
	if goalQ != startQ && !p.Passable(goalW) {
		return Result{Outcome: OutcomeGoalBlocked}
	}

	s := newSearch()
	root := s.add(startQ, -1, 0, p.q.World(startQ).Dist(goalW))
	heap.Push(&s.open, root)

	expanded := 0
	for s.open.Len() > 0 {
		if expanded >= p.maxIter {
			return Result{Outcome: OutcomeBudget, Expanded: expanded}
		}
		cur := heap.Pop(&s.open).(int32)
		expanded++
		node := s.arena[cur]
		s.closed.Put(node.pos)

		if node.pos == goalQ {
			raw := s.chain(cur, p.q)
			return Result{
				Path:     Simplify(raw, p.CanJump),
				Outcome:  OutcomeFound,
				Expanded: expanded,
				RawLen:   len(raw),
			}
		}

		for i, off := range neighborOffsets {
			np := GridPoint{I: node.pos.I + off.I, J: node.pos.J + off.J}
			if s.closed.Has(np) {
				continue
			}
			w := p.q.World(np)
			if !p.Passable(w) {
				continue
			}
			g := node.g + p.edgeCost[i]
			if idx, ok := s.byPos[np]; ok {
				n := &s.arena[idx]
				if g < n.g {
					n.g = g
					n.parent = cur
					heap.Fix(&s.open, n.heapIdx)
				}
				continue
			}
			heap.Push(&s.open, s.add(np, cur, g, w.Dist(goalW)))
		}
	}
	return Result{Outcome: OutcomeUnreachable, Expanded: expanded}
}

// chain follows parent indices from idx to the root and returns the world
// positions in start→goal order.
func (s *search) chain(idx int32, q Quantizer) []geom.Vec2 {
	var out []geom.Vec2
	for i := idx; i >= 0; i = s.arena[i].parent {
		out = append(out, q.World(s.arena[i].pos))
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
