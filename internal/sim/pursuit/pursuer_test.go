package pursuit

import (
	"testing"

	"shadowchase.ai/internal/sim/geom"
	"shadowchase.ai/internal/sim/nav"
)

type stubEnv struct {
	lit   func(p geom.Vec2) bool
	path  []geom.Vec2
	calls int
}

func (e *stubEnv) IsIlluminated(p geom.Vec2) bool {
	if e.lit == nil {
		return false
	}
	return e.lit(p)
}

func (e *stubEnv) FindPath(start, goal geom.Vec2) nav.Result {
	e.calls++
	if e.path == nil {
		return nav.Result{Path: []geom.Vec2{start, goal}, Outcome: nav.OutcomeJump}
	}
	return nav.Result{Path: append([]geom.Vec2(nil), e.path...), Outcome: nav.OutcomeFound}
}

var prm = Params{ReplanDistance: 0.5, WaypointTolerance: 0.05}

func TestStep_ReplansThenFollows(t *testing.T) {
	env := &stubEnv{}
	p := New("p1", geom.V(0, 0), Stats{Speed: 1})
	in := StepInput{Target: geom.V(3, 0), HasTarget: true, DT: 0.5}

	r := p.Step(env, prm, in)
	if r.Action != ActionReplan || r.Plan == nil || env.calls != 1 {
		t.Fatalf("first tick: got %+v calls=%d", r, env.calls)
	}
	if p.Pos != geom.V(0, 0) {
		t.Fatalf("should not move on the re-plan tick: %v", p.Pos)
	}
	if !p.IsFollowing() {
		t.Fatalf("expected following after plan")
	}

	// Cursor 0 is the start; reaching it advances to the goal.
	r = p.Step(env, prm, in)
	if r.Action != ActionMove || p.Cursor() != 1 {
		t.Fatalf("second tick: %+v cursor=%d", r, p.Cursor())
	}
	for i := 0; i < 6; i++ {
		p.Step(env, prm, in)
	}
	if p.Pos != geom.V(3, 0) {
		t.Fatalf("expected arrival at (3,0), got %v", p.Pos)
	}
	if p.IsFollowing() {
		t.Fatalf("expected path exhausted")
	}
	if env.calls != 1 {
		t.Fatalf("stationary target should not trigger re-plan; calls=%d", env.calls)
	}
	if r := p.Step(env, prm, in); r.Action != ActionHold {
		t.Fatalf("exhausted path: got %s", r.Action)
	}
}

func TestStep_ReplanOnlyPastThreshold(t *testing.T) {
	env := &stubEnv{}
	p := New("p1", geom.V(0, 0), Stats{Speed: 1})
	p.Step(env, prm, StepInput{Target: geom.V(5, 0), HasTarget: true, DT: 0.1})

	p.Step(env, prm, StepInput{Target: geom.V(5.4, 0), HasTarget: true, DT: 0.1})
	if env.calls != 1 {
		t.Fatalf("displacement 0.4 should not re-plan; calls=%d", env.calls)
	}
	r := p.Step(env, prm, StepInput{Target: geom.V(5.6, 0), HasTarget: true, DT: 0.1})
	if r.Action != ActionReplan || env.calls != 2 || p.Cursor() != 0 {
		t.Fatalf("displacement 0.6 should re-plan: %+v calls=%d cursor=%d", r, env.calls, p.Cursor())
	}
	if lt, ok := p.LastTarget(); !ok || lt != geom.V(5.6, 0) {
		t.Fatalf("last target: %v %v", lt, ok)
	}
}

func TestStep_FrozenInLight(t *testing.T) {
	env := &stubEnv{lit: func(p geom.Vec2) bool { return p.X < 1 }}
	p := New("p1", geom.V(0, 0), Stats{Speed: 1})
	r := p.Step(env, prm, StepInput{Target: geom.V(3, 0), HasTarget: true, DT: 0.5})
	if r.Action != ActionFrozen || env.calls != 0 || p.Pos != geom.V(0, 0) {
		t.Fatalf("got %+v calls=%d pos=%v", r, env.calls, p.Pos)
	}
}

func TestStep_EmptyPlanHoldsPosition(t *testing.T) {
	env := &stubEnv{path: []geom.Vec2{}}
	p := New("p1", geom.V(0, 0), Stats{Speed: 1})
	in := StepInput{Target: geom.V(3, 0), HasTarget: true, DT: 0.5}
	p.Step(env, prm, in)
	r := p.Step(env, prm, in)
	if r.Action != ActionHold || p.Pos != geom.V(0, 0) || p.IsFollowing() {
		t.Fatalf("got %+v pos=%v", r, p.Pos)
	}
}

func TestStep_AttackOnCooldown(t *testing.T) {
	env := &stubEnv{}
	p := New("p1", geom.V(0, 0), Stats{Speed: 1, AttackRange: 1, AttackCooldown: 1, Damage: 7})
	in := StepInput{Target: geom.V(0.5, 0), HasTarget: true, DT: 0.5}

	want := []Action{ActionWindup, ActionAttack, ActionWindup, ActionAttack}
	for i, a := range want {
		r := p.Step(env, prm, in)
		if r.Action != a {
			t.Fatalf("step %d: got %s want %s", i, r.Action, a)
		}
		if a == ActionAttack && r.Damage != 7 {
			t.Fatalf("step %d damage: %v", i, r.Damage)
		}
	}
	if env.calls != 0 {
		t.Fatalf("in-range pursuer should not plan")
	}
}

func TestStep_FirstHitWaitsFullCooldown(t *testing.T) {
	p := New("p1", geom.V(0, 0), Stats{Speed: 1, AttackRange: 1, AttackCooldown: 1, Damage: 7})
	in := StepInput{Target: geom.V(0.5, 0), HasTarget: true, DT: 0.1}
	for i := 0; i < 9; i++ {
		if r := p.Step(&stubEnv{}, prm, in); r.Action != ActionWindup {
			t.Fatalf("tick %d: got %s want WINDUP", i, r.Action)
		}
	}
	// 1.0 - 10*0.1 is not exactly zero in floating point; allow one extra tick.
	var hit bool
	for i := 0; i < 2 && !hit; i++ {
		hit = p.Step(&stubEnv{}, prm, in).Action == ActionAttack
	}
	if !hit {
		t.Fatalf("no attack after one cooldown")
	}
}

func TestStep_NoTargetIsIdle(t *testing.T) {
	p := New("p1", geom.V(0, 0), Stats{Speed: 1})
	if r := p.Step(&stubEnv{}, prm, StepInput{DT: 0.1}); r.Action != ActionIdle {
		t.Fatalf("got %s", r.Action)
	}
	if p.LastAction() != ActionIdle {
		t.Fatalf("last action: %s", p.LastAction())
	}
}

func TestCurrentWaypoints_ReturnsCopy(t *testing.T) {
	env := &stubEnv{}
	p := New("p1", geom.V(0, 0), Stats{Speed: 1})
	p.Step(env, prm, StepInput{Target: geom.V(3, 0), HasTarget: true, DT: 0.1})
	w := p.CurrentWaypoints()
	w[0] = geom.V(99, 99)
	if p.CurrentWaypoints()[0] != geom.V(0, 0) {
		t.Fatalf("waypoints leaked")
	}
}

func TestRestore_ContinuesIdentically(t *testing.T) {
	in := StepInput{Target: geom.V(3, 0), HasTarget: true, DT: 0.5}
	a := New("p1", geom.V(0, 0), Stats{Speed: 1})
	envA := &stubEnv{}
	a.Step(envA, prm, in)
	a.Step(envA, prm, in)

	b := Restore(a.ID, a.Stats, a.State())
	envB := &stubEnv{}
	for i := 0; i < 4; i++ {
		ra := a.Step(envA, prm, in)
		rb := b.Step(envB, prm, in)
		if ra.Action != rb.Action || a.Pos != b.Pos || a.Cursor() != b.Cursor() {
			t.Fatalf("step %d diverged: %s %v %d vs %s %v %d", i, ra.Action, a.Pos, a.Cursor(), rb.Action, b.Pos, b.Cursor())
		}
	}
	if envB.calls != 0 {
		t.Fatalf("restored pursuer should keep its plan; calls=%d", envB.calls)
	}
}
