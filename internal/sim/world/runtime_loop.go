package world

import (
	"context"
	"time"

	"shadowchase.ai/internal/sim/geom"
	"shadowchase.ai/internal/sim/lighting"
	"shadowchase.ai/internal/sim/nav"
	"shadowchase.ai/internal/sim/pursuit"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pending Inputs
	var pendingAttach []AttachRequest

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.attach:
			pendingAttach = append(pendingAttach, req)
		case id := <-w.detach:
			pending.Detaches = append(pending.Detaches, id)
		case req := <-w.steer:
			pending.Steers = append(pending.Steers, SteerInput{SessionID: req.SessionID, Dir: req.Dir})
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case <-ticker.C:
			w.step(pending, pendingAttach)
			pending = Inputs{}
			pendingAttach = pendingAttach[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// StepOnce advances the world by a single tick using the same ordering semantics as the server.
// It is primarily intended for deterministic replays/tests.
func (w *World) StepOnce(in Inputs) (tick uint64, digest string) {
	tick = w.tick.Load()
	entry := w.step(in, nil)
	return tick, entry.Digest
}

// activeLights is the static light set plus the target's flashlight.
func (w *World) activeLights() []lighting.Light {
	out := make([]lighting.Light, 0, len(w.lights)+1)
	out = append(out, w.lights...)
	if l, ok := w.target.light(); ok {
		out = append(out, l)
	}
	return out
}

// tickEnv is the per-tick view a pursuer plans and freezes against.
type tickEnv struct {
	snap    *lighting.Snapshot
	planner *nav.Planner
}

func (e tickEnv) IsIlluminated(p geom.Vec2) bool { return e.snap.IsIlluminated(p) }

func (e tickEnv) FindPath(start, goal geom.Vec2) nav.Result { return e.planner.FindPath(start, goal) }

func (w *World) step(in Inputs, reqs []AttachRequest) TickLogEntry {
	start := time.Now()
	nowTick := w.tick.Load()
	dt := 1 / float64(w.cfg.TickRateHz)

	entry := TickLogEntry{
		Tick:     nowTick,
		Detaches: in.Detaches,
		Steers:   in.Steers,
	}
	entry.Attaches = append(entry.Attaches, in.Attaches...)
	for _, r := range reqs {
		if r.SessionID != "" {
			entry.Attaches = append(entry.Attaches, r.SessionID)
		}
	}

	w.applyInputs(in, reqs)
	w.target.move(w.terrain, dt)

	w.snap = lighting.NewSnapshot(w.activeLights(), nowTick, w.cfg.IncludeOuterRadius)
	env := tickEnv{
		snap:    w.snap,
		planner: nav.NewPlanner(w.cfg.Planner, w.terrain, w.snap.Planning()),
	}
	prm := pursuit.Params{
		ReplanDistance:    env.planner.Step(),
		WaypointTolerance: w.cfg.WaypointTolerance,
	}
	stepIn := pursuit.StepInput{
		Target:    w.target.Pos,
		HasTarget: w.target.Alive,
		DT:        dt,
	}

	for _, p := range w.pursuers {
		from := p.Pos
		res := p.Step(env, prm, stepIn)
		switch res.Action {
		case pursuit.ActionReplan:
			w.replansTotal++
			w.planOutcomes[res.Plan.Outcome]++
			entry.Plans = append(entry.Plans, PlanEvent{
				PursuerID: p.ID,
				From:      from,
				To:        stepIn.Target,
				Outcome:   res.Plan.Outcome,
				Expanded:  res.Plan.Expanded,
				RawLen:    res.Plan.RawLen,
				Waypoints: len(res.Plan.Path),
			})
			if res.Plan.Outcome == nav.OutcomeBudget {
				w.logf("world %s tick %d: %s plan budget exhausted after %d expansions", w.cfg.ID, nowTick, p.ID, res.Plan.Expanded)
			}
		case pursuit.ActionAttack:
			w.attacksTotal++
			died := w.target.applyDamage(res.Damage)
			entry.Attacks = append(entry.Attacks, AttackEvent{
				PursuerID:    p.ID,
				Damage:       res.Damage,
				TargetHealth: w.target.Health,
			})
			if died {
				w.logf("world %s tick %d: target caught by %s", w.cfg.ID, nowTick, p.ID)
				// Remaining pursuers see no target this tick.
				stepIn.HasTarget = false
			}
		}
	}

	entry.Digest = w.stateDigest(nowTick)
	if w.tickLogger != nil {
		if err := w.tickLogger.WriteTick(entry); err != nil {
			w.logf("world %s tick %d: tick log: %v", w.cfg.ID, nowTick, err)
		}
	}

	w.broadcastObservers(nowTick, entry)
	w.sendControllers(nowTick)
	w.maybeSnapshot(nowTick)

	w.tick.Add(1)
	w.updateMetrics(nowTick+1, float64(time.Since(start).Microseconds())/1000)
	return entry
}
