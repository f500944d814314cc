package world

import (
	"fmt"
	"sort"

	"shadowchase.ai/internal/persistence/snapshot"
	"shadowchase.ai/internal/sim/geom"
	"shadowchase.ai/internal/sim/nav"
	"shadowchase.ai/internal/sim/pursuit"
)

// SetSnapshotSink receives a snapshot every SnapshotEveryTicks ticks. Sends
// never block the world loop; a full sink skips that snapshot.
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

func (w *World) maybeSnapshot(nowTick uint64) {
	every := uint64(w.cfg.SnapshotEveryTicks)
	if w.snapshotSink == nil || every == 0 || (nowTick+1)%every != 0 {
		return
	}
	select {
	case w.snapshotSink <- w.ExportSnapshot(nowTick):
	default:
		w.logf("world %s tick %d: snapshot sink full; skipped", w.cfg.ID, nowTick)
	}
}

func pair(v geom.Vec2) [2]float64   { return [2]float64{v.X, v.Y} }
func unpair(a [2]float64) geom.Vec2 { return geom.V(a[0], a[1]) }

// ExportSnapshot captures the state after nowTick was executed. It must be
// called from the world loop goroutine (or between StepOnce calls).
func (w *World) ExportSnapshot(nowTick uint64) snapshot.SnapshotV1 {
	t := w.target
	snap := snapshot.SnapshotV1{
		Header:   snapshot.Header{Version: 1, WorldID: w.cfg.ID, Tick: nowTick},
		TickRate: w.cfg.TickRateHz,
		Target: snapshot.TargetV1{
			Pos:      pair(t.Pos),
			Facing:   pair(t.Facing),
			Health:   t.Health,
			Alive:    t.Alive,
			RouteIdx: t.routeIdx,
			SteerDir: pair(t.steerDir),
			Steered:  t.steered,
		},
		ReplansTotal: w.replansTotal,
		AttacksTotal: w.attacksTotal,
		PlanOutcomes: map[string]uint64{},
	}
	for _, p := range w.pursuers {
		st := p.State()
		pv := snapshot.PursuerV1{
			ID:         p.ID,
			Pos:        pair(st.Pos),
			Cursor:     st.Cursor,
			LastTarget: pair(st.LastTarget),
			HasPlan:    st.HasPlan,
			Cooldown:   st.Cooldown,
			LastAction: string(st.Last),
		}
		for _, wp := range st.Waypoints {
			pv.Waypoints = append(pv.Waypoints, pair(wp))
		}
		snap.Pursuers = append(snap.Pursuers, pv)
	}
	for id := range w.controllers {
		snap.Controllers = append(snap.Controllers, id)
	}
	sort.Strings(snap.Controllers)
	for k, v := range w.planOutcomes {
		snap.PlanOutcomes[string(k)] = v
	}
	return snap
}

// ImportSnapshot resumes a freshly created world from snap. The world must
// have been built from the same scenario; pursuers are matched by ID.
// Restored controllers have no transport until their session reattaches.
func (w *World) ImportSnapshot(snap snapshot.SnapshotV1) error {
	if snap.Header.Version != 1 {
		return fmt.Errorf("unsupported snapshot version: %d", snap.Header.Version)
	}
	if snap.Header.WorldID != w.cfg.ID {
		return fmt.Errorf("snapshot world id mismatch: world=%s snap=%s", w.cfg.ID, snap.Header.WorldID)
	}
	if snap.TickRate != 0 && snap.TickRate != w.cfg.TickRateHz {
		return fmt.Errorf("snapshot tick rate mismatch: world=%d snap=%d", w.cfg.TickRateHz, snap.TickRate)
	}
	if len(snap.Pursuers) != len(w.pursuers) {
		return fmt.Errorf("snapshot has %d pursuers, scenario has %d", len(snap.Pursuers), len(w.pursuers))
	}

	restored := make([]*pursuit.Pursuer, len(w.pursuers))
	for i, p := range w.pursuers {
		pv := snap.Pursuers[i]
		if pv.ID != p.ID {
			return fmt.Errorf("snapshot pursuer %d is %q, scenario has %q", i, pv.ID, p.ID)
		}
		st := pursuit.State{
			Pos:        unpair(pv.Pos),
			Cursor:     pv.Cursor,
			LastTarget: unpair(pv.LastTarget),
			HasPlan:    pv.HasPlan,
			Cooldown:   pv.Cooldown,
			Last:       pursuit.Action(pv.LastAction),
		}
		for _, wp := range pv.Waypoints {
			st.Waypoints = append(st.Waypoints, unpair(wp))
		}
		restored[i] = pursuit.Restore(p.ID, p.Stats, st)
	}

	t := w.target
	if n := len(t.route); n > 0 && (snap.Target.RouteIdx < 0 || snap.Target.RouteIdx >= n) {
		return fmt.Errorf("snapshot route index %d out of range", snap.Target.RouteIdx)
	}
	t.Pos = unpair(snap.Target.Pos)
	t.Facing = unpair(snap.Target.Facing)
	t.Health = snap.Target.Health
	t.Alive = snap.Target.Alive
	t.routeIdx = snap.Target.RouteIdx
	t.steerDir = unpair(snap.Target.SteerDir)
	t.steered = snap.Target.Steered

	w.pursuers = restored
	w.controllers = map[string]*controller{}
	for _, id := range snap.Controllers {
		w.controllers[id] = &controller{id: id}
	}
	w.replansTotal = snap.ReplansTotal
	w.attacksTotal = snap.AttacksTotal
	w.planOutcomes = map[nav.Outcome]uint64{}
	for k, v := range snap.PlanOutcomes {
		w.planOutcomes[nav.Outcome(k)] = v
	}
	w.tick.Store(snap.Header.Tick + 1)
	w.updateMetrics(snap.Header.Tick+1, 0)
	return nil
}
