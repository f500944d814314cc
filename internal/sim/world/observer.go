package world

import (
	"encoding/json"

	"shadowchase.ai/internal/observerproto"
	"shadowchase.ai/internal/sim/geom"
	"shadowchase.ai/internal/sim/lighting"
	"shadowchase.ai/internal/sim/pursuit"
)

// ObserverJoinRequest registers a read-only observer session that receives a
// TICK message per tick on TickOut. Re-sending with the same SessionID updates
// the subscription.
//
// All observer state is maintained by the world loop goroutine.
type ObserverJoinRequest struct {
	SessionID        string
	TickOut          chan []byte
	IncludeWaypoints bool
}

type observerClient struct {
	id               string
	tickOut          chan []byte
	includeWaypoints bool
}

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" {
		return
	}
	if old := w.observers[req.SessionID]; old != nil {
		if req.TickOut == nil || req.TickOut == old.tickOut {
			old.includeWaypoints = req.IncludeWaypoints
			return
		}
		close(old.tickOut)
	}
	if req.TickOut == nil {
		return
	}
	w.observers[req.SessionID] = &observerClient{
		id:               req.SessionID,
		tickOut:          req.TickOut,
		includeWaypoints: req.IncludeWaypoints,
	}
}

func (w *World) handleObserverLeave(id string) {
	if c := w.observers[id]; c != nil {
		close(c.tickOut)
		delete(w.observers, id)
	}
}

func vec(v geom.Vec2) [2]float64 { return [2]float64{v.X, v.Y} }

func lightState(l lighting.Light, tick uint64, includeOuter bool) observerproto.LightState {
	r, a := l.Reach(includeOuter)
	return observerproto.LightState{
		ID:              l.ID,
		Kind:            string(l.Kind),
		Pos:             vec(l.Pos),
		FacingDeg:       l.FacingDeg,
		Radius:          r,
		Angle:           a,
		Active:          l.ActiveAt(tick),
		PathfindVisible: l.PathfindVisible,
	}
}

func pursuerState(p *pursuit.Pursuer, withWaypoints bool) observerproto.PursuerState {
	ps := observerproto.PursuerState{
		ID:        p.ID,
		Pos:       vec(p.Pos),
		Action:    string(p.LastAction()),
		Frozen:    p.LastAction() == pursuit.ActionFrozen,
		Following: p.IsFollowing(),
		Cursor:    p.Cursor(),
		Cooldown:  p.Cooldown(),
	}
	if withWaypoints {
		for _, wp := range p.CurrentWaypoints() {
			ps.Waypoints = append(ps.Waypoints, vec(wp))
		}
	}
	return ps
}

func (w *World) tickMsg(tick uint64, entry TickLogEntry, withWaypoints bool) observerproto.TickMsg {
	t := w.target
	msg := observerproto.TickMsg{
		Type:            "TICK",
		ProtocolVersion: observerproto.Version,
		Tick:            tick,
		Target: observerproto.TargetState{
			Pos:       vec(t.Pos),
			FacingDeg: geom.HeadingDeg(t.Facing),
			Health:    t.Health,
			MaxHealth: t.MaxHealth,
			Alive:     t.Alive,
			Steered:   t.steered,
		},
		Lights:   make([]observerproto.LightState, 0, len(w.lights)+1),
		Pursuers: make([]observerproto.PursuerState, 0, len(w.pursuers)),
	}
	for _, l := range w.activeLights() {
		msg.Lights = append(msg.Lights, lightState(l, tick, w.cfg.IncludeOuterRadius))
	}
	for _, p := range w.pursuers {
		msg.Pursuers = append(msg.Pursuers, pursuerState(p, withWaypoints))
	}
	for _, pe := range entry.Plans {
		msg.Plans = append(msg.Plans, observerproto.PlanInfo{
			PursuerID: pe.PursuerID,
			Outcome:   string(pe.Outcome),
			Expanded:  pe.Expanded,
			RawLen:    pe.RawLen,
			Waypoints: pe.Waypoints,
		})
	}
	for _, ae := range entry.Attacks {
		msg.Attacks = append(msg.Attacks, observerproto.AttackInfo{
			PursuerID:    ae.PursuerID,
			Damage:       ae.Damage,
			TargetHealth: ae.TargetHealth,
		})
	}
	return msg
}

func (w *World) broadcastObservers(tick uint64, entry TickLogEntry) {
	if len(w.observers) == 0 {
		return
	}
	var full, brief []byte
	for _, c := range w.observers {
		var b *[]byte
		if c.includeWaypoints {
			b = &full
		} else {
			b = &brief
		}
		if *b == nil {
			raw, err := json.Marshal(w.tickMsg(tick, entry, c.includeWaypoints))
			if err != nil {
				continue
			}
			*b = raw
		}
		sendLatest(c.tickOut, *b)
	}
}

// Bootstrap describes the static parts of the world for a new observer.
func (w *World) Bootstrap() observerproto.BootstrapResponse {
	b := w.terrain.Bounds
	resp := observerproto.BootstrapResponse{
		ProtocolVersion: observerproto.Version,
		WorldID:         w.cfg.ID,
		Tick:            w.CurrentTick(),
		WorldParams: observerproto.WorldParams{
			TickRateHz:    w.cfg.TickRateHz,
			StepSize:      w.cfg.Planner.Step,
			MaxIterations: w.cfg.Planner.MaxIterations,
			Bounds:        [4]float64{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y},
			ProbeRadius:   w.terrain.ProbeRadius,
		},
		Obstacles: observerproto.Obstacles{
			Rects:   make([][4]float64, 0, len(w.terrain.Rects)),
			Circles: make([][3]float64, 0, len(w.terrain.Circles)),
		},
		Lights: make([]observerproto.LightState, 0, len(w.lights)),
	}
	for _, r := range w.terrain.Rects {
		resp.Obstacles.Rects = append(resp.Obstacles.Rects, [4]float64{r.Min.X, r.Min.Y, r.Max.X, r.Max.Y})
	}
	for _, c := range w.terrain.Circles {
		resp.Obstacles.Circles = append(resp.Obstacles.Circles, [3]float64{c.Center.X, c.Center.Y, c.Radius})
	}
	tick := resp.Tick
	for _, l := range w.lights {
		resp.Lights = append(resp.Lights, lightState(l, tick, w.cfg.IncludeOuterRadius))
	}
	return resp
}
