package world

import (
	"encoding/json"
	"math"

	"shadowchase.ai/internal/protocol"
	"shadowchase.ai/internal/sim/geom"
)

// AttachRequest registers a steering session. Out receives one STATE per tick.
type AttachRequest struct {
	SessionID string
	Out       chan []byte
	Resp      chan protocol.WelcomeMsg
}

type SteerRequest struct {
	SessionID string
	Dir       geom.Vec2
}

type controller struct {
	id  string
	out chan []byte
}

// ValidSteer reports whether dir is usable as a steering input.
func ValidSteer(dir geom.Vec2) bool {
	return !math.IsNaN(dir.X) && !math.IsNaN(dir.Y) && !math.IsInf(dir.X, 0) && !math.IsInf(dir.Y, 0)
}

func clampSteer(dir geom.Vec2) geom.Vec2 {
	if dir.LenSq() > 1 {
		return dir.Normalize()
	}
	return dir
}

func (w *World) welcome(sessionID string) protocol.WelcomeMsg {
	b := w.terrain.Bounds
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		Tick:            w.tick.Load(),
		WorldParams: protocol.WorldParams{
			WorldID:    w.cfg.ID,
			TickRateHz: w.cfg.TickRateHz,
			StepSize:   w.cfg.Planner.Step,
			Bounds:     [4]float64{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y},
		},
	}
}

// applyInputs runs at the tick boundary in received order. Attaches and
// detaches toggle steering mode; the last steer of the tick wins.
func (w *World) applyInputs(in Inputs, reqs []AttachRequest) {
	for _, req := range reqs {
		if req.SessionID == "" {
			continue
		}
		w.controllers[req.SessionID] = &controller{id: req.SessionID, out: req.Out}
		if req.Resp != nil {
			req.Resp <- w.welcome(req.SessionID)
		}
	}
	for _, id := range in.Attaches {
		if _, ok := w.controllers[id]; !ok {
			// Replay: no transport behind the session.
			w.controllers[id] = &controller{id: id}
		}
	}
	for _, id := range in.Detaches {
		delete(w.controllers, id)
	}
	for _, s := range in.Steers {
		if _, ok := w.controllers[s.SessionID]; !ok {
			continue
		}
		w.target.steerDir = clampSteer(s.Dir)
	}
	wasSteered := w.target.steered
	w.target.steered = len(w.controllers) > 0
	if wasSteered && !w.target.steered {
		w.target.steerDir = geom.Vec2{}
	}
}

func (w *World) stateMsg(tick uint64) protocol.StateMsg {
	t := w.target
	msg := protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		Target: protocol.TargetState{
			Pos:       [2]float64{t.Pos.X, t.Pos.Y},
			FacingDeg: geom.HeadingDeg(t.Facing),
			Health:    t.Health,
			MaxHealth: t.MaxHealth,
			Alive:     t.Alive,
			Steered:   t.steered,
		},
		Pursuers: make([]protocol.PursuerBrief, 0, len(w.pursuers)),
	}
	for _, p := range w.pursuers {
		msg.Pursuers = append(msg.Pursuers, protocol.PursuerBrief{
			ID:     p.ID,
			Pos:    [2]float64{p.Pos.X, p.Pos.Y},
			Action: string(p.LastAction()),
		})
	}
	return msg
}

func (w *World) sendControllers(tick uint64) {
	if len(w.controllers) == 0 {
		return
	}
	b, err := json.Marshal(w.stateMsg(tick))
	if err != nil {
		return
	}
	for _, c := range w.controllers {
		if c.out == nil {
			continue
		}
		sendLatest(c.out, b)
	}
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
