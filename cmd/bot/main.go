package main

import (
	"encoding/json"
	"flag"
	"log"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"shadowchase.ai/internal/protocol"
)

func main() {
	var (
		url   = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name  = flag.String("name", "bot", "client name")
		mode  = flag.String("mode", "flee", "steering mode: flee|circle|idle")
		every = flag.Uint64("every", 5, "send a STEER every N ticks")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      *name,
		Capabilities:    protocol.HelloCapabilities{MaxQueue: 8},
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	go func() {
		t := time.NewTicker(20 * time.Second)
		defer t.Stop()
		for range t.C {
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				return
			}
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		_ = conn.Close()
	}()

	var bounds [4]float64
	n := *every
	if n == 0 {
		n = 1
	}
	dead := false
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			bounds = w.WorldParams.Bounds
			logger.Printf("WELCOME session=%s world=%s tick_rate=%d", w.SessionID, w.WorldParams.WorldID, w.WorldParams.TickRateHz)

		case protocol.TypeError:
			var e protocol.ErrorMsg
			if err := json.Unmarshal(msg, &e); err == nil {
				logger.Printf("ERROR %s: %s", e.Code, e.Message)
			}

		case protocol.TypeState:
			var st protocol.StateMsg
			if err := json.Unmarshal(msg, &st); err != nil {
				continue
			}
			if !st.Target.Alive {
				if !dead {
					logger.Printf("target down at tick=%d", st.Tick)
					dead = true
				}
				continue
			}
			if st.Tick%100 == 0 {
				logger.Printf("tick=%d pos=%v health=%.1f", st.Tick, st.Target.Pos, st.Target.Health)
			}
			if st.Tick%n != 0 {
				continue
			}
			dir, ok := steerFor(*mode, st, bounds)
			if !ok {
				continue
			}
			steer := protocol.SteerMsg{Type: protocol.TypeSteer, ProtocolVersion: protocol.Version, Dir: dir}
			if err := conn.WriteJSON(steer); err != nil {
				return
			}
		}
	}
}

func steerFor(mode string, st protocol.StateMsg, bounds [4]float64) ([2]float64, bool) {
	switch mode {
	case "flee":
		return fleeDir(st, bounds), true
	case "circle":
		a := float64(st.Tick) * 0.05
		return [2]float64{math.Cos(a), math.Sin(a)}, true
	default:
		return [2]float64{}, false
	}
}

// fleeDir heads away from the nearest pursuer, bending back toward the center
// near the map edge.
func fleeDir(st protocol.StateMsg, bounds [4]float64) [2]float64 {
	p := st.Target.Pos
	best := math.Inf(1)
	var away [2]float64
	for _, pu := range st.Pursuers {
		dx, dy := p[0]-pu.Pos[0], p[1]-pu.Pos[1]
		d := math.Hypot(dx, dy)
		if d < best && d > 1e-9 {
			best = d
			away = [2]float64{dx / d, dy / d}
		}
	}

	if bounds != ([4]float64{}) {
		const margin = 2.0
		cx, cy := (bounds[0]+bounds[2])/2, (bounds[1]+bounds[3])/2
		if p[0]-bounds[0] < margin || bounds[2]-p[0] < margin || p[1]-bounds[1] < margin || bounds[3]-p[1] < margin {
			away[0] += cx - p[0]
			away[1] += cy - p[1]
		}
	}

	l := math.Hypot(away[0], away[1])
	if l < 1e-9 {
		return [2]float64{}
	}
	return [2]float64{away[0] / l, away[1] / l}
}
