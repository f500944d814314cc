package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	pslog "shadowchase.ai/internal/persistence/log"
	"shadowchase.ai/internal/protocol"
	"shadowchase.ai/internal/sim/geom"
	"shadowchase.ai/internal/sim/world"
)

// SessionAuditor receives steering session lifecycle events.
type SessionAuditor interface {
	WriteSession(e pslog.SessionEvent) error
}

type Server struct {
	world *world.World
	log   *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	auditors []SessionAuditor

	// Steers accepted per session per second.
	steerRate int
}

func NewServer(w *world.World, logger *log.Logger, auditors ...SessionAuditor) *Server {
	rate := 4 * w.Config().TickRateHz
	if rate < 10 {
		rate = 10
	}
	return &Server{
		world:    w,
		log:      logger,
		auditors: auditors,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		steerRate: rate,
	}
}

func (s *Server) audit(e pslog.SessionEvent) {
	e.Tick = s.world.CurrentTick()
	for _, a := range s.auditors {
		if a == nil {
			continue
		}
		if err := a.WriteSession(e); err != nil && s.log != nil {
			s.log.Printf("session audit: %v", err)
		}
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sessionID, client, out := s.handshake(conn, r.RemoteAddr)
		if sessionID == "" {
			return
		}
		s.audit(pslog.SessionEvent{SessionID: sessionID, Event: "CONNECT", Remote: r.RemoteAddr, Client: client})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Replies from the reader share the writer goroutine with STATE.
		ctrl := make(chan []byte, 8)

		// Writer goroutine.
		go func() {
			write := func(b []byte) bool {
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					cancel()
					return false
				}
				return true
			}
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-ctrl:
					if !write(b) {
						return
					}
				case b, ok := <-out:
					if !ok {
						return
					}
					if !write(b) {
						return
					}
				}
			}
		}()

		keepAliveOnPing(conn)
		limiter := newWindowLimiter(s.steerRate, time.Second)

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			dir, code, reason := s.parseSteer(msg)
			if code == "" && !limiter.Allow(time.Now()) {
				code, reason = protocol.ErrRateLimit, "too many STEER messages"
			}
			if code == "" {
				select {
				case s.world.Steer() <- world.SteerRequest{SessionID: sessionID, Dir: dir}:
				default:
					code, reason = protocol.ErrWorldBusy, "steer queue full"
				}
			}
			if code != "" {
				sendLatest(ctrl, mustJSON(protocol.NewError(code, reason)))
			}
		}

		// Cleanup.
		select {
		case s.world.Detach() <- sessionID:
		case <-time.After(time.Second):
			if s.log != nil {
				s.log.Printf("session %s: detach dropped", sessionID)
			}
		}
		s.audit(pslog.SessionEvent{SessionID: sessionID, Event: "DISCONNECT", Remote: r.RemoteAddr, Client: client})
	}
}

// parseSteer returns an error code and reason when msg is not a usable STEER.
func (s *Server) parseSteer(msg []byte) (geom.Vec2, string, string) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return geom.Vec2{}, protocol.ErrProtoBadRequest, "invalid json"
	}
	if base.Type != protocol.TypeSteer {
		return geom.Vec2{}, protocol.ErrProtoBadRequest, fmt.Sprintf("unexpected message type %q", base.Type)
	}
	if base.ProtocolVersion != protocol.Version {
		return geom.Vec2{}, protocol.ErrProtoBadRequest, "bad protocol_version"
	}
	if err := protocol.ValidateInbound(protocol.TypeSteer, msg); err != nil {
		return geom.Vec2{}, protocol.ErrBadRequest, err.Error()
	}
	var steer protocol.SteerMsg
	if err := json.Unmarshal(msg, &steer); err != nil {
		return geom.Vec2{}, protocol.ErrBadRequest, err.Error()
	}
	dir := geom.V(steer.Dir[0], steer.Dir[1])
	if !world.ValidSteer(dir) {
		return geom.Vec2{}, protocol.ErrInvalidTarget, "dir must be finite"
	}
	return dir, "", ""
}

func (s *Server) handshake(conn *websocket.Conn, remote string) (sessionID, client string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", "", nil
	}

	reject := func(code, reason string) {
		s.audit(pslog.SessionEvent{Event: "REJECT", Remote: remote, Code: code})
		_ = writeJSON(conn, protocol.NewError(code, reason))
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		reject(protocol.ErrProtoBadRequest, "expected HELLO")
		return "", "", nil
	}
	if base.ProtocolVersion != protocol.Version {
		reject(protocol.ErrProtoBadRequest, "bad protocol_version")
		return "", "", nil
	}
	if err := protocol.ValidateInbound(protocol.TypeHello, msg); err != nil {
		reject(protocol.ErrBadRequest, "bad HELLO")
		return "", "", nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		reject(protocol.ErrBadRequest, "bad HELLO")
		return "", "", nil
	}
	if hello.ClientName == "" {
		hello.ClientName = "client"
	}

	maxQ := hello.Capabilities.MaxQueue
	if maxQ <= 0 {
		maxQ = 8
	}
	if maxQ > 64 {
		maxQ = 64
	}
	out = make(chan []byte, maxQ)

	sessionID = fmt.Sprintf("C%d", s.nextID.Add(1))
	respCh := make(chan protocol.WelcomeMsg, 1)
	select {
	case s.world.Attach() <- world.AttachRequest{SessionID: sessionID, Out: out, Resp: respCh}:
	default:
		reject(protocol.ErrWorldBusy, "server busy")
		return "", "", nil
	}

	var welcome protocol.WelcomeMsg
	select {
	case welcome = <-respCh:
	case <-time.After(5 * time.Second):
		// The attach may still land; release it.
		select {
		case s.world.Detach() <- sessionID:
		default:
		}
		reject(protocol.ErrWorldBusy, "attach timed out")
		return "", "", nil
	}

	if err := writeJSON(conn, welcome); err != nil {
		return "", "", nil
	}
	return sessionID, hello.ClientName, out
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
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

// windowLimiter allows n events per fixed window.
type windowLimiter struct {
	n      int
	window time.Duration
	start  time.Time
	count  int
}

func newWindowLimiter(n int, window time.Duration) *windowLimiter {
	return &windowLimiter{n: n, window: window}
}

func (l *windowLimiter) Allow(now time.Time) bool {
	if now.Sub(l.start) >= l.window {
		l.start = now
		l.count = 0
	}
	if l.count >= l.n {
		return false
	}
	l.count++
	return true
}

const readIdleTimeout = 60 * time.Second

// keepAliveOnPing lets clients that only listen hold the connection open with
// ping frames.
func keepAliveOnPing(conn *websocket.Conn) {
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})
}
