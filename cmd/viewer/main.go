package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gorilla/websocket"

	"shadowchase.ai/internal/observerproto"
	"shadowchase.ai/internal/protocol"
)

func main() {
	var (
		baseURL   = flag.String("url", "http://127.0.0.1:8080", "server base url")
		steer     = flag.Bool("steer", false, "steer the target with the arrow keys")
		waypoints = flag.Bool("waypoints", true, "draw pursuer waypoints")
	)
	flag.Parse()

	base := strings.TrimRight(strings.TrimSpace(*baseURL), "/")
	boot, err := fetchBootstrap(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bootstrap:", err)
		os.Exit(1)
	}

	obsConn, _, err := websocket.DefaultDialer.Dial(wsURL(base, "/admin/v1/observer/ws"), nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "observer dial:", err)
		os.Exit(1)
	}
	defer obsConn.Close()
	sub := observerproto.SubscribeMsg{Type: "SUBSCRIBE", ProtocolVersion: observerproto.Version, IncludeWaypoints: *waypoints}
	if err := obsConn.WriteJSON(sub); err != nil {
		fmt.Fprintln(os.Stderr, "subscribe:", err)
		os.Exit(1)
	}

	var steerConn *websocket.Conn
	if *steer {
		steerConn, err = dialSteer(base)
		if err != nil {
			fmt.Fprintln(os.Stderr, "steer dial:", err)
			os.Exit(1)
		}
		defer steerConn.Close()
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintln(os.Stderr, "screen:", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "screen init:", err)
		os.Exit(1)
	}
	defer screen.Fini()

	stop := make(chan struct{})
	defer close(stop)
	go pingLoop(obsConn, stop)
	if steerConn != nil {
		go pingLoop(steerConn, stop)
	}

	run(screen, boot, obsConn, steerConn)
}

// pingLoop keeps an otherwise silent connection inside the server's idle timeout.
func pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	t := time.NewTicker(20 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				return
			}
		}
	}
}

func fetchBootstrap(base string) (observerproto.BootstrapResponse, error) {
	var boot observerproto.BootstrapResponse
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(base + "/admin/v1/observer/bootstrap")
	if err != nil {
		return boot, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return boot, fmt.Errorf("status %d", resp.StatusCode)
	}
	err = json.NewDecoder(resp.Body).Decode(&boot)
	return boot, err
}

func wsURL(base, path string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://") + path
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://") + path
	default:
		return base + path
	}
}

// dialSteer completes the HELLO/WELCOME handshake and drains STATE messages
// in the background; the viewer draws from the observer stream instead.
func dialSteer(base string) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(base, "/v1/ws"), nil)
	if err != nil {
		return nil, err
	}
	hello := protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "viewer"}
	if err := conn.WriteJSON(hello); err != nil {
		conn.Close()
		return nil, err
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if b, _ := protocol.DecodeBase(msg); b.Type != protocol.TypeWelcome {
		conn.Close()
		return nil, fmt.Errorf("expected WELCOME, got %s", b.Type)
	}
	_ = conn.SetReadDeadline(time.Time{})
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return conn, nil
}

func run(screen tcell.Screen, boot observerproto.BootstrapResponse, obsConn, steerConn *websocket.Conn) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			eventChan <- ev
		}
	}()

	tickChan := make(chan observerproto.TickMsg, 8)
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			var m observerproto.TickMsg
			if err := obsConn.ReadJSON(&m); err != nil {
				return
			}
			select {
			case tickChan <- m:
			default:
				// Drop the oldest frame so the display never lags.
				select {
				case <-tickChan:
				default:
				}
				tickChan <- m
			}
		}
	}()

	var last *observerproto.TickMsg
	status := "q: quit"
	if steerConn != nil {
		status = "arrows: steer  space: stop  q: quit"
	}
	dirty := true
	for {
		select {
		case ev := <-eventChan:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || (ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
					return
				}
				if dir, ok := keyDir(ev); ok && steerConn != nil {
					msg := protocol.SteerMsg{Type: protocol.TypeSteer, ProtocolVersion: protocol.Version, Dir: dir}
					if err := steerConn.WriteJSON(msg); err != nil {
						status = "steer: " + err.Error()
						steerConn = nil
					}
				}
			case *tcell.EventResize:
				screen.Sync()
			}
			dirty = true

		case m := <-tickChan:
			last = &m
			dirty = true

		case <-closed:
			status = "observer stream closed; q: quit"
			closed = nil
			dirty = true

		case <-ticker.C:
			if dirty {
				screen.Clear()
				render(screen, boot, last, status)
				screen.Show()
				dirty = false
			}
		}
	}
}

func keyDir(ev *tcell.EventKey) ([2]float64, bool) {
	switch ev.Key() {
	case tcell.KeyUp:
		return [2]float64{0, 1}, true
	case tcell.KeyDown:
		return [2]float64{0, -1}, true
	case tcell.KeyLeft:
		return [2]float64{-1, 0}, true
	case tcell.KeyRight:
		return [2]float64{1, 0}, true
	case tcell.KeyRune:
		if ev.Rune() == ' ' {
			return [2]float64{}, true
		}
	}
	return [2]float64{}, false
}
