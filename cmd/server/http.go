package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"sort"
	"strings"

	pslog "shadowchase.ai/internal/persistence/log"
	"shadowchase.ai/internal/sim/world"
	"shadowchase.ai/internal/transport/observer"
	"shadowchase.ai/internal/transport/ws"
)

type muxConfig struct {
	EnableAdmin bool
	EnablePprof bool
	RunDir      string
}

func newMux(w *world.World, idx runtimeIndex, sessions *pslog.SessionLogger, cfg muxConfig, logger *log.Logger) *http.ServeMux {
	worldID := w.ID()
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		m := w.Metrics()
		tick := w.CurrentTick()
		if m.Tick != 0 {
			tick = m.Tick
		}

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP shadowchase_world_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE shadowchase_world_tick gauge\n")
		fmt.Fprintf(rw, "shadowchase_world_tick{world=%q} %d\n", worldID, tick)

		fmt.Fprintf(rw, "# HELP shadowchase_world_pursuers Number of pursuers.\n")
		fmt.Fprintf(rw, "# TYPE shadowchase_world_pursuers gauge\n")
		fmt.Fprintf(rw, "shadowchase_world_pursuers{world=%q} %d\n", worldID, m.Pursuers)

		fmt.Fprintf(rw, "# HELP shadowchase_world_lit_pursuers Pursuers frozen by light.\n")
		fmt.Fprintf(rw, "# TYPE shadowchase_world_lit_pursuers gauge\n")
		fmt.Fprintf(rw, "shadowchase_world_lit_pursuers{world=%q} %d\n", worldID, m.LitPursuers)

		fmt.Fprintf(rw, "# HELP shadowchase_world_observers Connected observers.\n")
		fmt.Fprintf(rw, "# TYPE shadowchase_world_observers gauge\n")
		fmt.Fprintf(rw, "shadowchase_world_observers{world=%q} %d\n", worldID, m.Observers)

		fmt.Fprintf(rw, "# HELP shadowchase_world_controllers Connected steering clients.\n")
		fmt.Fprintf(rw, "# TYPE shadowchase_world_controllers gauge\n")
		fmt.Fprintf(rw, "shadowchase_world_controllers{world=%q} %d\n", worldID, m.Controllers)

		fmt.Fprintf(rw, "# HELP shadowchase_world_queue_depth Channel backlog depth.\n")
		fmt.Fprintf(rw, "# TYPE shadowchase_world_queue_depth gauge\n")
		fmt.Fprintf(rw, "shadowchase_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "steer", m.QueueDepths.Steer)
		fmt.Fprintf(rw, "shadowchase_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "attach", m.QueueDepths.Attach)
		fmt.Fprintf(rw, "shadowchase_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "detach", m.QueueDepths.Detach)

		fmt.Fprintf(rw, "# HELP shadowchase_world_step_ms Last tick step duration in milliseconds.\n")
		fmt.Fprintf(rw, "# TYPE shadowchase_world_step_ms gauge\n")
		fmt.Fprintf(rw, "shadowchase_world_step_ms{world=%q} %.3f\n", worldID, m.StepMS)

		fmt.Fprintf(rw, "# HELP shadowchase_replans_total Plans computed.\n")
		fmt.Fprintf(rw, "# TYPE shadowchase_replans_total counter\n")
		fmt.Fprintf(rw, "shadowchase_replans_total{world=%q} %d\n", worldID, m.ReplansTotal)

		fmt.Fprintf(rw, "# HELP shadowchase_plan_outcomes_total Plans by outcome.\n")
		fmt.Fprintf(rw, "# TYPE shadowchase_plan_outcomes_total counter\n")
		outcomes := make([]string, 0, len(m.PlanOutcomes))
		for k := range m.PlanOutcomes {
			outcomes = append(outcomes, k)
		}
		sort.Strings(outcomes)
		for _, k := range outcomes {
			fmt.Fprintf(rw, "shadowchase_plan_outcomes_total{world=%q,outcome=%q} %d\n", worldID, k, m.PlanOutcomes[k])
		}

		fmt.Fprintf(rw, "# HELP shadowchase_attacks_total Attacks landed on the target.\n")
		fmt.Fprintf(rw, "# TYPE shadowchase_attacks_total counter\n")
		fmt.Fprintf(rw, "shadowchase_attacks_total{world=%q} %d\n", worldID, m.AttacksTotal)

		fmt.Fprintf(rw, "# HELP shadowchase_target_health Target health.\n")
		fmt.Fprintf(rw, "# TYPE shadowchase_target_health gauge\n")
		fmt.Fprintf(rw, "shadowchase_target_health{world=%q} %.3f\n", worldID, m.TargetHealth)

		if idx != nil {
			st := idx.Stats()
			fmt.Fprintf(rw, "# HELP shadowchase_index_queue_depth Index writer backlog.\n")
			fmt.Fprintf(rw, "# TYPE shadowchase_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "shadowchase_index_queue_depth{world=%q} %d\n", worldID, st.QueueDepth)
			fmt.Fprintf(rw, "# HELP shadowchase_index_dropped_total Index entries dropped on backlog.\n")
			fmt.Fprintf(rw, "# TYPE shadowchase_index_dropped_total counter\n")
			fmt.Fprintf(rw, "shadowchase_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "tick", st.DropTickTotal)
			fmt.Fprintf(rw, "shadowchase_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "session", st.DropSessionTotal)
		}
	})

	if cfg.EnableAdmin {
		// Local-only admin endpoints (do not affect simulation determinism).
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				WorldID string             `json:"world_id"`
				Tick    uint64             `json:"tick"`
				RunDir  string             `json:"run_dir,omitempty"`
				Metrics world.WorldMetrics `json:"metrics"`
			}{
				WorldID: worldID,
				Tick:    w.CurrentTick(),
				RunDir:  cfg.RunDir,
				Metrics: w.Metrics(),
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})

		obsSrv := observer.NewServer(w, logger)
		mux.HandleFunc("/admin/v1/observer/bootstrap", obsSrv.BootstrapHandler())
		mux.HandleFunc("/admin/v1/observer/ws", obsSrv.WSHandler())
	} else if logger != nil {
		logger.Printf("admin endpoints disabled (SC_ENABLE_ADMIN_HTTP=false)")
	}
	if cfg.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	var auditors []ws.SessionAuditor
	if sessions != nil {
		auditors = append(auditors, sessions)
	}
	if idx != nil {
		auditors = append(auditors, idx)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(w, logger, auditors...).Handler())
	return mux
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
