package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	pslog "shadowchase.ai/internal/persistence/log"
	"shadowchase.ai/internal/persistence/snapshot"
	"shadowchase.ai/internal/sim/scenario"
	"shadowchase.ai/internal/sim/tuning"
	"shadowchase.ai/internal/sim/world"
)

func main() {
	var (
		addr         = flag.String("addr", ":8080", "http listen address")
		configDir    = flag.String("configs", "./configs", "config directory")
		scenarioPath = flag.String("scenario", "", "path to scenario.yaml (default: <configs>/scenario.yaml)")
		tuningPath   = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir      = flag.String("data", "./data", "runtime data directory")
		disableDB    = flag.Bool("disable_db", false, "disable the sqlite index")
		resume       = flag.String("resume", "", "snapshot to resume from, or \"latest\" for the newest earlier snapshot")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	sp := strings.TrimSpace(*scenarioPath)
	if sp == "" {
		sp = filepath.Join(*configDir, "scenario.yaml")
	}
	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}

	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}
	sc, err := scenario.Load(sp)
	if err != nil {
		logger.Fatalf("load scenario: %v", err)
	}

	resumePath, err := resolveResume(*dataDir, sc.ID, *resume)
	if err != nil {
		logger.Fatalf("resolve resume: %v", err)
	}

	// Each run gets its own directory holding the exact inputs needed to replay it.
	runDir := filepath.Join(*dataDir, "worlds", sc.ID, "runs", time.Now().UTC().Format("20060102T150405Z"))
	if err := saveRunInputs(runDir, sp, tp); err != nil {
		logger.Fatalf("run dir: %v", err)
	}

	w, err := world.New(world.ConfigFromTuning(sc.ID, tune), sc, logger)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	var orphaned []string
	if resumePath != "" {
		snap, err := snapshot.ReadSnapshot(resumePath)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if err := w.ImportSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		// Replay of this run starts from the same state.
		if err := snapshot.WriteSnapshot(filepath.Join(runDir, resumeSnapshotName), snap); err != nil {
			logger.Fatalf("save resume snapshot: %v", err)
		}
		orphaned = snap.Controllers
		logger.Printf("resumed from snapshot=%s tick=%d", resumePath, w.CurrentTick())
	}

	// Optional: read-model index backend (does not affect sim determinism).
	idx, err := openRuntimeIndex(runDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertConfigs(tune, sc); err != nil {
			logger.Printf("index backend: upsert configs: %v", err)
		}
	}

	tickLog := pslog.NewTickLogger(runDir, tune.TickLog.RotateBytes, tune.TickLog.DigestEveryTicks)
	sessionLog := pslog.NewSessionLogger(runDir)
	defer tickLog.Close()
	defer sessionLog.Close()
	if idx != nil {
		w.SetTickLogger(multiTickLogger{a: tickLog, b: idx})
	} else {
		w.SetTickLogger(tickLog)
	}

	snapCh, snapDone := startSnapshotWriter(runDir, idx, logger)
	w.SetSnapshotSink(snapCh)

	ctx, cancel := signalContext()
	defer cancel()

	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()
	// Sessions restored from the snapshot have no connection behind them.
	go func() {
		for _, id := range orphaned {
			select {
			case w.Detach() <- id:
			case <-ctx.Done():
				return
			}
		}
	}()

	mux := newMux(w, idx, sessionLog, muxConfig{
		EnableAdmin: envBool("SC_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()),
		EnablePprof: envBool("SC_ENABLE_PPROF_HTTP", false),
		RunDir:      runDir,
	}, logger)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("world=%s pursuers=%d run=%s", sc.ID, len(sc.Pursuers), runDir)
	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	// Let the final tick finish writing before the loggers close.
	<-worldDone
	close(snapCh)
	<-snapDone
}

// saveRunInputs copies the scenario and tuning files into runDir. A missing
// tuning file is skipped; replay then falls back to the defaults as well.
func saveRunInputs(runDir, scenarioPath, tuningPath string) error {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	b, err := os.ReadFile(scenarioPath)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(runDir, "scenario.yaml"), b, 0o644); err != nil {
		return err
	}
	b, err = os.ReadFile(tuningPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(runDir, "tuning.yaml"), b, 0o644)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
