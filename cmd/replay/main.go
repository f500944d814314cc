package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	pslog "shadowchase.ai/internal/persistence/log"
	"shadowchase.ai/internal/persistence/snapshot"
	"shadowchase.ai/internal/sim/scenario"
	"shadowchase.ai/internal/sim/tuning"
	"shadowchase.ai/internal/sim/world"
)

func main() {
	var (
		runDir   = flag.String("run", "", "run dir containing scenario.yaml, tuning.yaml and ticks/")
		snapPath = flag.String("snapshot", "", "start from this snapshot (default: the run's resume snapshot, if any)")
		fromTick = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick   = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	if *runDir == "" {
		fmt.Fprintln(os.Stderr, "missing -run")
		os.Exit(2)
	}

	res, err := replayRun(*runDir, *snapPath, *fromTick, *toTick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: world=%s start=%d ticks=%d checked=%d\n", res.WorldID, res.StartTick, res.Ticks, res.Checked)
}

type replayResult struct {
	WorldID   string
	StartTick uint64
	Ticks     uint64
	Checked   uint64
}

func loadRun(runDir string) (*world.World, error) {
	tune, err := tuning.Load(filepath.Join(runDir, "tuning.yaml"))
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		tune = tuning.Defaults()
	}
	sc, err := scenario.Load(filepath.Join(runDir, "scenario.yaml"))
	if err != nil {
		return nil, err
	}
	return world.New(world.ConfigFromTuning(sc.ID, tune), sc, nil)
}

// replayRun feeds the recorded inputs back through a fresh world and compares
// every recorded digest. With a snapshot, log entries before it are skipped.
func replayRun(runDir, snapPath string, verifyFrom, toTick uint64) (replayResult, error) {
	w, err := loadRun(runDir)
	if err != nil {
		return replayResult{}, err
	}
	if snapPath == "" {
		p := filepath.Join(runDir, "resume.snap.zst")
		if _, err := os.Stat(p); err == nil {
			snapPath = p
		}
	}
	if snapPath != "" {
		snap, err := snapshot.ReadSnapshot(snapPath)
		if err != nil {
			return replayResult{}, fmt.Errorf("read snapshot: %w", err)
		}
		if err := w.ImportSnapshot(snap); err != nil {
			return replayResult{}, fmt.Errorf("import snapshot: %w", err)
		}
	}
	res := replayResult{WorldID: w.ID(), StartTick: w.CurrentTick()}

	err = pslog.ReadTicks(runDir, func(entry world.TickLogEntry) error {
		if toTick != 0 && entry.Tick > toTick {
			return pslog.ErrStop
		}
		if entry.Tick < res.StartTick {
			return nil
		}
		if entry.Tick != w.CurrentTick() {
			return fmt.Errorf("tick mismatch: want=%d got=%d", w.CurrentTick(), entry.Tick)
		}
		tick, got := w.StepOnce(world.Inputs{
			Attaches: entry.Attaches,
			Detaches: entry.Detaches,
			Steers:   entry.Steers,
		})
		res.Ticks++
		if entry.Digest == "" || tick < verifyFrom {
			return nil
		}
		res.Checked++
		if got != entry.Digest {
			return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, got, entry.Digest)
		}
		return nil
	})
	return res, err
}
