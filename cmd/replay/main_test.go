package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	pslog "shadowchase.ai/internal/persistence/log"
	"shadowchase.ai/internal/persistence/snapshot"
	"shadowchase.ai/internal/sim/geom"
	"shadowchase.ai/internal/sim/world"
)

func copyConfig(t *testing.T, dst, name string) {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("..", "..", "configs", name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	if err := os.WriteFile(filepath.Join(dst, name), b, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

// recordRun runs a world for n ticks with a steering session and logs it.
func recordRun(t *testing.T, n uint64) string {
	t.Helper()
	dir := t.TempDir()
	copyConfig(t, dir, "scenario.yaml")
	copyConfig(t, dir, "tuning.yaml")

	w, err := loadRun(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	l := pslog.NewTickLogger(dir, 0, 1)
	w.SetTickLogger(l)
	snaps := make(chan snapshot.SnapshotV1, 8)
	w.SetSnapshotSink(snaps)
	for i := uint64(0); i < n; i++ {
		var in world.Inputs
		switch i {
		case 10:
			in.Attaches = []string{"C1"}
			in.Steers = []world.SteerInput{{SessionID: "C1", Dir: geom.V(0, 1)}}
		case 30:
			in.Detaches = []string{"C1"}
		}
		w.StepOnce(in)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	close(snaps)
	for s := range snaps {
		if err := snapshot.WriteSnapshot(filepath.Join(dir, "snapshots", snapshot.FileName(s.Header.Tick)), s); err != nil {
			t.Fatalf("write snapshot: %v", err)
		}
	}
	return dir
}

func TestReplayRun_VerifiesDigests(t *testing.T) {
	dir := recordRun(t, 60)
	res, err := replayRun(dir, "", 0, 0)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res.Ticks != 60 || res.Checked != 60 || res.WorldID != "warehouse" {
		t.Fatalf("result: %+v", res)
	}

	res, err = replayRun(dir, "", 20, 39)
	if err != nil {
		t.Fatalf("replay window: %v", err)
	}
	if res.Ticks != 40 || res.Checked != 20 {
		t.Fatalf("window result: %+v", res)
	}
}

func TestReplayRun_DetectsDivergence(t *testing.T) {
	dir := recordRun(t, 20)

	// A different scenario must not reproduce the recorded digests.
	p := filepath.Join(dir, "scenario.yaml")
	b, _ := os.ReadFile(p)
	changed := strings.Replace(string(b), "speed: 2.5", "speed: 2.0", 1)
	if changed == string(b) {
		t.Fatalf("scenario fixture changed; update the test")
	}
	if err := os.WriteFile(p, []byte(changed), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := replayRun(dir, "", 0, 0); err == nil || !strings.Contains(err.Error(), "digest mismatch") {
		t.Fatalf("expected digest mismatch, got %v", err)
	}
}

func TestReplayRun_FromSnapshot(t *testing.T) {
	dir := recordRun(t, 60)
	// tuning.yaml snapshots every 600 ticks; write one by hand at tick 24.
	w, err := loadRun(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	err = pslog.ReadTicks(dir, func(e world.TickLogEntry) error {
		if e.Tick > 24 {
			return pslog.ErrStop
		}
		w.StepOnce(world.Inputs{Attaches: e.Attaches, Detaches: e.Detaches, Steers: e.Steers})
		return nil
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	snapPath := filepath.Join(dir, "snapshots", snapshot.FileName(24))
	if err := snapshot.WriteSnapshot(snapPath, w.ExportSnapshot(24)); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}

	res, err := replayRun(dir, snapPath, 0, 0)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res.StartTick != 25 || res.Ticks != 35 || res.Checked != 35 {
		t.Fatalf("result: %+v", res)
	}
}

func TestReplayRun_UsesResumeSnapshot(t *testing.T) {
	dir := recordRun(t, 30)
	w, err := loadRun(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	// A snapshot the log does not continue from must fail the replay.
	w.StepOnce(world.Inputs{Attaches: []string{"X"}, Steers: []world.SteerInput{{SessionID: "X", Dir: geom.V(-1, 0)}}})
	for i := 0; i < 4; i++ {
		w.StepOnce(world.Inputs{})
	}
	if err := snapshot.WriteSnapshot(filepath.Join(dir, "resume.snap.zst"), w.ExportSnapshot(4)); err != nil {
		t.Fatalf("write: %v", err)
	}
	res, err := replayRun(dir, "", 0, 0)
	if err == nil || !strings.Contains(err.Error(), "digest mismatch") {
		t.Fatalf("expected mismatch from unrelated resume snapshot, got %+v %v", res, err)
	}
}
