package snapshot

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteReadSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snaps", FileName(41))
	in := SnapshotV1{
		Header:   Header{Version: 1, WorldID: "arena", Tick: 41},
		TickRate: 10,
		Target:   TargetV1{Pos: [2]float64{1, 2}, Health: 80, Alive: true, Steered: true, SteerDir: [2]float64{0, 1}},
		Pursuers: []PursuerV1{{
			ID: "P1", Pos: [2]float64{3, 4}, Waypoints: [][2]float64{{3, 4}, {1, 2}},
			Cursor: 1, HasPlan: true, LastTarget: [2]float64{1, 2}, Cooldown: 0.5, LastAction: "MOVE",
		}},
		Controllers:  []string{"C1"},
		ReplansTotal: 3,
		PlanOutcomes: map[string]uint64{"FOUND": 3},
	}
	if err := WriteSnapshot(path, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
	out, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.Header != in.Header || out.Target != in.Target || len(out.Pursuers) != 1 {
		t.Fatalf("round trip: %+v", out)
	}
	p := out.Pursuers[0]
	if p.Cursor != 1 || len(p.Waypoints) != 2 || p.Waypoints[1] != [2]float64{1, 2} || p.LastAction != "MOVE" {
		t.Fatalf("pursuer: %+v", p)
	}
	if out.PlanOutcomes["FOUND"] != 3 || len(out.Controllers) != 1 {
		t.Fatalf("counters: %+v", out)
	}
}

func TestLatest(t *testing.T) {
	dir := t.TempDir()
	if p, err := Latest(filepath.Join(dir, "missing")); err != nil || p != "" {
		t.Fatalf("missing dir: %q %v", p, err)
	}
	for _, name := range []string{FileName(9), FileName(100), FileName(20), "junk.snap.zst", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	p, err := Latest(dir)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if filepath.Base(p) != "100.snap.zst" {
		t.Fatalf("latest=%s", p)
	}
}
