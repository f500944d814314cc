package main

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shadowchase.ai/internal/sim/scenario"
	"shadowchase.ai/internal/sim/tuning"
	"shadowchase.ai/internal/sim/world"
)

func newTestWorld(t *testing.T) *world.World {
	t.Helper()
	sc, err := scenario.Load("../../configs/scenario.yaml")
	if err != nil {
		t.Fatalf("scenario: %v", err)
	}
	w, err := world.New(world.ConfigFromTuning(sc.ID, tuning.Defaults()), sc, nil)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	for i := 0; i < 3; i++ {
		w.StepOnce(world.Inputs{})
	}
	return w
}

func TestMux_HealthAndMetrics(t *testing.T) {
	w := newTestWorld(t)
	srv := httptest.NewServer(newMux(w, nil, nil, muxConfig{EnableAdmin: true}, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status: %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	text := string(body)
	for _, want := range []string{
		`shadowchase_world_tick{world="warehouse"} 3`,
		`shadowchase_world_pursuers{world="warehouse"} 2`,
		`shadowchase_replans_total{world="warehouse"}`,
		`shadowchase_plan_outcomes_total{world="warehouse",outcome=`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("metrics missing %q:\n%s", want, text)
		}
	}
}

func TestMux_AdminState(t *testing.T) {
	w := newTestWorld(t)
	srv := httptest.NewServer(newMux(w, nil, nil, muxConfig{EnableAdmin: true, RunDir: "/tmp/run"}, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/admin/v1/state")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	defer resp.Body.Close()
	var st struct {
		WorldID string             `json:"world_id"`
		Tick    uint64             `json:"tick"`
		RunDir  string             `json:"run_dir"`
		Metrics world.WorldMetrics `json:"metrics"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.WorldID != "warehouse" || st.Tick != 3 || st.RunDir != "/tmp/run" || st.Metrics.Pursuers != 2 {
		t.Fatalf("state: %+v", st)
	}
}

func TestMux_AdminRejectsRemote(t *testing.T) {
	w := newTestWorld(t)
	mux := newMux(w, nil, nil, muxConfig{EnableAdmin: true}, nil)
	req := httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status: %d", rec.Code)
	}
}

func TestMux_AdminDisabled(t *testing.T) {
	w := newTestWorld(t)
	mux := newMux(w, nil, nil, muxConfig{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/admin/v1/observer/bootstrap", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: %d", rec.Code)
	}
}

func TestSaveRunInputs(t *testing.T) {
	dir := t.TempDir()
	sp := filepath.Join(dir, "s.yaml")
	if err := os.WriteFile(sp, []byte("id: x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	run := filepath.Join(dir, "run")
	if err := saveRunInputs(run, sp, filepath.Join(dir, "missing.yaml")); err != nil {
		t.Fatalf("save: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(run, "scenario.yaml"))
	if err != nil || string(b) != "id: x\n" {
		t.Fatalf("scenario copy: %q %v", b, err)
	}
	if _, err := os.Stat(filepath.Join(run, "tuning.yaml")); !os.IsNotExist(err) {
		t.Fatalf("tuning should be absent: %v", err)
	}
}

func TestOpenRuntimeIndex_Backends(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SC_INDEX_BACKEND", "none")
	idx, err := openRuntimeIndex(dir, false)
	if err != nil || idx != nil {
		t.Fatalf("none: idx=%v err=%v", idx, err)
	}
	t.Setenv("SC_INDEX_BACKEND", "postgres")
	if _, err := openRuntimeIndex(dir, false); err == nil {
		t.Fatalf("expected unsupported backend error")
	}
	t.Setenv("SC_INDEX_BACKEND", "sqlite")
	idx, err = openRuntimeIndex(dir, false)
	if err != nil || idx == nil {
		t.Fatalf("sqlite: idx=%v err=%v", idx, err)
	}
	_ = idx.Close()
	if _, err := os.Stat(filepath.Join(dir, "index", "world.sqlite")); err != nil {
		t.Fatalf("db file: %v", err)
	}
}

func TestResolveResume_Latest(t *testing.T) {
	data := t.TempDir()
	runs := filepath.Join(data, "worlds", "warehouse", "runs")
	mk := func(run, name string) {
		dir := filepath.Join(runs, run, "snapshots")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		if name != "" {
			if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
				t.Fatal(err)
			}
		}
	}
	mk("20260101T000000Z", "599.snap.zst")
	mk("20260102T000000Z", "1199.snap.zst")
	mk("20260103T000000Z", "")

	got, err := resolveResume(data, "warehouse", "latest")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if want := filepath.Join(runs, "20260102T000000Z", "snapshots", "1199.snap.zst"); got != want {
		t.Fatalf("latest=%s want %s", got, want)
	}
	if got, _ := resolveResume(data, "other", "latest"); got != "" {
		t.Fatalf("unknown world should resolve empty, got %s", got)
	}
	if got, _ := resolveResume(data, "warehouse", " /x/1.snap.zst "); got != "/x/1.snap.zst" {
		t.Fatalf("explicit path: %s", got)
	}
}

func TestSnapshotWriter_WritesFiles(t *testing.T) {
	w := newTestWorld(t)
	run := t.TempDir()
	ch, done := startSnapshotWriter(run, nil, log.New(io.Discard, "", 0))
	ch <- w.ExportSnapshot(2)
	close(ch)
	<-done
	if _, err := os.Stat(filepath.Join(run, "snapshots", "2.snap.zst")); err != nil {
		t.Fatalf("snapshot file: %v", err)
	}
}
