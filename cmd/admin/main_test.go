package main

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"shadowchase.ai/internal/persistence/indexdb"
	pslog "shadowchase.ai/internal/persistence/log"
	"shadowchase.ai/internal/persistence/snapshot"
	"shadowchase.ai/internal/sim/nav"
	"shadowchase.ai/internal/sim/world"
)

func seedIndex(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "world.sqlite")
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = idx.WriteTick(world.TickLogEntry{
		Tick: 3,
		Plans: []world.PlanEvent{
			{PursuerID: "P1", Outcome: nav.OutcomeFound, Expanded: 10},
			{PursuerID: "P2", Outcome: nav.OutcomeFound, Expanded: 30},
		},
	})
	_ = idx.WriteTick(world.TickLogEntry{
		Tick:    4,
		Plans:   []world.PlanEvent{{PursuerID: "P1", Outcome: nav.OutcomeBudget, Expanded: 4096}},
		Attacks: []world.AttackEvent{{PursuerID: "P2", Damage: 10, TargetHealth: 90}},
	})
	_ = idx.WriteSession(pslog.SessionEvent{TS: "2026-01-01T00:00:00Z", Tick: 4, SessionID: "C1", Event: "CONNECT"})
	idx.RecordSnapshot("snapshots/599.snap.zst", snapshot.SnapshotV1{
		Header: snapshot.Header{Version: 1, WorldID: "w1", Tick: 599},
		Target: snapshot.TargetV1{Health: 90, Alive: true},
	})
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return path
}

func TestRunQuery(t *testing.T) {
	db, err := sql.Open("sqlite", seedIndex(t))
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	rows, err := runQuery(db, "outcomes", queryOpts{})
	if err != nil {
		t.Fatalf("outcomes: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("outcomes rows=%d", len(rows))
	}
	budget := rows[0].(outcomeRow)
	found := rows[1].(outcomeRow)
	if budget.Outcome != "BUDGET" || budget.Count != 1 || found.Count != 2 || found.AvgExpanded != 20 {
		t.Fatalf("outcomes: %+v %+v", budget, found)
	}

	rows, err = runQuery(db, "plans", queryOpts{PursuerID: "P1"})
	if err != nil {
		t.Fatalf("plans: %v", err)
	}
	if len(rows) != 2 || rows[0].(planRow).Tick != 4 {
		t.Fatalf("plans: %+v", rows)
	}

	rows, err = runQuery(db, "attacks", queryOpts{})
	if err != nil || len(rows) != 1 || rows[0].(attackRow).TargetHealth != 90 {
		t.Fatalf("attacks: %+v %v", rows, err)
	}

	rows, err = runQuery(db, "ticks", queryOpts{Limit: 1})
	if err != nil || len(rows) != 1 || rows[0].(tickRow).Tick != 4 {
		t.Fatalf("ticks: %+v %v", rows, err)
	}

	rows, err = runQuery(db, "sessions", queryOpts{})
	if err != nil || len(rows) != 1 || rows[0].(sessionRow).SessionID != "C1" {
		t.Fatalf("sessions: %+v %v", rows, err)
	}

	rows, err = runQuery(db, "snapshots", queryOpts{})
	if err != nil || len(rows) != 1 || rows[0].(snapshotRow).Tick != 599 || !rows[0].(snapshotRow).TargetAlive {
		t.Fatalf("snapshots: %+v %v", rows, err)
	}

	if _, err := runQuery(db, "chunks", queryOpts{}); err == nil {
		t.Fatalf("expected unknown query error")
	}
}

func TestLatestRun(t *testing.T) {
	data := t.TempDir()
	runs := filepath.Join(data, "worlds", "w1", "runs")
	for _, name := range []string{"20260101T000000Z", "20260301T000000Z", "20260201T000000Z"} {
		if err := os.MkdirAll(filepath.Join(runs, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	got, err := latestRun(data, "w1")
	if err != nil {
		t.Fatalf("latestRun: %v", err)
	}
	if filepath.Base(got) != "20260301T000000Z" {
		t.Fatalf("latest=%s", got)
	}
	if _, err := latestRun(data, "missing"); err == nil {
		t.Fatalf("expected error for missing world")
	}
}

func TestFetchState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/v1/state" {
			http.NotFound(rw, r)
			return
		}
		_, _ = rw.Write([]byte(`{"world_id":"w1","tick":7}`))
	}))
	defer srv.Close()

	body, status, err := fetchState(srv.URL+"/", time.Second)
	if err != nil || status != http.StatusOK {
		t.Fatalf("fetch: status=%d err=%v", status, err)
	}
	if string(body) != `{"world_id":"w1","tick":7}` {
		t.Fatalf("body=%s", body)
	}
}
