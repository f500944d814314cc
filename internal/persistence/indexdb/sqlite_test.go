package indexdb

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	pslog "shadowchase.ai/internal/persistence/log"
	"shadowchase.ai/internal/persistence/snapshot"
	"shadowchase.ai/internal/sim/geom"
	"shadowchase.ai/internal/sim/nav"
	"shadowchase.ai/internal/sim/scenario"
	"shadowchase.ai/internal/sim/tuning"
	"shadowchase.ai/internal/sim/world"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTick, tick: world.TickLogEntry{Tick: 1}}

	_ = s.WriteTick(world.TickLogEntry{Tick: 2})
	_ = s.WriteSession(pslog.SessionEvent{SessionID: "C1", Event: "CONNECT"})

	st := s.Stats()
	if st.DropTickTotal != 1 {
		t.Fatalf("DropTickTotal=%d want=1", st.DropTickTotal)
	}
	if st.DropSessionTotal != 1 {
		t.Fatalf("DropSessionTotal=%d want=1", st.DropSessionTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_WritesTicksPlansAttacks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")

	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	_ = idx.WriteTick(world.TickLogEntry{
		Tick:   7,
		Digest: "abc",
		Plans: []world.PlanEvent{
			{PursuerID: "P1", From: geom.V(1, 2), To: geom.V(3, 4), Outcome: nav.OutcomeFound, Expanded: 40, RawLen: 12, Waypoints: 3},
			{PursuerID: "P2", Outcome: nav.OutcomeBudget, Expanded: 4096},
		},
		Attacks: []world.AttackEvent{{PursuerID: "P1", Damage: 10, TargetHealth: 90}},
	})
	_ = idx.WriteSession(pslog.SessionEvent{TS: "2026-01-01T00:00:00Z", Tick: 7, SessionID: "C1", Event: "CONNECT", Client: "bot"})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	st := idx.Stats()
	if st.IndexedTicks != 1 || st.LastIndexedTick != 7 {
		t.Fatalf("stats: %+v", st)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var digest string
	var plans, attacks int
	if err := db.QueryRow(`SELECT digest,plans,attacks FROM ticks WHERE tick=7`).Scan(&digest, &plans, &attacks); err != nil {
		t.Fatalf("ticks: %v", err)
	}
	if digest != "abc" || plans != 2 || attacks != 1 {
		t.Fatalf("tick row: digest=%q plans=%d attacks=%d", digest, plans, attacks)
	}

	var outcome string
	var expanded, rawLen, wps int
	var fromX, toY float64
	if err := db.QueryRow(`SELECT outcome,expanded,raw_len,waypoints,from_x,to_y FROM plans WHERE tick=7 AND pursuer_id='P1'`).Scan(&outcome, &expanded, &rawLen, &wps, &fromX, &toY); err != nil {
		t.Fatalf("plans: %v", err)
	}
	if outcome != "FOUND" || expanded != 40 || rawLen != 12 || wps != 3 || fromX != 1 || toY != 4 {
		t.Fatalf("plan row: %s %d %d %d %v %v", outcome, expanded, rawLen, wps, fromX, toY)
	}

	var health float64
	if err := db.QueryRow(`SELECT target_health FROM attacks WHERE tick=7 AND seq=0`).Scan(&health); err != nil {
		t.Fatalf("attacks: %v", err)
	}
	if health != 90 {
		t.Fatalf("target_health=%v", health)
	}

	var event, client string
	if err := db.QueryRow(`SELECT event,client FROM sessions WHERE session_id='C1'`).Scan(&event, &client); err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if event != "CONNECT" || client != "bot" {
		t.Fatalf("session row: %s %s", event, client)
	}
}

func TestSQLiteIndex_UpsertConfigs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()

	sc := scenario.Scenario{ID: "arena"}
	if err := idx.UpsertConfigs(tuning.Defaults(), sc); err != nil {
		t.Fatalf("UpsertConfigs: %v", err)
	}
	var n int
	if err := idx.db.QueryRow(`SELECT COUNT(*) FROM configs`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("configs rows=%d want 2", n)
	}
	var id string
	if err := idx.db.QueryRow(`SELECT value FROM meta WHERE key='world_id'`).Scan(&id); err != nil || id != "arena" {
		t.Fatalf("world_id=%q err=%v", id, err)
	}
}

func TestSQLiteIndex_RecordSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	idx.RecordSnapshot("/run/snapshots/599.snap.zst", snapshot.SnapshotV1{
		Header:   snapshot.Header{Version: 1, WorldID: "arena", Tick: 599},
		Target:   snapshot.TargetV1{Health: 40, Alive: true},
		Pursuers: []snapshot.PursuerV1{{ID: "P1"}, {ID: "P2"}},
	})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()
	var p string
	var pursuers, alive int
	var health float64
	if err := db.QueryRow(`SELECT path,pursuers,target_health,target_alive FROM snapshots WHERE tick=599`).Scan(&p, &pursuers, &health, &alive); err != nil {
		t.Fatalf("snapshots: %v", err)
	}
	if p != "/run/snapshots/599.snap.zst" || pursuers != 2 || health != 40 || alive != 1 {
		t.Fatalf("snapshot row: %s %d %v %d", p, pursuers, health, alive)
	}
}
