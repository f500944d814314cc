package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	pslog "shadowchase.ai/internal/persistence/log"
	"shadowchase.ai/internal/persistence/snapshot"
	"shadowchase.ai/internal/sim/scenario"
	"shadowchase.ai/internal/sim/tuning"
	"shadowchase.ai/internal/sim/world"
)

// SQLiteIndex is a queryable read model of the tick log. Writes are queued and
// applied by one goroutine in batched transactions; when the queue is full
// entries are dropped and counted.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick    atomic.Uint64
	dropSession atomic.Uint64
	indexedTick atomic.Uint64
	lastTick    atomic.Uint64
	txFail      atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqSession
	reqSnapshot
)

type req struct {
	kind reqKind

	tick     world.TickLogEntry
	session  pslog.SessionEvent
	snapshot snapshotRow
}

type snapshotRow struct {
	Tick         uint64
	Path         string
	Pursuers     int
	Controllers  int
	TargetHealth float64
	TargetAlive  bool
}

// Stats is a point-in-time view of the writer queue.
type Stats struct {
	QueueDepth       int    `json:"queue_depth"`
	QueueCapacity    int    `json:"queue_capacity"`
	DropTickTotal    uint64 `json:"drop_tick_total"`
	DropSessionTotal uint64 `json:"drop_session_total"`
	IndexedTicks     uint64 `json:"indexed_ticks"`
	LastIndexedTick  uint64 `json:"last_indexed_tick"`
	TxFailTotal      uint64 `json:"tx_fail_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS configs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			digest TEXT NOT NULL,
			attaches INTEGER NOT NULL,
			detaches INTEGER NOT NULL,
			steers INTEGER NOT NULL,
			plans INTEGER NOT NULL,
			attacks INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS plans (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			pursuer_id TEXT NOT NULL,
			outcome TEXT NOT NULL,
			expanded INTEGER NOT NULL,
			raw_len INTEGER NOT NULL,
			waypoints INTEGER NOT NULL,
			from_x REAL NOT NULL,
			from_y REAL NOT NULL,
			to_x REAL NOT NULL,
			to_y REAL NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_plans_pursuer_tick ON plans(pursuer_id, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_plans_outcome ON plans(outcome);`,
		`CREATE TABLE IF NOT EXISTS attacks (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			pursuer_id TEXT NOT NULL,
			damage REAL NOT NULL,
			target_health REAL NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			tick INTEGER NOT NULL,
			session_id TEXT NOT NULL,
			event TEXT NOT NULL,
			remote TEXT,
			client TEXT,
			code TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_session ON sessions(session_id);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			pursuers INTEGER NOT NULL,
			controllers INTEGER NOT NULL,
			target_health REAL NOT NULL,
			target_alive INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
		s.dropTick.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) WriteSession(e pslog.SessionEvent) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqSession, session: e}:
	default:
		s.dropSession.Add(1)
	}
	return nil
}

// RecordSnapshot indexes a snapshot written to path. Best-effort.
func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		Tick:         snap.Header.Tick,
		Path:         path,
		Pursuers:     len(snap.Pursuers),
		Controllers:  len(snap.Controllers),
		TargetHealth: snap.Target.Health,
		TargetAlive:  snap.Target.Alive,
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:       len(s.ch),
		QueueCapacity:    cap(s.ch),
		DropTickTotal:    s.dropTick.Load(),
		DropSessionTotal: s.dropSession.Load(),
		IndexedTicks:     s.indexedTick.Load(),
		LastIndexedTick:  s.lastTick.Load(),
		TxFailTotal:      s.txFail.Load(),
	}
}

// UpsertConfigs stores the tuning and scenario actually applied, as canonical
// JSON with a sha256 digest.
func (s *SQLiteIndex) UpsertConfigs(tune tuning.Tuning, sc scenario.Scenario) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name string
		json []byte
	}
	var rows []kv
	if b, err := json.Marshal(tune); err == nil {
		rows = append(rows, kv{name: "tuning", json: b})
	}
	if b, err := json.Marshal(sc); err == nil {
		rows = append(rows, kv{name: "scenario", json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('world_id',?)`, sc.ID); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO configs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		sum := sha256.Sum256(r.json)
		if _, err := stmt.Exec(r.name, hex.EncodeToString(sum[:]), string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	// Prepared statements (on db; executed within tx).
	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(tick,digest,attaches,detaches,steers,plans,attacks,raw_json) VALUES(?,?,?,?,?,?,?,?)`)
	insertPlan, _ := s.db.Prepare(`INSERT OR REPLACE INTO plans(tick,seq,pursuer_id,outcome,expanded,raw_len,waypoints,from_x,from_y,to_x,to_y) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	insertAttack, _ := s.db.Prepare(`INSERT OR REPLACE INTO attacks(tick,seq,pursuer_id,damage,target_health) VALUES(?,?,?,?,?)`)
	insertSession, _ := s.db.Prepare(`INSERT INTO sessions(ts,tick,session_id,event,remote,client,code) VALUES(?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,path,pursuers,controllers,target_health,target_alive) VALUES(?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertPlan, insertAttack, insertSession, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.txFail.Add(1)
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.txFail.Add(1)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.txFail.Add(1)
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil {
			return true
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			t := r.tick
			b, _ := json.Marshal(t)
			tick := int64(t.Tick)
			if !exec(insertTick, tick, t.Digest, len(t.Attaches), len(t.Detaches), len(t.Steers), len(t.Plans), len(t.Attacks), string(b)) {
				continue
			}
			ok := true
			for i, p := range t.Plans {
				if ok = exec(insertPlan, tick, i, p.PursuerID, string(p.Outcome), p.Expanded, p.RawLen, p.Waypoints, p.From.X, p.From.Y, p.To.X, p.To.Y); !ok {
					break
				}
			}
			for i, a := range t.Attacks {
				if !ok {
					break
				}
				ok = exec(insertAttack, tick, i, a.PursuerID, a.Damage, a.TargetHealth)
			}
			if ok {
				s.indexedTick.Add(1)
				s.lastTick.Store(t.Tick)
			}

		case reqSession:
			e := r.session
			exec(insertSession, e.TS, int64(e.Tick), e.SessionID, e.Event, e.Remote, e.Client, e.Code)

		case reqSnapshot:
			sn := r.snapshot
			alive := 0
			if sn.TargetAlive {
				alive = 1
			}
			exec(insertSnapshot, int64(sn.Tick), sn.Path, sn.Pursuers, sn.Controllers, sn.TargetHealth, alive)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
