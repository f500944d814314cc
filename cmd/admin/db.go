package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

type queryOpts struct {
	Limit     int
	PursuerID string
	Outcome   string
}

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (uses the latest run)")
	runDir := fs.String("run", "", "run dir (optional)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	pursuer := fs.String("pursuer", "", "pursuer_id filter (plans, attacks)")
	outcome := fs.String("outcome", "", "outcome filter (plans)")
	_ = fs.Parse(args)

	q := "outcomes"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(resolveRun(*dataDir, *worldID, *runDir), "index", "world.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	rows, err := runQuery(db, q, queryOpts{Limit: *limit, PursuerID: *pursuer, Outcome: *outcome})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data] [-world WORLD|-run DIR|-db PATH] outcomes|plans|attacks|ticks|sessions|snapshots|configs")
		os.Exit(2)
	}
	for _, r := range rows {
		printJSON(r)
	}
}

type outcomeRow struct {
	Outcome     string  `json:"outcome"`
	Count       int64   `json:"count"`
	AvgExpanded float64 `json:"avg_expanded"`
	MaxExpanded int64   `json:"max_expanded"`
}

type planRow struct {
	Tick      int64   `json:"tick"`
	PursuerID string  `json:"pursuer_id"`
	Outcome   string  `json:"outcome"`
	Expanded  int64   `json:"expanded"`
	RawLen    int64   `json:"raw_len"`
	Waypoints int64   `json:"waypoints"`
	FromX     float64 `json:"from_x"`
	FromY     float64 `json:"from_y"`
	ToX       float64 `json:"to_x"`
	ToY       float64 `json:"to_y"`
}

type attackRow struct {
	Tick         int64   `json:"tick"`
	PursuerID    string  `json:"pursuer_id"`
	Damage       float64 `json:"damage"`
	TargetHealth float64 `json:"target_health"`
}

type tickRow struct {
	Tick     int64  `json:"tick"`
	Digest   string `json:"digest"`
	Attaches int64  `json:"attaches"`
	Detaches int64  `json:"detaches"`
	Steers   int64  `json:"steers"`
	Plans    int64  `json:"plans"`
	Attacks  int64  `json:"attacks"`
}

type sessionRow struct {
	TS        string `json:"ts"`
	Tick      int64  `json:"tick"`
	SessionID string `json:"session_id"`
	Event     string `json:"event"`
	Remote    string `json:"remote,omitempty"`
	Client    string `json:"client,omitempty"`
	Code      string `json:"code,omitempty"`
}

type snapshotRow struct {
	Tick         int64   `json:"tick"`
	Path         string  `json:"path"`
	Pursuers     int64   `json:"pursuers"`
	Controllers  int64   `json:"controllers"`
	TargetHealth float64 `json:"target_health"`
	TargetAlive  bool    `json:"target_alive"`
}

type configRow struct {
	Name      string          `json:"name"`
	Digest    string          `json:"digest"`
	UpdatedAt string          `json:"updated_at"`
	JSON      json.RawMessage `json:"json"`
}

func runQuery(db *sql.DB, q string, o queryOpts) ([]any, error) {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	var out []any
	collect := func(rows *sql.Rows, scan func() (any, error)) error {
		defer rows.Close()
		for rows.Next() {
			r, err := scan()
			if err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			out = append(out, r)
		}
		return rows.Err()
	}

	switch q {
	case "outcomes":
		rows, err := db.Query(`SELECT outcome,COUNT(*),AVG(expanded),MAX(expanded) FROM plans GROUP BY outcome ORDER BY outcome`)
		if err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
		err = collect(rows, func() (any, error) {
			var r outcomeRow
			err := rows.Scan(&r.Outcome, &r.Count, &r.AvgExpanded, &r.MaxExpanded)
			return r, err
		})
		return out, err

	case "plans":
		rows, err := db.Query(`SELECT tick,pursuer_id,outcome,expanded,raw_len,waypoints,from_x,from_y,to_x,to_y FROM plans
			WHERE (?='' OR pursuer_id=?) AND (?='' OR outcome=?)
			ORDER BY tick DESC, seq DESC LIMIT ?`, o.PursuerID, o.PursuerID, o.Outcome, o.Outcome, o.Limit)
		if err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
		err = collect(rows, func() (any, error) {
			var r planRow
			err := rows.Scan(&r.Tick, &r.PursuerID, &r.Outcome, &r.Expanded, &r.RawLen, &r.Waypoints, &r.FromX, &r.FromY, &r.ToX, &r.ToY)
			return r, err
		})
		return out, err

	case "attacks":
		rows, err := db.Query(`SELECT tick,pursuer_id,damage,target_health FROM attacks
			WHERE (?='' OR pursuer_id=?) ORDER BY tick DESC, seq DESC LIMIT ?`, o.PursuerID, o.PursuerID, o.Limit)
		if err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
		err = collect(rows, func() (any, error) {
			var r attackRow
			err := rows.Scan(&r.Tick, &r.PursuerID, &r.Damage, &r.TargetHealth)
			return r, err
		})
		return out, err

	case "ticks":
		rows, err := db.Query(`SELECT tick,digest,attaches,detaches,steers,plans,attacks FROM ticks ORDER BY tick DESC LIMIT ?`, o.Limit)
		if err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
		err = collect(rows, func() (any, error) {
			var r tickRow
			err := rows.Scan(&r.Tick, &r.Digest, &r.Attaches, &r.Detaches, &r.Steers, &r.Plans, &r.Attacks)
			return r, err
		})
		return out, err

	case "sessions":
		rows, err := db.Query(`SELECT ts,tick,session_id,event,COALESCE(remote,''),COALESCE(client,''),COALESCE(code,'') FROM sessions ORDER BY id DESC LIMIT ?`, o.Limit)
		if err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
		err = collect(rows, func() (any, error) {
			var r sessionRow
			err := rows.Scan(&r.TS, &r.Tick, &r.SessionID, &r.Event, &r.Remote, &r.Client, &r.Code)
			return r, err
		})
		return out, err

	case "snapshots":
		rows, err := db.Query(`SELECT tick,path,pursuers,controllers,target_health,target_alive FROM snapshots ORDER BY tick DESC LIMIT ?`, o.Limit)
		if err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
		err = collect(rows, func() (any, error) {
			var r snapshotRow
			err := rows.Scan(&r.Tick, &r.Path, &r.Pursuers, &r.Controllers, &r.TargetHealth, &r.TargetAlive)
			return r, err
		})
		return out, err

	case "configs":
		rows, err := db.Query(`SELECT name,digest,updated_at,json FROM configs ORDER BY name`)
		if err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
		err = collect(rows, func() (any, error) {
			var r configRow
			var raw string
			err := rows.Scan(&r.Name, &r.Digest, &r.UpdatedAt, &raw)
			r.JSON = json.RawMessage(raw)
			return r, err
		})
		return out, err

	default:
		return nil, fmt.Errorf("unknown query: %s", q)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
