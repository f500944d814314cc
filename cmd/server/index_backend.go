package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"shadowchase.ai/internal/persistence/indexdb"
	pslog "shadowchase.ai/internal/persistence/log"
	"shadowchase.ai/internal/persistence/snapshot"
	"shadowchase.ai/internal/sim/scenario"
	"shadowchase.ai/internal/sim/tuning"
	"shadowchase.ai/internal/sim/world"
)

type runtimeIndex interface {
	world.TickLogger
	WriteSession(e pslog.SessionEvent) error
	Close() error
	UpsertConfigs(tune tuning.Tuning, sc scenario.Scenario) error
	Stats() indexdb.Stats
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
}

func openRuntimeIndex(runDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("SC_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(runDir, "index", "world.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported SC_INDEX_BACKEND: %s", backend)
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

type multiTickLogger struct {
	a world.TickLogger
	b world.TickLogger
}

func (m multiTickLogger) WriteTick(entry world.TickLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}
