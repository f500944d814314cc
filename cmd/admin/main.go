package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	pslog "shadowchase.ai/internal/persistence/log"
	"shadowchase.ai/internal/persistence/snapshot"
	"shadowchase.ai/internal/sim/world"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "ticks":
			ticksCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (optional; lists runs when set)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	if *worldID != "" {
		base = filepath.Join(base, *worldID, "runs")
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

// latestRun returns the newest run dir of a world. Run names sort by start time.
func latestRun(dataDir, worldID string) (string, error) {
	base := filepath.Join(dataDir, "worlds", worldID, "runs")
	ents, err := os.ReadDir(base)
	if err != nil {
		return "", err
	}
	var names []string
	for _, e := range ents {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no runs in %s", base)
	}
	sort.Strings(names)
	return filepath.Join(base, names[len(names)-1]), nil
}

func resolveRun(dataDir, worldID, runDir string) string {
	if p := strings.TrimSpace(runDir); p != "" {
		return p
	}
	if strings.TrimSpace(worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world or -run")
		os.Exit(2)
	}
	p, err := latestRun(dataDir, worldID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "latest run:", err)
		os.Exit(1)
	}
	return p
}

func ticksCmd(args []string) {
	fs := flag.NewFlagSet("ticks", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (uses the latest run)")
	runDir := fs.String("run", "", "run dir (optional)")
	from := fs.Uint64("from", 0, "first tick (inclusive)")
	to := fs.Uint64("to", 0, "last tick (inclusive, optional)")
	eventsOnly := fs.Bool("events", false, "only ticks with inputs, plans or attacks")
	_ = fs.Parse(args)

	dir := resolveRun(*dataDir, *worldID, *runDir)
	err := pslog.ReadTicks(dir, func(e world.TickLogEntry) error {
		if *to != 0 && e.Tick > *to {
			return pslog.ErrStop
		}
		if e.Tick < *from {
			return nil
		}
		if *eventsOnly && !hasEvents(e) {
			return nil
		}
		printJSON(e)
		return nil
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "read ticks:", err)
		os.Exit(1)
	}
}

func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (uses the latest run)")
	runDir := fs.String("run", "", "run dir (optional)")
	path := fs.String("path", "", "snapshot file (default: latest in the run)")
	full := fs.Bool("full", false, "print the whole snapshot")
	_ = fs.Parse(args)

	p := strings.TrimSpace(*path)
	if p == "" {
		var err error
		p, err = snapshot.Latest(filepath.Join(resolveRun(*dataDir, *worldID, *runDir), "snapshots"))
		if err != nil || p == "" {
			fmt.Fprintln(os.Stderr, "no snapshot found", err)
			os.Exit(1)
		}
	}
	snap, err := snapshot.ReadSnapshot(p)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	if *full {
		printJSON(snap)
		return
	}
	fmt.Printf("snapshot v%d world=%s tick=%d pursuers=%d controllers=%d target_health=%.1f alive=%v replans=%d attacks=%d\n",
		snap.Header.Version, snap.Header.WorldID, snap.Header.Tick, len(snap.Pursuers), len(snap.Controllers),
		snap.Target.Health, snap.Target.Alive, snap.ReplansTotal, snap.AttacksTotal)
}

func hasEvents(e world.TickLogEntry) bool {
	return len(e.Attaches)+len(e.Detaches)+len(e.Steers)+len(e.Plans)+len(e.Attacks) > 0
}
