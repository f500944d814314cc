package main

import (
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"shadowchase.ai/internal/persistence/snapshot"
)

const resumeSnapshotName = "resume.snap.zst"

// resolveResume maps the -resume flag to a snapshot path. "latest" picks the
// newest snapshot of the most recent run that has one.
func resolveResume(dataDir, worldID, resume string) (string, error) {
	resume = strings.TrimSpace(resume)
	if resume != "latest" {
		return resume, nil
	}
	base := filepath.Join(dataDir, "worlds", worldID, "runs")
	ents, err := os.ReadDir(base)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var runs []string
	for _, e := range ents {
		if e.IsDir() {
			runs = append(runs, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(runs)))
	for _, r := range runs {
		p, err := snapshot.Latest(filepath.Join(base, r, "snapshots"))
		if err != nil {
			return "", err
		}
		if p != "" {
			return p, nil
		}
	}
	return "", nil
}

// startSnapshotWriter persists snapshots sent by the world until ch is closed.
func startSnapshotWriter(runDir string, idx runtimeIndex, logger *log.Logger) (chan snapshot.SnapshotV1, <-chan struct{}) {
	ch := make(chan snapshot.SnapshotV1, 2)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for snap := range ch {
			path := filepath.Join(runDir, "snapshots", snapshot.FileName(snap.Header.Tick))
			if err := snapshot.WriteSnapshot(path, snap); err != nil {
				logger.Printf("snapshot write: %v", err)
				continue
			}
			if idx != nil {
				idx.RecordSnapshot(path, snap)
			}
		}
	}()
	return ch, done
}
