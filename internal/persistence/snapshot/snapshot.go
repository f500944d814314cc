package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

// SnapshotV1 holds the mutable world state after Header.Tick was executed.
// Static inputs (terrain, lights, pursuer stats) come from the scenario.
type SnapshotV1 struct {
	Header Header `json:"header"`

	TickRate int `json:"tick_rate_hz"`

	Target      TargetV1    `json:"target"`
	Pursuers    []PursuerV1 `json:"pursuers"`
	Controllers []string    `json:"controllers,omitempty"`

	ReplansTotal uint64            `json:"replans_total"`
	AttacksTotal uint64            `json:"attacks_total"`
	PlanOutcomes map[string]uint64 `json:"plan_outcomes,omitempty"`
}

type TargetV1 struct {
	Pos      [2]float64 `json:"pos"`
	Facing   [2]float64 `json:"facing"`
	Health   float64    `json:"health"`
	Alive    bool       `json:"alive"`
	RouteIdx int        `json:"route_idx"`
	SteerDir [2]float64 `json:"steer_dir"`
	Steered  bool       `json:"steered"`
}

type PursuerV1 struct {
	ID         string       `json:"id"`
	Pos        [2]float64   `json:"pos"`
	Waypoints  [][2]float64 `json:"waypoints,omitempty"`
	Cursor     int          `json:"cursor"`
	LastTarget [2]float64   `json:"last_target"`
	HasPlan    bool         `json:"has_plan"`
	Cooldown   float64      `json:"cooldown"`
	LastAction string       `json:"last_action"`
}

// FileName is the on-disk name for a snapshot taken at tick.
func FileName(tick uint64) string { return fmt.Sprintf("%d.snap.zst", tick) }

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if err := encode(f, snap); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func encode(f *os.File, snap SnapshotV1) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	// The JSON header line lets tools identify a snapshot without gob.
	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != 1 {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// Latest returns the highest-tick snapshot in dir, or "" if there is none.
func Latest(dir string) (string, error) {
	ents, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	type cand struct {
		tick uint64
		name string
	}
	var cs []cand
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		t, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		cs = append(cs, cand{tick: t, name: name})
	}
	if len(cs) == 0 {
		return "", nil
	}
	sort.Slice(cs, func(i, j int) bool { return cs[i].tick < cs[j].tick })
	return filepath.Join(dir, cs[len(cs)-1].name), nil
}
