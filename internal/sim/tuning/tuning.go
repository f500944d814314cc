package tuning

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz int `yaml:"tick_rate_hz"`

	Planner  Planner  `yaml:"planner"`
	Lighting Lighting `yaml:"lighting"`
	Terrain  Terrain  `yaml:"terrain"`

	TickLog TickLog `yaml:"tick_log"`

	// SnapshotEveryTicks writes a resumable world snapshot every N ticks; 0 disables.
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`
}

type Planner struct {
	StepSize          float64 `yaml:"step_size"`
	MaxIterations     int     `yaml:"max_iterations"`
	WaypointTolerance float64 `yaml:"waypoint_tolerance"`
}

type Lighting struct {
	IncludeOuterRadius bool `yaml:"include_outer_radius"`
}

type Terrain struct {
	ProbeRadius float64 `yaml:"probe_radius"`
}

type TickLog struct {
	RotateBytes int64 `yaml:"rotate_bytes"`
	// DigestEveryTicks controls how often the world digest is written to the log.
	DigestEveryTicks int `yaml:"digest_every_ticks"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		TickRateHz:      10,
		Planner: Planner{
			StepSize:          0.5,
			MaxIterations:     4096,
			WaypointTolerance: 0.05,
		},
		Lighting:           Lighting{IncludeOuterRadius: true},
		Terrain:            Terrain{ProbeRadius: 0.2},
		TickLog:            TickLog{RotateBytes: 64 << 20, DigestEveryTicks: 1},
		SnapshotEveryTicks: 600,
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 || t.TickRateHz > 1000 {
		return fmt.Errorf("tick_rate_hz must be in (0,1000]")
	}
	if t.Planner.StepSize <= 0 {
		return fmt.Errorf("planner.step_size must be > 0")
	}
	if t.Planner.MaxIterations <= 0 {
		return fmt.Errorf("planner.max_iterations must be > 0")
	}
	if t.Planner.WaypointTolerance < 0 || t.Planner.WaypointTolerance >= t.Planner.StepSize {
		return fmt.Errorf("planner.waypoint_tolerance must be in [0, step_size)")
	}
	if t.Terrain.ProbeRadius < 0 {
		return fmt.Errorf("terrain.probe_radius must be >= 0")
	}
	if t.TickLog.RotateBytes < 0 || t.TickLog.DigestEveryTicks < 0 {
		return fmt.Errorf("tick_log values must be >= 0")
	}
	if t.SnapshotEveryTicks < 0 {
		return fmt.Errorf("snapshot_every_ticks must be >= 0")
	}
	return nil
}

// DT is the simulated seconds per tick.
func (t Tuning) DT() float64 { return 1 / float64(t.TickRateHz) }
