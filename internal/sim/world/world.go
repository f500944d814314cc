package world

import (
	"fmt"
	"log"
	"sync/atomic"

	"shadowchase.ai/internal/persistence/snapshot"
	"shadowchase.ai/internal/sim/geom"
	"shadowchase.ai/internal/sim/lighting"
	"shadowchase.ai/internal/sim/nav"
	"shadowchase.ai/internal/sim/pursuit"
	"shadowchase.ai/internal/sim/scenario"
	"shadowchase.ai/internal/sim/terrain"
	"shadowchase.ai/internal/sim/tuning"
)

type WorldConfig struct {
	ID         string
	TickRateHz int

	Planner            nav.Config
	WaypointTolerance  float64
	IncludeOuterRadius bool
	ProbeRadius        float64

	SnapshotEveryTicks int
}

// ConfigFromTuning maps the tuning file onto a world config.
func ConfigFromTuning(id string, t tuning.Tuning) WorldConfig {
	return WorldConfig{
		ID:         id,
		TickRateHz: t.TickRateHz,
		Planner: nav.Config{
			Step:          t.Planner.StepSize,
			MaxIterations: t.Planner.MaxIterations,
		},
		WaypointTolerance:  t.Planner.WaypointTolerance,
		IncludeOuterRadius: t.Lighting.IncludeOuterRadius,
		ProbeRadius:        t.Terrain.ProbeRadius,
		SnapshotEveryTicks: t.SnapshotEveryTicks,
	}
}

// World is a single-threaded authoritative simulation.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg WorldConfig
	log *log.Logger

	tick atomic.Uint64

	terrain  *terrain.Map
	lights   []lighting.Light
	target   *Target
	pursuers []*pursuit.Pursuer

	// Latest snapshot, rebuilt at the start of every tick.
	snap *lighting.Snapshot

	controllers map[string]*controller
	observers   map[string]*observerClient

	steer         chan SteerRequest
	attach        chan AttachRequest
	detach        chan string
	observerJoin  chan ObserverJoinRequest
	observerLeave chan string
	stop          chan struct{}

	// Optional sink (may be nil). Implemented in internal/persistence/*.
	tickLogger   TickLogger
	snapshotSink chan<- snapshot.SnapshotV1

	replansTotal uint64
	attacksTotal uint64
	planOutcomes map[nav.Outcome]uint64
	metrics      atomic.Value // WorldMetrics
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

// TickLogEntry is one line of the tick log. Inputs are enough to replay the
// tick; the rest is recorded for indexing.
type TickLogEntry struct {
	Tick     uint64        `json:"tick"`
	Attaches []string      `json:"attaches,omitempty"`
	Detaches []string      `json:"detaches,omitempty"`
	Steers   []SteerInput  `json:"steers,omitempty"`
	Plans    []PlanEvent   `json:"plans,omitempty"`
	Attacks  []AttackEvent `json:"attacks,omitempty"`
	Digest   string        `json:"digest"`
}

type SteerInput struct {
	SessionID string    `json:"session_id"`
	Dir       geom.Vec2 `json:"dir"`
}

type PlanEvent struct {
	PursuerID string      `json:"pursuer_id"`
	From      geom.Vec2   `json:"from"`
	To        geom.Vec2   `json:"to"`
	Outcome   nav.Outcome `json:"outcome"`
	Expanded  int         `json:"expanded"`
	RawLen    int         `json:"raw_len"`
	Waypoints int         `json:"waypoints"`
}

type AttackEvent struct {
	PursuerID    string  `json:"pursuer_id"`
	Damage       float64 `json:"damage"`
	TargetHealth float64 `json:"target_health"`
}

// Inputs are the external events applied at a tick boundary.
type Inputs struct {
	Attaches []string
	Detaches []string
	Steers   []SteerInput
}

func New(cfg WorldConfig, sc scenario.Scenario, logger *log.Logger) (*World, error) {
	if cfg.TickRateHz <= 0 {
		return nil, fmt.Errorf("tick rate must be > 0")
	}
	tm, err := sc.Terrain(cfg.ProbeRadius)
	if err != nil {
		return nil, err
	}
	w := &World{
		cfg:           cfg,
		log:           logger,
		terrain:       tm,
		lights:        sc.StaticLights(),
		target:        newTarget(sc.Target),
		controllers:   map[string]*controller{},
		observers:     map[string]*observerClient{},
		steer:         make(chan SteerRequest, 1024),
		attach:        make(chan AttachRequest, 64),
		detach:        make(chan string, 64),
		observerJoin:  make(chan ObserverJoinRequest, 64),
		observerLeave: make(chan string, 64),
		stop:          make(chan struct{}),
		planOutcomes:  map[nav.Outcome]uint64{},
	}
	for _, ps := range sc.Pursuers {
		w.pursuers = append(w.pursuers, pursuit.New(ps.ID, ps.Start, ps.Stats))
	}
	w.snap = lighting.NewSnapshot(w.activeLights(), 0, cfg.IncludeOuterRadius)
	w.metrics.Store(WorldMetrics{PlanOutcomes: map[string]uint64{}})
	return w, nil
}

func (w *World) SetTickLogger(l TickLogger) { w.tickLogger = l }

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) Config() WorldConfig {
	if w == nil {
		return WorldConfig{}
	}
	return w.cfg
}

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) Steer() chan<- SteerRequest               { return w.steer }
func (w *World) Attach() chan<- AttachRequest             { return w.attach }
func (w *World) Detach() chan<- string                    { return w.detach }
func (w *World) ObserverJoin() chan<- ObserverJoinRequest { return w.observerJoin }
func (w *World) ObserverLeave() chan<- string             { return w.observerLeave }

// Terrain and StaticLights are immutable after New and may be read from any
// goroutine.
func (w *World) Terrain() *terrain.Map { return w.terrain }

func (w *World) StaticLights() []lighting.Light {
	return append([]lighting.Light(nil), w.lights...)
}

func (w *World) logf(format string, args ...any) {
	if w.log != nil {
		w.log.Printf(format, args...)
	}
}
