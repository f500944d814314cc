package scenario

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"shadowchase.ai/internal/sim/geom"
	"shadowchase.ai/internal/sim/lighting"
	"shadowchase.ai/internal/sim/pursuit"
	"shadowchase.ai/internal/sim/terrain"
)

//go:embed scenario.schema.json
var schemaJSON string

type Scenario struct {
	ID        string        `yaml:"id" json:"id"`
	Bounds    geom.Rect     `yaml:"bounds" json:"bounds"`
	Obstacles Obstacles     `yaml:"obstacles" json:"obstacles"`
	Lights    []LightSpec   `yaml:"lights" json:"lights"`
	Target    TargetSpec    `yaml:"target" json:"target"`
	Pursuers  []PursuerSpec `yaml:"pursuers" json:"pursuers"`
}

type Obstacles struct {
	Rects   []geom.Rect      `yaml:"rects" json:"rects"`
	Circles []terrain.Circle `yaml:"circles" json:"circles"`
}

// LightSpec is the on-disk light. Omitted enabled/intensity/pathfind_visible
// default to true/1/true.
type LightSpec struct {
	ID              string          `yaml:"id" json:"id"`
	Kind            lighting.Kind   `yaml:"kind" json:"kind"`
	Pos             geom.Vec2       `yaml:"pos" json:"pos"`
	FacingDeg       float64         `yaml:"facing_deg" json:"facing_deg"`
	InnerRadius     float64         `yaml:"inner_radius" json:"inner_radius"`
	OuterRadius     float64         `yaml:"outer_radius" json:"outer_radius"`
	InnerAngle      float64         `yaml:"inner_angle" json:"inner_angle"`
	OuterAngle      float64         `yaml:"outer_angle" json:"outer_angle"`
	Intensity       *float64        `yaml:"intensity" json:"intensity,omitempty"`
	Enabled         *bool           `yaml:"enabled" json:"enabled,omitempty"`
	PathfindVisible *bool           `yaml:"pathfind_visible" json:"pathfind_visible,omitempty"`
	Blink           *lighting.Blink `yaml:"blink" json:"blink,omitempty"`
}

func (s LightSpec) Light() lighting.Light {
	l := lighting.Light{
		ID:              s.ID,
		Kind:            s.Kind,
		Pos:             s.Pos,
		FacingDeg:       s.FacingDeg,
		InnerRadius:     s.InnerRadius,
		OuterRadius:     s.OuterRadius,
		InnerAngle:      s.InnerAngle,
		OuterAngle:      s.OuterAngle,
		Intensity:       1,
		Enabled:         true,
		PathfindVisible: true,
	}
	if s.Intensity != nil {
		l.Intensity = *s.Intensity
	}
	if s.Enabled != nil {
		l.Enabled = *s.Enabled
	}
	if s.PathfindVisible != nil {
		l.PathfindVisible = *s.PathfindVisible
	}
	if s.Blink != nil {
		b := *s.Blink
		l.Blink = &b
	}
	return l
}

// Flashlight is the target's cone. Omitted intensity/enabled default to 1/true
// like LightSpec; pathfind_visible defaults to false.
type Flashlight struct {
	Radius          float64  `yaml:"radius" json:"radius"`
	Angle           float64  `yaml:"angle" json:"angle"`
	Intensity       *float64 `yaml:"intensity" json:"intensity,omitempty"`
	Enabled         *bool    `yaml:"enabled" json:"enabled,omitempty"`
	PathfindVisible bool     `yaml:"pathfind_visible" json:"pathfind_visible"`
}

// Light places the cone at pos facing facingDeg.
func (f Flashlight) Light(id string, pos geom.Vec2, facingDeg float64) lighting.Light {
	l := lighting.Light{
		ID:              id,
		Kind:            lighting.KindPoint,
		Pos:             pos,
		FacingDeg:       facingDeg,
		InnerRadius:     f.Radius,
		OuterRadius:     f.Radius,
		InnerAngle:      f.Angle,
		OuterAngle:      f.Angle,
		Intensity:       1,
		Enabled:         true,
		PathfindVisible: f.PathfindVisible,
	}
	if f.Intensity != nil {
		l.Intensity = *f.Intensity
	}
	if f.Enabled != nil {
		l.Enabled = *f.Enabled
	}
	return l
}

type TargetSpec struct {
	Start      geom.Vec2   `yaml:"start" json:"start"`
	Speed      float64     `yaml:"speed" json:"speed"`
	MaxHealth  float64     `yaml:"max_health" json:"max_health"`
	Route      []geom.Vec2 `yaml:"route" json:"route"`
	Flashlight *Flashlight `yaml:"flashlight" json:"flashlight,omitempty"`
}

type PursuerSpec struct {
	ID    string        `yaml:"id" json:"id"`
	Start geom.Vec2     `yaml:"start" json:"start"`
	Stats pursuit.Stats `yaml:"stats" json:"stats"`
}

var (
	schemaOnce sync.Once
	compiled   *jsonschema.Schema
	compileErr error
)

func schema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiled, compileErr = jsonschema.CompileString("scenario.schema.json", schemaJSON)
	})
	return compiled, compileErr
}

// Load reads a scenario file, checks it against the embedded schema and then
// validates the geometry.
func Load(path string) (Scenario, error) {
	var sc Scenario
	raw, err := os.ReadFile(path)
	if err != nil {
		return sc, err
	}
	return Parse(raw)
}

func Parse(raw []byte) (Scenario, error) {
	var sc Scenario
	if err := CheckSchema(raw); err != nil {
		return sc, fmt.Errorf("scenario.yaml: %w", err)
	}
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return sc, fmt.Errorf("scenario.yaml: %w", err)
	}
	sc.Normalize()
	if err := sc.Validate(); err != nil {
		return sc, fmt.Errorf("scenario.yaml: %w", err)
	}
	return sc, nil
}

// CheckSchema validates raw YAML against the scenario schema. The document is
// round-tripped through JSON so the validator sees plain JSON types.
func CheckSchema(raw []byte) error {
	s, err := schema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("to json: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return s.Validate(v)
}

func (s *Scenario) Normalize() {
	if s == nil {
		return
	}
	s.ID = strings.TrimSpace(s.ID)
	for i := range s.Lights {
		l := &s.Lights[i]
		if l.OuterRadius < l.InnerRadius {
			l.OuterRadius = l.InnerRadius
		}
		if l.OuterAngle < l.InnerAngle {
			l.OuterAngle = l.InnerAngle
		}
	}
	if s.Target.MaxHealth <= 0 {
		s.Target.MaxHealth = 100
	}
}

func (s Scenario) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("id must not be empty")
	}
	if s.Bounds.Max.X <= s.Bounds.Min.X || s.Bounds.Max.Y <= s.Bounds.Min.Y {
		return fmt.Errorf("bounds must have positive area")
	}
	seen := map[string]bool{}
	for _, ls := range s.Lights {
		if seen[ls.ID] {
			return fmt.Errorf("duplicate light id: %s", ls.ID)
		}
		seen[ls.ID] = true
		if err := ls.Light().Validate(); err != nil {
			return err
		}
	}
	if !s.Bounds.Contains(s.Target.Start) {
		return fmt.Errorf("target start %v outside bounds", s.Target.Start)
	}
	for i, p := range s.Target.Route {
		if !s.Bounds.Contains(p) {
			return fmt.Errorf("target route[%d] %v outside bounds", i, p)
		}
	}
	if len(s.Pursuers) == 0 {
		return fmt.Errorf("pursuers must not be empty")
	}
	ids := map[string]bool{}
	for _, p := range s.Pursuers {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("pursuer id must not be empty")
		}
		if ids[p.ID] {
			return fmt.Errorf("duplicate pursuer id: %s", p.ID)
		}
		ids[p.ID] = true
		if !s.Bounds.Contains(p.Start) {
			return fmt.Errorf("pursuer %s start %v outside bounds", p.ID, p.Start)
		}
		if p.Stats.Speed <= 0 {
			return fmt.Errorf("pursuer %s speed must be > 0", p.ID)
		}
	}
	return nil
}

// Terrain builds the obstacle oracle for this scenario.
func (s Scenario) Terrain(probeRadius float64) (*terrain.Map, error) {
	return terrain.New(s.Bounds, s.Obstacles.Rects, s.Obstacles.Circles, probeRadius)
}

// StaticLights returns the scenario lights in file order.
func (s Scenario) StaticLights() []lighting.Light {
	out := make([]lighting.Light, 0, len(s.Lights))
	for _, ls := range s.Lights {
		out = append(out, ls.Light())
	}
	return out
}
