package nav

import "shadowchase.ai/internal/sim/geom"

// ObstacleOracle answers whether a small disc around p overlaps static geometry.
// Implementations must be safe for repeated reads during a planning pass.
type ObstacleOracle interface {
	IsObstacle(p geom.Vec2) bool
}

// IlluminationOracle answers whether p is lit.
type IlluminationOracle interface {
	IsIlluminated(p geom.Vec2) bool
}

type ObstacleFunc func(p geom.Vec2) bool

func (f ObstacleFunc) IsObstacle(p geom.Vec2) bool { return f(p) }

type IlluminationFunc func(p geom.Vec2) bool

func (f IlluminationFunc) IsIlluminated(p geom.Vec2) bool { return f(p) }

var (
	// NoObstacles is an empty plane.
	NoObstacles ObstacleFunc = func(geom.Vec2) bool { return false }
	// Dark is a plane with no light at all.
	Dark IlluminationFunc = func(geom.Vec2) bool { return false }
)
