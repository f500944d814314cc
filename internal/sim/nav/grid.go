package nav

import (
	"math"

	"shadowchase.ai/internal/sim/geom"
)

// GridPoint is a lattice coordinate; its world position is (I*step, J*step).
type GridPoint struct {
	I int
	J int
}

// Quantizer snaps continuous positions onto the search lattice.
type Quantizer struct {
	Step float64
}

// Quantize rounds each axis independently to the nearest multiple of Step.
func (q Quantizer) Quantize(p geom.Vec2) GridPoint {
	return GridPoint{
		I: int(math.Round(p.X / q.Step)),
		J: int(math.Round(p.Y / q.Step)),
	}
}

func (q Quantizer) World(g GridPoint) geom.Vec2 {
	return geom.Vec2{X: float64(g.I) * q.Step, Y: float64(g.J) * q.Step}
}

// Snap is Quantize followed by World. Snap(Snap(p)) == Snap(p).
func (q Quantizer) Snap(p geom.Vec2) geom.Vec2 {
	return q.World(q.Quantize(p))
}

// 4 orthogonal then 4 diagonal; fixed order keeps searches deterministic.
var neighborOffsets = [8]GridPoint{
	{I: 1, J: 0}, {I: -1, J: 0}, {I: 0, J: 1}, {I: 0, J: -1},
	{I: 1, J: 1}, {I: 1, J: -1}, {I: -1, J: 1}, {I: -1, J: -1},
}
