package nav

import "shadowchase.ai/internal/sim/geom"

// Simplify removes intermediate waypoints wherever canJump spans them. From
// each anchor it looks for the farthest jumpable waypoint, drops everything
// strictly between and moves the anchor there. The first and last waypoints
// are always kept and nothing is ever inserted. The input is not modified.
func Simplify(path []geom.Vec2, canJump func(a, b geom.Vec2) bool) []geom.Vec2 {
	out := append([]geom.Vec2(nil), path...)
	if len(out) <= 2 {
		return out
	}
	for anchor := 0; anchor < len(out)-1; anchor++ {
		for j := len(out) - 1; j > anchor+1; j-- {
			if canJump(out[anchor], out[j]) {
				out = append(out[:anchor+1], out[j:]...)
				break
			}
		}
	}
	return out
}
