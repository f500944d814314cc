package geom

import "math"

// Vec2 is a point or direction on the continuous plane.
type Vec2 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

func V(x, y float64) Vec2 { return Vec2{X: x, Y: y} }

func (v Vec2) Add(o Vec2) Vec2       { return Vec2{X: v.X + o.X, Y: v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2       { return Vec2{X: v.X - o.X, Y: v.Y - o.Y} }
func (v Vec2) Scale(f float64) Vec2  { return Vec2{X: v.X * f, Y: v.Y * f} }
func (v Vec2) Dot(o Vec2) float64    { return v.X*o.X + v.Y*o.Y }
func (v Vec2) Len() float64          { return math.Hypot(v.X, v.Y) }
func (v Vec2) LenSq() float64        { return v.X*v.X + v.Y*v.Y }
func (v Vec2) Dist(o Vec2) float64   { return v.Sub(o).Len() }
func (v Vec2) DistSq(o Vec2) float64 { return v.Sub(o).LenSq() }

// Normalize returns the unit vector, or the zero vector for zero input.
func (v Vec2) Normalize() Vec2 {
	l := v.Len()
	if l == 0 {
		return Vec2{}
	}
	return Vec2{X: v.X / l, Y: v.Y / l}
}

// MoveToward steps from v toward target by at most maxStep without overshooting.
func (v Vec2) MoveToward(target Vec2, maxStep float64) Vec2 {
	d := target.Sub(v)
	l := d.Len()
	if l <= maxStep || l == 0 {
		return target
	}
	return v.Add(d.Scale(maxStep / l))
}

// AngleDeg returns the unsigned angle between a and b in degrees (0..180).
// Zero-length inputs yield 0.
func AngleDeg(a, b Vec2) float64 {
	den := math.Sqrt(a.LenSq() * b.LenSq())
	if den < 1e-15 {
		return 0
	}
	c := a.Dot(b) / den
	if c > 1 {
		c = 1
	} else if c < -1 {
		c = -1
	}
	return math.Acos(c) * 180 / math.Pi
}

// Heading returns the unit vector for a facing angle in degrees, where 0 points
// along +Y and positive angles rotate counter-clockwise.
func Heading(deg float64) Vec2 {
	r := deg * math.Pi / 180
	return Vec2{X: -math.Sin(r), Y: math.Cos(r)}
}

// HeadingDeg is the inverse of Heading. Zero vectors map to 0.
func HeadingDeg(dir Vec2) float64 {
	if dir.X == 0 && dir.Y == 0 {
		return 0
	}
	return math.Atan2(-dir.X, dir.Y) * 180 / math.Pi
}

// Rect is an axis-aligned box. Min must be component-wise <= Max.
type Rect struct {
	Min Vec2 `json:"min" yaml:"min"`
	Max Vec2 `json:"max" yaml:"max"`
}

func (r Rect) Contains(p Vec2) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X && p.Y >= r.Min.Y && p.Y <= r.Max.Y
}

// ClosestPoint clamps p into r.
func (r Rect) ClosestPoint(p Vec2) Vec2 {
	return Vec2{X: clamp(p.X, r.Min.X, r.Max.X), Y: clamp(p.Y, r.Min.Y, r.Max.Y)}
}

// IntersectsDisc reports whether the closed disc (c, radius) touches r.
func (r Rect) IntersectsDisc(c Vec2, radius float64) bool {
	return r.ClosestPoint(c).DistSq(c) <= radius*radius
}

// Expand grows r by d on every side.
func (r Rect) Expand(d float64) Rect {
	return Rect{Min: Vec2{X: r.Min.X - d, Y: r.Min.Y - d}, Max: Vec2{X: r.Max.X + d, Y: r.Max.Y + d}}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
