package terrain

import (
	"testing"

	"shadowchase.ai/internal/sim/geom"
)

func TestMap_IsObstacle(t *testing.T) {
	m, err := New(
		geom.Rect{Min: geom.V(-10, -10), Max: geom.V(10, 10)},
		[]geom.Rect{{Min: geom.V(2, -1), Max: geom.V(3, 1)}},
		[]Circle{{Center: geom.V(-5, 5), Radius: 1}},
		0.2,
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	cases := []struct {
		p    geom.Vec2
		want bool
	}{
		{geom.V(0, 0), false},
		{geom.V(2.5, 0), true},   // inside rect
		{geom.V(1.85, 0), true},  // probe disc touches rect
		{geom.V(1.7, 0), false},  // clear of probe
		{geom.V(-5, 6.1), true},  // within circle + probe
		{geom.V(-5, 6.3), false}, // just clear
		{geom.V(11, 0), true},    // outside bounds
	}
	for _, c := range cases {
		if got := m.IsObstacle(c.p); got != c.want {
			t.Fatalf("%v: got %v want %v", c.p, got, c.want)
		}
	}
}

func TestNew_RejectsBadGeometry(t *testing.T) {
	if _, err := New(geom.Rect{}, nil, nil, 0); err == nil {
		t.Fatalf("expected empty bounds to be rejected")
	}
	b := geom.Rect{Min: geom.V(0, 0), Max: geom.V(1, 1)}
	if _, err := New(b, nil, []Circle{{Radius: 0}}, 0); err == nil {
		t.Fatalf("expected zero-radius circle to be rejected")
	}
	if _, err := New(b, []geom.Rect{{Min: geom.V(1, 1), Max: geom.V(0, 0)}}, nil, 0); err == nil {
		t.Fatalf("expected inverted rect to be rejected")
	}
}
