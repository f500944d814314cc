package main

import (
	"math"
	"testing"

	"shadowchase.ai/internal/protocol"
)

func TestFleeDir_AwayFromNearest(t *testing.T) {
	st := protocol.StateMsg{
		Target: protocol.TargetState{Pos: [2]float64{0, 0}, Alive: true},
		Pursuers: []protocol.PursuerBrief{
			{ID: "P1", Pos: [2]float64{3, 0}},
			{ID: "P2", Pos: [2]float64{0, -10}},
		},
	}
	d := fleeDir(st, [4]float64{-20, -20, 20, 20})
	if math.Abs(d[0]+1) > 1e-9 || math.Abs(d[1]) > 1e-9 {
		t.Fatalf("dir=%v want (-1,0)", d)
	}
}

func TestFleeDir_BendsAtEdge(t *testing.T) {
	st := protocol.StateMsg{
		Target:   protocol.TargetState{Pos: [2]float64{-19, 0}, Alive: true},
		Pursuers: []protocol.PursuerBrief{{ID: "P1", Pos: [2]float64{-15, 0}}},
	}
	d := fleeDir(st, [4]float64{-20, -20, 20, 20})
	if d[0] <= 0 {
		t.Fatalf("expected to turn back toward center, got %v", d)
	}
	if math.Abs(math.Hypot(d[0], d[1])-1) > 1e-9 {
		t.Fatalf("not unit: %v", d)
	}
}

func TestSteerFor_Idle(t *testing.T) {
	if _, ok := steerFor("idle", protocol.StateMsg{}, [4]float64{}); ok {
		t.Fatalf("idle should not steer")
	}
}
