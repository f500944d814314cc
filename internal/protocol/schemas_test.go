package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"shadowchase.ai/internal/protocol"
)

func TestSchemas_ValidateMessages(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, msg any) {
		t.Helper()
		b, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate %s: %v", b, err)
		}
	}

	validate(compile("hello.schema.json"), protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      "bot1",
		Capabilities:    protocol.HelloCapabilities{MaxQueue: 8},
	})
	validate(compile("welcome.schema.json"), protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       "C1",
		Tick:            42,
		WorldParams: protocol.WorldParams{
			WorldID:    "warehouse",
			TickRateHz: 10,
			StepSize:   0.5,
			Bounds:     [4]float64{-20, -12, 20, 12},
		},
	})
	validate(compile("steer.schema.json"), protocol.SteerMsg{
		Type:            protocol.TypeSteer,
		ProtocolVersion: protocol.Version,
		Dir:             [2]float64{1, 0},
	})
	validate(compile("state.schema.json"), protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		Tick:            7,
		Target:          protocol.TargetState{Pos: [2]float64{1, 2}, Health: 90, MaxHealth: 100, Alive: true},
		Pursuers:        []protocol.PursuerBrief{{ID: "P1", Pos: [2]float64{3, 4}, Action: "MOVE"}},
	})
	validate(compile("error.schema.json"), protocol.NewError(protocol.ErrBadRequest, "dir must be finite"))
}

func TestSchemas_RejectBadSteer(t *testing.T) {
	s, err := jsonschema.Compile(filepath.Join("schemas", "steer.schema.json"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	var v any
	_ = json.Unmarshal([]byte(`{"type":"STEER","protocol_version":"1.0","dir":[1]}`), &v)
	if err := s.Validate(v); err == nil {
		t.Fatalf("expected short dir to be rejected")
	}
}

func TestValidateInbound(t *testing.T) {
	if err := protocol.ValidateInbound(protocol.TypeSteer, []byte(`{"type":"STEER","protocol_version":"1.0","dir":[0.5,-1]}`)); err != nil {
		t.Fatalf("valid steer rejected: %v", err)
	}
	if err := protocol.ValidateInbound(protocol.TypeSteer, []byte(`{"type":"STEER","protocol_version":"1.0","dir":["x",1]}`)); err == nil {
		t.Fatalf("expected non-numeric dir to be rejected")
	}
	if err := protocol.ValidateInbound(protocol.TypeHello, []byte(`{"type":"HELLO"}`)); err == nil {
		t.Fatalf("expected hello without protocol_version to be rejected")
	}
	if err := protocol.ValidateInbound("ACT", []byte(`{}`)); err == nil {
		t.Fatalf("expected unknown type to be rejected")
	}
}
