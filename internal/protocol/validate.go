package protocol

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var inboundSchemas = map[string]string{
	TypeHello: "hello.schema.json",
	TypeSteer: "steer.schema.json",
}

var (
	schemaMu    sync.Mutex
	schemaCache = map[string]*jsonschema.Schema{}
)

func inboundSchema(msgType string) (*jsonschema.Schema, error) {
	name, ok := inboundSchemas[msgType]
	if !ok {
		return nil, fmt.Errorf("unknown message type %q", msgType)
	}
	schemaMu.Lock()
	defer schemaMu.Unlock()
	if s := schemaCache[name]; s != nil {
		return s, nil
	}
	raw, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		return nil, err
	}
	s, err := jsonschema.CompileString(name, string(raw))
	if err != nil {
		return nil, err
	}
	schemaCache[name] = s
	return s, nil
}

// ValidateInbound checks a client message against its schema.
func ValidateInbound(msgType string, raw []byte) error {
	s, err := inboundSchema(msgType)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return s.Validate(v)
}
