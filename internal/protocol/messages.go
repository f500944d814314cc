package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	ClientName      string            `json:"client_name"`
	Capabilities    HelloCapabilities `json:"capabilities"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id"`
	Tick            uint64      `json:"tick"`
	WorldParams     WorldParams `json:"world_params"`
}

type WorldParams struct {
	WorldID    string     `json:"world_id"`
	TickRateHz int        `json:"tick_rate_hz"`
	StepSize   float64    `json:"step_size"`
	Bounds     [4]float64 `json:"bounds"` // min_x, min_y, max_x, max_y
}

// STEER (client -> server). Dir is the desired heading of the target; it is
// clamped to unit length. A zero vector stops the target.
type SteerMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Dir             [2]float64 `json:"dir"`
}

// STATE (server -> client), sent every tick to steering clients.
type StateMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	Tick            uint64         `json:"tick"`
	Target          TargetState    `json:"target"`
	Pursuers        []PursuerBrief `json:"pursuers"`
}

type TargetState struct {
	Pos       [2]float64 `json:"pos"`
	FacingDeg float64    `json:"facing_deg"`
	Health    float64    `json:"health"`
	MaxHealth float64    `json:"max_health"`
	Alive     bool       `json:"alive"`
	Steered   bool       `json:"steered"`
}

type PursuerBrief struct {
	ID     string     `json:"id"`
	Pos    [2]float64 `json:"pos"`
	Action string     `json:"action"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}

func NewError(code, msg string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: code, Message: msg}
}
