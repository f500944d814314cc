package observerproto

// Version is the observer protocol version (separate from the steering WS protocol).
const Version = "0.1"

// Client -> Server. First message on the observer WS connection, and can be re-sent to update settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Waypoint lists can be large; observers that only draw positions skip them.
	IncludeWaypoints bool `json:"include_waypoints"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string       `json:"protocol_version"`
	WorldID         string       `json:"world_id"`
	Tick            uint64       `json:"tick"`
	WorldParams     WorldParams  `json:"world_params"`
	Obstacles       Obstacles    `json:"obstacles"`
	Lights          []LightState `json:"lights"`
}

type WorldParams struct {
	TickRateHz    int        `json:"tick_rate_hz"`
	StepSize      float64    `json:"step_size"`
	MaxIterations int        `json:"max_iterations"`
	Bounds        [4]float64 `json:"bounds"` // min_x, min_y, max_x, max_y
	ProbeRadius   float64    `json:"probe_radius"`
}

type Obstacles struct {
	Rects   [][4]float64 `json:"rects"`   // min_x, min_y, max_x, max_y
	Circles [][3]float64 `json:"circles"` // x, y, r
}

// Server -> Client. Sent every tick.
type TickMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`

	Target   TargetState    `json:"target"`
	Lights   []LightState   `json:"lights"`
	Pursuers []PursuerState `json:"pursuers"`

	Plans   []PlanInfo   `json:"plans,omitempty"`
	Attacks []AttackInfo `json:"attacks,omitempty"`
}

type TargetState struct {
	Pos       [2]float64 `json:"pos"`
	FacingDeg float64    `json:"facing_deg"`
	Health    float64    `json:"health"`
	MaxHealth float64    `json:"max_health"`
	Alive     bool       `json:"alive"`
	Steered   bool       `json:"steered"`
}

type LightState struct {
	ID              string     `json:"id"`
	Kind            string     `json:"kind"`
	Pos             [2]float64 `json:"pos"`
	FacingDeg       float64    `json:"facing_deg"`
	Radius          float64    `json:"radius"`
	Angle           float64    `json:"angle"`
	Active          bool       `json:"active"`
	PathfindVisible bool       `json:"pathfind_visible"`
}

type PursuerState struct {
	ID        string     `json:"id"`
	Pos       [2]float64 `json:"pos"`
	Action    string     `json:"action"`
	Frozen    bool       `json:"frozen"`
	Following bool       `json:"following"`
	Cursor    int        `json:"cursor"`
	Cooldown  float64    `json:"cooldown"`

	Waypoints [][2]float64 `json:"waypoints,omitempty"`
}

type PlanInfo struct {
	PursuerID string `json:"pursuer_id"`
	Outcome   string `json:"outcome"`
	Expanded  int    `json:"expanded"`
	RawLen    int    `json:"raw_len"`
	Waypoints int    `json:"waypoints"`
}

type AttackInfo struct {
	PursuerID    string  `json:"pursuer_id"`
	Damage       float64 `json:"damage"`
	TargetHealth float64 `json:"target_health"`
}
