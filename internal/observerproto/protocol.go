package observerproto

// Version is the observer protocol version (separate from the status feed protocol).
const Version = "0.1"

// Client -> Server. First message on the observer WS connection, and can be re-sent to update settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Optional: only stream these agents. Empty means all.
	AgentIDs []string `json:"agent_ids,omitempty"`
	// Optional: include nav events (SPAWN, STUCK_RECOVERY, ...) in frames.
	Events bool `json:"events,omitempty"`
	// Optional: send every Nth frame. Zero or one means every frame.
	EveryTicks int `json:"every_ticks,omitempty"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	OfficeID        string      `json:"office_id"`
	Tick            uint64      `json:"tick"`
	TickRateHz      int         `json:"tick_rate_hz"`
	LayoutDigest    string      `json:"layout_digest"`
	Bounds          Bounds      `json:"bounds"`
	Obstacles       []Obstacle  `json:"obstacles"`
	Graph           GraphView   `json:"graph"`
	Agents          []AgentView `json:"agents"`
}

type Bounds struct {
	MinX float64 `json:"min_x"`
	MaxX float64 `json:"max_x"`
	MinZ float64 `json:"min_z"`
	MaxZ float64 `json:"max_z"`
}

type Obstacle struct {
	ID     string     `json:"id"`
	Pos    [2]float64 `json:"pos"`
	Radius float64    `json:"radius"`
	Owner  string     `json:"owner,omitempty"`
}

type GraphView struct {
	Nodes    [][2]float64 `json:"nodes"`
	Edges    [][2]int     `json:"edges"`
	Fallback bool         `json:"fallback,omitempty"`
}

// Server -> Client. Sent every tick.
type FrameMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`

	Agents []AgentView `json:"agents"`
	Events []NavEvent  `json:"events,omitempty"`
}

type AgentView struct {
	ID string `json:"id"`
	// Pos is [x, y, z]; y is the floor height and always zero.
	Pos    [3]float64 `json:"pos"`
	Facing float64    `json:"facing"`
	Moving bool       `json:"moving"`
	Status string     `json:"status"`
	Mode   string     `json:"mode"`

	Route      [][2]float64 `json:"route,omitempty"`
	StuckTicks int          `json:"stuck_ticks,omitempty"`
}

type NavEvent struct {
	Tick    uint64 `json:"tick"`
	AgentID string `json:"agent_id"`
	Kind    string `json:"kind"`
	Detail  string `json:"detail,omitempty"`
}
