package protocol

// HELLO (feed -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SourceName      string `json:"source_name"`
	MaxQueue        int    `json:"max_queue,omitempty"`
}

// WELCOME (server -> feed)
type WelcomeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	SessionID       string   `json:"session_id"`
	OfficeID        string   `json:"office_id"`
	TickRateHz      int      `json:"tick_rate_hz"`
	LayoutDigest    string   `json:"layout_digest"`
	KnownAgents     []string `json:"known_agents,omitempty"`
}

// STATUS (feed -> server): the full current agent list. Agents missing from
// the list leave the scene; list order is the per-frame update order.
type StatusMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	Seq             uint64        `json:"seq"`
	Agents          []AgentStatus `json:"agents"`
}

type AgentStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"`

	// Desk is the static desk position [x, z]. When absent the office layout
	// decides.
	Desk *[2]float64 `json:"desk,omitempty"`
}

// ACK (server -> feed)
type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          uint64 `json:"ack_for"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	ServerTick      uint64 `json:"server_tick,omitempty"`
}
