package office

import (
	"tenacitos.ai/internal/observerproto"
	"tenacitos.ai/internal/protocol"
)

// Nav event kinds.
const (
	EventSpawn         = "SPAWN"
	EventSpawnFallback = "SPAWN_FALLBACK"
	EventLeave         = "LEAVE"
	EventSeated        = "SEATED"
	EventRoaming       = "ROAMING"
	EventPlanFail      = "PLAN_FAIL"
	EventStuckRecovery = "STUCK_RECOVERY"
)

type FrameLogger interface {
	WriteFrame(entry FrameLogEntry) error
}

type EventLogger interface {
	WriteEvent(entry EventLogEntry) error
}

type FrameLogEntry struct {
	OfficeID string                    `json:"office_id"`
	Tick     uint64                    `json:"tick"`
	Agents   []observerproto.AgentView `json:"agents"`
}

type EventLogEntry struct {
	OfficeID string     `json:"office_id"`
	Tick     uint64     `json:"tick"`
	AgentID  string     `json:"agent_id"`
	Kind     string     `json:"kind"`
	Detail   string     `json:"detail,omitempty"`
	Pos      [2]float64 `json:"pos"`
}

// StatusUpdate carries one full agent list from a feed.
type StatusUpdate struct {
	Source string
	Seq    uint64
	Agents []protocol.AgentStatus
}
