package protocol

import (
	"fmt"
	"math"
	"strings"
)

// Agent statuses reported by the dashboard.
const (
	StatusIdle     = "idle"
	StatusWorking  = "working"
	StatusThinking = "thinking"
	StatusError    = "error"
	StatusSleeping = "sleeping"
)

var knownStatuses = map[string]struct{}{
	StatusIdle:     {},
	StatusWorking:  {},
	StatusThinking: {},
	StatusError:    {},
	StatusSleeping: {},
}

func IsKnownStatus(s string) bool {
	_, ok := knownStatuses[s]
	return ok
}

// NormalizeStatus trims and lowercases a status string.
func NormalizeStatus(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidateStatus normalizes m in place and returns a rejection code with a
// reason when the list cannot be applied.
func ValidateStatus(m *StatusMsg) (string, error) {
	if m.Type != TypeStatus {
		return ErrProtoBadRequest, fmt.Errorf("expected %s, got %q", TypeStatus, m.Type)
	}
	if m.ProtocolVersion != Version {
		return ErrProtoVersion, fmt.Errorf("bad protocol_version %q", m.ProtocolVersion)
	}
	seen := make(map[string]struct{}, len(m.Agents))
	for i := range m.Agents {
		a := &m.Agents[i]
		a.ID = strings.TrimSpace(a.ID)
		if a.ID == "" {
			return ErrProtoBadRequest, fmt.Errorf("agents[%d]: empty id", i)
		}
		if _, dup := seen[a.ID]; dup {
			return ErrDuplicateID, fmt.Errorf("agents[%d]: duplicate id %q", i, a.ID)
		}
		seen[a.ID] = struct{}{}

		a.Status = NormalizeStatus(a.Status)
		if !IsKnownStatus(a.Status) {
			return ErrBadStatus, fmt.Errorf("agent %s: unknown status %q", a.ID, a.Status)
		}
		if a.Desk != nil {
			for _, v := range a.Desk {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return ErrProtoBadRequest, fmt.Errorf("agent %s: desk not finite", a.ID)
				}
			}
		}
	}
	return "", nil
}
