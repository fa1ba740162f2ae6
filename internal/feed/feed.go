// Package feed turns external agent lists into office status updates.
package feed

import (
	"encoding/json"
	"fmt"

	"tenacitos.ai/internal/protocol"
	"tenacitos.ai/internal/sim/office"
)

// Document is the agent list shape shared by the status file and the
// dashboard's agents endpoint. A full STATUS message also decodes into it.
type Document struct {
	Agents []protocol.AgentStatus `json:"agents"`
}

// Decode parses raw into a validated STATUS message with the given seq.
// A bare JSON array of agents is accepted as well.
func Decode(raw []byte, seq uint64) (protocol.StatusMsg, error) {
	var doc Document
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &doc.Agents); err != nil {
			return protocol.StatusMsg{}, fmt.Errorf("decode agents: %w", err)
		}
	} else if err := json.Unmarshal(raw, &doc); err != nil {
		return protocol.StatusMsg{}, fmt.Errorf("decode agents: %w", err)
	}
	msg := protocol.StatusMsg{
		Type:            protocol.TypeStatus,
		ProtocolVersion: protocol.Version,
		Seq:             seq,
		Agents:          doc.Agents,
	}
	if code, err := protocol.ValidateStatus(&msg); err != nil {
		return protocol.StatusMsg{}, fmt.Errorf("%s: %w", code, err)
	}
	return msg, nil
}

// offer hands u to the office without blocking. A full inbox drops u; the
// next read supersedes it anyway.
func offer(inbox chan<- office.StatusUpdate, u office.StatusUpdate) bool {
	select {
	case inbox <- u:
		return true
	default:
		return false
	}
}
