package officetest

import (
	"testing"

	"tenacitos.ai/internal/observerproto"
	"tenacitos.ai/internal/protocol"
	"tenacitos.ai/internal/sim/layout"
	"tenacitos.ai/internal/sim/office"
	"tenacitos.ai/internal/sim/office/logic/mathx"
)

// Harness is a small black-box test helper for driving an office via exported APIs:
// - SetStatuses() applies a full agent list the way a feed would
// - Step()/StepN() advance the scene via StepOnce()
// - LastFrame()/Agent() expose what observers would see
//
// It intentionally avoids touching office internals so tests can live outside the office package.
type Harness struct {
	T      *testing.T
	Layout *layout.Layout
	O      *office.Office

	last observerproto.FrameMsg
	seq  uint64
}

func NewHarness(t *testing.T, cfg office.Config, layoutYAML string) *Harness {
	t.Helper()

	l, err := layout.Parse([]byte(layoutYAML))
	if err != nil {
		t.Fatalf("layout.Parse: %v", err)
	}
	o, err := office.New(cfg, l)
	if err != nil {
		t.Fatalf("office.New: %v", err)
	}
	return &Harness{T: t, Layout: l, O: o}
}

// SetStatuses takes id/status pairs. The statuses are validated like a feed
// message before they reach the office.
func (h *Harness) SetStatuses(pairs ...string) {
	h.T.Helper()
	h.seq++
	msg := protocol.StatusMsg{Type: protocol.TypeStatus, ProtocolVersion: protocol.Version, Seq: h.seq}
	for i := 0; i+1 < len(pairs); i += 2 {
		msg.Agents = append(msg.Agents, protocol.AgentStatus{ID: pairs[i], Status: pairs[i+1]})
	}
	if code, err := protocol.ValidateStatus(&msg); err != nil {
		h.T.Fatalf("status rejected (%s): %v", code, err)
	}
	h.O.ApplyStatuses(msg.Agents)
}

func (h *Harness) Step() observerproto.FrameMsg {
	h.last = h.O.StepOnce()
	return h.last
}

// StepN steps n frames and returns every frame.
func (h *Harness) StepN(n int) []observerproto.FrameMsg {
	out := make([]observerproto.FrameMsg, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, h.Step())
	}
	return out
}

func (h *Harness) LastFrame() observerproto.FrameMsg { return h.last }

func (h *Harness) Agent(id string) observerproto.AgentView {
	h.T.Helper()
	for _, a := range h.last.Agents {
		if a.ID == id {
			return a
		}
	}
	h.T.Fatalf("agent %q not in last frame", id)
	return observerproto.AgentView{}
}

// Chair is where a seated agent must sit: its desk plus the chair offset,
// clamped into the floor.
func (h *Harness) Chair(id string) mathx.Vec2 {
	desk, _ := h.Layout.Desk(id)
	b := h.O.Field().Bounds
	off := h.O.Config().Navigator.ChairOffset
	return b.Clamp(desk.Add(off))
}

func Pos2(a observerproto.AgentView) mathx.Vec2 {
	return mathx.Vec2{X: a.Pos[0], Z: a.Pos[2]}
}
