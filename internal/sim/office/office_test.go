package office

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"tenacitos.ai/internal/observerproto"
	"tenacitos.ai/internal/protocol"
	"tenacitos.ai/internal/sim/layout"
	"tenacitos.ai/internal/sim/office/logic/mathx"
)

const openFloor = `id: test
bounds: { min_x: -8, max_x: 8, min_z: -7, max_z: 7 }
obstacles:
  - { id: desk-a, x: -4, z: -3, radius: 0.9, owner: a }
desks:
  - { agent: a, x: -4, z: -3 }
  - { agent: b, x: 4, z: 3 }
`

func newOffice(t *testing.T, raw string, mutate func(*Config)) *Office {
	t.Helper()
	l, err := layout.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	cfg := DefaultConfig()
	cfg.ID = "test"
	if mutate != nil {
		mutate(&cfg)
	}
	o, err := New(cfg, l)
	if err != nil {
		t.Fatalf("new office: %v", err)
	}
	return o
}

func statuses(pairs ...string) []protocol.AgentStatus {
	var out []protocol.AgentStatus
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, protocol.AgentStatus{ID: pairs[i], Status: pairs[i+1]})
	}
	return out
}

func hasEvent(f observerproto.FrameMsg, agentID, kind string) bool {
	for _, e := range f.Events {
		if e.AgentID == agentID && e.Kind == kind {
			return true
		}
	}
	return false
}

func TestApplyStatusesSpawnsAndSeats(t *testing.T) {
	o := newOffice(t, openFloor, nil)
	o.ApplyStatuses(statuses("a", "working", "b", "idle"))

	f := o.StepOnce()
	if len(f.Agents) != 2 || f.Agents[0].ID != "a" || f.Agents[1].ID != "b" {
		t.Fatalf("agents=%+v", f.Agents)
	}
	if !hasEvent(f, "a", EventSpawn) || !hasEvent(f, "b", EventSpawn) {
		t.Fatalf("missing spawn events: %+v", f.Events)
	}
	chair := o.byID["a"].Anchors.Chair
	if got := f.Agents[0]; got.Pos != [3]float64{chair.X, 0, chair.Z} || got.Mode != "SEATED" {
		t.Fatalf("seated agent at %+v mode=%s", got.Pos, got.Mode)
	}
	if f.Agents[1].Mode != "ROAMING" {
		t.Fatalf("idle agent mode=%s", f.Agents[1].Mode)
	}
	if o.CurrentTick() != 1 {
		t.Fatalf("tick=%d", o.CurrentTick())
	}
}

func TestStatusFlipEmitsModeEvents(t *testing.T) {
	o := newOffice(t, openFloor, nil)
	o.ApplyStatuses(statuses("a", "idle"))
	o.StepOnce()

	o.ApplyStatuses(statuses("a", "thinking"))
	f := o.StepOnce()
	if !hasEvent(f, "a", EventSeated) {
		t.Fatalf("expected SEATED event: %+v", f.Events)
	}
	chair := o.byID["a"].Anchors.Chair
	if o.positions["a"] != chair {
		t.Fatalf("table slot %+v want chair %+v", o.positions["a"], chair)
	}

	o.ApplyStatuses(statuses("a", "sleeping"))
	f = o.StepOnce()
	if !hasEvent(f, "a", EventRoaming) {
		t.Fatalf("expected ROAMING event: %+v", f.Events)
	}

	// Same-mode change (sleeping -> idle) is not a mode transition.
	o.ApplyStatuses(statuses("a", "idle"))
	f = o.StepOnce()
	if hasEvent(f, "a", EventRoaming) || hasEvent(f, "a", EventSeated) {
		t.Fatalf("unexpected mode event: %+v", f.Events)
	}
}

func TestMissingAgentLeaves(t *testing.T) {
	o := newOffice(t, openFloor, nil)
	o.ApplyStatuses(statuses("a", "idle", "b", "idle"))
	o.StepOnce()

	o.ApplyStatuses(statuses("b", "idle"))
	f := o.StepOnce()
	if !hasEvent(f, "a", EventLeave) {
		t.Fatalf("expected LEAVE: %+v", f.Events)
	}
	if _, ok := o.positions["a"]; ok {
		t.Fatalf("departed agent still in position table")
	}
	if len(f.Agents) != 1 || f.Agents[0].ID != "b" {
		t.Fatalf("agents=%+v", f.Agents)
	}
	if m := o.Metrics(); m.Totals.Leaves != 1 || m.Agents != 1 {
		t.Fatalf("metrics=%+v", m)
	}
}

func TestSpawnFallsBackInsideBounds(t *testing.T) {
	flooded := `id: flooded
bounds: { min_x: -4, max_x: 4, min_z: -3, max_z: 3 }
obstacles:
  - { id: flood, x: 0, z: 0, radius: 40 }
desks:
  - { agent: a, x: 30, z: 30 }
`
	o := newOffice(t, flooded, nil)
	if !o.Graph().Fallback {
		t.Fatalf("flooded floor should use the perimeter graph")
	}
	o.ApplyStatuses(statuses("a", "idle", "b", "working"))
	f := o.StepOnce()
	for _, id := range []string{"a", "b"} {
		if !hasEvent(f, id, EventSpawnFallback) {
			t.Fatalf("%s: expected SPAWN_FALLBACK: %+v", id, f.Events)
		}
	}
	for i := 0; i < 200; i++ {
		f = o.StepOnce()
		for _, a := range f.Agents {
			if !o.Field().Bounds.Contains(mathx.Vec2{X: a.Pos[0], Z: a.Pos[2]}) {
				t.Fatalf("tick %d: %s out of bounds %+v", f.Tick, a.ID, a.Pos)
			}
		}
	}
}

func placeOnCollision(o *Office) {
	setup := map[string]mathx.Vec2{"a": {X: 0, Z: -0.9}, "b": {X: 0, Z: 0.9}}
	for id, p := range setup {
		n := o.byID[id]
		n.State.Pos = p
		n.State.Route = []mathx.Vec2{{X: 0, Z: 0}}
		n.State.PlanIn = 1000
		n.State.StuckTicks = 0
		o.positions[id] = p
	}
}

func TestUpdateOrderDecidesContestedCell(t *testing.T) {
	o := newOffice(t, openFloor, func(c *Config) { c.TickRateHz = 1 })
	o.ApplyStatuses(statuses("a", "idle", "b", "idle"))
	placeOnCollision(o)

	o.StepOnce()
	if o.positions["a"] != (mathx.Vec2{}) || o.byID["b"].State.StuckTicks != 1 {
		t.Fatalf("a first: a=%+v b stuck=%d", o.positions["a"], o.byID["b"].State.StuckTicks)
	}

	// Reversing the feed order reverses the winner.
	o.ApplyStatuses(statuses("b", "idle", "a", "idle"))
	placeOnCollision(o)
	o.StepOnce()
	if o.positions["b"] != (mathx.Vec2{}) || o.byID["a"].State.StuckTicks != 1 {
		t.Fatalf("b first: b=%+v a stuck=%d", o.positions["b"], o.byID["a"].State.StuckTicks)
	}
}

type memFrameLog struct{ entries []FrameLogEntry }

func (m *memFrameLog) WriteFrame(e FrameLogEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

type memEventLog struct{ entries []EventLogEntry }

func (m *memEventLog) WriteEvent(e EventLogEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

func TestLoggersReceiveFramesAndEvents(t *testing.T) {
	o := newOffice(t, openFloor, func(c *Config) { c.FrameLogEveryTicks = 2 })
	frames, events := &memFrameLog{}, &memEventLog{}
	o.SetFrameLogger(frames)
	o.SetEventLogger(events)

	o.ApplyStatuses(statuses("a", "working"))
	for i := 0; i < 5; i++ {
		o.StepOnce()
	}
	if len(frames.entries) != 3 || frames.entries[2].Tick != 4 {
		t.Fatalf("frames=%+v", frames.entries)
	}
	if len(events.entries) != 1 || events.entries[0].Kind != EventSpawn || events.entries[0].OfficeID != "test" {
		t.Fatalf("events=%+v", events.entries)
	}
}

func TestBootstrapDescribesScene(t *testing.T) {
	o := newOffice(t, openFloor, nil)
	o.ApplyStatuses(statuses("a", "idle"))
	o.StepOnce()

	b := o.Bootstrap()
	if b.OfficeID != "test" || len(b.Obstacles) != 1 || len(b.Agents) != 1 {
		t.Fatalf("bootstrap=%+v", b)
	}
	if len(b.Graph.Nodes) != o.Graph().Len() || len(b.Graph.Edges) != o.Graph().EdgeCount() {
		t.Fatalf("graph view mismatch: %d/%d nodes %d/%d edges",
			len(b.Graph.Nodes), o.Graph().Len(), len(b.Graph.Edges), o.Graph().EdgeCount())
	}
}

func TestRunStreamsFramesToObservers(t *testing.T) {
	o := newOffice(t, openFloor, func(c *Config) { c.TickRateHz = 50 })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	out := make(chan []byte, 4)
	o.ObserverJoin() <- ObserverJoinRequest{SessionID: "O1", TickOut: out, Events: true}
	o.StatusInbox() <- StatusUpdate{Source: "test", Seq: 1, Agents: statuses("a", "working", "b", "idle")}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case b := <-out:
			var f observerproto.FrameMsg
			if err := json.Unmarshal(b, &f); err != nil {
				t.Fatalf("frame: %v", err)
			}
			if f.Type != "FRAME" {
				t.Fatalf("type=%s", f.Type)
			}
			if len(f.Agents) == 2 {
				cancel()
				select {
				case <-done:
				case <-time.After(2 * time.Second):
					t.Fatalf("Run did not exit")
				}
				return
			}
		case <-deadline:
			t.Fatalf("no frame with both agents")
		}
	}
}

func TestObserverFilter(t *testing.T) {
	o := newOffice(t, openFloor, nil)
	out := make(chan []byte, 1)
	o.handleObserverJoin(ObserverJoinRequest{SessionID: "O1", TickOut: out, AgentIDs: []string{"b"}})
	o.ApplyStatuses(statuses("a", "idle", "b", "idle"))
	o.StepOnce()

	var f observerproto.FrameMsg
	if err := json.Unmarshal(<-out, &f); err != nil {
		t.Fatalf("frame: %v", err)
	}
	if len(f.Agents) != 1 || f.Agents[0].ID != "b" || f.Events != nil {
		t.Fatalf("filtered frame=%+v", f)
	}

	o.handleObserverLeave("O1")
	if _, ok := <-out; ok {
		t.Fatalf("tick channel should be closed on leave")
	}
}

func TestDepartureFreesSpawnSlot(t *testing.T) {
	// Any two points in this room are closer than the agent separation.
	cramped := `id: cramped
bounds: { min_x: -0.2, max_x: 0.2, min_z: -0.2, max_z: 0.2 }
`
	o := newOffice(t, cramped, nil)
	o.ApplyStatuses(statuses("a", "idle"))
	f := o.StepOnce()
	if !hasEvent(f, "a", EventSpawn) {
		t.Fatalf("a: expected SPAWN: %+v", f.Events)
	}

	o.ApplyStatuses(statuses("b", "idle"))
	f = o.StepOnce()
	if !hasEvent(f, "a", EventLeave) {
		t.Fatalf("expected LEAVE for a: %+v", f.Events)
	}
	if !hasEvent(f, "b", EventSpawn) || hasEvent(f, "b", EventSpawnFallback) {
		t.Fatalf("b should spawn into the slot a left: %+v", f.Events)
	}
	if f.Events[0].Kind != EventLeave {
		t.Fatalf("LEAVE should precede SPAWN: %+v", f.Events)
	}
}

func TestZeroConfigUsesDefaultField(t *testing.T) {
	l, err := layout.Parse([]byte(openFloor))
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	o, err := New(Config{}, l)
	if err != nil {
		t.Fatalf("new office: %v", err)
	}
	def := DefaultConfig()
	if o.Field().Params != def.Field {
		t.Fatalf("field params=%+v want %+v", o.Field().Params, def.Field)
	}
	if o.Config().Route.ArrivalThreshold != def.Route.ArrivalThreshold {
		t.Fatalf("arrival threshold=%v", o.Config().Route.ArrivalThreshold)
	}
}
