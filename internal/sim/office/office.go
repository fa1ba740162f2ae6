// Package office drives every avatar in one office scene. All navigation
// state is owned by the loop goroutine (Run) or by the caller of StepOnce.
package office

import (
	"fmt"
	"math/rand"
	"sync/atomic"

	"tenacitos.ai/internal/observerproto"
	"tenacitos.ai/internal/protocol"
	"tenacitos.ai/internal/sim/layout"
	"tenacitos.ai/internal/sim/office/feature/navigator"
	"tenacitos.ai/internal/sim/office/feature/route"
	"tenacitos.ai/internal/sim/office/feature/spawn"
	"tenacitos.ai/internal/sim/office/logic/field"
	"tenacitos.ai/internal/sim/office/logic/mathx"
	"tenacitos.ai/internal/sim/office/logic/waypoint"
)

type Office struct {
	cfg    Config
	layout *layout.Layout

	field   *field.Field
	graph   *waypoint.Graph
	planner *route.Planner

	// navs is in feed order, which is also the per-frame update order.
	navs      []*navigator.Navigator
	byID      map[string]*navigator.Navigator
	positions map[string]mathx.Vec2

	tick atomic.Uint64

	statusIn      chan StatusUpdate
	observerJoin  chan ObserverJoinRequest
	observerSub   chan ObserverSubscribeRequest
	observerLeave chan string
	stop          chan struct{}

	observers map[string]*observerClient

	frameLogger FrameLogger
	eventLogger EventLogger

	events    []observerproto.NavEvent
	totals    Totals
	metrics   atomic.Value
	lastFrame atomic.Pointer[observerproto.FrameMsg]
}

func New(cfg Config, l *layout.Layout) (*Office, error) {
	if l == nil {
		return nil, fmt.Errorf("office: nil layout")
	}
	cfg.applyDefaults()

	f := l.Field(cfg.Field)
	g := waypoint.Build(f, cfg.Graph)

	o := &Office{
		cfg:     cfg,
		layout:  l,
		field:   f,
		graph:   g,
		planner: route.NewPlanner(g, cfg.Route),

		byID:      map[string]*navigator.Navigator{},
		positions: map[string]mathx.Vec2{},

		statusIn:      make(chan StatusUpdate, cfg.StatusQueue),
		observerJoin:  make(chan ObserverJoinRequest, 16),
		observerSub:   make(chan ObserverSubscribeRequest, 64),
		observerLeave: make(chan string, 16),
		stop:          make(chan struct{}),

		observers: map[string]*observerClient{},
	}
	o.publishMetrics(0)
	return o, nil
}

func (o *Office) Config() Config { return o.cfg }

func (o *Office) Layout() *layout.Layout { return o.layout }

func (o *Office) Field() *field.Field { return o.field }

// Graph is built once per scene and shared read-only by every navigator.
func (o *Office) Graph() *waypoint.Graph { return o.graph }

func (o *Office) CurrentTick() uint64 { return o.tick.Load() }

func (o *Office) SetFrameLogger(l FrameLogger) { o.frameLogger = l }

func (o *Office) SetEventLogger(l EventLogger) { o.eventLogger = l }

func (o *Office) StatusInbox() chan<- StatusUpdate { return o.statusIn }

func (o *Office) ObserverJoin() chan<- ObserverJoinRequest { return o.observerJoin }

func (o *Office) ObserverSubscribe() chan<- ObserverSubscribeRequest { return o.observerSub }

func (o *Office) ObserverLeave() chan<- string { return o.observerLeave }

// LastFrame returns the most recent frame, or nil before the first tick.
func (o *Office) LastFrame() *observerproto.FrameMsg { return o.lastFrame.Load() }

// ApplyStatuses reconciles the scene with a full agent list: agents missing
// from the list are removed first, then new agents are spawned and known
// agents get their status updated. The list order becomes the update order.
func (o *Office) ApplyStatuses(list []protocol.AgentStatus) {
	now := o.tick.Load()
	keep := make(map[string]struct{}, len(list))
	uniq := make([]protocol.AgentStatus, 0, len(list))
	for _, a := range list {
		if a.ID == "" {
			continue
		}
		if _, dup := keep[a.ID]; dup {
			continue
		}
		keep[a.ID] = struct{}{}
		uniq = append(uniq, a)
	}

	// Departures free their slot before anyone spawns.
	for _, n := range o.navs {
		if _, ok := keep[n.ID]; ok {
			continue
		}
		delete(o.byID, n.ID)
		delete(o.positions, n.ID)
		o.totals.Leaves++
		o.emit(now, n.ID, EventLeave, "", n.State.Pos)
	}

	navs := make([]*navigator.Navigator, 0, len(uniq))
	for _, a := range uniq {
		desk := o.deskFor(a)
		st := navigator.Status(protocol.NormalizeStatus(a.Status))

		n := o.byID[a.ID]
		if n == nil {
			n = o.spawn(now, a.ID, st, desk)
		} else {
			if desk != n.Anchors.Desk {
				n.Anchors = navigator.AnchorsFor(desk, o.field.Bounds, o.cfg.Navigator)
				n.OwnDesk = o.field.OwnDeskIndex(a.ID, desk)
			}
			before := n.Mode()
			n.SetStatus(st, o.planner)
			if after := n.Mode(); after != before {
				kind := EventRoaming
				if after == navigator.ModeSeated {
					kind = EventSeated
				}
				o.emit(now, n.ID, kind, string(st), n.State.Pos)
			}
		}
		navs = append(navs, n)
	}
	o.navs = navs
}

func (o *Office) deskFor(a protocol.AgentStatus) mathx.Vec2 {
	if a.Desk != nil {
		return mathx.Vec2{X: a.Desk[0], Z: a.Desk[1]}
	}
	d, _ := o.layout.Desk(a.ID)
	return d
}

func (o *Office) spawn(now uint64, id string, st navigator.Status, desk mathx.Vec2) *navigator.Navigator {
	anchors := navigator.AnchorsFor(desk, o.field.Bounds, o.cfg.Navigator)
	ownDesk := o.field.OwnDeskIndex(id, desk)
	rng := rand.New(rand.NewSource(int64(mathx.HashString(o.cfg.Seed, id))))

	anchor := anchors.Desk
	if st.Seated() {
		anchor = anchors.Chair
	}
	probe := field.Probe{Self: id, OwnDesk: ownDesk, Others: o.positions}
	pos, stage := spawn.Resolve(rng, o.field, probe, anchor, o.cfg.Spawn)

	n := navigator.New(id, st, anchors, ownDesk, pos, rng, o.planner, o.cfg.Navigator)
	o.byID[id] = n
	o.positions[id] = pos

	o.totals.Spawns++
	kind := EventSpawn
	if stage == spawn.StageAnchor {
		kind = EventSpawnFallback
		o.totals.SpawnFallbacks++
	}
	o.emit(now, id, kind, string(stage), pos)
	return n
}

func (o *Office) emit(tick uint64, agentID, kind, detail string, pos mathx.Vec2) {
	o.events = append(o.events, observerproto.NavEvent{Tick: tick, AgentID: agentID, Kind: kind, Detail: detail})
	if o.eventLogger != nil {
		_ = o.eventLogger.WriteEvent(EventLogEntry{
			OfficeID: o.cfg.ID,
			Tick:     tick,
			AgentID:  agentID,
			Kind:     kind,
			Detail:   detail,
			Pos:      [2]float64{pos.X, pos.Z},
		})
	}
}

// Agents returns the current agent views in update order.
func (o *Office) Agents() []observerproto.AgentView {
	out := make([]observerproto.AgentView, 0, len(o.navs))
	for _, n := range o.navs {
		out = append(out, agentView(n))
	}
	return out
}

func agentView(n *navigator.Navigator) observerproto.AgentView {
	st := n.State
	v := observerproto.AgentView{
		ID:         n.ID,
		Pos:        [3]float64{st.Pos.X, 0, st.Pos.Z},
		Facing:     st.Facing,
		Moving:     st.Moving,
		Status:     string(n.Status),
		Mode:       string(n.Mode()),
		StuckTicks: st.StuckTicks,
	}
	if len(st.Route) > 0 {
		v.Route = make([][2]float64, len(st.Route))
		for i, p := range st.Route {
			v.Route[i] = [2]float64{p.X, p.Z}
		}
	}
	return v
}

// Bootstrap describes the static scene for observers.
func (o *Office) Bootstrap() observerproto.BootstrapResponse {
	b := o.field.Bounds
	resp := observerproto.BootstrapResponse{
		ProtocolVersion: observerproto.Version,
		OfficeID:        o.cfg.ID,
		Tick:            o.tick.Load(),
		TickRateHz:      o.cfg.TickRateHz,
		LayoutDigest:    o.layout.Digest,
		Bounds:          observerproto.Bounds{MinX: b.MinX, MaxX: b.MaxX, MinZ: b.MinZ, MaxZ: b.MaxZ},
		Obstacles:       make([]observerproto.Obstacle, 0, len(o.field.Obstacles)),
		Graph: observerproto.GraphView{
			Nodes:    make([][2]float64, 0, o.graph.Len()),
			Fallback: o.graph.Fallback,
		},
	}
	for _, ob := range o.field.Obstacles {
		resp.Obstacles = append(resp.Obstacles, observerproto.Obstacle{
			ID:     ob.ID,
			Pos:    [2]float64{ob.Pos.X, ob.Pos.Z},
			Radius: ob.Radius,
			Owner:  ob.Owner,
		})
	}
	for i, p := range o.graph.Nodes {
		resp.Graph.Nodes = append(resp.Graph.Nodes, [2]float64{p.X, p.Z})
		for _, j := range o.graph.Edges[i] {
			if j > i {
				resp.Graph.Edges = append(resp.Graph.Edges, [2]int{i, j})
			}
		}
	}
	if f := o.lastFrame.Load(); f != nil {
		resp.Agents = f.Agents
	}
	return resp
}
