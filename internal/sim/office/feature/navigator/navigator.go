package navigator

import (
	"math"
	"math/rand"

	"tenacitos.ai/internal/sim/office/feature/route"
	"tenacitos.ai/internal/sim/office/logic/field"
	"tenacitos.ai/internal/sim/office/logic/mathx"
)

type Status string

const (
	StatusIdle     Status = "idle"
	StatusWorking  Status = "working"
	StatusThinking Status = "thinking"
	StatusError    Status = "error"
	StatusSleeping Status = "sleeping"
)

// Seated reports whether the status pins the avatar to its chair.
func (s Status) Seated() bool { return s == StatusWorking || s == StatusThinking }

// IdleLike reports whether the status roams with idle speed and cadence.
func (s Status) IdleLike() bool { return s == StatusIdle || s == StatusSleeping }

type Mode string

const (
	ModeSeated  Mode = "SEATED"
	ModeRoaming Mode = "ROAMING"
)

type Params struct {
	ChairOffset    mathx.Vec2
	RoamSpeed      float64
	IdleSpeed      float64
	StuckThreshold int
}

func DefaultParams() Params {
	return Params{
		ChairOffset:    mathx.Vec2{Z: 0.75},
		RoamSpeed:      1.1,
		IdleSpeed:      1.25,
		StuckThreshold: 90,
	}
}

// Anchors are derived from the static desk position and never stored
// anywhere but here.
type Anchors struct {
	Desk  mathx.Vec2
	Chair mathx.Vec2
	Idle  mathx.Vec2
}

func AnchorsFor(desk mathx.Vec2, b field.Bounds, p Params) Anchors {
	d := b.Clamp(desk)
	return Anchors{
		Desk:  d,
		Chair: b.Clamp(desk.Add(p.ChairOffset)),
		Idle:  d,
	}
}

type State struct {
	Pos        mathx.Vec2
	Route      []mathx.Vec2
	Goal       mathx.Vec2
	HasGoal    bool
	StuckTicks int
	Facing     float64
	Moving     bool
	// PlanIn is the time in seconds until the next goal pick.
	PlanIn float64
}

// Env is the per-tick simulation context. Positions is the shared table of
// every agent's latest position; a navigator writes only its own slot.
type Env struct {
	Field     *field.Field
	Planner   *route.Planner
	Positions map[string]mathx.Vec2
	Dt        float64
}

type Result struct {
	Moved          bool
	Planned        bool
	PlanFailed     bool
	StuckRecovered bool
}

type Navigator struct {
	ID      string
	Status  Status
	Anchors Anchors
	OwnDesk int
	State   State

	params Params
	rng    *rand.Rand
}

func New(id string, status Status, anchors Anchors, ownDesk int, pos mathx.Vec2, rng *rand.Rand, planner *route.Planner, p Params) *Navigator {
	n := &Navigator{
		ID:      id,
		Status:  status,
		Anchors: anchors,
		OwnDesk: ownDesk,
		params:  p,
		rng:     rng,
	}
	n.State.Pos = pos
	if !status.Seated() {
		n.State.PlanIn = planner.InitialDelay(rng)
	}
	return n
}

func (n *Navigator) Mode() Mode {
	if n.Status.Seated() {
		return ModeSeated
	}
	return ModeRoaming
}

// SetStatus applies an external status change. Entering a seated status drops
// any route in flight; leaving one schedules a goal pick after a short delay.
func (n *Navigator) SetStatus(s Status, planner *route.Planner) {
	if s == n.Status {
		return
	}
	was := n.Status.Seated()
	n.Status = s
	switch {
	case s.Seated() && !was:
		n.clearRoute()
	case !s.Seated() && was:
		n.State.PlanIn = planner.InitialDelay(n.rng)
	}
}

func (n *Navigator) clearRoute() {
	n.State.Route = nil
	n.State.HasGoal = false
	n.State.StuckTicks = 0
}

func (n *Navigator) probe(env *Env) field.Probe {
	return field.Probe{Self: n.ID, OwnDesk: n.OwnDesk, Others: env.Positions}
}

// Tick advances the avatar by one frame and publishes its position.
func (n *Navigator) Tick(env *Env) Result {
	if n.Status.Seated() {
		n.seat(env)
		return Result{}
	}
	return n.roam(env)
}

func (n *Navigator) seat(env *Env) {
	st := &n.State
	st.Pos = n.Anchors.Chair
	st.Facing = mathx.FacingAngle(n.Anchors.Chair, n.Anchors.Desk)
	st.Moving = false
	n.clearRoute()
	env.Positions[n.ID] = st.Pos
}

func (n *Navigator) roam(env *Env) Result {
	var res Result
	st := &n.State
	st.Moving = false

	st.PlanIn -= env.Dt
	if st.PlanIn <= 0 {
		plan := env.Planner.PickGoal(n.rng, st.Pos, n.Anchors.Idle)
		if plan.OK {
			st.Route = plan.Route
			st.Goal = env.Planner.Graph.Nodes[plan.Goal]
			st.HasGoal = true
			st.StuckTicks = 0
			res.Planned = true
		} else {
			res.PlanFailed = true
		}
		st.PlanIn = env.Planner.NextInterval(n.rng, n.Status.IdleLike())
	}

	arrive := math.Max(env.Planner.Params.ArrivalThreshold, arriveEpsilon)
	for len(st.Route) > 0 && mathx.Dist(st.Pos, st.Route[0]) < arrive {
		st.Route = st.Route[1:]
	}
	if len(st.Route) == 0 {
		st.Route = nil
		st.HasGoal = false
		env.Positions[n.ID] = st.Pos
		return res
	}

	head := st.Route[0]
	delta := head.Sub(st.Pos)
	dist := delta.Len()
	step := n.speed() * env.Dt
	if step > dist {
		step = dist
	}
	next := env.Field.Bounds.Clamp(st.Pos.Add(delta.Scale(step / dist)))

	probe := n.probe(env)
	if env.Field.PositionFree(next, probe) && env.Field.PathFree(st.Pos, next, probe) {
		st.Facing = mathx.FacingAngle(st.Pos, next)
		st.Pos = next
		st.Moving = true
		st.StuckTicks = 0
		env.Positions[n.ID] = st.Pos
		res.Moved = true
		return res
	}

	st.StuckTicks++
	if st.StuckTicks > n.params.StuckThreshold {
		n.clearRoute()
		st.PlanIn = env.Planner.InitialDelay(n.rng)
		res.StuckRecovered = true
	}
	env.Positions[n.ID] = st.Pos
	return res
}

// arriveEpsilon is the floor for the arrival threshold; below it a step
// toward the route head has no usable direction.
const arriveEpsilon = 1e-6

func (n *Navigator) speed() float64 {
	if n.Status.IdleLike() {
		return n.params.IdleSpeed
	}
	return n.params.RoamSpeed
}
