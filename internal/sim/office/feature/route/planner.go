package route

import (
	"math/rand"

	"tenacitos.ai/internal/sim/office/logic/mathx"
	"tenacitos.ai/internal/sim/office/logic/waypoint"
)

type Params struct {
	LocalRoamProbability float64
	LocalRoamRadius      float64
	ArrivalThreshold     float64

	IdleReplanMin   float64
	IdleReplanMax   float64
	ActiveReplanMin float64
	ActiveReplanMax float64
	InitialDelayMin float64
	InitialDelayMax float64
}

func DefaultParams() Params {
	return Params{
		LocalRoamProbability: 0.88,
		LocalRoamRadius:      4.0,
		ArrivalThreshold:     0.15,
		IdleReplanMin:        5.2,
		IdleReplanMax:        10.4,
		ActiveReplanMin:      14,
		ActiveReplanMax:      26,
		InitialDelayMin:      0.4,
		InitialDelayMax:      1.6,
	}
}

// Plan is the outcome of one goal pick. When OK is false the caller keeps
// whatever route it already had.
type Plan struct {
	OK    bool
	Local bool
	Goal  int
	Route []mathx.Vec2
}

type Planner struct {
	Graph  *waypoint.Graph
	Params Params
}

func NewPlanner(g *waypoint.Graph, p Params) *Planner {
	return &Planner{Graph: g, Params: p}
}

// PickGoal chooses a goal node (usually near the desk) and plans a BFS route
// to it from the node nearest current.
func (pl *Planner) PickGoal(rng *rand.Rand, current, deskAnchor mathx.Vec2) Plan {
	g := pl.Graph
	if g.Len() == 0 {
		return Plan{}
	}

	local := rng.Float64() < pl.Params.LocalRoamProbability
	var eligible []int
	if local {
		eligible = g.Within(deskAnchor, pl.Params.LocalRoamRadius)
	}
	if len(eligible) == 0 {
		local = false
		eligible = make([]int, g.Len())
		for i := range eligible {
			eligible[i] = i
		}
	}
	goal := eligible[rng.Intn(len(eligible))]

	start := g.Nearest(current)
	path, ok := g.ShortestPath(start, goal)
	if !ok {
		return Plan{Goal: goal, Local: local}
	}

	route := make([]mathx.Vec2, 0, len(path))
	for _, idx := range path {
		route = append(route, g.Nodes[idx])
	}
	if len(route) > 0 && mathx.Dist(route[0], current) < pl.Params.ArrivalThreshold {
		route = route[1:]
	}
	return Plan{OK: true, Local: local, Goal: goal, Route: route}
}

// NextInterval is the delay in seconds before the next goal pick. idle covers
// every status that roams like idle.
func (pl *Planner) NextInterval(rng *rand.Rand, idle bool) float64 {
	if idle {
		return uniform(rng, pl.Params.IdleReplanMin, pl.Params.IdleReplanMax)
	}
	return uniform(rng, pl.Params.ActiveReplanMin, pl.Params.ActiveReplanMax)
}

func (pl *Planner) InitialDelay(rng *rand.Rand) float64 {
	return uniform(rng, pl.Params.InitialDelayMin, pl.Params.InitialDelayMax)
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + rng.Float64()*(hi-lo)
}
