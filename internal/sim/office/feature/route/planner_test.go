package route

import (
	"math/rand"
	"testing"

	"tenacitos.ai/internal/sim/office/logic/field"
	"tenacitos.ai/internal/sim/office/logic/mathx"
	"tenacitos.ai/internal/sim/office/logic/waypoint"
)

func openGraph() *waypoint.Graph {
	f := field.New(field.Bounds{MinX: -8, MaxX: 8, MinZ: -7, MaxZ: 7}, nil, field.DefaultParams())
	return waypoint.Build(f, waypoint.DefaultParams())
}

func TestPickGoalRouteIsConnectedHops(t *testing.T) {
	g := openGraph()
	pl := NewPlanner(g, DefaultParams())
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 50; i++ {
		cur := mathx.Vec2{X: -6.2, Z: -5.7}
		plan := pl.PickGoal(rng, cur, mathx.Vec2{X: 0, Z: 0})
		if !plan.OK {
			t.Fatalf("open grid should always plan")
		}
		if len(plan.Route) == 0 {
			continue
		}
		last := plan.Route[len(plan.Route)-1]
		if last != g.Nodes[plan.Goal] {
			t.Fatalf("route ends at %+v, goal %+v", last, g.Nodes[plan.Goal])
		}
		for k := 1; k < len(plan.Route); k++ {
			if d := mathx.Dist(plan.Route[k-1], plan.Route[k]); d > waypoint.DefaultParams().MaxNeighborDist {
				t.Fatalf("hop %d is %v long", k, d)
			}
		}
	}
}

func TestPickGoalDropsZeroLengthFirstLeg(t *testing.T) {
	g := openGraph()
	pl := NewPlanner(g, DefaultParams())
	rng := rand.New(rand.NewSource(3))

	cur := mathx.Vec2{X: -7, Z: -6}
	for i := 0; i < 20; i++ {
		plan := pl.PickGoal(rng, cur, cur)
		if !plan.OK {
			t.Fatalf("plan failed")
		}
		if len(plan.Route) > 0 && plan.Route[0] == cur {
			t.Fatalf("first waypoint equals current position")
		}
	}
}

func TestPickGoalLocalRoamStaysNearDesk(t *testing.T) {
	g := openGraph()
	p := DefaultParams()
	p.LocalRoamProbability = 1
	pl := NewPlanner(g, p)
	rng := rand.New(rand.NewSource(5))
	desk := mathx.Vec2{X: 5, Z: 4}

	for i := 0; i < 40; i++ {
		plan := pl.PickGoal(rng, mathx.Vec2{X: -7, Z: -6}, desk)
		if !plan.Local {
			t.Fatalf("expected local roam")
		}
		if d := mathx.Dist(g.Nodes[plan.Goal], desk); d > p.LocalRoamRadius {
			t.Fatalf("goal %v from desk", d)
		}
	}
}

func TestPickGoalUnreachableKeepsNothing(t *testing.T) {
	g := &waypoint.Graph{
		Nodes: []mathx.Vec2{{X: 0}, {X: 2}, {X: 9}},
		Edges: [][]int{{1}, {0}, {}},
	}
	p := DefaultParams()
	p.LocalRoamProbability = 1
	p.LocalRoamRadius = 0.5
	pl := NewPlanner(g, p)
	rng := rand.New(rand.NewSource(9))

	plan := pl.PickGoal(rng, mathx.Vec2{X: 0}, mathx.Vec2{X: 9})
	if plan.OK || plan.Route != nil {
		t.Fatalf("isolated goal should not plan: %+v", plan)
	}
}

func TestIntervalsWithinRange(t *testing.T) {
	pl := NewPlanner(openGraph(), DefaultParams())
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 200; i++ {
		if v := pl.NextInterval(rng, true); v < 5.2 || v > 10.4 {
			t.Fatalf("idle interval %v", v)
		}
		if v := pl.NextInterval(rng, false); v < 14 || v > 26 {
			t.Fatalf("active interval %v", v)
		}
		if v := pl.InitialDelay(rng); v < 0.4 || v > 1.6 {
			t.Fatalf("initial delay %v", v)
		}
	}
}
