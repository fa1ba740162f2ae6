package waypoint

import (
	"math"

	"tenacitos.ai/internal/sim/office/logic/field"
	"tenacitos.ai/internal/sim/office/logic/mathx"
)

type Params struct {
	GridStep        float64
	GridMargin      float64
	MaxNeighborDist float64
	MinNodes        int
}

func DefaultParams() Params {
	return Params{
		GridStep:        2.0,
		GridMargin:      1.0,
		MaxNeighborDist: 2.2,
		MinNodes:        6,
	}
}

// Graph is a sparse walkable-space graph. Edges is an undirected adjacency
// list with each neighbour list sorted ascending. Fallback marks the
// perimeter loop used when the grid degenerates; its nodes and edges are not
// free-space validated.
type Graph struct {
	Nodes    []mathx.Vec2 `json:"nodes"`
	Edges    [][]int      `json:"edges"`
	Fallback bool         `json:"fallback,omitempty"`
}

type candidate struct {
	p        mathx.Vec2
	row, col int
}

// Build samples a grid inside the field bounds, keeps free intersections and
// links row/column neighbours whose connecting segment is free. The result is
// a pure function of the field and params.
func Build(f *field.Field, p Params) *Graph {
	if p.GridStep <= 0 {
		p.GridStep = DefaultParams().GridStep
	}
	inner := f.Bounds.Inset(p.GridMargin)
	cols := int(math.Floor(inner.Width()/p.GridStep+1e-9)) + 1
	rows := int(math.Floor(inner.Depth()/p.GridStep+1e-9)) + 1

	probe := field.Static()
	var kept []candidate
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			pt := mathx.Vec2{X: inner.MinX + float64(c)*p.GridStep, Z: inner.MinZ + float64(r)*p.GridStep}
			if !f.PositionFree(pt, probe) {
				continue
			}
			kept = append(kept, candidate{p: pt, row: r, col: c})
		}
	}

	if len(kept) < p.MinNodes {
		return Perimeter(f.Bounds, p.GridMargin)
	}

	g := &Graph{
		Nodes: make([]mathx.Vec2, len(kept)),
		Edges: make([][]int, len(kept)),
	}
	for i, k := range kept {
		g.Nodes[i] = k.p
	}
	for i := 0; i < len(kept); i++ {
		for j := i + 1; j < len(kept); j++ {
			a, b := kept[i], kept[j]
			if a.row != b.row && a.col != b.col {
				continue
			}
			if mathx.Dist(a.p, b.p) > p.MaxNeighborDist {
				continue
			}
			if !f.PathFree(a.p, b.p, probe) {
				continue
			}
			g.Edges[i] = append(g.Edges[i], j)
			g.Edges[j] = append(g.Edges[j], i)
		}
	}
	// j ascends for each i and i < j ascends too, so lists are already sorted.
	return g
}

// Perimeter is the degenerate graph: a 4-node loop inset from the bounds.
func Perimeter(b field.Bounds, inset float64) *Graph {
	in := b.Inset(inset)
	return &Graph{
		Nodes: []mathx.Vec2{
			{X: in.MinX, Z: in.MinZ},
			{X: in.MaxX, Z: in.MinZ},
			{X: in.MaxX, Z: in.MaxZ},
			{X: in.MinX, Z: in.MaxZ},
		},
		Edges: [][]int{
			{1, 3},
			{0, 2},
			{1, 3},
			{0, 2},
		},
		Fallback: true,
	}
}

func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.Nodes)
}

func (g *Graph) EdgeCount() int {
	n := 0
	for _, adj := range g.Edges {
		n += len(adj)
	}
	return n / 2
}

// Nearest returns the index of the node closest to p, or -1 for an empty graph.
func (g *Graph) Nearest(p mathx.Vec2) int {
	best := -1
	bestD := math.Inf(1)
	for i, n := range g.Nodes {
		if d := mathx.Dist(p, n); d < bestD {
			best, bestD = i, d
		}
	}
	return best
}

// Within lists node indices no farther than radius from center, ascending.
func (g *Graph) Within(center mathx.Vec2, radius float64) []int {
	var out []int
	for i, n := range g.Nodes {
		if mathx.Dist(center, n) <= radius {
			out = append(out, i)
		}
	}
	return out
}
