// Package field describes the static office floor: a bounding rectangle and
// circular obstacles, plus the free-space predicates every other navigation
// component is built on.
package field

import (
	"math"

	"tenacitos.ai/internal/sim/office/logic/mathx"
)

type Bounds struct {
	MinX float64 `json:"min_x"`
	MaxX float64 `json:"max_x"`
	MinZ float64 `json:"min_z"`
	MaxZ float64 `json:"max_z"`
}

func (b Bounds) Width() float64 { return b.MaxX - b.MinX }
func (b Bounds) Depth() float64 { return b.MaxZ - b.MinZ }

func (b Bounds) Contains(p mathx.Vec2) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Z >= b.MinZ && p.Z <= b.MaxZ
}

func (b Bounds) Clamp(p mathx.Vec2) mathx.Vec2 {
	return mathx.Vec2{
		X: mathx.Clamp(p.X, b.MinX, b.MaxX),
		Z: mathx.Clamp(p.Z, b.MinZ, b.MaxZ),
	}
}

// Inset shrinks the rectangle by margin on every side. A margin larger than
// half an extent collapses that axis onto its centre line.
func (b Bounds) Inset(margin float64) Bounds {
	out := Bounds{MinX: b.MinX + margin, MaxX: b.MaxX - margin, MinZ: b.MinZ + margin, MaxZ: b.MaxZ - margin}
	if out.MinX > out.MaxX {
		c := (b.MinX + b.MaxX) / 2
		out.MinX, out.MaxX = c, c
	}
	if out.MinZ > out.MaxZ {
		c := (b.MinZ + b.MaxZ) / 2
		out.MinZ, out.MaxZ = c, c
	}
	return out
}

func (b Bounds) Center() mathx.Vec2 {
	return mathx.Vec2{X: (b.MinX + b.MaxX) / 2, Z: (b.MinZ + b.MaxZ) / 2}
}

// Obstacle is a circular exclusion zone. Owner is set when the obstacle is an
// agent's own desk.
type Obstacle struct {
	ID     string     `json:"id"`
	Pos    mathx.Vec2 `json:"pos"`
	Radius float64    `json:"radius"`
	Owner  string     `json:"owner,omitempty"`
}

type Params struct {
	Clearance          float64
	OwnDeskRadiusScale float64
	MinAgentSeparation float64

	PathSampleStep float64
	MinPathSamples int
	MaxPathSamples int
}

func DefaultParams() Params {
	return Params{
		Clearance:          0.45,
		OwnDeskRadiusScale: 0.5,
		MinAgentSeparation: 0.7,
		PathSampleStep:     0.25,
		MinPathSamples:     4,
		MaxPathSamples:     40,
	}
}

// Field is immutable after New and safe to share between navigators.
type Field struct {
	Bounds    Bounds
	Obstacles []Obstacle
	Params    Params
}

func New(b Bounds, obstacles []Obstacle, p Params) *Field {
	obs := make([]Obstacle, len(obstacles))
	copy(obs, obstacles)
	if p.MinPathSamples < 2 {
		p.MinPathSamples = 2
	}
	if p.MaxPathSamples < p.MinPathSamples {
		p.MaxPathSamples = p.MinPathSamples
	}
	if p.PathSampleStep <= 0 {
		p.PathSampleStep = DefaultParams().PathSampleStep
	}
	return &Field{Bounds: b, Obstacles: obs, Params: p}
}

// Probe identifies who is asking a free-space question. Others is read-only
// here; Self is skipped when scanning it.
type Probe struct {
	Self    string
	OwnDesk int
	Others  map[string]mathx.Vec2
}

// Static is the probe used for checks against furniture only.
func Static() Probe { return Probe{OwnDesk: -1} }

func (f *Field) PositionFree(p mathx.Vec2, probe Probe) bool {
	for i, o := range f.Obstacles {
		limit := o.Radius + f.Params.Clearance
		if i == probe.OwnDesk {
			limit = o.Radius * f.Params.OwnDeskRadiusScale
		}
		if mathx.Dist(p, o.Pos) < limit {
			return false
		}
	}
	sep := f.Params.MinAgentSeparation
	for id, q := range probe.Others {
		if id == probe.Self {
			continue
		}
		if mathx.Dist(p, q) < sep {
			return false
		}
	}
	return true
}

// PathSamples is the number of points PathFree tests on a segment of the
// given length, endpoints included.
func (f *Field) PathSamples(length float64) int {
	n := int(math.Ceil(length/f.Params.PathSampleStep)) + 1
	if n < f.Params.MinPathSamples {
		n = f.Params.MinPathSamples
	}
	if n > f.Params.MaxPathSamples {
		n = f.Params.MaxPathSamples
	}
	return n
}

// PathFree approximates a segment test by sampling; it may reject clear
// segments but never accepts one whose samples touch an obstacle.
func (f *Field) PathFree(a, b mathx.Vec2, probe Probe) bool {
	n := f.PathSamples(mathx.Dist(a, b))
	for i := 0; i < n; i++ {
		t := float64(i) / float64(n-1)
		if !f.PositionFree(mathx.Lerp(a, b, t), probe) {
			return false
		}
	}
	return true
}

const deskMatchEpsilon = 0.05

// OwnDeskIndex returns the index of the obstacle that is agentID's desk, or -1.
func (f *Field) OwnDeskIndex(agentID string, desk mathx.Vec2) int {
	for i, o := range f.Obstacles {
		if o.Owner != "" && o.Owner == agentID {
			return i
		}
	}
	for i, o := range f.Obstacles {
		if o.Owner == "" && mathx.Dist(o.Pos, desk) <= deskMatchEpsilon {
			return i
		}
	}
	return -1
}
