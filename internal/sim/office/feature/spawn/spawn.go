package spawn

import (
	"math"
	"math/rand"

	"tenacitos.ai/internal/sim/office/logic/field"
	"tenacitos.ai/internal/sim/office/logic/mathx"
)

// Stage names the tier that produced a spawn position.
type Stage string

const (
	StageRing   Stage = "RING"
	StageRoom   Stage = "ROOM"
	StageAnchor Stage = "ANCHOR"
)

type Params struct {
	RingMin      float64
	RingMax      float64
	RingAttempts int
	RoomAttempts int
	RoomMargin   float64
}

func DefaultParams() Params {
	return Params{
		RingMin:      0.9,
		RingMax:      1.8,
		RingAttempts: 40,
		RoomAttempts: 80,
		RoomMargin:   0.8,
	}
}

// Resolve places an agent that has just appeared. It tries a ring around the
// anchor, then the whole room, and finally returns the anchor itself, so it
// always yields a position inside the field bounds.
func Resolve(rng *rand.Rand, f *field.Field, probe field.Probe, anchor mathx.Vec2, p Params) (mathx.Vec2, Stage) {
	if pos, ok := ringSearch(rng, f, probe, anchor, p); ok {
		return pos, StageRing
	}
	if pos, ok := roomSearch(rng, f, probe, p); ok {
		return pos, StageRoom
	}
	return f.Bounds.Clamp(anchor), StageAnchor
}

func ringSearch(rng *rand.Rand, f *field.Field, probe field.Probe, anchor mathx.Vec2, p Params) (mathx.Vec2, bool) {
	for i := 0; i < p.RingAttempts; i++ {
		angle := rng.Float64() * 2 * math.Pi
		r := p.RingMin + rng.Float64()*(p.RingMax-p.RingMin)
		c := mathx.Vec2{X: anchor.X + math.Cos(angle)*r, Z: anchor.Z + math.Sin(angle)*r}
		if !f.Bounds.Contains(c) {
			continue
		}
		if f.PositionFree(c, probe) {
			return c, true
		}
	}
	return mathx.Vec2{}, false
}

func roomSearch(rng *rand.Rand, f *field.Field, probe field.Probe, p Params) (mathx.Vec2, bool) {
	in := f.Bounds.Inset(p.RoomMargin)
	for i := 0; i < p.RoomAttempts; i++ {
		c := mathx.Vec2{
			X: in.MinX + rng.Float64()*in.Width(),
			Z: in.MinZ + rng.Float64()*in.Depth(),
		}
		if f.PositionFree(c, probe) {
			return c, true
		}
	}
	return mathx.Vec2{}, false
}
