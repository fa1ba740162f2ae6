package main

import (
	"fmt"
	"math"

	"tenacitos.ai/internal/observerproto"
	"tenacitos.ai/internal/sim/layout"
	"tenacitos.ai/internal/sim/office"
	"tenacitos.ai/internal/sim/office/feature/navigator"
	"tenacitos.ai/internal/sim/office/logic/field"
	"tenacitos.ai/internal/sim/office/logic/mathx"
)

const posEps = 1e-6

// verifier checks logged frames against the rules that must hold on every
// tick: finite positions inside the bounds, seated agents on their chair and
// strictly increasing ticks. Steps longer than the fastest walk speed allows
// are counted as jumps; a status flip between sampled frames can cause them.
type verifier struct {
	bounds  field.Bounds
	chairs  map[string]mathx.Vec2
	maxStep float64 // per tick

	lastTick uint64
	frames   uint64
	lastPos  map[string]observerproto.AgentView
	jumps    int
}

func newVerifier(l *layout.Layout, cfg office.Config) *verifier {
	v := &verifier{
		bounds:  l.Bounds,
		chairs:  map[string]mathx.Vec2{},
		maxStep: math.Max(cfg.Navigator.RoamSpeed, cfg.Navigator.IdleSpeed) / float64(cfg.TickRateHz),
		lastPos: map[string]observerproto.AgentView{},
	}
	for id, desk := range l.Desks {
		v.chairs[id] = navigator.AnchorsFor(desk, l.Bounds, cfg.Navigator).Chair
	}
	return v
}

func (v *verifier) Check(e office.FrameLogEntry) error {
	if v.frames > 0 && e.Tick <= v.lastTick {
		return fmt.Errorf("tick %d not after %d", e.Tick, v.lastTick)
	}
	gap := e.Tick - v.lastTick
	for _, a := range e.Agents {
		p := mathx.Vec2{X: a.Pos[0], Z: a.Pos[2]}
		if math.IsNaN(p.X) || math.IsNaN(p.Z) || math.IsInf(p.X, 0) || math.IsInf(p.Z, 0) {
			return fmt.Errorf("tick %d: %s has non-finite position", e.Tick, a.ID)
		}
		if !v.bounds.Contains(p) {
			return fmt.Errorf("tick %d: %s out of bounds at (%.3f, %.3f)", e.Tick, a.ID, p.X, p.Z)
		}
		if a.Mode == string(navigator.ModeSeated) {
			// Desks overridden by the feed are unknown here.
			if chair, ok := v.chairs[a.ID]; ok && mathx.Dist(p, chair) > posEps {
				return fmt.Errorf("tick %d: seated %s at (%.3f, %.3f), chair at (%.3f, %.3f)", e.Tick, a.ID, p.X, p.Z, chair.X, chair.Z)
			}
		}
		if prev, ok := v.lastPos[a.ID]; ok && v.frames > 0 && prev.Mode == a.Mode && a.Mode == string(navigator.ModeRoaming) {
			pp := mathx.Vec2{X: prev.Pos[0], Z: prev.Pos[2]}
			if mathx.Dist(p, pp) > v.maxStep*float64(gap)+posEps {
				v.jumps++
			}
		}
		v.lastPos[a.ID] = a
	}
	v.lastTick = e.Tick
	v.frames++
	return nil
}
