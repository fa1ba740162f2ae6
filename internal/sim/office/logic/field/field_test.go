package field

import (
	"testing"

	"tenacitos.ai/internal/sim/office/logic/mathx"
)

func testField(obs ...Obstacle) *Field {
	return New(Bounds{MinX: -8, MaxX: 8, MinZ: -7, MaxZ: 7}, obs, DefaultParams())
}

func TestPositionFreeObstacleClearance(t *testing.T) {
	f := testField(Obstacle{ID: "sofa", Pos: mathx.Vec2{X: 0, Z: 0}, Radius: 1})

	if f.PositionFree(mathx.Vec2{X: 1.2, Z: 0}, Static()) {
		t.Fatalf("point inside radius+clearance should be blocked")
	}
	if !f.PositionFree(mathx.Vec2{X: 1.5, Z: 0}, Static()) {
		t.Fatalf("point outside radius+clearance should be free")
	}
}

func TestPositionFreeOwnDeskRelaxed(t *testing.T) {
	f := testField(Obstacle{ID: "desk-main", Pos: mathx.Vec2{}, Radius: 0.9, Owner: "main"})
	chair := mathx.Vec2{Z: 0.75}

	if f.PositionFree(chair, Probe{Self: "ops", OwnDesk: -1}) {
		t.Fatalf("chair of someone else's desk should be blocked")
	}
	own := f.OwnDeskIndex("main", mathx.Vec2{})
	if own != 0 {
		t.Fatalf("own desk index=%d", own)
	}
	if !f.PositionFree(chair, Probe{Self: "main", OwnDesk: own}) {
		t.Fatalf("own chair should be free")
	}
}

func TestPositionFreeOtherAgents(t *testing.T) {
	f := testField()
	others := map[string]mathx.Vec2{
		"a": {X: 0, Z: 0},
		"b": {X: 5, Z: 5},
	}
	if f.PositionFree(mathx.Vec2{X: 0.3}, Probe{Self: "b", OwnDesk: -1, Others: others}) {
		t.Fatalf("too close to agent a")
	}
	if !f.PositionFree(mathx.Vec2{X: 0.3}, Probe{Self: "a", OwnDesk: -1, Others: others}) {
		t.Fatalf("own slot must be ignored")
	}
}

func TestPathFreeRejectsSegmentThroughObstacle(t *testing.T) {
	f := testField(Obstacle{ID: "plant", Pos: mathx.Vec2{X: 0, Z: 0}, Radius: 0.3})

	if f.PathFree(mathx.Vec2{X: -2}, mathx.Vec2{X: 2}, Static()) {
		t.Fatalf("segment crosses obstacle")
	}
	if !f.PathFree(mathx.Vec2{X: -2, Z: 2}, mathx.Vec2{X: 2, Z: 2}, Static()) {
		t.Fatalf("parallel segment should be free")
	}
}

func TestPathSamplesClamped(t *testing.T) {
	f := testField()
	if n := f.PathSamples(0); n != f.Params.MinPathSamples {
		t.Fatalf("zero length samples=%d", n)
	}
	if n := f.PathSamples(1000); n != f.Params.MaxPathSamples {
		t.Fatalf("long segment samples=%d", n)
	}
	if n := f.PathSamples(2); n != 9 {
		t.Fatalf("2 units at 0.25 step samples=%d", n)
	}
}

func TestBoundsInsetCollapses(t *testing.T) {
	b := Bounds{MinX: 0, MaxX: 1, MinZ: 0, MaxZ: 10}.Inset(2)
	if b.MinX != 0.5 || b.MaxX != 0.5 {
		t.Fatalf("x axis not collapsed: %+v", b)
	}
	if b.MinZ != 2 || b.MaxZ != 8 {
		t.Fatalf("z axis inset wrong: %+v", b)
	}
}
