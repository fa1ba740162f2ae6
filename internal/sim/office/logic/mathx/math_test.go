package mathx

import (
	"math"
	"testing"
)

func TestFacingAngle(t *testing.T) {
	if got := FacingAngle(Vec2{}, Vec2{Z: 1}); got != 0 {
		t.Fatalf("facing +Z = %v", got)
	}
	if got := FacingAngle(Vec2{}, Vec2{X: 1}); math.Abs(got-math.Pi/2) > 1e-9 {
		t.Fatalf("facing +X = %v", got)
	}
}

func TestHashStringStable(t *testing.T) {
	if HashString(7, "main") != HashString(7, "main") {
		t.Fatalf("hash not stable")
	}
	if HashString(7, "main") == HashString(7, "ops") {
		t.Fatalf("distinct ids collided")
	}
	if HashString(7, "main") == HashString(8, "main") {
		t.Fatalf("seed ignored")
	}
}

func TestLerpAndDist(t *testing.T) {
	p := Lerp(Vec2{X: 0, Z: 0}, Vec2{X: 4, Z: 2}, 0.5)
	if p != (Vec2{X: 2, Z: 1}) {
		t.Fatalf("lerp=%+v", p)
	}
	if d := Dist(Vec2{}, Vec2{X: 3, Z: 4}); d != 5 {
		t.Fatalf("dist=%v", d)
	}
}
