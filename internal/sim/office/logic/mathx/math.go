package mathx

import "math"

// Vec2 is a point on the floor plane. The vertical axis is fixed per scene.
type Vec2 struct {
	X float64 `json:"x" yaml:"x"`
	Z float64 `json:"z" yaml:"z"`
}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{X: v.X + o.X, Z: v.Z + o.Z} }
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{X: v.X - o.X, Z: v.Z - o.Z} }

func (v Vec2) Scale(k float64) Vec2 { return Vec2{X: v.X * k, Z: v.Z * k} }

func (v Vec2) Len() float64 { return math.Hypot(v.X, v.Z) }

func Dist(a, b Vec2) float64 { return a.Sub(b).Len() }

// Lerp returns a + (b-a)*t.
func Lerp(a, b Vec2, t float64) Vec2 {
	return Vec2{X: a.X + (b.X-a.X)*t, Z: a.Z + (b.Z-a.Z)*t}
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// FacingAngle is the yaw that turns an avatar at from toward to
// (rotation about the vertical axis, 0 = +Z).
func FacingAngle(from, to Vec2) float64 {
	return math.Atan2(to.X-from.X, to.Z-from.Z)
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// HashString derives a stable 64-bit value from seed and s, used to seed
// per-agent random sources independent of join order.
func HashString(seed int64, s string) uint64 {
	v := uint64(seed)
	for i := 0; i < len(s); i++ {
		v = mix64(v ^ uint64(s[i]))
	}
	return mix64(v ^ uint64(len(s)))
}
