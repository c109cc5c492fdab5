// Package geo holds the planar vector math used by the simulation. The lot
// lives in the XZ plane; Y (elevation) is ignored everywhere.
package geo

import "math"

// epsilon below which a vector is treated as zero length.
const epsilon = 1e-9

// Vec2 is a point or direction in the XZ plane.
type Vec2 struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

// V is a shorthand constructor for Vec2.
func V(x, z float64) Vec2 {
	return Vec2{X: x, Z: z}
}

// Add returns v + w.
func (v Vec2) Add(w Vec2) Vec2 {
	return Vec2{v.X + w.X, v.Z + w.Z}
}

// Sub returns v - w.
func (v Vec2) Sub(w Vec2) Vec2 {
	return Vec2{v.X - w.X, v.Z - w.Z}
}

// Scale returns v * s.
func (v Vec2) Scale(s float64) Vec2 {
	return Vec2{v.X * s, v.Z * s}
}

// Length returns the Euclidean length of the vector.
func (v Vec2) Length() float64 {
	return math.Hypot(v.X, v.Z)
}

// IsZero reports whether v is too short to carry a direction.
func (v Vec2) IsZero() bool {
	return v.Length() < epsilon
}

// IsFinite reports whether both components are real numbers.
func (v Vec2) IsFinite() bool {
	return Finite(v.X, v.Z)
}

// Finite reports whether every value is neither NaN nor infinite.
func Finite(values ...float64) bool {
	for _, f := range values {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// Normalize returns the unit vector in the same direction, or the zero
// vector when v has no usable length.
func (v Vec2) Normalize() Vec2 {
	l := v.Length()
	if l < epsilon {
		return Vec2{}
	}
	return Vec2{v.X / l, v.Z / l}
}

// Dot returns the dot product of v and w.
func (v Vec2) Dot(w Vec2) float64 {
	return v.X*w.X + v.Z*w.Z
}

// Cross returns the 2D cross product (Y component of the 3D cross).
func (v Vec2) Cross(w Vec2) float64 {
	return v.X*w.Z - v.Z*w.X
}

// Distance returns the Euclidean distance from v to w.
func (v Vec2) Distance(w Vec2) float64 {
	return v.Sub(w).Length()
}

// SignedAngle returns the angle in (-π, π] that rotates v onto w, measured
// from +X toward +Z. Zero when either vector is zero length.
func (v Vec2) SignedAngle(w Vec2) float64 {
	if v.IsZero() || w.IsZero() {
		return 0
	}
	return math.Atan2(v.Cross(w), v.Dot(w))
}

// Forward returns the unit direction a body with the given heading faces.
// Heading 0 faces +Z and grows toward +X, matching a Y-up scene graph's
// rotation about the vertical axis.
func Forward(heading float64) Vec2 {
	return Vec2{math.Sin(heading), math.Cos(heading)}
}

// Heading returns the heading that faces along v. Callers must guard zero
// vectors; the result for them is 0.
func Heading(v Vec2) float64 {
	if v.IsZero() {
		return 0
	}
	return math.Atan2(v.X, v.Z)
}

// NormalizeAngle wraps a into (-π, π].
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

// Approach moves current toward target by at most step.
func Approach(current, target, step float64) float64 {
	if current < target {
		return math.Min(current+step, target)
	}
	return math.Max(current-step, target)
}
