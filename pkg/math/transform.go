package math

import (
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/exp/constraints"
)

// Compose builds the matrix T * R * S.
func Compose(t Vec3, r Quat, s Vec3) Mat4 {
	m := r.ToMat4()
	for i := 0; i < 3; i++ {
		m[i] *= s.X
		m[4+i] *= s.Y
		m[8+i] *= s.Z
	}
	m[12], m[13], m[14] = t.X, t.Y, t.Z
	return m
}

// Decompose splits an affine matrix into translation, rotation and scale.
// A negative determinant is folded into the X scale. Shear is discarded.
func Decompose(m Mat4) (t Vec3, r Quat, s Vec3) {
	t = Vec3{m[12], m[13], m[14]}

	s = Vec3{m.Col(0).Length(), m.Col(1).Length(), m.Col(2).Length()}
	if m.Determinant3() < 0 {
		s.X = -s.X
	}
	if s.X == 0 || s.Y == 0 || s.Z == 0 {
		return t, QuatIdentity(), s
	}

	rot := Identity()
	for i := 0; i < 3; i++ {
		rot[i] = m[i] / s.X
		rot[4+i] = m[4+i] / s.Y
		rot[8+i] = m[8+i] / s.Z
	}

	q := mgl32.Mat4ToQuat(mgl32.Mat4(rot)).Normalize()
	r = Quat{X: q.V[0], Y: q.V[1], Z: q.V[2], W: q.W}
	return t, r, s
}

// Clamp returns v clamped to the range [low, high].
func Clamp[T constraints.Ordered](v, low, high T) T {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}
