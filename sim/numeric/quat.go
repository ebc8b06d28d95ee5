package numeric

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"
)

// Quat is a scalar-first attitude quaternion.
type Quat [4]float64

// Identity is the null rotation.
var Identity = Quat{1, 0, 0, 0}

func (q Quat) mgl() mgl64.Quat {
	return mgl64.Quat{W: q[0], V: mgl64.Vec3{q[1], q[2], q[3]}}
}

func fromMgl(q mgl64.Quat) Quat {
	return Quat{q.W, q.V[0], q.V[1], q.V[2]}
}

// Normalize returns q with unit norm.
func (q Quat) Normalize() Quat {
	return fromMgl(q.mgl().Normalize())
}

// Compose returns the rotation q1 followed by q2.
func Compose(q1, q2 Quat) Quat {
	return fromMgl(q1.mgl().Mul(q2.mgl()))
}

// Inverse returns the conjugate of q.
func (q Quat) Inverse() Quat {
	return Quat{q[0], -q[1], -q[2], -q[3]}
}

// ToRot returns the fixed-to-body rotation matrix of q after normalizing it.
func (q Quat) ToRot() *mat.Dense {
	m := q.mgl().Normalize().Mat4()
	r := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r.Set(i, j, m.At(j, i))
		}
	}
	return r
}

// FromRot returns the quaternion of a fixed-to-body rotation matrix.
func FromRot(r mat.Matrix) Quat {
	var m mgl64.Mat4
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.Set(j, i, r.At(i, j))
		}
	}
	m.Set(3, 3, 1)
	q := fromMgl(mgl64.Mat4ToQuat(m).Normalize())
	if q[0] < 0 {
		return Quat{-q[0], -q[1], -q[2], -q[3]}
	}
	return q
}

// Rotate expresses the fixed-frame vector v in the body frame of q.
func (q Quat) Rotate(v Vec3) Vec3 {
	r := q.mgl().Normalize().Inverse().Rotate(mgl64.Vec3{v[0], v[1], v[2]})
	return Vec3{r[0], r[1], r[2]}
}

// Propagate advances q by the body rate w over dt and renormalizes it.
func Propagate(q Quat, w Vec3, dt float64) Quat {
	n := Sqrt(w[0]*w[0] + w[1]*w[1] + w[2]*w[2])
	x := n * dt / 2
	if math.Abs(x) <= 1e-9 {
		return q.Normalize()
	}
	s := math.Sin(x) / n
	dq := mgl64.Quat{W: math.Cos(x), V: mgl64.Vec3{w[0] * s, w[1] * s, w[2] * s}}
	return fromMgl(q.mgl().Mul(dq).Normalize())
}

// Continuity flips the sign of q when it jumped away from prev, so successive
// samples of the same attitude stay on the same hemisphere.
func Continuity(q, prev Quat) Quat {
	d := 0.0
	for i := range q {
		d += (q[i] - prev[i]) * (q[i] - prev[i])
	}
	if Sqrt(d) > 1 {
		return Quat{-q[0], -q[1], -q[2], -q[3]}
	}
	return q
}
