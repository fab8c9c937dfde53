// Package spatialmath defines the rigid transforms and small matrix helpers shared by the
// back-projection, meshing and registration packages.
package spatialmath

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Orientation is an interface used to express the different parameterizations of the orientation
// of a rigid object or a frame of reference in 3D Euclidean space.
type Orientation interface {
	Quaternion() quat.Number
	RotationMatrix() *RotationMatrix
}

// NewZeroOrientation returns an orientatation which signifies no rotation.
func NewZeroOrientation() Orientation {
	return &quaternion{Real: 1}
}

// NewQuaternion returns the orientation described by the unit quaternion w + xi + yj + zk. The
// input is normalized; a zero quaternion yields no rotation.
func NewQuaternion(w, x, y, z float64) Orientation {
	q := quat.Number{Real: w, Imag: x, Jmag: y, Kmag: z}
	norm := quat.Abs(q)
	if norm == 0 {
		return NewZeroOrientation()
	}
	q = quat.Scale(1/norm, q)
	return (*quaternion)(&q)
}

// OrientationAlmostEqual will return a bool describing whether 2 poses have approximately the same orientation.
func OrientationAlmostEqual(o1, o2 Orientation) bool {
	return QuaternionAlmostEqual(o1.Quaternion(), o2.Quaternion(), 1e-5)
}

// OrientationBetween returns the orientation representing the difference between the two given Orientations.
func OrientationBetween(o1, o2 Orientation) Orientation {
	q := quaternion(quat.Mul(o2.Quaternion(), quat.Conj(o1.Quaternion())))
	return &q
}

// QuaternionAlmostEqual is an equality test for quaternions. q and -q describe the same rotation,
// so both signs are accepted.
func QuaternionAlmostEqual(a, b quat.Number, tol float64) bool {
	same := math.Abs(a.Real-b.Real) < tol && math.Abs(a.Imag-b.Imag) < tol &&
		math.Abs(a.Jmag-b.Jmag) < tol && math.Abs(a.Kmag-b.Kmag) < tol
	flipped := math.Abs(a.Real+b.Real) < tol && math.Abs(a.Imag+b.Imag) < tol &&
		math.Abs(a.Jmag+b.Jmag) < tol && math.Abs(a.Kmag+b.Kmag) < tol
	return same || flipped
}

type quaternion quat.Number

func (q *quaternion) Quaternion() quat.Number {
	return quat.Number(*q)
}

// RotationMatrix converts the unit quaternion into its 3x3 rotation matrix.
func (q *quaternion) RotationMatrix() *RotationMatrix {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return &RotationMatrix{mat: [9]float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	}}
}
