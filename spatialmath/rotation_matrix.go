package spatialmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"
)

// RotationMatrix is a 3x3 matrix in row major order.
// m[3*r + c] is the element in the r'th row and c'th col.
type RotationMatrix struct {
	mat [9]float64
}

// NewRotationMatrix creates the rotation matrix from a slice of 9 row-major values.
func NewRotationMatrix(m []float64) (*RotationMatrix, error) {
	if len(m) != 9 {
		return nil, errors.Errorf("input slice has %d elements, need exactly 9", len(m))
	}
	mat := [9]float64{}
	copy(mat[:], m)
	return &RotationMatrix{mat}, nil
}

// NewRotationMatrixFromMat3 creates the rotation matrix from the upper-left block of a transform.
func NewRotationMatrixFromMat3(m mgl64.Mat3) *RotationMatrix {
	rm := &RotationMatrix{}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			rm.mat[3*r+c] = m.At(r, c)
		}
	}
	return rm
}

// At returns the float corresponding to the element at the specified location.
func (rm *RotationMatrix) At(row, col int) float64 {
	return rm.mat[3*row+col]
}

// Row returns the a 3 element vector corresponding to the specified row.
func (rm *RotationMatrix) Row(row int) r3.Vector {
	return r3.Vector{X: rm.mat[3*row], Y: rm.mat[3*row+1], Z: rm.mat[3*row+2]}
}

// Col returns the a 3 element vector corresponding to the specified col.
func (rm *RotationMatrix) Col(col int) r3.Vector {
	return r3.Vector{X: rm.mat[col], Y: rm.mat[3+col], Z: rm.mat[6+col]}
}

// Mat3 returns the matrix as an mgl64 3x3 matrix.
func (rm *RotationMatrix) Mat3() mgl64.Mat3 {
	return mgl64.Mat3FromRows(
		mgl64.Vec3{rm.mat[0], rm.mat[1], rm.mat[2]},
		mgl64.Vec3{rm.mat[3], rm.mat[4], rm.mat[5]},
		mgl64.Vec3{rm.mat[6], rm.mat[7], rm.mat[8]},
	)
}

// Mul returns the product of the rotation matrix with a column vector.
func (rm *RotationMatrix) Mul(v r3.Vector) r3.Vector {
	return r3.Vector{X: rm.Row(0).Dot(v), Y: rm.Row(1).Dot(v), Z: rm.Row(2).Dot(v)}
}

// Det returns the determinant; +1 for a proper rotation, -1 for a reflection.
func (rm *RotationMatrix) Det() float64 {
	return rm.Row(0).Dot(rm.Row(1).Cross(rm.Row(2)))
}

// RotationMatrix returns the orientation in rotation matrix representation.
func (rm *RotationMatrix) RotationMatrix() *RotationMatrix {
	return rm
}

// Quaternion returns orientation in quaternion representation, using Shepperd's method to pick
// the numerically largest pivot.
func (rm *RotationMatrix) Quaternion() quat.Number {
	m := rm.mat
	trace := m[0] + m[4] + m[8]
	var q quat.Number
	switch {
	case trace > 0:
		s := 0.5 / math.Sqrt(trace+1)
		q = quat.Number{Real: 0.25 / s, Imag: (m[7] - m[5]) * s, Jmag: (m[2] - m[6]) * s, Kmag: (m[3] - m[1]) * s}
	case m[0] > m[4] && m[0] > m[8]:
		s := 2 * math.Sqrt(1+m[0]-m[4]-m[8])
		q = quat.Number{Real: (m[7] - m[5]) / s, Imag: 0.25 * s, Jmag: (m[1] + m[3]) / s, Kmag: (m[2] + m[6]) / s}
	case m[4] > m[8]:
		s := 2 * math.Sqrt(1+m[4]-m[0]-m[8])
		q = quat.Number{Real: (m[2] - m[6]) / s, Imag: (m[1] + m[3]) / s, Jmag: 0.25 * s, Kmag: (m[5] + m[7]) / s}
	default:
		s := 2 * math.Sqrt(1+m[8]-m[0]-m[4])
		q = quat.Number{Real: (m[3] - m[1]) / s, Imag: (m[2] + m[6]) / s, Jmag: (m[5] + m[7]) / s, Kmag: 0.25 * s}
	}
	return q
}

// RotationMatrixAlmostEqual compares two rotation matrices element-wise.
func RotationMatrixAlmostEqual(a, b *RotationMatrix, tol float64) bool {
	for i := range a.mat {
		if math.Abs(a.mat[i]-b.mat[i]) > tol {
			return false
		}
	}
	return true
}
