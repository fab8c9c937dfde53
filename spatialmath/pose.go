package spatialmath

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
)

// Pose represents a 4x4 homogeneous transform. Camera extrinsics, trajectory samples and
// estimated alignments are all Poses.
type Pose interface {
	Point() r3.Vector
	Orientation() Orientation
	Matrix() mgl64.Mat4
}

type matrixPose struct {
	m mgl64.Mat4
}

// NewZeroPose returns a pose at (0,0,0) with same orientation as whatever frame it is placed in.
func NewZeroPose() Pose {
	return &matrixPose{mgl64.Ident4()}
}

// NewPose takes in a position and orientation and returns a Pose.
func NewPose(p r3.Vector, o Orientation) Pose {
	if o == nil {
		o = NewZeroOrientation()
	}
	rot := o.RotationMatrix()
	m := mgl64.Ident4()
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m.Set(r, c, rot.At(r, c))
		}
	}
	m.Set(0, 3, p.X)
	m.Set(1, 3, p.Y)
	m.Set(2, 3, p.Z)
	return &matrixPose{m}
}

// NewPoseFromPoint takes in a cartesian (x,y,z) and stores it as a vector.
func NewPoseFromPoint(point r3.Vector) Pose {
	return &matrixPose{mgl64.Translate3D(point.X, point.Y, point.Z)}
}

// NewPoseFromMatrix wraps an arbitrary invertible homogeneous matrix. Sensor extrinsics are not
// guaranteed to be perfectly orthonormal, so no validation is applied.
func NewPoseFromMatrix(m mgl64.Mat4) Pose {
	return &matrixPose{m}
}

// NewPoseFromRows builds a pose from a row-major 4x4 array.
func NewPoseFromRows(rows [4][4]float64) Pose {
	return &matrixPose{mgl64.Mat4FromRows(
		mgl64.Vec4(rows[0]),
		mgl64.Vec4(rows[1]),
		mgl64.Vec4(rows[2]),
		mgl64.Vec4(rows[3]),
	)}
}

func (p *matrixPose) Point() r3.Vector {
	return r3.Vector{X: p.m.At(0, 3), Y: p.m.At(1, 3), Z: p.m.At(2, 3)}
}

func (p *matrixPose) Orientation() Orientation {
	return NewRotationMatrixFromMat3(p.m.Mat3())
}

func (p *matrixPose) Matrix() mgl64.Mat4 {
	return p.m
}

func (p *matrixPose) String() string {
	rows := make([]string, 4)
	for r := 0; r < 4; r++ {
		row := p.m.Row(r)
		rows[r] = fmt.Sprintf("%g %g %g %g", row[0], row[1], row[2], row[3])
	}
	return strings.Join(rows, "\n")
}

// Compose treats Poses as functions A(x) and B(x), and produces a new function C(x) = A(B(x)).
func Compose(a, b Pose) Pose {
	return &matrixPose{a.Matrix().Mul4(b.Matrix())}
}

// PoseInverse returns a Pose that is the inverse of the given pose. The general 4x4 inverse is
// used so that slightly non-rigid sensor calibrations invert exactly as given.
func PoseInverse(p Pose) Pose {
	return &matrixPose{p.Matrix().Inv()}
}

// PoseBetween returns the difference between two Poses such that Compose(a, PoseBetween(a, b)) == b.
func PoseBetween(a, b Pose) Pose {
	return Compose(PoseInverse(a), b)
}

// TransformPoint applies the pose to a cartesian point.
func TransformPoint(p Pose, pt r3.Vector) r3.Vector {
	v := p.Matrix().Mul4x1(mgl64.Vec4{pt.X, pt.Y, pt.Z, 1})
	return r3.Vector{X: v[0] / v[3], Y: v[1] / v[3], Z: v[2] / v[3]}
}

// TransformHomogeneous applies the pose to a homogeneous point without dehomogenizing.
func TransformHomogeneous(p Pose, v mgl64.Vec4) mgl64.Vec4 {
	return p.Matrix().Mul4x1(v)
}

// PoseAlmostEqual will return a bool describing whether 2 poses are approximately the same.
func PoseAlmostEqual(a, b Pose) bool {
	return PoseAlmostEqualEps(a, b, 1e-6)
}

// PoseAlmostEqualEps compares every matrix element of the two poses against epsilon.
func PoseAlmostEqualEps(a, b Pose, epsilon float64) bool {
	am, bm := a.Matrix(), b.Matrix()
	for i := range am {
		if math.Abs(am[i]-bm[i]) > epsilon {
			return false
		}
	}
	return true
}

// PoseAlmostCoincident will return a bool describing whether 2 poses approximately are at the same 3D coordinate location
// and share an orientation.
func PoseAlmostCoincident(a, b Pose) bool {
	const epsilon = 1e-8
	return R3VectorAlmostEqual(a.Point(), b.Point(), epsilon) && QuaternionAlmostEqual(
		a.Orientation().Quaternion(), b.Orientation().Quaternion(), epsilon)
}
