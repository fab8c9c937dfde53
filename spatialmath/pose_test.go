package spatialmath

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func rotZ(theta float64) Orientation {
	return NewQuaternion(math.Cos(theta/2), 0, 0, math.Sin(theta/2))
}

func TestPoseBasics(t *testing.T) {
	p := NewPose(r3.Vector{X: 2, Y: 3, Z: 0}, rotZ(math.Pi/2))
	test.That(t, p.Point(), test.ShouldResemble, r3.Vector{X: 2, Y: 3, Z: 0})

	moved := TransformPoint(p, r3.Vector{X: 1, Y: 0, Z: 0})
	test.That(t, moved.X, test.ShouldAlmostEqual, 2)
	test.That(t, moved.Y, test.ShouldAlmostEqual, 4)
	test.That(t, moved.Z, test.ShouldAlmostEqual, 0)

	test.That(t, OrientationAlmostEqual(p.Orientation(), rotZ(math.Pi/2)), test.ShouldBeTrue)
	test.That(t, PoseAlmostCoincident(NewPose(r3.Vector{}, nil), NewZeroPose()), test.ShouldBeTrue)
}

func TestComposeAndInverse(t *testing.T) {
	a := NewPose(r3.Vector{X: 1, Y: -2, Z: 3}, NewQuaternion(0.9, 0.1, -0.3, 0.2))
	b := NewPose(r3.Vector{X: -4, Y: 0.5, Z: 2}, NewQuaternion(0.2, 0.7, 0.1, -0.4))

	pt := r3.Vector{X: 0.3, Y: 0.7, Z: -1.1}
	composed := TransformPoint(Compose(a, b), pt)
	chained := TransformPoint(a, TransformPoint(b, pt))
	test.That(t, R3VectorAlmostEqual(composed, chained, 1e-9), test.ShouldBeTrue)

	test.That(t, PoseAlmostEqual(Compose(a, PoseInverse(a)), NewZeroPose()), test.ShouldBeTrue)
	test.That(t, PoseAlmostEqual(Compose(a, PoseBetween(a, b)), b), test.ShouldBeTrue)
}

func TestNewPoseFromRows(t *testing.T) {
	p := NewPoseFromRows([4][4]float64{
		{0, -1, 0, 2},
		{1, 0, 0, 3},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	})
	test.That(t, p.Point(), test.ShouldResemble, r3.Vector{X: 2, Y: 3, Z: 0})
	test.That(t, p.Matrix().At(0, 1), test.ShouldEqual, -1.)
	test.That(t, OrientationAlmostEqual(p.Orientation(), rotZ(math.Pi/2)), test.ShouldBeTrue)

	h := TransformHomogeneous(p, mgl64.Vec4{1, 0, 0, 1})
	test.That(t, h, test.ShouldResemble, mgl64.Vec4{2, 4, 0, 1})
}

func TestRotationMatrixQuaternionRoundTrip(t *testing.T) {
	for _, o := range []Orientation{
		NewZeroOrientation(),
		rotZ(math.Pi / 3),
		rotZ(math.Pi),
		NewQuaternion(0, 1, 0, 0),
		NewQuaternion(0, 0, 1, 0),
		NewQuaternion(0.5, 0.5, 0.5, 0.5),
		NewQuaternion(0.1, 0.2, 0.9, -0.3),
	} {
		rm := o.RotationMatrix()
		test.That(t, rm.Det(), test.ShouldAlmostEqual, 1)
		test.That(t, QuaternionAlmostEqual(rm.Quaternion(), o.Quaternion(), 1e-9), test.ShouldBeTrue)
	}

	_, err := NewRotationMatrix([]float64{1, 2, 3})
	test.That(t, err, test.ShouldNotBeNil)
	rm, err := NewRotationMatrix([]float64{1, 0, 0, 0, 1, 0, 0, 0, -1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rm.Det(), test.ShouldEqual, -1.)
	test.That(t, rm.Col(2), test.ShouldResemble, r3.Vector{X: 0, Y: 0, Z: -1})
	test.That(t, rm.Mul(r3.Vector{X: 1, Y: 2, Z: 3}), test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: -3})
}

func TestParseFloatFields(t *testing.T) {
	vals, err := ParseFloatFields("  1.5 -2\t3e2 ")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, vals, test.ShouldResemble, []float64{1.5, -2, 300})

	vals, err = ParseFloatFields("")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, vals, test.ShouldBeEmpty)

	_, err = ParseFloatFields("1 two 3")
	test.That(t, err, test.ShouldNotBeNil)
}
