package registration

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/rgbdrecon/spatialmath"
)

// Rigid2DResidual is the weighted distance between target and source after rotating source by
// params[0] radians and translating it by (params[1], params[2]).
func Rigid2DResidual(source, target r2.Point, weight float64) Residual {
	return func(params []float64) float64 {
		moved := ApplyRigid2D(params, source)
		return weight * moved.Sub(target).Norm()
	}
}

// ApplyRigid2D rotates p by params[0] and translates it by (params[1], params[2]).
func ApplyRigid2D(params []float64, p r2.Point) r2.Point {
	sin, cos := math.Sincos(params[0])
	return r2.Point{
		X: cos*p.X - sin*p.Y + params[1],
		Y: sin*p.X + cos*p.Y + params[2],
	}
}

// NewRigid2DProblem builds one residual per weighted correspondence, starting from no rotation
// and no translation. A nil weights slice weighs every pair equally.
func NewRigid2DProblem(source, target []r2.Point, weights []float64) (*Problem, error) {
	if len(source) != len(target) {
		return nil, errors.Errorf("%d source points but %d target points", len(source), len(target))
	}
	if weights != nil && len(weights) != len(source) {
		return nil, errors.Errorf("%d weights for %d correspondences", len(weights), len(source))
	}
	p := &Problem{Initial: []float64{0, 0, 0}, Names: []string{"angle", "tx", "ty"}}
	for i := range source {
		w := 1.
		if weights != nil {
			w = weights[i]
		}
		p.AddResidual(Rigid2DResidual(source[i], target[i], w))
	}
	return p, nil
}

// Rigid2DPose lifts a solved (angle, tx, ty) into a 3D pose rotating about Z.
func Rigid2DPose(params []float64) spatialmath.Pose {
	half := params[0] / 2
	return spatialmath.NewPose(
		r3.Vector{X: params[1], Y: params[2]},
		spatialmath.NewQuaternion(math.Cos(half), 0, 0, math.Sin(half)),
	)
}

// QuadricSurfaceResidual is the vertical distance from p to the surface z = (x²/a − y²/b) / c with
// params = (a, b, c).
func QuadricSurfaceResidual(p r3.Vector) Residual {
	return func(params []float64) float64 {
		return p.Z - (p.X*p.X/params[0]-p.Y*p.Y/params[1])/params[2]
	}
}

// NewQuadricSurfaceProblem builds one residual per sample, starting from a = b = c = 1.
func NewQuadricSurfaceProblem(points []r3.Vector) *Problem {
	p := &Problem{Initial: []float64{1, 1, 1}, Names: []string{"a", "b", "c"}}
	for _, pt := range points {
		p.AddResidual(QuadricSurfaceResidual(pt))
	}
	return p
}
