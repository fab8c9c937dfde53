// Package registration estimates rigid transforms between corresponding point sets and fits
// small parametric models by nonlinear least squares.
package registration

import (
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/rgbdrecon/spatialmath"
)

// ProcrustesAligner estimates the rigid transform between two point sets with known
// correspondence in closed form.
type ProcrustesAligner struct {
	// AllowReflection skips the determinant correction, so a reflected U·Vᵗ is returned as is.
	AllowReflection bool
}

// Centroid returns the arithmetic mean of the points.
func Centroid(points []r3.Vector) r3.Vector {
	var sum r3.Vector
	for _, p := range points {
		sum = sum.Add(p)
	}
	return sum.Mul(1 / float64(len(points)))
}

// centered returns the points minus their centroid as the rows of an N×3 matrix.
func centered(points []r3.Vector, mean r3.Vector) *mat.Dense {
	m := mat.NewDense(len(points), 3, nil)
	for i, p := range points {
		d := p.Sub(mean)
		m.SetRow(i, []float64{d.X, d.Y, d.Z})
	}
	return m
}

// EstimatePose returns the pose that maps source[i] onto target[i] in the least squares sense.
// The sets must be the same non-zero length; anything else is a programming error and panics.
// Collinear or coplanar input leaves the rotation under-determined and is not detected.
func (pa ProcrustesAligner) EstimatePose(source, target []r3.Vector) spatialmath.Pose {
	if len(source) != len(target) {
		panic(fmt.Sprintf("procrustes: %d source points but %d target points", len(source), len(target)))
	}
	if len(source) == 0 {
		panic("procrustes: no correspondences")
	}
	sourceMean := Centroid(source)
	targetMean := Centroid(target)

	rotation := pa.estimateRotation(centered(source, sourceMean), centered(target, targetMean))
	translation := targetMean.Sub(sourceMean)

	// Translate by t, then rotate about the target centroid: R·(x + t − μT) + μT.
	column := rotation.Mul(translation.Sub(targetMean)).Add(targetMean)
	return spatialmath.NewPose(column, rotation)
}

func (pa ProcrustesAligner) estimateRotation(source, target *mat.Dense) *spatialmath.RotationMatrix {
	var cov mat.Dense
	cov.Mul(target.T(), source)

	var svd mat.SVD
	if ok := svd.Factorize(&cov, mat.SVDFull); !ok {
		panic("procrustes: SVD of the cross-covariance did not converge")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	d := 1.
	if !pa.AllowReflection && mat.Det(&u)*mat.Det(&v) < 0 {
		d = -1
	}
	var rot mat.Dense
	rot.Product(&u, mat.NewDiagDense(3, []float64{1, 1, d}), v.T())

	data := make([]float64, 0, 9)
	for r := 0; r < 3; r++ {
		data = append(data, mat.Row(nil, r, &rot)...)
	}
	rm, err := spatialmath.NewRotationMatrix(data)
	if err != nil {
		panic(err)
	}
	return rm
}
