package spatialmath

import (
	"github.com/golang/geo/r3"
)

// Triangle is three points and the unit normal implied by their counter-clockwise order.
type Triangle struct {
	p0 r3.Vector
	p1 r3.Vector
	p2 r3.Vector

	normal r3.Vector
}

// NewTriangle creates a Triangle from three points. The winding p0 -> p1 -> p2 fixes the normal.
func NewTriangle(p0, p1, p2 r3.Vector) *Triangle {
	return &Triangle{
		p0:     p0,
		p1:     p1,
		p2:     p2,
		normal: PlaneNormal(p0, p1, p2),
	}
}

// PlaneNormal returns the unit normal of the plane through three points. Degenerate input returns
// the zero vector.
func PlaneNormal(p0, p1, p2 r3.Vector) r3.Vector {
	n := p1.Sub(p0).Cross(p2.Sub(p0))
	if n.Norm2() == 0 {
		return r3.Vector{}
	}
	return n.Normalize()
}

// Points returns the vertices of the triangle in winding order.
func (t *Triangle) Points() []r3.Vector {
	return []r3.Vector{t.p0, t.p1, t.p2}
}

// Normal returns the unit normal.
func (t *Triangle) Normal() r3.Vector {
	return t.normal
}

// Area returns the area of the triangle.
func (t *Triangle) Area() float64 {
	return 0.5 * t.p1.Sub(t.p0).Cross(t.p2.Sub(t.p0)).Norm()
}

// Centroid returns the mean of the three vertices.
func (t *Triangle) Centroid() r3.Vector {
	return t.p0.Add(t.p1).Add(t.p2).Mul(1. / 3.)
}

// LongestEdge returns the length of the longest of the three edges.
func (t *Triangle) LongestEdge() float64 {
	longest := t.p0.Distance(t.p1)
	if d := t.p1.Distance(t.p2); d > longest {
		longest = d
	}
	if d := t.p2.Distance(t.p0); d > longest {
		longest = d
	}
	return longest
}

// Transform returns a new triangle with every vertex transformed by the pose.
func (t *Triangle) Transform(p Pose) *Triangle {
	return NewTriangle(TransformPoint(p, t.p0), TransformPoint(p, t.p1), TransformPoint(p, t.p2))
}
