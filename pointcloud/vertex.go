// Package pointcloud defines the colored vertices produced by back-projecting a depth frame and
// the organized grid that holds them.
package pointcloud

import (
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
)

// InvalidCoordinate is written into every component of an invalid vertex position.
var InvalidCoordinate = math.Inf(-1)

// Vertex is a homogeneous world position with a color. A vertex built from a pixel without depth
// is invalid: its position is InvalidCoordinate in all four components and its color is zero.
type Vertex struct {
	Position mgl64.Vec4
	Color    color.NRGBA

	valid bool
}

// NewVertex returns a valid vertex.
func NewVertex(pos mgl64.Vec4, c color.NRGBA) Vertex {
	return Vertex{Position: pos, Color: c, valid: true}
}

// InvalidVertex returns the vertex stored for pixels without depth.
func InvalidVertex() Vertex {
	inv := InvalidCoordinate
	return Vertex{Position: mgl64.Vec4{inv, inv, inv, inv}}
}

// IsValid reports whether the vertex carries a measured position.
func (v Vertex) IsValid() bool {
	return v.valid
}

// Point returns the dehomogenized position. The second return is false for invalid vertices.
func (v Vertex) Point() (r3.Vector, bool) {
	if !v.valid {
		return r3.Vector{}, false
	}
	p := v.Position
	if p[3] == 1 {
		return r3.Vector{X: p[0], Y: p[1], Z: p[2]}, true
	}
	return r3.Vector{X: p[0] / p[3], Y: p[1] / p[3], Z: p[2] / p[3]}, true
}

// Distance returns the euclidean distance between the dehomogenized positions of two valid vertices.
func Distance(a, b Vertex) float64 {
	pa, _ := a.Point()
	pb, _ := b.Point()
	return pa.Distance(pb)
}
