package pointcloud

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/rgbdrecon/rimage"
)

// Organized is a point cloud that keeps the pixel layout of the frame it came from: vertex i
// belongs to pixel (i mod width, i div width).
type Organized struct {
	grid     rimage.Grid
	vertices []Vertex
}

// NewOrganized returns a width x height cloud of invalid vertices.
func NewOrganized(width, height int) *Organized {
	vs := make([]Vertex, width*height)
	inv := InvalidVertex()
	for i := range vs {
		vs[i] = inv
	}
	return &Organized{grid: rimage.NewGrid(width, height), vertices: vs}
}

// NewOrganizedFromVertices wraps a row-major vertex slice.
func NewOrganizedFromVertices(width, height int, vs []Vertex) (*Organized, error) {
	if len(vs) != width*height {
		return nil, errors.Errorf("have %d vertices, need %d for %dx%d", len(vs), width*height, width, height)
	}
	return &Organized{grid: rimage.NewGrid(width, height), vertices: vs}, nil
}

// Width returns the number of columns.
func (o *Organized) Width() int {
	return o.grid.Width()
}

// Height returns the number of rows.
func (o *Organized) Height() int {
	return o.grid.Height()
}

// Size is the number of vertices, valid or not.
func (o *Organized) Size() int {
	return len(o.vertices)
}

// Grid returns the pixel grid the vertices are laid out on.
func (o *Organized) Grid() rimage.Grid {
	return o.grid
}

// At returns the vertex for pixel (x, y).
func (o *Organized) At(x, y int) Vertex {
	return o.vertices[o.grid.Index(x, y)]
}

// Index returns the i'th vertex in row-major order.
func (o *Organized) Index(i int) Vertex {
	return o.vertices[i]
}

// Set replaces the i'th vertex.
func (o *Organized) Set(i int, v Vertex) {
	o.vertices[i] = v
}

// Vertices returns the backing slice.
func (o *Organized) Vertices() []Vertex {
	return o.vertices
}

// ValidCount is the number of vertices with a measured position.
func (o *Organized) ValidCount() int {
	n := 0
	for _, v := range o.vertices {
		if v.IsValid() {
			n++
		}
	}
	return n
}

// Iterate calls fn for every valid vertex in row-major order until fn returns false.
func (o *Organized) Iterate(fn func(i int, p r3.Vector, v Vertex) bool) {
	for i, v := range o.vertices {
		p, ok := v.Point()
		if !ok {
			continue
		}
		if !fn(i, p, v) {
			return
		}
	}
}

// ValidPoints returns the dehomogenized positions of the valid vertices.
func (o *Organized) ValidPoints() []r3.Vector {
	pts := make([]r3.Vector, 0, o.ValidCount())
	o.Iterate(func(_ int, p r3.Vector, _ Vertex) bool {
		pts = append(pts, p)
		return true
	})
	return pts
}

// BoundingBox returns the min and max corners of the valid points. ok is false when no vertex is valid.
func (o *Organized) BoundingBox() (lo, hi r3.Vector, ok bool) {
	o.Iterate(func(_ int, p r3.Vector, _ Vertex) bool {
		if !ok {
			lo, hi, ok = p, p, true
			return true
		}
		lo = r3.Vector{X: min(lo.X, p.X), Y: min(lo.Y, p.Y), Z: min(lo.Z, p.Z)}
		hi = r3.Vector{X: max(hi.X, p.X), Y: max(hi.Y, p.Y), Z: max(hi.Z, p.Z)}
		return true
	})
	return lo, hi, ok
}
