// Package mesh triangulates organized point clouds and reads and writes the result as OFF and PLY
// files.
package mesh

import (
	"context"

	"golang.org/x/sync/errgroup"

	"go.viam.com/rgbdrecon/pointcloud"
	"go.viam.com/rgbdrecon/spatialmath"
	"go.viam.com/rgbdrecon/utils"
)

// DefaultEdgeThreshold is the longest edge, in world units, a triangle may have and still be kept.
const DefaultEdgeThreshold = 0.1

// Triangle holds three vertex indices in winding order.
type Triangle [3]int

// Mesh is an indexed triangle mesh. Vertices keep the pixel order of the cloud they were built
// from, so invalid vertices stay in place and are never referenced by a triangle.
type Mesh struct {
	Vertices  []pointcloud.Vertex
	Triangles []Triangle
}

// NumVertices returns the number of vertices, valid or not.
func (m *Mesh) NumVertices() int {
	return len(m.Vertices)
}

// NumFaces returns the number of triangles.
func (m *Mesh) NumFaces() int {
	return len(m.Triangles)
}

// Face returns the i'th triangle as geometry.
func (m *Mesh) Face(i int) *spatialmath.Triangle {
	t := m.Triangles[i]
	p0, _ := m.Vertices[t[0]].Point()
	p1, _ := m.Vertices[t[1]].Point()
	p2, _ := m.Vertices[t[2]].Point()
	return spatialmath.NewTriangle(p0, p1, p2)
}

// SurfaceArea sums the area of every triangle.
func (m *Mesh) SurfaceArea() float64 {
	area := 0.
	for i := range m.Triangles {
		area += m.Face(i).Area()
	}
	return area
}

// Options controls BuildGridMesh. The zero value uses DefaultEdgeThreshold and runs serially.
type Options struct {
	EdgeThreshold float64
	Parallel      bool
}

func (o Options) threshold() float64 {
	if o.EdgeThreshold <= 0 {
		return DefaultEdgeThreshold
	}
	return o.EdgeThreshold
}

// AcceptTriangle reports whether three vertices form a triangle worth keeping: all of them are
// valid and no edge is longer than threshold.
func AcceptTriangle(a, b, c pointcloud.Vertex, threshold float64) bool {
	if !a.IsValid() || !b.IsValid() || !c.IsValid() {
		return false
	}
	return pointcloud.Distance(a, b) <= threshold &&
		pointcloud.Distance(b, c) <= threshold &&
		pointcloud.Distance(c, a) <= threshold
}

// triangulateRow emits the triangles of every cell in row y. Each cell is split along its
// top-left to bottom-right diagonal.
func triangulateRow(cloud *pointcloud.Organized, y int, threshold float64) []Triangle {
	grid := cloud.Grid()
	var out []Triangle
	for x := 0; x < grid.Width()-1; x++ {
		tl, tr, bl, br, ok := grid.Cell(x, y)
		if !ok {
			continue
		}
		vtl, vtr, vbl, vbr := cloud.Index(tl), cloud.Index(tr), cloud.Index(bl), cloud.Index(br)
		if AcceptTriangle(vtl, vtr, vbr, threshold) {
			out = append(out, Triangle{tl, tr, br})
		}
		if AcceptTriangle(vtl, vbr, vbl, threshold) {
			out = append(out, Triangle{tl, br, bl})
		}
	}
	return out
}

// BuildGridMesh connects neighboring pixels of an organized cloud into triangles. Cells are
// visited row by row; the parallel path produces the same triangles in the same order.
func BuildGridMesh(ctx context.Context, cloud *pointcloud.Organized, opts Options) (*Mesh, error) {
	threshold := opts.threshold()
	rows := cloud.Height() - 1
	if rows < 0 {
		rows = 0
	}
	m := &Mesh{Vertices: cloud.Vertices()}

	if !opts.Parallel {
		for y := 0; y < rows; y++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			m.Triangles = append(m.Triangles, triangulateRow(cloud, y, threshold)...)
		}
		return m, nil
	}

	perRow := make([][]Triangle, rows)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(utils.ParallelFactor)
	for y := 0; y < rows; y++ {
		y := y
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perRow[y] = triangulateRow(cloud, y, threshold)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	total := 0
	for _, r := range perRow {
		total += len(r)
	}
	m.Triangles = make([]Triangle, 0, total)
	for _, r := range perRow {
		m.Triangles = append(m.Triangles, r...)
	}
	return m, nil
}
