package mesh

import (
	"bytes"
	"context"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"go.viam.com/test"

	"go.viam.com/rgbdrecon/pointcloud"
	"go.viam.com/rgbdrecon/spatialmath"
)

// planeCloud lays a width x height grid of points spacing apart on the z=1 plane.
func planeCloud(width, height int, spacing float64) *pointcloud.Organized {
	cloud := pointcloud.NewOrganized(width, height)
	for i := 0; i < width*height; i++ {
		x, y := i%width, i/width
		cloud.Set(i, pointcloud.NewVertex(
			mgl64.Vec4{float64(x) * spacing, float64(y) * spacing, 1, 1},
			color.NRGBA{uint8(i), 128, 64, 255},
		))
	}
	return cloud
}

func TestBuildGridMeshSingleCell(t *testing.T) {
	m, err := BuildGridMesh(context.Background(), planeCloud(2, 2, 0.05), Options{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.NumVertices(), test.ShouldEqual, 4)
	test.That(t, m.Triangles, test.ShouldResemble, []Triangle{{0, 1, 3}, {0, 3, 2}})
	test.That(t, m.SurfaceArea(), test.ShouldAlmostEqual, 0.05*0.05)

	for i := range m.Triangles {
		n := m.Face(i).Normal()
		test.That(t, spatialmath.R3VectorAlmostEqual(n, r3.Vector{X: 0, Y: 0, Z: 1}, 1e-9), test.ShouldBeTrue)
	}
}

func TestBuildGridMeshRejections(t *testing.T) {
	t.Run("invalid vertex", func(t *testing.T) {
		cloud := planeCloud(2, 2, 0.05)
		cloud.Set(1, pointcloud.InvalidVertex())
		m, err := BuildGridMesh(context.Background(), cloud, Options{})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, m.NumVertices(), test.ShouldEqual, 4)
		test.That(t, m.Triangles, test.ShouldResemble, []Triangle{{0, 3, 2}})
	})

	t.Run("long edge", func(t *testing.T) {
		m, err := BuildGridMesh(context.Background(), planeCloud(3, 3, 0.2), Options{})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, m.NumVertices(), test.ShouldEqual, 9)
		test.That(t, m.NumFaces(), test.ShouldEqual, 0)

		m, err = BuildGridMesh(context.Background(), planeCloud(3, 3, 0.2), Options{EdgeThreshold: 0.3})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, m.NumFaces(), test.ShouldEqual, 8)
	})

	t.Run("threshold is inclusive", func(t *testing.T) {
		a := pointcloud.NewVertex(mgl64.Vec4{0, 0, 0, 1}, color.NRGBA{})
		b := pointcloud.NewVertex(mgl64.Vec4{0.5, 0, 0, 1}, color.NRGBA{})
		c := pointcloud.NewVertex(mgl64.Vec4{0, 0.5, 0, 1}, color.NRGBA{})
		test.That(t, AcceptTriangle(a, b, c, 1), test.ShouldBeTrue)
		test.That(t, AcceptTriangle(a, b, c, 0.5), test.ShouldBeFalse)
		test.That(t, AcceptTriangle(a, b, b, 0.5), test.ShouldBeTrue)
		test.That(t, AcceptTriangle(a, b, pointcloud.InvalidVertex(), 10), test.ShouldBeFalse)
	})

	t.Run("degenerate grids", func(t *testing.T) {
		m, err := BuildGridMesh(context.Background(), planeCloud(1, 4, 0.01), Options{})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, m.NumVertices(), test.ShouldEqual, 4)
		test.That(t, m.NumFaces(), test.ShouldEqual, 0)
	})
}

func TestBuildGridMeshParallelOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	cloud := planeCloud(23, 17, 0.05)
	for i := 0; i < cloud.Size(); i++ {
		switch rng.Intn(6) {
		case 0:
			cloud.Set(i, pointcloud.InvalidVertex())
		case 1:
			v := cloud.Index(i)
			v.Position[2] += 0.2
			cloud.Set(i, v)
		}
	}
	serial, err := BuildGridMesh(context.Background(), cloud, Options{})
	test.That(t, err, test.ShouldBeNil)
	parallel, err := BuildGridMesh(context.Background(), cloud, Options{Parallel: true})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, serial.NumFaces(), test.ShouldBeGreaterThan, 0)
	test.That(t, cmp.Diff(serial.Triangles, parallel.Triangles), test.ShouldBeEmpty)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = BuildGridMesh(ctx, cloud, Options{Parallel: true})
	test.That(t, err, test.ShouldEqual, context.Canceled)
	_, err = BuildGridMesh(ctx, cloud, Options{})
	test.That(t, err, test.ShouldEqual, context.Canceled)
}

func TestWriteOFF(t *testing.T) {
	cloud := planeCloud(2, 2, 0.05)
	cloud.Set(2, pointcloud.InvalidVertex())
	cloud.Set(0, pointcloud.NewVertex(mgl64.Vec4{0.5, -3, 4, 2}, color.NRGBA{1, 2, 3, 4}))
	m := &Mesh{Vertices: cloud.Vertices(), Triangles: []Triangle{{0, 1, 3}}}

	var buf bytes.Buffer
	test.That(t, WriteOFF(&buf, m), test.ShouldBeNil)
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	test.That(t, lines, test.ShouldHaveLength, 2+4+1)
	test.That(t, lines[0], test.ShouldEqual, "COFF")
	test.That(t, lines[1], test.ShouldEqual, "4 1 0")
	test.That(t, lines[2], test.ShouldEqual, "0.25 -1.5 2 1 2 3 4")
	test.That(t, lines[4], test.ShouldEqual, "0 0 0 255 255 255 255")
	test.That(t, lines[6], test.ShouldEqual, "3 0 1 3")
}

func TestOFFRoundTrip(t *testing.T) {
	m, err := BuildGridMesh(context.Background(), planeCloud(4, 3, 0.033), Options{})
	test.That(t, err, test.ShouldBeNil)

	fn := filepath.Join(t.TempDir(), "mesh.off")
	test.That(t, WriteOFFFile(fn, m), test.ShouldBeNil)
	read, err := ReadOFFFile(fn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, read.NumVertices(), test.ShouldEqual, m.NumVertices())
	test.That(t, cmp.Diff(m.Triangles, read.Triangles), test.ShouldBeEmpty)
	for i, v := range m.Vertices {
		want, _ := v.Point()
		got, ok := read.Vertices[i].Point()
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, spatialmath.R3VectorAlmostEqual(want, got, 1e-6), test.ShouldBeTrue)
		test.That(t, read.Vertices[i].Color, test.ShouldResemble, v.Color)
	}

	_, err = ReadOFF(strings.NewReader("PLY\n"))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = ReadOFF(strings.NewReader("OFF\n3 1 0\n0 0 0\n1 0 0\n0 1 0\n4 0 1 2 2\n"))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = ReadOFF(strings.NewReader("OFF\n3 1 0\n0 0 0\n1 0 0\n0 1 0\n3 0 1 7\n"))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = ReadOFF(strings.NewReader("OFF\n3 1 0\n0 0 0\n"))
	test.That(t, err, test.ShouldNotBeNil)

	plain, err := ReadOFF(strings.NewReader("# comment\nOFF\n3 1 0\n0 0 0\n1 0 0\n0 1 0\n3 0 1 2\n"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, plain.Face(0).Area(), test.ShouldAlmostEqual, 0.5)

	err = WriteOFFFile(filepath.Join(t.TempDir(), "missing", "mesh.off"), m)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPLYRoundTrip(t *testing.T) {
	m, err := BuildGridMesh(context.Background(), planeCloud(3, 3, 0.05), Options{})
	test.That(t, err, test.ShouldBeNil)

	fn := filepath.Join(t.TempDir(), "mesh.ply")
	test.That(t, WritePLYFile(fn, m), test.ShouldBeNil)
	data, err := os.ReadFile(fn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldStartWith, "ply\nformat ascii 1.0\nelement vertex 9\n")

	read, err := ReadPLYFile(fn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, read.NumVertices(), test.ShouldEqual, 9)
	test.That(t, cmp.Diff(m.Triangles, read.Triangles), test.ShouldBeEmpty)
	p, _ := read.Vertices[4].Point()
	test.That(t, spatialmath.R3VectorAlmostEqual(p, r3.Vector{X: 0.05, Y: 0.05, Z: 1}, 1e-6), test.ShouldBeTrue)
}

func TestEdgeStats(t *testing.T) {
	es, err := ComputeEdgeStats(&Mesh{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, es, test.ShouldResemble, EdgeStats{})

	m, err := BuildGridMesh(context.Background(), planeCloud(2, 2, 0.05), Options{})
	test.That(t, err, test.ShouldBeNil)
	es, err = ComputeEdgeStats(m)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, es.Count, test.ShouldEqual, 6)
	test.That(t, es.Max, test.ShouldAlmostEqual, 0.05*1.4142135623730951)
	test.That(t, es.Median, test.ShouldAlmostEqual, 0.05)
}
