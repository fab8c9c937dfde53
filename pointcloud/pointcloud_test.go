package pointcloud

import (
	"bytes"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func makeTestCloud(t *testing.T) *Organized {
	t.Helper()
	cloud := NewOrganized(3, 2)
	cloud.Set(0, NewVertex(mgl64.Vec4{0, 0, 1, 1}, color.NRGBA{255, 0, 0, 255}))
	cloud.Set(2, NewVertex(mgl64.Vec4{1, 2, 3, 1}, color.NRGBA{0, 255, 0, 255}))
	cloud.Set(4, NewVertex(mgl64.Vec4{-1, 0.5, 2, 1}, color.NRGBA{0, 0, 255, 255}))
	return cloud
}

func TestVertex(t *testing.T) {
	inv := InvalidVertex()
	test.That(t, inv.IsValid(), test.ShouldBeFalse)
	for _, c := range inv.Position {
		test.That(t, math.IsInf(c, -1), test.ShouldBeTrue)
	}
	test.That(t, inv.Color, test.ShouldResemble, color.NRGBA{})
	_, ok := inv.Point()
	test.That(t, ok, test.ShouldBeFalse)

	v := NewVertex(mgl64.Vec4{2, 4, 6, 2}, color.NRGBA{1, 2, 3, 4})
	p, ok := v.Point()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, p, test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: 3})

	w := NewVertex(mgl64.Vec4{1, 2, 3 + 0.1, 1}, color.NRGBA{})
	test.That(t, Distance(v, w), test.ShouldAlmostEqual, 0.1)
}

func TestOrganized(t *testing.T) {
	cloud := makeTestCloud(t)
	test.That(t, cloud.Size(), test.ShouldEqual, 6)
	test.That(t, cloud.Width(), test.ShouldEqual, 3)
	test.That(t, cloud.Height(), test.ShouldEqual, 2)
	test.That(t, cloud.ValidCount(), test.ShouldEqual, 3)
	test.That(t, cloud.At(1, 1).IsValid(), test.ShouldBeTrue)
	test.That(t, cloud.At(1, 0).IsValid(), test.ShouldBeFalse)
	test.That(t, cloud.ValidPoints(), test.ShouldResemble, []r3.Vector{{X: 0, Y: 0, Z: 1}, {X: 1, Y: 2, Z: 3}, {X: -1, Y: 0.5, Z: 2}})

	lo, hi, ok := cloud.BoundingBox()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, lo, test.ShouldResemble, r3.Vector{X: -1, Y: 0, Z: 1})
	test.That(t, hi, test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: 3})

	_, _, ok = NewOrganized(2, 2).BoundingBox()
	test.That(t, ok, test.ShouldBeFalse)

	_, err := NewOrganizedFromVertices(2, 2, make([]Vertex, 3))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPCDRoundTrip(t *testing.T) {
	cloud := makeTestCloud(t)
	for _, tp := range []PCDType{PCDAscii, PCDBinary} {
		var buf bytes.Buffer
		test.That(t, ToPCD(cloud, &buf, tp), test.ShouldBeNil)

		read, err := ReadPCD(&buf)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, read.Size(), test.ShouldEqual, 3)
		for i, want := range cloud.ValidPoints() {
			got, ok := read.Index(i).Point()
			test.That(t, ok, test.ShouldBeTrue)
			test.That(t, got.Distance(want), test.ShouldBeLessThan, 1e-5)
		}
		test.That(t, read.Index(1).Color, test.ShouldResemble, color.NRGBA{0, 255, 0, 255})
	}
}

func TestPCDFile(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "cloud.pcd")
	test.That(t, WriteToPCDFile(makeTestCloud(t), fn, PCDAscii), test.ShouldBeNil)
	data, err := os.ReadFile(fn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldContainSubstring, "POINTS 3\nDATA ascii\n")

	_, err = ReadPCD(bytes.NewBufferString("VERSION .6\n"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestColorByDepth(t *testing.T) {
	cloud := NewOrganized(3, 1)
	cloud.Set(0, NewVertex(mgl64.Vec4{0, 0, 1, 1}, color.NRGBA{9, 9, 9, 9}))
	cloud.Set(2, NewVertex(mgl64.Vec4{0, 0, 3, 1}, color.NRGBA{9, 9, 9, 9}))

	colored := ColorByDepth(cloud)
	test.That(t, colored.Index(0).Color, test.ShouldResemble, color.NRGBA{255, 0, 0, 255})
	test.That(t, colored.Index(2).Color, test.ShouldResemble, color.NRGBA{0, 0, 255, 255})
	test.That(t, colored.Index(1).IsValid(), test.ShouldBeFalse)
	test.That(t, colored.Index(2).Position, test.ShouldResemble, cloud.Index(2).Position)
	// The input is left untouched.
	test.That(t, cloud.Index(0).Color, test.ShouldResemble, color.NRGBA{9, 9, 9, 9})

	empty := ColorByDepth(NewOrganized(2, 2))
	test.That(t, empty.ValidCount(), test.ShouldEqual, 0)
}
