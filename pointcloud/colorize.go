package pointcloud

import (
	"image/color"

	"github.com/golang/geo/r3"
	"github.com/lucasb-eyer/go-colorful"
)

// hue range swept from the nearest to the farthest point, in degrees.
const (
	nearHue = 0.
	farHue  = 240.
)

// ColorByDepth returns a copy of the cloud whose valid vertices are recolored along a red to blue
// hue ramp by their world Z coordinate. Invalid vertices are copied unchanged.
func ColorByDepth(cloud *Organized) *Organized {
	out := NewOrganized(cloud.Width(), cloud.Height())
	copy(out.vertices, cloud.vertices)
	lo, hi, ok := cloud.BoundingBox()
	if !ok {
		return out
	}
	span := hi.Z - lo.Z
	cloud.Iterate(func(i int, p r3.Vector, v Vertex) bool {
		t := 0.
		if span > 0 {
			t = (p.Z - lo.Z) / span
		}
		r, g, b := colorful.Hsv(nearHue+t*(farHue-nearHue), 1, 1).Clamped().RGB255()
		out.vertices[i] = NewVertex(v.Position, color.NRGBA{R: r, G: g, B: b, A: 255})
		return true
	})
	return out
}
