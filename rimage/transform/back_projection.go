package transform

import (
	"context"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"go.viam.com/rgbdrecon/pointcloud"
	"go.viam.com/rgbdrecon/rimage"
	"go.viam.com/rgbdrecon/spatialmath"
	"go.viam.com/rgbdrecon/utils"
)

// CameraToWorld returns the transform taking camera-frame points into the world frame for a
// sensor with the given extrinsics at the given trajectory sample: trajectory⁻¹ · extrinsics⁻¹.
func CameraToWorld(extrinsics, trajectory spatialmath.Pose) spatialmath.Pose {
	return spatialmath.Compose(spatialmath.PoseInverse(trajectory), spatialmath.PoseInverse(extrinsics))
}

type backProjector struct {
	depth  *rimage.DepthMap
	colors *rimage.ColorFrame

	halfWidth  float64
	halfHeight float64
	kInv       mgl64.Mat3
	toWorld    mgl64.Mat4
}

// vertex lifts pixel i. The ray point is offset by the integer half dimensions of the frame
// before the inverse camera matrix is applied.
func (bp *backProjector) vertex(i int) pointcloud.Vertex {
	d := bp.depth.Index(i)
	if !rimage.IsValidDepth(d) {
		return pointcloud.InvalidVertex()
	}
	w := bp.depth.Width()
	x, y := float64(i%w), float64(i/w)
	depth := float64(d)
	ray := mgl64.Vec3{(x - bp.halfWidth) * depth, (y - bp.halfHeight) * depth, depth}
	cam := bp.kInv.Mul3x1(ray).Vec4(1)
	return pointcloud.NewVertex(bp.toWorld.Mul4x1(cam), bp.colors.At(i))
}

// BackProjectFrame converts every pixel of a depth frame into a colored world-space vertex. The
// result always has one vertex per pixel in row-major order; pixels without depth become invalid
// vertices. Depth and color frames of different sizes are a programming error and panic.
func BackProjectFrame(
	ctx context.Context,
	depth *rimage.DepthMap,
	colors *rimage.ColorFrame,
	intrinsics mgl64.Mat3,
	camToWorld spatialmath.Pose,
	parallel bool,
) (*pointcloud.Organized, error) {
	if depth.Width() != colors.Width() || depth.Height() != colors.Height() {
		panic(fmt.Sprintf("depth frame (%d, %d) and color frame (%d, %d) differ in size",
			depth.Width(), depth.Height(), colors.Width(), colors.Height()))
	}
	if intrinsics.Det() == 0 {
		return nil, NewNoIntrinsicsError("camera matrix is singular")
	}

	bp := &backProjector{
		depth:      depth,
		colors:     colors,
		halfWidth:  float64(depth.Width() / 2),
		halfHeight: float64(depth.Height() / 2),
		kInv:       intrinsics.Inv(),
		toWorld:    camToWorld.Matrix(),
	}
	width, height := depth.Width(), depth.Height()
	vertices := make([]pointcloud.Vertex, width*height)

	if !parallel {
		for i := range vertices {
			if i%width == 0 && ctx.Err() != nil {
				return nil, ctx.Err()
			}
			vertices[i] = bp.vertex(i)
		}
		return pointcloud.NewOrganizedFromVertices(width, height, vertices)
	}

	err := utils.GroupWorkParallel(ctx, height, func(_, _, _, _ int) utils.MemberWorkFunc {
		return func(_, row int) {
			for i := row * width; i < (row+1)*width; i++ {
				vertices[i] = bp.vertex(i)
			}
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "back-projection interrupted")
	}
	return pointcloud.NewOrganizedFromVertices(width, height, vertices)
}
