// Package sensor defines sources of aligned RGB-D frames with their camera poses.
package sensor

import (
	"context"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"go.viam.com/rgbdrecon/rimage"
	"go.viam.com/rgbdrecon/spatialmath"
)

// ErrNoMoreFrames is the panic value of frame accessors used while a source holds no frame.
var ErrNoMoreFrames = errors.New("no more frames")

// A FrameSource yields RGB-D frames one at a time. The accessors describe the most recent frame
// and are only meaningful after ProcessNextFrame reported true.
type FrameSource interface {
	// ProcessNextFrame advances to the next frame. It returns false once the source is exhausted.
	ProcessNextFrame(ctx context.Context) (bool, error)

	Depth() *rimage.DepthMap
	Color() *rimage.ColorFrame
	DepthIntrinsics() mgl64.Mat3

	// DepthExtrinsics maps the depth camera into the sensor body frame.
	DepthExtrinsics() spatialmath.Pose

	// Trajectory maps world coordinates into the sensor body frame for the current frame.
	Trajectory() spatialmath.Pose

	// CurrentFrame is the index of the current frame within the source's sequence.
	CurrentFrame() int

	Close() error
}

// Frame is one captured RGB-D frame and the pose it was captured at.
type Frame struct {
	Depth      *rimage.DepthMap
	Color      *rimage.ColorFrame
	Trajectory spatialmath.Pose
}

// DefaultIntrinsics are the depth intrinsics of the Kinect used to record the TUM RGB-D datasets.
func DefaultIntrinsics() mgl64.Mat3 {
	return mgl64.Mat3{
		525, 0, 0,
		0, 525, 0,
		319.5, 239.5, 1,
	}
}
