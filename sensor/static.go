package sensor

import (
	"context"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"go.viam.com/rgbdrecon/rimage"
	"go.viam.com/rgbdrecon/spatialmath"
)

// StaticSource replays frames held in memory.
type StaticSource struct {
	frames     []Frame
	intrinsics mgl64.Mat3
	extrinsics spatialmath.Pose
	current    int
}

// NewStaticSource returns a source over the given frames. Frames with a nil trajectory use the
// identity.
func NewStaticSource(intrinsics mgl64.Mat3, extrinsics spatialmath.Pose, frames ...Frame) (*StaticSource, error) {
	if extrinsics == nil {
		extrinsics = spatialmath.NewZeroPose()
	}
	for i, f := range frames {
		if f.Depth == nil || f.Color == nil {
			return nil, errors.Errorf("frame %d is missing a depth or color buffer", i)
		}
		if f.Depth.Width() != f.Color.Width() || f.Depth.Height() != f.Color.Height() {
			return nil, errors.Errorf("frame %d: depth is %dx%d but color is %dx%d",
				i, f.Depth.Width(), f.Depth.Height(), f.Color.Width(), f.Color.Height())
		}
		if f.Trajectory == nil {
			frames[i].Trajectory = spatialmath.NewZeroPose()
		}
	}
	return &StaticSource{frames: frames, intrinsics: intrinsics, extrinsics: extrinsics, current: -1}, nil
}

// ProcessNextFrame advances by one frame.
func (s *StaticSource) ProcessNextFrame(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s.current+1 >= len(s.frames) {
		return false, nil
	}
	s.current++
	return true, nil
}

func (s *StaticSource) frame() Frame {
	if s.current < 0 {
		panic(ErrNoMoreFrames)
	}
	return s.frames[s.current]
}

// Depth returns the depth buffer of the current frame.
func (s *StaticSource) Depth() *rimage.DepthMap {
	return s.frame().Depth
}

// Color returns the color buffer of the current frame.
func (s *StaticSource) Color() *rimage.ColorFrame {
	return s.frame().Color
}

// DepthIntrinsics returns the shared camera matrix.
func (s *StaticSource) DepthIntrinsics() mgl64.Mat3 {
	return s.intrinsics
}

// DepthExtrinsics returns the shared extrinsics.
func (s *StaticSource) DepthExtrinsics() spatialmath.Pose {
	return s.extrinsics
}

// Trajectory returns the pose of the current frame.
func (s *StaticSource) Trajectory() spatialmath.Pose {
	return s.frame().Trajectory
}

// CurrentFrame returns the index of the current frame, or -1 before the first advance.
func (s *StaticSource) CurrentFrame() int {
	return s.current
}

// Close does nothing.
func (s *StaticSource) Close() error {
	return nil
}
