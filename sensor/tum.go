package sensor

import (
	"bufio"
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/rgbdrecon/logging"
	"go.viam.com/rgbdrecon/rimage"
	"go.viam.com/rgbdrecon/spatialmath"
)

// TUM RGB-D dataset constants.
const (
	TUMDepthScale       = 5000
	DefaultIncrement    = 10
	tumDepthList        = "depth.txt"
	tumColorList        = "rgb.txt"
	tumGroundTruthList  = "groundtruth.txt"
	tumGroundTruthWidth = 8
)

type stampedFile struct {
	stamp float64
	path  string
}

type stampedPose struct {
	stamp float64
	pose  spatialmath.Pose
}

// VirtualSensor replays a recorded TUM RGB-D sequence from disk, skipping increment frames on
// every advance.
type VirtualSensor struct {
	dir        string
	increment  int
	intrinsics mgl64.Mat3
	logger     logging.Logger

	depthFiles []stampedFile
	colorFiles []stampedFile
	poses      []stampedPose

	current    int
	depth      *rimage.DepthMap
	color      *rimage.ColorFrame
	trajectory spatialmath.Pose
}

// NewVirtualSensor reads the frame lists and ground truth of the dataset in dir. A non-positive
// increment uses DefaultIncrement.
func NewVirtualSensor(dir string, increment int, logger logging.Logger) (*VirtualSensor, error) {
	if increment <= 0 {
		increment = DefaultIncrement
	}
	depthFiles, err := readFileList(filepath.Join(dir, tumDepthList))
	if err != nil {
		return nil, err
	}
	colorFiles, err := readFileList(filepath.Join(dir, tumColorList))
	if err != nil {
		return nil, err
	}
	poses, err := readGroundTruth(filepath.Join(dir, tumGroundTruthList))
	if err != nil {
		return nil, err
	}
	if len(depthFiles) != len(colorFiles) {
		logger.Warnw("depth and color lists differ in length, using the shorter one",
			"depth", len(depthFiles), "color", len(colorFiles))
		n := min(len(depthFiles), len(colorFiles))
		depthFiles, colorFiles = depthFiles[:n], colorFiles[:n]
	}
	if len(poses) == 0 {
		return nil, errors.Errorf("no ground truth poses in %q", dir)
	}
	logger.Infow("opened dataset", "dir", dir, "frames", len(depthFiles), "poses", len(poses))
	return &VirtualSensor{
		dir:        dir,
		increment:  increment,
		intrinsics: DefaultIntrinsics(),
		logger:     logger,
		depthFiles: depthFiles,
		colorFiles: colorFiles,
		poses:      poses,
		current:    -1,
	}, nil
}

// NumFrames is the number of frames in the dataset before skipping.
func (vs *VirtualSensor) NumFrames() int {
	return len(vs.depthFiles)
}

// ProcessNextFrame loads the next frame: the first on the first call and increment frames further
// on every later call.
func (vs *VirtualSensor) ProcessNextFrame(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	next := 0
	if vs.current >= 0 {
		next = vs.current + vs.increment
	}
	if next >= len(vs.depthFiles) {
		return false, nil
	}

	depthImg, err := imaging.Open(filepath.Join(vs.dir, vs.depthFiles[next].path))
	if err != nil {
		return false, errors.Wrapf(err, "cannot read depth frame %d", next)
	}
	depth, err := rimage.ConvertImageToDepthMap(depthImg, TUMDepthScale)
	if err != nil {
		return false, err
	}
	colorImg, err := imaging.Open(filepath.Join(vs.dir, vs.colorFiles[next].path))
	if err != nil {
		return false, errors.Wrapf(err, "cannot read color frame %d", next)
	}
	color := rimage.ColorFrameFromImage(colorImg)
	if color.Width() != depth.Width() || color.Height() != depth.Height() {
		return false, errors.Errorf("frame %d: depth is %dx%d but color is %dx%d",
			next, depth.Width(), depth.Height(), color.Width(), color.Height())
	}

	vs.current = next
	vs.depth = depth
	vs.color = color
	vs.trajectory = vs.closestTrajectory(vs.depthFiles[next].stamp)
	vs.logger.Debugw("loaded frame", "frame", next, "stamp", vs.depthFiles[next].stamp)
	return true, nil
}

// closestTrajectory returns the world-to-sensor pose of the ground truth sample nearest to stamp.
// Ground truth records sensor-to-world.
func (vs *VirtualSensor) closestTrajectory(stamp float64) spatialmath.Pose {
	i := sort.Search(len(vs.poses), func(i int) bool { return vs.poses[i].stamp >= stamp })
	switch {
	case i == len(vs.poses):
		i--
	case i > 0 && math.Abs(vs.poses[i-1].stamp-stamp) <= math.Abs(vs.poses[i].stamp-stamp):
		i--
	}
	return spatialmath.PoseInverse(vs.poses[i].pose)
}

func (vs *VirtualSensor) mustHaveFrame() {
	if vs.current < 0 {
		panic(ErrNoMoreFrames)
	}
}

// Depth returns the depth in meters of the current frame.
func (vs *VirtualSensor) Depth() *rimage.DepthMap {
	vs.mustHaveFrame()
	return vs.depth
}

// Color returns the color of the current frame.
func (vs *VirtualSensor) Color() *rimage.ColorFrame {
	vs.mustHaveFrame()
	return vs.color
}

// DepthIntrinsics returns the depth camera matrix, the Kinect default unless replaced by
// SetIntrinsics.
func (vs *VirtualSensor) DepthIntrinsics() mgl64.Mat3 {
	return vs.intrinsics
}

// SetIntrinsics replaces the depth camera matrix for recordings made with a calibrated sensor.
func (vs *VirtualSensor) SetIntrinsics(k mgl64.Mat3) {
	vs.intrinsics = k
}

// DepthExtrinsics is the identity: depth and color are registered in the recording.
func (vs *VirtualSensor) DepthExtrinsics() spatialmath.Pose {
	return spatialmath.NewZeroPose()
}

// Trajectory returns the world-to-sensor pose of the current frame.
func (vs *VirtualSensor) Trajectory() spatialmath.Pose {
	vs.mustHaveFrame()
	return vs.trajectory
}

// CurrentFrame returns the dataset index of the current frame, or -1 before the first advance.
func (vs *VirtualSensor) CurrentFrame() int {
	return vs.current
}

// Close releases the current frame.
func (vs *VirtualSensor) Close() error {
	vs.depth, vs.color, vs.trajectory = nil, nil, nil
	return nil
}

func openList(path string) (*os.File, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open %q", path)
	}
	return f, nil
}

// readLines returns the fields of every non-blank line that is not a # comment.
func readLines(r io.Reader, fn func(lineNum int, fields []string) error) error {
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := fn(lineNum, strings.Fields(line)); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func readFileList(path string) ([]stampedFile, error) {
	f, err := openList(path)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)

	var files []stampedFile
	err = readLines(f, func(lineNum int, fields []string) error {
		if len(fields) != 2 {
			return errors.Errorf("line %d: expected timestamp and file name", lineNum)
		}
		stamp, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return errors.Wrapf(err, "line %d", lineNum)
		}
		files = append(files, stampedFile{stamp: stamp, path: fields[1]})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "reading %q", path)
	}
	return files, nil
}

func readGroundTruth(path string) ([]stampedPose, error) {
	f, err := openList(path)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)

	var poses []stampedPose
	err = readLines(f, func(lineNum int, fields []string) error {
		vals, err := spatialmath.ParseFloatFields(strings.Join(fields, " "))
		if err != nil {
			return errors.Wrapf(err, "line %d", lineNum)
		}
		if len(vals) != tumGroundTruthWidth {
			return errors.Errorf("line %d: expected %d values, got %d", lineNum, tumGroundTruthWidth, len(vals))
		}
		// timestamp tx ty tz qx qy qz qw
		pose := spatialmath.NewPose(
			r3.Vector{X: vals[1], Y: vals[2], Z: vals[3]},
			spatialmath.NewQuaternion(vals[7], vals[4], vals[5], vals[6]),
		)
		poses = append(poses, stampedPose{stamp: vals[0], pose: pose})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "reading %q", path)
	}
	sort.SliceStable(poses, func(i, j int) bool { return poses[i].stamp < poses[j].stamp })
	return poses, nil
}
