package reconstruct

import (
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/rgbdrecon/logging"
	"go.viam.com/rgbdrecon/mesh"
	"go.viam.com/rgbdrecon/pointcloud"
	"go.viam.com/rgbdrecon/rimage"
	"go.viam.com/rgbdrecon/sensor"
	"go.viam.com/rgbdrecon/spatialmath"
)

// testIntrinsics spaces neighboring pixels 0.1 apart at unit depth.
var testIntrinsics = mgl64.Mat3{
	10, 0, 0,
	0, 10, 0,
	0, 0, 1,
}

func flatFrame(t *testing.T, missing ...int) sensor.Frame {
	t.Helper()
	data := []float32{1, 1, 1, 1, 1, 1, 1, 1, 1}
	for _, i := range missing {
		data[i] = rimage.InvalidDepth
	}
	depth, err := rimage.NewDepthMap(3, 3, data)
	test.That(t, err, test.ShouldBeNil)
	return sensor.Frame{Depth: depth, Color: rimage.NewUniformColorFrame(3, 3, color.NRGBA{10, 20, 30, 255})}
}

func testConfig(t *testing.T) Config {
	cfg := DefaultConfig()
	cfg.DatasetDir = "unused"
	cfg.OutputDir = t.TempDir()
	cfg.EdgeThreshold = 0.5
	return cfg
}

func TestPipelineRun(t *testing.T) {
	logger := logging.NewTestLogger(t)
	shifted := flatFrame(t, 4)
	shifted.Trajectory = spatialmath.NewPoseFromPoint(r3.Vector{X: -5})
	src, err := sensor.NewStaticSource(testIntrinsics, nil, flatFrame(t), shifted)
	test.That(t, err, test.ShouldBeNil)

	cfg := testConfig(t)
	cfg.ExportPCD = true
	cfg.ExportPLY = true
	stats, err := NewPipeline(cfg, src, logger).Run(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stats.Frames, test.ShouldEqual, 2)
	test.That(t, stats.FailedFrames, test.ShouldEqual, 0)
	// Every triangle of the first frame survives. Without its center pixel the second frame keeps
	// only the two triangles that avoid it.
	test.That(t, stats.Faces, test.ShouldEqual, 10)
	test.That(t, stats.Files, test.ShouldHaveLength, 6)
	test.That(t, stats.Results, test.ShouldHaveLength, 2)
	summary := stats.String()
	test.That(t, summary, test.ShouldContainSubstring, "MEDIAN EDGE")
	test.That(t, summary, test.ShouldContainSubstring, "0 FAILED")

	first, err := mesh.ReadOFFFile(filepath.Join(cfg.OutputDir, "mesh_0.off"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, first.NumVertices(), test.ShouldEqual, 9)
	test.That(t, first.NumFaces(), test.ShouldEqual, 8)
	test.That(t, first.Vertices[0].Color, test.ShouldResemble, color.NRGBA{10, 20, 30, 255})

	second, err := mesh.ReadOFFFile(filepath.Join(cfg.OutputDir, "mesh_1.off"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, second.NumVertices(), test.ShouldEqual, 9)
	test.That(t, second.Triangles, test.ShouldResemble, []mesh.Triangle{{1, 2, 5}, {3, 7, 6}})
	// The trajectory maps world to sensor, so the sensor sits at x = 5.
	p, _ := second.Vertices[0].Point()
	test.That(t, p.X, test.ShouldAlmostEqual, 5-0.1)

	fromPLY, err := mesh.ReadPLYFile(filepath.Join(cfg.OutputDir, "mesh_0.ply"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, fromPLY.NumFaces(), test.ShouldEqual, 8)

	f, err := os.Open(filepath.Join(cfg.OutputDir, "mesh_1.pcd"))
	test.That(t, err, test.ShouldBeNil)
	defer f.Close()
	cloud, err := pointcloud.ReadPCD(f)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cloud.ValidCount(), test.ShouldEqual, 8)
}

func TestPipelineParallelMatchesSerial(t *testing.T) {
	logger := logging.NewTestLogger(t)
	run := func(parallel bool) *mesh.Mesh {
		src, err := sensor.NewStaticSource(testIntrinsics, nil, flatFrame(t, 1, 7))
		test.That(t, err, test.ShouldBeNil)
		cfg := testConfig(t)
		cfg.Parallel = parallel
		cfg.ColorByDepth = true
		_, err = NewPipeline(cfg, src, logger).Run(context.Background())
		test.That(t, err, test.ShouldBeNil)
		m, err := mesh.ReadOFFFile(filepath.Join(cfg.OutputDir, "mesh_0.off"))
		test.That(t, err, test.ShouldBeNil)
		return m
	}
	serial := run(false)
	test.That(t, run(true), test.ShouldResemble, serial)
	test.That(t, serial.NumFaces(), test.ShouldBeGreaterThan, 0)
}

func TestPipelineSkipsFailedFrames(t *testing.T) {
	logger, observed := logging.NewObservedTestLogger(t)
	src, err := sensor.NewStaticSource(testIntrinsics, nil, flatFrame(t), flatFrame(t))
	test.That(t, err, test.ShouldBeNil)
	cfg := testConfig(t)
	// A directory where the first mesh file should go makes that write fail.
	test.That(t, os.Mkdir(filepath.Join(cfg.OutputDir, "mesh_0.off"), 0o750), test.ShouldBeNil)

	stats, err := NewPipeline(cfg, src, logger).Run(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "frame 0")
	test.That(t, stats.Frames, test.ShouldEqual, 1)
	test.That(t, stats.FailedFrames, test.ShouldEqual, 1)
	test.That(t, observed.FilterMessage("skipping frame").Len(), test.ShouldEqual, 1)

	_, err = os.Stat(filepath.Join(cfg.OutputDir, "mesh_1.off"))
	test.That(t, err, test.ShouldBeNil)
}

func TestPipelineLimits(t *testing.T) {
	logger := logging.NewTestLogger(t)
	src, err := sensor.NewStaticSource(testIntrinsics, nil, flatFrame(t), flatFrame(t), flatFrame(t))
	test.That(t, err, test.ShouldBeNil)
	cfg := testConfig(t)
	cfg.MaxFrames = 2
	stats, err := NewPipeline(cfg, src, logger).Run(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stats.Frames, test.ShouldEqual, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewPipeline(testConfig(t), src, logger).Run(ctx)
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)

	blocked := testConfig(t)
	blocked.OutputDir = filepath.Join(blocked.OutputDir, "file")
	test.That(t, os.WriteFile(blocked.OutputDir, nil, 0o600), test.ShouldBeNil)
	_, err = NewPipeline(blocked, src, logger).Run(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		fn := filepath.Join(dir, name)
		test.That(t, os.WriteFile(fn, []byte(content), 0o600), test.ShouldBeNil)
		return fn
	}

	cfg, err := ReadConfig(write("run.json", `{"dataset_dir": "data/fr1", "export_ply": true}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.DatasetDir, test.ShouldEqual, "data/fr1")
	test.That(t, cfg.ExportPLY, test.ShouldBeTrue)
	test.That(t, cfg.EdgeThreshold, test.ShouldEqual, mesh.DefaultEdgeThreshold)
	test.That(t, cfg.FrameIncrement, test.ShouldEqual, sensor.DefaultIncrement)
	test.That(t, cfg.FilePrefix, test.ShouldEqual, DefaultFilePrefix)

	cfg, err = ReadConfig(write("run.yaml", "dataset_dir: data/fr2\nedge_threshold: 0.05\nframe_increment: 1\nparallel: true\n"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.DatasetDir, test.ShouldEqual, "data/fr2")
	test.That(t, cfg.EdgeThreshold, test.ShouldEqual, 0.05)
	test.That(t, cfg.FrameIncrement, test.ShouldEqual, 1)
	test.That(t, cfg.Parallel, test.ShouldBeTrue)

	cfg, err = ReadConfig(write("run.json5", `{
		// comments and trailing commas are accepted
		"dataset_dir": "data/fr3",
		"log_file": "logs/run.log",
	}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.DatasetDir, test.ShouldEqual, "data/fr3")
	test.That(t, cfg.LogFile, test.ShouldEqual, "logs/run.log")

	_, err = ReadConfig(write("clash.yaml", "dataset_dir: d\noutput_dir: out\nlog_file: out/\n"))
	test.That(t, errors.Is(err, ErrInvalidConfig), test.ShouldBeTrue)

	_, err = ReadConfig(write("missing.yaml", "output_dir: out\n"))
	test.That(t, errors.Is(err, ErrInvalidConfig), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "dataset_dir")

	_, err = ReadConfig(write("bad.json", `{"dataset_dir": "d", "edge_threshold": -1}`))
	test.That(t, errors.Is(err, ErrInvalidConfig), test.ShouldBeTrue)

	_, err = ReadConfig(write("level.yml", "dataset_dir: d\nlog_level: chatty\n"))
	test.That(t, errors.Is(err, ErrInvalidConfig), test.ShouldBeTrue)

	_, err = ReadConfig(write("run.toml", ""))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = ReadConfig(write("broken.json", "{"))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = ReadConfig(filepath.Join(dir, "nope.json"))
	test.That(t, err, test.ShouldNotBeNil)
}
