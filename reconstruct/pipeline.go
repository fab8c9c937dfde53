package reconstruct

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/rgbdrecon/logging"
	"go.viam.com/rgbdrecon/mesh"
	"go.viam.com/rgbdrecon/pointcloud"
	"go.viam.com/rgbdrecon/rimage/transform"
	"go.viam.com/rgbdrecon/sensor"
	"go.viam.com/rgbdrecon/utils"
)

// FrameResult describes the mesh built for one frame.
type FrameResult struct {
	Frame    int
	Vertices int
	Faces    int
	// Files lists every file written for the frame, the OFF mesh first.
	Files []string
	Edges mesh.EdgeStats
}

// Stats summarizes a run.
type Stats struct {
	Frames       int
	FailedFrames int
	Faces        int
	Files        []string
	Results      []FrameResult
}

// String prints a table with one row per meshed frame and the totals as footer.
func (s Stats) String() string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Frame", "Vertices", "Faces", "Median edge", "Max edge"})
	for _, res := range s.Results {
		t.AppendRow(table.Row{
			res.Frame,
			res.Vertices,
			res.Faces,
			fmt.Sprintf("%.4f", res.Edges.Median),
			fmt.Sprintf("%.4f", res.Edges.Max),
		})
	}
	t.AppendFooter(table.Row{"Total", "", s.Faces, fmt.Sprintf("%d failed", s.FailedFrames), ""})
	return t.Render()
}

// Pipeline back-projects every frame of a source, triangulates it and writes the result.
type Pipeline struct {
	cfg    Config
	source sensor.FrameSource
	logger logging.Logger
}

// NewPipeline returns a pipeline reading from source. The config is used as is; callers are
// expected to have validated it.
func NewPipeline(cfg Config, source sensor.FrameSource, logger logging.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, source: source, logger: logger}
}

func (p *Pipeline) basePath(frame int) string {
	return filepath.Join(p.cfg.OutputDir, fmt.Sprintf("%s%d", p.cfg.FilePrefix, frame))
}

// ProcessFrame meshes the frame the source currently holds and writes it out.
func (p *Pipeline) ProcessFrame(ctx context.Context) (*FrameResult, error) {
	frame := p.source.CurrentFrame()
	camToWorld := transform.CameraToWorld(p.source.DepthExtrinsics(), p.source.Trajectory())
	cloud, err := transform.BackProjectFrame(
		ctx, p.source.Depth(), p.source.Color(), p.source.DepthIntrinsics(), camToWorld, p.cfg.Parallel)
	if err != nil {
		return nil, errors.Wrapf(err, "frame %d", frame)
	}
	if p.cfg.ColorByDepth {
		cloud = pointcloud.ColorByDepth(cloud)
	}
	m, err := mesh.BuildGridMesh(ctx, cloud, mesh.Options{EdgeThreshold: p.cfg.EdgeThreshold, Parallel: p.cfg.Parallel})
	if err != nil {
		return nil, errors.Wrapf(err, "frame %d", frame)
	}

	base := p.basePath(frame)
	res := &FrameResult{Frame: frame, Vertices: m.NumVertices(), Faces: m.NumFaces()}
	res.Files = append(res.Files, base+".off")
	writers := []utils.SimpleFunc{
		func(ctx context.Context) error { return mesh.WriteOFFFile(base+".off", m) },
	}
	if p.cfg.ExportPCD {
		res.Files = append(res.Files, base+".pcd")
		writers = append(writers, func(ctx context.Context) error {
			return pointcloud.WriteToPCDFile(cloud, base+".pcd", pointcloud.PCDBinary)
		})
	}
	if p.cfg.ExportPLY {
		res.Files = append(res.Files, base+".ply")
		writers = append(writers, func(ctx context.Context) error { return mesh.WritePLYFile(base+".ply", m) })
	}
	elapsed, err := utils.RunInParallel(ctx, writers)
	if err != nil {
		return nil, errors.Wrapf(err, "frame %d", frame)
	}

	if res.Edges, err = mesh.ComputeEdgeStats(m); err != nil {
		p.logger.Warnw("cannot compute edge statistics", "frame", frame, "error", err)
	}
	p.logger.Infow("wrote frame",
		"frame", frame,
		"vertices", res.Vertices,
		"valid", cloud.ValidCount(),
		"faces", res.Faces,
		"median_edge", res.Edges.Median,
		"write_time", elapsed,
	)
	return res, nil
}

// Run processes frames until the source is exhausted, MaxFrames is reached or ctx is done. A
// frame that cannot be meshed or written is skipped; those errors are returned together once the
// run ends. Errors from the source or the context end the run immediately.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	var frameErrs error
	if err := os.MkdirAll(p.cfg.OutputDir, 0o750); err != nil {
		return stats, errors.Wrapf(err, "cannot create output directory %q", p.cfg.OutputDir)
	}
	for {
		if p.cfg.MaxFrames > 0 && stats.Frames+stats.FailedFrames >= p.cfg.MaxFrames {
			break
		}
		ok, err := p.source.ProcessNextFrame(ctx)
		if err != nil {
			return stats, multierr.Combine(frameErrs, errors.Wrap(err, "cannot read next frame"))
		}
		if !ok {
			break
		}
		res, err := p.ProcessFrame(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return stats, multierr.Combine(frameErrs, ctxErr)
			}
			p.logger.Errorw("skipping frame", "frame", p.source.CurrentFrame(), "error", err)
			stats.FailedFrames++
			frameErrs = multierr.Combine(frameErrs, err)
			continue
		}
		stats.Frames++
		stats.Faces += res.Faces
		stats.Files = append(stats.Files, res.Files...)
		stats.Results = append(stats.Results, *res)
	}
	p.logger.Infow("reconstruction finished", "frames", stats.Frames, "failed", stats.FailedFrames, "faces", stats.Faces)
	return stats, frameErrs
}
