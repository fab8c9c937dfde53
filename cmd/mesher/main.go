// Package main runs the per-frame reconstruction over a recorded RGB-D sequence.
//
//	mesher [--dataset=dir] [--out=dir] [--threshold=meters] [--max-frames=n] [--parallel] <config>
//
// Flags must come before the config file.
package main

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/rgbdrecon/logging"
	"go.viam.com/rgbdrecon/reconstruct"
	"go.viam.com/rgbdrecon/rimage/transform"
	"go.viam.com/rgbdrecon/sensor"
)

var logger = logging.NewLogger("mesher")

const logFileMaxSizeMB = 64

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	ConfigFile string `flag:"0,required,usage=reconstruction config file (json or yaml)"`
	Dataset    string `flag:"dataset,usage=override the dataset directory"`
	Output     string `flag:"out,usage=override the output directory"`
	Threshold  string `flag:"threshold,usage=override the longest triangle edge kept, in meters"`
	MaxFrames  int    `flag:"max-frames,usage=stop after this many frames"`
	Parallel   bool   `flag:"parallel,usage=back-project and triangulate rows in parallel"`
}

func (args *Arguments) apply(cfg *reconstruct.Config) error {
	if args.Dataset != "" {
		cfg.DatasetDir = args.Dataset
	}
	if args.Output != "" {
		cfg.OutputDir = args.Output
	}
	if args.Threshold != "" {
		threshold, err := strconv.ParseFloat(args.Threshold, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid threshold %q", args.Threshold)
		}
		cfg.EdgeThreshold = threshold
	}
	if args.MaxFrames > 0 {
		cfg.MaxFrames = args.MaxFrames
	}
	if args.Parallel {
		cfg.Parallel = true
	}
	return nil
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	cfg, err := reconstruct.ReadConfig(argsParsed.ConfigFile)
	if err != nil {
		return err
	}
	if err := argsParsed.apply(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.LogLevel != "" {
		level, err := logging.LevelFromString(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger.SetLevel(level)
	}
	if cfg.LogFile != "" {
		appender, closer := logging.NewFileAppender(cfg.LogFile, logFileMaxSizeMB)
		defer utils.UncheckedErrorFunc(closer.Close)
		logger = logger.Sublogger("run")
		logger.AddAppender(appender)
	}
	return runReconstruction(ctx, cfg, logger)
}

func runReconstruction(ctx context.Context, cfg *reconstruct.Config, logger logging.Logger) (err error) {
	source, err := sensor.NewVirtualSensor(cfg.DatasetDir, cfg.FrameIncrement, logger.Sublogger("sensor"))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, source.Close())
	}()
	if cfg.IntrinsicsFile != "" {
		intrinsics, err := transform.NewPinholeCameraIntrinsicsFromJSONFile(cfg.IntrinsicsFile)
		if err != nil {
			return err
		}
		logger.Infow("using camera calibration", "file", cfg.IntrinsicsFile, "fx", intrinsics.Fx, "fy", intrinsics.Fy)
		source.SetIntrinsics(intrinsics.GetCameraMatrix())
	}

	stats, err := reconstruct.NewPipeline(*cfg, source, logger.Sublogger("pipeline")).Run(ctx)
	logger.Infow("done", "frames", stats.Frames, "failed", stats.FailedFrames, "files", len(stats.Files))
	logger.Info("\n" + stats.String())
	return err
}
