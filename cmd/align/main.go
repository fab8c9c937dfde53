// Package main estimates the rigid transform between two files of corresponding 3D points.
//
//	align [--allow-reflection] [--out=file] <source> <target>
//
// Flags must come before the point files.
package main

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/rgbdrecon/logging"
	"go.viam.com/rgbdrecon/registration"
	"go.viam.com/rgbdrecon/spatialmath"
)

var logger = logging.NewLogger("align")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	Source          string `flag:"0,required,usage=source points, one x y z per line"`
	Target          string `flag:"1,required,usage=target points in the same order"`
	Output          string `flag:"out,usage=write the 4x4 pose to this file"`
	AllowReflection bool   `flag:"allow-reflection,usage=skip the determinant correction"`
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	source, err := registration.ReadPoints3D(argsParsed.Source)
	if err != nil {
		return err
	}
	target, err := registration.ReadPoints3D(argsParsed.Target)
	if err != nil {
		return err
	}
	// The aligner treats these as programming errors; reject bad files before calling it.
	if len(source) != len(target) {
		return errors.Errorf("%d source points but %d target points", len(source), len(target))
	}
	if len(source) == 0 {
		return errors.New("no correspondences")
	}

	aligner := registration.ProcrustesAligner{AllowReflection: argsParsed.AllowReflection}
	pose := aligner.EstimatePose(source, target)

	residual := 0.
	for i, p := range source {
		residual += spatialmath.TransformPoint(pose, p).Distance(target[i])
	}
	formatted := formatMatrix(pose.Matrix())
	logger.Infow("estimated pose",
		"points", len(source),
		"mean_error", residual/float64(len(source)),
		"det", pose.Orientation().RotationMatrix().Det(),
	)
	logger.Info("\n" + formatted)

	if argsParsed.Output != "" {
		if err := os.WriteFile(argsParsed.Output, []byte(formatted), 0o600); err != nil {
			return errors.Wrapf(err, "cannot write pose to %q", argsParsed.Output)
		}
	}
	return nil
}

// formatMatrix writes the rows of m on separate lines.
func formatMatrix(m mgl64.Mat4) string {
	var sb strings.Builder
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			if c > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(strconv.FormatFloat(m.At(r, c), 'g', -1, 64))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
