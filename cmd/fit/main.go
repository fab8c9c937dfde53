// Package main fits small least squares models to point files: a weighted 2D rigid registration
// and a quadric surface.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
	"go.viam.com/utils"

	"go.viam.com/rgbdrecon/logging"
	"go.viam.com/rgbdrecon/registration"
	rutils "go.viam.com/rgbdrecon/utils"
)

const (
	flagSource     = "source"
	flagTarget     = "target"
	flagWeights    = "weights"
	flagPoints     = "points"
	flagSolver     = "solver"
	flagIterations = "iterations"
	flagPlot       = "plot"
	flagAngle      = "initial-angle"
	flagDebug      = "debug"

	registrationIterations = 25
	surfaceIterations      = 100
)

var logger = logging.NewLogger("fit")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) error {
	return newApp(os.Stdout, os.Stderr, logger).RunContext(ctx, args)
}

func solverFlags(iterations int) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  flagSolver,
			Value: registration.MethodBFGS,
			Usage: "one of bfgs, lbfgs, nelder-mead or nlopt",
		},
		&cli.IntFlag{
			Name:  flagIterations,
			Value: iterations,
			Usage: "maximum number of solver iterations",
		},
	}
}

func newApp(out, errOut io.Writer, logger logging.Logger) *cli.App {
	return &cli.App{
		Name:            "fit",
		Usage:           "fit least squares models to point files",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: flagDebug, Usage: "enable debug logging"},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				logger.SetLevel(logging.DEBUG)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "registration",
				Usage: "estimate the rotation and translation taking weighted 2D source points onto target points",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: flagSource, Required: true, Usage: "source points, one x y per line"},
					&cli.StringFlag{Name: flagTarget, Required: true, Usage: "target points in the same order"},
					&cli.StringFlag{Name: flagWeights, Usage: "one weight per correspondence"},
					&cli.StringFlag{Name: flagPlot, Usage: "save a plot of the aligned points to `FILE`"},
					&cli.Float64Flag{Name: flagAngle, Usage: "starting rotation in degrees"},
				}, solverFlags(registrationIterations)...),
				Action: func(c *cli.Context) error {
					return registrationAction(c, logger)
				},
			},
			{
				Name:  "surface",
				Usage: "fit z = (x²/a - y²/b) / c to 3D samples",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: flagPoints, Required: true, Usage: "samples, one x y z per line"},
				}, solverFlags(surfaceIterations)...),
				Action: func(c *cli.Context) error {
					return surfaceAction(c, logger)
				},
			},
		},
	}
}

func solve(c *cli.Context, problem *registration.Problem, logger logging.Logger) (*registration.Result, error) {
	solver, err := registration.NewSolver(c.String(flagSolver), c.Int(flagIterations), logger)
	if err != nil {
		return nil, err
	}
	res, err := solver.Solve(c.Context, problem)
	if res == nil {
		return nil, err
	}
	if err != nil {
		logger.Warnw("solver did not converge cleanly", "error", err)
	}
	fmt.Fprintln(c.App.Writer, res.BriefReport())
	return res, nil
}

func registrationAction(c *cli.Context, logger logging.Logger) error {
	source, err := registration.ReadPoints2D(c.String(flagSource))
	if err != nil {
		return err
	}
	target, err := registration.ReadPoints2D(c.String(flagTarget))
	if err != nil {
		return err
	}
	var weights []float64
	if fn := c.String(flagWeights); fn != "" {
		if weights, err = registration.ReadWeights(fn); err != nil {
			return err
		}
	}
	problem, err := registration.NewRigid2DProblem(source, target, weights)
	if err != nil {
		return err
	}
	startDeg := c.Float64(flagAngle)
	problem.Initial[0] = rutils.DegToRad(startDeg)
	res, err := solve(c, problem, logger)
	if err != nil {
		return err
	}
	logger.Debugw("rotation moved from start", "deg", rutils.AngleDiffDeg(startDeg, rutils.RadToDeg(res.Params[0])))
	fmt.Fprintf(c.App.Writer, "angle: %g deg\ttx: %g\tty: %g\n", rutils.RadToDeg(res.Params[0]), res.Params[1], res.Params[2])

	if fn := c.String(flagPlot); fn != "" {
		if err := registration.SaveRegistrationPlot(fn, source, target, res.Params); err != nil {
			return err
		}
		logger.Infow("saved plot", "file", fn)
	}
	return nil
}

func surfaceAction(c *cli.Context, logger logging.Logger) error {
	points, err := registration.ReadPoints3D(c.String(flagPoints))
	if err != nil {
		return err
	}
	problem := registration.NewQuadricSurfaceProblem(points)
	res, err := solve(c, problem, logger)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, problem.Describe(res.Params))
	return nil
}
