package registration

import (
	"context"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"

	"go.viam.com/rgbdrecon/logging"
)

// Method names accepted by GradientSolver.
const (
	MethodBFGS       = "bfgs"
	MethodLBFGS      = "lbfgs"
	MethodNelderMead = "nelder-mead"
)

// DefaultMaxIterations bounds a solve when the solver does not set its own limit.
const DefaultMaxIterations = 200

// GradientSolver minimizes a Problem with gonum's optimizers. Gradients come from central finite
// differences of the cost.
type GradientSolver struct {
	Method        string
	MaxIterations int
	// Tolerance is the absolute change in cost below which the solve is considered converged.
	Tolerance float64
	Logger    logging.Logger
}

func (s *GradientSolver) method() (optimize.Method, error) {
	switch s.Method {
	case "", MethodBFGS:
		return &optimize.BFGS{}, nil
	case MethodLBFGS:
		return &optimize.LBFGS{}, nil
	case MethodNelderMead:
		return &optimize.NelderMead{}, nil
	default:
		return nil, errors.Errorf("unknown optimization method %q", s.Method)
	}
}

// ctxConverger stops the run once the context is done.
type ctxConverger struct {
	ctx  context.Context
	next optimize.Converger
}

func (c *ctxConverger) Init(dim int) {
	c.next.Init(dim)
}

func (c *ctxConverger) Converged(loc *optimize.Location) optimize.Status {
	if c.ctx.Err() != nil {
		return optimize.RuntimeLimit
	}
	return c.next.Converged(loc)
}

// Solve runs the configured method from p.Initial.
func (s *GradientSolver) Solve(ctx context.Context, p *Problem) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	method, err := s.method()
	if err != nil {
		return nil, err
	}
	maxIter := s.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	tol := s.Tolerance
	if tol <= 0 {
		tol = 1e-12
	}

	fdSettings := &fd.Settings{Formula: fd.Central}
	problem := optimize.Problem{
		Func: p.Cost,
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, p.Cost, x, fdSettings)
		},
	}
	settings := &optimize.Settings{
		MajorIterations: maxIter,
		Converger: &ctxConverger{
			ctx:  ctx,
			next: &optimize.FunctionConverge{Absolute: tol, Iterations: 20},
		},
	}

	initial := append([]float64(nil), p.Initial...)
	initialCost := p.Cost(initial)
	res, err := optimize.Minimize(problem, initial, settings, method)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if res == nil {
		return nil, errors.Wrap(err, "minimization failed")
	}
	out := &Result{
		Params:      res.X,
		InitialCost: initialCost,
		Cost:        res.F,
		Iterations:  res.Stats.MajorIterations,
		Evaluations: res.Stats.FuncEvaluations,
		Status:      res.Status.String(),
	}
	if s.Logger != nil {
		s.Logger.Debugw("solve finished", "method", s.Method, "report", out.BriefReport())
	}
	// Line search failures still carry the best location found.
	if err != nil {
		return out, errors.Wrap(err, "minimization did not converge cleanly")
	}
	return out, nil
}
