package registration

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"go.viam.com/rgbdrecon/logging"
)

// Residual evaluates one correspondence or sample for a parameter vector.
type Residual func(params []float64) float64

// Problem is a nonlinear least squares problem: minimize ½Σ rᵢ(params)².
type Problem struct {
	Residuals []Residual
	Initial   []float64
	// Names labels the parameters in reports. Optional.
	Names []string
}

// AddResidual appends a residual block.
func (p *Problem) AddResidual(r Residual) {
	p.Residuals = append(p.Residuals, r)
}

// Validate checks that the problem has parameters and residuals.
func (p *Problem) Validate() error {
	if len(p.Initial) == 0 {
		return errors.New("problem has no parameters")
	}
	if len(p.Residuals) == 0 {
		return errors.New("problem has no residuals")
	}
	if len(p.Names) != 0 && len(p.Names) != len(p.Initial) {
		return errors.Errorf("%d parameter names for %d parameters", len(p.Names), len(p.Initial))
	}
	return nil
}

// Evaluate writes every residual at params into dst, allocating when dst is too short.
func (p *Problem) Evaluate(dst, params []float64) []float64 {
	if len(dst) < len(p.Residuals) {
		dst = make([]float64, len(p.Residuals))
	}
	dst = dst[:len(p.Residuals)]
	for i, r := range p.Residuals {
		dst[i] = r(params)
	}
	return dst
}

// Cost is ½ the sum of squared residuals at params.
func (p *Problem) Cost(params []float64) float64 {
	r := p.Evaluate(nil, params)
	return 0.5 * floats.Dot(r, r)
}

// Result is the outcome of a solve.
type Result struct {
	Params      []float64
	InitialCost float64
	Cost        float64
	Iterations  int
	Evaluations int
	Status      string
}

// BriefReport summarizes the solve on one line.
func (r *Result) BriefReport() string {
	return fmt.Sprintf("status: %s, iterations: %d, evaluations: %d, initial cost: %g, final cost: %g",
		r.Status, r.Iterations, r.Evaluations, r.InitialCost, r.Cost)
}

// Describe formats the parameters, using names when the problem has them.
func (p *Problem) Describe(params []float64) string {
	parts := make([]string, len(params))
	for i, v := range params {
		name := fmt.Sprintf("p%d", i)
		if i < len(p.Names) {
			name = p.Names[i]
		}
		parts[i] = fmt.Sprintf("%s: %g", name, v)
	}
	return strings.Join(parts, "\t")
}

// Solver minimizes a Problem starting from its initial parameters.
type Solver interface {
	Solve(ctx context.Context, p *Problem) (*Result, error)
}

// NloptSolver minimizes a Problem with nlopt's L-BFGS. It needs cgo and the nlopt C library.
type NloptSolver struct {
	MaxEvaluations int
	Tolerance      float64
	Logger         logging.Logger
}

func (s *NloptSolver) limits() (int, float64) {
	maxEval, tol := s.MaxEvaluations, s.Tolerance
	if maxEval <= 0 {
		maxEval = 4001
	}
	if tol <= 0 {
		tol = 1e-12
	}
	return maxEval, tol
}

// NewSolver returns the solver registered under name: one of the GradientSolver methods or "nlopt".
func NewSolver(name string, maxIterations int, logger logging.Logger) (Solver, error) {
	switch name {
	case "nlopt":
		return &NloptSolver{MaxEvaluations: maxIterations, Logger: logger}, nil
	case "", MethodBFGS, MethodLBFGS, MethodNelderMead:
		return &GradientSolver{Method: name, MaxIterations: maxIterations, Logger: logger}, nil
	default:
		return nil, errors.Errorf("unknown solver %q", name)
	}
}
