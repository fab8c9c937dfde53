//go:build !windows && !no_cgo

package registration

import (
	"context"

	"github.com/go-nlopt/nlopt"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/diff/fd"
)

type nloptReturn struct {
	solution []float64
	cost     float64
	err      error
}

// Solve runs L-BFGS through nlopt from p.Initial.
func (s *NloptSolver) Solve(ctx context.Context, p *Problem) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	maxEval, tol := s.limits()

	opt, err := nlopt.NewNLopt(nlopt.LD_LBFGS, uint(len(p.Initial)))
	if err != nil {
		return nil, errors.Wrap(err, "nlopt creation error")
	}
	defer opt.Destroy()

	evaluations := 0
	fdSettings := &fd.Settings{Formula: fd.Central}
	// Gradient is, under the hood, an unsafe C structure that we are meant to mutate in place.
	minFunc := func(x, gradient []float64) float64 {
		evaluations++
		if len(gradient) > 0 {
			fd.Gradient(gradient, p.Cost, x, fdSettings)
		}
		return p.Cost(x)
	}

	err = multierr.Combine(
		opt.SetFtolAbs(tol),
		opt.SetXtolRel(tol),
		opt.SetMaxEval(maxEval),
		opt.SetMinObjective(minFunc),
	)
	if err != nil {
		return nil, errors.Wrap(err, "nlopt setup error")
	}

	initial := append([]float64(nil), p.Initial...)
	initialCost := p.Cost(initial)

	solveChan := make(chan nloptReturn, 1)
	utils.PanicCapturingGo(func() {
		solution, cost, err := opt.Optimize(initial)
		solveChan <- nloptReturn{solution, cost, err}
	})

	var ret nloptReturn
	select {
	case <-ctx.Done():
		err := opt.ForceStop()
		<-solveChan
		return nil, multierr.Combine(err, ctx.Err())
	case ret = <-solveChan:
	}
	if ret.err != nil && ret.solution == nil {
		return nil, errors.Wrap(ret.err, "nlopt optimization failed")
	}

	out := &Result{
		Params:      ret.solution,
		InitialCost: initialCost,
		Cost:        ret.cost,
		Iterations:  evaluations,
		Evaluations: evaluations,
		Status:      "nlopt",
	}
	if ret.err != nil {
		out.Status = ret.err.Error()
	}
	if s.Logger != nil {
		s.Logger.Debugw("nlopt solve finished", "report", out.BriefReport())
	}
	return out, nil
}
