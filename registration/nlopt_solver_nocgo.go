//go:build windows || no_cgo

package registration

import (
	"context"

	"github.com/pkg/errors"
)

// Solve is unavailable without cgo.
func (s *NloptSolver) Solve(ctx context.Context, p *Problem) (*Result, error) {
	return nil, errors.New("the nlopt solver requires cgo")
}
