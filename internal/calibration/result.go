package calibration

import (
	"slices"

	"github.com/GoSim-25-26J-441/casa-core/internal/lm"
	"github.com/GoSim-25-26J-441/casa-core/internal/runcase"
	"github.com/GoSim-25-26J-441/casa-core/internal/varspace"
)

// Result is the outcome of a calibration.
type Result struct {
	// X holds the optimizer coordinates, Parameters the full parameter
	// vector of the best case in physical units.
	X          []float64
	Parameters []varspace.Value
	Residuals  []float64
	Norm       float64

	Iterations  int
	Evaluations int
	Status      lm.Status
	Reason      string
	History     []lm.Step

	// Best is the simulated case at X, nil if it was never run.
	Best *runcase.Case
}

// Converged reports whether a stop criterion was met.
func (r *Result) Converged() bool { return r.Status == lm.Converged }

// Norms returns the residual norm of every accepted step.
func (r *Result) Norms() []float64 {
	out := make([]float64, len(r.History))
	for i, s := range r.History {
		out[i] = s.Norm
	}
	return out
}

func (l *Loop) result(res *lm.Result) *Result {
	out := &Result{
		X:           slices.Clone(res.X),
		Residuals:   slices.Clone(res.Fvec),
		Norm:        res.Norm,
		Iterations:  res.Iterations,
		Evaluations: res.Evaluations,
		Status:      res.Status,
		Reason:      res.Reason,
		History:     slices.Clone(res.History),
	}
	for i := len(l.evals) - 1; i >= 0; i-- {
		if slices.Equal(l.evals[i].x, res.X) {
			out.Best = l.evals[i].c
			break
		}
	}
	if out.Best != nil {
		out.Parameters = out.Best.Parameters()
	} else if vals, err := l.caseValues(res.X); err == nil {
		out.Parameters = vals
	}
	return out
}
