// Package lm is a Levenberg-Marquardt least-squares solver with a
// finite-difference Jacobian and optional box bounds.
package lm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Func writes the residual vector at x into fvec.
type Func func(ctx context.Context, x, fvec []float64) error

// Settings bound the solver.
type Settings struct {
	// MaxEvaluations caps the calls to Func, Jacobian columns included.
	// Zero means 100*(n+1).
	MaxEvaluations int
	FTol           float64
	XTol           float64
	GTol           float64
	// DiffStep is the relative forward-difference step.
	DiffStep float64
	// Damping is the initial Marquardt parameter.
	Damping float64
	// Lower and Upper optionally bound every coordinate. Iterates are
	// projected into the box and the Jacobian steps backward from an upper
	// bound. Nil means unbounded.
	Lower []float64
	Upper []float64
}

// DefaultSettings returns the settings used when a field is zero.
func DefaultSettings() Settings {
	return Settings{FTol: 1e-10, XTol: 1e-10, GTol: 1e-12, DiffStep: 1e-6, Damping: 1e-3}
}

func (s Settings) withDefaults(n int) Settings {
	d := DefaultSettings()
	if s.MaxEvaluations <= 0 {
		s.MaxEvaluations = 100 * (n + 1)
	}
	if s.FTol <= 0 {
		s.FTol = d.FTol
	}
	if s.XTol <= 0 {
		s.XTol = d.XTol
	}
	if s.GTol <= 0 {
		s.GTol = d.GTol
	}
	if s.DiffStep <= 0 {
		s.DiffStep = d.DiffStep
	}
	if s.Damping <= 0 {
		s.Damping = d.Damping
	}
	return s
}

// Status tells why the solver stopped.
type Status int

const (
	Converged Status = iota
	MaxEvaluations
	// Stalled means no damping produced a decrease.
	Stalled
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "Converged"
	case MaxEvaluations:
		return "MaxEvaluations"
	case Stalled:
		return "Stalled"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Step records one accepted iterate.
type Step struct {
	Iteration int
	X         []float64
	Norm      float64
	Damping   float64
}

// Result is the outcome of Solve.
type Result struct {
	X           []float64
	Fvec        []float64
	Norm        float64
	Iterations  int
	Evaluations int
	Status      Status
	Reason      string
	History     []Step
}

const maxDamping = 1e16

type solver struct {
	fn       Func
	m        int
	settings Settings
	criteria Criterion
	evals    int
}

// errBudget is returned by eval when the evaluation budget is spent.
var errBudget = errors.New("evaluation budget exhausted")

func (s *solver) eval(ctx context.Context, x []float64) ([]float64, error) {
	if s.evals >= s.settings.MaxEvaluations {
		return nil, errBudget
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f := make([]float64, s.m)
	s.evals++
	if err := s.fn(ctx, slices.Clone(x), f); err != nil {
		return nil, err
	}
	return f, nil
}

// Solve minimizes the sum of squares of the m residuals of fn starting at x0.
// Criteria default to Any{ftol, xtol, gtol} from settings. Running out of
// evaluations is not an error: the result holds the best iterate found.
func Solve(ctx context.Context, fn Func, x0 []float64, m int, settings Settings, criteria Criterion) (*Result, error) {
	n := len(x0)
	if n == 0 {
		return nil, fmt.Errorf("no free coordinates to optimize")
	}
	if m < n {
		return nil, fmt.Errorf("%d residuals for %d coordinates: problem is underdetermined", m, n)
	}
	if (settings.Lower != nil && len(settings.Lower) != n) || (settings.Upper != nil && len(settings.Upper) != n) {
		return nil, fmt.Errorf("bounds do not match %d coordinates", n)
	}
	settings = settings.withDefaults(n)
	if criteria == nil {
		criteria = Any{
			FunctionTolerance{Tol: settings.FTol},
			StepTolerance{Tol: settings.XTol},
			GradientTolerance{Tol: settings.GTol},
		}
	}
	s := &solver{fn: fn, m: m, settings: settings, criteria: criteria}

	x := slices.Clone(x0)
	s.project(x)
	f, err := s.eval(ctx, x)
	if err != nil {
		return nil, err
	}
	res := &Result{X: x, Fvec: f, Norm: floats.Norm(f, 2)}
	res.History = append(res.History, Step{Iteration: 0, X: slices.Clone(x), Norm: res.Norm, Damping: settings.Damping})

	lambda := settings.Damping
	for {
		jac, err := s.jacobian(ctx, res.X, res.Fvec)
		if err != nil {
			return s.finish(res, err)
		}
		var grad mat.VecDense
		grad.MulVec(jac.T(), mat.NewVecDense(m, res.Fvec))
		if g := mat.Norm(&grad, math.Inf(1)); g <= settings.GTol {
			res.Status, res.Reason = Converged, fmt.Sprintf("gtol: gradient %.3g below %.3g", g, settings.GTol)
			return s.finish(res, nil)
		}
		var jtj mat.SymDense
		jtj.SymOuterK(1, jac.T())

		accepted := false
		for !accepted {
			if lambda > maxDamping {
				res.Status, res.Reason = Stalled, "damping parameter overflow, no descent direction found"
				return s.finish(res, nil)
			}
			delta, err := dampedStep(&jtj, &grad, lambda)
			if err != nil {
				lambda *= 10
				continue
			}
			xNew := make([]float64, n)
			floats.AddTo(xNew, res.X, delta)
			if s.project(xNew) {
				floats.SubTo(delta, xNew, res.X)
				if floats.Norm(delta, 2) == 0 {
					res.Status, res.Reason = Converged, "xtol: step blocked by bounds"
					return s.finish(res, nil)
				}
			}
			fNew, err := s.eval(ctx, xNew)
			if err != nil {
				return s.finish(res, err)
			}
			norm := floats.Norm(fNew, 2)
			stepNorm := floats.Norm(delta, 2)
			if norm >= res.Norm {
				if xn := floats.Norm(res.X, 2); stepNorm <= settings.XTol*(xn+settings.XTol) {
					res.Status, res.Reason = Converged, fmt.Sprintf("xtol: no decrease with step %.3g", stepNorm)
					return s.finish(res, nil)
				}
				lambda *= 10
				continue
			}

			accepted = true
			state := State{
				Iteration: res.Iterations + 1,
				PrevNorm:  res.Norm,
				Norm:      norm,
				StepNorm:  stepNorm,
				XNorm:     floats.Norm(xNew, 2),
				// the gradient is checked against the next Jacobian
				GradNorm: math.Inf(1),
			}
			res.X, res.Fvec, res.Norm = xNew, fNew, norm
			res.Iterations++
			res.History = append(res.History, Step{Iteration: res.Iterations, X: slices.Clone(xNew), Norm: norm, Damping: lambda})
			lambda = math.Max(lambda/10, 1e-12)

			if ok, reason := s.criteria.Check(state); ok {
				res.Status, res.Reason = Converged, reason
				return s.finish(res, nil)
			}
		}
	}
}

func (s *solver) finish(res *Result, err error) (*Result, error) {
	res.Evaluations = s.evals
	if errors.Is(err, errBudget) {
		res.Status, res.Reason = MaxEvaluations, fmt.Sprintf("reached %d function evaluations", s.settings.MaxEvaluations)
		return res, nil
	}
	return res, err
}

func (s *solver) jacobian(ctx context.Context, x, f []float64) (*mat.Dense, error) {
	n := len(x)
	jac := mat.NewDense(s.m, n, nil)
	for j := range n {
		h := s.settings.DiffStep * math.Max(math.Abs(x[j]), 1)
		if s.settings.Upper != nil && x[j]+h > s.settings.Upper[j] {
			h = -h
		}
		xh := slices.Clone(x)
		xh[j] += h
		fh, err := s.eval(ctx, xh)
		if err != nil {
			return nil, err
		}
		for i := range s.m {
			jac.Set(i, j, (fh[i]-f[i])/h)
		}
	}
	return jac, nil
}

// project clamps x into the bounds and reports whether it moved.
func (s *solver) project(x []float64) bool {
	moved := false
	for j := range x {
		v := x[j]
		if s.settings.Lower != nil {
			v = math.Max(v, s.settings.Lower[j])
		}
		if s.settings.Upper != nil {
			v = math.Min(v, s.settings.Upper[j])
		}
		if v != x[j] {
			x[j], moved = v, true
		}
	}
	return moved
}

// dampedStep solves (J^T J + lambda diag(J^T J)) delta = -J^T f.
func dampedStep(jtj *mat.SymDense, grad *mat.VecDense, lambda float64) ([]float64, error) {
	n := jtj.SymmetricDim()
	a := mat.NewSymDense(n, nil)
	a.CopySym(jtj)
	for i := range n {
		d := jtj.At(i, i)
		if d == 0 {
			d = 1
		}
		a.SetSym(i, i, jtj.At(i, i)+lambda*d)
	}
	var rhs mat.VecDense
	rhs.ScaleVec(-1, grad)

	var chol mat.Cholesky
	if !chol.Factorize(a) {
		return nil, fmt.Errorf("damped normal equations are not positive definite")
	}
	var delta mat.VecDense
	if err := chol.SolveVecTo(&delta, &rhs); err != nil {
		return nil, err
	}
	return slices.Clone(delta.RawVector().Data), nil
}
