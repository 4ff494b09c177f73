package lm

import (
	"fmt"
)

// State is what the stop criteria see after an accepted step.
type State struct {
	Iteration int
	// PrevNorm and Norm are the residual norms before and after the step.
	PrevNorm float64
	Norm     float64
	// StepNorm is the Euclidean length of the step, XNorm of the new iterate.
	StepNorm float64
	XNorm    float64
	// GradNorm is the max-norm of J^T f at the new iterate's Jacobian.
	GradNorm float64
}

// Criterion decides whether the solver may stop.
type Criterion interface {
	Check(s State) (bool, string)
	Name() string
}

// FunctionTolerance stops when the relative reduction of the sum of squares
// falls under Tol.
type FunctionTolerance struct{ Tol float64 }

func (c FunctionTolerance) Name() string { return "ftol" }

func (c FunctionTolerance) Check(s State) (bool, string) {
	if s.PrevNorm == 0 {
		return true, "residual is zero"
	}
	prev, cur := s.PrevNorm*s.PrevNorm, s.Norm*s.Norm
	if rel := (prev - cur) / prev; rel <= c.Tol {
		return true, fmt.Sprintf("relative reduction %.3g below %.3g", rel, c.Tol)
	}
	return false, ""
}

// StepTolerance stops when the step is small relative to the iterate.
type StepTolerance struct{ Tol float64 }

func (c StepTolerance) Name() string { return "xtol" }

func (c StepTolerance) Check(s State) (bool, string) {
	if s.StepNorm <= c.Tol*(s.XNorm+c.Tol) {
		return true, fmt.Sprintf("step %.3g below %.3g relative to |x| = %.3g", s.StepNorm, c.Tol, s.XNorm)
	}
	return false, ""
}

// GradientTolerance stops when the gradient of the sum of squares vanishes.
type GradientTolerance struct{ Tol float64 }

func (c GradientTolerance) Name() string { return "gtol" }

func (c GradientTolerance) Check(s State) (bool, string) {
	if s.GradNorm <= c.Tol {
		return true, fmt.Sprintf("gradient %.3g below %.3g", s.GradNorm, c.Tol)
	}
	return false, ""
}

// Any stops as soon as one of its criteria does.
type Any []Criterion

func (a Any) Name() string { return "any" }

func (a Any) Check(s State) (bool, string) {
	for _, c := range a {
		if ok, reason := c.Check(s); ok {
			return true, fmt.Sprintf("%s: %s", c.Name(), reason)
		}
	}
	return false, ""
}
