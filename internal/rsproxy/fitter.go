package rsproxy

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/GoSim-25-26J-441/casa-core/internal/observable"
)

// FitRequest is the training data handed to a FitProvider.
type FitRequest struct {
	// Order of the polynomial, 0 to 2.
	Order int
	// Points holds one normalized coordinate vector per case.
	Points [][]float64
	// Responses holds one row per case and one column per raw
	// sub-observable. observable.NoDataValue marks a missing entry.
	Responses [][]float64
}

// Columns is the number of response columns.
func (r FitRequest) Columns() int {
	if len(r.Responses) == 0 {
		return 0
	}
	return len(r.Responses[0])
}

// FitProvider computes one coefficient map per response column.
type FitProvider interface {
	Fit(ctx context.Context, req FitRequest) ([]Coefficients, error)
}

// FitFunc adapts a function to FitProvider.
type FitFunc func(ctx context.Context, req FitRequest) ([]Coefficients, error)

func (f FitFunc) Fit(ctx context.Context, req FitRequest) ([]Coefficients, error) { return f(ctx, req) }

// MaxCondition is the largest design condition number the least-squares
// fitter accepts.
const MaxCondition = 1e12

// LeastSquares fits full polynomials of the requested order by QR
// decomposition. Coordinates that never vary across the training points get
// no terms. A column without any data gets an empty map.
type LeastSquares struct{}

func (LeastSquares) Fit(ctx context.Context, req FitRequest) ([]Coefficients, error) {
	if req.Order < 0 || req.Order > 2 {
		return nil, fmt.Errorf("polynomial order %d not supported (0 to 2)", req.Order)
	}
	if len(req.Points) != len(req.Responses) {
		return nil, fmt.Errorf("%d training points but %d response rows", len(req.Points), len(req.Responses))
	}
	if len(req.Points) == 0 {
		return nil, fmt.Errorf("no training points")
	}

	terms := buildTerms(activeCoordinates(req.Points), req.Order)
	out := make([]Coefficients, req.Columns())
	for col := range out {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c, err := fitColumn(req, col, terms)
		if err != nil {
			return nil, fmt.Errorf("response column %d: %w", col, err)
		}
		out[col] = c
	}
	return out, nil
}

func activeCoordinates(points [][]float64) []int {
	var active []int
	for i := range points[0] {
		lo, hi := points[0][i], points[0][i]
		for _, p := range points[1:] {
			lo, hi = math.Min(lo, p[i]), math.Max(hi, p[i])
		}
		if hi-lo > 1e-12 {
			active = append(active, i)
		}
	}
	return active
}

func buildTerms(active []int, order int) [][]int {
	terms := [][]int{nil}
	if order >= 1 {
		for _, i := range active {
			terms = append(terms, []int{i})
		}
	}
	if order >= 2 {
		for a, i := range active {
			for _, j := range active[a:] {
				terms = append(terms, []int{i, j})
			}
		}
	}
	return terms
}

func fitColumn(req FitRequest, col int, terms [][]int) (Coefficients, error) {
	var rows []int
	for r, y := range req.Responses {
		if !observable.IsNoData(y[col]) {
			rows = append(rows, r)
		}
	}
	if len(rows) == 0 {
		return Coefficients{}, nil
	}
	if len(rows) < len(terms) {
		return nil, fmt.Errorf("rank deficient design: %d cases with data for %d terms", len(rows), len(terms))
	}

	a := mat.NewDense(len(rows), len(terms), nil)
	b := mat.NewVecDense(len(rows), nil)
	for k, r := range rows {
		x := req.Points[r]
		for j, t := range terms {
			v := 1.0
			for _, i := range t {
				v *= x[i]
			}
			a.Set(k, j, v)
		}
		b.SetVec(k, req.Responses[r][col])
	}

	var qr mat.QR
	qr.Factorize(a)
	if cond := qr.Cond(); math.IsInf(cond, 0) || math.IsNaN(cond) || cond > MaxCondition {
		return nil, fmt.Errorf("rank deficient design: condition number %g", cond)
	}
	var sol mat.VecDense
	if err := qr.SolveVecTo(&sol, false, b); err != nil {
		return nil, fmt.Errorf("least squares solve: %w", err)
	}

	out := make(Coefficients, len(terms))
	for j, t := range terms {
		out[TermKey(t...)] = sol.AtVec(j)
	}
	return out, nil
}

// rSquared is the coefficient of determination of p on the column's data.
func rSquared(p polynomial, points [][]float64, ys []float64) float64 {
	var obs, res []float64
	for i, y := range ys {
		if observable.IsNoData(y) {
			continue
		}
		obs = append(obs, y)
		res = append(res, y-p.eval(points[i]))
	}
	if len(obs) == 0 {
		return math.NaN()
	}
	mean := stat.Mean(obs, nil)
	ssTot := 0.0
	for _, y := range obs {
		ssTot += (y - mean) * (y - mean)
	}
	ssRes := floats.Dot(res, res)
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}
