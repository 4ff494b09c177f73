package rsproxy

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
	"github.com/GoSim-25-26J-441/casa-core/internal/observable"
)

// Kriging selects the interpolation correction added to the polynomial.
type Kriging int

const (
	NoKriging Kriging = iota
	// SmartKriging interpolates from the training points nearest to the
	// evaluated point.
	SmartKriging
	// GlobalKriging interpolates from every training point.
	GlobalKriging
)

func (k Kriging) String() string {
	switch k {
	case NoKriging:
		return "NoKriging"
	case SmartKriging:
		return "SmartKriging"
	case GlobalKriging:
		return "GlobalKriging"
	default:
		return fmt.Sprintf("Kriging(%d)", int(k))
	}
}

// ParseKriging maps a mode name to a Kriging value.
func ParseKriging(s string) (Kriging, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "nokriging":
		return NoKriging, nil
	case "smart", "smartkriging", "local", "localkriging":
		return SmartKriging, nil
	case "global", "globalkriging":
		return GlobalKriging, nil
	default:
		return NoKriging, casaerr.New(casaerr.ConfigError, "ParseKriging", "unknown kriging mode %q", s)
	}
}

const (
	// krigingRange is the correlation length in normalized coordinates.
	krigingRange = 0.5
	// krigingNugget regularizes the covariance diagonal.
	krigingNugget = 1e-10
	// smartNeighbours is the neighbourhood size of SmartKriging.
	smartNeighbours = 8
)

func covariance(a, b []float64) float64 {
	h := floats.Distance(a, b, 2) / krigingRange
	return math.Exp(-3 * h * h)
}

// krigingColumn is the training context of one response column: the points
// with data and the polynomial residuals there.
type krigingColumn struct {
	points    [][]float64
	residuals []float64
	// weights solve K w = residuals over all points; global mode only
	weights []float64
}

type krigingModel struct {
	mode    Kriging
	columns []krigingColumn
}

func newKrigingModel(mode Kriging, polys []polynomial, points [][]float64, ys [][]float64) (*krigingModel, error) {
	km := &krigingModel{mode: mode, columns: make([]krigingColumn, len(polys))}
	for col, p := range polys {
		if p.empty() {
			continue
		}
		kc := krigingColumn{}
		for r, y := range ys {
			if observable.IsNoData(y[col]) {
				continue
			}
			kc.points = append(kc.points, points[r])
			kc.residuals = append(kc.residuals, y[col]-p.eval(points[r]))
		}
		if mode == GlobalKriging {
			w, err := solveWeights(kc.points, kc.residuals)
			if err != nil {
				return nil, fmt.Errorf("response column %d: %w", col, err)
			}
			kc.weights = w
		}
		km.columns[col] = kc
	}
	return km, nil
}

func solveWeights(points [][]float64, residuals []float64) ([]float64, error) {
	n := len(points)
	k := mat.NewSymDense(n, nil)
	for i := range n {
		for j := i; j < n; j++ {
			v := covariance(points[i], points[j])
			if i == j {
				v += krigingNugget
			}
			k.SetSym(i, j, v)
		}
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(k); !ok {
		return nil, fmt.Errorf("kriging covariance matrix is not positive definite")
	}
	var w mat.VecDense
	if err := chol.SolveVecTo(&w, mat.NewVecDense(n, slices.Clone(residuals))); err != nil {
		return nil, fmt.Errorf("kriging solve: %w", err)
	}
	return w.RawVector().Data, nil
}

// correction returns the kriging term of column col at x.
func (km *krigingModel) correction(col int, x []float64) (float64, error) {
	kc := km.columns[col]
	if len(kc.points) == 0 {
		return 0, nil
	}
	switch km.mode {
	case GlobalKriging:
		sum := 0.0
		for i, p := range kc.points {
			sum += kc.weights[i] * covariance(x, p)
		}
		return sum, nil
	case SmartKriging:
		idx := nearest(kc.points, x, smartNeighbours)
		pts := make([][]float64, len(idx))
		res := make([]float64, len(idx))
		for i, j := range idx {
			pts[i], res[i] = kc.points[j], kc.residuals[j]
		}
		w, err := solveWeights(pts, res)
		if err != nil {
			return 0, err
		}
		sum := 0.0
		for i, p := range pts {
			sum += w[i] * covariance(x, p)
		}
		return sum, nil
	default:
		return 0, nil
	}
}

func nearest(points [][]float64, x []float64, k int) []int {
	idx := make([]int, len(points))
	dist := make([]float64, len(points))
	for i, p := range points {
		idx[i] = i
		dist[i] = floats.Distance(p, x, 2)
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		switch {
		case dist[a] < dist[b]:
			return -1
		case dist[a] > dist[b]:
			return 1
		}
		return 0
	})
	if len(idx) > k {
		idx = idx[:k]
	}
	return idx
}
