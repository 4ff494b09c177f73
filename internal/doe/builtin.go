package doe

import (
	"context"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/GoSim-25-26J-441/casa-core/pkg/utils"
)

// Builtin is the reference design provider. It works in normalized
// coordinates: -1 is a parameter's minimum, +1 its maximum.
type Builtin struct {
	rng *utils.RandSource
}

// NewBuiltin returns a provider whose random designs are seeded with seed.
func NewBuiltin(seed int64) *Builtin {
	return &Builtin{rng: utils.NewRandSource(seed)}
}

func (b *Builtin) Design(ctx context.Context, req Request) ([]Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Min) != len(req.Max) || len(req.Min) != len(req.Base) {
		return nil, fmt.Errorf("bound vectors differ in length: min %d, max %d, base %d", len(req.Min), len(req.Max), len(req.Base))
	}
	if len(req.Levels) != len(req.BaseLevels) {
		return nil, fmt.Errorf("%d categorical parameters but %d base levels", len(req.Levels), len(req.BaseLevels))
	}

	switch req.Family {
	case Tornado:
		return b.tornado(req), nil
	case BoxBehnken:
		return b.boxBehnken(req)
	case FullFactorial:
		return b.fullFactorial(req), nil
	case PlackettBurman:
		return b.plackettBurman(req), nil
	case LatinHypercube:
		return b.latinHypercube(req)
	case SpaceFilling:
		return b.spaceFilling(req)
	default:
		return nil, fmt.Errorf("design family %q not supported", req.Family)
	}
}

func normalizedBase(req Request) []float64 {
	out := make([]float64, len(req.Base))
	for i := range out {
		out[i] = utils.Normalize(req.Base[i], req.Min[i], req.Max[i])
	}
	return out
}

func frozen(req Request, i int) bool {
	return utils.AlmostEqual(req.Min[i], req.Max[i], utils.DefaultTolerance)
}

func baseSample(req Request) Sample {
	return Sample{Continuous: normalizedBase(req), Categorical: slices.Clone(req.BaseLevels)}
}

func center(req Request) []float64 {
	return make([]float64, len(req.Min))
}

// tornado varies one parameter at a time around the base case.
func (b *Builtin) tornado(req Request) []Sample {
	out := []Sample{baseSample(req)}
	for i := range req.Min {
		if frozen(req, i) {
			continue
		}
		for _, level := range []float64{-1, 1} {
			s := baseSample(req)
			s.Continuous[i] = level
			out = append(out, s)
		}
	}
	for k, n := range req.Levels {
		for level := range n {
			if level == req.BaseLevels[k] {
				continue
			}
			s := baseSample(req)
			s.Categorical[k] = level
			out = append(out, s)
		}
	}
	return out
}

// boxBehnken puts every pair of parameters on the corners of its square,
// the others at the centre, plus one centre point.
func (b *Builtin) boxBehnken(req Request) ([]Sample, error) {
	n := len(req.Min)
	if n < 2 {
		return nil, fmt.Errorf("BoxBehnken design needs at least 2 continuous parameters, got %d", n)
	}
	out := []Sample{{Continuous: center(req), Categorical: slices.Clone(req.BaseLevels)}}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			for _, li := range []float64{-1, 1} {
				for _, lj := range []float64{-1, 1} {
					c := center(req)
					c[i], c[j] = li, lj
					out = append(out, Sample{Continuous: c, Categorical: slices.Clone(req.BaseLevels)})
				}
			}
		}
	}
	return out, nil
}

// fullFactorial crosses every continuous corner with every category
// combination and adds the base case.
func (b *Builtin) fullFactorial(req Request) []Sample {
	n := len(req.Min)
	corners := make([][]float64, 0, 1<<n)
	for mask := 0; mask < 1<<n; mask++ {
		c := make([]float64, n)
		for i := range c {
			c[i] = -1
			if mask&(1<<i) != 0 {
				c[i] = 1
			}
		}
		corners = append(corners, c)
	}
	combos := [][]int{{}}
	for _, levels := range req.Levels {
		var next [][]int
		for _, combo := range combos {
			for l := range levels {
				next = append(next, append(slices.Clone(combo), l))
			}
		}
		combos = next
	}

	out := []Sample{baseSample(req)}
	for _, c := range corners {
		for _, combo := range combos {
			out = append(out, Sample{Continuous: slices.Clone(c), Categorical: slices.Clone(combo)})
		}
	}
	return out
}

// hadamard builds a Sylvester Hadamard matrix of order n, a power of two.
func hadamard(n int) [][]float64 {
	h := [][]float64{{1}}
	for len(h) < n {
		m := len(h)
		next := make([][]float64, 2*m)
		for i := range next {
			next[i] = make([]float64, 2*m)
		}
		for i := range m {
			for j := range m {
				next[i][j] = h[i][j]
				next[i][j+m] = h[i][j]
				next[i+m][j] = h[i][j]
				next[i+m][j+m] = -h[i][j]
			}
		}
		h = next
	}
	return h
}

// plackettBurman is a two-level screening design: columns of a Hadamard
// matrix give the levels of continuous parameters and then categorical ones
// (first and last category).
func (b *Builtin) plackettBurman(req Request) []Sample {
	factors := len(req.Min) + len(req.Levels)
	order := 1
	for order < factors+1 {
		order *= 2
	}
	h := hadamard(order)
	out := []Sample{baseSample(req)}
	for _, row := range h {
		s := Sample{Continuous: make([]float64, len(req.Min)), Categorical: make([]int, len(req.Levels))}
		for i := range req.Min {
			s.Continuous[i] = row[i+1]
		}
		for k, n := range req.Levels {
			if row[len(req.Min)+k+1] > 0 {
				s.Categorical[k] = n - 1
			}
		}
		out = append(out, s)
	}
	return out
}

func (b *Builtin) randomCategories(req Request) []int {
	out := make([]int, len(req.Levels))
	for k, n := range req.Levels {
		out[k] = b.rng.Intn(n)
	}
	return out
}

// latinHypercube stratifies every continuous axis into SampleCount bins and
// visits each bin once.
func (b *Builtin) latinHypercube(req Request) ([]Sample, error) {
	n := req.SampleCount
	if n <= 0 {
		return nil, fmt.Errorf("LatinHypercube needs a positive sample count, got %d", n)
	}
	out := make([]Sample, n)
	for k := range out {
		out[k] = Sample{Continuous: make([]float64, len(req.Min)), Categorical: b.randomCategories(req)}
	}
	for i := range req.Min {
		perm := b.rng.Perm(n)
		for k := range out {
			u := b.rng.Float64()
			out[k].Continuous[i] = -1 + 2*(float64(perm[k])+u)/float64(n)
		}
	}
	return out, nil
}

// minOverlap is the normalized distance under which two points are the same.
const minOverlap = 1e-9

// spaceFilling picks SampleCount points that greedily maximize the minimum
// distance to each other and to req.Existing.
func (b *Builtin) spaceFilling(req Request) ([]Sample, error) {
	n, dim := req.SampleCount, len(req.Min)
	if n <= 0 {
		return nil, fmt.Errorf("SpaceFilling needs a positive sample count, got %d", n)
	}
	if dim == 0 {
		return nil, fmt.Errorf("SpaceFilling design needs continuous parameters")
	}

	pool := make([][]float64, 50*n+100)
	for k := range pool {
		p := make([]float64, dim)
		for i := range p {
			p[i] = b.rng.UniformFloat64(-1, 1)
		}
		pool[k] = p
	}

	chosen := make([][]float64, 0, len(req.Existing)+n)
	chosen = append(chosen, req.Existing...)
	used := make([]bool, len(pool))
	out := make([]Sample, 0, n)

	for len(out) < n {
		best, bestDist := -1, -1.0
		for k, p := range pool {
			if used[k] {
				continue
			}
			d := math.Inf(1)
			for _, c := range chosen {
				d = math.Min(d, floats.Distance(p, c, 2))
			}
			if d > bestDist {
				best, bestDist = k, d
			}
		}
		if best < 0 || bestDist < minOverlap {
			return nil, fmt.Errorf("SpaceFilling could only place %d of %d new points", len(out), n)
		}
		used[best] = true
		chosen = append(chosen, pool[best])
		out = append(out, Sample{Continuous: slices.Clone(pool[best]), Categorical: b.randomCategories(req)})
	}
	return out, nil
}
