package montecarlo

import (
	"math"

	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
	"github.com/GoSim-25-26J-441/casa-core/internal/runcase"
	"github.com/GoSim-25-26J-441/casa-core/internal/varspace"
	"github.com/GoSim-25-26J-441/casa-core/pkg/utils"
)

// slot ties one proxy parameter to its sampling range and prior.
type slot struct {
	param varspace.Parameter
	// continuous parameters only
	proxy  *varspace.ContinuousParameter
	sample *varspace.ContinuousParameter
	prior  *varspace.ContinuousParameter
	// levels of categorical and discrete parameters
	levels int
}

// point is one sample: physical values per continuous slot, level indices
// for the others.
type point struct {
	cont [][]float64
	idx  []int
}

func (p point) clone() point {
	out := point{cont: make([][]float64, len(p.cont)), idx: append([]int(nil), p.idx...)}
	for i, c := range p.cont {
		out.cont[i] = append([]float64(nil), c...)
	}
	return out
}

type layout struct {
	slots []slot
}

func continuousIn(s *varspace.Space, name string) *varspace.ContinuousParameter {
	if s == nil {
		return nil
	}
	p, ok := s.Lookup(name)
	if !ok {
		return nil
	}
	c, _ := p.(*varspace.ContinuousParameter)
	return c
}

func newLayout(proxySpace, prior, sampling *varspace.Space) (*layout, error) {
	const op = "montecarlo.layout"
	l := &layout{}
	for _, p := range proxySpace.Parameters() {
		s := slot{param: p}
		switch t := p.(type) {
		case *varspace.ContinuousParameter:
			s.proxy, s.sample, s.prior = t, t, t
			if c := continuousIn(sampling, t.Name()); c != nil {
				if c.Dimension() != t.Dimension() {
					return nil, casaerr.New(casaerr.ConfigError, op,
						"parameter %s: sampling dimension %d, proxy dimension %d", t.Name(), c.Dimension(), t.Dimension())
				}
				lo, hi, plo, phi := c.Min(), c.Max(), t.Min(), t.Max()
				for i := range lo {
					if lo[i] < plo[i]-varspace.FrozenTolerance || hi[i] > phi[i]+varspace.FrozenTolerance {
						return nil, casaerr.New(casaerr.OutOfRange, op,
							"parameter %s[%d]: sampling range [%g, %g] leaves proxy range [%g, %g]",
							t.Name(), i, lo[i], hi[i], plo[i], phi[i])
					}
				}
				s.sample = c
			}
			if c := continuousIn(prior, t.Name()); c != nil && c.Dimension() == t.Dimension() {
				s.prior = c
			}
		case *varspace.CategoricalParameter:
			s.levels = t.Count()
		case *varspace.DiscreteParameter:
			s.levels = len(t.Levels())
		}
		l.slots = append(l.slots, s)
	}
	return l, nil
}

// draw samples a point independently. With MarginalPrior continuous values
// follow the prior restricted to the sampling range, otherwise they are
// uniform on it.
func (l *layout) draw(rng *utils.RandSource, mode PriorMode) point {
	pt := point{cont: make([][]float64, len(l.slots)), idx: make([]int, len(l.slots))}
	for i, s := range l.slots {
		if s.proxy == nil {
			pt.idx[i] = rng.Intn(s.levels)
			continue
		}
		lo, hi := s.sample.Min(), s.sample.Max()
		vals := make([]float64, len(lo))
		var fromPrior []float64
		if mode == MarginalPrior {
			fromPrior = s.prior.Sample(rng).Floats()
		}
		for j := range vals {
			switch {
			case s.sample.Frozen(j):
				vals[j] = lo[j]
			case fromPrior != nil && fromPrior[j] >= lo[j] && fromPrior[j] <= hi[j]:
				vals[j] = fromPrior[j]
			default:
				vals[j] = rng.UniformFloat64(lo[j], hi[j])
			}
		}
		pt.cont[i] = vals
	}
	return pt
}

// logPrior is the log prior density of pt, -Inf outside the sampling range.
func (l *layout) logPrior(pt point, mode PriorMode) float64 {
	lp := 0.0
	for i, s := range l.slots {
		if s.proxy == nil {
			continue
		}
		lo, hi := s.sample.Min(), s.sample.Max()
		for j, x := range pt.cont[i] {
			if x < lo[j]-varspace.FrozenTolerance || x > hi[j]+varspace.FrozenTolerance {
				return math.Inf(-1)
			}
		}
		if mode == MarginalPrior {
			lp += s.prior.LogPrior(pt.cont[i])
		}
	}
	return lp
}

// free lists the (slot, sub) pairs a chain or local solver may move.
func (l *layout) free() [][2]int {
	var out [][2]int
	for i, s := range l.slots {
		if s.proxy == nil {
			continue
		}
		for j := range s.sample.Dimension() {
			if !s.sample.Frozen(j) {
				out = append(out, [2]int{i, j})
			}
		}
	}
	return out
}

// normalized and set map free coordinates to [-1,1] of the sampling range.
func (l *layout) normalized(pt point, k [2]int) float64 {
	s := l.slots[k[0]]
	return utils.Normalize(pt.cont[k[0]][k[1]], s.sample.Min()[k[1]], s.sample.Max()[k[1]])
}

func (l *layout) set(pt point, k [2]int, p float64) {
	s := l.slots[k[0]]
	p = utils.ClampFloat64(p, -1, 1)
	pt.cont[k[0]][k[1]] = utils.Denormalize(p, s.sample.Min()[k[1]], s.sample.Max()[k[1]])
}

// newCase builds a case holding pt as values of the proxy parameters.
func (l *layout) newCase(pt point) (*runcase.Case, error) {
	c := runcase.New(runcase.WithParameterLimit(len(l.slots)))
	for i, s := range l.slots {
		var (
			v   varspace.Value
			err error
		)
		switch t := s.param.(type) {
		case *varspace.ContinuousParameter:
			v, err = t.NewValue(pt.cont[i])
		case *varspace.CategoricalParameter:
			v, err = t.NewValue(pt.idx[i])
		case *varspace.DiscreteParameter:
			v, err = t.NewValue(pt.idx[i])
		default:
			err = casaerr.New(casaerr.NotImplemented, "montecarlo.newCase", "parameter %s has unsupported type %T", s.param.Name(), s.param)
		}
		if err != nil {
			return nil, err
		}
		if err := c.AddParameter(v); err != nil {
			return nil, err
		}
	}
	return c, nil
}
