package varspace

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
	"github.com/GoSim-25-26J-441/casa-core/internal/model"
	"github.com/GoSim-25-26J-441/casa-core/pkg/utils"
)

// FrozenTolerance is the relative tolerance under which min and max of a
// sub-parameter are considered equal.
const FrozenTolerance = 1e-10

// ContinuousParameter is a real-valued parameter with one or more sub-parameters.
type ContinuousParameter struct {
	name   string
	target string
	min    []float64
	max    []float64
	base   []float64
	prior  Prior
	stdDev []float64
}

// ContinuousOption customizes a ContinuousParameter.
type ContinuousOption func(*ContinuousParameter)

// WithPrior sets the prior family.
func WithPrior(p Prior) ContinuousOption {
	return func(c *ContinuousParameter) { c.prior = p }
}

// WithStdDev sets the per-sub-parameter standard deviation of a Normal prior.
func WithStdDev(sd []float64) ContinuousOption {
	return func(c *ContinuousParameter) { c.stdDev = slices.Clone(sd) }
}

// NewContinuous validates the bounds and builds a continuous parameter.
func NewContinuous(name, target string, min, max, base []float64, opts ...ContinuousOption) (*ContinuousParameter, error) {
	const op = "varspace.NewContinuous"
	if name == "" {
		return nil, casaerr.New(casaerr.ConfigError, op, "parameter name cannot be empty")
	}
	if len(min) == 0 || len(min) != len(max) || len(min) != len(base) {
		return nil, casaerr.New(casaerr.ConfigError, op,
			"parameter %s: bound sizes differ (min %d, max %d, base %d)", name, len(min), len(max), len(base))
	}
	for i := range min {
		if min[i] > max[i] {
			return nil, casaerr.New(casaerr.OutOfRange, op,
				"parameter %s[%d]: min %g greater than max %g", name, i, min[i], max[i])
		}
		if base[i] < min[i] || base[i] > max[i] {
			return nil, casaerr.New(casaerr.OutOfRange, op,
				"parameter %s[%d]: base %g outside [%g, %g]", name, i, base[i], min[i], max[i])
		}
	}
	if target == "" {
		target = name
	}

	c := &ContinuousParameter{
		name:   name,
		target: target,
		min:    slices.Clone(min),
		max:    slices.Clone(max),
		base:   slices.Clone(base),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.stdDev == nil {
		c.stdDev = make([]float64, len(min))
		for i := range min {
			c.stdDev[i] = (max[i] - min[i]) / 6
		}
	}
	if len(c.stdDev) != len(min) {
		return nil, casaerr.New(casaerr.ConfigError, op,
			"parameter %s: %d standard deviations for %d sub-parameters", name, len(c.stdDev), len(min))
	}
	return c, nil
}

func (c *ContinuousParameter) Name() string   { return c.name }
func (c *ContinuousParameter) Kind() Kind     { return Continuous }
func (c *ContinuousParameter) Target() string { return c.target }
func (c *ContinuousParameter) Dimension() int { return len(c.min) }
func (c *ContinuousParameter) Prior() Prior   { return c.prior }

// Min returns a copy of the lower bounds.
func (c *ContinuousParameter) Min() []float64 { return slices.Clone(c.min) }

// Max returns a copy of the upper bounds.
func (c *ContinuousParameter) Max() []float64 { return slices.Clone(c.max) }

// Base returns a copy of the base values.
func (c *ContinuousParameter) Base() []float64 { return slices.Clone(c.base) }

// StdDev returns a copy of the Normal prior standard deviations.
func (c *ContinuousParameter) StdDev() []float64 { return slices.Clone(c.stdDev) }

// Frozen reports whether sub-parameter i has a degenerate range.
func (c *ContinuousParameter) Frozen(i int) bool {
	return utils.AlmostEqual(c.min[i], c.max[i], FrozenTolerance)
}

func (c *ContinuousParameter) BaseValue() Value { return &ContinuousValue{param: c, vals: c.Base()} }
func (c *ContinuousParameter) MinValue() Value  { return &ContinuousValue{param: c, vals: c.Min()} }
func (c *ContinuousParameter) MaxValue() Value  { return &ContinuousValue{param: c, vals: c.Max()} }

// NewValue builds a value for this parameter. Values outside the range are
// accepted here and reported by Validate.
func (c *ContinuousParameter) NewValue(vals []float64) (*ContinuousValue, error) {
	if len(vals) != len(c.min) {
		return nil, casaerr.New(casaerr.OutOfRange, "varspace.NewValue",
			"parameter %s: expected %d values, got %d", c.name, len(c.min), len(vals))
	}
	return &ContinuousValue{param: c, vals: slices.Clone(vals)}, nil
}

// FromNormalized maps values in [-1, 1] back to physical units.
func (c *ContinuousParameter) FromNormalized(p []float64) (*ContinuousValue, error) {
	if len(p) != len(c.min) {
		return nil, casaerr.New(casaerr.OutOfRange, "varspace.FromNormalized",
			"parameter %s: expected %d values, got %d", c.name, len(c.min), len(p))
	}
	vals := make([]float64, len(p))
	for i := range p {
		vals[i] = utils.Denormalize(p[i], c.min[i], c.max[i])
	}
	return &ContinuousValue{param: c, vals: vals}, nil
}

// Penalty is the prior soft-constraint residual for x on sub-parameter i.
func (c *ContinuousParameter) Penalty(i int, x float64) float64 {
	return penalty(c.prior, x, c.min[i], c.max[i], c.base[i], c.stdDev[i])
}

// LogPrior sums the log prior density over all sub-parameters of vals.
func (c *ContinuousParameter) LogPrior(vals []float64) float64 {
	lp := 0.0
	for i, x := range vals {
		if c.Frozen(i) {
			continue
		}
		lp += logDensity(c.prior, x, c.min[i], c.max[i], c.base[i], c.stdDev[i])
	}
	return lp
}

// Sample draws a value from the prior, restricted to the parameter range.
func (c *ContinuousParameter) Sample(rng *utils.RandSource) *ContinuousValue {
	vals := make([]float64, len(c.min))
	for i := range vals {
		vals[i] = c.sampleSub(i, rng)
	}
	return &ContinuousValue{param: c, vals: vals}
}

func (c *ContinuousParameter) sampleSub(i int, rng *utils.RandSource) float64 {
	lo, hi, base := c.min[i], c.max[i], c.base[i]
	if c.Frozen(i) {
		return base
	}
	switch c.prior {
	case Triangle:
		// inverse CDF of the triangular density
		u := rng.Float64()
		f := (base - lo) / (hi - lo)
		if u < f {
			return lo + math.Sqrt(u*(hi-lo)*(base-lo))
		}
		return hi - math.Sqrt((1-u)*(hi-lo)*(hi-base))
	case Normal:
		for range 1000 {
			x := rng.NormFloat64(base, c.stdDev[i])
			if x >= lo && x <= hi {
				return x
			}
		}
		return base
	default:
		return rng.UniformFloat64(lo, hi)
	}
}

// ContinuousValue is a case's assignment for a ContinuousParameter.
type ContinuousValue struct {
	param *ContinuousParameter
	vals  []float64
}

func (v *ContinuousValue) Parameter() Parameter { return v.param }
func (v *ContinuousValue) Floats() []float64    { return slices.Clone(v.vals) }

// Normalized maps the value onto [-1, 1] per sub-parameter.
func (v *ContinuousValue) Normalized() []float64 {
	out := make([]float64, len(v.vals))
	for i, x := range v.vals {
		out[i] = utils.Normalize(x, v.param.min[i], v.param.max[i])
	}
	return out
}

func (v *ContinuousValue) Mutate(m model.Model) error {
	if err := m.SetParameter(v.param.target, v.vals); err != nil {
		return casaerr.Wrap(casaerr.IoError, "varspace.Mutate", err, "parameter %s", v.param.name)
	}
	return nil
}

func (v *ContinuousValue) Validate(m model.Model) string {
	var msgs []string
	for i, x := range v.vals {
		if x < v.param.min[i] || x > v.param.max[i] {
			msgs = append(msgs, fmt.Sprintf("%s[%d]: value %g outside range [%g, %g]",
				v.param.name, i, x, v.param.min[i], v.param.max[i]))
		}
	}
	got, err := m.Parameter(v.param.target)
	switch {
	case err != nil:
		msgs = append(msgs, fmt.Sprintf("%s: %v", v.param.name, err))
	case len(got) != len(v.vals):
		msgs = append(msgs, fmt.Sprintf("%s: project holds %d values, expected %d", v.param.name, len(got), len(v.vals)))
	case !utils.AlmostEqualSlices(got, v.vals, utils.DefaultTolerance):
		msgs = append(msgs, fmt.Sprintf("%s: project holds %v, expected %v", v.param.name, got, v.vals))
	}
	return strings.Join(msgs, "\n")
}

func (v *ContinuousValue) Equal(other Value) bool {
	o, ok := other.(*ContinuousValue)
	if !ok || !sameParameter(v.param, o.param) {
		return false
	}
	return utils.AlmostEqualSlices(v.vals, o.vals, utils.DefaultTolerance)
}
