package varspace

import (
	"fmt"
	"math"
	"slices"

	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
	"github.com/GoSim-25-26J-441/casa-core/internal/model"
	"github.com/GoSim-25-26J-441/casa-core/pkg/utils"
)

// DiscreteParameter takes one of an ordered list of numeric levels.
type DiscreteParameter struct {
	name   string
	target string
	levels []float64
	base   int
}

// NewDiscrete builds a discrete parameter. Levels must be strictly increasing.
func NewDiscrete(name, target string, levels []float64, base int) (*DiscreteParameter, error) {
	const op = "varspace.NewDiscrete"
	if name == "" {
		return nil, casaerr.New(casaerr.ConfigError, op, "parameter name cannot be empty")
	}
	if len(levels) == 0 {
		return nil, casaerr.New(casaerr.ConfigError, op, "parameter %s: no levels", name)
	}
	for i := 1; i < len(levels); i++ {
		if levels[i] <= levels[i-1] {
			return nil, casaerr.New(casaerr.ConfigError, op, "parameter %s: levels not increasing at %d", name, i)
		}
	}
	if base < 0 || base >= len(levels) {
		return nil, casaerr.New(casaerr.OutOfRange, op,
			"parameter %s: base index %d outside [0, %d)", name, base, len(levels))
	}
	if target == "" {
		target = name
	}
	return &DiscreteParameter{name: name, target: target, levels: slices.Clone(levels), base: base}, nil
}

func (d *DiscreteParameter) Name() string   { return d.name }
func (d *DiscreteParameter) Kind() Kind     { return Discrete }
func (d *DiscreteParameter) Target() string { return d.target }
func (d *DiscreteParameter) Dimension() int { return 1 }

// Levels returns the levels in order.
func (d *DiscreteParameter) Levels() []float64 { return slices.Clone(d.levels) }

// BaseIndex is the index of the base level.
func (d *DiscreteParameter) BaseIndex() int { return d.base }

func (d *DiscreteParameter) BaseValue() Value { return &DiscreteValue{param: d, index: d.base} }
func (d *DiscreteParameter) MinValue() Value  { return &DiscreteValue{param: d, index: 0} }
func (d *DiscreteParameter) MaxValue() Value {
	return &DiscreteValue{param: d, index: len(d.levels) - 1}
}

// NewValue builds the value at level index.
func (d *DiscreteParameter) NewValue(index int) (*DiscreteValue, error) {
	if index < 0 || index >= len(d.levels) {
		return nil, casaerr.New(casaerr.OutOfRange, "varspace.NewValue",
			"parameter %s: level index %d outside [0, %d)", d.name, index, len(d.levels))
	}
	return &DiscreteValue{param: d, index: index}, nil
}

// Nearest returns the value whose level is closest to x.
func (d *DiscreteParameter) Nearest(x float64) *DiscreteValue {
	best := 0
	for i, l := range d.levels {
		if math.Abs(l-x) < math.Abs(d.levels[best]-x) {
			best = i
		}
	}
	return &DiscreteValue{param: d, index: best}
}

// DiscreteValue is a case's level choice.
type DiscreteValue struct {
	param *DiscreteParameter
	index int
}

func (v *DiscreteValue) Parameter() Parameter { return v.param }
func (v *DiscreteValue) Floats() []float64    { return []float64{float64(v.index)} }

// Index is the selected level index.
func (v *DiscreteValue) Index() int { return v.index }

// Level is the selected numeric level.
func (v *DiscreteValue) Level() float64 { return v.param.levels[v.index] }

func (v *DiscreteValue) Mutate(m model.Model) error {
	if err := m.SetParameter(v.param.target, []float64{v.Level()}); err != nil {
		return casaerr.Wrap(casaerr.IoError, "varspace.Mutate", err, "parameter %s", v.param.name)
	}
	return nil
}

func (v *DiscreteValue) Validate(m model.Model) string {
	got, err := m.Parameter(v.param.target)
	if err != nil {
		return fmt.Sprintf("%s: %v", v.param.name, err)
	}
	if len(got) != 1 || !utils.AlmostEqual(got[0], v.Level(), utils.DefaultTolerance) {
		return fmt.Sprintf("%s: project holds %v, expected %g", v.param.name, got, v.Level())
	}
	return ""
}

func (v *DiscreteValue) Equal(other Value) bool {
	o, ok := other.(*DiscreteValue)
	return ok && sameParameter(v.param, o.param) && v.index == o.index
}
