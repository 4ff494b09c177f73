package varspace

import (
	"fmt"
	"slices"

	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
	"github.com/GoSim-25-26J-441/casa-core/internal/model"
)

// CategoricalParameter chooses one label out of an ordered list. Each label is
// written to the model as its option value.
type CategoricalParameter struct {
	name    string
	target  string
	labels  []string
	options []string
	base    int
}

// NewCategorical builds a categorical parameter. options may be nil, in which
// case the labels themselves are written to the model.
func NewCategorical(name, target string, labels, options []string, base int) (*CategoricalParameter, error) {
	const op = "varspace.NewCategorical"
	if name == "" {
		return nil, casaerr.New(casaerr.ConfigError, op, "parameter name cannot be empty")
	}
	if len(labels) == 0 {
		return nil, casaerr.New(casaerr.ConfigError, op, "parameter %s: no categories", name)
	}
	if options == nil {
		options = labels
	}
	if len(options) != len(labels) {
		return nil, casaerr.New(casaerr.ConfigError, op,
			"parameter %s: %d model options for %d categories", name, len(options), len(labels))
	}
	if base < 0 || base >= len(labels) {
		return nil, casaerr.New(casaerr.OutOfRange, op,
			"parameter %s: base index %d outside [0, %d)", name, base, len(labels))
	}
	if target == "" {
		target = name
	}
	return &CategoricalParameter{
		name:    name,
		target:  target,
		labels:  slices.Clone(labels),
		options: slices.Clone(options),
		base:    base,
	}, nil
}

func (c *CategoricalParameter) Name() string   { return c.name }
func (c *CategoricalParameter) Kind() Kind     { return Categorical }
func (c *CategoricalParameter) Target() string { return c.target }
func (c *CategoricalParameter) Dimension() int { return 1 }

// Labels returns the category labels in order.
func (c *CategoricalParameter) Labels() []string { return slices.Clone(c.labels) }

// Options returns the per-label model values.
func (c *CategoricalParameter) Options() []string { return slices.Clone(c.options) }

// Count is the number of categories.
func (c *CategoricalParameter) Count() int { return len(c.labels) }

// BaseIndex is the index of the base category.
func (c *CategoricalParameter) BaseIndex() int { return c.base }

func (c *CategoricalParameter) BaseValue() Value { return &CategoricalValue{param: c, index: c.base} }
func (c *CategoricalParameter) MinValue() Value  { return &CategoricalValue{param: c, index: 0} }
func (c *CategoricalParameter) MaxValue() Value {
	return &CategoricalValue{param: c, index: len(c.labels) - 1}
}

// NewValue builds the value selecting category index.
func (c *CategoricalParameter) NewValue(index int) (*CategoricalValue, error) {
	if index < 0 || index >= len(c.labels) {
		return nil, casaerr.New(casaerr.OutOfRange, "varspace.NewValue",
			"parameter %s: category index %d outside [0, %d)", c.name, index, len(c.labels))
	}
	return &CategoricalValue{param: c, index: index}, nil
}

// CategoricalValue is a case's category choice.
type CategoricalValue struct {
	param *CategoricalParameter
	index int
}

func (v *CategoricalValue) Parameter() Parameter { return v.param }
func (v *CategoricalValue) Floats() []float64    { return []float64{float64(v.index)} }

// Index is the selected category index.
func (v *CategoricalValue) Index() int { return v.index }

// Label is the selected category label.
func (v *CategoricalValue) Label() string { return v.param.labels[v.index] }

func (v *CategoricalValue) Mutate(m model.Model) error {
	if err := m.SetOption(v.param.target, v.param.options[v.index]); err != nil {
		return casaerr.Wrap(casaerr.IoError, "varspace.Mutate", err, "parameter %s", v.param.name)
	}
	return nil
}

func (v *CategoricalValue) Validate(m model.Model) string {
	got, err := m.Option(v.param.target)
	if err != nil {
		return fmt.Sprintf("%s: %v", v.param.name, err)
	}
	if want := v.param.options[v.index]; got != want {
		return fmt.Sprintf("%s: project holds %q, expected %q", v.param.name, got, want)
	}
	return ""
}

func (v *CategoricalValue) Equal(other Value) bool {
	o, ok := other.(*CategoricalValue)
	return ok && sameParameter(v.param, o.param) && v.index == o.index
}
