// Package observable describes what is extracted from a simulation run and
// holds the per-case values produced by extraction or by a proxy.
package observable

import (
	"fmt"
	"math"
	"slices"

	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
	"github.com/GoSim-25-26J-441/casa-core/internal/model"
)

// NoDataValue marks a sub-observable that does not apply to a case, for
// example because its locator lies outside the model grid.
const NoDataValue = 99999.0

// IsNoData reports whether v is the no-data sentinel.
func IsNoData(v float64) bool {
	return math.Abs(v-NoDataValue) < 1e-6 || math.IsNaN(v)
}

// Kind tags the descriptor families.
type Kind int

const (
	GridPropertyXYZ Kind = iota
	GridPropertyWell
	TrapProperty
	TrapDerivedProperty
)

var kindNames = map[Kind]string{
	GridPropertyXYZ:     "GridPropertyXYZ",
	GridPropertyWell:    "GridPropertyWell",
	TrapProperty:        "TrapProperty",
	TrapDerivedProperty: "TrapDerivedProperty",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Descriptor is a catalog entry: what to extract, where, and how it is scored.
type Descriptor interface {
	Kind() Kind
	// Names lists one name per reported sub-observable.
	Names() []string
	Property() string
	// Dimension is the number of reported sub-observables.
	Dimension() int
	// RawDimension is the number of numbers extracted before transformation.
	RawDimension() int

	// Reference returns the measured values and their standard deviations.
	Reference() (ref, dev []float64, ok bool)
	SetReference(ref, dev []float64) error
	SAWeight() float64
	UAWeight() float64
	SetWeights(sa, ua float64) error

	// IsApplicable reports whether the locator makes sense for m.
	IsApplicable(m model.Model) bool
	// RequestInModel adds the mining rows this descriptor needs to m.
	RequestInModel(m model.Model) error
	// ExtractFrom reads a value from a completed run.
	ExtractFrom(m model.Model) (Value, error)
	// NewValue builds a value from raw numbers, applying the transform.
	NewValue(raw []float64) (Value, error)

	// Equivalent reports whether other extracts the same thing.
	Equivalent(other Descriptor) bool
	// Spec returns the construction parameters of the descriptor.
	Spec() Spec
}

// common carries the scoring metadata shared by every descriptor kind.
type common struct {
	names    []string
	property string
	age      float64
	ref      []float64
	dev      []float64
	saWeight float64
	uaWeight float64
}

func newCommon(names []string, property string, age float64) common {
	return common{names: names, property: property, age: age, saWeight: 1, uaWeight: 1}
}

func (c *common) Names() []string   { return slices.Clone(c.names) }
func (c *common) Property() string  { return c.property }
func (c *common) Dimension() int    { return len(c.names) }
func (c *common) SAWeight() float64 { return c.saWeight }
func (c *common) UAWeight() float64 { return c.uaWeight }

func (c *common) Reference() ([]float64, []float64, bool) {
	if c.ref == nil {
		return nil, nil, false
	}
	return slices.Clone(c.ref), slices.Clone(c.dev), true
}

// SetReference accepts one deviation per sub-observable or a single shared one.
func (c *common) SetReference(ref, dev []float64) error {
	const op = "observable.SetReference"
	if len(ref) != len(c.names) {
		return casaerr.New(casaerr.OutOfRange, op,
			"observable %s: expected %d reference values, got %d", c.names[0], len(c.names), len(ref))
	}
	if len(dev) == 1 && len(ref) > 1 {
		shared := dev[0]
		dev = make([]float64, len(ref))
		for i := range dev {
			dev[i] = shared
		}
	}
	if len(dev) != len(ref) {
		return casaerr.New(casaerr.OutOfRange, op,
			"observable %s: expected %d standard deviations, got %d", c.names[0], len(ref), len(dev))
	}
	for i, d := range dev {
		if d <= 0 {
			return casaerr.New(casaerr.OutOfRange, op,
				"observable %s: standard deviation %g must be positive", c.names[i], d)
		}
	}
	c.ref = slices.Clone(ref)
	c.dev = slices.Clone(dev)
	return nil
}

func (c *common) SetWeights(sa, ua float64) error {
	if sa < 0 || ua < 0 {
		return casaerr.New(casaerr.OutOfRange, "observable.SetWeights",
			"observable %s: weights must be non-negative (sa %g, ua %g)", c.names[0], sa, ua)
	}
	c.saWeight = sa
	c.uaWeight = ua
	return nil
}

func (c *common) fillSpec(s *Spec) {
	s.Property = c.property
	s.Age = c.age
	s.SAWeight = c.saWeight
	s.UAWeight = c.uaWeight
	if c.ref != nil {
		s.Reference = slices.Clone(c.ref)
		s.StdDev = slices.Clone(c.dev)
	}
}

func noData(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = NoDataValue
	}
	return out
}

func checkRaw(d Descriptor, raw []float64) error {
	if len(raw) != d.RawDimension() {
		return casaerr.New(casaerr.OutOfRange, "observable.NewValue",
			"observable %s: expected %d raw values, got %d", d.Names()[0], d.RawDimension(), len(raw))
	}
	return nil
}

func sameFloat(a, b float64) bool {
	return math.Abs(a-b) < model.Epsilon
}
