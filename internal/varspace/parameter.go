// Package varspace defines the variable parameters a scenario explores and the
// per-case values assigned to them.
package varspace

import (
	"fmt"
	"strings"

	"github.com/GoSim-25-26J-441/casa-core/internal/model"
)

// Kind tags the variable parameter families.
type Kind int

const (
	Continuous Kind = iota
	Categorical
	Discrete
)

func (k Kind) String() string {
	switch k {
	case Continuous:
		return "Continuous"
	case Categorical:
		return "Categorical"
	case Discrete:
		return "Discrete"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps a configuration name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "continuous":
		return Continuous, nil
	case "categorical":
		return Categorical, nil
	case "discrete":
		return Discrete, nil
	}
	return 0, fmt.Errorf("unknown parameter kind %q", s)
}

// Parameter is one variable parameter of the scenario.
type Parameter interface {
	Name() string
	Kind() Kind
	// Target is the model key the parameter's values are written to.
	Target() string
	// Dimension is the number of scalar sub-parameters.
	Dimension() int
	BaseValue() Value
	MinValue() Value
	MaxValue() Value
}

// Value is one case's assignment for a Parameter.
type Value interface {
	Parameter() Parameter
	// Floats returns the numeric representation; categorical and discrete
	// values report their level index.
	Floats() []float64
	// Mutate writes the value into m.
	Mutate(m model.Model) error
	// Validate checks m against the value and returns a readable description
	// of every violation, empty when valid.
	Validate(m model.Model) string
	Equal(other Value) bool
}

// sameParameter decides identity by name and kind, never by pointer.
func sameParameter(a, b Parameter) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Kind() == b.Kind() && a.Name() == b.Name()
}
