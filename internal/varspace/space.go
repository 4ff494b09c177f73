package varspace

import (
	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
)

// Space is the insertion-ordered set of variable parameters of a scenario.
type Space struct {
	params []Parameter
	byName map[string]int
}

// NewSpace returns an empty parameter space.
func NewSpace() *Space {
	return &Space{byName: make(map[string]int)}
}

// Add appends p. Names are unique within a space.
func (s *Space) Add(p Parameter) error {
	if _, ok := s.byName[p.Name()]; ok {
		return casaerr.New(casaerr.AlreadyDefined, "Space.Add", "parameter %s already defined", p.Name())
	}
	s.byName[p.Name()] = len(s.params)
	s.params = append(s.params, p)
	return nil
}

// Len is the number of parameters.
func (s *Space) Len() int { return len(s.params) }

// Parameter returns the i-th parameter.
func (s *Space) Parameter(i int) Parameter { return s.params[i] }

// Parameters returns the parameters in insertion order.
func (s *Space) Parameters() []Parameter {
	out := make([]Parameter, len(s.params))
	copy(out, s.params)
	return out
}

// Lookup finds a parameter by name.
func (s *Space) Lookup(name string) (Parameter, bool) {
	i, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return s.params[i], true
}

// IndexOf returns the position of the parameter named name, or -1.
func (s *Space) IndexOf(name string) int {
	if i, ok := s.byName[name]; ok {
		return i
	}
	return -1
}

// Continuous returns the continuous parameters in order.
func (s *Space) Continuous() []*ContinuousParameter {
	var out []*ContinuousParameter
	for _, p := range s.params {
		if c, ok := p.(*ContinuousParameter); ok {
			out = append(out, c)
		}
	}
	return out
}

// Categorical returns the categorical parameters in order.
func (s *Space) Categorical() []*CategoricalParameter {
	var out []*CategoricalParameter
	for _, p := range s.params {
		if c, ok := p.(*CategoricalParameter); ok {
			out = append(out, c)
		}
	}
	return out
}

// Discrete returns the discrete parameters in order.
func (s *Space) Discrete() []*DiscreteParameter {
	var out []*DiscreteParameter
	for _, p := range s.params {
		if d, ok := p.(*DiscreteParameter); ok {
			out = append(out, d)
		}
	}
	return out
}

// ContinuousDimension is the total number of continuous sub-parameters.
func (s *Space) ContinuousDimension() int {
	n := 0
	for _, c := range s.Continuous() {
		n += c.Dimension()
	}
	return n
}

// BaseValues returns every parameter's base value in order.
func (s *Space) BaseValues() []Value {
	out := make([]Value, len(s.params))
	for i, p := range s.params {
		out[i] = p.BaseValue()
	}
	return out
}

// MinValues returns every parameter's lower bound value in order.
func (s *Space) MinValues() []Value {
	out := make([]Value, len(s.params))
	for i, p := range s.params {
		out[i] = p.MinValue()
	}
	return out
}

// MaxValues returns every parameter's upper bound value in order.
func (s *Space) MaxValues() []Value {
	out := make([]Value, len(s.params))
	for i, p := range s.params {
		out[i] = p.MaxValue()
	}
	return out
}
