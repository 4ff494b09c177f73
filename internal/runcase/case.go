// Package runcase holds the per-case record of parameter assignments and
// observable results, and the experiment-indexed set of cases.
package runcase

import (
	"fmt"
	"strings"

	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
	"github.com/GoSim-25-26J-441/casa-core/internal/model"
	"github.com/GoSim-25-26J-441/casa-core/internal/observable"
	"github.com/GoSim-25-26J-441/casa-core/internal/varspace"
)

// State is the lifecycle state of a case.
type State int

const (
	NotSubmitted State = iota
	Running
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case NotSubmitted:
		return "NotSubmitted"
	case Running:
		return "Running"
	case Completed:
		return "Completed"
	case Failed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ParseState maps a state name to a State.
func ParseState(s string) (State, error) {
	for st := NotSubmitted; st <= Failed; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown case state %q", s)
}

// Case is one concrete parameter assignment and, once run, its observable values.
type Case struct {
	params   []varspace.Value
	obs      []observable.Value
	state    State
	project  string
	mutated  model.Model
	maxParam int
}

// Option customizes a Case.
type Option func(*Case)

// WithParameterLimit caps the number of parameters, usually at the size of
// the active parameter space.
func WithParameterLimit(n int) Option {
	return func(c *Case) { c.maxParam = n }
}

// New returns an empty case.
func New(opts ...Option) *Case {
	c := &Case{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddParameter appends v. A case holds at most one value per parameter.
func (c *Case) AddParameter(v varspace.Value) error {
	for _, p := range c.params {
		if sameParameter(p.Parameter(), v.Parameter()) {
			return casaerr.New(casaerr.AlreadyDefined, "Case.AddParameter",
				"parameter %s already defined for this case", v.Parameter().Name())
		}
	}
	if c.maxParam > 0 && len(c.params) >= c.maxParam {
		return casaerr.New(casaerr.OutOfRange, "Case.AddParameter",
			"can not add parameter %s: case already holds %d of %d parameters", v.Parameter().Name(), len(c.params), c.maxParam)
	}
	c.params = append(c.params, v)
	return nil
}

func sameParameter(a, b varspace.Parameter) bool {
	return a.Kind() == b.Kind() && a.Name() == b.Name()
}

// AddObservableValue appends v. A case holds at most one value per descriptor.
func (c *Case) AddObservableValue(v observable.Value) error {
	for _, o := range c.obs {
		if o.Descriptor() == v.Descriptor() || o.Descriptor().Equivalent(v.Descriptor()) {
			return casaerr.New(casaerr.AlreadyDefined, "Case.AddObservableValue",
				"value for observable %s already defined for this case", v.Descriptor().Names()[0])
		}
	}
	c.obs = append(c.obs, v)
	return nil
}

// FillObservableValue stores v unless the case already holds real data for
// its descriptor. A stored no-data value is replaced.
func (c *Case) FillObservableValue(v observable.Value) error {
	for i, o := range c.obs {
		if o.Descriptor() != v.Descriptor() && !o.Descriptor().Equivalent(v.Descriptor()) {
			continue
		}
		if observable.HasData(o) {
			return casaerr.New(casaerr.AlreadyDefined, "Case.FillObservableValue",
				"observable %s already holds a simulated value", v.Descriptor().Names()[0])
		}
		c.obs[i] = v
		return nil
	}
	c.obs = append(c.obs, v)
	return nil
}

// ParametersNumber is the number of parameter values.
func (c *Case) ParametersNumber() int { return len(c.params) }

// Parameter returns the i-th parameter value.
func (c *Case) Parameter(i int) varspace.Value { return c.params[i] }

// Parameters returns the parameter values in insertion order.
func (c *Case) Parameters() []varspace.Value {
	out := make([]varspace.Value, len(c.params))
	copy(out, c.params)
	return out
}

// ParameterFor returns the value assigned to p.
func (c *Case) ParameterFor(p varspace.Parameter) (varspace.Value, bool) {
	for _, v := range c.params {
		if sameParameter(v.Parameter(), p) {
			return v, true
		}
	}
	return nil, false
}

// ObservablesNumber is the number of observable values.
func (c *Case) ObservablesNumber() int { return len(c.obs) }

// ObservableValue returns the i-th observable value.
func (c *Case) ObservableValue(i int) observable.Value { return c.obs[i] }

// ObservableValues returns the observable values in insertion order.
func (c *Case) ObservableValues() []observable.Value {
	out := make([]observable.Value, len(c.obs))
	copy(out, c.obs)
	return out
}

// ValueFor returns the value stored for d.
func (c *Case) ValueFor(d observable.Descriptor) (observable.Value, bool) {
	for _, v := range c.obs {
		if v.Descriptor() == d {
			return v, true
		}
	}
	return nil, false
}

func (c *Case) State() State            { return c.state }
func (c *Case) SetState(s State)        { c.state = s }
func (c *Case) ProjectPath() string     { return c.project }
func (c *Case) SetProjectPath(p string) { c.project = p }

// Model returns the mutated project, opening it from the project path if needed.
func (c *Case) Model() (model.Model, error) {
	if c.mutated != nil {
		return c.mutated, nil
	}
	if c.project == "" {
		return nil, casaerr.New(casaerr.UndefinedValue, "Case.Model", "case has no project")
	}
	m, err := model.Open(c.project)
	if err != nil {
		return nil, err
	}
	c.mutated = m
	return m, nil
}

// Reload drops the cached project so the next Model call reads it from disk,
// picking up what the simulator wrote.
func (c *Case) Reload() { c.mutated = nil }

// MutateTo copies base to path, applies every parameter value in order and
// saves the result as this case's project.
func (c *Case) MutateTo(base model.Model, path string) error {
	const op = "Case.MutateTo"
	m, err := base.CopyTo(path)
	if err != nil {
		return casaerr.Wrap(casaerr.IoError, op, err, "can not copy base project to %s", path)
	}
	for _, v := range c.params {
		if err := v.Mutate(m); err != nil {
			return casaerr.Wrap(casaerr.IoError, op, err, "can not apply parameter %s", v.Parameter().Name())
		}
	}
	if err := m.Save(); err != nil {
		return casaerr.Wrap(casaerr.IoError, op, err, "can not save mutated project %s", path)
	}
	c.mutated = m
	c.project = path
	return nil
}

// Validate checks every parameter against the mutated project and reports all
// violations together.
func (c *Case) Validate() error {
	m, err := c.Model()
	if err != nil {
		return casaerr.Wrap(casaerr.ValidationError, "Case.Validate", err, "case has no mutated project")
	}
	var msgs []string
	for _, v := range c.params {
		if msg := v.Validate(m); msg != "" {
			msgs = append(msgs, msg)
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return casaerr.New(casaerr.ValidationError, "Case.Validate", "%s", strings.Join(msgs, "\n"))
}

// Equal compares parameter values structurally, in order.
func (c *Case) Equal(other *Case) bool {
	if other == nil || len(c.params) != len(other.params) {
		return false
	}
	for i := range c.params {
		if !c.params[i].Equal(other.params[i]) {
			return false
		}
	}
	return true
}
