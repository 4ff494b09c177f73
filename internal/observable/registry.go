package observable

import (
	"sort"

	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
)

// Spec holds the construction parameters of any descriptor kind. Fields that
// do not apply to a kind are ignored.
type Spec struct {
	Kind         string    `yaml:"kind"`
	Name         string    `yaml:"name,omitempty"`
	Property     string    `yaml:"property"`
	X            float64   `yaml:"x,omitempty"`
	Y            float64   `yaml:"y,omitempty"`
	Z            float64   `yaml:"z,omitempty"`
	Age          float64   `yaml:"age,omitempty"`
	Well         string    `yaml:"well,omitempty"`
	Xs           []float64 `yaml:"xs,omitempty"`
	Ys           []float64 `yaml:"ys,omitempty"`
	Zs           []float64 `yaml:"zs,omitempty"`
	Reservoir    string    `yaml:"reservoir,omitempty"`
	LogTransform bool      `yaml:"log_transform,omitempty"`
	Reference    []float64 `yaml:"reference,omitempty"`
	StdDev       []float64 `yaml:"std_dev,omitempty"`
	SAWeight     float64   `yaml:"sa_weight,omitempty"`
	UAWeight     float64   `yaml:"ua_weight,omitempty"`
}

// Factory builds a descriptor from a Spec. Reference and weights are applied
// by the Registry afterwards.
type Factory func(s Spec) (Descriptor, error)

// Registry maps descriptor kind names to factories. It is constructed
// explicitly and passed to whoever needs to build descriptors.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry with every built-in kind.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(GridPropertyXYZ.String(), func(s Spec) (Descriptor, error) {
		return NewGridXYZ(s.Name, s.Property, s.X, s.Y, s.Z, s.Age), nil
	})
	_ = r.Register(GridPropertyWell.String(), func(s Spec) (Descriptor, error) {
		return NewGridWell(s.Name, s.Well, s.Property, s.Xs, s.Ys, s.Zs, s.Age)
	})
	_ = r.Register(TrapProperty.String(), func(s Spec) (Descriptor, error) {
		return NewTrap(s.Name, s.Property, s.Reservoir, s.X, s.Y, s.Age), nil
	})
	_ = r.Register(TrapDerivedProperty.String(), func(s Spec) (Descriptor, error) {
		return NewTrapDerived(s.Name, s.Property, s.Reservoir, s.X, s.Y, s.Age, s.LogTransform)
	})
	return r
}

// Register adds a factory under kind.
func (r *Registry) Register(kind string, f Factory) error {
	if _, ok := r.factories[kind]; ok {
		return casaerr.New(casaerr.AlreadyDefined, "observable.Registry", "observable kind %s already registered", kind)
	}
	r.factories[kind] = f
	return nil
}

// Kinds lists the registered kind names in sorted order.
func (r *Registry) Kinds() []string {
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Create builds a descriptor and applies reference and weights from s.
func (r *Registry) Create(s Spec) (Descriptor, error) {
	f, ok := r.factories[s.Kind]
	if !ok {
		return nil, casaerr.New(casaerr.ConfigError, "observable.Create", "unknown observable kind %q", s.Kind)
	}
	if s.Property == "" {
		return nil, casaerr.New(casaerr.ConfigError, "observable.Create", "%s observable %q has no property", s.Kind, s.Name)
	}
	d, err := f(s)
	if err != nil {
		return nil, err
	}
	if s.Reference != nil {
		if err := d.SetReference(s.Reference, s.StdDev); err != nil {
			return nil, err
		}
	}
	sa, ua := s.SAWeight, s.UAWeight
	if sa == 0 && ua == 0 {
		sa, ua = 1, 1
	}
	if err := d.SetWeights(sa, ua); err != nil {
		return nil, err
	}
	return d, nil
}
