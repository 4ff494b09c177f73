package varspace

import (
	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
	"github.com/GoSim-25-26J-441/casa-core/internal/serial"
)

const (
	spaceVersion = 1
	valueVersion = 1
)

func saveParameter(p Parameter, reg *serial.Registry) serial.Object {
	o := serial.NewObject(spaceVersion)
	o["id"] = reg.ID(p)
	o["kind"] = p.Kind().String()
	o["name"] = p.Name()
	o["target"] = p.Target()

	switch t := p.(type) {
	case *ContinuousParameter:
		o["min"] = serial.FloatList(t.min)
		o["max"] = serial.FloatList(t.max)
		o["base"] = serial.FloatList(t.base)
		o["std_dev"] = serial.FloatList(t.stdDev)
		o["prior"] = t.prior.String()
	case *CategoricalParameter:
		o["labels"] = serial.StringList(t.labels)
		o["options"] = serial.StringList(t.options)
		o["base"] = t.base
	case *DiscreteParameter:
		o["levels"] = serial.FloatList(t.levels)
		o["base"] = t.base
	}
	return o
}

func loadParameter(o serial.Object) (Parameter, error) {
	kindName, err := o.String("kind")
	if err != nil {
		return nil, err
	}
	kind, err := ParseKind(kindName)
	if err != nil {
		return nil, casaerr.Wrap(casaerr.DeserializationError, "varspace.load", err, "bad parameter record")
	}
	name, err := o.String("name")
	if err != nil {
		return nil, err
	}
	target, err := o.String("target")
	if err != nil {
		return nil, err
	}

	switch kind {
	case Continuous:
		min, err := o.Floats("min")
		if err != nil {
			return nil, err
		}
		max, err := o.Floats("max")
		if err != nil {
			return nil, err
		}
		base, err := o.Floats("base")
		if err != nil {
			return nil, err
		}
		sd, err := o.Floats("std_dev")
		if err != nil {
			return nil, err
		}
		priorName, err := o.String("prior")
		if err != nil {
			return nil, err
		}
		prior, err := ParsePrior(priorName)
		if err != nil {
			return nil, casaerr.Wrap(casaerr.DeserializationError, "varspace.load", err, "parameter %s", name)
		}
		return NewContinuous(name, target, min, max, base, WithPrior(prior), WithStdDev(sd))
	case Categorical:
		labels, err := o.Strings("labels")
		if err != nil {
			return nil, err
		}
		options, err := o.Strings("options")
		if err != nil {
			return nil, err
		}
		base, err := o.Int("base")
		if err != nil {
			return nil, err
		}
		return NewCategorical(name, target, labels, options, base)
	default:
		levels, err := o.Floats("levels")
		if err != nil {
			return nil, err
		}
		base, err := o.Int("base")
		if err != nil {
			return nil, err
		}
		return NewDiscrete(name, target, levels, base)
	}
}

// SaveSpace writes the space, registering every parameter in reg.
func SaveSpace(s *Space, reg *serial.Registry) serial.Object {
	o := serial.NewObject(spaceVersion)
	params := make([]serial.Object, len(s.params))
	for i, p := range s.params {
		params[i] = saveParameter(p, reg)
	}
	o["parameters"] = serial.ObjectList(params)
	return o
}

// LoadSpace restores a space saved by SaveSpace and binds every parameter in reg.
func LoadSpace(o serial.Object, reg *serial.Registry) (*Space, error) {
	if _, err := serial.CheckVersion(o, "VarSpace", spaceVersion); err != nil {
		return nil, err
	}
	recs, err := o.Objects("parameters")
	if err != nil {
		return nil, err
	}
	s := NewSpace()
	for _, rec := range recs {
		if _, err := serial.CheckVersion(rec, "VarParameter", spaceVersion); err != nil {
			return nil, err
		}
		p, err := loadParameter(rec)
		if err != nil {
			return nil, err
		}
		id, err := rec.Int64("id")
		if err != nil {
			return nil, err
		}
		if err := reg.Bind(id, p); err != nil {
			return nil, err
		}
		if err := s.Add(p); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// SaveValue writes v with a reference to its parameter's registry id.
func SaveValue(v Value, reg *serial.Registry) serial.Object {
	o := serial.NewObject(valueVersion)
	o["parameter"] = reg.ID(v.Parameter())
	o["values"] = serial.FloatList(v.Floats())
	return o
}

// LoadValue restores a value whose parameter is already bound in reg.
func LoadValue(o serial.Object, reg *serial.Registry) (Value, error) {
	if _, err := serial.CheckVersion(o, "ParameterValue", valueVersion); err != nil {
		return nil, err
	}
	id, err := o.Int64("parameter")
	if err != nil {
		return nil, err
	}
	p, err := serial.Resolve[Parameter](reg, id)
	if err != nil {
		return nil, err
	}
	vals, err := o.Floats("values")
	if err != nil {
		return nil, err
	}

	switch t := p.(type) {
	case *ContinuousParameter:
		return t.NewValue(vals)
	case *CategoricalParameter:
		if len(vals) != 1 {
			return nil, casaerr.New(casaerr.DeserializationError, "varspace.LoadValue", "parameter %s: expected 1 value, got %d", t.name, len(vals))
		}
		return t.NewValue(int(vals[0]))
	case *DiscreteParameter:
		if len(vals) != 1 {
			return nil, casaerr.New(casaerr.DeserializationError, "varspace.LoadValue", "parameter %s: expected 1 value, got %d", t.name, len(vals))
		}
		return t.NewValue(int(vals[0]))
	default:
		return nil, casaerr.New(casaerr.DeserializationError, "varspace.LoadValue", "unsupported parameter type %T", p)
	}
}
