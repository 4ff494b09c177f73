package observable

import (
	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
	"github.com/GoSim-25-26J-441/casa-core/internal/serial"
)

const (
	catalogVersion = 1
	valueVersion   = 1
)

func specObject(s Spec) serial.Object {
	o := serial.Object{
		"kind":          s.Kind,
		"name":          s.Name,
		"property":      s.Property,
		"x":             s.X,
		"y":             s.Y,
		"z":             s.Z,
		"age":           s.Age,
		"well":          s.Well,
		"xs":            serial.FloatList(s.Xs),
		"ys":            serial.FloatList(s.Ys),
		"zs":            serial.FloatList(s.Zs),
		"reservoir":     s.Reservoir,
		"log_transform": s.LogTransform,
		"sa_weight":     s.SAWeight,
		"ua_weight":     s.UAWeight,
	}
	if s.Reference != nil {
		o["reference"] = serial.FloatList(s.Reference)
		o["std_dev"] = serial.FloatList(s.StdDev)
	}
	return o
}

func objectSpec(o serial.Object) (Spec, error) {
	var s Spec
	var err error
	for _, f := range []struct {
		key string
		dst *string
	}{
		{"kind", &s.Kind}, {"name", &s.Name}, {"property", &s.Property}, {"well", &s.Well}, {"reservoir", &s.Reservoir},
	} {
		if *f.dst, err = o.String(f.key); err != nil {
			return s, err
		}
	}
	for _, f := range []struct {
		key string
		dst *float64
	}{
		{"x", &s.X}, {"y", &s.Y}, {"z", &s.Z}, {"age", &s.Age}, {"sa_weight", &s.SAWeight}, {"ua_weight", &s.UAWeight},
	} {
		if *f.dst, err = o.Float(f.key); err != nil {
			return s, err
		}
	}
	for _, f := range []struct {
		key string
		dst *[]float64
	}{
		{"xs", &s.Xs}, {"ys", &s.Ys}, {"zs", &s.Zs},
	} {
		if *f.dst, err = o.Floats(f.key); err != nil {
			return s, err
		}
	}
	if s.LogTransform, err = o.Bool("log_transform"); err != nil {
		return s, err
	}
	if o.Has("reference") {
		if s.Reference, err = o.Floats("reference"); err != nil {
			return s, err
		}
		if s.StdDev, err = o.Floats("std_dev"); err != nil {
			return s, err
		}
	}
	return s, nil
}

// SaveCatalog writes every descriptor, registering each in reg.
func SaveCatalog(c *Catalog, reg *serial.Registry) serial.Object {
	o := serial.NewObject(catalogVersion)
	recs := make([]serial.Object, len(c.descs))
	for i, d := range c.descs {
		rec := specObject(d.Spec())
		rec["id"] = reg.ID(d)
		valid := make([]any, len(c.valid[i]))
		for j, v := range c.valid[i] {
			valid[j] = v
		}
		rec["valid"] = valid
		recs[i] = rec
	}
	o["observables"] = serial.ObjectList(recs)
	return o
}

// LoadCatalog restores a catalog, building descriptors through kinds and
// binding each in reg. A nil kinds uses DefaultRegistry.
func LoadCatalog(o serial.Object, reg *serial.Registry, kinds *Registry) (*Catalog, error) {
	if _, err := serial.CheckVersion(o, "ObsSpace", catalogVersion); err != nil {
		return nil, err
	}
	if kinds == nil {
		kinds = DefaultRegistry()
	}
	recs, err := o.Objects("observables")
	if err != nil {
		return nil, err
	}
	c := NewCatalog()
	for _, rec := range recs {
		s, err := objectSpec(rec)
		if err != nil {
			return nil, err
		}
		d, err := kinds.Create(s)
		if err != nil {
			return nil, casaerr.Wrap(casaerr.DeserializationError, "LoadCatalog", err, "observable %s", s.Name)
		}
		id, err := rec.Int64("id")
		if err != nil {
			return nil, err
		}
		if err := reg.Bind(id, d); err != nil {
			return nil, err
		}
		i, err := c.Register(d)
		if err != nil {
			return nil, err
		}
		if l, ok := rec["valid"].([]any); ok {
			for j, v := range l {
				if b, _ := v.(bool); b && j < len(c.valid[i]) {
					c.valid[i][j] = true
				}
			}
		}
	}
	return c, nil
}

// SaveValue writes v with its descriptor's registry id.
func SaveValue(v Value, reg *serial.Registry) serial.Object {
	o := serial.NewObject(valueVersion)
	o["descriptor"] = reg.ID(v.Descriptor())
	o["kind"] = v.Kind().String()
	o["raw"] = serial.FloatList(v.Raw())
	if v.Kind() == TransformableKind {
		o["reported"] = serial.FloatList(v.Reported())
	}
	return o
}

// LoadValue restores a value whose descriptor is already bound in reg.
func LoadValue(o serial.Object, reg *serial.Registry) (Value, error) {
	const op = "observable.LoadValue"
	if _, err := serial.CheckVersion(o, "ObsValue", valueVersion); err != nil {
		return nil, err
	}
	id, err := o.Int64("descriptor")
	if err != nil {
		return nil, err
	}
	d, err := serial.Resolve[Descriptor](reg, id)
	if err != nil {
		return nil, err
	}
	kind, err := o.String("kind")
	if err != nil {
		return nil, err
	}
	raw, err := o.Floats("raw")
	if err != nil {
		return nil, err
	}

	switch kind {
	case ScalarKind.String():
		if len(raw) != 1 {
			return nil, casaerr.New(casaerr.DeserializationError, op, "observable %s: scalar with %d values", d.Names()[0], len(raw))
		}
		return NewScalar(d, raw[0]), nil
	case ArrayKind.String():
		return NewArray(d, raw), nil
	case TransformableKind.String():
		reported, err := o.Floats("reported")
		if err != nil {
			return nil, err
		}
		return NewTransformable(d, raw, reported), nil
	default:
		return nil, casaerr.New(casaerr.DeserializationError, op, "unknown value kind %q", kind)
	}
}
