package runcase

import (
	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
	"github.com/GoSim-25-26J-441/casa-core/internal/observable"
	"github.com/GoSim-25-26J-441/casa-core/internal/serial"
	"github.com/GoSim-25-26J-441/casa-core/internal/varspace"
)

const (
	caseVersion = 1
	setVersion  = 1
)

// SaveCase writes c. Parameters and descriptors it refers to are registered in reg.
func SaveCase(c *Case, reg *serial.Registry) serial.Object {
	o := serial.NewObject(caseVersion)
	o["id"] = reg.ID(c)
	o["state"] = c.state.String()
	o["project"] = c.project
	o["max_params"] = c.maxParam

	params := make([]serial.Object, len(c.params))
	for i, v := range c.params {
		params[i] = varspace.SaveValue(v, reg)
	}
	o["parameters"] = serial.ObjectList(params)

	obs := make([]serial.Object, len(c.obs))
	for i, v := range c.obs {
		obs[i] = observable.SaveValue(v, reg)
	}
	o["observables"] = serial.ObjectList(obs)
	return o
}

// LoadCase restores a case saved by SaveCase.
func LoadCase(o serial.Object, reg *serial.Registry) (*Case, error) {
	if _, err := serial.CheckVersion(o, "RunCase", caseVersion); err != nil {
		return nil, err
	}
	id, err := o.Int64("id")
	if err != nil {
		return nil, err
	}
	// a case shared by several containers is restored once
	if prev, ok := reg.Lookup(id); ok {
		if c, ok := prev.(*Case); ok {
			return c, nil
		}
	}
	stateName, err := o.String("state")
	if err != nil {
		return nil, err
	}
	state, err := ParseState(stateName)
	if err != nil {
		return nil, casaerr.Wrap(casaerr.DeserializationError, "LoadCase", err, "bad case record")
	}
	project, err := o.String("project")
	if err != nil {
		return nil, err
	}
	maxParam, err := o.Int("max_params")
	if err != nil {
		return nil, err
	}
	c := New(WithParameterLimit(maxParam))
	c.state = state
	c.project = project

	params, err := o.Objects("parameters")
	if err != nil {
		return nil, err
	}
	for _, p := range params {
		v, err := varspace.LoadValue(p, reg)
		if err != nil {
			return nil, err
		}
		if err := c.AddParameter(v); err != nil {
			return nil, err
		}
	}
	obs, err := o.Objects("observables")
	if err != nil {
		return nil, err
	}
	for _, ob := range obs {
		v, err := observable.LoadValue(ob, reg)
		if err != nil {
			return nil, err
		}
		if err := c.AddObservableValue(v); err != nil {
			return nil, err
		}
	}
	if err := reg.Bind(id, c); err != nil {
		return nil, err
	}
	return c, nil
}

// SaveSet writes the cases, the experiment index and the current filter.
func SaveSet(s *Set, reg *serial.Registry) serial.Object {
	o := serial.NewObject(setVersion)
	cases := make([]serial.Object, len(s.cases))
	for i, c := range s.cases {
		cases[i] = SaveCase(c, reg)
	}
	o["cases"] = serial.ObjectList(cases)

	exps := make([]serial.Object, len(s.expNames))
	for i, name := range s.expNames {
		exps[i] = serial.Object{"name": name, "indices": serial.IntList(s.expIndex[name])}
	}
	o["experiments"] = serial.ObjectList(exps)
	o["filter"] = serial.StringList(s.filter)
	return o
}

// LoadSet restores a set saved by SaveSet.
func LoadSet(o serial.Object, reg *serial.Registry) (*Set, error) {
	const op = "LoadSet"
	if _, err := serial.CheckVersion(o, "RunCaseSet", setVersion); err != nil {
		return nil, err
	}
	s := NewSet()

	cases, err := o.Objects("cases")
	if err != nil {
		return nil, err
	}
	for _, co := range cases {
		c, err := LoadCase(co, reg)
		if err != nil {
			return nil, err
		}
		s.cases = append(s.cases, c)
	}

	exps, err := o.Objects("experiments")
	if err != nil {
		return nil, err
	}
	for _, e := range exps {
		name, err := e.String("name")
		if err != nil {
			return nil, err
		}
		idx, err := e.Ints("indices")
		if err != nil {
			return nil, err
		}
		for _, i := range idx {
			if i < 0 || i >= len(s.cases) {
				return nil, casaerr.New(casaerr.DeserializationError, op,
					"experiment %s: case index %d outside [0, %d)", name, i, len(s.cases))
			}
		}
		if _, dup := s.expIndex[name]; dup {
			return nil, casaerr.New(casaerr.DeserializationError, op, "experiment %s stored twice", name)
		}
		s.expNames = append(s.expNames, name)
		s.expIndex[name] = idx
	}

	filter, err := o.Strings("filter")
	if err != nil {
		return nil, err
	}
	if err := s.FilterByDoeList(filter); err != nil {
		return nil, casaerr.Wrap(casaerr.DeserializationError, op, err, "bad filter")
	}
	return s, nil
}
