package rsproxy

import (
	"math"
	"slices"

	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
	"github.com/GoSim-25-26J-441/casa-core/internal/observable"
	"github.com/GoSim-25-26J-441/casa-core/internal/serial"
	"github.com/GoSim-25-26J-441/casa-core/internal/varspace"
)

const proxyVersion = 1

// Save writes the proxy definition and its coefficients. Kriging training
// points are not stored.
func Save(p *Proxy) serial.Object {
	o := serial.NewObject(proxyVersion)
	o["name"] = p.name
	o["order"] = p.order
	o["kriging"] = p.kriging.String()
	o["doe_list"] = serial.StringList(p.doeList)
	o["fitted"] = p.fitted
	cols := make([]serial.Object, len(p.coeffs))
	for i, c := range p.coeffs {
		keys := make([]string, 0, len(c))
		for k := range c {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		vals := make([]float64, len(keys))
		for j, k := range keys {
			vals[j] = c[k]
		}
		cols[i] = serial.Object{"terms": serial.StringList(keys), "values": serial.FloatList(vals)}
	}
	o["columns"] = serial.ObjectList(cols)
	return o
}

// Load restores a proxy saved by Save on top of space and catalog.
func Load(o serial.Object, space *varspace.Space, catalog *observable.Catalog, opts ...Option) (*Proxy, error) {
	const op = "rsproxy.Load"
	if _, err := serial.CheckVersion(o, "proxy", proxyVersion); err != nil {
		return nil, err
	}
	name, err := o.String("name")
	if err != nil {
		return nil, err
	}
	order, err := o.Int("order")
	if err != nil {
		return nil, err
	}
	ks, err := o.String("kriging")
	if err != nil {
		return nil, err
	}
	kriging, err := ParseKriging(ks)
	if err != nil {
		return nil, casaerr.Wrap(casaerr.DeserializationError, op, err, "proxy %s", name)
	}
	doeList, err := o.Strings("doe_list")
	if err != nil {
		return nil, err
	}
	fitted, err := o.Bool("fitted")
	if err != nil {
		return nil, err
	}

	opts = append(opts, WithOrder(order), WithKriging(kriging), WithDoEList(doeList))
	p, err := New(name, space, catalog, opts...)
	if err != nil {
		return nil, casaerr.Wrap(casaerr.DeserializationError, op, err, "proxy %s", name)
	}
	if !fitted {
		return p, nil
	}

	cols, err := o.Objects("columns")
	if err != nil {
		return nil, err
	}
	if len(cols) != p.Columns() {
		return nil, casaerr.New(casaerr.DeserializationError, op,
			"proxy %s: %d coefficient columns stored, catalog has %d", name, len(cols), p.Columns())
	}
	dim := Dimension(space)
	p.coeffs = make([]Coefficients, len(cols))
	p.polys = make([]polynomial, len(cols))
	p.r2 = make([]float64, len(cols))
	for i, co := range cols {
		keys, err := co.Strings("terms")
		if err != nil {
			return nil, err
		}
		vals, err := co.Floats("values")
		if err != nil {
			return nil, err
		}
		if len(keys) != len(vals) {
			return nil, casaerr.New(casaerr.DeserializationError, op,
				"proxy %s column %d: %d terms but %d values", name, i, len(keys), len(vals))
		}
		c := make(Coefficients, len(keys))
		for j, k := range keys {
			c[k] = vals[j]
		}
		poly, err := compile(c, dim)
		if err != nil {
			return nil, casaerr.Wrap(casaerr.DeserializationError, op, err, "proxy %s column %d", name, i)
		}
		p.coeffs[i], p.polys[i], p.r2[i] = c, poly, math.NaN()
	}
	p.fitted = true
	return p, nil
}
