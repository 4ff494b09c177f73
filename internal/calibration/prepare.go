// Package calibration fits the continuous parameters of a scenario to the
// observable references by running the simulator inside a Levenberg-Marquardt
// loop, one case at a time.
package calibration

import (
	"math"
	"strconv"

	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
	"github.com/GoSim-25-26J-441/casa-core/internal/observable"
	"github.com/GoSim-25-26J-441/casa-core/internal/varspace"
	"github.com/GoSim-25-26J-441/casa-core/pkg/utils"
)

// Coordinate maps one optimizer coordinate to a continuous sub-parameter.
type Coordinate struct {
	Param *varspace.ContinuousParameter
	Sub   int
}

// Name is <parameter>[<sub>] for multi-dimensional parameters.
func (c Coordinate) Name() string {
	if c.Param.Dimension() == 1 {
		return c.Param.Name()
	}
	return c.Param.Name() + "[" + strconv.Itoa(c.Sub) + "]"
}

func (c Coordinate) bounds() (lo, hi float64) {
	return c.Param.Min()[c.Sub], c.Param.Max()[c.Sub]
}

// Clamp limits x to the sub-parameter range.
func (c Coordinate) Clamp(x float64) float64 {
	lo, hi := c.bounds()
	return utils.ClampFloat64(x, lo, hi)
}

// Target is one scored sub-observable.
type Target struct {
	Desc   observable.Descriptor
	Sub    int
	Ref    float64
	Dev    float64
	Weight float64
}

// Name is the sub-observable name.
func (t Target) Name() string { return t.Desc.Names()[t.Sub] }

// Residual is sqrt(weight)*|simulated-reference|/deviation.
func (t Target) Residual(simulated float64) float64 {
	return math.Sqrt(t.Weight) * math.Abs(simulated-t.Ref) / t.Dev
}

// PrepareParameters collects the free continuous sub-parameters of the space
// and returns their base values as the initial guess. Frozen sub-parameters
// are left out and stay at their base value in every case.
func (l *Loop) PrepareParameters() ([]float64, error) {
	l.coords = l.coords[:0]
	var x0 []float64
	for _, p := range l.space.Continuous() {
		base := p.Base()
		for i := range p.Dimension() {
			if p.Frozen(i) {
				l.log.Debug("sub-parameter frozen", "parameter", p.Name(), "sub", i, "value", base[i])
				continue
			}
			l.coords = append(l.coords, Coordinate{Param: p, Sub: i})
			x0 = append(x0, base[i])
		}
	}
	if len(l.coords) == 0 {
		return nil, casaerr.New(casaerr.ConfigError, "calibration.PrepareParameters",
			"no free continuous parameter among %d parameters", l.space.Len())
	}
	l.log.Info("parameters prepared", "free", len(l.coords))
	return x0, nil
}

// PrepareObservables selects the sub-observables that apply to the base
// project and carry a reference value. It returns the residual vector
// length: one entry per target plus one prior term per coordinate.
func (l *Loop) PrepareObservables() (int, error) {
	l.targets = l.targets[:0]
	for _, d := range l.catalog.Descriptors() {
		ref, dev, ok := d.Reference()
		if !ok {
			l.log.Debug("observable has no reference", "observable", d.Names()[0])
			continue
		}
		if !d.IsApplicable(l.base) {
			l.log.Warn("observable not applicable to base case", "observable", d.Names()[0])
			continue
		}
		for i, r := range ref {
			if observable.IsNoData(r) {
				continue
			}
			l.targets = append(l.targets, Target{Desc: d, Sub: i, Ref: r, Dev: dev[i], Weight: d.UAWeight()})
		}
	}
	if len(l.targets) == 0 {
		return 0, casaerr.New(casaerr.ConfigError, "calibration.PrepareObservables",
			"none of %d observables is applicable with a reference value", l.catalog.Len())
	}
	l.log.Info("observables prepared", "targets", len(l.targets), "coordinates", len(l.coords))
	return len(l.targets) + len(l.coords), nil
}

// Coordinates returns the optimizer coordinate mapping.
func (l *Loop) Coordinates() []Coordinate { return append([]Coordinate(nil), l.coords...) }

// Targets returns the scored sub-observables in residual order.
func (l *Loop) Targets() []Target { return append([]Target(nil), l.targets...) }
