package montecarlo

import (
	"log/slog"
	"math"

	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
	"github.com/GoSim-25-26J-441/casa-core/internal/observable"
	"github.com/GoSim-25-26J-441/casa-core/internal/rsproxy"
	"github.com/GoSim-25-26J-441/casa-core/internal/runcase"
)

type component struct {
	sub    int
	ref    float64
	dev    float64
	weight float64
}

type target struct {
	desc  observable.Descriptor
	index int
	// off is the first raw proxy column of desc
	off   int
	comps []component
}

// objective compares reported values with the references of a catalog.
type objective struct {
	targets []target
	factor  float64
	size    int
}

func newObjective(proxy *rsproxy.Proxy, catalog *observable.Catalog, factor float64, log *slog.Logger) (*objective, error) {
	offsets := make(map[observable.Descriptor]int)
	off := 0
	for _, d := range proxy.Catalog().Descriptors() {
		offsets[d] = off
		off += d.RawDimension()
	}

	o := &objective{factor: factor}
	for _, d := range catalog.Descriptors() {
		pOff, ok := offsets[d]
		if !ok {
			return nil, casaerr.New(casaerr.ConfigError, "montecarlo.objective",
				"observable %s is not predicted by proxy %s", d.Names()[0], proxy.Name())
		}
		ref, dev, ok := d.Reference()
		if !ok {
			continue
		}
		pIdx := proxy.Catalog().IndexOf(d)
		t := target{desc: d, index: pIdx, off: pOff}
		for j := range ref {
			if observable.IsNoData(ref[j]) {
				continue
			}
			if !proxy.Catalog().IsValid(pIdx, j) {
				log.Warn("observable never produced data, excluded from misfit", "observable", d.Names()[j])
				continue
			}
			t.comps = append(t.comps, component{sub: j, ref: ref[j], dev: dev[j], weight: d.UAWeight()})
		}
		if len(t.comps) > 0 {
			o.targets = append(o.targets, t)
			o.size += len(t.comps)
		}
	}
	return o, nil
}

// residuals writes sqrt(w)*(s-r)/(factor*dev) for every component, zero where
// reported has no data, and returns the number of components with data.
func (o *objective) residuals(reported func(target) []float64, out []float64) int {
	k, used := 0, 0
	for _, t := range o.targets {
		vals := reported(t)
		for _, c := range t.comps {
			out[k] = 0
			if vals != nil && !observable.IsNoData(vals[c.sub]) {
				out[k] = math.Sqrt(c.weight) * (vals[c.sub] - c.ref) / (o.factor * c.dev)
				used++
			}
			k++
		}
	}
	return used
}

// caseReported reads the reported values stored in c.
func caseReported(c *runcase.Case) func(target) []float64 {
	return func(t target) []float64 {
		v, ok := c.ValueFor(t.desc)
		if !ok {
			return nil
		}
		return v.Reported()
	}
}

// rawReported transforms a raw proxy prediction.
func rawReported(raw []float64) func(target) []float64 {
	return func(t target) []float64 {
		v, err := t.desc.NewValue(raw[t.off : t.off+t.desc.RawDimension()])
		if err != nil {
			return nil
		}
		return v.Reported()
	}
}

// misfit is the weighted root mean square of the normalized residuals.
func (o *objective) misfit(reported func(target) []float64) float64 {
	r := make([]float64, o.size)
	if o.residuals(reported, r) == 0 {
		return math.NaN()
	}
	sum, wsum := 0.0, 0.0
	k := 0
	for _, t := range o.targets {
		vals := reported(t)
		for _, c := range t.comps {
			if vals != nil && !observable.IsNoData(vals[c.sub]) {
				sum += r[k] * r[k]
				wsum += c.weight
			}
			k++
		}
	}
	if wsum == 0 {
		return math.NaN()
	}
	return math.Sqrt(sum / wsum)
}

// chiSquare is the unweighted sum of squared normalized residuals and the
// number of terms.
func (o *objective) chiSquare(reported func(target) []float64) (float64, int) {
	chi, n := 0.0, 0
	for _, t := range o.targets {
		vals := reported(t)
		for _, c := range t.comps {
			if vals == nil || observable.IsNoData(vals[c.sub]) {
				continue
			}
			d := (vals[c.sub] - c.ref) / (o.factor * c.dev)
			chi += d * d
			n++
		}
	}
	return chi, n
}
