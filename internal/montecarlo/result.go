package montecarlo

import (
	"cmp"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
	"github.com/GoSim-25-26J-441/casa-core/internal/observable"
	"github.com/GoSim-25-26J-441/casa-core/internal/runcase"
)

// Sample pairs a proxy-evaluated case with its RMS misfit. The misfit is
// NaN when no reference could be compared.
type Sample struct {
	Misfit float64
	Case   *runcase.Case
}

// Result is the outcome of one Run.
type Result struct {
	Algorithm Algorithm
	// Samples in sampling order.
	Samples []Sample
	// GOF is the goodness of fit of the best sample in percent.
	GOF                  float64
	ProposedStdDevFactor float64

	catalog *observable.Catalog
}

// Cases returns the sample cases in sampling order.
func (r *Result) Cases() []*runcase.Case {
	out := make([]*runcase.Case, len(r.Samples))
	for i, s := range r.Samples {
		out[i] = s.Case
	}
	return out
}

func byMisfit(a, b Sample) int {
	switch {
	case math.IsNaN(a.Misfit) && math.IsNaN(b.Misfit):
		return 0
	case math.IsNaN(a.Misfit):
		return 1
	case math.IsNaN(b.Misfit):
		return -1
	}
	return cmp.Compare(a.Misfit, b.Misfit)
}

// Sorted returns the samples by increasing misfit. Samples keeps its order.
func (r *Result) Sorted() []Sample {
	out := slices.Clone(r.Samples)
	slices.SortStableFunc(out, byMisfit)
	return out
}

// Best returns the sample with the smallest misfit.
func (r *Result) Best() (Sample, bool) {
	if len(r.Samples) == 0 {
		return Sample{}, false
	}
	return slices.MinFunc(r.Samples, byMisfit), true
}

// Percentiles are the levels reported by CDF.
var Percentiles = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9}

// CDF returns P10..P90 of sub-observable sub of d over the samples with data.
func (r *Result) CDF(d observable.Descriptor, sub int) ([]float64, error) {
	const op = "Result.CDF"
	if r.catalog == nil || r.catalog.IndexOf(d) < 0 {
		return nil, casaerr.New(casaerr.UndefinedValue, op, "observable %s is not part of this result", d.Names()[0])
	}
	if sub < 0 || sub >= d.Dimension() {
		return nil, casaerr.New(casaerr.OutOfRange, op, "observable %s has %d sub-observables, asked for %d",
			d.Names()[0], d.Dimension(), sub)
	}
	var vals []float64
	for _, s := range r.Samples {
		v, ok := s.Case.ValueFor(d)
		if !ok {
			continue
		}
		if x := v.Reported()[sub]; !observable.IsNoData(x) {
			vals = append(vals, x)
		}
	}
	if len(vals) == 0 {
		return nil, casaerr.New(casaerr.UndefinedValue, op, "observable %s has no sampled data", d.Names()[sub])
	}
	slices.Sort(vals)
	out := make([]float64, len(Percentiles))
	for i, p := range Percentiles {
		out[i] = stat.Quantile(p, stat.Empirical, vals, nil)
	}
	return out, nil
}
