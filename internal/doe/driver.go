package doe

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
	"github.com/GoSim-25-26J-441/casa-core/internal/metrics"
	"github.com/GoSim-25-26J-441/casa-core/internal/runcase"
	"github.com/GoSim-25-26J-441/casa-core/internal/varspace"
	"github.com/GoSim-25-26J-441/casa-core/pkg/logger"
	"github.com/GoSim-25-26J-441/casa-core/pkg/utils"
)

// Driver generates design cases through a Provider.
type Driver struct {
	provider Provider
	log      *slog.Logger
	metrics  *metrics.Collector
}

// DriverOption customizes a Driver.
type DriverOption func(*Driver)

// WithLogger sets the driver logger.
func WithLogger(l *slog.Logger) DriverOption {
	return func(d *Driver) { d.log = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) DriverOption {
	return func(d *Driver) { d.metrics = m }
}

// NewDriver returns a driver using p. A nil p uses the built-in provider.
func NewDriver(p Provider, opts ...DriverOption) *Driver {
	if p == nil {
		p = NewBuiltin(0)
	}
	d := &Driver{provider: p}
	for _, opt := range opts {
		opt(d)
	}
	d.log = logger.OrComponent(d.log, "doe")
	return d
}

// DefaultLabel is the experiment label used when the caller gives none.
func DefaultLabel(f Family) string { return "DoE_" + string(f) }

// Generate asks the provider for a design over space and stores the cases in
// set under label. For additive families a numeric suffix is appended when
// label is already taken. Nothing is added to set when the provider fails.
// It returns the label actually used.
func (d *Driver) Generate(ctx context.Context, space *varspace.Space, set *runcase.Set, family Family, sampleCount int, label string) (string, error) {
	const op = "doe.Generate"
	if label == "" {
		label = DefaultLabel(family)
	}
	if family.NeedsSampleCount() && sampleCount <= 0 {
		return "", casaerr.New(casaerr.ConfigError, op, "design %s needs a positive sample count, got %d", family, sampleCount)
	}

	req := buildRequest(space, family, sampleCount)
	if family.Additive() {
		req.Existing = existingPoints(space, set, label)
		label = nextAdditiveLabel(set, label)
	}

	d.log.Info("generating design", "family", family, "label", label,
		"continuous", req.ContinuousDim(), "categorical", len(req.Levels), "existing", len(req.Existing))

	samples, err := d.provider.Design(ctx, req)
	if err != nil {
		return "", casaerr.Wrap(casaerr.SolverError, op, err, "design %s failed", family)
	}

	cases := make([]*runcase.Case, 0, len(samples))
	for i, s := range samples {
		c, err := sampleToCase(space, s)
		if err != nil {
			return "", casaerr.Wrap(casaerr.SolverError, op, err, "design %s sample %d", family, i)
		}
		cases = append(cases, c)
	}

	before := set.Len()
	if err := set.AddNewCases(cases, label); err != nil {
		return "", err
	}
	d.metrics.RecordDoE(string(family), len(cases))
	d.log.Info("design generated", "label", label, "samples", len(cases), "new_cases", set.Len()-before)
	return label, nil
}

func buildRequest(space *varspace.Space, family Family, sampleCount int) Request {
	req := Request{Family: family, SampleCount: sampleCount}
	for _, c := range space.Continuous() {
		req.Min = append(req.Min, c.Min()...)
		req.Max = append(req.Max, c.Max()...)
		req.Base = append(req.Base, c.Base()...)
	}
	for _, p := range space.Parameters() {
		switch t := p.(type) {
		case *varspace.CategoricalParameter:
			req.Levels = append(req.Levels, t.Count())
			req.BaseLevels = append(req.BaseLevels, t.BaseIndex())
		case *varspace.DiscreteParameter:
			req.Levels = append(req.Levels, len(t.Levels()))
			req.BaseLevels = append(req.BaseLevels, t.BaseIndex())
		}
	}
	return req
}

// nextAdditiveLabel returns label, or label_N with the first free N.
func nextAdditiveLabel(set *runcase.Set, label string) string {
	taken := make(map[string]bool)
	for _, n := range set.ExperimentNames() {
		taken[n] = true
	}
	if !taken[label] {
		return label
	}
	for n := 2; ; n++ {
		l := fmt.Sprintf("%s_%d", label, n)
		if !taken[l] {
			return l
		}
	}
}

// existingPoints collects the normalized continuous coordinates of every case
// stored under base or base_N.
func existingPoints(space *varspace.Space, set *runcase.Set, base string) [][]float64 {
	var out [][]float64
	seen := make(map[int]bool)
	for _, name := range set.ExperimentNames() {
		if name != base && !strings.HasPrefix(name, base+"_") {
			continue
		}
		for _, i := range set.IndexOf(name) {
			if seen[i] {
				continue
			}
			seen[i] = true
			out = append(out, normalizedContinuous(space, set.At(i)))
		}
	}
	return out
}

func normalizedContinuous(space *varspace.Space, c *runcase.Case) []float64 {
	var out []float64
	for _, p := range space.Continuous() {
		v, ok := c.ParameterFor(p)
		if !ok {
			out = append(out, make([]float64, p.Dimension())...)
			continue
		}
		out = append(out, v.(*varspace.ContinuousValue).Normalized()...)
	}
	return out
}

func sampleToCase(space *varspace.Space, s Sample) (*runcase.Case, error) {
	c := runcase.New(runcase.WithParameterLimit(space.Len()))
	ci, ki := 0, 0
	for _, p := range space.Parameters() {
		var (
			v   varspace.Value
			err error
		)
		switch t := p.(type) {
		case *varspace.ContinuousParameter:
			n := t.Dimension()
			if ci+n > len(s.Continuous) {
				return nil, casaerr.New(casaerr.OutOfRange, "doe.sample",
					"parameter %s: sample has %d continuous values, need at least %d", t.Name(), len(s.Continuous), ci+n)
			}
			norm := make([]float64, n)
			for i := range norm {
				norm[i] = utils.ClampFloat64(s.Continuous[ci+i], -1, 1)
			}
			v, err = t.FromNormalized(norm)
			ci += n
		case *varspace.CategoricalParameter:
			if ki >= len(s.Categorical) {
				return nil, casaerr.New(casaerr.OutOfRange, "doe.sample", "parameter %s: sample has no category index", t.Name())
			}
			v, err = t.NewValue(s.Categorical[ki])
			ki++
		case *varspace.DiscreteParameter:
			if ki >= len(s.Categorical) {
				return nil, casaerr.New(casaerr.OutOfRange, "doe.sample", "parameter %s: sample has no level index", t.Name())
			}
			v, err = t.NewValue(s.Categorical[ki])
			ki++
		}
		if err != nil {
			return nil, err
		}
		if err := c.AddParameter(v); err != nil {
			return nil, err
		}
	}
	if ci != len(s.Continuous) || ki != len(s.Categorical) {
		return nil, casaerr.New(casaerr.OutOfRange, "doe.sample",
			"sample size mismatch: %d/%d continuous and %d/%d categorical values used",
			ci, len(s.Continuous), ki, len(s.Categorical))
	}
	return c, nil
}
