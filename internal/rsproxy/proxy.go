// Package rsproxy holds the response-surface proxy: a polynomial surrogate of
// the simulator fitted on completed design cases, optionally corrected by
// kriging.
package rsproxy

import (
	"context"
	"log/slog"
	"maps"
	"time"

	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
	"github.com/GoSim-25-26J-441/casa-core/internal/metrics"
	"github.com/GoSim-25-26J-441/casa-core/internal/observable"
	"github.com/GoSim-25-26J-441/casa-core/internal/runcase"
	"github.com/GoSim-25-26J-441/casa-core/internal/varspace"
	"github.com/GoSim-25-26J-441/casa-core/pkg/logger"
)

// Proxy approximates every raw sub-observable of a catalog as a polynomial
// of the normalized parameters. Calculate must finish before Evaluate is
// called; afterwards Evaluate may run concurrently on distinct cases.
type Proxy struct {
	name     string
	order    int
	kriging  Kriging
	doeList  []string
	space    *varspace.Space
	catalog  *observable.Catalog
	provider FitProvider
	log      *slog.Logger
	metrics  *metrics.Collector

	coeffs []Coefficients
	polys  []polynomial
	r2     []float64
	krig   *krigingModel
	fitted bool
}

// Option customizes a Proxy.
type Option func(*Proxy)

// WithOrder sets the polynomial order (default 1).
func WithOrder(order int) Option { return func(p *Proxy) { p.order = order } }

// WithKriging sets the interpolation correction.
func WithKriging(k Kriging) Option { return func(p *Proxy) { p.kriging = k } }

// WithFitProvider replaces the least-squares fitter.
func WithFitProvider(f FitProvider) Option { return func(p *Proxy) { p.provider = f } }

// WithDoEList records the experiments the proxy is trained on.
func WithDoEList(labels []string) Option {
	return func(p *Proxy) { p.doeList = append([]string(nil), labels...) }
}

// WithLogger sets the proxy logger.
func WithLogger(l *slog.Logger) Option { return func(p *Proxy) { p.log = l } }

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option { return func(p *Proxy) { p.metrics = m } }

// New returns an unfitted proxy over space and catalog.
func New(name string, space *varspace.Space, catalog *observable.Catalog, opts ...Option) (*Proxy, error) {
	p := &Proxy{name: name, order: 1, space: space, catalog: catalog, provider: LeastSquares{}}
	for _, opt := range opts {
		opt(p)
	}
	if name == "" {
		return nil, casaerr.New(casaerr.ConfigError, "rsproxy.New", "proxy name cannot be empty")
	}
	if p.order < 0 || p.order > 2 {
		return nil, casaerr.New(casaerr.ConfigError, "rsproxy.New", "proxy %s: order %d not supported (0 to 2)", name, p.order)
	}
	p.log = logger.OrComponent(p.log, "rsproxy").With("proxy", name)
	return p, nil
}

func (p *Proxy) Name() string                 { return p.name }
func (p *Proxy) Order() int                   { return p.order }
func (p *Proxy) Kriging() Kriging             { return p.kriging }
func (p *Proxy) DoEList() []string            { return append([]string(nil), p.doeList...) }
func (p *Proxy) Space() *varspace.Space       { return p.space }
func (p *Proxy) Catalog() *observable.Catalog { return p.catalog }

// Fitted reports whether coefficients are available.
func (p *Proxy) Fitted() bool { return p.fitted }

// Columns is the number of raw sub-observables the proxy predicts.
func (p *Proxy) Columns() int { return rawDimension(p.catalog) }

// Coefficients returns the map of raw sub-observable col.
func (p *Proxy) Coefficients(col int) Coefficients {
	if col < 0 || col >= len(p.coeffs) {
		return nil
	}
	return maps.Clone(p.coeffs[col])
}

// CoefficientsFor returns the maps of the raw sub-observables of d.
func (p *Proxy) CoefficientsFor(d observable.Descriptor) []Coefficients {
	off, ok := p.offset(d)
	if !ok || !p.fitted {
		return nil
	}
	out := make([]Coefficients, d.RawDimension())
	for i := range out {
		out[i] = maps.Clone(p.coeffs[off+i])
	}
	return out
}

// RSquared returns the fit quality of raw sub-observable col, NaN without data.
func (p *Proxy) RSquared(col int) float64 { return p.r2[col] }

func (p *Proxy) offset(d observable.Descriptor) (int, bool) {
	off := 0
	for _, e := range p.catalog.Descriptors() {
		if e == d {
			return off, true
		}
		off += e.RawDimension()
	}
	return 0, false
}

// Calculate fits the proxy on cases. Nothing changes when the fit fails.
func (p *Proxy) Calculate(ctx context.Context, cases []*runcase.Case) (err error) {
	const op = "Proxy.Calculate"
	start := time.Now()
	defer func() { p.metrics.RecordProxyFit(err) }()

	if len(cases) == 0 {
		return casaerr.New(casaerr.SolverError, op, "proxy %s: no completed cases to fit", p.name)
	}
	req := FitRequest{Order: p.order}
	for i, c := range cases {
		x, err := Coordinates(p.space, c)
		if err != nil {
			return casaerr.Wrap(casaerr.CodeOf(err), op, err, "proxy %s: case %d", p.name, i)
		}
		req.Points = append(req.Points, x)
		req.Responses = append(req.Responses, responses(p.catalog, c))
	}
	p.log.Info("fitting proxy", "order", p.order, "kriging", p.kriging, "cases", len(cases), "columns", req.Columns())

	coeffs, err := p.provider.Fit(ctx, req)
	if err != nil {
		return casaerr.Wrap(casaerr.SolverError, op, err, "proxy %s: fit failed", p.name)
	}
	if len(coeffs) != req.Columns() {
		return casaerr.New(casaerr.SolverError, op, "proxy %s: provider returned %d coefficient maps, expected %d",
			p.name, len(coeffs), req.Columns())
	}
	dim := Dimension(p.space)
	polys := make([]polynomial, len(coeffs))
	r2 := make([]float64, len(coeffs))
	column := make([]float64, len(cases))
	for col, c := range coeffs {
		poly, err := compile(c, dim)
		if err != nil {
			return casaerr.Wrap(casaerr.SolverError, op, err, "proxy %s: column %d", p.name, col)
		}
		polys[col] = poly
		for r := range req.Responses {
			column[r] = req.Responses[r][col]
		}
		r2[col] = rSquared(poly, req.Points, column)
	}

	var km *krigingModel
	if p.kriging != NoKriging {
		km, err = newKrigingModel(p.kriging, polys, req.Points, req.Responses)
		if err != nil {
			return casaerr.Wrap(casaerr.SolverError, op, err, "proxy %s: kriging", p.name)
		}
	}

	p.coeffs = make([]Coefficients, len(coeffs))
	for i, c := range coeffs {
		p.coeffs[i] = maps.Clone(c)
	}
	p.polys, p.r2, p.krig, p.fitted = polys, r2, km, true
	p.log.Info("proxy fitted", "duration", time.Since(start))
	for col, v := range r2 {
		p.log.Debug("fit quality", "column", col, "r2", v)
	}
	return nil
}

// Predict returns every raw sub-observable at normalized coordinates x.
// Columns without training data are no-data.
func (p *Proxy) Predict(x []float64) ([]float64, error) {
	const op = "Proxy.Predict"
	if !p.fitted {
		return nil, casaerr.New(casaerr.UndefinedValue, op, "proxy %s is not calculated", p.name)
	}
	if dim := Dimension(p.space); len(x) != dim {
		return nil, casaerr.New(casaerr.OutOfRange, op, "proxy %s: got %d coordinates, expected %d", p.name, len(x), dim)
	}
	if p.kriging != NoKriging && p.krig == nil {
		return nil, casaerr.New(casaerr.SolverError, op,
			"proxy %s: %s needs the training points, which are not available after loading", p.name, p.kriging)
	}
	out := make([]float64, len(p.polys))
	for col, poly := range p.polys {
		if poly.empty() {
			out[col] = observable.NoDataValue
			continue
		}
		v := poly.eval(x)
		if p.krig != nil {
			corr, err := p.krig.correction(col, x)
			if err != nil {
				return nil, casaerr.Wrap(casaerr.SolverError, op, err, "proxy %s: column %d", p.name, col)
			}
			v += corr
		}
		out[col] = v
	}
	return out, nil
}

// Evaluate writes the proxy prediction for every descriptor into c. It fails
// with AlreadyDefined, before writing anything, when c already holds a
// simulated value for one of them.
func (p *Proxy) Evaluate(c *runcase.Case) error {
	const op = "Proxy.Evaluate"
	for _, d := range p.catalog.Descriptors() {
		if v, ok := c.ValueFor(d); ok && observable.HasData(v) {
			return casaerr.New(casaerr.AlreadyDefined, op,
				"proxy %s: case already holds a simulated value for %s", p.name, d.Names()[0])
		}
	}
	x, err := Coordinates(p.space, c)
	if err != nil {
		return err
	}
	raw, err := p.Predict(x)
	if err != nil {
		return err
	}

	vals := make([]observable.Value, 0, p.catalog.Len())
	off := 0
	for _, d := range p.catalog.Descriptors() {
		v, err := d.NewValue(raw[off : off+d.RawDimension()])
		if err != nil {
			return casaerr.Wrap(casaerr.CodeOf(err), op, err, "proxy %s: observable %s", p.name, d.Names()[0])
		}
		vals = append(vals, v)
		off += d.RawDimension()
	}
	for _, v := range vals {
		if err := c.FillObservableValue(v); err != nil {
			return err
		}
	}
	return nil
}
