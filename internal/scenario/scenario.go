// Package scenario ties the parameter space, the observable catalog and the
// case sets of one scenario analysis together with the run manager, the
// proxies and the calibration loop.
package scenario

import (
	"context"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
	"github.com/GoSim-25-26J-441/casa-core/internal/doe"
	"github.com/GoSim-25-26J-441/casa-core/internal/ledger"
	"github.com/GoSim-25-26J-441/casa-core/internal/metrics"
	"github.com/GoSim-25-26J-441/casa-core/internal/model"
	"github.com/GoSim-25-26J-441/casa-core/internal/montecarlo"
	"github.com/GoSim-25-26J-441/casa-core/internal/observable"
	"github.com/GoSim-25-26J-441/casa-core/internal/rsproxy"
	"github.com/GoSim-25-26J-441/casa-core/internal/runcase"
	"github.com/GoSim-25-26J-441/casa-core/internal/runmgr"
	"github.com/GoSim-25-26J-441/casa-core/internal/varspace"
	"github.com/GoSim-25-26J-441/casa-core/pkg/logger"
)

// Scenario is one scenario analysis. It is not safe for concurrent use.
type Scenario struct {
	id        string
	basePath  string
	base      model.Model
	location  string
	iteration int

	space   *varspace.Space
	catalog *observable.Catalog
	kinds   *observable.Registry

	doeCases *runcase.Set
	mcCases  *runcase.Set
	calCases *runcase.Set

	proxies    map[string]*rsproxy.Proxy
	proxyOrder []string
	mc         *montecarlo.Result

	designer doe.Provider
	fitter   rsproxy.FitProvider
	runner   runmgr.Runner
	store    ledger.Store
	metrics  *metrics.Collector
	log      *slog.Logger
}

// Option customizes a Scenario.
type Option func(*Scenario)

// WithID sets the scenario identifier. An empty id gets a random one.
func WithID(id string) Option { return func(s *Scenario) { s.id = id } }

// WithDesignProvider replaces the built-in design generator.
func WithDesignProvider(p doe.Provider) Option { return func(s *Scenario) { s.designer = p } }

// WithFitProvider replaces the built-in least-squares fitter.
func WithFitProvider(f rsproxy.FitProvider) Option { return func(s *Scenario) { s.fitter = f } }

// WithRunner sets the run manager.
func WithRunner(r runmgr.Runner) Option { return func(s *Scenario) { s.runner = r } }

// WithLedger records calibration cases in store.
func WithLedger(store ledger.Store) Option { return func(s *Scenario) { s.store = store } }

// WithObservableKinds sets the registry used to build and load observables.
func WithObservableKinds(r *observable.Registry) Option { return func(s *Scenario) { s.kinds = r } }

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option { return func(s *Scenario) { s.metrics = m } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Scenario) { s.log = l } }

// New returns an empty scenario.
func New(opts ...Option) *Scenario {
	s := &Scenario{
		space:    varspace.NewSpace(),
		catalog:  observable.NewCatalog(),
		doeCases: runcase.NewSet(),
		mcCases:  runcase.NewSet(),
		calCases: runcase.NewSet(),
		proxies:  make(map[string]*rsproxy.Proxy),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	if s.kinds == nil {
		s.kinds = observable.DefaultRegistry()
	}
	if s.designer == nil {
		s.designer = doe.NewBuiltin(0)
	}
	if s.fitter == nil {
		s.fitter = rsproxy.LeastSquares{}
	}
	s.log = logger.OrComponent(s.log, "scenario").With("scenario", s.id)
	return s
}

func (s *Scenario) ID() string                   { return s.id }
func (s *Scenario) Location() string             { return s.location }
func (s *Scenario) SetLocation(dir string)       { s.location = dir }
func (s *Scenario) Iteration() int               { return s.iteration }
func (s *Scenario) Space() *varspace.Space       { return s.space }
func (s *Scenario) Catalog() *observable.Catalog { return s.catalog }
func (s *Scenario) DoECases() *runcase.Set       { return s.doeCases }
func (s *Scenario) MCCases() *runcase.Set        { return s.mcCases }

// CalibrationCases holds the cases of the latest calibration.
func (s *Scenario) CalibrationCases() *runcase.Set { return s.calCases }

// SetRunner replaces the run manager.
func (s *Scenario) SetRunner(r runmgr.Runner) { s.runner = r }

// SetBaseCase opens the project every case is derived from.
func (s *Scenario) SetBaseCase(path string) error {
	m, err := model.Open(path)
	if err != nil {
		return err
	}
	s.basePath, s.base = path, m
	return nil
}

// BaseCasePath is the path of the base project.
func (s *Scenario) BaseCasePath() string { return s.basePath }

// BaseCase returns the base project, opening it on first use.
func (s *Scenario) BaseCase() (model.Model, error) {
	if s.base != nil {
		return s.base, nil
	}
	if s.basePath == "" {
		return nil, casaerr.New(casaerr.UndefinedValue, "Scenario.BaseCase", "scenario %s has no base case", s.id)
	}
	if err := s.SetBaseCase(s.basePath); err != nil {
		return nil, err
	}
	return s.base, nil
}

// AddParameter adds p to the parameter space.
func (s *Scenario) AddParameter(p varspace.Parameter) error { return s.space.Add(p) }

// AddObservable registers d in the catalog.
func (s *Scenario) AddObservable(d observable.Descriptor) error {
	_, err := s.catalog.Register(d)
	return err
}

// AddObservableSpec builds an observable through the kind registry and
// registers it.
func (s *Scenario) AddObservableSpec(spec observable.Spec) (observable.Descriptor, error) {
	d, err := s.kinds.Create(spec)
	if err != nil {
		return nil, err
	}
	if err := s.AddObservable(d); err != nil {
		return nil, err
	}
	return d, nil
}

// GenerateDoE adds a design to the DoE case set and returns its label.
func (s *Scenario) GenerateDoE(ctx context.Context, family doe.Family, samples int, label string) (string, error) {
	d := doe.NewDriver(s.designer, doe.WithLogger(s.log), doe.WithMetrics(s.metrics))
	return d.Generate(ctx, s.space, s.doeCases, family, samples, label)
}

// ProxyNames lists the proxies in creation order.
func (s *Scenario) ProxyNames() []string { return slices.Clone(s.proxyOrder) }

// Proxy returns the proxy called name.
func (s *Scenario) Proxy(name string) (*rsproxy.Proxy, bool) {
	p, ok := s.proxies[name]
	return p, ok
}

// MonteCarlo returns the latest Monte-Carlo result, nil before the first run.
func (s *Scenario) MonteCarlo() *montecarlo.Result { return s.mc }
