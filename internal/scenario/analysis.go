package scenario

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/GoSim-25-26J-441/casa-core/internal/calibration"
	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
	"github.com/GoSim-25-26J-441/casa-core/internal/lm"
	"github.com/GoSim-25-26J-441/casa-core/internal/montecarlo"
	"github.com/GoSim-25-26J-441/casa-core/internal/rsproxy"
	"github.com/GoSim-25-26J-441/casa-core/internal/runcase"
	"github.com/GoSim-25-26J-441/casa-core/internal/varspace"
)

// MCLabel is the experiment label of the Monte-Carlo case set.
const MCLabel = "MC"

// AddProxy fits a proxy called name on the completed DoE cases of doeList.
func (s *Scenario) AddProxy(ctx context.Context, name string, order int, kriging rsproxy.Kriging, doeList []string) (*rsproxy.Proxy, error) {
	const op = "Scenario.AddProxy"
	if _, ok := s.proxies[name]; ok {
		return nil, casaerr.New(casaerr.AlreadyDefined, op, "proxy %s already exists", name)
	}
	cases, err := s.doeCases.CollectCompletedCases(doeList)
	if err != nil {
		return nil, err
	}
	p, err := rsproxy.New(name, s.space, s.catalog,
		rsproxy.WithOrder(order),
		rsproxy.WithKriging(kriging),
		rsproxy.WithDoEList(doeList),
		rsproxy.WithFitProvider(s.fitter),
		rsproxy.WithLogger(s.log),
		rsproxy.WithMetrics(s.metrics),
	)
	if err != nil {
		return nil, err
	}
	if err := p.Calculate(ctx, cases); err != nil {
		return nil, err
	}
	s.proxies[name] = p
	s.proxyOrder = append(s.proxyOrder, name)
	return p, nil
}

// RunMonteCarlo samples the proxy called name and replaces the Monte-Carlo
// case set with the samples. sampling restricts the drawn ranges; nil means
// the full parameter space.
func (s *Scenario) RunMonteCarlo(ctx context.Context, name string, settings montecarlo.Settings, sampling *varspace.Space) (*montecarlo.Result, error) {
	p, ok := s.proxies[name]
	if !ok {
		return nil, casaerr.New(casaerr.UndefinedValue, "Scenario.RunMonteCarlo", "unknown proxy %s", name)
	}
	solver, err := montecarlo.New(settings, montecarlo.WithLogger(s.log), montecarlo.WithMetrics(s.metrics))
	if err != nil {
		return nil, err
	}
	res, err := solver.Run(ctx, p, s.space, sampling, s.catalog)
	if err != nil {
		return nil, err
	}
	set := runcase.NewSet()
	if err := set.AddNewCases(res.Cases(), MCLabel); err != nil {
		return nil, err
	}
	s.mc, s.mcCases = res, set
	return res, nil
}

// SaveCalibratedCase writes the project of Monte-Carlo sample i (in sampling
// order) to path.
func (s *Scenario) SaveCalibratedCase(path string, i int) error {
	const op = "Scenario.SaveCalibratedCase"
	if s.mc == nil {
		return casaerr.New(casaerr.UndefinedValue, op, "no Monte-Carlo result in scenario %s", s.id)
	}
	if i < 0 || i >= len(s.mc.Samples) {
		return casaerr.New(casaerr.OutOfRange, op, "sample %d outside [0, %d)", i, len(s.mc.Samples))
	}
	base, err := s.BaseCase()
	if err != nil {
		return err
	}
	c := runcase.New()
	for _, v := range s.mc.Samples[i].Case.Parameters() {
		if err := c.AddParameter(v); err != nil {
			return err
		}
	}
	if err := c.MutateTo(base, path); err != nil {
		return err
	}
	s.log.Info("calibrated case saved", "sample", i, "misfit", s.mc.Samples[i].Misfit, "path", path)
	return nil
}

// Calibrate runs the Levenberg-Marquardt loop against the simulator. Cases
// are written under <location>/Calibration_<N> and collected in a new
// calibration case set.
func (s *Scenario) Calibrate(ctx context.Context, settings lm.Settings) (*calibration.Result, error) {
	const op = "Scenario.Calibrate"
	if s.runner == nil {
		return nil, casaerr.New(casaerr.ConfigError, op, "scenario %s has no run manager", s.id)
	}
	if s.location == "" {
		return nil, casaerr.New(casaerr.UndefinedValue, op, "scenario %s has no location", s.id)
	}
	base, err := s.BaseCase()
	if err != nil {
		return nil, err
	}
	s.iteration++
	dir := filepath.Join(s.location, fmt.Sprintf("Calibration_%d", s.iteration))
	set := runcase.NewSet()
	loop, err := calibration.New(s.space, s.catalog, base, s.runner, dir,
		calibration.WithScenarioID(s.id),
		calibration.WithCaseSet(set),
		calibration.WithLedger(s.store),
		calibration.WithMetrics(s.metrics),
		calibration.WithLogger(s.log),
		calibration.WithSettings(settings),
	)
	if err != nil {
		return nil, err
	}
	s.calCases = set
	return loop.Run(ctx)
}
