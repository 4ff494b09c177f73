package calibration

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
	"github.com/GoSim-25-26J-441/casa-core/internal/ledger"
	"github.com/GoSim-25-26J-441/casa-core/internal/lm"
	"github.com/GoSim-25-26J-441/casa-core/internal/metrics"
	"github.com/GoSim-25-26J-441/casa-core/internal/model"
	"github.com/GoSim-25-26J-441/casa-core/internal/observable"
	"github.com/GoSim-25-26J-441/casa-core/internal/runcase"
	"github.com/GoSim-25-26J-441/casa-core/internal/runmgr"
	"github.com/GoSim-25-26J-441/casa-core/internal/varspace"
	"github.com/GoSim-25-26J-441/casa-core/pkg/logger"
)

// LabelPrefix starts the experiment label of every calibration case.
const LabelPrefix = "LMStep_"

// Loop runs the calibration of one scenario. It is not safe for concurrent
// use and keeps exactly one case in flight.
type Loop struct {
	space      *varspace.Space
	catalog    *observable.Catalog
	base       model.Model
	runner     runmgr.Runner
	dir        string
	scenarioID string

	set      *runcase.Set
	store    ledger.Store
	metrics  *metrics.Collector
	log      *slog.Logger
	settings lm.Settings
	criteria lm.Criterion

	coords  []Coordinate
	targets []Target
	step    int
	entry   string
	evals   []evaluation
}

type evaluation struct {
	x    []float64
	c    *runcase.Case
	norm float64
}

// Option customizes a Loop.
type Option func(*Loop)

// WithScenarioID sets the identifier handed to the run manager.
func WithScenarioID(id string) Option { return func(l *Loop) { l.scenarioID = id } }

// WithCaseSet collects the calibration cases into s instead of a private set.
func WithCaseSet(s *runcase.Set) Option { return func(l *Loop) { l.set = s } }

// WithLedger records every submitted case in store.
func WithLedger(store ledger.Store) Option { return func(l *Loop) { l.store = store } }

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option { return func(l *Loop) { l.metrics = m } }

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option { return func(l *Loop) { l.log = log } }

// WithSettings sets the solver budget and tolerances.
func WithSettings(s lm.Settings) Option { return func(l *Loop) { l.settings = s } }

// WithCriteria replaces the default stop criteria.
func WithCriteria(c lm.Criterion) Option { return func(l *Loop) { l.criteria = c } }

// New prepares a calibration of space against the references of catalog.
// Cases are materialized under dir from the base project.
func New(space *varspace.Space, catalog *observable.Catalog, base model.Model, runner runmgr.Runner, dir string, opts ...Option) (*Loop, error) {
	if space == nil || catalog == nil || base == nil || runner == nil {
		return nil, casaerr.New(casaerr.ConfigError, "calibration.New", "space, catalog, base project and runner are required")
	}
	if dir == "" {
		return nil, casaerr.New(casaerr.ConfigError, "calibration.New", "no folder for calibration cases")
	}
	l := &Loop{
		space:   space,
		catalog: catalog,
		base:    base,
		runner:  runner,
		dir:     dir,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.set == nil {
		l.set = runcase.NewSet()
	}
	l.log = logger.OrComponent(l.log, "calibration")
	return l, nil
}

// Cases returns the set holding the calibration cases.
func (l *Loop) Cases() *runcase.Set { return l.set }

func (l *Loop) projectName() string {
	name := filepath.Base(l.base.Path())
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "project.yaml"
	}
	return name
}

// caseValues builds the parameter values for the clamped coordinates x.
// Frozen sub-parameters and non-continuous parameters keep their base value.
func (l *Loop) caseValues(x []float64) ([]varspace.Value, error) {
	free := make(map[string][]float64)
	for k, c := range l.coords {
		vals, ok := free[c.Param.Name()]
		if !ok {
			vals = c.Param.Base()
			free[c.Param.Name()] = vals
		}
		vals[c.Sub] = c.Clamp(x[k])
	}

	out := make([]varspace.Value, 0, l.space.Len())
	for _, p := range l.space.Parameters() {
		cp, ok := p.(*varspace.ContinuousParameter)
		vals, moved := free[p.Name()]
		if !ok || !moved {
			out = append(out, p.BaseValue())
			continue
		}
		v, err := cp.NewValue(vals)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// UpdateParametersAndRunCase clamps x into the parameter ranges, materializes
// one case for it and runs it to completion through the run manager. The
// observables of the finished run are extracted into the case. When the
// clamped values match a completed case of the set, that case is filed under
// the new label and returned without running the simulator again; a matching
// case that did not complete is run again in place.
func (l *Loop) UpdateParametersAndRunCase(ctx context.Context, x []float64) (*runcase.Case, error) {
	const op = "calibration.UpdateParametersAndRunCase"
	if len(x) != len(l.coords) {
		return nil, casaerr.New(casaerr.OutOfRange, op, "expected %d coordinates, got %d", len(l.coords), len(x))
	}
	vals, err := l.caseValues(x)
	if err != nil {
		return nil, err
	}

	l.step++
	label := fmt.Sprintf("%s%d", LabelPrefix, l.step)
	c := runcase.New(runcase.WithParameterLimit(l.space.Len()))
	for _, v := range vals {
		if err := c.AddParameter(v); err != nil {
			return nil, err
		}
	}

	if prev := l.set.Find(c); prev != nil {
		if prev.State() == runcase.Completed {
			return l.reuse(ctx, label, prev, x)
		}
		c = prev
	}

	path := filepath.Join(l.dir, fmt.Sprintf("Iteration_%d", l.step), "Case_1", l.projectName())
	if err := c.MutateTo(l.base, path); err != nil {
		return nil, err
	}
	m, err := c.Model()
	if err != nil {
		return nil, err
	}
	if err := l.catalog.RequestInModel(m); err != nil {
		return nil, err
	}
	if err := m.Save(); err != nil {
		return nil, casaerr.Wrap(casaerr.IoError, op, err, "can not save observable requests for %s", path)
	}
	if err := l.set.AddNewCases([]*runcase.Case{c}, label); err != nil {
		return nil, err
	}

	entry, err := l.record(ctx, label, c, x)
	if err != nil {
		return nil, err
	}
	l.entry = entry
	l.log.Info("case submitted", "label", label, "project", path)
	if err := runmgr.Submit(ctx, l.runner, c, l.scenarioID, l.metrics, l.log); err != nil {
		l.finish(ctx, entry, ledger.StateFailed, err.Error())
		return c, err
	}

	c.Reload()
	m, err = c.Model()
	if err != nil {
		l.finish(ctx, entry, ledger.StateFailed, err.Error())
		return c, err
	}
	results, err := l.catalog.ExtractFrom(m)
	if err != nil {
		l.finish(ctx, entry, ledger.StateFailed, err.Error())
		return c, err
	}
	for _, v := range results {
		if err := c.FillObservableValue(v); err != nil {
			return c, err
		}
		l.catalog.MarkValid(v)
	}
	l.finish(ctx, entry, ledger.StateCompleted, "")
	return c, nil
}

// reuse files a completed case under label instead of running it again.
func (l *Loop) reuse(ctx context.Context, label string, c *runcase.Case, x []float64) (*runcase.Case, error) {
	if err := l.set.AddNewCases([]*runcase.Case{c}, label); err != nil {
		return nil, err
	}
	entry, err := l.record(ctx, label, c, x)
	if err != nil {
		return nil, err
	}
	l.entry = entry
	l.finish(ctx, entry, ledger.StateCompleted, "")
	l.log.Info("case reused", "label", label, "project", c.ProjectPath())
	return c, nil
}

func (l *Loop) record(ctx context.Context, label string, c *runcase.Case, x []float64) (string, error) {
	if l.store == nil {
		return "", nil
	}
	clamped := make([]float64, len(x))
	for k, co := range l.coords {
		clamped[k] = co.Clamp(x[k])
	}
	e, err := l.store.Create(ctx, ledger.Entry{
		ScenarioID:  l.scenarioID,
		Label:       label,
		Iteration:   l.step,
		ProjectPath: c.ProjectPath(),
		Parameters:  clamped,
	})
	if err != nil {
		return "", casaerr.Wrap(casaerr.IoError, "calibration.record", err, "can not record case %s", label)
	}
	if _, err := l.store.SetState(ctx, e.ID, ledger.StateRunning, ""); err != nil {
		return "", casaerr.Wrap(casaerr.IoError, "calibration.record", err, "can not record case %s", label)
	}
	return e.ID, nil
}

// finish marks a ledger entry; ledger failures are logged and do not stop the loop.
func (l *Loop) finish(ctx context.Context, id, state, msg string) {
	if l.store == nil || id == "" {
		return
	}
	if _, err := l.store.SetState(ctx, id, state, msg); err != nil {
		l.log.Warn("ledger update failed", "entry", id, "error", err)
	}
}

// CalculateFunctionValue fills fvec from a completed case: one residual per
// target followed by the prior penalty of every coordinate.
func (l *Loop) CalculateFunctionValue(c *runcase.Case, fvec []float64) error {
	const op = "calibration.CalculateFunctionValue"
	if want := len(l.targets) + len(l.coords); len(fvec) != want {
		return casaerr.New(casaerr.OutOfRange, op, "expected residual vector of %d, got %d", want, len(fvec))
	}
	for k, t := range l.targets {
		v, ok := c.ValueFor(t.Desc)
		if !ok {
			return casaerr.New(casaerr.UndefinedValue, op, "case %s has no value for observable %s", c.ProjectPath(), t.Name())
		}
		rep := v.Reported()
		if t.Sub >= len(rep) || observable.IsNoData(rep[t.Sub]) {
			return casaerr.New(casaerr.UndefinedValue, op, "simulator produced no data for observable %s in %s", t.Name(), c.ProjectPath())
		}
		fvec[k] = t.Residual(rep[t.Sub])
	}
	off := len(l.targets)
	for k, co := range l.coords {
		v, ok := c.ParameterFor(co.Param)
		if !ok {
			return casaerr.New(casaerr.UndefinedValue, op, "case %s has no value for parameter %s", c.ProjectPath(), co.Param.Name())
		}
		fvec[off+k] = co.Param.Penalty(co.Sub, v.Floats()[co.Sub])
	}
	return nil
}

// Run prepares parameters and observables and minimizes the residual norm.
// Exhausting the evaluation budget is not an error. A failed case stops the
// loop and its error is returned together with the partial result.
func (l *Loop) Run(ctx context.Context) (*Result, error) {
	x0, err := l.PrepareParameters()
	if err != nil {
		return nil, err
	}
	m, err := l.PrepareObservables()
	if err != nil {
		return nil, err
	}
	l.log.Info("calibration started", "scenario", l.scenarioID, "coordinates", len(x0), "residuals", m)

	fn := func(ctx context.Context, x, fvec []float64) error {
		c, err := l.UpdateParametersAndRunCase(ctx, x)
		if err != nil {
			return err
		}
		if err := l.CalculateFunctionValue(c, fvec); err != nil {
			return err
		}
		norm := floats.Norm(fvec, 2)
		l.evals = append(l.evals, evaluation{x: slices.Clone(x), c: c, norm: norm})
		l.metrics.RecordIteration(norm)
		if l.store != nil && l.entry != "" {
			if err := l.store.SetResidual(ctx, l.entry, norm); err != nil {
				l.log.Warn("ledger update failed", "entry", l.entry, "error", err)
			}
		}
		l.log.Info("iteration scored", "step", l.step, "norm", norm, "state", c.State())
		return nil
	}

	settings := l.settings
	settings.Lower, settings.Upper = l.bounds()
	res, err := lm.Solve(ctx, fn, x0, m, settings, l.criteria)
	if res == nil {
		if err != nil {
			return nil, casaerr.Wrap(failureCode(err), "calibration.Run", err, "calibration failed at step %d", l.step)
		}
		return nil, casaerr.New(casaerr.SolverError, "calibration.Run", "solver returned no result")
	}
	out := l.result(res)
	if err != nil {
		return out, casaerr.Wrap(failureCode(err), "calibration.Run", err, "calibration stopped at step %d", l.step)
	}
	l.log.Info("calibration finished", "status", res.Status, "reason", res.Reason, "norm", res.Norm,
		"iterations", res.Iterations, "evaluations", res.Evaluations)
	return out, nil
}

// bounds returns the range of every coordinate.
func (l *Loop) bounds() (lower, upper []float64) {
	lower = make([]float64, len(l.coords))
	upper = make([]float64, len(l.coords))
	for k, c := range l.coords {
		lower[k], upper[k] = c.bounds()
	}
	return lower, upper
}

// failureCode keeps the code of a domain error and reports anything else as
// a solver failure.
func failureCode(err error) casaerr.Code {
	if code := casaerr.CodeOf(err); code != casaerr.UnknownError {
		return code
	}
	return casaerr.SolverError
}
