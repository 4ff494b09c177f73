// Package montecarlo samples the parameter space through a fitted proxy and
// ranks the samples against the observable references.
package montecarlo

import (
	"context"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
	"github.com/GoSim-25-26J-441/casa-core/internal/lm"
	"github.com/GoSim-25-26J-441/casa-core/internal/metrics"
	"github.com/GoSim-25-26J-441/casa-core/internal/observable"
	"github.com/GoSim-25-26J-441/casa-core/internal/rsproxy"
	"github.com/GoSim-25-26J-441/casa-core/internal/runcase"
	"github.com/GoSim-25-26J-441/casa-core/internal/varspace"
	"github.com/GoSim-25-26J-441/casa-core/pkg/logger"
	"github.com/GoSim-25-26J-441/casa-core/pkg/utils"
)

// Solver runs one sampling algorithm over a proxy.
type Solver struct {
	settings Settings
	log      *slog.Logger
	metrics  *metrics.Collector
}

// Option customizes a Solver.
type Option func(*Solver)

// WithLogger sets the solver logger.
func WithLogger(l *slog.Logger) Option { return func(s *Solver) { s.log = l } }

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option { return func(s *Solver) { s.metrics = m } }

// New validates settings and returns a solver.
func New(settings Settings, opts ...Option) (*Solver, error) {
	settings, err := settings.validate()
	if err != nil {
		return nil, err
	}
	s := &Solver{settings: settings}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.OrComponent(s.log, "montecarlo")
	return s, nil
}

// Settings returns the validated settings.
func (s *Solver) Settings() Settings { return s.settings }

// run holds the state of one Run call.
type run struct {
	*Solver
	proxy  *rsproxy.Proxy
	layout *layout
	obj    *objective
	rng    *utils.RandSource
}

// Run samples the space through proxy. prior supplies the parameter priors
// and sampling the ranges to draw from; nil means the proxy's own space.
// catalog selects the observables compared with their references; nil means
// the proxy's catalog. Samples keep their sampling order.
func (s *Solver) Run(ctx context.Context, proxy *rsproxy.Proxy, prior, sampling *varspace.Space, catalog *observable.Catalog) (*Result, error) {
	const op = "montecarlo.Run"
	if !proxy.Fitted() {
		return nil, casaerr.New(casaerr.SolverError, op, "proxy %s is not calculated", proxy.Name())
	}
	if s.settings.Kriging != proxy.Kriging() {
		return nil, casaerr.New(casaerr.SolverError, op,
			"kriging %s requested but proxy %s was built with %s", s.settings.Kriging, proxy.Name(), proxy.Kriging())
	}
	if catalog == nil {
		catalog = proxy.Catalog()
	}
	lay, err := newLayout(proxy.Space(), prior, sampling)
	if err != nil {
		return nil, err
	}
	obj, err := newObjective(proxy, catalog, s.settings.StdDevFactor, s.log)
	if err != nil {
		return nil, err
	}
	r := &run{Solver: s, proxy: proxy, layout: lay, obj: obj, rng: utils.NewRandSource(s.settings.Seed)}

	start := time.Now()
	s.log.Info("sampling started", "algorithm", s.settings.Algorithm, "proxy", proxy.Name(),
		"samples", s.settings.SampleCount, "burn_in", s.settings.BurnIn, "references", obj.size)

	var samples []Sample
	switch s.settings.Algorithm {
	case MonteCarlo:
		samples, err = r.monteCarlo(ctx)
	case MCMC:
		samples, err = r.mcmc(ctx)
	case MCLocalSolver:
		samples, err = r.localSolver(ctx)
	default:
		err = casaerr.New(casaerr.ConfigError, op, "algorithm %s not supported", s.settings.Algorithm)
	}
	if err != nil {
		return nil, err
	}

	res := &Result{Algorithm: s.settings.Algorithm, Samples: samples, catalog: proxy.Catalog()}
	r.summarize(res)
	s.metrics.RecordMCSamples(s.settings.Algorithm.String(), len(samples))
	s.log.Info("sampling finished", "samples", len(samples), "gof", res.GOF,
		"proposed_std_dev_factor", res.ProposedStdDevFactor, "duration", time.Since(start))
	return res, nil
}

// evaluate materializes pts as proxy-evaluated cases in parallel.
func (r *run) evaluate(ctx context.Context, pts []point) ([]Sample, error) {
	out := make([]Sample, len(pts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.settings.Workers)
	for i, pt := range pts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			c, err := r.layout.newCase(pt)
			if err != nil {
				return err
			}
			if err := r.proxy.Evaluate(c); err != nil {
				return err
			}
			c.SetState(runcase.Completed)
			out[i] = Sample{Misfit: r.obj.misfit(caseReported(c)), Case: c}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *run) monteCarlo(ctx context.Context) ([]Sample, error) {
	pts := make([]point, r.settings.SampleCount)
	for i := range pts {
		pts[i] = r.layout.draw(r.rng, r.settings.Prior)
	}
	return r.evaluate(ctx, pts)
}

// logLikelihood of a raw proxy prediction under the measurement model.
func (r *run) logLikelihood(raw []float64) float64 {
	if r.settings.Measurement == NoMeasurements || r.obj.size == 0 {
		return 0
	}
	res := make([]float64, r.obj.size)
	r.obj.residuals(rawReported(raw), res)
	ll := 0.0
	for _, v := range res {
		if r.settings.Measurement == RobustMeasurements {
			ll -= math.Abs(v)
		} else {
			ll -= 0.5 * v * v
		}
	}
	return ll
}

func (r *run) logPosterior(pt point) (float64, error) {
	lp := r.layout.logPrior(pt, r.settings.Prior)
	if math.IsInf(lp, -1) {
		return lp, nil
	}
	c, err := r.layout.newCase(pt)
	if err != nil {
		return 0, err
	}
	x, err := rsproxy.Coordinates(r.proxy.Space(), c)
	if err != nil {
		return 0, err
	}
	raw, err := r.proxy.Predict(x)
	if err != nil {
		return 0, err
	}
	return lp + r.logLikelihood(raw), nil
}

// propose moves every free coordinate by a normal step and, with some
// probability, redraws one categorical level.
func (r *run) propose(cur point, free [][2]int) point {
	next := cur.clone()
	for _, k := range free {
		p := r.layout.normalized(cur, k) + r.rng.NormFloat64(0, r.settings.StepSize)
		// reflect at the bounds
		if p > 1 {
			p = 2 - p
		}
		if p < -1 {
			p = -2 - p
		}
		r.layout.set(next, k, p)
	}
	var levels []int
	for i, s := range r.layout.slots {
		if s.proxy == nil && s.levels > 1 {
			levels = append(levels, i)
		}
	}
	if len(levels) > 0 && r.rng.Float64() < 1/float64(len(free)+1) {
		i := levels[r.rng.Intn(len(levels))]
		next.idx[i] = r.rng.Intn(r.layout.slots[i].levels)
	}
	return next
}

func (r *run) mcmc(ctx context.Context) ([]Sample, error) {
	free := r.layout.free()
	cur := r.layout.draw(r.rng, r.settings.Prior)
	curLP, err := r.logPosterior(cur)
	if err != nil {
		return nil, err
	}

	total := r.settings.BurnIn + r.settings.SampleCount
	kept := make([]point, 0, r.settings.SampleCount)
	accepted := 0
	for step := range total {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next := r.propose(cur, free)
		nextLP, err := r.logPosterior(next)
		if err != nil {
			return nil, err
		}
		if !math.IsInf(nextLP, -1) && (nextLP >= curLP || math.Log(r.rng.Float64()) < nextLP-curLP) {
			cur, curLP = next, nextLP
			accepted++
		}
		if step >= r.settings.BurnIn {
			kept = append(kept, cur.clone())
		}
	}
	r.log.Info("chain finished", "steps", total, "acceptance", float64(accepted)/float64(total))
	return r.evaluate(ctx, kept)
}

func (r *run) localSolver(ctx context.Context) ([]Sample, error) {
	const op = "montecarlo.localSolver"
	free := r.layout.free()
	if len(free) == 0 {
		return nil, casaerr.New(casaerr.SolverError, op, "no free continuous parameters to polish")
	}
	if r.obj.size < len(free) {
		return nil, casaerr.New(casaerr.SolverError, op,
			"%d reference values for %d free parameters: local solver problem is underdetermined", r.obj.size, len(free))
	}

	pts := make([]point, r.settings.SampleCount)
	for i := range pts {
		pts[i] = r.layout.draw(r.rng, r.settings.Prior)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.settings.Workers)
	for i := range pts {
		g.Go(func() error {
			polished, err := r.polish(gctx, pts[i], free)
			if err != nil {
				return err
			}
			pts[i] = polished
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, casaerr.Wrap(casaerr.SolverError, op, err, "local solver failed")
	}
	return r.evaluate(ctx, pts)
}

// polish runs a bounded least-squares fit of the free coordinates of start
// against the references, on the proxy.
func (r *run) polish(ctx context.Context, start point, free [][2]int) (point, error) {
	x0 := make([]float64, len(free))
	for i, k := range free {
		x0[i] = r.layout.normalized(start, k)
	}
	at := func(x []float64) point {
		pt := start.clone()
		for i, k := range free {
			r.layout.set(pt, k, x[i])
		}
		return pt
	}
	fn := func(_ context.Context, x, fvec []float64) error {
		c, err := r.layout.newCase(at(x))
		if err != nil {
			return err
		}
		coords, err := rsproxy.Coordinates(r.proxy.Space(), c)
		if err != nil {
			return err
		}
		raw, err := r.proxy.Predict(coords)
		if err != nil {
			return err
		}
		r.obj.residuals(rawReported(raw), fvec)
		return nil
	}
	res, err := lm.Solve(ctx, fn, x0, r.obj.size, r.settings.LocalSolver, nil)
	if err != nil {
		return start, err
	}
	return at(res.X), nil
}

// summarize computes GOF and the proposed deviation factor from the best
// sample: the chi-square survival probability in percent, and the factor
// that would bring the reduced chi-square to one.
func (r *run) summarize(res *Result) {
	res.GOF, res.ProposedStdDevFactor = math.NaN(), math.NaN()
	best, ok := res.Best()
	if !ok {
		return
	}
	chi, n := r.obj.chiSquare(caseReported(best.Case))
	if n == 0 {
		return
	}
	res.GOF = 100 * distuv.ChiSquared{K: float64(n)}.Survival(chi)
	res.ProposedStdDevFactor = r.settings.StdDevFactor * math.Sqrt(chi/float64(n))
}
