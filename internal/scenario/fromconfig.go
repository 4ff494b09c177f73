package scenario

import (
	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
	"github.com/GoSim-25-26J-441/casa-core/internal/ledger"
	"github.com/GoSim-25-26J-441/casa-core/internal/lm"
	"github.com/GoSim-25-26J-441/casa-core/internal/montecarlo"
	"github.com/GoSim-25-26J-441/casa-core/internal/observable"
	"github.com/GoSim-25-26J-441/casa-core/internal/rsproxy"
	"github.com/GoSim-25-26J-441/casa-core/internal/runmgr"
	"github.com/GoSim-25-26J-441/casa-core/internal/varspace"
	"github.com/GoSim-25-26J-441/casa-core/pkg/config"
	"github.com/GoSim-25-26J-441/casa-core/pkg/utils"
)

// FromConfig builds a scenario with the parameters and observables of cfg.
// The base project is opened on first use.
func FromConfig(cfg *config.Scenario, opts ...Option) (*Scenario, error) {
	if cfg.ScenarioID != "" {
		opts = append(opts, WithID(cfg.ScenarioID))
	}
	s := New(opts...)
	s.basePath = cfg.BaseCase
	s.location = cfg.Location
	for _, pc := range cfg.Parameters {
		p, err := NewParameter(pc)
		if err != nil {
			return nil, err
		}
		if err := s.AddParameter(p); err != nil {
			return nil, err
		}
	}
	for _, oc := range cfg.Observables {
		if _, err := s.AddObservableSpec(ObservableSpec(oc)); err != nil {
			return nil, err
		}
	}
	s.log.Info("scenario configured", "parameters", s.space.Len(), "observables", len(s.catalog.Descriptors()))
	return s, nil
}

// NewParameter builds a parameter from its configuration.
func NewParameter(pc config.Parameter) (varspace.Parameter, error) {
	target := pc.Target
	if target == "" {
		target = pc.Name
	}
	switch pc.Kind {
	case "continuous":
		prior, err := varspace.ParsePrior(pc.Prior)
		if err != nil {
			return nil, err
		}
		opts := []varspace.ContinuousOption{varspace.WithPrior(prior)}
		if len(pc.StdDev) > 0 {
			opts = append(opts, varspace.WithStdDev(pc.StdDev))
		}
		return varspace.NewContinuous(pc.Name, target, pc.Min, pc.Max, pc.Base, opts...)
	case "discrete":
		return varspace.NewDiscrete(pc.Name, target, pc.Levels, pc.BaseIndex)
	case "categorical":
		return varspace.NewCategorical(pc.Name, target, pc.Labels, pc.Options, pc.BaseIndex)
	default:
		return nil, casaerr.New(casaerr.ConfigError, "scenario.NewParameter", "parameter %s: unknown kind %q", pc.Name, pc.Kind)
	}
}

// ObservableSpec converts a configured observable for the kind registry.
func ObservableSpec(oc config.Observable) observable.Spec {
	return observable.Spec{
		Kind:         oc.Kind,
		Name:         oc.Name,
		Property:     oc.Property,
		X:            oc.X,
		Y:            oc.Y,
		Z:            oc.Z,
		Age:          oc.Age,
		Well:         oc.Well,
		Xs:           oc.Xs,
		Ys:           oc.Ys,
		Zs:           oc.Zs,
		Reservoir:    oc.Reservoir,
		LogTransform: oc.LogTransform,
		Reference:    oc.Reference,
		StdDev:       oc.StdDev,
		SAWeight:     oc.SAWeight,
		UAWeight:     oc.UAWeight,
	}
}

// NewRunner builds the configured run manager. The returned close function
// releases the connection of a remote run manager. No type means no run
// manager: the scenario can still generate designs and fit proxies.
func NewRunner(rc config.RunManager) (runmgr.Runner, func() error, error) {
	switch rc.Type {
	case "":
		return nil, func() error { return nil }, nil
	case "exec":
		return &runmgr.Exec{Command: rc.Command, Args: rc.Args, Env: rc.Env}, func() error { return nil }, nil
	case "grpc":
		var opts []runmgr.GRPCOption
		if r := rc.Retries; r != nil {
			opts = append(opts,
				runmgr.WithMaxRetries(r.MaxRetries),
				runmgr.WithBackoff(utils.BackoffFromConfig(r.Backoff, r.BaseMs, r.MaxMs)))
		}
		g, err := runmgr.DialGRPC(rc.Addr, opts...)
		if err != nil {
			return nil, nil, err
		}
		return g, g.Close, nil
	default:
		return nil, nil, casaerr.New(casaerr.ConfigError, "scenario.NewRunner", "unknown run manager type %q", rc.Type)
	}
}

// OpenLedger opens the configured case ledger. No configuration means an
// in-memory ledger.
func OpenLedger(lc *config.Ledger) (ledger.Store, error) {
	if lc == nil || lc.Driver == "" || lc.Driver == "memory" {
		return ledger.NewMemoryStore(), nil
	}
	if lc.Driver == "sqlite" {
		st, err := ledger.OpenSQLite(lc.DSN)
		if err != nil {
			return nil, casaerr.Wrap(casaerr.IoError, "scenario.OpenLedger", err, "can not open ledger %s", lc.DSN)
		}
		return st, nil
	}
	return nil, casaerr.New(casaerr.ConfigError, "scenario.OpenLedger", "unknown ledger driver %q", lc.Driver)
}

// MonteCarloSettings converts the Monte-Carlo section.
func MonteCarloSettings(mc *config.MonteCarlo) (montecarlo.Settings, error) {
	var st montecarlo.Settings
	if mc == nil {
		return st, casaerr.New(casaerr.ConfigError, "scenario.MonteCarloSettings", "no monte_carlo section")
	}
	var err error
	if st.Algorithm, err = montecarlo.ParseAlgorithm(mc.Algorithm); err != nil {
		return st, err
	}
	if st.Kriging, err = rsproxy.ParseKriging(mc.Kriging); err != nil {
		return st, err
	}
	if st.Prior, err = montecarlo.ParsePriorMode(mc.Prior); err != nil {
		return st, err
	}
	if st.Measurement, err = montecarlo.ParseMeasurement(mc.Measurement); err != nil {
		return st, err
	}
	st.SampleCount = mc.Samples
	st.BurnIn = mc.BurnIn
	st.StdDevFactor = mc.StdDevFactor
	st.StepSize = mc.StepSize
	st.Seed = mc.Seed
	st.Workers = mc.Workers
	return st, nil
}

// SamplingSpace restricts the continuous parameters of space to ranges.
// Parameters without a range keep their full interval. No ranges means nil,
// which samples the whole space.
func SamplingSpace(space *varspace.Space, ranges []config.Range) (*varspace.Space, error) {
	const op = "scenario.SamplingSpace"
	if len(ranges) == 0 {
		return nil, nil
	}
	out := varspace.NewSpace()
	for _, r := range ranges {
		p, ok := space.Lookup(r.Name)
		if !ok {
			return nil, casaerr.New(casaerr.ConfigError, op, "sampling range for unknown parameter %s", r.Name)
		}
		c, ok := p.(*varspace.ContinuousParameter)
		if !ok {
			return nil, casaerr.New(casaerr.ConfigError, op, "sampling range for non-continuous parameter %s", r.Name)
		}
		base := c.Base()
		for i := range base {
			if i < len(r.Min) && i < len(r.Max) {
				base[i] = min(max(base[i], r.Min[i]), r.Max[i])
			}
		}
		rp, err := varspace.NewContinuous(c.Name(), c.Target(), r.Min, r.Max, base,
			varspace.WithPrior(c.Prior()), varspace.WithStdDev(c.StdDev()))
		if err != nil {
			return nil, casaerr.Wrap(casaerr.ConfigError, op, err, "sampling range for %s", r.Name)
		}
		if err := out.Add(rp); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// CalibrationSettings converts the calibration section. Zero fields keep the
// solver defaults.
func CalibrationSettings(c *config.Calibration) lm.Settings {
	if c == nil {
		return lm.Settings{}
	}
	return lm.Settings{
		MaxEvaluations: c.MaxEvaluations,
		FTol:           c.FTol,
		XTol:           c.XTol,
		GTol:           c.GTol,
		DiffStep:       c.DiffStep,
		Damping:        c.Damping,
	}
}
