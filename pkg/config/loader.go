package config

import (
	"fmt"
	"os"
	"strings"
)

// LoadScenario loads and parses a scenario file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file %s: %w", path, err)
	}
	scenario, err := ParseScenarioYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scenario file %s: %w", path, err)
	}
	return scenario, nil
}

// SaveScenario writes a scenario file
func SaveScenario(path string, s *Scenario) error {
	data, err := MarshalScenarioYAML(s)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write scenario file %s: %w", path, err)
	}
	return nil
}

var (
	validLogLevels = map[string]bool{"": true, "debug": true, "info": true, "warn": true, "error": true}
	validKinds     = map[string]bool{"continuous": true, "discrete": true, "categorical": true}
	validPriors    = map[string]bool{"": true, "block": true, "triangle": true, "normal": true}
	validFamilies  = map[string]bool{
		"tornado": true, "boxbehnken": true, "fullfactorial": true,
		"plackettburman": true, "latinhypercube": true, "spacefilling": true,
	}
	validObservables = map[string]bool{
		"GridPropertyXYZ": true, "GridPropertyWell": true, "TrapProperty": true, "TrapDerivedProperty": true,
	}
	validKriging    = map[string]bool{"": true, "none": true, "smart": true, "global": true}
	validBackoffs   = map[string]bool{"exponential": true, "linear": true, "constant": true}
	sampledFamilies = map[string]bool{"latinhypercube": true, "spacefilling": true}
)

// validateScenario performs validation on the scenario
func validateScenario(s *Scenario) error {
	if !validLogLevels[strings.ToLower(s.LogLevel)] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", s.LogLevel)
	}
	if s.BaseCase == "" {
		return fmt.Errorf("base_case is required")
	}
	if s.Location == "" {
		return fmt.Errorf("location is required")
	}

	if len(s.Parameters) == 0 {
		return fmt.Errorf("at least one parameter must be defined")
	}
	params := make(map[string]Parameter)
	for _, p := range s.Parameters {
		if p.Name == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}
		if _, ok := params[p.Name]; ok {
			return fmt.Errorf("duplicate parameter name: %s", p.Name)
		}
		params[p.Name] = p
		if err := validateParameter(p); err != nil {
			return fmt.Errorf("parameter %s: %w", p.Name, err)
		}
	}

	if len(s.Observables) == 0 {
		return fmt.Errorf("at least one observable must be defined")
	}
	for i, o := range s.Observables {
		if err := validateObservable(o); err != nil {
			return fmt.Errorf("observable %d (%s): %w", i, o.Name, err)
		}
	}

	labels := make(map[string]bool)
	for i, d := range s.DoE {
		family := strings.ToLower(d.Family)
		if !validFamilies[family] {
			return fmt.Errorf("doe %d: unknown design family %q", i, d.Family)
		}
		if sampledFamilies[family] && d.Samples <= 0 {
			return fmt.Errorf("doe %d: design %s needs a positive sample count, got %d", i, d.Family, d.Samples)
		}
		label := d.Label
		if label == "" {
			label = "DoE_" + d.Family
		}
		labels[label] = true
	}

	proxies := make(map[string]bool)
	for _, p := range s.Proxies {
		if p.Name == "" {
			return fmt.Errorf("proxy name cannot be empty")
		}
		if proxies[p.Name] {
			return fmt.Errorf("duplicate proxy name: %s", p.Name)
		}
		proxies[p.Name] = true
		if p.Order < 0 || p.Order > 2 {
			return fmt.Errorf("proxy %s: order must be 0, 1 or 2, got %d", p.Name, p.Order)
		}
		if !validKriging[strings.ToLower(p.Kriging)] {
			return fmt.Errorf("proxy %s: invalid kriging %q (must be none, smart, or global)", p.Name, p.Kriging)
		}
		if len(p.DoEList) == 0 {
			return fmt.Errorf("proxy %s: doe_list cannot be empty", p.Name)
		}
		for _, l := range p.DoEList {
			if !labels[l] && !additiveLabel(l, labels) {
				return fmt.Errorf("proxy %s references unknown experiment: %s", p.Name, l)
			}
		}
	}

	if s.MonteCarlo != nil {
		if err := validateMonteCarlo(s.MonteCarlo, proxies, params); err != nil {
			return fmt.Errorf("monte_carlo validation failed: %w", err)
		}
	}
	if s.Calibration != nil {
		if err := validateCalibration(s.Calibration); err != nil {
			return fmt.Errorf("calibration validation failed: %w", err)
		}
	}
	if err := validateRunManager(&s.RunManager); err != nil {
		return fmt.Errorf("run_manager validation failed: %w", err)
	}
	if s.Ledger != nil {
		switch s.Ledger.Driver {
		case "memory":
		case "sqlite":
			if s.Ledger.DSN == "" {
				return fmt.Errorf("ledger: sqlite driver needs a dsn")
			}
		default:
			return fmt.Errorf("ledger: invalid driver %q (must be memory or sqlite)", s.Ledger.Driver)
		}
	}
	if s.Metrics != nil && s.Metrics.Addr == "" {
		return fmt.Errorf("metrics: addr cannot be empty")
	}
	return nil
}

// additiveLabel accepts label_N forms produced by repeated space-filling designs.
func additiveLabel(l string, labels map[string]bool) bool {
	i := strings.LastIndex(l, "_")
	return i > 0 && labels[l[:i]]
}

func validateParameter(p Parameter) error {
	switch strings.ToLower(p.Kind) {
	case "continuous":
		if len(p.Min) == 0 || len(p.Min) != len(p.Max) || len(p.Min) != len(p.Base) {
			return fmt.Errorf("bound sizes differ (min %d, max %d, base %d)", len(p.Min), len(p.Max), len(p.Base))
		}
		for i := range p.Min {
			if p.Min[i] > p.Max[i] {
				return fmt.Errorf("min %g greater than max %g at %d", p.Min[i], p.Max[i], i)
			}
			if p.Base[i] < p.Min[i] || p.Base[i] > p.Max[i] {
				return fmt.Errorf("base %g outside [%g, %g] at %d", p.Base[i], p.Min[i], p.Max[i], i)
			}
		}
		if !validPriors[strings.ToLower(p.Prior)] {
			return fmt.Errorf("invalid prior %q (must be block, triangle, or normal)", p.Prior)
		}
		if p.StdDev != nil && len(p.StdDev) != len(p.Min) {
			return fmt.Errorf("%d standard deviations for %d sub-parameters", len(p.StdDev), len(p.Min))
		}
	case "discrete":
		if len(p.Levels) == 0 {
			return fmt.Errorf("discrete parameter needs levels")
		}
		if p.BaseIndex < 0 || p.BaseIndex >= len(p.Levels) {
			return fmt.Errorf("base_index %d outside [0, %d)", p.BaseIndex, len(p.Levels))
		}
	case "categorical":
		if len(p.Labels) == 0 {
			return fmt.Errorf("categorical parameter needs labels")
		}
		if p.Options != nil && len(p.Options) != len(p.Labels) {
			return fmt.Errorf("%d options for %d labels", len(p.Options), len(p.Labels))
		}
		if p.BaseIndex < 0 || p.BaseIndex >= len(p.Labels) {
			return fmt.Errorf("base_index %d outside [0, %d)", p.BaseIndex, len(p.Labels))
		}
	default:
		return fmt.Errorf("invalid kind %q (must be continuous, discrete, or categorical)", p.Kind)
	}
	return nil
}

func validateObservable(o Observable) error {
	if !validObservables[o.Kind] {
		return fmt.Errorf("unknown observable kind %q", o.Kind)
	}
	if o.Property == "" {
		return fmt.Errorf("property cannot be empty")
	}
	if o.Kind == "GridPropertyWell" {
		if len(o.Xs) == 0 || len(o.Xs) != len(o.Ys) || len(o.Xs) != len(o.Zs) {
			return fmt.Errorf("trajectory sizes differ (x %d, y %d, z %d)", len(o.Xs), len(o.Ys), len(o.Zs))
		}
	}
	if (o.Kind == "TrapProperty" || o.Kind == "TrapDerivedProperty") && o.Reservoir == "" {
		return fmt.Errorf("reservoir cannot be empty")
	}
	if o.Reference != nil {
		if len(o.Reference) != o.Dimension() {
			return fmt.Errorf("expected %d reference values, got %d", o.Dimension(), len(o.Reference))
		}
		if len(o.StdDev) != 1 && len(o.StdDev) != len(o.Reference) {
			return fmt.Errorf("expected 1 or %d standard deviations, got %d", len(o.Reference), len(o.StdDev))
		}
		for _, d := range o.StdDev {
			if d <= 0 {
				return fmt.Errorf("standard deviation %g must be positive", d)
			}
		}
	}
	if o.SAWeight < 0 || o.UAWeight < 0 {
		return fmt.Errorf("weights cannot be negative (sa %g, ua %g)", o.SAWeight, o.UAWeight)
	}
	return nil
}

func validateMonteCarlo(mc *MonteCarlo, proxies map[string]bool, params map[string]Parameter) error {
	if !proxies[mc.Proxy] {
		return fmt.Errorf("unknown proxy %q", mc.Proxy)
	}
	if mc.Samples <= 0 {
		return fmt.Errorf("samples must be positive, got %d", mc.Samples)
	}
	if mc.BurnIn < 0 {
		return fmt.Errorf("burn_in cannot be negative, got %d", mc.BurnIn)
	}
	if mc.StdDevFactor < 0 || mc.StepSize < 0 {
		return fmt.Errorf("std_dev_factor and step_size cannot be negative")
	}
	if !validKriging[strings.ToLower(mc.Kriging)] {
		return fmt.Errorf("invalid kriging %q (must be none, smart, or global)", mc.Kriging)
	}
	for _, r := range mc.Sampling {
		p, ok := params[r.Name]
		if !ok || strings.ToLower(p.Kind) != "continuous" {
			return fmt.Errorf("sampling range for unknown continuous parameter %s", r.Name)
		}
		if len(r.Min) != len(p.Min) || len(r.Max) != len(p.Min) {
			return fmt.Errorf("sampling range %s: expected %d bounds", r.Name, len(p.Min))
		}
		for i := range r.Min {
			if r.Min[i] > r.Max[i] {
				return fmt.Errorf("sampling range %s: min %g greater than max %g", r.Name, r.Min[i], r.Max[i])
			}
		}
	}
	return nil
}

func validateCalibration(c *Calibration) error {
	if c.MaxEvaluations < 0 {
		return fmt.Errorf("max_evaluations cannot be negative, got %d", c.MaxEvaluations)
	}
	for name, v := range map[string]float64{"ftol": c.FTol, "xtol": c.XTol, "gtol": c.GTol, "diff_step": c.DiffStep, "damping": c.Damping} {
		if v < 0 {
			return fmt.Errorf("%s cannot be negative, got %g", name, v)
		}
	}
	return nil
}

func validateRunManager(r *RunManager) error {
	switch r.Type {
	case "", "exec":
		if r.Type == "exec" && r.Command == "" {
			return fmt.Errorf("exec run manager needs a command")
		}
	case "grpc":
		if r.Addr == "" {
			return fmt.Errorf("grpc run manager needs an addr")
		}
	default:
		return fmt.Errorf("invalid type %q (must be exec or grpc)", r.Type)
	}
	if r.Retries != nil {
		if r.Retries.MaxRetries < 0 {
			return fmt.Errorf("retries max_retries cannot be negative, got %d", r.Retries.MaxRetries)
		}
		if !validBackoffs[r.Retries.Backoff] {
			return fmt.Errorf("invalid backoff type: %s (must be exponential, linear, or constant)", r.Retries.Backoff)
		}
		if r.Retries.BaseMs < 0 || r.Retries.MaxMs < 0 {
			return fmt.Errorf("retries base_ms and max_ms cannot be negative")
		}
	}
	return nil
}
