package montecarlo

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
	"github.com/GoSim-25-26J-441/casa-core/internal/lm"
	"github.com/GoSim-25-26J-441/casa-core/internal/rsproxy"
)

// Algorithm selects how samples are drawn.
type Algorithm int

const (
	// MonteCarlo draws independent samples.
	MonteCarlo Algorithm = iota
	// MCMC runs a Metropolis-Hastings chain on the posterior.
	MCMC
	// MCLocalSolver polishes every independent sample with a bounded
	// least-squares run on the proxy.
	MCLocalSolver
)

func (a Algorithm) String() string {
	switch a {
	case MonteCarlo:
		return "MC"
	case MCMC:
		return "MCMC"
	case MCLocalSolver:
		return "MCLocalSolver"
	default:
		return fmt.Sprintf("Algorithm(%d)", int(a))
	}
}

// ParseAlgorithm maps an algorithm name.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mc", "montecarlo":
		return MonteCarlo, nil
	case "mcmc":
		return MCMC, nil
	case "mcsolver", "mclocalsolver", "localsolver":
		return MCLocalSolver, nil
	}
	return 0, casaerr.New(casaerr.ConfigError, "ParseAlgorithm", "unknown Monte-Carlo algorithm %q", s)
}

// PriorMode selects whether parameter priors shape the sampling.
type PriorMode int

const (
	NoPrior PriorMode = iota
	MarginalPrior
)

func (p PriorMode) String() string {
	if p == MarginalPrior {
		return "MarginalPrior"
	}
	return "NoPrior"
}

// ParsePriorMode maps a prior mode name.
func ParsePriorMode(s string) (PriorMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "noprior":
		return NoPrior, nil
	case "marginal", "marginalprior":
		return MarginalPrior, nil
	}
	return 0, casaerr.New(casaerr.ConfigError, "ParsePriorMode", "unknown prior mode %q", s)
}

// Measurement is the distribution of the measurement errors.
type Measurement int

const (
	NoMeasurements Measurement = iota
	NormalMeasurements
	// RobustMeasurements uses a Laplace likelihood.
	RobustMeasurements
)

func (m Measurement) String() string {
	switch m {
	case NoMeasurements:
		return "NoMeasurements"
	case NormalMeasurements:
		return "Normal"
	case RobustMeasurements:
		return "Robust"
	default:
		return fmt.Sprintf("Measurement(%d)", int(m))
	}
}

// ParseMeasurement maps a measurement distribution name.
func ParseMeasurement(s string) (Measurement, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "nomeasurements":
		return NoMeasurements, nil
	case "", "normal":
		return NormalMeasurements, nil
	case "robust":
		return RobustMeasurements, nil
	}
	return 0, casaerr.New(casaerr.ConfigError, "ParseMeasurement", "unknown measurement distribution %q", s)
}

// Settings configure one run.
type Settings struct {
	Algorithm   Algorithm
	Kriging     rsproxy.Kriging
	Prior       PriorMode
	Measurement Measurement
	SampleCount int
	// BurnIn is the number of discarded MCMC steps.
	BurnIn int
	// StdDevFactor scales every reference deviation. Zero means 1.
	StdDevFactor float64
	// StepSize is the MCMC proposal deviation in normalized coordinates.
	StepSize float64
	Seed     int64
	// Workers bounds parallel proxy evaluation. Zero means GOMAXPROCS.
	Workers int
	// LocalSolver bounds the least-squares polish of MCLocalSolver.
	LocalSolver lm.Settings
}

func (s Settings) validate() (Settings, error) {
	const op = "montecarlo.Settings"
	if s.SampleCount <= 0 {
		return s, casaerr.New(casaerr.ConfigError, op, "sample count must be positive, got %d", s.SampleCount)
	}
	if s.BurnIn < 0 {
		return s, casaerr.New(casaerr.ConfigError, op, "burn-in must not be negative, got %d", s.BurnIn)
	}
	if s.StdDevFactor < 0 {
		return s, casaerr.New(casaerr.ConfigError, op, "standard deviation factor must be positive, got %g", s.StdDevFactor)
	}
	if s.StdDevFactor == 0 {
		s.StdDevFactor = 1
	}
	if s.StepSize <= 0 {
		s.StepSize = 0.2
	}
	if s.Workers <= 0 {
		s.Workers = runtime.GOMAXPROCS(0)
	}
	if s.LocalSolver.MaxEvaluations <= 0 {
		s.LocalSolver.MaxEvaluations = 200
	}
	return s, nil
}
