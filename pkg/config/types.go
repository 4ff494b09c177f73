package config

// Scenario is the complete description of a scenario analysis
type Scenario struct {
	ScenarioID  string        `yaml:"scenario_id,omitempty"`
	LogLevel    string        `yaml:"log_level,omitempty"`
	BaseCase    string        `yaml:"base_case"`
	Location    string        `yaml:"location"`
	Parameters  []Parameter   `yaml:"parameters"`
	Observables []Observable  `yaml:"observables"`
	DoE         []Design      `yaml:"doe,omitempty"`
	Proxies     []Proxy       `yaml:"proxies,omitempty"`
	MonteCarlo  *MonteCarlo   `yaml:"monte_carlo,omitempty"`
	Calibration *Calibration  `yaml:"calibration,omitempty"`
	RunManager  RunManager    `yaml:"run_manager"`
	Ledger      *Ledger       `yaml:"ledger,omitempty"`
	Metrics     *MetricsSetup `yaml:"metrics,omitempty"`
}

// Parameter is one variable parameter
type Parameter struct {
	Name   string `yaml:"name"`
	Kind   string `yaml:"kind"`             // continuous, discrete, categorical
	Target string `yaml:"target,omitempty"` // model key, defaults to name

	// continuous
	Min    []float64 `yaml:"min,omitempty"`
	Max    []float64 `yaml:"max,omitempty"`
	Base   []float64 `yaml:"base,omitempty"`
	Prior  string    `yaml:"prior,omitempty"` // block, triangle, normal
	StdDev []float64 `yaml:"std_dev,omitempty"`

	// discrete
	Levels []float64 `yaml:"levels,omitempty"`
	// categorical
	Labels  []string `yaml:"labels,omitempty"`
	Options []string `yaml:"options,omitempty"` // model values per label, defaults to labels

	BaseIndex int `yaml:"base_index,omitempty"`
}

// Observable is one catalog entry
type Observable struct {
	Kind         string    `yaml:"kind"` // GridPropertyXYZ, GridPropertyWell, TrapProperty, TrapDerivedProperty
	Name         string    `yaml:"name,omitempty"`
	Property     string    `yaml:"property"`
	X            float64   `yaml:"x,omitempty"`
	Y            float64   `yaml:"y,omitempty"`
	Z            float64   `yaml:"z,omitempty"`
	Age          float64   `yaml:"age,omitempty"`
	Well         string    `yaml:"well,omitempty"`
	Xs           []float64 `yaml:"xs,omitempty"`
	Ys           []float64 `yaml:"ys,omitempty"`
	Zs           []float64 `yaml:"zs,omitempty"`
	Reservoir    string    `yaml:"reservoir,omitempty"`
	LogTransform bool      `yaml:"log_transform,omitempty"`
	Reference    []float64 `yaml:"reference,omitempty"`
	StdDev       []float64 `yaml:"std_dev,omitempty"`
	SAWeight     float64   `yaml:"sa_weight,omitempty"`
	UAWeight     float64   `yaml:"ua_weight,omitempty"`
}

// Dimension is the number of sub-observables the entry expands into
func (o Observable) Dimension() int {
	if o.Kind == "GridPropertyWell" {
		return len(o.Xs)
	}
	return 1
}

// Design is one design-of-experiments request
type Design struct {
	Family  string `yaml:"family"`
	Samples int    `yaml:"samples,omitempty"`
	Label   string `yaml:"label,omitempty"`
}

// Proxy is one response surface to fit
type Proxy struct {
	Name    string   `yaml:"name"`
	Order   int      `yaml:"order"`
	Kriging string   `yaml:"kriging,omitempty"` // none, smart, global
	DoEList []string `yaml:"doe_list"`
}

// Range restricts the sampling of a continuous parameter
type Range struct {
	Name string    `yaml:"name"`
	Min  []float64 `yaml:"min"`
	Max  []float64 `yaml:"max"`
}

// MonteCarlo configures proxy sampling
type MonteCarlo struct {
	Proxy        string  `yaml:"proxy"`
	Algorithm    string  `yaml:"algorithm,omitempty"` // MC, MCMC, MCLocalSolver
	Kriging      string  `yaml:"kriging,omitempty"`
	Prior        string  `yaml:"prior,omitempty"`       // none, marginal
	Measurement  string  `yaml:"measurement,omitempty"` // none, normal, robust
	Samples      int     `yaml:"samples"`
	BurnIn       int     `yaml:"burn_in,omitempty"`
	StdDevFactor float64 `yaml:"std_dev_factor,omitempty"`
	StepSize     float64 `yaml:"step_size,omitempty"`
	Seed         int64   `yaml:"seed,omitempty"`
	Workers      int     `yaml:"workers,omitempty"`
	Sampling     []Range `yaml:"sampling,omitempty"`
}

// Calibration bounds the Levenberg-Marquardt loop
type Calibration struct {
	MaxEvaluations int     `yaml:"max_evaluations,omitempty"`
	FTol           float64 `yaml:"ftol,omitempty"`
	XTol           float64 `yaml:"xtol,omitempty"`
	GTol           float64 `yaml:"gtol,omitempty"`
	DiffStep       float64 `yaml:"diff_step,omitempty"`
	Damping        float64 `yaml:"damping,omitempty"`
}

// RunManager selects how cases are run
type RunManager struct {
	Type    string   `yaml:"type"` // exec, grpc
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"`
	Env     []string `yaml:"env,omitempty"`
	Addr    string   `yaml:"addr,omitempty"`
	Retries *Retries `yaml:"retries,omitempty"`
}

// Retries configures the retry of transient run manager failures
type Retries struct {
	MaxRetries int    `yaml:"max_retries"`
	Backoff    string `yaml:"backoff"` // exponential, linear, constant
	BaseMs     int    `yaml:"base_ms"`
	MaxMs      int    `yaml:"max_ms,omitempty"`
}

// Ledger selects where submitted calibration cases are recorded
type Ledger struct {
	Driver string `yaml:"driver"` // memory, sqlite
	DSN    string `yaml:"dsn,omitempty"`
}

// MetricsSetup exposes Prometheus metrics over HTTP
type MetricsSetup struct {
	Addr string `yaml:"addr"`
}
