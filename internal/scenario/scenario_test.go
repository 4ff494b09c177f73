package scenario

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
	"github.com/GoSim-25-26J-441/casa-core/internal/doe"
	"github.com/GoSim-25-26J-441/casa-core/internal/ledger"
	"github.com/GoSim-25-26J-441/casa-core/internal/lm"
	"github.com/GoSim-25-26J-441/casa-core/internal/model"
	"github.com/GoSim-25-26J-441/casa-core/internal/montecarlo"
	"github.com/GoSim-25-26J-441/casa-core/internal/rsproxy"
	"github.com/GoSim-25-26J-441/casa-core/internal/runcase"
	"github.com/GoSim-25-26J-441/casa-core/internal/runmgr"
	"github.com/GoSim-25-26J-441/casa-core/internal/serial"
	"github.com/GoSim-25-26J-441/casa-core/pkg/config"
)

// linearSimulator writes Temperature = 100 + 2A and Pressure = 50 + 3B.
func linearSimulator(_ context.Context, c *runcase.Case, _ string) error {
	m, err := model.Open(c.ProjectPath())
	if err != nil {
		return err
	}
	a, err := m.Parameter("A")
	if err != nil {
		return err
	}
	b, err := m.Parameter("B")
	if err != nil {
		return err
	}
	tbl := m.Table()
	for i, r := range tbl.Rows() {
		switch r.Property {
		case "Temperature":
			tbl.SetValue(i, 100+2*a[0])
		case "Pressure":
			tbl.SetValue(i, 50+3*b[0])
		}
	}
	return m.Save()
}

func testConfig(t *testing.T) *config.Scenario {
	t.Helper()
	dir := t.TempDir()
	basePath := filepath.Join(dir, "base", "project.yaml")
	base := model.New(model.Spec{
		Name:       "base",
		Domain:     model.Domain{XMax: 1000, YMax: 1000, ZMax: 1000},
		Parameters: map[string][]float64{"A": {1}, "B": {2}},
		Properties: []string{"Temperature", "Pressure"},
	})
	if err := base.SaveAs(basePath); err != nil {
		t.Fatalf("save base: %v", err)
	}
	return &config.Scenario{
		ScenarioID: "scen-test",
		BaseCase:   basePath,
		Location:   filepath.Join(dir, "work"),
		Parameters: []config.Parameter{
			{Name: "A", Kind: "continuous", Min: []float64{0}, Max: []float64{10}, Base: []float64{1}},
			{Name: "B", Kind: "continuous", Min: []float64{0}, Max: []float64{10}, Base: []float64{2}},
		},
		Observables: []config.Observable{
			{Kind: "GridPropertyXYZ", Name: "Temp", Property: "Temperature", X: 100, Y: 100, Z: 100,
				Reference: []float64{108}, StdDev: []float64{1}},
			{Kind: "GridPropertyXYZ", Name: "Pres", Property: "Pressure", X: 100, Y: 100, Z: 100,
				Reference: []float64{71}, StdDev: []float64{1}},
		},
		RunManager: config.RunManager{Type: "exec", Command: "true"},
	}
}

func newScenario(t *testing.T, opts ...Option) *Scenario {
	t.Helper()
	opts = append([]Option{WithRunner(runmgr.RunnerFunc(linearSimulator))}, opts...)
	s, err := FromConfig(testConfig(t), opts...)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	return s
}

// runDoE generates a tornado design and takes it through simulation.
func runDoE(t *testing.T, s *Scenario) string {
	t.Helper()
	ctx := context.Background()
	label, err := s.GenerateDoE(ctx, doe.Tornado, 0, "")
	if err != nil {
		t.Fatalf("GenerateDoE: %v", err)
	}
	set := s.DoECases()
	if err := set.FilterByExperimentName(label); err != nil {
		t.Fatalf("FilterByExperimentName: %v", err)
	}
	if err := s.ApplyMutations(set); err != nil {
		t.Fatalf("ApplyMutations: %v", err)
	}
	if err := s.ValidateCaseSet(set); err != nil {
		t.Fatalf("ValidateCaseSet: %v", err)
	}
	if err := s.RequestObservables(set); err != nil {
		t.Fatalf("RequestObservables: %v", err)
	}
	if err := s.RunCases(ctx, set); err != nil {
		t.Fatalf("RunCases: %v", err)
	}
	if err := s.CollectRunResults(set); err != nil {
		t.Fatalf("CollectRunResults: %v", err)
	}
	if err := set.FilterByExperimentName(""); err != nil {
		t.Fatalf("reset filter: %v", err)
	}
	return label
}

func TestFromConfig(t *testing.T) {
	s := newScenario(t)
	if s.ID() != "scen-test" {
		t.Errorf("ID = %q", s.ID())
	}
	if s.Space().Len() != 2 || s.Catalog().Len() != 2 {
		t.Fatalf("space %d, catalog %d, want 2 and 2", s.Space().Len(), s.Catalog().Len())
	}
	if _, err := s.BaseCase(); err != nil {
		t.Fatalf("BaseCase: %v", err)
	}

	cfg := testConfig(t)
	cfg.Parameters[0].Kind = "fuzzy"
	if _, err := FromConfig(cfg); !casaerr.Is(err, casaerr.ConfigError) {
		t.Errorf("unknown parameter kind: expected ConfigError, got %v", err)
	}
}

func TestDoEWorkflow(t *testing.T) {
	s := newScenario(t)
	label := runDoE(t, s)

	set := s.DoECases()
	if set.Len() != 5 {
		t.Fatalf("tornado cases = %d, want 5", set.Len())
	}
	dir := filepath.Join(s.Location(), "Iteration_1_"+label)
	if _, err := os.Stat(filepath.Join(dir, "Case_1", "project.yaml")); err != nil {
		t.Errorf("case project not materialized: %v", err)
	}
	if s.Iteration() != 1 {
		t.Errorf("iteration = %d, want 1", s.Iteration())
	}

	temp := s.Catalog().Descriptor(0)
	for i, c := range set.Cases() {
		if c.State() != runcase.Completed {
			t.Fatalf("case %d state = %v", i, c.State())
		}
		a, _ := c.ParameterFor(s.Space().Parameter(0))
		v, ok := c.ValueFor(temp)
		if !ok {
			t.Fatalf("case %d has no temperature", i)
		}
		if want := 100 + 2*a.Floats()[0]; math.Abs(v.Reported()[0]-want) > 1e-9 {
			t.Errorf("case %d temperature = %v, want %v", i, v.Reported()[0], want)
		}
	}
	if !s.Catalog().IsValid(0, 0) {
		t.Error("temperature not marked valid")
	}

	// collecting again keeps the simulated values
	if err := s.CollectRunResults(set); err != nil {
		t.Errorf("second collection: %v", err)
	}
}

func TestRunCasesReportsFailures(t *testing.T) {
	calls := 0
	s := newScenario(t, WithRunner(runmgr.RunnerFunc(func(ctx context.Context, c *runcase.Case, id string) error {
		calls++
		if calls == 2 {
			return errors.New("simulator crashed")
		}
		return linearSimulator(ctx, c, id)
	})))
	ctx := context.Background()
	if _, err := s.GenerateDoE(ctx, doe.Tornado, 0, ""); err != nil {
		t.Fatal(err)
	}
	set := s.DoECases()
	if err := s.ApplyMutations(set); err != nil {
		t.Fatal(err)
	}
	err := s.RunCases(ctx, set)
	if !casaerr.Is(err, casaerr.RunManagerError) {
		t.Fatalf("expected RunManagerError, got %v", err)
	}
	if calls != set.Len() {
		t.Errorf("runner called %d times, want %d", calls, set.Len())
	}
	if set.Case(1).State() != runcase.Failed || set.Case(0).State() != runcase.Completed {
		t.Errorf("states = %v, %v", set.Case(0).State(), set.Case(1).State())
	}

	// only cases not submitted yet are run again
	calls = 0
	if err := s.RunCases(ctx, set); err != nil {
		t.Errorf("rerun: %v", err)
	}
	if calls != 0 {
		t.Errorf("rerun submitted %d cases", calls)
	}
}

func TestApplyMutationsNeedsLocation(t *testing.T) {
	s := newScenario(t)
	s.SetLocation("")
	if err := s.ApplyMutations(s.DoECases()); !casaerr.Is(err, casaerr.UndefinedValue) {
		t.Errorf("expected UndefinedValue, got %v", err)
	}
}

func TestProxyAndMonteCarlo(t *testing.T) {
	s := newScenario(t)
	label := runDoE(t, s)
	ctx := context.Background()

	p, err := s.AddProxy(ctx, "linear", 1, rsproxy.NoKriging, []string{label})
	if err != nil {
		t.Fatalf("AddProxy: %v", err)
	}
	// A and B map [0,10] onto [-1,1], so the centre is A = B = 5
	got, err := p.Predict([]float64{0, 0})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	want := []float64{110, 65}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-6 {
			t.Errorf("prediction %d = %v, want %v", i, got[i], want[i])
		}
	}
	if _, err := s.AddProxy(ctx, "linear", 1, rsproxy.NoKriging, []string{label}); !casaerr.Is(err, casaerr.AlreadyDefined) {
		t.Errorf("duplicate proxy: expected AlreadyDefined, got %v", err)
	}

	settings := montecarlo.Settings{
		Algorithm:   montecarlo.MonteCarlo,
		Measurement: montecarlo.NormalMeasurements,
		SampleCount: 40,
		Seed:        7,
		Workers:     2,
	}
	res, err := s.RunMonteCarlo(ctx, "linear", settings, nil)
	if err != nil {
		t.Fatalf("RunMonteCarlo: %v", err)
	}
	if len(res.Samples) != 40 || s.MCCases().Len() != 40 {
		t.Fatalf("samples %d, MC cases %d, want 40", len(res.Samples), s.MCCases().Len())
	}
	if got := s.MCCases().ExperimentNames(); !cmp.Equal(got, []string{MCLabel}) {
		t.Errorf("MC labels = %v", got)
	}
	if _, err := s.RunMonteCarlo(ctx, "missing", settings, nil); !casaerr.Is(err, casaerr.UndefinedValue) {
		t.Errorf("unknown proxy: expected UndefinedValue, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "calibrated", "project.yaml")
	if err := s.SaveCalibratedCase(path, 3); err != nil {
		t.Fatalf("SaveCalibratedCase: %v", err)
	}
	m, err := model.Open(path)
	if err != nil {
		t.Fatalf("open calibrated: %v", err)
	}
	a, err := m.Parameter("A")
	if err != nil {
		t.Fatal(err)
	}
	sampleA, _ := res.Samples[3].Case.ParameterFor(s.Space().Parameter(0))
	if math.Abs(a[0]-sampleA.Floats()[0]) > 1e-12 {
		t.Errorf("calibrated A = %v, want %v", a[0], sampleA.Floats()[0])
	}
	if err := s.SaveCalibratedCase(path, 40); !casaerr.Is(err, casaerr.OutOfRange) {
		t.Errorf("sample out of range: expected OutOfRange, got %v", err)
	}
}

func TestSamplingSpace(t *testing.T) {
	s := newScenario(t)
	sp, err := SamplingSpace(s.Space(), []config.Range{{Name: "A", Min: []float64{2}, Max: []float64{4}}})
	if err != nil {
		t.Fatalf("SamplingSpace: %v", err)
	}
	c := sp.Continuous()
	if len(c) != 1 || c[0].Min()[0] != 2 || c[0].Max()[0] != 4 || c[0].Base()[0] != 2 {
		t.Fatalf("restricted A = %+v", c)
	}
	if sp, err := SamplingSpace(s.Space(), nil); sp != nil || err != nil {
		t.Errorf("no ranges = %v, %v, want nil", sp, err)
	}
	if _, err := SamplingSpace(s.Space(), []config.Range{{Name: "Z", Min: []float64{0}, Max: []float64{1}}}); !casaerr.Is(err, casaerr.ConfigError) {
		t.Errorf("unknown parameter: expected ConfigError, got %v", err)
	}
}

func TestCalibrate(t *testing.T) {
	store := ledger.NewMemoryStore()
	s := newScenario(t, WithLedger(store))
	res, err := s.Calibrate(context.Background(), lm.Settings{MaxEvaluations: 60})
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	want := []float64{4, 7}
	for i := range want {
		if math.Abs(res.X[i]-want[i]) > 1e-3 {
			t.Errorf("x[%d] = %v, want %v", i, res.X[i], want[i])
		}
	}
	if s.CalibrationCases().Len() != res.Evaluations {
		t.Errorf("calibration cases = %d, evaluations = %d", s.CalibrationCases().Len(), res.Evaluations)
	}
	entries, err := store.List(context.Background(), s.ID())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != res.Evaluations {
		t.Errorf("ledger entries = %d, want %d", len(entries), res.Evaluations)
	}
	if _, err := os.Stat(filepath.Join(s.Location(), "Calibration_1")); err != nil {
		t.Errorf("calibration folder: %v", err)
	}

	s.SetRunner(nil)
	if _, err := s.Calibrate(context.Background(), lm.Settings{}); !casaerr.Is(err, casaerr.ConfigError) {
		t.Errorf("no runner: expected ConfigError, got %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newScenario(t)
	label := runDoE(t, s)
	p, err := s.AddProxy(context.Background(), "linear", 1, rsproxy.NoKriging, []string{label})
	if err != nil {
		t.Fatalf("AddProxy: %v", err)
	}
	x := []float64{0.3, -0.6}
	want, err := p.Predict(x)
	if err != nil {
		t.Fatal(err)
	}

	for _, format := range []serial.Format{serial.Text, serial.Binary} {
		t.Run(string(format), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "state."+string(format))
			if err := s.Save(path, format); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, err := Load(path, format)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got.ID() != s.ID() || got.Location() != s.Location() || got.Iteration() != s.Iteration() ||
				got.BaseCasePath() != s.BaseCasePath() {
				t.Errorf("header = %s %s %d %s", got.ID(), got.Location(), got.Iteration(), got.BaseCasePath())
			}
			if got.Space().Len() != 2 || got.Catalog().Len() != 2 {
				t.Errorf("space %d, catalog %d", got.Space().Len(), got.Catalog().Len())
			}
			if diff := cmp.Diff(s.DoECases().ExperimentNames(), got.DoECases().ExperimentNames()); diff != "" {
				t.Errorf("experiment names (-want +got):\n%s", diff)
			}
			if got.DoECases().Len() != s.DoECases().Len() {
				t.Errorf("DoE cases = %d, want %d", got.DoECases().Len(), s.DoECases().Len())
			}
			for i, c := range got.DoECases().Cases() {
				if !c.Equal(s.DoECases().At(i)) || c.State() != runcase.Completed {
					t.Errorf("case %d differs after load", i)
				}
			}
			lp, ok := got.Proxy("linear")
			if !ok {
				t.Fatalf("proxy not loaded, have %v", got.ProxyNames())
			}
			pred, err := lp.Predict(x)
			if err != nil {
				t.Fatalf("Predict: %v", err)
			}
			for i := range want {
				if math.Abs(pred[i]-want[i]) > 1e-9 {
					t.Errorf("prediction %d = %v, want %v", i, pred[i], want[i])
				}
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing"), serial.Text); !casaerr.Is(err, casaerr.IoError) {
		t.Errorf("missing file: expected IoError, got %v", err)
	}
	bogus := filepath.Join(t.TempDir(), "bogus.txt")
	if err := os.WriteFile(bogus, []byte("magic: nope\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bogus, serial.Text); !casaerr.Is(err, casaerr.DeserializationError) {
		t.Errorf("bogus file: expected DeserializationError, got %v", err)
	}
}

func TestSetBaseCaseMissing(t *testing.T) {
	s := New()
	if err := s.SetBaseCase(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing base project")
	}
	if _, err := s.BaseCase(); !casaerr.Is(err, casaerr.UndefinedValue) {
		t.Errorf("no base case: expected UndefinedValue, got %v", err)
	}
}

func TestNewRunner(t *testing.T) {
	r, closeFn, err := NewRunner(config.RunManager{Type: "exec", Command: "sim", Args: []string{"-q"}})
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if e, ok := r.(*runmgr.Exec); !ok || e.Command != "sim" {
		t.Errorf("exec runner = %#v", r)
	}
	if err := closeFn(); err != nil {
		t.Errorf("close: %v", err)
	}

	r, closeFn, err = NewRunner(config.RunManager{Type: "grpc", Addr: "localhost:0",
		Retries: &config.Retries{MaxRetries: 2, Backoff: "constant", BaseMs: 10}})
	if err != nil {
		t.Fatalf("grpc: %v", err)
	}
	if _, ok := r.(*runmgr.GRPCRunner); !ok {
		t.Errorf("grpc runner = %T", r)
	}
	if err := closeFn(); err != nil {
		t.Errorf("close: %v", err)
	}

	if r, _, err := NewRunner(config.RunManager{}); r != nil || err != nil {
		t.Errorf("no type = %v, %v, want no runner", r, err)
	}
	if _, _, err := NewRunner(config.RunManager{Type: "carrier-pigeon"}); !casaerr.Is(err, casaerr.ConfigError) {
		t.Errorf("unknown type: expected ConfigError, got %v", err)
	}
}

func TestOpenLedger(t *testing.T) {
	mem, err := OpenLedger(nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := mem.(*ledger.MemoryStore); !ok {
		t.Errorf("default ledger = %T", mem)
	}
	sq, err := OpenLedger(&config.Ledger{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "ledger.db")})
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sq.Close() })
	if _, ok := sq.(*ledger.SQLiteStore); !ok {
		t.Errorf("sqlite ledger = %T", sq)
	}
	if _, err := OpenLedger(&config.Ledger{Driver: "redis"}); !casaerr.Is(err, casaerr.ConfigError) {
		t.Errorf("unknown driver: expected ConfigError, got %v", err)
	}
}

func TestSettingsFromConfig(t *testing.T) {
	st, err := MonteCarloSettings(&config.MonteCarlo{
		Proxy: "p", Algorithm: "MCMC", Kriging: "smart", Prior: "marginal", Measurement: "robust",
		Samples: 100, BurnIn: 10, Seed: 3,
	})
	if err != nil {
		t.Fatalf("MonteCarloSettings: %v", err)
	}
	want := montecarlo.Settings{
		Algorithm: montecarlo.MCMC, Kriging: rsproxy.SmartKriging, Prior: montecarlo.MarginalPrior,
		Measurement: montecarlo.RobustMeasurements, SampleCount: 100, BurnIn: 10, Seed: 3,
	}
	if diff := cmp.Diff(want, st); diff != "" {
		t.Errorf("settings (-want +got):\n%s", diff)
	}
	if _, err := MonteCarloSettings(nil); !casaerr.Is(err, casaerr.ConfigError) {
		t.Errorf("missing section: expected ConfigError, got %v", err)
	}

	got := CalibrationSettings(&config.Calibration{MaxEvaluations: 40, FTol: 1e-8})
	if diff := cmp.Diff(lm.Settings{MaxEvaluations: 40, FTol: 1e-8}, got); diff != "" {
		t.Errorf("calibration settings (-want +got):\n%s", diff)
	}
}
