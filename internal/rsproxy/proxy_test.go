package rsproxy

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
	"github.com/GoSim-25-26J-441/casa-core/internal/doe"
	"github.com/GoSim-25-26J-441/casa-core/internal/observable"
	"github.com/GoSim-25-26J-441/casa-core/internal/runcase"
	"github.com/GoSim-25-26J-441/casa-core/internal/serial"
	"github.com/GoSim-25-26J-441/casa-core/internal/varspace"
)

type fixture struct {
	space   *varspace.Space
	catalog *observable.Catalog
	temp    *observable.GridXYZ
	vr      *observable.GridXYZ
	set     *runcase.Set
}

type response func(a, b float64) float64

func linearTemp(a, b float64) float64 { return 100 + 3*(a-1) + 0.5*b }
func linearVr(a, b float64) float64   { return 0.6 - 0.1*(a-1) + 0.02*b }

func newFixture(t *testing.T, family doe.Family) *fixture {
	t.Helper()
	f := &fixture{space: varspace.NewSpace(), catalog: observable.NewCatalog(), set: runcase.NewSet()}
	a, err := varspace.NewContinuous("A", "", []float64{0}, []float64{2}, []float64{1})
	if err != nil {
		t.Fatalf("NewContinuous: %v", err)
	}
	b, err := varspace.NewContinuous("B", "", []float64{-5}, []float64{5}, []float64{0})
	if err != nil {
		t.Fatalf("NewContinuous: %v", err)
	}
	_ = f.space.Add(a)
	_ = f.space.Add(b)

	f.temp = observable.NewGridXYZ("T", "Temperature", 100, 100, 1000, 0)
	f.vr = observable.NewGridXYZ("V", "Vr", 100, 100, 1000, 0)
	if _, err := f.catalog.Register(f.temp); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := f.catalog.Register(f.vr); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := doe.NewDriver(doe.NewBuiltin(7)).Generate(context.Background(), f.space, f.set, family, 9, ""); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return f
}

func (f *fixture) simulate(t *testing.T, temp, vr response) []*runcase.Case {
	t.Helper()
	for _, c := range f.set.Cases() {
		a, b := f.physical(c)
		if err := c.AddObservableValue(observable.NewScalar(f.temp, temp(a, b))); err != nil {
			t.Fatalf("AddObservableValue: %v", err)
		}
		if err := c.AddObservableValue(observable.NewScalar(f.vr, vr(a, b))); err != nil {
			t.Fatalf("AddObservableValue: %v", err)
		}
		c.SetState(runcase.Completed)
	}
	cases, err := f.set.CollectCompletedCases(f.set.ExperimentNames())
	if err != nil {
		t.Fatalf("CollectCompletedCases: %v", err)
	}
	return cases
}

func (f *fixture) physical(c *runcase.Case) (float64, float64) {
	return c.Parameter(0).Floats()[0], c.Parameter(1).Floats()[0]
}

// freshCase copies the parameters of c into a case without observables.
func freshCase(t *testing.T, c *runcase.Case) *runcase.Case {
	t.Helper()
	out := runcase.New()
	for _, v := range c.Parameters() {
		if err := out.AddParameter(v); err != nil {
			t.Fatalf("AddParameter: %v", err)
		}
	}
	return out
}

func TestTermKey(t *testing.T) {
	if got := TermKey(3, 1); got != "1,3" {
		t.Errorf("TermKey(3,1) = %q", got)
	}
	if got := TermKey(); got != "" {
		t.Errorf("TermKey() = %q", got)
	}
	idx, err := ParseTermKey("0,0")
	if err != nil || !cmp.Equal(idx, []int{0, 0}) {
		t.Errorf("ParseTermKey = %v, %v", idx, err)
	}
	if _, err := ParseTermKey("0,x"); err == nil {
		t.Errorf("expected error for bad key")
	}
}

func TestFirstOrderFactorialCoefficients(t *testing.T) {
	f := newFixture(t, doe.FullFactorial)
	cases := f.simulate(t, linearTemp, linearVr)
	if len(cases) != 5 {
		t.Fatalf("completed cases = %d, want 5", len(cases))
	}

	p, err := New("lin", f.space, f.catalog, WithOrder(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Calculate(context.Background(), cases); err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	tests := []struct {
		desc     observable.Descriptor
		fn       response
		halfA    float64
		halfB    float64
		slopeA   float64
		slopeB   float64
		constant float64
	}{
		{f.temp, linearTemp, 1, 5, 3, 0.5, 100},
		{f.vr, linearVr, 1, 5, -0.1, 0.02, 0.6},
	}
	for _, tt := range tests {
		c := p.CoefficientsFor(tt.desc)[0]
		base := tt.fn(1, 0)
		if math.Abs(c[""]-base) > 1e-9 || math.Abs(c[""]-tt.constant) > 1e-9 {
			t.Errorf("%s constant = %v, want base value %v", tt.desc.Names()[0], c[""], base)
		}
		// slope per unit of physical parameter: (corner - base) / half range
		cornerA := tt.fn(2, 0)
		if got, want := c["0"]/tt.halfA, (cornerA-base)/tt.halfA; math.Abs(got-want) > 1e-9 || math.Abs(got-tt.slopeA) > 1e-9 {
			t.Errorf("%s slope A = %v, want %v", tt.desc.Names()[0], got, want)
		}
		cornerB := tt.fn(1, 5)
		if got, want := c["1"]/tt.halfB, (cornerB-base)/tt.halfB; math.Abs(got-want) > 1e-9 || math.Abs(got-tt.slopeB) > 1e-9 {
			t.Errorf("%s slope B = %v, want %v", tt.desc.Names()[0], got, want)
		}
		if len(c) != 3 {
			t.Errorf("%s has %d terms, want 3", tt.desc.Names()[0], len(c))
		}
	}
	if r2 := p.RSquared(0); math.Abs(r2-1) > 1e-9 {
		t.Errorf("RSquared = %v, want 1", r2)
	}
}

func TestEvaluateNeverOverwritesSimulation(t *testing.T) {
	f := newFixture(t, doe.FullFactorial)
	cases := f.simulate(t, linearTemp, linearVr)
	p, _ := New("lin", f.space, f.catalog)
	if err := p.Calculate(context.Background(), cases); err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	if err := p.Evaluate(cases[0]); !casaerr.Is(err, casaerr.AlreadyDefined) {
		t.Fatalf("expected AlreadyDefined, got %v", err)
	}
	if v, _ := cases[0].ValueFor(f.temp); v.Reported()[0] != linearTemp(f.physical(cases[0])) {
		t.Errorf("simulated value changed to %v", v.Reported()[0])
	}

	c := freshCase(t, cases[3])
	if err := p.Evaluate(c); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	a, b := f.physical(c)
	v, ok := c.ValueFor(f.temp)
	if !ok || math.Abs(v.Reported()[0]-linearTemp(a, b)) > 1e-9 {
		t.Errorf("evaluated T = %v, want %v", v, linearTemp(a, b))
	}

	// a stored no-data value is filled in
	c = freshCase(t, cases[4])
	if err := c.AddObservableValue(observable.NewScalar(f.vr, observable.NoDataValue)); err != nil {
		t.Fatalf("AddObservableValue: %v", err)
	}
	if err := p.Evaluate(c); err != nil {
		t.Fatalf("Evaluate over no-data: %v", err)
	}
	if v, _ := c.ValueFor(f.vr); !observable.HasData(v) || c.ObservablesNumber() != 2 {
		t.Errorf("no-data value not replaced: %v, %d values", v.Reported(), c.ObservablesNumber())
	}
}

func TestRankDeficientDesignFails(t *testing.T) {
	f := newFixture(t, doe.FullFactorial)
	cases := f.simulate(t, linearTemp, linearVr)
	// six quadratic terms, five cases
	p, _ := New("quad", f.space, f.catalog, WithOrder(2))
	err := p.Calculate(context.Background(), cases)
	if !casaerr.Is(err, casaerr.SolverError) {
		t.Fatalf("expected SolverError, got %v", err)
	}
	if p.Fitted() {
		t.Errorf("failed fit left the proxy fitted")
	}
	if err := p.Evaluate(freshCase(t, cases[0])); !casaerr.Is(err, casaerr.UndefinedValue) {
		t.Errorf("expected UndefinedValue before a fit, got %v", err)
	}
}

func TestProviderFailures(t *testing.T) {
	f := newFixture(t, doe.FullFactorial)
	cases := f.simulate(t, linearTemp, linearVr)

	tests := []struct {
		name string
		fit  FitFunc
	}{
		{"provider error", func(context.Context, FitRequest) ([]Coefficients, error) {
			return nil, errors.New("singular matrix")
		}},
		{"wrong column count", func(context.Context, FitRequest) ([]Coefficients, error) {
			return []Coefficients{{"": 1}}, nil
		}},
		{"term out of range", func(context.Context, FitRequest) ([]Coefficients, error) {
			return []Coefficients{{"": 1}, {"7": 1}}, nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := New("ext", f.space, f.catalog, WithFitProvider(tt.fit))
			if err := p.Calculate(context.Background(), cases); !casaerr.Is(err, casaerr.SolverError) {
				t.Fatalf("expected SolverError, got %v", err)
			}
		})
	}
}

func quadTemp(a, b float64) float64 { return 100 + 3*a*a - 0.2*b*b + a*b }

func TestGlobalKrigingInterpolatesTrainingPoints(t *testing.T) {
	f := newFixture(t, doe.FullFactorial)
	cases := f.simulate(t, quadTemp, linearVr)

	plain, _ := New("plain", f.space, f.catalog)
	krig, _ := New("krig", f.space, f.catalog, WithKriging(GlobalKriging))
	for _, p := range []*Proxy{plain, krig} {
		if err := p.Calculate(context.Background(), cases); err != nil {
			t.Fatalf("Calculate %s: %v", p.Name(), err)
		}
	}

	worst := 0.0
	for _, c := range cases {
		x, _ := Coordinates(f.space, c)
		got, err := krig.Predict(x)
		if err != nil {
			t.Fatalf("Predict: %v", err)
		}
		a, b := f.physical(c)
		if d := math.Abs(got[0] - quadTemp(a, b)); d > 1e-4 {
			t.Errorf("kriging misses training point by %v", d)
		}
		lin, _ := plain.Predict(x)
		worst = math.Max(worst, math.Abs(lin[0]-quadTemp(a, b)))
	}
	if worst < 1e-3 {
		t.Errorf("linear proxy fits a quadratic exactly, test is not discriminating")
	}

	smart, _ := New("smart", f.space, f.catalog, WithKriging(SmartKriging))
	if err := smart.Calculate(context.Background(), cases); err != nil {
		t.Fatalf("Calculate smart: %v", err)
	}
	if err := smart.Evaluate(freshCase(t, cases[2])); err != nil {
		t.Errorf("smart Evaluate: %v", err)
	}
}

func TestFrozenCoordinateHasNoTerm(t *testing.T) {
	space := varspace.NewSpace()
	a, _ := varspace.NewContinuous("A", "", []float64{0, 3}, []float64{2, 3}, []float64{1, 3})
	_ = space.Add(a)
	catalog := observable.NewCatalog()
	d := observable.NewGridXYZ("T", "Temperature", 1, 1, 1, 0)
	_, _ = catalog.Register(d)

	set := runcase.NewSet()
	if _, err := doe.NewDriver(nil).Generate(context.Background(), space, set, doe.Tornado, 0, ""); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for _, c := range set.Cases() {
		_ = c.AddObservableValue(observable.NewScalar(d, 10+c.Parameter(0).Floats()[0]))
		c.SetState(runcase.Completed)
	}
	p, _ := New("frozen", space, catalog, WithOrder(2))
	if err := p.Calculate(context.Background(), set.Cases()); err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	c := p.Coefficients(0)
	if _, ok := c["1"]; ok {
		t.Errorf("frozen coordinate got a linear term: %v", c)
	}
	if _, ok := c["0,0"]; !ok {
		t.Errorf("missing quadratic term: %v", c)
	}
}

func TestSaveLoad(t *testing.T) {
	f := newFixture(t, doe.FullFactorial)
	cases := f.simulate(t, linearTemp, linearVr)

	for _, mode := range []Kriging{NoKriging, GlobalKriging} {
		p, _ := New("saved", f.space, f.catalog, WithKriging(mode), WithDoEList([]string{"DoE_FullFactorial"}))
		if err := p.Calculate(context.Background(), cases); err != nil {
			t.Fatalf("Calculate: %v", err)
		}
		data, err := serial.Encode(serial.Text, "proxy", Save(p))
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		body, err := serial.Decode(serial.Text, data, "proxy")
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		loaded, err := Load(body, f.space, f.catalog)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if loaded.Kriging() != mode || loaded.Order() != 1 || !cmp.Equal(loaded.DoEList(), []string{"DoE_FullFactorial"}) {
			t.Errorf("loaded header = %v %d %v", loaded.Kriging(), loaded.Order(), loaded.DoEList())
		}
		for col := range p.Columns() {
			if diff := cmp.Diff(p.Coefficients(col), loaded.Coefficients(col)); diff != "" {
				t.Errorf("column %d coefficients differ (-want +got):\n%s", col, diff)
			}
		}

		err = loaded.Evaluate(freshCase(t, cases[1]))
		switch mode {
		case NoKriging:
			if err != nil {
				t.Errorf("Evaluate after load: %v", err)
			}
		default:
			if !casaerr.Is(err, casaerr.SolverError) {
				t.Errorf("%s after load: expected SolverError, got %v", mode, err)
			}
		}
	}
}

func TestParseKriging(t *testing.T) {
	for in, want := range map[string]Kriging{"": NoKriging, "Global": GlobalKriging, "SmartKriging": SmartKriging} {
		if got, err := ParseKriging(in); err != nil || got != want {
			t.Errorf("ParseKriging(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseKriging("universal"); !casaerr.Is(err, casaerr.ConfigError) {
		t.Errorf("expected ConfigError, got %v", err)
	}
}
