package runcase

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
	"github.com/GoSim-25-26J-441/casa-core/internal/model"
	"github.com/GoSim-25-26J-441/casa-core/internal/observable"
	"github.com/GoSim-25-26J-441/casa-core/internal/serial"
	"github.com/GoSim-25-26J-441/casa-core/internal/varspace"
)

type fixture struct {
	space *varspace.Space
	heat  *varspace.ContinuousParameter
	lith  *varspace.CategoricalParameter
	temp  observable.Descriptor
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	heat, err := varspace.NewContinuous("TopCrustHeatProd", "", []float64{0.1}, []float64{4.9}, []float64{2.5})
	if err != nil {
		t.Fatalf("NewContinuous: %v", err)
	}
	lith, err := varspace.NewCategorical("Lithology", "", []string{"Sand", "Shale"}, nil, 0)
	if err != nil {
		t.Fatalf("NewCategorical: %v", err)
	}
	space := varspace.NewSpace()
	_ = space.Add(heat)
	_ = space.Add(lith)
	return fixture{
		space: space,
		heat:  heat,
		lith:  lith,
		temp:  observable.NewGridXYZ("", "Temperature", 10, 10, 1000, 0),
	}
}

func (f fixture) newCase(t *testing.T, heat float64, lith int) *Case {
	t.Helper()
	c := New(WithParameterLimit(f.space.Len()))
	hv, err := f.heat.NewValue([]float64{heat})
	if err != nil {
		t.Fatalf("NewValue: %v", err)
	}
	lv, err := f.lith.NewValue(lith)
	if err != nil {
		t.Fatalf("NewValue: %v", err)
	}
	if err := c.AddParameter(hv); err != nil {
		t.Fatalf("AddParameter: %v", err)
	}
	if err := c.AddParameter(lv); err != nil {
		t.Fatalf("AddParameter: %v", err)
	}
	return c
}

func TestCaseUniqueness(t *testing.T) {
	f := newFixture(t)
	c := f.newCase(t, 1, 0)

	dup, _ := f.heat.NewValue([]float64{2})
	if err := c.AddParameter(dup); !casaerr.Is(err, casaerr.AlreadyDefined) {
		t.Errorf("second value for the same parameter: got %v, want AlreadyDefined", err)
	}
	if err := c.AddObservableValue(observable.NewScalar(f.temp, 70)); err != nil {
		t.Fatalf("AddObservableValue: %v", err)
	}
	if err := c.AddObservableValue(observable.NewScalar(f.temp, 71)); !casaerr.Is(err, casaerr.AlreadyDefined) {
		t.Errorf("second value for the same observable: got %v, want AlreadyDefined", err)
	}
}

func TestCaseParameterLimit(t *testing.T) {
	f := newFixture(t)
	c := New(WithParameterLimit(1))
	hv, _ := f.heat.NewValue([]float64{1})
	lv, _ := f.lith.NewValue(1)
	if err := c.AddParameter(hv); err != nil {
		t.Fatalf("AddParameter: %v", err)
	}
	if err := c.AddParameter(lv); !casaerr.Is(err, casaerr.OutOfRange) {
		t.Errorf("expected OutOfRange, got %v", err)
	}
}

func TestSetDeduplicatesAcrossLabels(t *testing.T) {
	f := newFixture(t)
	s := NewSet()
	if err := s.AddNewCases([]*Case{f.newCase(t, 1, 0), f.newCase(t, 2, 1)}, "DoE_Tornado"); err != nil {
		t.Fatalf("AddNewCases: %v", err)
	}
	// independently built but value-equal case plus one new vector
	if err := s.AddNewCases([]*Case{f.newCase(t, 2, 1), f.newCase(t, 3, 0)}, "DoE_BoxBehnken"); err != nil {
		t.Fatalf("AddNewCases: %v", err)
	}
	if s.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", s.Size())
	}
	if diff := cmp.Diff([]int{1, 2}, s.IndexOf("DoE_BoxBehnken")); diff != "" {
		t.Errorf("label index mismatch (-want +got):\n%s", diff)
	}
	if err := s.AddNewCases(nil, "DoE_Tornado"); !casaerr.Is(err, casaerr.AlreadyDefined) {
		t.Errorf("reused label: got %v, want AlreadyDefined", err)
	}

	// re-adding identical vectors grows nothing
	if err := s.AddNewCases([]*Case{f.newCase(t, 1, 0)}, "again"); err != nil {
		t.Fatalf("AddNewCases: %v", err)
	}
	if s.Len() != 3 || s.IndexOf("again")[0] != s.IndexOf("DoE_Tornado")[0] {
		t.Errorf("identical vector was not reused")
	}
	if diff := cmp.Diff([]string{"DoE_Tornado", "DoE_BoxBehnken", "again"}, s.ExperimentNames()); diff != "" {
		t.Errorf("experiment names mismatch (-want +got):\n%s", diff)
	}
}

func TestSetDeduplicatesWithinBatch(t *testing.T) {
	f := newFixture(t)
	s := NewSet()
	batch := []*Case{f.newCase(t, 1, 0), f.newCase(t, 1, 0), f.newCase(t, 2, 1), f.newCase(t, 1, 0)}
	if err := s.AddNewCases(batch, "DoE_1"); err != nil {
		t.Fatalf("AddNewCases: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	if diff := cmp.Diff([]int{0, 1}, s.IndexOf("DoE_1")); diff != "" {
		t.Errorf("label index mismatch (-want +got):\n%s", diff)
	}
	if got := s.Find(f.newCase(t, 2, 1)); got != batch[2] {
		t.Errorf("Find returned %p, want stored case %p", got, batch[2])
	}
	if got := s.Find(f.newCase(t, 3, 0)); got != nil {
		t.Errorf("Find of a new vector = %p, want nil", got)
	}
}

func TestSetFilterUnion(t *testing.T) {
	f := newFixture(t)
	s := NewSet()
	_ = s.AddNewCases([]*Case{f.newCase(t, 1, 0), f.newCase(t, 2, 0)}, "L1")
	_ = s.AddNewCases([]*Case{f.newCase(t, 3, 0), f.newCase(t, 1, 0)}, "L2")
	_ = s.AddNewCases([]*Case{f.newCase(t, 4, 1)}, "L3")

	collect := func() []*Case { return s.Cases() }

	if err := s.FilterByExperimentName("L1"); err != nil {
		t.Fatalf("filter: %v", err)
	}
	l1 := collect()
	if err := s.FilterByExperimentName("L3"); err != nil {
		t.Fatalf("filter: %v", err)
	}
	l3 := collect()
	if err := s.FilterByDoeList([]string{"L1", "L3", "L1"}); err != nil {
		t.Fatalf("filter: %v", err)
	}
	both := collect()
	want := append(append([]*Case{}, l1...), l3...)
	if len(both) != len(want) {
		t.Fatalf("union size = %d, want %d", len(both), len(want))
	}
	for i := range want {
		if both[i] != want[i] {
			t.Errorf("union[%d] differs", i)
		}
	}
	if diff := cmp.Diff([]string{"L1", "L3"}, s.Filter()); diff != "" {
		t.Errorf("filter mismatch (-want +got):\n%s", diff)
	}

	// overlapping labels collapse duplicates in first-seen order
	_ = s.FilterByDoeList([]string{"L2", "L1"})
	if s.Size() != 3 || s.Case(0) != s.cases[2] || s.Case(1) != s.cases[0] || s.Case(2) != s.cases[1] {
		t.Errorf("overlapping union order wrong")
	}
	if s.Case(3) != nil {
		t.Errorf("out of range case should be nil")
	}

	if err := s.FilterByExperimentName(""); err != nil {
		t.Fatalf("clear filter: %v", err)
	}
	if s.Size() != s.Len() || len(s.Filter()) != 0 {
		t.Errorf("filter not cleared")
	}
	if err := s.FilterByExperimentName("missing"); !casaerr.Is(err, casaerr.UndefinedValue) {
		t.Errorf("unknown label: got %v", err)
	}
}

func TestCollectCompletedCases(t *testing.T) {
	f := newFixture(t)
	s := NewSet()
	a, b, c := f.newCase(t, 1, 0), f.newCase(t, 2, 0), f.newCase(t, 3, 0)
	_ = s.AddNewCases([]*Case{a, b}, "L1")
	_ = s.AddNewCases([]*Case{c, a}, "L2")
	a.SetState(Completed)
	b.SetState(Failed)
	c.SetState(Completed)

	got, err := s.CollectCompletedCases([]string{"L2", "L1"})
	if err != nil {
		t.Fatalf("CollectCompletedCases: %v", err)
	}
	if len(got) != 2 || got[0] != a || got[1] != c {
		t.Errorf("completed cases not in index order")
	}
	if _, err := s.CollectCompletedCases([]string{"nope"}); err == nil {
		t.Errorf("expected error for unknown label")
	}
}

func TestMutateAndValidate(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	base := model.New(model.Spec{Name: "base", Parameters: map[string][]float64{"TopCrustHeatProd": {2.5}}})

	c := f.newCase(t, 3.3, 1)
	if err := c.Validate(); !casaerr.Is(err, casaerr.ValidationError) {
		t.Errorf("unmutated case should fail validation, got %v", err)
	}
	path := filepath.Join(dir, "Case_1", "Project.yaml")
	if err := c.MutateTo(base, path); err != nil {
		t.Fatalf("MutateTo: %v", err)
	}
	if c.ProjectPath() != path {
		t.Errorf("ProjectPath() = %q", c.ProjectPath())
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	reopened, err := model.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if v, _ := reopened.Parameter("TopCrustHeatProd"); v[0] != 3.3 {
		t.Errorf("mutated parameter = %v", v)
	}

	// break both parameters in the project, all violations are reported
	_ = reopened.SetParameter("TopCrustHeatProd", []float64{1})
	_ = reopened.SetOption("Lithology", "Sand")
	_ = reopened.Save()
	c.Reload()
	err = c.Validate()
	if !casaerr.Is(err, casaerr.ValidationError) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(err.Error(), "TopCrustHeatProd") || !strings.Contains(err.Error(), "Lithology") {
		t.Errorf("violations not concatenated: %v", err)
	}
}

func TestMutateToIoError(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	c := f.newCase(t, 1, 0)
	err := c.MutateTo(model.New(model.Spec{Name: "base"}), filepath.Join(blocker, "Case_1", "Project.yaml"))
	if !casaerr.Is(err, casaerr.IoError) {
		t.Fatalf("expected IoError, got %v", err)
	}
}

func TestSetRoundTrip(t *testing.T) {
	f := newFixture(t)
	catalog := observable.NewCatalog()
	if _, err := catalog.Register(f.temp); err != nil {
		t.Fatalf("Register: %v", err)
	}

	s := NewSet()
	a, b, c := f.newCase(t, 1, 0), f.newCase(t, 2, 1), f.newCase(t, 3, 0)
	_ = a.AddObservableValue(observable.NewScalar(f.temp, 61.5))
	a.SetState(Completed)
	a.SetProjectPath("/tmp/Iteration_1/Case_1/Project.yaml")
	_ = s.AddNewCases([]*Case{a, b}, "L1")
	_ = s.AddNewCases([]*Case{b, c}, "L2")
	_ = s.FilterByExperimentName("L2")

	for _, format := range []serial.Format{serial.Binary, serial.Text} {
		t.Run(string(format), func(t *testing.T) {
			reg := serial.NewRegistry()
			body := serial.Object{
				"space":   varspace.SaveSpace(f.space, reg),
				"catalog": observable.SaveCatalog(catalog, reg),
				"set":     SaveSet(s, reg),
			}
			data, err := serial.Encode(format, "Scenario", body)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			doc, err := serial.Decode(format, data, "Scenario")
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}

			loadReg := serial.NewRegistry()
			spaceObj, _ := doc.Object("space")
			if _, err := varspace.LoadSpace(spaceObj, loadReg); err != nil {
				t.Fatalf("LoadSpace: %v", err)
			}
			catObj, _ := doc.Object("catalog")
			loadedCat, err := observable.LoadCatalog(catObj, loadReg, nil)
			if err != nil {
				t.Fatalf("LoadCatalog: %v", err)
			}
			setObj, _ := doc.Object("set")
			got, err := LoadSet(setObj, loadReg)
			if err != nil {
				t.Fatalf("LoadSet: %v", err)
			}

			if got.Len() != s.Len() {
				t.Fatalf("Len() = %d, want %d", got.Len(), s.Len())
			}
			for i := range s.Len() {
				if !got.cases[i].Equal(s.cases[i]) || got.cases[i].State() != s.cases[i].State() {
					t.Errorf("case %d differs after load", i)
				}
			}
			if diff := cmp.Diff(s.ExperimentNames(), got.ExperimentNames()); diff != "" {
				t.Errorf("experiment names (-want +got):\n%s", diff)
			}
			for _, l := range s.ExperimentNames() {
				if diff := cmp.Diff(s.IndexOf(l), got.IndexOf(l)); diff != "" {
					t.Errorf("index of %s (-want +got):\n%s", l, diff)
				}
			}
			if diff := cmp.Diff(s.Filter(), got.Filter()); diff != "" {
				t.Errorf("filter (-want +got):\n%s", diff)
			}
			if got.Size() != 2 {
				t.Errorf("filtered Size() = %d, want 2", got.Size())
			}
			first := got.cases[0]
			if first.ProjectPath() != a.ProjectPath() {
				t.Errorf("project path lost")
			}
			v, ok := first.ValueFor(loadedCat.Descriptor(0))
			if !ok || v.Reported()[0] != 61.5 {
				t.Errorf("observable value not restored against loaded catalog")
			}
		})
	}
}
