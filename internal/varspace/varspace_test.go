package varspace

import (
	"math"
	"strings"
	"testing"

	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
	"github.com/GoSim-25-26J-441/casa-core/internal/model"
	"github.com/GoSim-25-26J-441/casa-core/internal/serial"
	"github.com/GoSim-25-26J-441/casa-core/pkg/utils"
)

func mustContinuous(t *testing.T, name string, min, max, base []float64, opts ...ContinuousOption) *ContinuousParameter {
	t.Helper()
	p, err := NewContinuous(name, "", min, max, base, opts...)
	if err != nil {
		t.Fatalf("NewContinuous(%s): %v", name, err)
	}
	return p
}

func TestNewContinuousValidation(t *testing.T) {
	tests := []struct {
		name           string
		min, max, base []float64
		code           casaerr.Code
	}{
		{"size mismatch", []float64{0}, []float64{1, 2}, []float64{0}, casaerr.ConfigError},
		{"min above max", []float64{2}, []float64{1}, []float64{1}, casaerr.OutOfRange},
		{"base outside", []float64{0}, []float64{1}, []float64{3}, casaerr.OutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewContinuous("P", "", tt.min, tt.max, tt.base)
			if !casaerr.Is(err, tt.code) {
				t.Fatalf("expected %v, got %v", tt.code, err)
			}
		})
	}
}

func TestContinuousFrozenAndNormalized(t *testing.T) {
	p := mustContinuous(t, "Crust", []float64{0, 5}, []float64{4, 5}, []float64{2, 5})
	if p.Frozen(0) || !p.Frozen(1) {
		t.Fatalf("frozen flags wrong: %v %v", p.Frozen(0), p.Frozen(1))
	}
	v, err := p.NewValue([]float64{4, 5})
	if err != nil {
		t.Fatalf("NewValue: %v", err)
	}
	n := v.Normalized()
	if n[0] != 1 || n[1] != 0 {
		t.Errorf("Normalized() = %v, want [1 0]", n)
	}
	back, err := p.FromNormalized(n)
	if err != nil {
		t.Fatalf("FromNormalized: %v", err)
	}
	if !back.Equal(v) {
		t.Errorf("FromNormalized(Normalized()) = %v, want %v", back.Floats(), v.Floats())
	}
}

func TestPriorPenalty(t *testing.T) {
	block := mustContinuous(t, "B", []float64{0}, []float64{10}, []float64{5})
	tri := mustContinuous(t, "T", []float64{0}, []float64{10}, []float64{5}, WithPrior(Triangle))
	norm := mustContinuous(t, "N", []float64{0}, []float64{12}, []float64{6}, WithPrior(Normal))

	if got := block.Penalty(0, 9.9); got != 0 {
		t.Errorf("block penalty inside = %v, want 0", got)
	}
	if got := tri.Penalty(0, 5); got != 0 {
		t.Errorf("triangle penalty at mode = %v, want 0", got)
	}
	// half way to the bound the density halves
	if got, want := tri.Penalty(0, 7.5), math.Sqrt(-2*math.Log(0.5)); !utils.AlmostEqual(got, want, 1e-12) {
		t.Errorf("triangle penalty = %v, want %v", got, want)
	}
	// default sigma is range/6 = 2
	if got := norm.Penalty(0, 9); !utils.AlmostEqual(got, 1.5, 1e-12) {
		t.Errorf("normal penalty = %v, want 1.5", got)
	}
	inside := block.Penalty(0, 10)
	outside := block.Penalty(0, 10.5)
	if !(outside > math.E && outside > inside) {
		t.Errorf("outside penalty %v should exceed e", outside)
	}
}

func TestSampleStaysInRange(t *testing.T) {
	rng := utils.NewRandSource(11)
	for _, prior := range []Prior{Block, Triangle, Normal} {
		p := mustContinuous(t, prior.String(), []float64{1, 3}, []float64{2, 3}, []float64{1.2, 3}, WithPrior(prior))
		for range 200 {
			v := p.Sample(rng).Floats()
			if v[0] < 1 || v[0] > 2 || v[1] != 3 {
				t.Fatalf("%s sample %v outside range", prior, v)
			}
		}
	}
}

func TestValuesMutateAndValidate(t *testing.T) {
	m := model.New(model.Spec{Name: "p"})
	cont := mustContinuous(t, "HeatProd", []float64{0}, []float64{5}, []float64{2.5})
	cat, err := NewCategorical("Lithology", "SourceRockType", []string{"A", "B"}, []string{"Type I", "Type II"}, 0)
	if err != nil {
		t.Fatalf("NewCategorical: %v", err)
	}
	disc, err := NewDiscrete("Layers", "", []float64{1, 2, 4}, 1)
	if err != nil {
		t.Fatalf("NewDiscrete: %v", err)
	}

	cv, _ := cont.NewValue([]float64{3})
	kv, _ := cat.NewValue(1)
	dv, _ := disc.NewValue(2)
	for _, v := range []Value{cv, kv, dv} {
		if msg := v.Validate(m); msg == "" {
			t.Errorf("%s: expected violation before mutation", v.Parameter().Name())
		}
		if err := v.Mutate(m); err != nil {
			t.Fatalf("Mutate(%s): %v", v.Parameter().Name(), err)
		}
		if msg := v.Validate(m); msg != "" {
			t.Errorf("%s: unexpected violation %q", v.Parameter().Name(), msg)
		}
	}
	if opt, _ := m.Option("SourceRockType"); opt != "Type II" {
		t.Errorf("option = %q, want Type II", opt)
	}
	if lv, _ := m.Parameter("Layers"); lv[0] != 4 {
		t.Errorf("level = %v, want 4", lv)
	}

	out, _ := cont.NewValue([]float64{7})
	_ = out.Mutate(m)
	if msg := out.Validate(m); !strings.Contains(msg, "outside range") {
		t.Errorf("expected range violation, got %q", msg)
	}
}

func TestValueEqualIsStructural(t *testing.T) {
	a := mustContinuous(t, "P", []float64{0}, []float64{1}, []float64{0.5})
	b := mustContinuous(t, "P", []float64{0}, []float64{1}, []float64{0.5})
	va, _ := a.NewValue([]float64{0.25})
	vb, _ := b.NewValue([]float64{0.25})
	if !va.Equal(vb) {
		t.Errorf("value-equal values of independently built parameters should be equal")
	}
	vc, _ := b.NewValue([]float64{0.3})
	if va.Equal(vc) {
		t.Errorf("different values reported equal")
	}
}

func TestSpace(t *testing.T) {
	s := NewSpace()
	p := mustContinuous(t, "P", []float64{0}, []float64{1}, []float64{0.5})
	if err := s.Add(p); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(mustContinuous(t, "P", []float64{0}, []float64{2}, []float64{1})); !casaerr.Is(err, casaerr.AlreadyDefined) {
		t.Fatalf("expected AlreadyDefined, got %v", err)
	}
	cat, _ := NewCategorical("C", "", []string{"x", "y", "z"}, nil, 2)
	if err := s.Add(cat); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if s.Len() != 2 || s.ContinuousDimension() != 1 || len(s.Categorical()) != 1 {
		t.Fatalf("unexpected space shape")
	}
	if s.IndexOf("C") != 1 || s.IndexOf("missing") != -1 {
		t.Errorf("IndexOf wrong")
	}
	maxVals := s.MaxValues()
	if got := maxVals[1].(*CategoricalValue).Label(); got != "z" {
		t.Errorf("max category = %q, want z", got)
	}
}

func TestSpaceRoundTrip(t *testing.T) {
	s := NewSpace()
	cont := mustContinuous(t, "P", []float64{0, 1}, []float64{1, 2}, []float64{0.5, 1.5}, WithPrior(Normal))
	cat, _ := NewCategorical("C", "Lith", []string{"x", "y"}, []string{"X", "Y"}, 1)
	disc, _ := NewDiscrete("D", "", []float64{1, 2}, 0)
	for _, p := range []Parameter{cont, cat, disc} {
		if err := s.Add(p); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	value, _ := cont.NewValue([]float64{0.7, 1.2})

	saveReg := serial.NewRegistry()
	spaceObj := SaveSpace(s, saveReg)
	valueObj := SaveValue(value, saveReg)

	data, err := serial.Encode(serial.Text, "VarSpace", serial.Object{"space": spaceObj, "value": valueObj})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	doc, err := serial.Decode(serial.Text, data, "VarSpace")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	spaceBack, _ := doc.Object("space")
	valueBack, _ := doc.Object("value")

	loadReg := serial.NewRegistry()
	loaded, err := LoadSpace(spaceBack, loadReg)
	if err != nil {
		t.Fatalf("LoadSpace: %v", err)
	}
	if loaded.Len() != 3 {
		t.Fatalf("loaded %d parameters, want 3", loaded.Len())
	}
	got, err := LoadValue(valueBack, loadReg)
	if err != nil {
		t.Fatalf("LoadValue: %v", err)
	}
	if !got.Equal(value) {
		t.Errorf("value round trip = %v, want %v", got.Floats(), value.Floats())
	}
	if got.Parameter() != loaded.Parameter(0) {
		t.Errorf("loaded value does not reference the loaded parameter")
	}
	lc := loaded.Parameter(0).(*ContinuousParameter)
	if lc.Prior() != Normal {
		t.Errorf("prior = %v, want Normal", lc.Prior())
	}
}
