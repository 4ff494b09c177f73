package observable

import (
	"fmt"
	"math"
	"slices"

	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
	"github.com/GoSim-25-26J-441/casa-core/internal/model"
)

// Species are the hydrocarbon components whose trapped masses feed derived
// trap properties.
var Species = []string{"C1", "C2", "C3", "C4", "C5", "N2", "COx", "C6-14Sat", "C15+Sat"}

const (
	massSuffix = "Mass"
	// zeroMassLog is the log10 mass below which a component is treated as absent.
	zeroMassLog = -5.0
	// minPhaseMass is the smallest total phase mass a ratio is computed for.
	minPhaseMass = 1e-3
)

var zeroMass = math.Pow(10, zeroMassLog)

// Derived trap properties.
const (
	// GOR is the vapour to liquid mass ratio.
	GOR = "GOR"
	// CGR is the liquid to vapour mass ratio.
	CGR = "CGR"
)

// TrapDerivedProperties lists the model properties a derived trap observable mines.
func TrapDerivedProperties() []string {
	props := make([]string, 0, len(Species)+4)
	for _, s := range Species {
		props = append(props, s+massSuffix)
	}
	return append(props, "MassLiquid", "MassVapour", "Pressure", "Temperature")
}

// TrapDerived mines trap composition, phase masses, pressure and temperature
// and reports a property derived from them. Masses are optionally kept in
// log10 space, which is what proxies are fitted on.
type TrapDerived struct {
	common
	x, y      float64
	reservoir string
	logTransf bool
}

// NewTrapDerived builds a derived trap observable. property must be GOR or CGR.
func NewTrapDerived(name, property, reservoir string, x, y, age float64, logTransform bool) (*TrapDerived, error) {
	if property != GOR && property != CGR {
		return nil, casaerr.New(casaerr.ConfigError, "observable.NewTrapDerived",
			"unknown derived trap property %q (must be %s or %s)", property, GOR, CGR)
	}
	if name == "" {
		name = fmt.Sprintf("%s(%g,%g,%s,%g)", property, x, y, reservoir, age)
	}
	return &TrapDerived{
		common:    newCommon([]string{name}, property, age),
		x:         x,
		y:         y,
		reservoir: reservoir,
		logTransf: logTransform,
	}, nil
}

func (t *TrapDerived) Kind() Kind        { return TrapDerivedProperty }
func (t *TrapDerived) RawDimension() int { return len(Species) + 4 }

// LogTransform reports whether masses are stored as log10.
func (t *TrapDerived) LogTransform() bool { return t.logTransf }

func (t *TrapDerived) query(property string) model.Query {
	return model.Query{Time: t.age, X: t.x, Y: t.y, Z: model.Undefined, Property: property, Reservoir: t.reservoir}
}

func (t *TrapDerived) IsApplicable(m model.Model) bool {
	d := m.Domain()
	return d.ContainsXY(t.x, t.y) && d.ContainsAge(t.age) && m.HasReservoir(t.reservoir)
}

func (t *TrapDerived) RequestInModel(m model.Model) error {
	for _, p := range TrapDerivedProperties() {
		if err := m.RequestProperty(p); err != nil {
			return err
		}
		m.Table().Request(t.query(p), NoDataValue)
	}
	return nil
}

func (t *TrapDerived) ExtractFrom(m model.Model) (Value, error) {
	raw := noData(t.RawDimension())
	if !t.IsApplicable(m) {
		return t.NewValue(raw)
	}
	tbl := m.Table()
	for i, p := range TrapDerivedProperties() {
		if row, ok := tbl.Find(t.query(p)); ok {
			raw[i], _ = tbl.Value(row)
		}
	}
	// a missing trap reads as zero mass
	for i := 0; i < len(Species)+2; i++ {
		v := raw[i]
		if IsNoData(v) || v < zeroMass {
			v = 0
		}
		if t.logTransf {
			if v < zeroMass {
				raw[i] = zeroMassLog
			} else {
				raw[i] = math.Log10(v)
			}
		} else {
			raw[i] = v
		}
	}
	return t.NewValue(raw)
}

// NewValue wraps raw numbers and computes the derived property.
func (t *TrapDerived) NewValue(raw []float64) (Value, error) {
	if err := checkRaw(t, raw); err != nil {
		return nil, err
	}
	return NewTransformable(t, raw, []float64{t.transform(raw)}), nil
}

func (t *TrapDerived) transform(raw []float64) float64 {
	vals := slices.Clone(raw)
	for _, v := range vals {
		if IsNoData(v) {
			return NoDataValue
		}
	}
	for i := 0; i < len(Species)+2; i++ {
		if t.logTransf {
			if vals[i] <= zeroMassLog {
				vals[i] = 0
			} else {
				vals[i] = math.Pow(10, vals[i])
			}
		} else if vals[i] < 0 {
			vals[i] = 0
		}
	}
	liquid := vals[len(Species)]
	vapour := vals[len(Species)+1]
	if liquid+vapour < minPhaseMass {
		return NoDataValue
	}
	switch t.property {
	case GOR:
		if liquid <= 0 {
			return NoDataValue
		}
		return vapour / liquid
	default:
		if vapour <= 0 {
			return NoDataValue
		}
		return liquid / vapour
	}
}

func (t *TrapDerived) Equivalent(other Descriptor) bool {
	o, ok := other.(*TrapDerived)
	return ok && o.property == t.property && o.reservoir == t.reservoir && o.logTransf == t.logTransf &&
		sameFloat(o.x, t.x) && sameFloat(o.y, t.y) && sameFloat(o.age, t.age)
}

func (t *TrapDerived) Spec() Spec {
	s := Spec{
		Kind:         TrapDerivedProperty.String(),
		Name:         t.names[0],
		X:            t.x,
		Y:            t.y,
		Reservoir:    t.reservoir,
		LogTransform: t.logTransf,
	}
	t.fillSpec(&s)
	return s
}
