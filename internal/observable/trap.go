package observable

import (
	"fmt"

	"github.com/GoSim-25-26J-441/casa-core/internal/model"
)

// Trap is a property of the trap found at (x, y) in one reservoir.
type Trap struct {
	common
	x, y      float64
	reservoir string
}

// NewTrap builds a trap property observable.
func NewTrap(name, property, reservoir string, x, y, age float64) *Trap {
	if name == "" {
		name = fmt.Sprintf("%s(%g,%g,%s,%g)", property, x, y, reservoir, age)
	}
	return &Trap{common: newCommon([]string{name}, property, age), x: x, y: y, reservoir: reservoir}
}

func (t *Trap) Kind() Kind        { return TrapProperty }
func (t *Trap) RawDimension() int { return 1 }

// Reservoir returns the discriminating reservoir name.
func (t *Trap) Reservoir() string { return t.reservoir }

func (t *Trap) query() model.Query {
	return model.Query{Time: t.age, X: t.x, Y: t.y, Z: model.Undefined, Property: t.property, Reservoir: t.reservoir}
}

func (t *Trap) IsApplicable(m model.Model) bool {
	d := m.Domain()
	return d.ContainsXY(t.x, t.y) && d.ContainsAge(t.age) && m.HasReservoir(t.reservoir) && m.HasProperty(t.property)
}

func (t *Trap) RequestInModel(m model.Model) error {
	if err := m.RequestProperty(t.property); err != nil {
		return err
	}
	m.Table().Request(t.query(), NoDataValue)
	return nil
}

func (t *Trap) ExtractFrom(m model.Model) (Value, error) {
	if !t.IsApplicable(m) {
		return NewScalar(t, NoDataValue), nil
	}
	tbl := m.Table()
	i, ok := tbl.Find(t.query())
	if !ok {
		return NewScalar(t, NoDataValue), nil
	}
	v, _ := tbl.Value(i)
	return NewScalar(t, v), nil
}

func (t *Trap) NewValue(raw []float64) (Value, error) {
	if err := checkRaw(t, raw); err != nil {
		return nil, err
	}
	return NewScalar(t, raw[0]), nil
}

func (t *Trap) Equivalent(other Descriptor) bool {
	o, ok := other.(*Trap)
	return ok && o.property == t.property && o.reservoir == t.reservoir &&
		sameFloat(o.x, t.x) && sameFloat(o.y, t.y) && sameFloat(o.age, t.age)
}

func (t *Trap) Spec() Spec {
	s := Spec{Kind: TrapProperty.String(), Name: t.names[0], X: t.x, Y: t.y, Reservoir: t.reservoir}
	t.fillSpec(&s)
	return s
}
