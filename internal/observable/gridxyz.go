package observable

import (
	"fmt"

	"github.com/GoSim-25-26J-441/casa-core/internal/model"
)

// GridXYZ is a grid property read at one point and one age.
type GridXYZ struct {
	common
	x, y, z float64
}

// NewGridXYZ builds a point observable. An empty name is derived from the locator.
func NewGridXYZ(name, property string, x, y, z, age float64) *GridXYZ {
	if name == "" {
		name = fmt.Sprintf("%s(%g,%g,%g,%g)", property, x, y, z, age)
	}
	return &GridXYZ{common: newCommon([]string{name}, property, age), x: x, y: y, z: z}
}

func (g *GridXYZ) Kind() Kind        { return GridPropertyXYZ }
func (g *GridXYZ) RawDimension() int { return 1 }

func (g *GridXYZ) query() model.Query {
	return model.Query{Time: g.age, X: g.x, Y: g.y, Z: g.z, Property: g.property}
}

func (g *GridXYZ) IsApplicable(m model.Model) bool {
	d := m.Domain()
	return d.Contains(g.x, g.y, g.z) && d.ContainsAge(g.age) && m.HasProperty(g.property)
}

func (g *GridXYZ) RequestInModel(m model.Model) error {
	if err := m.RequestProperty(g.property); err != nil {
		return err
	}
	m.Table().Request(g.query(), NoDataValue)
	return nil
}

func (g *GridXYZ) ExtractFrom(m model.Model) (Value, error) {
	if !g.IsApplicable(m) {
		return NewScalar(g, NoDataValue), nil
	}
	tbl := m.Table()
	i, ok := tbl.Find(g.query())
	if !ok {
		return NewScalar(g, NoDataValue), nil
	}
	v, _ := tbl.Value(i)
	return NewScalar(g, v), nil
}

func (g *GridXYZ) NewValue(raw []float64) (Value, error) {
	if err := checkRaw(g, raw); err != nil {
		return nil, err
	}
	return NewScalar(g, raw[0]), nil
}

func (g *GridXYZ) Equivalent(other Descriptor) bool {
	o, ok := other.(*GridXYZ)
	return ok && o.property == g.property && sameFloat(o.x, g.x) && sameFloat(o.y, g.y) &&
		sameFloat(o.z, g.z) && sameFloat(o.age, g.age)
}

func (g *GridXYZ) Spec() Spec {
	s := Spec{Kind: GridPropertyXYZ.String(), Name: g.names[0], X: g.x, Y: g.y, Z: g.z}
	g.fillSpec(&s)
	return s
}
