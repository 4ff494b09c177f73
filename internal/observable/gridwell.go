package observable

import (
	"fmt"
	"slices"

	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
	"github.com/GoSim-25-26J-441/casa-core/internal/model"
)

// GridWell is a grid property sampled along a well trajectory. It expands
// into one sub-observable per trajectory point, named <name>_1..<name>_N.
type GridWell struct {
	common
	base   string
	well   string
	xs, ys []float64
	zs     []float64
}

// NewGridWell builds a well observable. All coordinate lists must have the same length.
func NewGridWell(name, well, property string, xs, ys, zs []float64, age float64) (*GridWell, error) {
	if len(xs) == 0 || len(xs) != len(ys) || len(xs) != len(zs) {
		return nil, casaerr.New(casaerr.ConfigError, "observable.NewGridWell",
			"well %s: trajectory sizes differ (x %d, y %d, z %d)", well, len(xs), len(ys), len(zs))
	}
	if name == "" {
		name = fmt.Sprintf("%s(%s)", property, well)
	}
	names := make([]string, len(xs))
	for i := range names {
		names[i] = fmt.Sprintf("%s_%d", name, i+1)
	}
	return &GridWell{
		common: newCommon(names, property, age),
		base:   name,
		well:   well,
		xs:     slices.Clone(xs),
		ys:     slices.Clone(ys),
		zs:     slices.Clone(zs),
	}, nil
}

func (g *GridWell) Kind() Kind        { return GridPropertyWell }
func (g *GridWell) RawDimension() int { return len(g.xs) }

// Well returns the well name.
func (g *GridWell) Well() string { return g.well }

func (g *GridWell) query(i int) model.Query {
	return model.Query{Time: g.age, X: g.xs[i], Y: g.ys[i], Z: g.zs[i], Property: g.property}
}

// IsApplicable requires at least one trajectory point inside the grid.
func (g *GridWell) IsApplicable(m model.Model) bool {
	d := m.Domain()
	if !d.ContainsAge(g.age) || !m.HasProperty(g.property) {
		return false
	}
	for i := range g.xs {
		if d.Contains(g.xs[i], g.ys[i], g.zs[i]) {
			return true
		}
	}
	return false
}

func (g *GridWell) RequestInModel(m model.Model) error {
	if err := m.RequestProperty(g.property); err != nil {
		return err
	}
	for i := range g.xs {
		m.Table().Request(g.query(i), NoDataValue)
	}
	return nil
}

func (g *GridWell) ExtractFrom(m model.Model) (Value, error) {
	vals := noData(len(g.xs))
	if !g.IsApplicable(m) {
		return NewArray(g, vals), nil
	}
	d := m.Domain()
	tbl := m.Table()
	for i := range g.xs {
		if !d.Contains(g.xs[i], g.ys[i], g.zs[i]) {
			continue
		}
		if row, ok := tbl.Find(g.query(i)); ok {
			vals[i], _ = tbl.Value(row)
		}
	}
	return NewArray(g, vals), nil
}

func (g *GridWell) NewValue(raw []float64) (Value, error) {
	if err := checkRaw(g, raw); err != nil {
		return nil, err
	}
	return NewArray(g, raw), nil
}

func (g *GridWell) Equivalent(other Descriptor) bool {
	o, ok := other.(*GridWell)
	if !ok || o.property != g.property || o.well != g.well || len(o.xs) != len(g.xs) || !sameFloat(o.age, g.age) {
		return false
	}
	for i := range g.xs {
		if !sameFloat(o.xs[i], g.xs[i]) || !sameFloat(o.ys[i], g.ys[i]) || !sameFloat(o.zs[i], g.zs[i]) {
			return false
		}
	}
	return true
}

func (g *GridWell) Spec() Spec {
	s := Spec{
		Kind: GridPropertyWell.String(),
		Name: g.base,
		Well: g.well,
		Xs:   slices.Clone(g.xs),
		Ys:   slices.Clone(g.ys),
		Zs:   slices.Clone(g.zs),
	}
	g.fillSpec(&s)
	return s
}
