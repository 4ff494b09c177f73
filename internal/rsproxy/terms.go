package rsproxy

import (
	"slices"
	"strconv"
	"strings"

	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
	"github.com/GoSim-25-26J-441/casa-core/internal/observable"
	"github.com/GoSim-25-26J-441/casa-core/internal/runcase"
	"github.com/GoSim-25-26J-441/casa-core/internal/varspace"
	"github.com/GoSim-25-26J-441/casa-core/pkg/utils"
)

// Coefficients maps a polynomial term to its coefficient. The key lists the
// sorted coordinate indices contributing to the term, comma separated: "0,1"
// is x0*x1, "2,2" is x2 squared and "" is the constant.
type Coefficients map[string]float64

// TermKey builds the key of the product of the given coordinates.
func TermKey(idx ...int) string {
	s := slices.Clone(idx)
	slices.Sort(s)
	parts := make([]string, len(s))
	for i, v := range s {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// ParseTermKey is the inverse of TermKey.
func ParseTermKey(key string) ([]int, error) {
	if key == "" {
		return nil, nil
	}
	parts := strings.Split(key, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return nil, casaerr.New(casaerr.DeserializationError, "rsproxy.ParseTermKey", "bad term key %q", key)
		}
		out[i] = n
	}
	return out, nil
}

type term struct {
	idx  []int
	coef float64
}

// polynomial is a parsed coefficient map.
type polynomial []term

func compile(c Coefficients, dim int) (polynomial, error) {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make(polynomial, 0, len(c))
	for _, k := range keys {
		idx, err := ParseTermKey(k)
		if err != nil {
			return nil, err
		}
		for _, i := range idx {
			if i >= dim {
				return nil, casaerr.New(casaerr.OutOfRange, "rsproxy.compile",
					"term %q uses coordinate %d, proxy has %d", k, i, dim)
			}
		}
		out = append(out, term{idx: idx, coef: c[k]})
	}
	return out, nil
}

func (p polynomial) empty() bool { return len(p) == 0 }

func (p polynomial) eval(x []float64) float64 {
	sum := 0.0
	for _, t := range p {
		v := t.coef
		for _, i := range t.idx {
			v *= x[i]
		}
		sum += v
	}
	return sum
}

// Dimension is the length of the coordinate vector of space.
func Dimension(space *varspace.Space) int {
	n := 0
	for _, p := range space.Parameters() {
		n += p.Dimension()
	}
	return n
}

// Coordinates returns the normalized parameter vector of c in space order.
// Continuous sub-parameters map [min,max] onto [-1,1]; categorical and
// discrete parameters map their first and last index the same way.
func Coordinates(space *varspace.Space, c *runcase.Case) ([]float64, error) {
	out := make([]float64, 0, Dimension(space))
	for _, p := range space.Parameters() {
		v, ok := c.ParameterFor(p)
		if !ok {
			return nil, casaerr.New(casaerr.UndefinedValue, "rsproxy.Coordinates",
				"case has no value for parameter %s", p.Name())
		}
		switch t := v.(type) {
		case *varspace.ContinuousValue:
			out = append(out, t.Normalized()...)
		case *varspace.CategoricalValue:
			n := p.(*varspace.CategoricalParameter).Count()
			out = append(out, utils.Normalize(float64(t.Index()), 0, float64(n-1)))
		case *varspace.DiscreteValue:
			lv := p.(*varspace.DiscreteParameter).Levels()
			out = append(out, utils.Normalize(t.Level(), lv[0], lv[len(lv)-1]))
		default:
			return nil, casaerr.New(casaerr.NotImplemented, "rsproxy.Coordinates",
				"parameter %s has unsupported value type %T", p.Name(), v)
		}
	}
	return out, nil
}

// responses returns the raw values of every descriptor of catalog for c,
// flattened. Descriptors without a value are no-data.
func responses(catalog *observable.Catalog, c *runcase.Case) []float64 {
	out := make([]float64, 0, rawDimension(catalog))
	for _, d := range catalog.Descriptors() {
		v, ok := c.ValueFor(d)
		if !ok {
			for range d.RawDimension() {
				out = append(out, observable.NoDataValue)
			}
			continue
		}
		out = append(out, v.Raw()...)
	}
	return out
}

func rawDimension(catalog *observable.Catalog) int {
	n := 0
	for _, d := range catalog.Descriptors() {
		n += d.RawDimension()
	}
	return n
}
