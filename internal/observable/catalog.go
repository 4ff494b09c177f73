package observable

import (
	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
	"github.com/GoSim-25-26J-441/casa-core/internal/model"
)

// Catalog is the ordered set of observables of a scenario.
type Catalog struct {
	descs []Descriptor
	// valid[i][j] is set once sub-observable j of descriptor i produced data
	valid [][]bool
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{}
}

// Register appends d and returns its index.
func (c *Catalog) Register(d Descriptor) (int, error) {
	for _, e := range c.descs {
		if e.Equivalent(d) {
			return -1, casaerr.New(casaerr.AlreadyDefined, "Catalog.Register",
				"observable %s already defined", d.Names()[0])
		}
	}
	c.descs = append(c.descs, d)
	c.valid = append(c.valid, make([]bool, d.Dimension()))
	return len(c.descs) - 1, nil
}

// Len is the number of descriptors.
func (c *Catalog) Len() int { return len(c.descs) }

// Descriptor returns the i-th descriptor.
func (c *Catalog) Descriptor(i int) Descriptor { return c.descs[i] }

// Descriptors returns the descriptors in registration order.
func (c *Catalog) Descriptors() []Descriptor {
	out := make([]Descriptor, len(c.descs))
	copy(out, c.descs)
	return out
}

// IndexOf returns the position of d, or -1.
func (c *Catalog) IndexOf(d Descriptor) int {
	for i, e := range c.descs {
		if e == d {
			return i
		}
	}
	return -1
}

// Dimension is the total number of reported sub-observables.
func (c *Catalog) Dimension() int {
	n := 0
	for _, d := range c.descs {
		n += d.Dimension()
	}
	return n
}

// RequestInModel asks m to produce every observable. The first model error is
// returned unchanged.
func (c *Catalog) RequestInModel(m model.Model) error {
	for _, d := range c.descs {
		if err := d.RequestInModel(m); err != nil {
			return err
		}
	}
	return nil
}

// ExtractFrom reads one value per descriptor from a completed run.
func (c *Catalog) ExtractFrom(m model.Model) ([]Value, error) {
	out := make([]Value, 0, len(c.descs))
	for _, d := range c.descs {
		v, err := d.ExtractFrom(m)
		if err != nil {
			return nil, casaerr.Wrap(casaerr.CodeOf(err), "Catalog.ExtractFrom", err, "observable %s", d.Names()[0])
		}
		out = append(out, v)
	}
	return out, nil
}

// MarkValid records which sub-observables of v carry data.
func (c *Catalog) MarkValid(v Value) {
	i := c.IndexOf(v.Descriptor())
	if i < 0 {
		return
	}
	for j, x := range v.Reported() {
		if j < len(c.valid[i]) && !IsNoData(x) {
			c.valid[i][j] = true
		}
	}
}

// IsValid reports whether sub-observable sub of descriptor i produced data
// for at least one case seen by MarkValid.
func (c *Catalog) IsValid(i, sub int) bool {
	if i < 0 || i >= len(c.valid) || sub < 0 || sub >= len(c.valid[i]) {
		return false
	}
	return c.valid[i][sub]
}
