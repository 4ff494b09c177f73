package observable

import (
	"fmt"
	"slices"
)

// ValueKind tags the value families.
type ValueKind int

const (
	ScalarKind ValueKind = iota
	ArrayKind
	TransformableKind
)

func (k ValueKind) String() string {
	switch k {
	case ScalarKind:
		return "Scalar"
	case ArrayKind:
		return "Array"
	case TransformableKind:
		return "Transformable"
	default:
		return fmt.Sprintf("ValueKind(%d)", int(k))
	}
}

// Value is one case's result for one descriptor. It refers to its descriptor
// but never owns it.
type Value interface {
	Descriptor() Descriptor
	Kind() ValueKind
	// Raw is the untransformed content.
	Raw() []float64
	// Reported is the content compared against the reference, one number
	// per sub-observable.
	Reported() []float64
}

// Scalar holds a single number.
type Scalar struct {
	desc Descriptor
	v    float64
}

// NewScalar builds a scalar value for d.
func NewScalar(d Descriptor, v float64) *Scalar { return &Scalar{desc: d, v: v} }

func (s *Scalar) Descriptor() Descriptor { return s.desc }
func (s *Scalar) Kind() ValueKind        { return ScalarKind }
func (s *Scalar) Raw() []float64         { return []float64{s.v} }
func (s *Scalar) Reported() []float64    { return []float64{s.v} }

// Value returns the number.
func (s *Scalar) Value() float64 { return s.v }

// Array holds a fixed-length vector, one entry per sub-observable.
type Array struct {
	desc Descriptor
	vals []float64
}

// NewArray builds an array value for d.
func NewArray(d Descriptor, vals []float64) *Array {
	return &Array{desc: d, vals: slices.Clone(vals)}
}

func (a *Array) Descriptor() Descriptor { return a.desc }
func (a *Array) Kind() ValueKind        { return ArrayKind }
func (a *Array) Raw() []float64         { return slices.Clone(a.vals) }
func (a *Array) Reported() []float64    { return slices.Clone(a.vals) }

// Transformable keeps the raw extraction next to the derived result.
type Transformable struct {
	desc     Descriptor
	raw      []float64
	reported []float64
}

// NewTransformable builds a transformable value; reported is computed by the caller.
func NewTransformable(d Descriptor, raw, reported []float64) *Transformable {
	return &Transformable{desc: d, raw: slices.Clone(raw), reported: slices.Clone(reported)}
}

func (t *Transformable) Descriptor() Descriptor { return t.desc }
func (t *Transformable) Kind() ValueKind        { return TransformableKind }
func (t *Transformable) Raw() []float64         { return slices.Clone(t.raw) }
func (t *Transformable) Reported() []float64    { return slices.Clone(t.reported) }

// HasData reports whether any reported entry differs from the no-data sentinel.
func HasData(v Value) bool {
	for _, x := range v.Reported() {
		if !IsNoData(x) {
			return true
		}
	}
	return false
}
