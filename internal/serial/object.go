package serial

import (
	"math"

	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
)

// Object is one node of a persisted document.
type Object map[string]any

// VersionKey is the field every versioned section carries.
const VersionKey = "version"

// NewObject starts a section written with the given format version.
func NewObject(version int) Object {
	return Object{VersionKey: version}
}

// CheckVersion fails fast when a section was written by a newer writer than the reader supports.
func CheckVersion(o Object, section string, supported int) (int, error) {
	v, err := o.Int(VersionKey)
	if err != nil {
		return 0, casaerr.Wrap(casaerr.DeserializationError, "CheckVersion", err, "%s has no version", section)
	}
	if v > supported {
		return v, casaerr.New(casaerr.VersionMismatch, "CheckVersion",
			"%s was written with version %d, reader supports up to %d", section, v, supported)
	}
	return v, nil
}

func missing(key string) error {
	return casaerr.New(casaerr.DeserializationError, "Object", "missing field %q", key)
}

func wrongType(key string, v any, want string) error {
	return casaerr.New(casaerr.DeserializationError, "Object", "field %q is %T, expected %s", key, v, want)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case float64:
		if n == math.Trunc(n) {
			return int64(n), true
		}
	}
	return 0, false
}

// Has reports whether key is present.
func (o Object) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// Float reads a number.
func (o Object) Float(key string) (float64, error) {
	v, ok := o[key]
	if !ok {
		return 0, missing(key)
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, wrongType(key, v, "number")
	}
	return f, nil
}

// Int reads an integral number.
func (o Object) Int(key string) (int, error) {
	n, err := o.Int64(key)
	return int(n), err
}

// Int64 reads an integral number.
func (o Object) Int64(key string) (int64, error) {
	v, ok := o[key]
	if !ok {
		return 0, missing(key)
	}
	n, ok := toInt(v)
	if !ok {
		return 0, wrongType(key, v, "integer")
	}
	return n, nil
}

// String reads a string.
func (o Object) String(key string) (string, error) {
	v, ok := o[key]
	if !ok {
		return "", missing(key)
	}
	s, ok := v.(string)
	if !ok {
		return "", wrongType(key, v, "string")
	}
	return s, nil
}

// Bool reads a boolean.
func (o Object) Bool(key string) (bool, error) {
	v, ok := o[key]
	if !ok {
		return false, missing(key)
	}
	b, ok := v.(bool)
	if !ok {
		return false, wrongType(key, v, "bool")
	}
	return b, nil
}

func (o Object) list(key string) ([]any, error) {
	v, ok := o[key]
	if !ok {
		return nil, missing(key)
	}
	if v == nil {
		return nil, nil
	}
	l, ok := v.([]any)
	if !ok {
		return nil, wrongType(key, v, "list")
	}
	return l, nil
}

// Floats reads a list of numbers.
func (o Object) Floats(key string) ([]float64, error) {
	l, err := o.list(key)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(l))
	for i, v := range l {
		f, ok := toFloat(v)
		if !ok {
			return nil, wrongType(key, v, "number list")
		}
		out[i] = f
	}
	return out, nil
}

// Ints reads a list of integers.
func (o Object) Ints(key string) ([]int, error) {
	l, err := o.list(key)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(l))
	for i, v := range l {
		n, ok := toInt(v)
		if !ok {
			return nil, wrongType(key, v, "integer list")
		}
		out[i] = int(n)
	}
	return out, nil
}

// Strings reads a list of strings.
func (o Object) Strings(key string) ([]string, error) {
	l, err := o.list(key)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(l))
	for i, v := range l {
		s, ok := v.(string)
		if !ok {
			return nil, wrongType(key, v, "string list")
		}
		out[i] = s
	}
	return out, nil
}

func asObject(v any) (Object, bool) {
	switch m := v.(type) {
	case Object:
		return m, true
	case map[string]any:
		return Object(m), true
	}
	return nil, false
}

// Object reads a nested object.
func (o Object) Object(key string) (Object, error) {
	v, ok := o[key]
	if !ok {
		return nil, missing(key)
	}
	m, ok := asObject(v)
	if !ok {
		return nil, wrongType(key, v, "object")
	}
	return m, nil
}

// Objects reads a list of nested objects.
func (o Object) Objects(key string) ([]Object, error) {
	l, err := o.list(key)
	if err != nil {
		return nil, err
	}
	out := make([]Object, len(l))
	for i, v := range l {
		m, ok := asObject(v)
		if !ok {
			return nil, wrongType(key, v, "object list")
		}
		out[i] = m
	}
	return out, nil
}

// FloatList converts a float slice for storage in an Object.
func FloatList(vals []float64) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}

// IntList converts an int slice for storage in an Object.
func IntList(vals []int) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}

// StringList converts a string slice for storage in an Object.
func StringList(vals []string) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}

// ObjectList converts an Object slice for storage in an Object.
func ObjectList(vals []Object) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}
