// Package serial is the persistence boundary of the scenario state.
//
// Domain packages turn themselves into Object trees (maps, lists, numbers, strings
// and bools). Cross references, such as an observable value pointing at its
// descriptor, are written as identifiers handed out by a Registry that the caller
// shares between everything saved into one document, so references are restored
// by identity and never re-resolved by name.
package serial

import (
	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
)

// Registry maps live objects to stable identifiers and back.
// Objects are keyed by pointer identity. The zero id is never issued.
type Registry struct {
	ids  map[any]int64
	objs map[int64]any
	next int64
}

// NewRegistry returns an empty identity registry
func NewRegistry() *Registry {
	return &Registry{
		ids:  make(map[any]int64),
		objs: make(map[int64]any),
		next: 1,
	}
}

// ID returns the identifier of obj, issuing a new one on first sight.
func (r *Registry) ID(obj any) int64 {
	if id, ok := r.ids[obj]; ok {
		return id
	}
	id := r.next
	r.next++
	r.ids[obj] = id
	r.objs[id] = obj
	return id
}

// Bind associates a loaded object with the identifier it was saved under.
func (r *Registry) Bind(id int64, obj any) error {
	if id <= 0 {
		return casaerr.New(casaerr.DeserializationError, "Registry.Bind", "invalid object id %d", id)
	}
	if prev, ok := r.objs[id]; ok && prev != obj {
		return casaerr.New(casaerr.DeserializationError, "Registry.Bind", "object id %d bound twice", id)
	}
	r.objs[id] = obj
	r.ids[obj] = id
	if id >= r.next {
		r.next = id + 1
	}
	return nil
}

// Lookup returns the object bound to id.
func (r *Registry) Lookup(id int64) (any, bool) {
	obj, ok := r.objs[id]
	return obj, ok
}

// Resolve looks id up and type-asserts it.
func Resolve[T any](r *Registry, id int64) (T, error) {
	var zero T
	obj, ok := r.Lookup(id)
	if !ok {
		return zero, casaerr.New(casaerr.DeserializationError, "Registry.Resolve", "unknown object id %d", id)
	}
	t, ok := obj.(T)
	if !ok {
		return zero, casaerr.New(casaerr.DeserializationError, "Registry.Resolve",
			"object id %d has unexpected type %T", id, obj)
	}
	return t, nil
}
