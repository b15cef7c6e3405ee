package host

import (
	"sync"

	"github.com/wippyai/nativeguard/errors"
)

// Constructor builds a host object around box.
type Constructor func(box *Box) (Object, error)

// Type describes a host object type resolvable by name.
type Type struct {
	Name string
	New  Constructor
}

// TypeRegistry resolves host types by name.
type TypeRegistry struct {
	types map[string]*Type
	mu    sync.RWMutex
}

// NewTypeRegistry creates an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{types: make(map[string]*Type)}
}

// Define registers t. Redefining a name is an error.
func (r *TypeRegistry) Define(t *Type) error {
	if t == nil || t.Name == "" {
		return errors.InvalidInput(errors.PhaseHost, "type must have a name")
	}
	if t.New == nil {
		return errors.Registration(errors.PhaseHost, t.Name, errors.NilPointer(errors.PhaseHost, "constructor"))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[t.Name]; exists {
		return errors.Registration(errors.PhaseHost, t.Name, errors.InvalidInput(errors.PhaseHost, "type already defined"))
	}
	r.types[t.Name] = t
	return nil
}

// Lookup returns the type called name.
func (r *TypeRegistry) Lookup(name string) (*Type, error) {
	r.mu.RLock()
	t, ok := r.types[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.NotFound(errors.PhaseHost, "type "+name)
	}
	return t, nil
}

// Names returns every defined type name.
func (r *TypeRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for n := range r.types {
		names = append(names, n)
	}
	return names
}
