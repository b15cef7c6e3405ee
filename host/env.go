package host

import (
	"github.com/wippyai/nativeguard/errors"
)

// Env is the host environment of one goroutine.
//
// A raised fault stays pending until cleared. While a fault is pending, host
// operations refuse to run, mirroring a managed runtime with an exception in
// flight.
type Env interface {
	// Fault returns the pending fault, nil if none.
	Fault() error
	// Raise makes err pending. It does not replace an already pending fault.
	Raise(err error)
	// ClearFault returns and clears the pending fault.
	ClearFault() error
	// NewBox wraps addr in a Box.
	NewBox(addr uint64) (*Box, error)
	// Construct runs t's constructor around box.
	Construct(t *Type, box *Box) (Object, error)
}

// TypeResolver is implemented by environments that resolve host types by name.
type TypeResolver interface {
	ResolveType(name string) (*Type, error)
}

// LocalEnv is an in-process Env. It is not safe for concurrent use; give each
// goroutine its own.
type LocalEnv struct {
	Types *TypeRegistry
	fault error
}

// NewLocalEnv creates an environment resolving types from reg. A nil reg gets
// an empty registry.
func NewLocalEnv(reg *TypeRegistry) *LocalEnv {
	if reg == nil {
		reg = NewTypeRegistry()
	}
	return &LocalEnv{Types: reg}
}

func (e *LocalEnv) Fault() error { return e.fault }

func (e *LocalEnv) Raise(err error) {
	if err == nil || e.fault != nil {
		return
	}
	e.fault = err
}

func (e *LocalEnv) ClearFault() error {
	err := e.fault
	e.fault = nil
	return err
}

// ResolveType looks name up in the environment's registry.
func (e *LocalEnv) ResolveType(name string) (*Type, error) {
	if e.Types == nil {
		return nil, errors.NotFound(errors.PhaseHost, "type "+name)
	}
	return e.Types.Lookup(name)
}

func (e *LocalEnv) NewBox(addr uint64) (*Box, error) {
	if e.fault != nil {
		return nil, errors.HostFault(errors.PhaseHost, "new box", e.fault)
	}
	return NewBox(addr), nil
}

func (e *LocalEnv) Construct(t *Type, box *Box) (Object, error) {
	if e.fault != nil {
		return nil, errors.HostFault(errors.PhaseHost, "construct", e.fault)
	}
	if t == nil {
		return nil, errors.NilPointer(errors.PhaseHost, "type")
	}
	if t.New == nil {
		return nil, errors.NilPointer(errors.PhaseHost, "constructor of "+t.Name)
	}
	if box == nil {
		return nil, errors.NilPointer(errors.PhaseHost, "box")
	}
	obj, err := t.New(box)
	if err != nil {
		return nil, errors.HostFault(errors.PhaseHost, "construct "+t.Name, err)
	}
	if obj == nil {
		return nil, errors.NilPointer(errors.PhaseHost, "object from "+t.Name)
	}
	return obj, nil
}

var (
	_ Env          = (*LocalEnv)(nil)
	_ TypeResolver = (*LocalEnv)(nil)
)
