package bridge

import (
	"go.uber.org/zap"

	"github.com/wippyai/nativeguard/errors"
	"github.com/wippyai/nativeguard/guard"
	"github.com/wippyai/nativeguard/host"
)

const (
	boxContext        = "address extraction"
	capabilityContext = "box extraction"
)

// BuildObject produces the host object for the handle at addr.
//
// Steps: validate the host type and its constructor (resolving it by name when
// the Env is a host.TypeResolver), wrap addr in a box,
// construct the object around the box. Each step is gated on the previous
// result and on the Env fault state. On failure the handle is released with
// CodeBoundaryFailure and no object is returned.
func BuildObject(env host.Env, t *host.Type, arena *guard.Arena, addr guard.Address) (host.Object, error) {
	var err error
	switch {
	case t == nil:
		err = errors.NilPointer(errors.PhaseHost, "host type")
	case t.New == nil:
		err = errors.NilPointer(errors.PhaseHost, "constructor of "+t.Name)
	default:
		err = resolveType(env, t)
	}
	if FailAndRelease(env, err, arena, addr) {
		return nil, abortError(env, err, "validate type")
	}

	box, err := WrapAddress(env, addr)
	if err == nil && box == nil {
		err = errors.NilPointer(errors.PhaseMarshal, "box")
	}
	if FailAndRelease(env, err, arena, addr) {
		return nil, abortError(env, err, "wrap address")
	}

	obj, err := env.Construct(t, box)
	if err == nil && obj == nil {
		err = errors.NilPointer(errors.PhaseHost, "object from "+t.Name)
	}
	if FailAndRelease(env, err, arena, addr) {
		box.Erase()
		return nil, abortError(env, err, "construct")
	}

	Logger().Debug("host object built",
		zap.Stringer("addr", addr),
		zap.String("type", t.Name))
	return obj, nil
}

// resolveType checks the Env knows t under its name and that the name is not
// bound to a different definition.
func resolveType(env host.Env, t *host.Type) error {
	r, ok := env.(host.TypeResolver)
	if !ok {
		return nil
	}
	got, err := r.ResolveType(t.Name)
	if err != nil {
		return errors.New(errors.PhaseHost, errors.KindNotFound).
			Path("types", t.Name).
			Detail("host type %s is not resolvable", t.Name).
			Cause(err).
			Build()
	}
	if got != t {
		return errors.New(errors.PhaseHost, errors.KindTypeMismatch).
			Path("types", t.Name).
			Detail("host type %s resolves to a different definition", t.Name).
			Build()
	}
	return nil
}

// FailAndRelease releases the handle at addr when err is non-nil or the Env
// has a pending fault, and reports whether the caller must abort.
//
// The error is raised on the Env unless a fault is already pending. The handle
// index stays open in any leak counter, so the failure shows up as a leak.
func FailAndRelease(env host.Env, err error, arena *guard.Arena, addr guard.Address) bool {
	pending := env.Fault()
	if err == nil && pending == nil {
		return false
	}

	if arena != nil && addr != guard.Null {
		status := arena.Release(addr, guard.CodeBoundaryFailure)
		Logger().Warn("boundary failure, handle released",
			zap.Stringer("addr", addr),
			zap.Int32("status", int32(status)),
			zap.NamedError("cause", err),
			zap.NamedError("pending", pending))
	}

	if pending == nil {
		env.Raise(err)
	}
	return true
}

// WrapAddress boxes addr for the host.
func WrapAddress(env host.Env, addr guard.Address) (*host.Box, error) {
	if err := env.Fault(); err != nil {
		return nil, errors.HostFault(errors.PhaseMarshal, "wrap address", err)
	}
	box, err := env.NewBox(uint64(addr))
	if err != nil {
		return nil, raise(env, errors.HostFault(errors.PhaseMarshal, "wrap address", err))
	}
	return box, nil
}

// AddressFromBox returns the address carried by obj, which must be a *host.Box.
func AddressFromBox(env host.Env, obj any) (guard.Address, error) {
	if err := env.Fault(); err != nil {
		return guard.Null, errors.HostFault(errors.PhaseMarshal, boxContext, err)
	}
	if obj == nil {
		return guard.Null, raise(env, errors.NotFound(errors.PhaseMarshal, "box"))
	}
	box, ok := obj.(*host.Box)
	if !ok {
		return guard.Null, raise(env, errors.ClassCast(errors.PhaseMarshal, boxContext, host.BoxType, host.TypeName(obj)))
	}
	if box == nil {
		return guard.Null, raise(env, errors.NotFound(errors.PhaseMarshal, "box"))
	}
	return guard.Address(box.Address()), nil
}

// BoxFromCapability asks obj for its box and checks the result is a *host.Box.
func BoxFromCapability(env host.Env, obj any) (*host.Box, error) {
	if err := env.Fault(); err != nil {
		return nil, errors.HostFault(errors.PhaseMarshal, capabilityContext, err)
	}
	if obj == nil {
		return nil, raise(env, errors.NotFound(errors.PhaseMarshal, "capability"))
	}
	c, ok := obj.(host.Capability)
	if !ok {
		return nil, raise(env, errors.ClassCast(errors.PhaseMarshal, capabilityContext, host.CapabilityType, host.TypeName(obj)))
	}

	inner := c.Box()
	if inner == nil {
		return nil, raise(env, errors.NotFound(errors.PhaseMarshal, "box of "+host.TypeName(obj)))
	}
	box, ok := inner.(*host.Box)
	if !ok {
		return nil, raise(env, errors.ClassCast(errors.PhaseMarshal, capabilityContext, host.BoxType, host.TypeName(inner)))
	}
	if box == nil {
		return nil, raise(env, errors.NotFound(errors.PhaseMarshal, "box of "+host.TypeName(obj)))
	}
	return box, nil
}

// Resolve extracts the address from box and returns the typed handle.
// A null address yields a not-found error. Corrupt or stale addresses panic.
func Resolve[T any](env host.Env, arena *guard.Arena, box any) (*guard.Handle[T], error) {
	addr, err := AddressFromBox(env, box)
	if err != nil {
		return nil, err
	}
	if addr == guard.Null {
		return nil, raise(env, errors.NotFound(errors.PhaseResolve, "handle (box erased)"))
	}
	h, err := guard.Lookup[T](arena, addr)
	if err != nil {
		return nil, raise(env, err)
	}
	return h, nil
}

// ResolveCapability resolves the handle behind a capability object.
func ResolveCapability[T any](env host.Env, arena *guard.Arena, obj any) (*guard.Handle[T], error) {
	box, err := BoxFromCapability(env, obj)
	if err != nil {
		return nil, err
	}
	return Resolve[T](env, arena, box)
}

// raise makes err pending on env unless something already is, and returns it.
func raise(env host.Env, err error) error {
	if env.Fault() == nil {
		env.Raise(err)
	}
	return err
}

// abortError picks the error BuildObject returns after an aborted step.
func abortError(env host.Env, err error, step string) error {
	if err != nil {
		return err
	}
	return errors.HostFault(errors.PhaseHost, step, env.Fault())
}
