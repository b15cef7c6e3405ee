package host

import (
	"fmt"
	"sync/atomic"
)

// Host type names of the built-in objects.
const (
	BoxType        = "nativeguard/Box"
	CapabilityType = "nativeguard/Capability"
)

// Object is anything the host can hold.
type Object interface {
	HostType() string
}

// Capability is an object that can produce the Box it wraps.
type Capability interface {
	Object
	Box() Object
}

// Box carries an opaque 64-bit address across the boundary.
// The address is read and erased atomically so a wrapper may be closed from a
// cleanup while another goroutine inspects it.
type Box struct {
	addr atomic.Uint64
}

// NewBox returns a box holding addr.
func NewBox(addr uint64) *Box {
	b := &Box{}
	b.addr.Store(addr)
	return b
}

// Address returns the stored address, 0 once erased.
func (b *Box) Address() uint64 {
	if b == nil {
		return 0
	}
	return b.addr.Load()
}

// Erase zeroes the address and returns the previous value.
func (b *Box) Erase() uint64 {
	if b == nil {
		return 0
	}
	return b.addr.Swap(0)
}

func (b *Box) HostType() string { return BoxType }

// Box returns b itself; a Box is its own capability.
func (b *Box) Box() Object { return b }

func (b *Box) String() string {
	return fmt.Sprintf("Box(%#x)", b.Address())
}

// TypeName returns the host-visible type name of obj. Values that are not
// host objects are named by their Go type.
func TypeName(obj any) string {
	switch o := obj.(type) {
	case nil:
		return "<nil>"
	case Object:
		return o.HostType()
	default:
		return fmt.Sprintf("%T", obj)
	}
}
