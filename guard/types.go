package guard

import "fmt"

// Address is the opaque integer handed to the host for a registered handle.
// The low 32 bits hold the arena slot plus one, the high 32 bits the slot
// generation. Address 0 is reserved and always null.
type Address uint64

// Null is the address that never refers to a handle.
const Null Address = 0

func makeAddress(slot, gen uint32) Address {
	return Address(uint64(gen)<<32 | uint64(slot+1))
}

// split returns the slot index and generation. ok is false when the low word is zero.
func (a Address) split() (slot, gen uint32, ok bool) {
	low := uint32(a)
	if low == 0 {
		return 0, 0, false
	}
	return low - 1, uint32(uint64(a) >> 32), true
}

func (a Address) String() string {
	return fmt.Sprintf("%#x", uint64(a))
}

// Status is the result of a release.
type Status int32

const (
	StatusOK   Status = 0
	StatusNull Status = -1
)

// Code is the diagnostic code passed to release. The core only logs it.
type Code int32

const (
	CodeBoundaryFailure Code = 3
	CodeExplicit        Code = 52
	CodeLost            Code = 53
	CodeArenaClose      Code = 54
)

// State of a guarded handle.
type State uint8

const (
	StateLive State = iota
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateLive:
		return "live"
	case StateReleased:
		return "released"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// EventType identifies arena lifecycle notifications.
type EventType uint8

const (
	EventRegistered EventType = iota
	EventReleased
)

// Event represents a handle lifecycle event.
type Event struct {
	Address   Address
	LeakIndex int32
	Code      Code
	Status    Status
	Type      EventType
}

// Observer receives notifications about handle lifecycle events.
type Observer interface {
	OnHandleEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnHandleEvent(e Event) { f(e) }

// Guarded is implemented by *Handle[T] for every T. The unexported verify
// method keeps other implementations out of the arena.
type Guarded interface {
	LeakIndex() int32
	State() State
	Release(code Code) Status
	verify() error
}
