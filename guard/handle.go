package guard

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/nativeguard/errors"
)

// Marker pairs written at the head and tail of every handle.
const (
	liveHeader uint64 = 0xFEEDBEEF
	liveFooter uint64 = 0xBEEFC0DE
	deadHeader uint64 = 0xDEADC0DE
	deadFooter uint64 = 0xDEADBEEF
)

// Handle binds a native resource to its release function and a leak index.
//
// A handle is single-owner: it is not safe for concurrent use and must be
// reachable from exactly one managed object. The header and footer markers
// stay live until Release begins and are dead afterwards.
type Handle[T any] struct {
	header    uint64
	leakIndex int32
	owned     bool
	resource  T
	release   func(T)
	footer    uint64
}

// New wraps resource. It panics if release is nil.
func New[T any](leakIndex int32, resource T, release func(T)) *Handle[T] {
	h := NewEmpty(leakIndex, release)
	h.resource = resource
	h.owned = true
	return h
}

// NewEmpty creates a live handle whose resource is attached later.
// It panics if release is nil.
func NewEmpty[T any](leakIndex int32, release func(T)) *Handle[T] {
	if release == nil {
		fatal(errors.NilPointer(errors.PhaseConstruct, "release function"))
	}
	return &Handle[T]{
		header:    liveHeader,
		leakIndex: leakIndex,
		release:   release,
		footer:    liveFooter,
	}
}

// LeakIndex returns the index supplied at construction.
func (h *Handle[T]) LeakIndex() int32 {
	return h.leakIndex
}

// Attach stores resource in an empty live handle.
func (h *Handle[T]) Attach(resource T) error {
	if err := h.verify(); err != nil {
		return err
	}
	if h.owned {
		return errors.InvalidInput(errors.PhaseConstruct, "handle already owns a resource")
	}
	h.resource = resource
	h.owned = true
	return nil
}

// Resource returns the owned resource. ok is false when the slot is empty
// or the handle has been released.
func (h *Handle[T]) Resource() (resource T, ok bool) {
	if h.verify() != nil || !h.owned {
		return resource, false
	}
	return h.resource, true
}

// State reports whether the handle is live or released.
func (h *Handle[T]) State() State {
	if h.released() {
		return StateReleased
	}
	h.mustBeIntact()
	return StateLive
}

// Release invokes the release function at most once and poisons the markers.
// A nil or already released handle is a no-op returning StatusNull.
// The code is only used for diagnostics.
func (h *Handle[T]) Release(code Code) Status {
	if h == nil {
		return StatusNull
	}
	if h.released() {
		Logger().Debug("release of released handle ignored",
			zap.Int32("leakIndex", h.leakIndex),
			zap.Int32("code", int32(code)))
		return StatusNull
	}
	h.mustBeIntact()

	if h.owned {
		resource := h.resource
		var zero T
		h.resource = zero
		h.owned = false
		h.release(resource)
	}

	h.header = deadHeader
	h.footer = deadFooter
	h.release = nil

	Logger().Debug("handle released",
		zap.Int32("leakIndex", h.leakIndex),
		zap.Int32("code", int32(code)))
	return StatusOK
}

func (h *Handle[T]) released() bool {
	return h.header == deadHeader && h.footer == deadFooter
}

// verify returns nil for a live handle and a released error for a dead one.
// Any other marker pair is corruption and panics.
func (h *Handle[T]) verify() error {
	if h == nil {
		return errors.NilPointer(errors.PhaseResolve, "handle")
	}
	if h.released() {
		return errors.Released(errors.PhaseResolve, "handle")
	}
	h.mustBeIntact()
	return nil
}

func (h *Handle[T]) mustBeIntact() {
	if h.header != liveHeader || h.footer != liveFooter {
		fatal(errors.New(errors.PhaseResolve, errors.KindCorrupted).
			Detail("markers %#x/%#x (leak index %d)", h.header, h.footer, h.leakIndex).
			Build())
	}
}

func typeName[T any]() string {
	return fmt.Sprintf("%T", (*Handle[T])(nil))
}

// fatal reports a contract violation. These are never returned as errors.
func fatal(err *errors.Error) {
	Logger().Error("guard contract violation", zap.Error(err))
	panic(err)
}

// IsFatal reports whether a recovered panic value came from a guard contract violation.
func IsFatal(recovered any) bool {
	err, ok := recovered.(*errors.Error)
	if !ok {
		return false
	}
	return err.Kind == errors.KindCorrupted || err.Kind == errors.KindNilPointer
}
