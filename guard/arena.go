package guard

import (
	stderrors "errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/nativeguard/errors"
)

var ErrClosed = stderrors.New("guard: arena closed")

// Config holds arena configuration.
type Config struct {
	// InitialSlots preallocates slot storage. 0 means 64.
	InitialSlots int
}

// Arena maps opaque addresses to guarded handles.
//
// The arena itself is safe for concurrent use so handles can be created and
// released from many goroutines. Each handle is still single-owner.
type Arena struct {
	entries   []slot
	freeList  []uint32
	observers []subscription
	nextSub   int
	mu        sync.Mutex
	obsMu     sync.RWMutex
	closed    bool
}

type slot struct {
	handle Guarded
	gen    uint32
}

type subscription struct {
	o  Observer
	id int
}

// NewArena creates an empty arena.
func NewArena(cfg *Config) *Arena {
	n := 64
	if cfg != nil && cfg.InitialSlots > 0 {
		n = cfg.InitialSlots
	}
	return &Arena{
		entries:  make([]slot, 0, n),
		freeList: make([]uint32, 0, n/4),
	}
}

// Register stores a live handle and returns its address.
func (a *Arena) Register(h Guarded) (Address, error) {
	if h == nil {
		return Null, errors.NilPointer(errors.PhaseConstruct, "handle")
	}
	if err := h.verify(); err != nil {
		return Null, err
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return Null, ErrClosed
	}

	var addr Address
	if n := len(a.freeList); n > 0 {
		idx := a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
		a.entries[idx].handle = h
		addr = makeAddress(idx, a.entries[idx].gen)
	} else {
		a.entries = append(a.entries, slot{handle: h})
		addr = makeAddress(uint32(len(a.entries)-1), 0)
	}
	a.mu.Unlock()

	a.notify(Event{
		Type:      EventRegistered,
		Address:   addr,
		LeakIndex: h.LeakIndex(),
	})
	return addr, nil
}

// Resolve returns the live handle at addr.
//
// The null address yields a not-found error. Any other address must have been
// produced by this arena and still be live: out-of-range, stale or corrupted
// addresses are contract violations and panic.
func (a *Arena) Resolve(addr Address) (Guarded, error) {
	if addr == Null {
		return nil, errors.NotFound(errors.PhaseResolve, "handle for null address")
	}

	a.mu.Lock()
	h, reason := a.lookupLocked(addr)
	a.mu.Unlock()

	if reason != "" {
		fatal(errors.Corrupted(errors.PhaseResolve, uint64(addr), reason))
	}
	if err := h.verify(); err != nil {
		fatal(errors.Corrupted(errors.PhaseResolve, uint64(addr), "handle released outside the arena"))
	}
	return h, nil
}

// Lookup resolves addr and asserts the handle wraps a T.
func Lookup[T any](a *Arena, addr Address) (*Handle[T], error) {
	g, err := a.Resolve(addr)
	if err != nil {
		return nil, err
	}
	h, ok := g.(*Handle[T])
	if !ok {
		return nil, errors.New(errors.PhaseResolve, errors.KindTypeMismatch).
			Expected(typeName[T]()).
			Actual(fmt.Sprintf("%T", g)).
			Value(uint64(addr)).
			Build()
	}
	return h, nil
}

// Release releases the handle at addr and frees its slot.
//
// The null address and stale addresses (already released) are no-ops that
// return StatusNull. Addresses this arena never produced panic.
func (a *Arena) Release(addr Address, code Code) Status {
	if addr == Null {
		return StatusNull
	}

	a.mu.Lock()
	idx, gen, ok := addr.split()
	if !ok || int(idx) >= len(a.entries) {
		a.mu.Unlock()
		fatal(errors.Corrupted(errors.PhaseRelease, uint64(addr), "not an arena address"))
	}
	e := &a.entries[idx]
	if e.gen != gen || e.handle == nil {
		a.mu.Unlock()
		Logger().Debug("release of stale address ignored",
			zap.Stringer("addr", addr),
			zap.Int32("code", int32(code)))
		return StatusNull
	}
	h := e.handle
	a.freeLocked(idx)
	a.mu.Unlock()

	status := h.Release(code)

	a.notify(Event{
		Type:      EventReleased,
		Address:   addr,
		LeakIndex: h.LeakIndex(),
		Code:      code,
		Status:    status,
	})
	return status
}

// Len returns the number of live handles.
func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries) - len(a.freeList)
}

// Each iterates over live handles. Handles must not be released from fn.
func (a *Arena) Each(fn func(Address, Guarded) bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i, e := range a.entries {
		if e.handle == nil {
			continue
		}
		if !fn(makeAddress(uint32(i), e.gen), e.handle) {
			break
		}
	}
}

// Subscribe adds an observer for lifecycle events and returns a function
// that removes it.
func (a *Arena) Subscribe(o Observer) func() {
	a.obsMu.Lock()
	defer a.obsMu.Unlock()
	a.nextSub++
	id := a.nextSub
	a.observers = append(a.observers, subscription{o: o, id: id})

	return func() {
		a.obsMu.Lock()
		defer a.obsMu.Unlock()
		for i, s := range a.observers {
			if s.id == id {
				a.observers = append(a.observers[:i], a.observers[i+1:]...)
				return
			}
		}
	}
}

// Close releases every live handle and stops accepting registrations.
func (a *Arena) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true

	type pending struct {
		h    Guarded
		addr Address
	}
	var live []pending
	for i := range a.entries {
		if a.entries[i].handle != nil {
			live = append(live, pending{h: a.entries[i].handle, addr: makeAddress(uint32(i), a.entries[i].gen)})
			a.freeLocked(uint32(i))
		}
	}
	a.mu.Unlock()

	for _, p := range live {
		status := p.h.Release(CodeArenaClose)
		Logger().Warn("handle still live at arena close",
			zap.Stringer("addr", p.addr),
			zap.Int32("leakIndex", p.h.LeakIndex()))
		a.notify(Event{
			Type:      EventReleased,
			Address:   p.addr,
			LeakIndex: p.h.LeakIndex(),
			Code:      CodeArenaClose,
			Status:    status,
		})
	}
	return nil
}

// lookupLocked returns the handle at addr or a non-empty reason it cannot be used.
func (a *Arena) lookupLocked(addr Address) (Guarded, string) {
	idx, gen, ok := addr.split()
	if !ok || int(idx) >= len(a.entries) {
		return nil, "not an arena address"
	}
	e := a.entries[idx]
	if e.handle == nil || e.gen != gen {
		return nil, "stale address"
	}
	return e.handle, ""
}

func (a *Arena) freeLocked(idx uint32) {
	a.entries[idx].handle = nil
	a.entries[idx].gen++
	a.freeList = append(a.freeList, idx)
}

func (a *Arena) notify(e Event) {
	a.obsMu.RLock()
	defer a.obsMu.RUnlock()
	for _, s := range a.observers {
		s.o.OnHandleEvent(e)
	}
}
