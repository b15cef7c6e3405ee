package msgctx

import (
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/nativeguard"
	"github.com/wippyai/nativeguard/bridge"
	"github.com/wippyai/nativeguard/errors"
	"github.com/wippyai/nativeguard/guard"
	"github.com/wippyai/nativeguard/host"
	"github.com/wippyai/nativeguard/leak"
)

// TypeName is the host type of Context.
const TypeName = "nativeguard/msgctx.Context"

// Config holds binding configuration.
type Config struct {
	// Heap backs the message buffers. Required.
	Heap nativeguard.Heap
	// Arena registers the handles. Required.
	Arena *guard.Arena
	// Types, when set, gets the Context type defined in it.
	Types *host.TypeRegistry
	// Counter tracks contexts opened with Open. Nil disables tracking.
	Counter *leak.Counter
}

// Binding exposes messages to the host.
type Binding struct {
	heap    nativeguard.Heap
	arena   *guard.Arena
	counter *leak.Counter
	types   *host.TypeRegistry
	typ     *host.Type

	mu   sync.Mutex
	open map[*host.Box]*state
}

// NewBinding creates a binding.
func NewBinding(cfg Config) (*Binding, error) {
	if cfg.Heap == nil {
		return nil, errors.NilPointer(errors.PhaseConstruct, "heap")
	}
	if cfg.Arena == nil {
		return nil, errors.NilPointer(errors.PhaseConstruct, "arena")
	}

	b := &Binding{
		heap:    cfg.Heap,
		arena:   cfg.Arena,
		counter: cfg.Counter,
		types:   cfg.Types,
		open:    make(map[*host.Box]*state),
	}
	b.typ = &host.Type{
		Name: TypeName,
		New: func(box *host.Box) (host.Object, error) {
			return &Context{binding: b, box: box, state: &state{}}, nil
		},
	}
	if b.types == nil {
		b.types = host.NewTypeRegistry()
	}
	if err := b.types.Define(b.typ); err != nil {
		return nil, err
	}
	return b, nil
}

// Type returns the host type of the objects Create produces.
func (b *Binding) Type() *host.Type { return b.typ }

// Arena returns the arena handles are registered in.
func (b *Binding) Arena() *guard.Arena { return b.arena }

// Types returns the registry the binding's type is defined in.
func (b *Binding) Types() *host.TypeRegistry { return b.types }

// Counter returns the leak counter, possibly nil.
func (b *Binding) Counter() *leak.Counter { return b.counter }

// Allocate creates a message, wraps it in a guarded handle tagged with
// leakIndex and registers it. If registration fails the buffer is freed
// directly.
func (b *Binding) Allocate(leakIndex int32) (guard.Address, error) {
	block, err := b.heap.Alloc(MessageLen)
	if err != nil {
		return guard.Null, err
	}
	copy(block.Data, Greeting)
	msg := &Message{Magic: Magic, block: block}

	h := guard.New(leakIndex, msg, b.free)
	addr, err := b.arena.Register(h)
	if err != nil {
		return guard.Null, multierr.Append(err, b.heap.Free(block))
	}
	return addr, nil
}

// free is the release function of every message handle.
func (b *Binding) free(m *Message) {
	m.Magic = 0
	if err := b.heap.Free(m.block); err != nil {
		Logger().Error("free message buffer", zap.Error(err))
	}
	m.block = nativeguard.Block{}
}

// Create allocates a message and builds its host object.
func (b *Binding) Create(env host.Env, leakIndex int32) (host.Object, error) {
	if err := env.Fault(); err != nil {
		return nil, errors.HostFault(errors.PhaseHost, "create", err)
	}
	addr, err := b.Allocate(leakIndex)
	if err != nil {
		env.Raise(err)
		return nil, err
	}
	return bridge.BuildObject(env, b.typ, b.arena, addr)
}

// Execute returns the message text of obj.
func (b *Binding) Execute(env host.Env, obj any) (string, error) {
	msg, err := b.resolve(env, obj)
	if err != nil {
		return "", err
	}
	return msg.Text(), nil
}

// Read returns a copy of the whole buffer of obj.
func (b *Binding) Read(env host.Env, obj any) ([]byte, error) {
	msg, err := b.resolve(env, obj)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), msg.Bytes()...), nil
}

// Release releases the handle behind obj, a context or its box.
// The box is erased first so releasing the same object again returns
// StatusNull without reaching the arena. Contexts of this binding, reached
// directly or through the box of an open tracked context, are closed.
func (b *Binding) Release(env host.Env, obj any) guard.Status {
	if obj == nil {
		return guard.StatusNull
	}
	if c, ok := obj.(*Context); ok && c != nil && c.binding == b {
		return b.close(c.box, c.state)
	}
	box, err := bridge.BoxFromCapability(env, obj)
	if err != nil {
		return guard.StatusNull
	}
	if st, ok := b.tracked(box); ok {
		return b.close(box, st)
	}
	return b.ReleaseAddress(guard.Address(box.Erase()))
}

// LeakIndex returns the leak index of obj, -1 for nil or unresolvable objects.
func (b *Binding) LeakIndex(env host.Env, obj any) int32 {
	if obj == nil {
		return -1
	}
	h, err := bridge.ResolveCapability[*Message](env, b.arena, obj)
	if err != nil {
		return -1
	}
	return h.LeakIndex()
}

// MessageAt returns the live message registered at addr.
func (b *Binding) MessageAt(addr guard.Address) (*Message, error) {
	h, err := guard.Lookup[*Message](b.arena, addr)
	if err != nil {
		return nil, err
	}
	return checked(h)
}

// ReadAddress returns the buffer of the message at addr. The slice aliases
// native memory.
func (b *Binding) ReadAddress(addr guard.Address) ([]byte, error) {
	msg, err := b.MessageAt(addr)
	if err != nil {
		return nil, err
	}
	return msg.Bytes(), nil
}

// ReleaseAddress releases the handle at addr with CodeExplicit.
func (b *Binding) ReleaseAddress(addr guard.Address) guard.Status {
	if addr == guard.Null {
		return guard.StatusNull
	}
	return b.arena.Release(addr, guard.CodeExplicit)
}

// LeakIndexAddress returns the leak index of the handle at addr, -1 for null.
func (b *Binding) LeakIndexAddress(addr guard.Address) int32 {
	if addr == guard.Null {
		return -1
	}
	g, err := b.arena.Resolve(addr)
	if err != nil {
		return -1
	}
	return g.LeakIndex()
}

func (b *Binding) resolve(env host.Env, obj any) (*Message, error) {
	if obj == nil {
		err := errors.NilPointer(errors.PhaseResolve, "context")
		env.Raise(err)
		return nil, err
	}
	h, err := bridge.ResolveCapability[*Message](env, b.arena, obj)
	if err != nil {
		return nil, err
	}
	msg, err := checked(h)
	if err != nil {
		env.Raise(err)
		return nil, err
	}
	return msg, nil
}

func checked(h *guard.Handle[*Message]) (*Message, error) {
	msg, ok := h.Resource()
	if !ok || msg == nil {
		return nil, errors.NotFound(errors.PhaseResolve, "message")
	}
	if msg.Magic != Magic {
		return nil, errors.New(errors.PhaseResolve, errors.KindCorrupted).
			Detail("message magic %#x", msg.Magic).
			Build()
	}
	return msg, nil
}
