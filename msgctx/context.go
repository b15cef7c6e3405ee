package msgctx

import (
	"runtime"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/nativeguard/errors"
	"github.com/wippyai/nativeguard/guard"
	"github.com/wippyai/nativeguard/host"
)

// Context is the host object wrapping a message handle.
//
// A Context must be closed. Contexts returned by Binding.Open that become
// unreachable unclosed are released by the collector and counted as lost.
type Context struct {
	binding *Binding
	box     *host.Box
	state   *state
}

// state is shared by a Context, its binding and its cleanup. It must not
// reference the Context.
type state struct {
	closed  atomic.Bool
	tracked bool
	idx     int32
	cleanup runtime.Cleanup
}

// lostRef is the cleanup argument.
type lostRef struct {
	binding *Binding
	box     *host.Box
	state   *state
}

// Open creates a tracked context. The leak index comes from the binding's
// counter and is keyed by the caller's stack when stack logging is on.
func (b *Binding) Open(env host.Env) (*Context, error) {
	idx, err := b.counter.Open(1)
	if err != nil {
		return nil, err
	}

	obj, err := b.Create(env, idx)
	if err != nil {
		return nil, err
	}
	ctx, ok := obj.(*Context)
	if !ok {
		b.Release(env, obj)
		return nil, errors.TypeMismatch(errors.PhaseHost, nil, TypeName, host.TypeName(obj))
	}

	st := ctx.state
	st.tracked = true
	st.idx = idx
	st.cleanup = runtime.AddCleanup(ctx, releaseLost, lostRef{binding: b, box: ctx.box, state: st})
	b.track(ctx.box, st)
	return ctx, nil
}

func releaseLost(ref lostRef) {
	if ref.state.closed.Swap(true) {
		return
	}
	b := ref.binding
	b.untrack(ref.box)

	addr := guard.Address(ref.box.Erase())
	if addr == guard.Null {
		return
	}
	status := b.arena.Release(addr, guard.CodeLost)
	b.counter.Lost(ref.state.idx)
	Logger().Warn("context collected without close",
		zap.Stringer("addr", addr),
		zap.Int32("leakIndex", ref.state.idx),
		zap.Int32("status", int32(status)))
}

func (c *Context) HostType() string { return TypeName }

// Box returns the box carrying the handle address.
func (c *Context) Box() host.Object { return c.box }

// Address returns the current handle address, guard.Null once closed.
func (c *Context) Address() guard.Address {
	return guard.Address(c.box.Address())
}

// Validate returns an error once the context has been closed.
func (c *Context) Validate() error {
	if c.state.closed.Load() || c.box.Address() == 0 {
		return errors.Released(errors.PhaseResolve, "context")
	}
	return nil
}

// IsClosed reports whether the context was closed, directly or by releasing
// its box through the binding.
func (c *Context) IsClosed() bool {
	return c.state.closed.Load()
}

// Execute returns the message text.
func (c *Context) Execute() (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	return c.binding.Execute(host.NewLocalEnv(c.binding.types), c)
}

// LeakIndex returns the leak index of the handle.
func (c *Context) LeakIndex() (int32, error) {
	if err := c.Validate(); err != nil {
		return -1, err
	}
	return c.binding.LeakIndexAddress(c.Address()), nil
}

// Close releases the handle. Closing twice, or after the arena was closed,
// is a no-op.
func (c *Context) Close() error {
	c.binding.close(c.box, c.state)
	return nil
}

// close releases the handle carried by box exactly once. A handle already
// released by the arena only settles the accounting.
func (b *Binding) close(box *host.Box, st *state) guard.Status {
	if st.closed.Swap(true) {
		return guard.StatusNull
	}
	if st.tracked {
		st.cleanup.Stop()
		b.untrack(box)
	}

	status := b.ReleaseAddress(guard.Address(box.Erase()))
	if st.tracked {
		b.counter.Close(st.idx)
	}
	return status
}

func (b *Binding) track(box *host.Box, st *state) {
	b.mu.Lock()
	b.open[box] = st
	b.mu.Unlock()
}

func (b *Binding) untrack(box *host.Box) {
	b.mu.Lock()
	delete(b.open, box)
	b.mu.Unlock()
}

func (b *Binding) tracked(box *host.Box) (*state, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.open[box]
	return st, ok
}
