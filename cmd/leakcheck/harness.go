package main

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wippyai/nativeguard/guard"
	"github.com/wippyai/nativeguard/host"
	"github.com/wippyai/nativeguard/leak"
	"github.com/wippyai/nativeguard/msgctx"
	"github.com/wippyai/nativeguard/native"
)

// mode selects what each iteration does with its context.
type mode string

const (
	modeLeak  mode = "leak"  // open, execute, drop
	modeClose mode = "close" // open, execute, close
	modeDbl   mode = "dbl"   // open, execute, close twice
)

func parseMode(s string) (mode, error) {
	switch m := mode(s); m {
	case modeLeak, modeClose, modeDbl:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want leak, close or dbl)", s)
	}
}

type harness struct {
	heap    *native.Tracked
	arena   *guard.Arena
	counter *leak.Counter
	binding *msgctx.Binding

	iterations atomic.Int64
	failures   atomic.Int64
}

func newHarness(kind native.Kind, cfg leak.Config) (*harness, error) {
	heap, err := native.Open(kind)
	if err != nil {
		return nil, err
	}
	counter, err := leak.NewCounter(cfg)
	if err != nil {
		return nil, err
	}

	h := &harness{
		heap:    native.Track(heap),
		arena:   guard.NewArena(nil),
		counter: counter,
	}
	h.binding, err = msgctx.NewBinding(msgctx.Config{
		Heap:    h.heap,
		Arena:   h.arena,
		Counter: counter,
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// run starts threads workers of loops iterations each and waits for them.
func (h *harness) run(ctx context.Context, m mode, threads, loops int) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < threads; i++ {
		g.Go(func() error {
			env := host.NewLocalEnv(h.binding.Types())
			for j := 0; j < loops; j++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := h.iterate(env, m); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func (h *harness) iterate(env *host.LocalEnv, m mode) error {
	c, err := h.binding.Open(env)
	if err != nil {
		return err
	}
	text, err := c.Execute()
	if err != nil || text != msgctx.Greeting {
		h.failures.Add(1)
	}

	switch m {
	case modeClose:
		c.Close()
	case modeDbl:
		c.Close()
		c.Close()
	}
	h.iterations.Add(1)
	return nil
}

// collect forces collection until every dropped context has been released or
// the timeout passes.
func (h *harness) collect(timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for i := 0; ; i++ {
		runtime.GC()
		if h.arena.Len() == 0 || (i >= 50 && time.Now().After(deadline)) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// stats is a point-in-time view for printing and the watch screen.
type stats struct {
	Iterations int64
	Failures   int64
	Live       int
	Open       int
	Closed     int
	Lost       int
	HeapAllocs int64
	HeapFrees  int64
}

func (h *harness) stats() stats {
	return stats{
		Iterations: h.iterations.Load(),
		Failures:   h.failures.Load(),
		Live:       h.arena.Len(),
		Open:       h.counter.OpenCount(),
		Closed:     h.counter.ClosedCount(),
		Lost:       h.counter.LostCount(),
		HeapAllocs: h.heap.Allocs(),
		HeapFrees:  h.heap.Frees(),
	}
}

// close releases whatever is still registered.
func (h *harness) close() error {
	return h.arena.Close()
}
