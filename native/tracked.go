package native

import (
	"sync/atomic"

	"github.com/wippyai/nativeguard"
)

// Tracked counts the traffic of the heap it wraps.
type Tracked struct {
	heap   nativeguard.Heap
	allocs atomic.Int64
	frees  atomic.Int64
}

// Track wraps h.
func Track(h nativeguard.Heap) *Tracked {
	return &Tracked{heap: h}
}

func (t *Tracked) Alloc(size int) (nativeguard.Block, error) {
	b, err := t.heap.Alloc(size)
	if err != nil {
		return b, err
	}
	t.allocs.Add(1)
	return b, nil
}

func (t *Tracked) Free(b nativeguard.Block) error {
	if b.IsZero() {
		return nil
	}
	if err := t.heap.Free(b); err != nil {
		return err
	}
	t.frees.Add(1)
	return nil
}

// Allocs returns the number of successful allocations.
func (t *Tracked) Allocs() int64 { return t.allocs.Load() }

// Frees returns the number of successful frees.
func (t *Tracked) Frees() int64 { return t.frees.Load() }

// Live returns allocations not yet freed.
func (t *Tracked) Live() int64 { return t.allocs.Load() - t.frees.Load() }

var _ nativeguard.HeapStats = (*Tracked)(nil)
