package native

import (
	"sync"
	"unsafe"

	"github.com/wippyai/nativeguard"
	"github.com/wippyai/nativeguard/errors"
)

// GoHeap hands out Go-allocated slices. Blocks are pinned in a map until freed
// so a double free is reported instead of silently ignored.
type GoHeap struct {
	mu   sync.Mutex
	live map[uintptr][]byte
}

// NewGoHeap returns an empty Go-backed heap.
func NewGoHeap() *GoHeap {
	return &GoHeap{live: make(map[uintptr][]byte)}
}

func (h *GoHeap) Alloc(size int) (nativeguard.Block, error) {
	if size <= 0 {
		return nativeguard.Block{}, errors.InvalidInput(errors.PhaseNative, "allocation size must be positive")
	}
	data := make([]byte, size)
	addr := uintptr(unsafe.Pointer(&data[0]))

	h.mu.Lock()
	h.live[addr] = data
	h.mu.Unlock()
	return nativeguard.Block{Data: data, Addr: addr}, nil
}

func (h *GoHeap) Free(b nativeguard.Block) error {
	if b.IsZero() {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.live[b.Addr]; !ok {
		return errors.InvalidInput(errors.PhaseNative, "block is not live")
	}
	delete(h.live, b.Addr)
	return nil
}
