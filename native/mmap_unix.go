//go:build unix

package native

import (
	stderrors "errors"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/wippyai/nativeguard"
	"github.com/wippyai/nativeguard/errors"
)

// MmapHeap allocates every block as its own anonymous mapping. Blocks are
// page-granular, zero-filled and live outside the Go heap.
type MmapHeap struct{}

// NewMmapHeap returns a heap backed by anonymous mappings.
func NewMmapHeap() (*MmapHeap, error) {
	return &MmapHeap{}, nil
}

func (h *MmapHeap) Alloc(size int) (nativeguard.Block, error) {
	if size <= 0 {
		return nativeguard.Block{}, errors.InvalidInput(errors.PhaseNative, "allocation size must be positive")
	}
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nativeguard.Block{}, errors.AllocationFailed(errors.PhaseNative, size, err)
	}
	return nativeguard.Block{
		Data: data[:size:size],
		Addr: uintptr(unsafe.Pointer(&data[0])),
	}, nil
}

func (h *MmapHeap) Free(b nativeguard.Block) error {
	if b.IsZero() {
		return nil
	}
	err := unix.Munmap(b.Data[:cap(b.Data)])
	if stderrors.Is(err, unix.EINVAL) {
		return errors.InvalidInput(errors.PhaseNative, "block is not a live mapping")
	}
	if err != nil {
		return errors.Wrap(errors.PhaseNative, errors.KindAllocation, err, "munmap")
	}
	return nil
}
