//go:build !unix

package native

import (
	"github.com/wippyai/nativeguard"
	"github.com/wippyai/nativeguard/errors"
)

// MmapHeap is unavailable on this platform.
type MmapHeap struct{}

// NewMmapHeap reports that anonymous mappings are not supported here.
func NewMmapHeap() (*MmapHeap, error) {
	return nil, errors.Unsupported(errors.PhaseNative, "mmap heap")
}

func (h *MmapHeap) Alloc(size int) (nativeguard.Block, error) {
	return nativeguard.Block{}, errors.Unsupported(errors.PhaseNative, "mmap heap")
}

func (h *MmapHeap) Free(b nativeguard.Block) error {
	return errors.Unsupported(errors.PhaseNative, "mmap heap")
}
