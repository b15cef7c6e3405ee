//go:build !((linux || darwin) && (amd64 || arm64))

package native

import (
	"github.com/wippyai/nativeguard"
	"github.com/wippyai/nativeguard/errors"
)

// LibcHeap is unavailable on this platform.
type LibcHeap struct{}

// NewLibcHeap reports that the C allocator cannot be loaded here.
func NewLibcHeap() (*LibcHeap, error) {
	return nil, errors.Unsupported(errors.PhaseNative, "libc heap")
}

func (h *LibcHeap) Alloc(size int) (nativeguard.Block, error) {
	return nativeguard.Block{}, errors.Unsupported(errors.PhaseNative, "libc heap")
}

func (h *LibcHeap) Free(b nativeguard.Block) error {
	return errors.Unsupported(errors.PhaseNative, "libc heap")
}
