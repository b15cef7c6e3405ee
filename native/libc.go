//go:build (linux || darwin) && (amd64 || arm64)

package native

import (
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/wippyai/nativeguard"
	"github.com/wippyai/nativeguard/errors"
)

var (
	libcCalloc func(nmemb, size uintptr) uintptr
	libcFree   func(ptr uintptr)

	libcOnce sync.Once
	libcErr  error
)

func libcPath() string {
	if runtime.GOOS == "darwin" {
		return "/usr/lib/libSystem.B.dylib"
	}
	return "libc.so.6"
}

func loadLibc() error {
	libcOnce.Do(func() {
		lib, err := purego.Dlopen(libcPath(), purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			libcErr = errors.Registration(errors.PhaseNative, libcPath(), err)
			return
		}
		purego.RegisterLibFunc(&libcCalloc, lib, "calloc")
		purego.RegisterLibFunc(&libcFree, lib, "free")
	})
	return libcErr
}

// LibcHeap allocates blocks with the C library's calloc and free.
type LibcHeap struct{}

// NewLibcHeap loads the C library on first use.
func NewLibcHeap() (*LibcHeap, error) {
	if err := loadLibc(); err != nil {
		return nil, err
	}
	return &LibcHeap{}, nil
}

func (h *LibcHeap) Alloc(size int) (nativeguard.Block, error) {
	if size <= 0 {
		return nativeguard.Block{}, errors.InvalidInput(errors.PhaseNative, "allocation size must be positive")
	}
	p := libcCalloc(1, uintptr(size))
	if p == 0 {
		return nativeguard.Block{}, errors.AllocationFailed(errors.PhaseNative, size, nil)
	}
	return nativeguard.Block{
		Data: unsafe.Slice((*byte)(unsafe.Pointer(p)), size),
		Addr: p,
	}, nil
}

func (h *LibcHeap) Free(b nativeguard.Block) error {
	if b.IsZero() {
		return nil
	}
	libcFree(b.Addr)
	return nil
}
