package native

import (
	"github.com/wippyai/nativeguard"
	"github.com/wippyai/nativeguard/errors"
)

// Kind names a heap implementation.
type Kind string

const (
	KindMmap Kind = "mmap"
	KindLibc Kind = "libc"
	KindGo   Kind = "go"
)

// Open returns the heap for kind.
func Open(kind Kind) (nativeguard.Heap, error) {
	switch kind {
	case KindMmap:
		h, err := NewMmapHeap()
		if err != nil {
			return nil, err
		}
		return h, nil
	case KindLibc:
		h, err := NewLibcHeap()
		if err != nil {
			return nil, err
		}
		return h, nil
	case KindGo:
		return NewGoHeap(), nil
	default:
		return nil, errors.InvalidInput(errors.PhaseNative, "unknown heap kind "+string(kind))
	}
}

// Default returns the mmap heap where available and the Go heap otherwise.
func Default() nativeguard.Heap {
	if h, err := NewMmapHeap(); err == nil {
		return h
	}
	return NewGoHeap()
}
