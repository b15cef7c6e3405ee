package nativeguard

// Block is a region of native memory returned by a Heap.
//
// Data aliases memory the Go garbage collector does not own (for the mmap and
// libc heaps). It must not be used after the block is freed.
type Block struct {
	Data []byte
	Addr uintptr
}

// Len returns the usable size of the block.
func (b Block) Len() int {
	return len(b.Data)
}

// IsZero reports whether b is the zero block.
func (b Block) IsZero() bool {
	return b.Data == nil && b.Addr == 0
}

// Heap allocates native memory for resources exposed through handles.
type Heap interface {
	// Alloc returns a zeroed block of at least size bytes.
	Alloc(size int) (Block, error)
	// Free returns the block to the heap. Freeing the zero block is a no-op.
	Free(b Block) error
}

// HeapStats is implemented by heaps that count their traffic.
type HeapStats interface {
	Allocs() int64
	Frees() int64
	Live() int64
}
