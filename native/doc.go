// Package native provides nativeguard.Heap implementations.
//
// MmapHeap backs each block with an anonymous private mapping, LibcHeap calls
// the C allocator through purego without cgo, and GoHeap uses ordinary Go
// slices for platforms where neither is available. Tracked wraps any heap and
// counts allocations so leak tests can assert that every block was freed.
package native
