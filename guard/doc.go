// Package guard implements guarded handles: integrity-checked wrappers that bind
// a native resource to its release function and a diagnostic leak index.
//
// # Handles
//
// A Handle is created right after the native resource is allocated:
//
//	h := guard.New(leakIndex, buf, freeBuffer)
//
//	// or attach later
//	h := guard.NewEmpty[*Message](leakIndex, freeMessage)
//	_ = h.Attach(msg)
//
// Both constructors panic when the release function is nil. Release invokes the
// release function at most once, flips the header/footer markers to the dead
// pair and drops the closure. Releasing a nil or already released handle is a
// no-op returning StatusNull.
//
// # Arena
//
// The host never sees a Go pointer. Handles are registered in an Arena which
// hands out opaque 64-bit addresses (slot + generation):
//
//	addr, err := arena.Register(h)
//	h, err := guard.Lookup[*Message](arena, addr)
//	status := arena.Release(addr, guard.CodeExplicit)
//
// Resolving an address the arena never produced, a stale address or a handle
// whose markers are corrupt is a contract violation and panics. Releasing a
// stale address is a no-op. Use IsFatal to classify recovered panics.
//
// # Concurrency
//
// Handles are single-owner and unsynchronized. The Arena is safe for concurrent
// use so many goroutines may create and release distinct handles.
package guard
