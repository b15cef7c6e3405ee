// Package host models the managed side of the boundary.
//
// The host only holds opaque objects. A Box carries a 64-bit address, a
// Capability is any object that can produce its Box on request, and a Type
// constructs host objects around boxes. Env is the per-goroutine host
// environment: it owns the pending fault, builds boxes and runs constructors.
// LocalEnv is the in-process implementation used by bindings and tests.
package host
