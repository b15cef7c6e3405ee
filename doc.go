// Package nativeguard exposes native (off Go heap) resources to a managed host
// that only ever holds an opaque integer address.
//
// Every exposed resource is wrapped in a guarded handle bound to its release
// function and tagged with a diagnostic leak index. Handles are registered in an
// arena which hands out 64-bit addresses; the host carries those addresses in
// Box objects and hands them back on every call. Release is explicit, happens at
// most once and poisons the handle so stale addresses are detected.
//
// # Architecture Overview
//
//	nativeguard/         Root package with the Heap and Block contracts
//	├── guard/           Guarded handles and the address arena
//	├── host/            Host object model: Box, Capability, Type, Env
//	├── bridge/          Boundary marshaling between addresses and host objects
//	├── native/          Heaps: mmap, libc (purego) and Go backed
//	├── leak/            Lost-reference counter correlating leak indexes
//	├── msgctx/          Demo resource binding (1 KiB message buffer)
//	├── wasmhost/        wazero host module exposing the binding to WASM guests
//	├── errors/          Structured error types
//	└── cmd/leakcheck/   Stress harness and live leak view
//
// # Quick Start
//
//	arena := guard.NewArena(nil)
//	defer arena.Close()
//
//	b, err := msgctx.NewBinding(msgctx.Config{Heap: native.Default(), Arena: arena})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	env := host.NewLocalEnv(b.Types())
//
//	obj, err := b.Create(env, 52)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	msg, _ := b.Execute(env, obj)
//	fmt.Println(msg) // "This is some super cool native memory"
//	b.Release(env, obj)
//
// # Thread Safety
//
// Arena, Counter and the heaps are safe for concurrent use. A single handle is
// single-owner and must not be used from several goroutines at once. Host
// environments are per goroutine.
//
// # Leaks
//
// Releasing is the caller's job. Managed wrappers (msgctx.Context) register a
// cleanup that releases the handle and counts it as lost when the wrapper is
// collected without Close. The leak counter reports, per allocation site, how
// many references were closed, lost or are still open.
package nativeguard
