// Package wasmhost exposes a msgctx.Binding to WebAssembly guests via wazero.
//
// The host module (named "nativeguard" by default) exports:
//
//	create(leak_index i32) -> i64              allocate a message, 0 on failure
//	read(addr i64, ptr i32, len i32) -> i32    copy the buffer into guest memory
//	message_len(addr i64) -> i32               buffer size, -1 for null
//	leak_index(addr i64) -> i32                leak index, -1 for null
//	release(addr i64) -> i32                   0 released, -1 null or stale
//
// Guests only ever see the 64-bit arena address. An address that fails the
// integrity check traps the guest call.
package wasmhost
