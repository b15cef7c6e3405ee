// Package msgctx is a resource binding for a small native message context.
//
// The native resource is a Message: a magic word plus a 1 KiB buffer on a
// nativeguard.Heap, prefilled with a greeting. Binding implements the host
// entry points (create, execute, release, leak index) on top of guard and
// bridge. Context is the managed wrapper the host holds; contexts opened with
// Binding.Open are tracked by a leak.Counter and released as lost if they are
// collected without Close.
package msgctx
