// Package bridge marshals guarded handles across the host boundary.
//
// Outbound, BuildObject turns an arena address into a host object in three
// gated steps and releases the handle if any step fails or the host raises a
// fault, so the host never receives an object referencing a released or half
// built resource. Inbound, AddressFromBox and BoxFromCapability check the
// dynamic type of what the host handed back and Resolve returns the integrity
// checked handle.
//
// Every failure is both returned and raised on the Env unless a fault is
// already pending, in which case the pending fault wins.
package bridge
