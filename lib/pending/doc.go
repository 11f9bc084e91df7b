// Package pending provides the registry that turns a fire-and-forget send into
// an awaitable call.
//
// A Call is registered under a correlation id before its request is written. The
// first matching reply resolves it through Resolve; every later reply for the same
// id is dropped silently. Await blocks the caller with a timeout and removes the
// orphaned call on expiry, so a late reply cannot resolve a call nobody waits on.
//
// The registry is backed by an xsync.MapOf, so register, resolve and expiry may race
// freely between the reader, keepalive and caller goroutines.
package pending
