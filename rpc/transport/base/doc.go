// Package base implements the supervised connection engine independent of the
// network protocol (TCP, Unix sockets, etc.). Protocol specific behavior is injected
// through the connector interfaces of the transport package, message framing through
// a transport.ICodec.
//
// Key Components:
//
//   - Endpoint: One supervised bidirectional connection. It runs the lifecycle state
//     machine (Init, Connecting, Connected, Lost, Reconnecting, Killed), a reader loop
//     that routes incoming messages by kind and an optional keepalive loop. Requests
//     are sent with Call, which returns a pending call from the engine's registry.
//
//   - Listener: Accepts connections, wraps each in a server side Endpoint and keeps a
//     registry of all live endpoints. A killed endpoint removes itself through a
//     non-owning callback. A discovery transport can be attached with SetupDiscovery.
//
// Sessions:
//
//	Every established connection is a session with its own reader and keepalive
//	loop. The first loop that observes a break (read error, write error or missing
//	keepalive acknowledge) closes the session and starts the recovery, the other loop
//	exits quietly. The recovery waits until every loop of the session returned before
//	it reconnects, so at most one reader and one keepalive loop run at any time.
//
// Events:
//
//	All lifecycle transitions are dispatched on the event bus of the endpoint or the
//	listener. ConnectionFailed, ConnectionLost and KeepAliveTimeout require handling
//	when auto reconnect is off: without a subscriber the fault is returned from Connect
//	or handed to the engine's unhandled fault callback.
//
// Thread Safety:
//
//	All public methods are thread-safe. Writes to a connection are serialized by the
//	codec stream. Replies and keepalives are handled on the reader goroutine, requests
//	are processed on the engine's worker pool unless single thread processing is set.
package base
