// Package rpc provides a supervised socket engine for request/response style
// communication over stream sockets. Connections are watched by keepalives,
// reconnect on their own and report everything that happens to them on an
// event bus.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the engine,
//     including the Message protocol, the type registry, configuration
//     structures and logging.
//
//   - engine: The shared execution context. It owns the worker pool, the
//     pending call registry, the metrics and everything that has to be killed
//     on shutdown.
//
//   - transport: The interfaces the engine is composed of. The base package
//     holds the endpoint lifecycle and the listener, tcp and unix provide the
//     socket connectors.
//
//   - codec: Wire formats (structured frames carrying serialized values, and
//     raw bytes).
//
//   - serializer: Value serialization with multiple format options (Binary,
//     JSON, GOB) used by the structured codec.
//
//   - client / server: Ready to use object and raw variants of endpoints and
//     listeners.
//
//   - discovery: Multicast responder and probe to find servers on the local
//     network.
//
//   - admin: HTTP endpoint exposing the engine metrics and live connections.
package rpc
