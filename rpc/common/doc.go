// Package common provides core data structures and utilities shared across
// the socket engine. It defines the message protocol, the configuration
// structures and the logging setup used by all other packages.
//
// Key Components:
//
//   - Message / Envelope: A decoded message and its wire form. Every message
//     has one of four kinds (Request, Response, Acknowledge, KeepAlive) and a
//     correlation id that links replies to requests.
//
//   - TypeRegistry: Maps declared value type names to Go types so the structured
//     codec can rebuild typed payloads on the receiving side.
//
//   - EndpointConfig / ServerConfig / EngineConfig: Configuration structs with
//     formatted String() output for the CLI.
//
//   - Errors: The fault taxonomy (ErrConnectFailure, ErrConnectionLost, ...) and
//     the DecodeError type for recoverable per-frame failures.
//
//   - Logger: Custom formatting for the dragonboat logger package, which is used
//     for all named loggers of the engine.
package common
