// Package transport defines the interfaces and abstractions the socket engine
// is composed of. The lifecycle controller in the base package only talks to
// these interfaces, so transports and wire formats can be swapped independently.
//
// Key Components:
//
//   - ICodec / IStream: The wire format capability. Setup wraps a connection,
//     ReadOne decodes the next message and Write frames an outgoing one.
//     Implementations live in the codec package (structured and raw).
//
//   - IClientConnector / IServerConnector: Transport-specific dialing, listening
//     and socket options. Implementations live in the tcp and unix packages.
//
//   - IDatagramTransport: The hook a listener uses to attach a discovery responder
//     (see the discovery package).
package transport
