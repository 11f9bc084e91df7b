// Package unix implements the Unix domain socket connectors of the socket
// engine, for peers running on the same machine.
//
// The server connector removes a stale socket file before listening. Socket
// options of common.EndpointConfig do not apply to Unix sockets and are ignored.
package unix
