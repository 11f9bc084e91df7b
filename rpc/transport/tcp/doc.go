// Package tcp implements the TCP connectors of the socket engine. It provides
// concrete implementations of the transport package's connector interfaces.
//
// Both connectors apply the socket options of common.EndpointConfig to every
// connection (TCP_NODELAY, buffer sizes, TCP keepalive and linger). Note that the
// TCP keepalive only tunes the kernel probes; connection supervision is done by the
// keepalive protocol of the base package.
//
// Key Components:
//
//   - clientConnector: Dials with the configured dial timeout and context
//
//   - serverConnector: Creates TCP listeners
package tcp
