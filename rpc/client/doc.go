// Package client provides the client side endpoints of the socket engine.
//
// Key Components:
//
//   - ObjectClient: Exchanges typed values using the structured codec. Requests are
//     correlated with their replies, RequestAs returns the reply with its Go type.
//
//   - RawClient: Writes and receives plain bytes without any envelope, e.g. to talk to
//     line based text protocols when combined with codec.DelimitedFrameReader.
//
// Both embed *base.Endpoint, so connecting, auto reconnect, keepalives, events and
// kill work the same for either variant.
package client
