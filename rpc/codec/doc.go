// Package codec implements the message codecs of the socket engine.
//
// A codec turns a connection into a transport.IStream that reads and writes whole
// common.Message values. Two codecs are provided:
//
//   - The object codec writes one common.Envelope per frame. A frame is a 4 byte big
//     endian length followed by the envelope bytes of the configured serializer. The
//     payload type name travels with the envelope, so the receiver can rebuild the
//     typed value through its common.TypeRegistry. It supports keepalives.
//
//   - The raw codec passes bytes through. Every chunk returned by its FrameReader
//     becomes a Request carrying []byte and a Response writes its bytes verbatim.
//     The default reader returns a single read of up to 4096 bytes without any
//     reassembly. DelimitedFrameReader and LengthPrefixedFrameReader cut messages
//     on the stream for peers that frame their data.
//
// Streams serialize their writes internally. ReadOne must only be called from one
// goroutine. A *common.DecodeError from ReadOne means a single frame was dropped and
// the stream remains usable, any other error ends the stream.
package codec
