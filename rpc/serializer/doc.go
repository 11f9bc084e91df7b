// Package serializer provides envelope and payload serialization for the
// structured codec of the socket engine. It defines a common interface and
// multiple implementations with different performance characteristics.
//
// Every serializer has two jobs:
//   - Serialize/Deserialize convert a common.Envelope to and from bytes.
//   - MarshalValue/UnmarshalValue encode the payload carried inside the envelope.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - binarySerializerImpl: Custom binary format using a flag byte to encode only
//     present fields. Payloads are limited to byte slices, strings, bools and
//     64 bit numbers; other values fail with ErrUnsupportedValue.
//
//   - gobSerializerImpl: Go's gob encoding. Supports arbitrary Go types as long as
//     both sides registered them in the common.TypeRegistry.
//
//   - jsonSerializerImpl: JSON encoding, useful for debugging or interoperability.
//     Unknown payload types are decoded into generic maps and slices.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	s := serializer.NewJSONSerializer()
//	value, err := s.MarshalValue("ping")
//	data, err := s.Serialize(common.Envelope{Kind: common.MsgKRequest, ValueType: "string", Value: value})
package serializer
