package serializer

import (
	"errors"
	"github.com/ValentinKolb/dSock/rpc/common"
)

// ErrUnsupportedValue is returned by MarshalValue/UnmarshalValue for payload types a
// serializer cannot encode
var ErrUnsupportedValue = errors.New("unsupported value type")

// IRPCSerializer is the interface for all envelope and payload serializers
type IRPCSerializer interface {
	// Name returns the name of the serializer (e.g. "json")
	Name() string
	// Serialize serializes an Envelope into a byte array
	Serialize(env common.Envelope) ([]byte, error)
	// Deserialize deserializes a byte array into an Envelope
	Deserialize(b []byte, env *common.Envelope) error
	// MarshalValue encodes a single payload value
	MarshalValue(v any) ([]byte, error)
	// UnmarshalValue decodes a payload value into target, which must be a pointer
	UnmarshalValue(b []byte, target any) error
}
