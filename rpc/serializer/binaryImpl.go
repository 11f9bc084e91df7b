package serializer

import (
	"encoding/binary"
	"fmt"
	"github.com/ValentinKolb/dSock/rpc/common"
	"math"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasID    byte = 1 << 0
	hasType  byte = 1 << 1
	hasValue byte = 1 << 2
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Name() string {
	return "binary"
}

func (b binarySerializerImpl) Serialize(env common.Envelope) ([]byte, error) {
	// Calculate total size needed
	result := make([]byte, b.sizeBytes(env))

	// Write message kind
	result[0] = byte(env.Kind)

	// Initialize flags byte
	var flags byte = 0

	// Set position for writing
	pos := 2 // Start after Kind and flags

	// Handle CorrelationID
	if env.CorrelationID != "" {
		flags |= hasID
		pos = putBytes(result, pos, []byte(env.CorrelationID))
	}

	// Handle ValueType
	if env.ValueType != "" {
		flags |= hasType
		pos = putBytes(result, pos, []byte(env.ValueType))
	}

	// Handle Value
	if env.Value != nil {
		flags |= hasValue
		putBytes(result, pos, env.Value)
	}

	// Set flags byte after knowing which fields are present
	result[1] = flags

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, env *common.Envelope) error {
	// Check minimum size (Kind + flags)
	if len(data) < 2 {
		return fmt.Errorf("data too short for envelope header")
	}

	env.Kind = common.MessageKind(data[0])
	flags := data[1]
	pos := 2

	var field []byte
	var err error

	// Read CorrelationID if present
	env.CorrelationID = ""
	if flags&hasID != 0 {
		if field, pos, err = readBytes(data, pos, "correlation id"); err != nil {
			return err
		}
		env.CorrelationID = string(field)
	}

	// Read ValueType if present
	env.ValueType = ""
	if flags&hasType != 0 {
		if field, pos, err = readBytes(data, pos, "value type"); err != nil {
			return err
		}
		env.ValueType = string(field)
	}

	// Read Value if present - create an empty slice (not nil) if length is 0
	env.Value = nil
	if flags&hasValue != 0 {
		if field, _, err = readBytes(data, pos, "value"); err != nil {
			return err
		}
		env.Value = make([]byte, len(field))
		copy(env.Value, field)
	}

	return nil
}

// MarshalValue supports byte slices, strings, bools and 64 bit numbers
func (b binarySerializerImpl) MarshalValue(v any) ([]byte, error) {
	switch val := v.(type) {
	case []byte:
		return val, nil
	case string:
		return []byte(val), nil
	case bool:
		if val {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case int:
		return binary.BigEndian.AppendUint64(nil, uint64(val)), nil
	case int64:
		return binary.BigEndian.AppendUint64(nil, uint64(val)), nil
	case uint64:
		return binary.BigEndian.AppendUint64(nil, val), nil
	case float64:
		return binary.BigEndian.AppendUint64(nil, math.Float64bits(val)), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

func (b binarySerializerImpl) UnmarshalValue(data []byte, target any) error {
	switch t := target.(type) {
	case *[]byte:
		*t = append([]byte{}, data...)
	case *string:
		*t = string(data)
	case *bool:
		if len(data) != 1 {
			return fmt.Errorf("invalid bool length %d", len(data))
		}
		*t = data[0] != 0
	case *int, *int64, *uint64, *float64:
		if len(data) != 8 {
			return fmt.Errorf("invalid number length %d", len(data))
		}
		n := binary.BigEndian.Uint64(data)
		switch t := target.(type) {
		case *int:
			*t = int(n)
		case *int64:
			*t = int64(n)
		case *uint64:
			*t = n
		case *float64:
			*t = math.Float64frombits(n)
		}
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedValue, target)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(env common.Envelope) int {
	// 1 byte for Kind + 1 byte for flags
	size := 2

	// Add sizes for fields that require length encoding
	if env.CorrelationID != "" {
		size += 4 + len(env.CorrelationID)
	}
	if env.ValueType != "" {
		size += 4 + len(env.ValueType)
	}
	if env.Value != nil {
		size += 4 + len(env.Value)
	}

	return size
}

// putBytes writes a length prefixed field at pos and returns the next position
func putBytes(dst []byte, pos int, field []byte) int {
	binary.BigEndian.PutUint32(dst[pos:pos+4], uint32(len(field)))
	pos += 4
	copy(dst[pos:pos+len(field)], field)
	return pos + len(field)
}

// readBytes reads a length prefixed field at pos
func readBytes(data []byte, pos int, name string) ([]byte, int, error) {
	if pos+4 > len(data) {
		return nil, pos, fmt.Errorf("data too short for %s length", name)
	}
	n := int(binary.BigEndian.Uint32(data[pos : pos+4]))
	pos += 4

	if pos+n > len(data) {
		return nil, pos, fmt.Errorf("data too short for %s data", name)
	}
	return data[pos : pos+n], pos + n, nil
}
