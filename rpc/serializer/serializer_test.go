package serializer

import (
	"github.com/ValentinKolb/dSock/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testEnvelopes creates a set of envelopes with different fields filled
func testEnvelopes() []common.Envelope {
	return []common.Envelope{
		// KeepAlive probe
		{Kind: common.MsgKKeepAlive, CorrelationID: "ka-1"},

		// Request with a payload
		{
			Kind:          common.MsgKRequest,
			CorrelationID: "3f9a",
			ValueType:     "string",
			Value:         []byte(`"ping"`),
		},

		// Response
		{
			Kind:          common.MsgKResponse,
			CorrelationID: "3f9a",
			ValueType:     "bytes",
			Value:         []byte{0, 1, 2, 255},
		},

		// Acknowledge without payload
		{Kind: common.MsgKAcknowledge, CorrelationID: "3f9a"},
	}
}

// TestSerializerRoundTrip tests that envelopes can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, env := range testEnvelopes() {
				data, err := serializer.Serialize(env)
				require.NoError(t, err, "envelope %d", i)

				var result common.Envelope
				require.NoError(t, serializer.Deserialize(data, &result), "envelope %d", i)

				assert.Equal(t, env, result, "envelope %d doesn't match after round trip", i)
			}
		})
	}
}

// TestValueRoundTrip tests the payload encoding of each serializer with the builtin types
func TestValueRoundTrip(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			var s string
			data, err := serializer.MarshalValue("pong")
			require.NoError(t, err)
			require.NoError(t, serializer.UnmarshalValue(data, &s))
			assert.Equal(t, "pong", s)

			var i int64
			data, err = serializer.MarshalValue(int64(-42))
			require.NoError(t, err)
			require.NoError(t, serializer.UnmarshalValue(data, &i))
			assert.Equal(t, int64(-42), i)

			var f float64
			data, err = serializer.MarshalValue(3.25)
			require.NoError(t, err)
			require.NoError(t, serializer.UnmarshalValue(data, &f))
			assert.Equal(t, 3.25, f)

			var b bool
			data, err = serializer.MarshalValue(true)
			require.NoError(t, err)
			require.NoError(t, serializer.UnmarshalValue(data, &b))
			assert.True(t, b)
		})
	}
}

// TestBinaryUnsupportedValue tests that the binary serializer rejects structured payloads
func TestBinaryUnsupportedValue(t *testing.T) {
	serializer := NewBinarySerializer()

	_, err := serializer.MarshalValue(struct{ A int }{A: 1})
	assert.ErrorIs(t, err, ErrUnsupportedValue)

	var m map[string]any
	assert.ErrorIs(t, serializer.UnmarshalValue([]byte{}, &m), ErrUnsupportedValue)
}

// TestJSONUnserializableValue tests that json reports values it cannot encode
func TestJSONUnserializableValue(t *testing.T) {
	_, err := NewJSONSerializer().MarshalValue(make(chan int))
	assert.Error(t, err)
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Too short header",
			data:        []byte{1}, // Only kind, no flags
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        []byte{4, 0}, // KeepAlive, no flags
			expectError: false,
		},
		{
			name:        "Invalid length for correlation id",
			data:        []byte{1, 1, 0, 0, 0, 5, 'a', 'b', 'c'}, // Claims length 5 but only 3 bytes provided
			expectError: true,
		},
		{
			name:        "Invalid length for value",
			data:        []byte{1, 4, 0, 0, 0, 10}, // Claims value length 10 but no bytes provided
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var env common.Envelope
			err := serializer.Deserialize(tc.data, &env)

			if tc.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
