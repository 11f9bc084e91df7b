package codec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/ValentinKolb/dSock/rpc/common"
	"github.com/ValentinKolb/dSock/rpc/serializer"
	"github.com/ValentinKolb/dSock/rpc/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greeting struct {
	Text  string
	Count int
}

// pipeStreams connects two streams of codec over an in-memory pipe
func pipeStreams(t *testing.T, codec transport.ICodec) (transport.IStream, transport.IStream) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})

	left, err := codec.Setup(a)
	require.NoError(t, err)
	right, err := codec.Setup(b)
	require.NoError(t, err)
	return left, right
}

// send writes msg on a separate goroutine, net.Pipe is unbuffered
func send(s transport.IStream, msg common.Message) <-chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.Write(msg) }()
	return errCh
}

func TestObjectCodecRoundTrip(t *testing.T) {
	types := common.NewTypeRegistry()
	types.MustRegister("greeting", greeting{})

	testCases := []struct {
		name  string
		msg   common.Message
		check any
	}{
		{"String", common.NewRequest("1", "ping"), "ping"},
		{"Bytes", common.NewResponse("2", []byte{1, 2, 3}), []byte{1, 2, 3}},
		{"Int64", common.NewRequest("3", int64(-7)), int64(-7)},
		{"Struct", common.NewRequest("4", greeting{Text: "hi", Count: 2}), greeting{Text: "hi", Count: 2}},
		{"Acknowledge", common.NewAcknowledge("5"), nil},
		{"KeepAlive", common.NewKeepAlive("6"), nil},
	}

	for _, s := range []serializer.IRPCSerializer{serializer.NewJSONSerializer(), serializer.NewGOBSerializer()} {
		t.Run(s.Name(), func(t *testing.T) {
			left, right := pipeStreams(t, NewObjectCodec(s, types))

			for _, tc := range testCases {
				t.Run(tc.name, func(t *testing.T) {
					errCh := send(left, tc.msg)

					msg, err := right.ReadOne()
					require.NoError(t, err)
					require.NoError(t, <-errCh)

					assert.Equal(t, tc.msg.Kind, msg.Kind)
					assert.Equal(t, tc.msg.CorrelationID, msg.CorrelationID)
					assert.Equal(t, tc.check, msg.Value)
				})
			}
		})
	}
}

func TestObjectCodecUnknownTypeDecodesGenerically(t *testing.T) {
	sender := NewObjectCodec(serializer.NewJSONSerializer(), nil)
	receiverTypes := common.NewTypeRegistry()

	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	left, err := sender.Setup(a)
	require.NoError(t, err)
	right, err := NewObjectCodec(serializer.NewJSONSerializer(), receiverTypes).Setup(b)
	require.NoError(t, err)

	errCh := send(left, common.NewRequest("1", greeting{Text: "hi", Count: 2}))
	msg, err := right.ReadOne()
	require.NoError(t, err)
	require.NoError(t, <-errCh)

	assert.Equal(t, "codec.greeting", msg.ValueType)
	assert.Equal(t, map[string]any{"Text": "hi", "Count": float64(2)}, msg.Value)
}

func TestObjectCodecSerializationFailure(t *testing.T) {
	left, _ := pipeStreams(t, NewObjectCodec(serializer.NewBinarySerializer(), nil))

	// the binary serializer only supports scalar payloads, nothing reaches the pipe
	err := left.Write(common.NewRequest("1", greeting{}))
	assert.ErrorIs(t, err, common.ErrSerializationFailure)
	assert.ErrorIs(t, err, serializer.ErrUnsupportedValue)
}

func TestObjectCodecDecodeErrorKeepsStream(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	right, err := NewObjectCodec(serializer.NewJSONSerializer(), nil).Setup(b)
	require.NoError(t, err)

	go func() {
		_ = writeFrame(a, []byte("{not json"))
		data, _ := serializer.NewJSONSerializer().Serialize(common.Envelope{Kind: common.MsgKKeepAlive, CorrelationID: "k"})
		_ = writeFrame(a, data)
	}()

	_, err = right.ReadOne()
	var decodeErr *common.DecodeError
	require.True(t, errors.As(err, &decodeErr))

	msg, err := right.ReadOne()
	require.NoError(t, err)
	assert.Equal(t, common.MsgKKeepAlive, msg.Kind)
	assert.Equal(t, "k", msg.CorrelationID)
}

func TestReadFrameTooLarge(t *testing.T) {
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, MaxFrameSize+1)

	_, err := readFrame(bytes.NewReader(header), nil)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestRawCodec(t *testing.T) {
	left, right := pipeStreams(t, NewRawCodec(nil))
	assert.False(t, NewRawCodec(nil).KeepAlive())

	errCh := send(left, common.NewResponse("", []byte("hello")))
	msg, err := right.ReadOne()
	require.NoError(t, err)
	require.NoError(t, <-errCh)

	assert.Equal(t, common.MsgKRequest, msg.Kind)
	assert.Equal(t, []byte("hello"), msg.Value)

	// acknowledges have no raw representation
	assert.NoError(t, left.Write(common.NewAcknowledge("x")))

	assert.ErrorIs(t, left.Write(common.NewResponse("", 42)), common.ErrSerializationFailure)
}

func TestFrameReaders(t *testing.T) {
	t.Run("SingleRead", func(t *testing.T) {
		r := bufio.NewReader(strings.NewReader("abcdefgh"))
		data, err := SingleReadFrameReader(3)(r)
		require.NoError(t, err)
		assert.Equal(t, []byte("abc"), data)
	})

	t.Run("Delimited", func(t *testing.T) {
		r := bufio.NewReader(strings.NewReader("one\ntwo\nthr"))
		read := DelimitedFrameReader('\n')

		data, err := read(r)
		require.NoError(t, err)
		assert.Equal(t, []byte("one"), data)

		data, err = read(r)
		require.NoError(t, err)
		assert.Equal(t, []byte("two"), data)

		_, err = read(r)
		assert.Error(t, err)
	})

	t.Run("LengthPrefixed", func(t *testing.T) {
		var buf bytes.Buffer
		_ = binary.Write(&buf, binary.BigEndian, uint32(5))
		buf.WriteString("hello")
		_ = binary.Write(&buf, binary.BigEndian, uint32(100))

		read := LengthPrefixedFrameReader(10)
		r := bufio.NewReader(&buf)

		data, err := read(r)
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), data)

		_, err = read(r)
		assert.ErrorIs(t, err, ErrFrameTooLarge)
	})
}
