package codec

import (
	"bufio"
	"fmt"
	"github.com/ValentinKolb/dSock/rpc/common"
	"github.com/ValentinKolb/dSock/rpc/serializer"
	"github.com/ValentinKolb/dSock/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"net"
	"reflect"
	"sync"
)

var Logger = logger.GetLogger("codec")

// objectCodec frames one serialized common.Envelope per message
type objectCodec struct {
	serializer serializer.IRPCSerializer
	types      *common.TypeRegistry
}

// NewObjectCodec creates the structured codec. Values are encoded with s, their
// declared type names are taken from types. A nil registry uses the builtin types only.
func NewObjectCodec(s serializer.IRPCSerializer, types *common.TypeRegistry) transport.ICodec {
	if types == nil {
		types = common.NewTypeRegistry()
	}
	return &objectCodec{serializer: s, types: types}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.ICodec)
// --------------------------------------------------------------------------

func (c *objectCodec) Name() string {
	return "object/" + c.serializer.Name()
}

func (c *objectCodec) KeepAlive() bool {
	return true
}

func (c *objectCodec) Setup(conn net.Conn) (transport.IStream, error) {
	return &objectStream{
		codec:  c,
		conn:   conn,
		reader: bufio.NewReader(conn),
	}, nil
}

// --------------------------------------------------------------------------
// Stream
// --------------------------------------------------------------------------

type objectStream struct {
	codec  *objectCodec
	conn   net.Conn
	reader *bufio.Reader
	buf    []byte // reused read buffer, only touched by the reader goroutine

	writeMu sync.Mutex
}

func (s *objectStream) ReadOne() (common.Message, error) {
	frame, err := readFrame(s.reader, s.buf)
	if err != nil {
		return common.Message{}, err
	}
	if cap(frame) > cap(s.buf) {
		s.buf = frame[:cap(frame)]
	}

	var env common.Envelope
	if err := s.codec.serializer.Deserialize(frame, &env); err != nil {
		return common.Message{}, &common.DecodeError{Kind: common.MsgKUnknown, Err: err}
	}

	msg := common.Message{
		Kind:          env.Kind,
		CorrelationID: env.CorrelationID,
		ValueType:     env.ValueType,
	}

	if env.Value != nil {
		value, err := s.decodeValue(env.ValueType, env.Value)
		if err != nil {
			return msg, &common.DecodeError{Kind: env.Kind, Err: err}
		}
		msg.Value = value
	}

	return msg, nil
}

func (s *objectStream) Write(msg common.Message) error {
	env := common.Envelope{
		Kind:          msg.Kind,
		CorrelationID: msg.CorrelationID,
	}

	if msg.Value != nil {
		data, err := s.codec.serializer.MarshalValue(msg.Value)
		if err != nil {
			return fmt.Errorf("%w: %w", common.ErrSerializationFailure, err)
		}
		env.ValueType = s.codec.types.NameOf(msg.Value)
		env.Value = data
	}

	data, err := s.codec.serializer.Serialize(env)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrSerializationFailure, err)
	}
	if len(data) > MaxFrameSize {
		return fmt.Errorf("%w: %w", common.ErrSerializationFailure, ErrFrameTooLarge)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return writeFrame(s.conn, data)
}

// decodeValue rebuilds the typed value of a registered type name. Unknown types are
// decoded into the serializer's generic representation.
func (s *objectStream) decodeValue(typeName string, data []byte) (any, error) {
	typ, ok := s.codec.types.Lookup(typeName)
	if !ok {
		Logger.Debugf("unknown value type %q, decoding generically", typeName)
		var v any
		if err := s.codec.serializer.UnmarshalValue(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	}

	ptr := reflect.New(typ)
	if err := s.codec.serializer.UnmarshalValue(data, ptr.Interface()); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}
