package codec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"github.com/ValentinKolb/dSock/rpc/common"
	"github.com/ValentinKolb/dSock/rpc/transport"
	"io"
	"net"
	"sync"
)

// DefaultRawReadSize is the size of a single read of the default frame reader
const DefaultRawReadSize = 4096

// FrameReader cuts the next chunk out of a raw byte stream
type FrameReader func(r *bufio.Reader) ([]byte, error)

// SingleReadFrameReader returns whatever a single read delivers, at most size bytes.
// Messages are neither reassembled nor split, so a large or fragmented message may
// arrive in several chunks and two small messages may arrive in one.
func SingleReadFrameReader(size int) FrameReader {
	return func(r *bufio.Reader) ([]byte, error) {
		buf := make([]byte, size)
		n, err := r.Read(buf)
		if n > 0 {
			return buf[:n], nil
		}
		if err == nil {
			err = io.ErrNoProgress
		}
		return nil, err
	}
}

// DelimitedFrameReader returns chunks terminated by delim, the delimiter is stripped
func DelimitedFrameReader(delim byte) FrameReader {
	return func(r *bufio.Reader) ([]byte, error) {
		line, err := r.ReadBytes(delim)
		if err != nil {
			return nil, err
		}
		return line[:len(line)-1], nil
	}
}

// LengthPrefixedFrameReader returns chunks prefixed by a 4 byte big endian length.
// Chunks larger than maxSize end the stream.
func LengthPrefixedFrameReader(maxSize int) FrameReader {
	return func(r *bufio.Reader) ([]byte, error) {
		var header [4]byte
		if _, err := io.ReadFull(r, header[:]); err != nil {
			return nil, err
		}
		n := binary.BigEndian.Uint32(header[:])
		if int64(n) > int64(maxSize) {
			return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
		}
		data := make([]byte, n)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, err
		}
		return data, nil
	}
}

// rawCodec passes bytes through without any envelope
type rawCodec struct {
	reader FrameReader
}

// NewRawCodec creates a codec that turns every chunk of reader into a Request
// carrying []byte. A nil reader uses SingleReadFrameReader(DefaultRawReadSize).
func NewRawCodec(reader FrameReader) transport.ICodec {
	if reader == nil {
		reader = SingleReadFrameReader(DefaultRawReadSize)
	}
	return &rawCodec{reader: reader}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.ICodec)
// --------------------------------------------------------------------------

func (c *rawCodec) Name() string {
	return "raw"
}

// KeepAlive is false, a raw stream has no way to tell a probe from payload
func (c *rawCodec) KeepAlive() bool {
	return false
}

func (c *rawCodec) Setup(conn net.Conn) (transport.IStream, error) {
	return &rawStream{
		conn:   conn,
		reader: bufio.NewReaderSize(conn, DefaultRawReadSize),
		frame:  c.reader,
	}, nil
}

// --------------------------------------------------------------------------
// Stream
// --------------------------------------------------------------------------

type rawStream struct {
	conn   net.Conn
	reader *bufio.Reader
	frame  FrameReader

	writeMu sync.Mutex
}

func (s *rawStream) ReadOne() (common.Message, error) {
	data, err := s.frame(s.reader)
	if err != nil {
		return common.Message{}, err
	}
	return common.Message{Kind: common.MsgKRequest, Value: data}, nil
}

// Write sends the bytes of a Request or Response verbatim. Acknowledges and
// keepalives have no raw representation and write nothing.
func (s *rawStream) Write(msg common.Message) error {
	if msg.Kind != common.MsgKRequest && msg.Kind != common.MsgKResponse {
		return nil
	}

	var data []byte
	switch v := msg.Value.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	case *bytes.Buffer:
		data = v.Bytes()
	default:
		return fmt.Errorf("%w: raw codec cannot write %T", common.ErrSerializationFailure, msg.Value)
	}
	if len(data) == 0 {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.conn.Write(data)
	return err
}
