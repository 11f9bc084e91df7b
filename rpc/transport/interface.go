package transport

import (
	"context"
	"github.com/ValentinKolb/dSock/rpc/common"
	"net"
)

// --------------------------------------------------------------------------
// Codec
// --------------------------------------------------------------------------

// ICodec turns an established connection into a message stream. A codec is
// stateless; all per-connection state lives in the IStream returned by Setup.
type ICodec interface {
	// Name returns the name of the codec (e.g. "object", "raw")
	Name() string
	// KeepAlive reports whether the codec can carry the keepalive protocol
	KeepAlive() bool
	// Setup wraps conn and returns the stream used for the lifetime of the connection
	Setup(conn net.Conn) (IStream, error)
}

// IStream reads and writes messages of one connection. ReadOne is only called by
// the reader goroutine, Write calls are serialized by the caller.
type IStream interface {
	// ReadOne blocks until one message was read. A *common.DecodeError means the
	// frame was skipped and the stream is still usable, any other error ends the stream.
	ReadOne() (common.Message, error)
	// Write frames and writes msg. Errors wrapping common.ErrSerializationFailure
	// mean nothing was written.
	Write(msg common.Message) error
}

// --------------------------------------------------------------------------
// Connectors
// --------------------------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to endpoint
	Connect(ctx context.Context, endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.EndpointConfig) error
}

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.EndpointConfig) error
}

// --------------------------------------------------------------------------
// Datagram hook (discovery)
// --------------------------------------------------------------------------

// DiscoverRequest is the datagram text a discovery responder answers
const DiscoverRequest = "discover"

// Datagram is a single packet received from or sent to Addr
type Datagram struct {
	Data []byte
	Addr net.Addr
}

// IDatagramTransport is the hook a listener uses to attach a discovery responder
type IDatagramTransport interface {
	// OnReceive registers the handler for inbound datagrams
	OnReceive(handler func(d Datagram))
	// Send writes a datagram to d.Addr
	Send(d Datagram) error
	// Start begins receiving datagrams
	Start() error
	// Close stops receiving and releases the socket
	Close() error
}
