package client

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dSock/lib/pending"
	"github.com/ValentinKolb/dSock/rpc/codec"
	"github.com/ValentinKolb/dSock/rpc/common"
	"github.com/ValentinKolb/dSock/rpc/engine"
	"github.com/ValentinKolb/dSock/rpc/serializer"
	"github.com/ValentinKolb/dSock/rpc/transport"
	"github.com/ValentinKolb/dSock/rpc/transport/base"
	"github.com/lni/dragonboat/v4/logger"
	"time"
)

var (
	Logger = logger.GetLogger("client")
)

// --------------------------------------------------------------------------
// Object Client
// --------------------------------------------------------------------------

// ObjectClient is a client endpoint exchanging typed values with the structured codec
type ObjectClient struct {
	*base.Endpoint
	types *common.TypeRegistry
}

// NewObjectClient creates a client for addr. Values are encoded with s and declared
// with the names registered in types (nil uses the builtin types only).
//
// Usage:
//
//	c := client.NewObjectClient(
//		eng,
//		tcp.NewTCPClientConnector(common.DefaultDialTimeout),
//		serializer.NewJSONSerializer(),
//		nil,
//		"localhost:8080",
//		common.DefaultEndpointConfig(),
//	)
//
//	if err := c.Connect(ctx); err != nil {
//		panic(err)
//	}
//	pong, err := client.RequestAs[string](ctx, c, "ping")
func NewObjectClient(
	eng *engine.Engine,
	connector transport.IClientConnector,
	s serializer.IRPCSerializer,
	types *common.TypeRegistry,
	addr string,
	config common.EndpointConfig,
) *ObjectClient {
	if types == nil {
		types = common.NewTypeRegistry()
	}

	ep := base.NewClientEndpoint(eng, connector, codec.NewObjectCodec(s, types), addr, config)
	Logger.Debugf("Created object client %s for %s using %s serializer", ep.ID(), addr, s.Name())

	return &ObjectClient{Endpoint: ep, types: types}
}

// Types returns the type registry of the client
func (c *ObjectClient) Types() *common.TypeRegistry {
	return c.types
}

// RequestAs sends value and returns the reply as T. Without a deadline on ctx the
// configured call timeout applies. An acknowledge (no result) yields the zero value of T.
func RequestAs[T any](ctx context.Context, c *ObjectClient, value any) (T, error) {
	var zero T

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Config().CallTimeout)
		defer cancel()
	}

	result, err := c.RequestContext(ctx, value)
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}

	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected reply type %T, expected %T", result, zero)
	}
	return typed, nil
}

// --------------------------------------------------------------------------
// Raw Client
// --------------------------------------------------------------------------

// RawClient is a client endpoint writing and receiving plain bytes. Raw frames carry
// no correlation id, so WriteBytes (or Write) is the only way to send; the request
// methods of the endpoint fail with common.ErrInvalidState.
type RawClient struct {
	*base.Endpoint
}

// NewRawClient creates a raw client for addr. Incoming bytes are cut by reader (nil
// uses single reads of up to 4096 bytes). Raw clients never send keepalives.
func NewRawClient(
	eng *engine.Engine,
	connector transport.IClientConnector,
	reader codec.FrameReader,
	addr string,
	config common.EndpointConfig,
) *RawClient {
	config.SendKeepAlives = false
	ep := base.NewClientEndpoint(eng, connector, codec.NewRawCodec(reader), addr, config)
	Logger.Debugf("Created raw client %s for %s", ep.ID(), addr)

	return &RawClient{Endpoint: ep}
}

// SetByteProcessor sets the handler for incoming bytes, a non-nil result is written back
func (c *RawClient) SetByteProcessor(processor common.ByteProcessor) {
	c.SetDataProcessor(processor.DataProcessor())
}

// WriteBytes writes data verbatim
func (c *RawClient) WriteBytes(data []byte) error {
	return c.Write(data)
}

var errRawRequest = fmt.Errorf("%w: raw clients cannot correlate replies, use WriteBytes", common.ErrInvalidState)

// Call is not supported on raw clients
func (c *RawClient) Call(any) (*pending.Call, error) {
	return nil, errRawRequest
}

// Request is not supported on raw clients
func (c *RawClient) Request(any, time.Duration) (any, error) {
	return nil, errRawRequest
}

// RequestContext is not supported on raw clients
func (c *RawClient) RequestContext(context.Context, any) (any, error) {
	return nil, errRawRequest
}
