package server

import (
	"fmt"
	"github.com/ValentinKolb/dSock/rpc/codec"
	"github.com/ValentinKolb/dSock/rpc/common"
	"github.com/ValentinKolb/dSock/rpc/discovery"
	"github.com/ValentinKolb/dSock/rpc/engine"
	"github.com/ValentinKolb/dSock/rpc/serializer"
	"github.com/ValentinKolb/dSock/rpc/transport"
	"github.com/ValentinKolb/dSock/rpc/transport/base"
	"github.com/lni/dragonboat/v4/logger"
	"os"
	"os/signal"
	"runtime"
	"syscall"
)

var Logger = logger.GetLogger("server")

// --------------------------------------------------------------------------
// Object Server
// --------------------------------------------------------------------------

// ObjectServer accepts endpoints that exchange typed values with the structured codec
type ObjectServer struct {
	*base.Listener
	config common.ServerConfig
}

// NewObjectServer creates a server for config.Endpoint
//
// Usage:
//
//	s := server.NewObjectServer(
//		eng,
//		tcp.NewTCPServerConnector(),
//		serializer.NewJSONSerializer(),
//		nil,
//		*config,
//	)
//	s.SetDataProcessor(func(payload any) (any, bool) {
//		return "pong", payload == "ping"
//	})
//
//	if err := s.Start(); err != nil {
//		panic(err)
//	}
func NewObjectServer(
	eng *engine.Engine,
	connector transport.IServerConnector,
	s serializer.IRPCSerializer,
	types *common.TypeRegistry,
	config common.ServerConfig,
) *ObjectServer {
	ignoreSigURG()

	Logger.Infof("Created object server using %s serializer", s.Name())
	Logger.Infof(config.String())

	return &ObjectServer{
		Listener: base.NewListener(eng, connector, codec.NewObjectCodec(s, types), config),
		config:   config,
	}
}

// Start starts accepting and, if a discovery name is configured, the discovery responder
func (s *ObjectServer) Start() error {
	return start(s.Listener, s.config)
}

// --------------------------------------------------------------------------
// Raw Server
// --------------------------------------------------------------------------

// RawServer accepts endpoints that exchange plain bytes
type RawServer struct {
	*base.Listener
	config common.ServerConfig
}

// NewRawServer creates a raw server for config.Endpoint. Incoming bytes are cut by
// reader (nil uses single reads of up to 4096 bytes).
func NewRawServer(
	eng *engine.Engine,
	connector transport.IServerConnector,
	reader codec.FrameReader,
	config common.ServerConfig,
) *RawServer {
	ignoreSigURG()

	config.Connection.SendKeepAlives = false
	Logger.Infof("Created raw server")
	Logger.Infof(config.String())

	return &RawServer{
		Listener: base.NewListener(eng, connector, codec.NewRawCodec(reader), config),
		config:   config,
	}
}

// SetByteProcessor sets the handler for incoming bytes of every endpoint accepted
// afterwards, a non-nil result is written back
func (s *RawServer) SetByteProcessor(processor common.ByteProcessor) {
	s.SetDataProcessor(processor.DataProcessor())
}

// Start starts accepting and, if a discovery name is configured, the discovery responder
func (s *RawServer) Start() error {
	return start(s.Listener, s.config)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func start(l *base.Listener, config common.ServerConfig) error {
	if err := l.Start(); err != nil {
		return err
	}

	if config.DiscoveryName == "" {
		return nil
	}

	group := config.DiscoveryGroup
	if group == "" {
		group = common.DefaultDiscoveryGroup
	}
	port := config.DiscoveryPort
	if port == 0 {
		port = common.DefaultDiscoveryPort
	}

	responder, err := discovery.NewMulticastResponder(group, port)
	if err == nil {
		err = l.SetupDiscovery(config.DiscoveryName, responder)
	}
	if err != nil {
		l.Kill()
		return fmt.Errorf("failed to set up discovery: %w", err)
	}

	Logger.Infof("Discoverable as %q on %s:%d", config.DiscoveryName, group, port)
	return nil
}

// ignoreSigURG works around https://github.com/golang/go/issues/17393
func ignoreSigURG() {
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}
}

// WaitForSignal blocks until SIGINT or SIGTERM is received or done is closed
func WaitForSignal(done <-chan struct{}) os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		return sig
	case <-done:
		return nil
	}
}
