package base

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/dSock/lib/events"
	"github.com/ValentinKolb/dSock/rpc/common"
	"github.com/ValentinKolb/dSock/rpc/engine"
	"github.com/ValentinKolb/dSock/rpc/transport"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var ServerLogger = logger.GetLogger("server")

// acceptBackoff is the pause after a failed accept, so a persistent error does not spin
const acceptBackoff = 50 * time.Millisecond

// Listener accepts connections and wraps each of them in a server side Endpoint.
// It keeps a registry of all live endpoints; an endpoint leaves the registry when
// it is killed.
type Listener struct {
	id        string
	engine    *engine.Engine
	connector transport.IServerConnector
	codec     transport.ICodec
	config    common.ServerConfig
	bus       *events.Bus

	mu           sync.RWMutex // protects the fields below
	listener     net.Listener
	processor    common.DataProcessor
	onConnection func(ep *Endpoint)
	discovery    transport.IDatagramTransport

	endpoints *xsync.MapOf[string, *Endpoint]

	killed atomic.Bool
	done   chan struct{}
}

// NewListener creates a listener for config.Endpoint. Call Start to accept connections.
func NewListener(eng *engine.Engine, connector transport.IServerConnector, codec transport.ICodec, config common.ServerConfig) *Listener {
	return &Listener{
		id:        uuid.NewString(),
		engine:    eng,
		connector: connector,
		codec:     codec,
		config:    config,
		bus:       events.NewBus(),
		endpoints: xsync.NewMapOf[string, *Endpoint](),
		done:      make(chan struct{}),
	}
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

// ID returns the unique id of the listener
func (l *Listener) ID() string {
	return l.id
}

// Bus returns the event bus of the listener
func (l *Listener) Bus() *events.Bus {
	return l.bus
}

// Addr returns the address the listener is bound to, nil before Start
func (l *Listener) Addr() net.Addr {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.listener == nil {
		return nil
	}
	return l.listener.Addr()
}

// Endpoints returns a snapshot of all live endpoints
func (l *Listener) Endpoints() []*Endpoint {
	result := make([]*Endpoint, 0, l.endpoints.Size())
	l.endpoints.Range(func(_ string, ep *Endpoint) bool {
		result = append(result, ep)
		return true
	})
	return result
}

// Count returns the number of live endpoints
func (l *Listener) Count() int {
	return l.endpoints.Size()
}

// Done is closed once the listener is killed
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// SetDataProcessor sets the request handler of every endpoint accepted afterwards
func (l *Listener) SetDataProcessor(processor common.DataProcessor) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.processor = processor
}

// SetConnectionHandler registers a hook that runs for every accepted endpoint before
// its loops start, e.g. to subscribe to its events
func (l *Listener) SetConnectionHandler(handler func(ep *Endpoint)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onConnection = handler
}

// --------------------------------------------------------------------------
// Accepting
// --------------------------------------------------------------------------

// Start creates the listener and runs the accept loop in the background
func (l *Listener) Start() error {
	if l.killed.Load() {
		return common.ErrKilled
	}

	listener, err := l.connector.Listen(l.config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	l.mu.Lock()
	if l.listener != nil {
		l.mu.Unlock()
		_ = listener.Close()
		return fmt.Errorf("%w: listener already started", common.ErrInvalidState)
	}
	l.listener = listener
	l.mu.Unlock()

	l.engine.Register(l)
	ServerLogger.Infof("Starting %s server on %s using %s codec", l.connector.GetName(), listener.Addr(), l.codec.Name())

	go l.acceptLoop()
	return nil
}

// acceptLoop accepts connections until the listener is killed
func (l *Listener) acceptLoop() {
	for {
		err := l.AcceptOnce()
		if err == nil {
			continue
		}
		if l.killed.Load() || errors.Is(err, net.ErrClosed) || errors.Is(err, common.ErrKilled) {
			return
		}

		ServerLogger.Errorf("Accept error: %v", err)
		l.bus.Dispatch(events.ServerError{Origin: l.origin(), Err: err})
		time.Sleep(acceptBackoff)
	}
}

// AcceptOnce accepts a single connection, registers its endpoint and starts it
func (l *Listener) AcceptOnce() error {
	l.mu.RLock()
	listener := l.listener
	l.mu.RUnlock()

	if listener == nil {
		return fmt.Errorf("%w: listener not started", common.ErrInvalidState)
	}

	conn, err := listener.Accept()
	if err != nil {
		return err
	}

	if err := l.connector.UpgradeConnection(conn, l.config.Connection); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to upgrade connection from %s: %w", conn.RemoteAddr(), err)
	}

	ep := newServerEndpoint(l.engine, l.codec, conn, l.config.Connection, &owner{id: l.id, remove: l.removeEndpoint})

	l.mu.RLock()
	ep.SetDataProcessor(l.processor)
	onConnection := l.onConnection
	l.mu.RUnlock()

	l.endpoints.Store(ep.ID(), ep)

	// Kill ranges over the registry, an endpoint stored after that range is killed here
	if l.killed.Load() {
		_ = conn.Close()
		ep.Kill()
		return common.ErrKilled
	}

	if onConnection != nil {
		onConnection(ep)
	}

	l.engine.Metrics().Accepted.Inc()
	ServerLogger.Infof("New connection from %s", ep.Addr())
	l.bus.Dispatch(events.NewConnection{Origin: l.origin(), EndpointID: ep.ID(), RemoteAddr: ep.Addr()})

	if err := ep.start(conn); err != nil {
		ep.kill(err)
		if errors.Is(err, common.ErrKilled) {
			return nil // killed by the connection handler
		}
		return err
	}
	return nil
}

// removeEndpoint is the owner callback of accepted endpoints
func (l *Listener) removeEndpoint(ep *Endpoint) {
	if _, ok := l.endpoints.LoadAndDelete(ep.ID()); !ok {
		return
	}

	l.engine.Metrics().Removed.Inc()
	ServerLogger.Infof("Removed connection %s", ep.Addr())
	l.bus.Dispatch(events.RemovedConnection{Origin: l.origin(), EndpointID: ep.ID(), RemoteAddr: ep.Addr()})
}

// --------------------------------------------------------------------------
// Discovery
// --------------------------------------------------------------------------

// SetupDiscovery attaches a datagram transport that answers transport.DiscoverRequest
// with "<name> [<host>:<port>]". The transport is closed when the listener is killed.
func (l *Listener) SetupDiscovery(name string, t transport.IDatagramTransport) error {
	l.mu.Lock()
	if l.discovery != nil {
		l.mu.Unlock()
		return fmt.Errorf("%w: discovery already set up", common.ErrInvalidState)
	}
	l.discovery = t
	l.mu.Unlock()

	t.OnReceive(func(d transport.Datagram) {
		if string(d.Data) != transport.DiscoverRequest {
			return
		}

		reply := fmt.Sprintf("%s [%s]", name, advertisedAddr(l.Addr()))
		if err := t.Send(transport.Datagram{Data: []byte(reply), Addr: d.Addr}); err != nil {
			ServerLogger.Warningf("Failed to answer discovery request from %s: %v", d.Addr, err)
			l.bus.Dispatch(events.ServerError{Origin: l.origin(), Err: err})
		}
	})

	if err := t.Start(); err != nil {
		return fmt.Errorf("failed to start discovery: %w", err)
	}

	if l.killed.Load() {
		_ = t.Close()
		return common.ErrKilled
	}
	return nil
}

// advertisedAddr replaces an unspecified listen host with the first non loopback
// address of this machine
func advertisedAddr(addr net.Addr) string {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		if addr == nil {
			return ""
		}
		return addr.String()
	}
	if !tcpAddr.IP.IsUnspecified() {
		return tcpAddr.String()
	}

	host := "127.0.0.1"
	if addrs, err := net.InterfaceAddrs(); err == nil {
		for _, a := range addrs {
			if ipNet, ok := a.(*net.IPNet); ok && !ipNet.IP.IsLoopback() && ipNet.IP.To4() != nil {
				host = ipNet.IP.String()
				break
			}
		}
	}
	return net.JoinHostPort(host, fmt.Sprint(tcpAddr.Port))
}

// --------------------------------------------------------------------------
// Kill
// --------------------------------------------------------------------------

// Kill stops accepting, closes the listener and the discovery transport and kills
// every live endpoint. Calling Kill more than once is a no-op.
func (l *Listener) Kill() {
	if !l.killed.CompareAndSwap(false, true) {
		return
	}

	l.mu.Lock()
	listener := l.listener
	discovery := l.discovery
	l.mu.Unlock()

	if listener != nil {
		_ = listener.Close()
	}
	if discovery != nil {
		_ = discovery.Close()
	}

	l.endpoints.Range(func(_ string, ep *Endpoint) bool {
		ep.Kill()
		return true
	})

	l.engine.Unregister(l)
	ServerLogger.Infof("Killed server %s", l.id)
	l.bus.Dispatch(events.ServerKilled{Origin: l.origin()})
	close(l.done)
}

func (l *Listener) origin() events.Origin {
	origin := events.Origin{ID: l.id}
	if addr := l.Addr(); addr != nil {
		origin.Addr = addr.String()
	}
	return origin
}
