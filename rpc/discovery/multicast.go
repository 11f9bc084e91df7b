package discovery

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/dSock/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/net/ipv4"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
)

var Logger = logger.GetLogger("discovery")

// DefaultTTL is the multicast TTL of outgoing datagrams
const DefaultTTL = 64

// ErrResponderClosed is returned by Start after Close
var ErrResponderClosed = errors.New("multicast responder closed")

// maxDatagramSize bounds a single received datagram
const maxDatagramSize = 1500

// MulticastResponder is an IDatagramTransport that joins a multicast group and
// receives datagrams sent to it. Replies are sent unicast to the sender.
type MulticastResponder struct {
	group *net.UDPAddr

	mu      sync.RWMutex
	handler func(d transport.Datagram)
	conn    net.PacketConn
	pconn   *ipv4.PacketConn

	closed atomic.Bool
	done   chan struct{}
}

// NewMulticastResponder creates a responder for the IPv4 multicast group on port
func NewMulticastResponder(group string, port int) (*MulticastResponder, error) {
	ip := net.ParseIP(group)
	if ip == nil || ip.To4() == nil || !ip.IsMulticast() {
		return nil, fmt.Errorf("invalid IPv4 multicast group: %q", group)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", port)
	}

	return &MulticastResponder{
		group: &net.UDPAddr{IP: ip, Port: port},
		done:  make(chan struct{}),
	}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IDatagramTransport)
// --------------------------------------------------------------------------

func (m *MulticastResponder) OnReceive(handler func(d transport.Datagram)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
}

func (m *MulticastResponder) Send(d transport.Datagram) error {
	m.mu.RLock()
	pconn := m.pconn
	m.mu.RUnlock()

	if pconn == nil {
		return fmt.Errorf("multicast responder not started")
	}
	_, err := pconn.WriteTo(d.Data, nil, d.Addr)
	return err
}

func (m *MulticastResponder) Start() error {
	if m.closed.Load() {
		return ErrResponderClosed
	}

	conn, err := net.ListenPacket("udp4", net.JoinHostPort("0.0.0.0", strconv.Itoa(m.group.Port)))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", m.group.Port, err)
	}

	pconn := ipv4.NewPacketConn(conn)
	if err := joinGroup(pconn, m.group); err != nil {
		_ = conn.Close()
		return err
	}
	if err := pconn.SetMulticastTTL(DefaultTTL); err != nil {
		Logger.Warningf("Failed to set multicast TTL: %v", err)
	}
	if err := pconn.SetMulticastLoopback(true); err != nil {
		Logger.Warningf("Failed to enable multicast loopback: %v", err)
	}

	// Close may have run while the socket was set up, it only sees an installed conn
	m.mu.Lock()
	if m.closed.Load() {
		m.mu.Unlock()
		_ = conn.Close()
		return ErrResponderClosed
	}
	if m.conn != nil {
		m.mu.Unlock()
		_ = conn.Close()
		return fmt.Errorf("multicast responder already started")
	}
	m.conn = conn
	m.pconn = pconn
	m.mu.Unlock()

	Logger.Infof("Listening for discovery requests on %s", m.group)
	go m.readLoop(pconn)
	return nil
}

func (m *MulticastResponder) Close() error {
	m.mu.Lock()
	if !m.closed.CompareAndSwap(false, true) {
		m.mu.Unlock()
		return nil
	}
	conn := m.conn
	m.mu.Unlock()

	if conn == nil {
		close(m.done)
		return nil
	}

	err := conn.Close()
	<-m.done
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// readLoop passes every received datagram to the handler until the socket is closed
func (m *MulticastResponder) readLoop(pconn *ipv4.PacketConn) {
	defer close(m.done)

	buf := make([]byte, maxDatagramSize)
	for {
		n, _, src, err := pconn.ReadFrom(buf)
		if err != nil {
			if m.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			Logger.Warningf("Failed to read datagram: %v", err)
			continue
		}

		m.mu.RLock()
		handler := m.handler
		m.mu.RUnlock()

		if handler != nil {
			data := make([]byte, n)
			copy(data, buf[:n])
			handler(transport.Datagram{Data: data, Addr: src})
		}
	}
}

// joinGroup joins group on every multicast capable interface. If no interface could
// join, the system default interface is used.
func joinGroup(pconn *ipv4.PacketConn, group *net.UDPAddr) error {
	joined := 0

	interfaces, err := net.Interfaces()
	if err == nil {
		for i := range interfaces {
			ifi := &interfaces[i]
			if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagMulticast == 0 {
				continue
			}
			if err := pconn.JoinGroup(ifi, group); err != nil {
				Logger.Debugf("Failed to join %s on %s: %v", group, ifi.Name, err)
				continue
			}
			joined++
		}
	}

	if joined > 0 {
		return nil
	}
	if err := pconn.JoinGroup(nil, group); err != nil {
		return fmt.Errorf("failed to join multicast group %s: %w", group, err)
	}
	return nil
}
