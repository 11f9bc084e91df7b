package base

import (
	"net"
	"sync"
	"testing"

	"github.com/ValentinKolb/dSock/rpc/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDatagrams is an in-memory datagram transport
type fakeDatagrams struct {
	mu      sync.Mutex
	handler func(d transport.Datagram)
	sent    []transport.Datagram
	started bool
	closed  bool
}

func (f *fakeDatagrams) OnReceive(handler func(d transport.Datagram)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = handler
}

func (f *fakeDatagrams) Send(d transport.Datagram) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, d)
	return nil
}

func (f *fakeDatagrams) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return nil
}

func (f *fakeDatagrams) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeDatagrams) receive(data string, from net.Addr) {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	handler(transport.Datagram{Data: []byte(data), Addr: from})
}

func TestSetupDiscovery(t *testing.T) {
	eng := newTestEngine(t)
	l := newTestListener(t, eng, objectCodec(), pingPong)

	fake := &fakeDatagrams{}
	require.NoError(t, l.SetupDiscovery("test-server", fake))
	assert.True(t, fake.started)
	assert.Error(t, l.SetupDiscovery("again", &fakeDatagrams{}))

	from := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 4242}
	fake.receive("hello", from)
	fake.receive("discover\n", from)
	fake.receive(transport.DiscoverRequest, from)

	require.Len(t, fake.sent, 1)
	assert.Equal(t, from, fake.sent[0].Addr)
	assert.Equal(t, "test-server ["+l.Addr().String()+"]", string(fake.sent[0].Data))

	l.Kill()
	assert.True(t, fake.closed)
}

func TestAdvertisedAddr(t *testing.T) {
	assert.Equal(t, "", advertisedAddr(nil))
	assert.Equal(t, "127.0.0.1:80", advertisedAddr(&net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 80}))
	assert.Equal(t, "/tmp/dsock.sock", advertisedAddr(&net.UnixAddr{Name: "/tmp/dsock.sock", Net: "unix"}))

	host, port, err := net.SplitHostPort(advertisedAddr(&net.TCPAddr{IP: net.IPv4zero, Port: 9000}))
	require.NoError(t, err)
	assert.Equal(t, "9000", port)
	assert.False(t, net.ParseIP(host).IsUnspecified())
}

func TestAcceptOnceNotStarted(t *testing.T) {
	eng := newTestEngine(t)
	l := NewListener(eng, nil, objectCodec(), defaultServerConfig())
	assert.Error(t, l.AcceptOnce())
	assert.Nil(t, l.Addr())
}
