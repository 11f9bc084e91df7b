package base

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dSock/lib/events"
	"github.com/ValentinKolb/dSock/rpc/codec"
	"github.com/ValentinKolb/dSock/rpc/common"
	"github.com/ValentinKolb/dSock/rpc/engine"
	"github.com/ValentinKolb/dSock/rpc/serializer"
	"github.com/ValentinKolb/dSock/rpc/transport"
	"github.com/ValentinKolb/dSock/rpc/transport/tcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Test Helper
// --------------------------------------------------------------------------

// recorder counts dispatched events per kind
type recorder struct {
	mu     sync.Mutex
	counts map[events.Kind]int
}

func record(bus *events.Bus, kinds ...events.Kind) *recorder {
	r := &recorder{counts: make(map[events.Kind]int)}
	for _, kind := range kinds {
		bus.Subscribe(kind, func(ev events.Event) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.counts[ev.Kind()]++
		})
	}
	return r
}

func (r *recorder) count(kind events.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[kind]
}

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	eng := engine.New(common.EngineConfig{})
	t.Cleanup(eng.Shutdown)
	return eng
}

func objectCodec() transport.ICodec {
	return codec.NewObjectCodec(serializer.NewJSONSerializer(), nil)
}

// pingPong answers "ping" with "pong" and acknowledges everything else
func pingPong(payload any) (any, bool) {
	if payload == "ping" {
		return "pong", true
	}
	return nil, false
}

func defaultServerConfig() common.ServerConfig {
	return common.ServerConfig{
		Endpoint:   "127.0.0.1:0",
		Connection: common.DefaultEndpointConfig(),
	}
}

func newTestListener(t *testing.T, eng *engine.Engine, c transport.ICodec, processor common.DataProcessor) *Listener {
	t.Helper()

	l := NewListener(eng, tcp.NewTCPServerConnector(), c, defaultServerConfig())
	l.SetDataProcessor(processor)
	require.NoError(t, l.Start())
	t.Cleanup(l.Kill)
	return l
}

func newTestClient(t *testing.T, eng *engine.Engine, c transport.ICodec, addr string) *Endpoint {
	t.Helper()

	ep := NewClientEndpoint(eng, tcp.NewTCPClientConnector(time.Second), c, addr, common.DefaultEndpointConfig())
	t.Cleanup(ep.Kill)
	return ep
}

// closedAddr returns an address nobody listens on
func closedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func waitDone(t *testing.T, ep *Endpoint) {
	t.Helper()
	select {
	case <-ep.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("%s was not killed", ep)
	}
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestPingPong(t *testing.T) {
	eng := newTestEngine(t)
	l := newTestListener(t, eng, objectCodec(), pingPong)

	ep := newTestClient(t, eng, objectCodec(), l.Addr().String())
	require.NoError(t, ep.Connect(context.Background()))
	assert.True(t, ep.IsConnected())

	start := time.Now()
	result, err := ep.Request("ping", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "pong", result)
	assert.Less(t, time.Since(start), time.Second)

	// no result is answered with an acknowledge
	result, err = ep.Request("other", time.Second)
	require.NoError(t, err)
	assert.Nil(t, result)

	stats := ep.Stats()
	assert.EqualValues(t, 2, stats.Sent)
	assert.EqualValues(t, 2, stats.Received)
	assert.EqualValues(t, 2, stats.Calls)
	assert.Positive(t, stats.CallMean)
	assert.Zero(t, eng.Calls().Len())
}

func TestRequestOutlivesCallTimeout(t *testing.T) {
	eng := engine.New(common.EngineConfig{JanitorInterval: 20 * time.Millisecond})
	t.Cleanup(eng.Shutdown)

	l := newTestListener(t, eng, objectCodec(), func(payload any) (any, bool) {
		time.Sleep(300 * time.Millisecond)
		return pingPong(payload)
	})

	config := common.DefaultEndpointConfig()
	config.CallTimeout = 100 * time.Millisecond
	ep := NewClientEndpoint(eng, tcp.NewTCPClientConnector(time.Second), objectCodec(), l.Addr().String(), config)
	t.Cleanup(ep.Kill)
	require.NoError(t, ep.Connect(context.Background()))

	// the janitor sweeps only calls nobody awaits
	result, err := ep.Request("ping", 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "pong", result)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err = ep.RequestContext(ctx, "ping")
	require.NoError(t, err)
	assert.Equal(t, "pong", result)
	assert.Zero(t, eng.Metrics().ExpiredCalls.Get())

	// an unawaited call still expires after the call timeout
	call, err := ep.Call("orphan")
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return eng.Metrics().ExpiredCalls.Get() == 1 }, 250*time.Millisecond, 5*time.Millisecond)
	assert.False(t, eng.Calls().Pending(call.ID()))
}

func TestConnectTwice(t *testing.T) {
	eng := newTestEngine(t)
	l := newTestListener(t, eng, objectCodec(), pingPong)

	ep := newTestClient(t, eng, objectCodec(), l.Addr().String())
	require.NoError(t, ep.Connect(context.Background()))
	assert.ErrorIs(t, ep.Connect(context.Background()), common.ErrInvalidState)
}

func TestKeepAlivePingUpdate(t *testing.T) {
	eng := newTestEngine(t)
	l := newTestListener(t, eng, objectCodec(), pingPong)

	ep := newTestClient(t, eng, objectCodec(), l.Addr().String())
	ep.SetKeepAliveInterval(50 * time.Millisecond)
	rec := record(ep.Bus(), events.KindPingUpdate, events.KindKeepAliveTimeout)
	require.NoError(t, ep.Connect(context.Background()))

	assert.Eventually(t, func() bool {
		return rec.count(events.KindPingUpdate) >= 2
	}, 2*time.Second, 10*time.Millisecond)

	assert.Positive(t, ep.Ping())
	assert.GreaterOrEqual(t, ep.Stats().Pings, int64(2))
	assert.Zero(t, rec.count(events.KindKeepAliveTimeout))
}

func TestSilentPeerKeepAliveTimeout(t *testing.T) {
	eng := newTestEngine(t)

	// a plain tcp peer that accepts and never answers
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
		}
	}()

	ep := newTestClient(t, eng, objectCodec(), ln.Addr().String())
	ep.SetKeepAliveInterval(100 * time.Millisecond)
	rec := record(ep.Bus(), events.KindKeepAliveTimeout, events.KindConnectionLost, events.KindKilled)

	require.NoError(t, ep.Connect(context.Background()))
	waitDone(t, ep)

	assert.Equal(t, 1, rec.count(events.KindKeepAliveTimeout))
	assert.Zero(t, rec.count(events.KindConnectionLost))
	assert.Equal(t, 1, rec.count(events.KindKilled))
	assert.Equal(t, StateKilled, ep.State())
	assert.ErrorIs(t, ep.Err(), common.ErrKeepAliveTimeout)
}

func TestReconnectExhaustion(t *testing.T) {
	eng := newTestEngine(t)

	ep := newTestClient(t, eng, objectCodec(), closedAddr(t))
	ep.SetAutoReconnect(3)
	ep.SetReconnectDelay(10 * time.Millisecond)
	rec := record(ep.Bus(),
		events.KindConnectionFailed,
		events.KindReconnectStarted,
		events.KindReconnectAttempt,
		events.KindReconnectAttemptFailed,
		events.KindReconnectFailed,
		events.KindKilled,
	)

	err := ep.Connect(context.Background())
	assert.ErrorIs(t, err, common.ErrReconnectFailed)

	assert.Equal(t, 1, rec.count(events.KindConnectionFailed))
	assert.Equal(t, 1, rec.count(events.KindReconnectStarted))
	assert.Equal(t, 3, rec.count(events.KindReconnectAttempt))
	assert.Equal(t, 3, rec.count(events.KindReconnectAttemptFailed))
	assert.Equal(t, 1, rec.count(events.KindReconnectFailed))
	assert.Equal(t, 1, rec.count(events.KindKilled))
	assert.Equal(t, StateKilled, ep.State())
}

func TestConnectFailure(t *testing.T) {
	eng := newTestEngine(t)

	t.Run("Unhandled", func(t *testing.T) {
		ep := newTestClient(t, eng, objectCodec(), closedAddr(t))

		err := ep.Connect(context.Background())
		assert.ErrorIs(t, err, common.ErrConnectFailure)
		assert.Equal(t, StateKilled, ep.State())
	})

	t.Run("Handled", func(t *testing.T) {
		ep := newTestClient(t, eng, objectCodec(), closedAddr(t))
		rec := record(ep.Bus(), events.KindConnectionFailed)

		assert.NoError(t, ep.Connect(context.Background()))
		assert.Equal(t, 1, rec.count(events.KindConnectionFailed))
		assert.Equal(t, StateKilled, ep.State())
		assert.ErrorIs(t, ep.Err(), common.ErrConnectFailure)
	})
}

func TestReconnectAfterLoss(t *testing.T) {
	eng := newTestEngine(t)
	l := newTestListener(t, eng, objectCodec(), pingPong)

	ep := newTestClient(t, eng, objectCodec(), l.Addr().String())
	ep.SetAutoReconnect(5)
	ep.SetReconnectDelay(20 * time.Millisecond)
	rec := record(ep.Bus(), events.KindConnectionLost, events.KindReconnectSucceeded, events.KindKilled)

	require.NoError(t, ep.Connect(context.Background()))
	require.Eventually(t, func() bool { return l.Count() == 1 }, time.Second, 10*time.Millisecond)

	// drop the connection from the server side
	l.Endpoints()[0].Kill()

	require.Eventually(t, func() bool {
		return rec.count(events.KindReconnectSucceeded) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, rec.count(events.KindConnectionLost))
	assert.Zero(t, rec.count(events.KindKilled))
	assert.True(t, ep.IsConnected())

	result, err := ep.Request("ping", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "pong", result)
}

func TestKillDuringReconnect(t *testing.T) {
	eng := newTestEngine(t)

	ep := newTestClient(t, eng, objectCodec(), closedAddr(t))
	ep.SetAutoReconnect(common.UnlimitedReconnectAttempts)
	ep.SetReconnectDelay(20 * time.Millisecond)
	rec := record(ep.Bus(), events.KindReconnectFailed, events.KindKilled)

	errCh := make(chan error, 1)
	go func() { errCh <- ep.Connect(context.Background()) }()

	time.Sleep(100 * time.Millisecond)
	ep.Kill()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, common.ErrKilled)
	case <-time.After(2 * time.Second):
		t.Fatal("Connect did not return after Kill")
	}
	assert.Zero(t, rec.count(events.KindReconnectFailed))
	assert.Equal(t, 1, rec.count(events.KindKilled))
}

func TestDoubleKill(t *testing.T) {
	eng := newTestEngine(t)
	l := newTestListener(t, eng, objectCodec(), pingPong)
	removed := record(l.Bus(), events.KindRemovedConnection)

	client := newTestClient(t, eng, objectCodec(), l.Addr().String())
	client.SetAutoReconnect(0)
	record(client.Bus(), events.KindConnectionLost)
	require.NoError(t, client.Connect(context.Background()))
	require.Eventually(t, func() bool { return l.Count() == 1 }, time.Second, 10*time.Millisecond)

	ep := l.Endpoints()[0]
	killed := record(ep.Bus(), events.KindKilled)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ep.Kill()
		}()
	}
	wg.Wait()
	ep.Kill()

	waitDone(t, ep)
	assert.Equal(t, 1, killed.count(events.KindKilled))
	assert.Equal(t, 1, removed.count(events.KindRemovedConnection))
	assert.Zero(t, l.Count())
}

func TestListenerRegistry(t *testing.T) {
	eng := newTestEngine(t)
	l := newTestListener(t, eng, objectCodec(), pingPong)
	rec := record(l.Bus(), events.KindNewConnection, events.KindRemovedConnection)

	// accepted endpoints lose their connection when a client is killed
	var lost sync.WaitGroup
	l.SetConnectionHandler(func(ep *Endpoint) {
		lost.Add(1)
		events.On(ep.Bus(), func(events.ConnectionLost) { lost.Done() })
	})

	clients := make([]*Endpoint, 3)
	for i := range clients {
		clients[i] = newTestClient(t, eng, objectCodec(), l.Addr().String())
		require.NoError(t, clients[i].Connect(context.Background()))
	}

	require.Eventually(t, func() bool { return l.Count() == 3 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 3, rec.count(events.KindNewConnection))

	for i, client := range clients {
		client.Kill()
		require.Eventually(t, func() bool {
			return rec.count(events.KindRemovedConnection) == i+1
		}, 2*time.Second, 10*time.Millisecond)
	}

	lost.Wait()
	assert.Zero(t, l.Count())
	assert.Equal(t, 3, rec.count(events.KindRemovedConnection))
}

func TestListenerKill(t *testing.T) {
	eng := newTestEngine(t)
	l := newTestListener(t, eng, objectCodec(), pingPong)
	rec := record(l.Bus(), events.KindServerKilled, events.KindRemovedConnection)

	client := newTestClient(t, eng, objectCodec(), l.Addr().String())
	record(client.Bus(), events.KindConnectionLost)
	require.NoError(t, client.Connect(context.Background()))
	require.Eventually(t, func() bool { return l.Count() == 1 }, time.Second, 10*time.Millisecond)

	l.Kill()
	l.Kill()

	assert.Equal(t, 1, rec.count(events.KindServerKilled))
	assert.Equal(t, 1, rec.count(events.KindRemovedConnection))
	assert.Zero(t, l.Count())
	waitDone(t, client)
}

func TestSerializationFailure(t *testing.T) {
	eng := newTestEngine(t)
	binary := codec.NewObjectCodec(serializer.NewBinarySerializer(), nil)
	l := newTestListener(t, eng, binary, pingPong)

	ep := newTestClient(t, eng, binary, l.Addr().String())
	rec := record(ep.Bus(), events.KindSerializationFailure)
	require.NoError(t, ep.Connect(context.Background()))

	call, err := ep.Call(struct{ A int }{A: 1})
	assert.ErrorIs(t, err, common.ErrSerializationFailure)
	require.NotNil(t, call)
	assert.True(t, eng.Calls().Pending(call.ID()))
	assert.Equal(t, 1, rec.count(events.KindSerializationFailure))

	// the connection is still usable
	result, err := ep.Request("ping", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "pong", result)
}

func TestCallNotConnected(t *testing.T) {
	eng := newTestEngine(t)
	ep := newTestClient(t, eng, objectCodec(), closedAddr(t))

	_, err := ep.Call("ping")
	assert.ErrorIs(t, err, common.ErrNotConnected)

	ep.Kill()
	_, err = ep.Call("ping")
	assert.ErrorIs(t, err, common.ErrKilled)
}

func TestRawEcho(t *testing.T) {
	eng := newTestEngine(t)
	echo := func(payload any) (any, bool) { return payload, true }
	l := newTestListener(t, eng, codec.NewRawCodec(nil), echo)

	t.Run("PlainSocket", func(t *testing.T) {
		conn, err := net.Dial("tcp", l.Addr().String())
		require.NoError(t, err)
		defer conn.Close()

		_, err = conn.Write([]byte("hello"))
		require.NoError(t, err)

		buf := make([]byte, 5)
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
		_, err = io.ReadFull(conn, buf)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(buf))
	})

	t.Run("Endpoint", func(t *testing.T) {
		received := make(chan []byte, 1)
		ep := newTestClient(t, eng, codec.NewRawCodec(nil), l.Addr().String())
		ep.SetDataProcessor(func(payload any) (any, bool) {
			received <- payload.([]byte)
			return nil, false
		})
		require.NoError(t, ep.Connect(context.Background()))

		require.NoError(t, ep.Write([]byte("raw bytes")))

		select {
		case data := <-received:
			assert.Equal(t, "raw bytes", string(data))
		case <-time.After(time.Second):
			t.Fatal("no echo received")
		}
	})
}

func TestRetryable(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want bool
	}{
		{"Refused", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, true},
		{"UnknownHost", &net.OpError{Op: "dial", Err: &net.DNSError{Name: "nowhere", IsNotFound: true}}, false},
		{"Upgrade", &net.OpError{Op: "set", Err: errors.New("invalid argument")}, false},
		{"Timeout", context.DeadlineExceeded, true},
		{"Other", errors.New("codec failed"), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, retryable(tc.err))
		})
	}
}

func TestStateTransitions(t *testing.T) {
	allowed := map[State][]State{
		StateInit:         {StateConnecting, StateKilled},
		StateConnecting:   {StateConnected, StateReconnecting, StateKilled},
		StateConnected:    {StateLost, StateKilled},
		StateLost:         {StateReconnecting, StateKilled},
		StateReconnecting: {StateConnected, StateKilled},
		StateKilled:       {},
	}

	all := []State{StateInit, StateConnecting, StateConnected, StateLost, StateReconnecting, StateKilled}
	for from, targets := range allowed {
		for _, to := range all {
			assert.Equal(t, contains(targets, to), from.CanTransition(to), "%s -> %s", from, to)
		}
	}
}

func contains(states []State, s State) bool {
	for _, candidate := range states {
		if candidate == s {
			return true
		}
	}
	return false
}
