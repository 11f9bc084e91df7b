package base

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dSock/lib/events"
	"github.com/ValentinKolb/dSock/lib/pending"
	"github.com/ValentinKolb/dSock/rpc/common"
	"github.com/ValentinKolb/dSock/rpc/engine"
	"github.com/ValentinKolb/dSock/rpc/transport"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	gometrics "github.com/rcrowley/go-metrics"
	"golang.org/x/time/rate"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("endpoint")

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// owner is the non-owning back reference of an accepted endpoint to its listener
type owner struct {
	id     string
	remove func(ep *Endpoint)
}

// session is one established connection. Every session runs its own reader loop and
// optionally a keepalive loop; a new session is only started after all loops of the
// previous one returned.
type session struct {
	conn   net.Conn
	stream transport.IStream

	ctx    context.Context // done once the session is closed
	cancel context.CancelFunc

	lost atomic.Bool // set by the first detector of a break (or by Kill)
	wg   sync.WaitGroup
}

// close cancels the session and closes its connection, close errors are ignored
func (s *session) close() {
	s.cancel()
	_ = s.conn.Close()
}

// Stats is a snapshot of the per-endpoint counters
type Stats struct {
	Received int64
	Sent     int64
	Pings    int64
	PingMean time.Duration
	PingMax  time.Duration
	Calls    int64 // completed requests
	CallMean time.Duration
}

// -----------------------------------------------------------
// Endpoint
// -----------------------------------------------------------

// Endpoint is one supervised bidirectional connection. It owns the lifecycle state
// machine, the reader and keepalive loops and the reconnect procedure. Client
// endpoints dial through their connector, server endpoints are created by a Listener.
type Endpoint struct {
	id        string
	addr      string
	engine    *engine.Engine
	connector transport.IClientConnector // nil for accepted endpoints
	codec     transport.ICodec
	bus       *events.Bus
	owner     *owner

	mu        sync.RWMutex // protects the fields below
	config    common.EndpointConfig
	processor common.DataProcessor
	state     State
	session   *session
	err       error

	ping atomic.Int64 // last keepalive round trip in nanoseconds

	ctx    context.Context // canceled by Kill, aborts reconnect waits
	cancel context.CancelFunc
	killed atomic.Bool
	done   chan struct{}

	stats     gometrics.Registry
	received  gometrics.Counter
	sent      gometrics.Counter
	pingTimer gometrics.Timer
	callTimer gometrics.Timer
}

// NewClientEndpoint creates an endpoint that connects to addr through connector.
// Call Connect to establish the connection.
func NewClientEndpoint(eng *engine.Engine, connector transport.IClientConnector, codec transport.ICodec, addr string, config common.EndpointConfig) *Endpoint {
	return newEndpoint(eng, connector, codec, addr, config, nil)
}

// newServerEndpoint wraps an accepted connection. Accepted endpoints never reconnect.
func newServerEndpoint(eng *engine.Engine, codec transport.ICodec, conn net.Conn, config common.EndpointConfig, o *owner) *Endpoint {
	config.AutoReconnect = false
	return newEndpoint(eng, nil, codec, conn.RemoteAddr().String(), config, o)
}

func newEndpoint(eng *engine.Engine, connector transport.IClientConnector, codec transport.ICodec, addr string, config common.EndpointConfig, o *owner) *Endpoint {
	ctx, cancel := context.WithCancel(context.Background())
	stats := gometrics.NewRegistry()

	e := &Endpoint{
		id:        uuid.NewString(),
		addr:      addr,
		engine:    eng,
		connector: connector,
		codec:     codec,
		bus:       events.NewBus(),
		owner:     o,
		config:    config,
		state:     StateInit,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		stats:     stats,
		received:  gometrics.NewRegisteredCounter("messages.received", stats),
		sent:      gometrics.NewRegisteredCounter("messages.sent", stats),
		pingTimer: gometrics.NewRegisteredTimer("keepalive.ping", stats),
		callTimer: gometrics.NewRegisteredTimer("calls.latency", stats),
	}

	eng.Register(e)
	return e
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

// ID returns the unique id of the endpoint
func (e *Endpoint) ID() string {
	return e.id
}

// Addr returns the remote address of the endpoint
func (e *Endpoint) Addr() string {
	return e.addr
}

// Bus returns the event bus of the endpoint
func (e *Endpoint) Bus() *events.Bus {
	return e.bus
}

// State returns the current lifecycle state
func (e *Endpoint) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// IsConnected reports whether a session is running
func (e *Endpoint) IsConnected() bool {
	return e.State() == StateConnected
}

// Ping returns the round trip time of the last acknowledged keepalive, 0 if none was
// acknowledged yet
func (e *Endpoint) Ping() time.Duration {
	return time.Duration(e.ping.Load())
}

// Err returns the fault that terminated the endpoint, nil while it is alive or after
// a regular Kill
func (e *Endpoint) Err() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.err
}

// Done is closed once the endpoint is killed
func (e *Endpoint) Done() <-chan struct{} {
	return e.done
}

// Config returns a copy of the current configuration
func (e *Endpoint) Config() common.EndpointConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.config
}

// Stats returns a snapshot of the message and keepalive counters
func (e *Endpoint) Stats() Stats {
	ping := e.pingTimer.Snapshot()
	calls := e.callTimer.Snapshot()
	return Stats{
		Received: e.received.Snapshot().Count(),
		Sent:     e.sent.Snapshot().Count(),
		Pings:    ping.Count(),
		PingMean: time.Duration(ping.Mean()),
		PingMax:  time.Duration(ping.Max()),
		Calls:    calls.Count(),
		CallMean: time.Duration(calls.Mean()),
	}
}

// StatsRegistry returns the go-metrics registry behind Stats, e.g. for exporting it
func (e *Endpoint) StatsRegistry() gometrics.Registry {
	return e.stats
}

// String returns a short description of the endpoint
func (e *Endpoint) String() string {
	return fmt.Sprintf("endpoint %s (%s, %s)", e.id, e.addr, e.State())
}

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------
// Setters take effect for the next session or reconnect attempt.

// SetAutoReconnect enables reconnecting with up to maxAttempts attempts.
// common.UnlimitedReconnectAttempts retries forever, 0 disables reconnecting.
// Accepted endpoints never reconnect.
func (e *Endpoint) SetAutoReconnect(maxAttempts int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.connector == nil {
		return
	}
	e.config.AutoReconnect = maxAttempts != 0
	e.config.MaxReconnectAttempts = maxAttempts
}

// SetReconnectDelay sets the minimum time between two reconnect attempts
func (e *Endpoint) SetReconnectDelay(delay time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.config.ReconnectDelay = delay
}

// SetKeepAliveInterval sets both the keepalive interval and its acknowledge deadline
func (e *Endpoint) SetKeepAliveInterval(interval time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.config.KeepAliveInterval = interval
}

// SetSendKeepAlives enables or disables the keepalive loop
func (e *Endpoint) SetSendKeepAlives(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.config.SendKeepAlives = enabled
}

// SetSingleThreadProcessing processes requests on the reader goroutine instead of
// the engine's worker pool, which keeps their order
func (e *Endpoint) SetSingleThreadProcessing(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.config.SingleThreadProcessing = enabled
}

// SetDataProcessor sets the handler for incoming requests. Without a processor every
// request is acknowledged without result.
func (e *Endpoint) SetDataProcessor(processor common.DataProcessor) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.processor = processor
}

// --------------------------------------------------------------------------
// Connect
// --------------------------------------------------------------------------

// Connect establishes the connection of a client endpoint. It may only be called once.
//
// If the dial fails, ConnectionFailed is dispatched. With auto reconnect the
// reconnect procedure runs before Connect returns and its outcome is returned.
// Otherwise the endpoint is killed and the error is returned unless a
// ConnectionFailed handler was subscribed.
func (e *Endpoint) Connect(ctx context.Context) error {
	if e.connector == nil {
		return fmt.Errorf("%w: accepted endpoints are connected by their listener", common.ErrInvalidState)
	}
	if err := e.transition(StateInit, StateConnecting); err != nil {
		return err
	}

	// Kill aborts a running connect
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(e.ctx, cancel)
	defer stop()

	s, err := e.dial(ctx)
	if err == nil {
		if err := e.startSession(s, StateConnecting); err != nil {
			return err
		}
		Logger.Infof("Connected to %s using %s transport", e.addr, e.connector.GetName())
		return nil
	}

	err = fmt.Errorf("%w to %s: %w", common.ErrConnectFailure, e.addr, err)
	Logger.Warningf("Failed to connect to %s: %v", e.addr, err)
	handled := e.bus.Dispatch(events.ConnectionFailed{Origin: e.origin(), Err: err}) > 0

	if e.Config().AutoReconnect && retryable(err) {
		if err := e.transition(StateConnecting, StateReconnecting); err != nil {
			return err
		}
		return e.reconnect(ctx)
	}

	e.kill(err)
	if handled {
		return nil
	}
	return err
}

// start runs the first session of an accepted endpoint
func (e *Endpoint) start(conn net.Conn) error {
	if err := e.transition(StateInit, StateConnecting); err != nil {
		return err
	}
	s, err := e.newSession(conn)
	if err != nil {
		_ = conn.Close()
		return err
	}
	return e.startSession(s, StateConnecting)
}

// dial opens, upgrades and wraps a new connection
func (e *Endpoint) dial(ctx context.Context) (*session, error) {
	config := e.Config()

	if config.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.DialTimeout)
		defer cancel()
	}

	conn, err := e.connector.Connect(ctx, e.addr)
	if err != nil {
		return nil, err
	}

	if err := e.connector.UpgradeConnection(conn, config); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	s, err := e.newSession(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (e *Endpoint) newSession(conn net.Conn) (*session, error) {
	stream, err := e.codec.Setup(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to set up %s codec: %w", e.codec.Name(), err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		conn:   conn,
		stream: stream,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// startSession installs s as the current session and starts its loops. It fails if
// the endpoint is no longer in state from, which means it was killed meanwhile.
func (e *Endpoint) startSession(s *session, from State) error {
	e.mu.Lock()
	if e.state != from || !from.CanTransition(StateConnected) {
		state := e.state
		e.mu.Unlock()
		s.lost.Store(true)
		s.close()
		if state == StateKilled {
			return common.ErrKilled
		}
		return fmt.Errorf("%w: cannot start a session in state %s", common.ErrInvalidState, state)
	}
	e.state = StateConnected
	e.session = s
	config := e.config
	e.mu.Unlock()

	s.wg.Add(1)
	go e.run(s)

	if e.codec.KeepAlive() && config.SendKeepAlives && config.KeepAliveInterval > 0 {
		s.wg.Add(1)
		go e.keepAlive(s, config.KeepAliveInterval)
	}
	return nil
}

// --------------------------------------------------------------------------
// Sending
// --------------------------------------------------------------------------

// Call sends value as a Request and returns the pending call for its reply.
//
// If value cannot be encoded, SerializationFailure is dispatched, nothing is written
// and the still registered call is returned together with an error wrapping
// common.ErrSerializationFailure. It expires after the configured call timeout.
func (e *Endpoint) Call(value any) (*pending.Call, error) {
	s, err := e.activeSession()
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	call, err := e.engine.Calls().Register(id, e.Config().CallTimeout)
	if err != nil {
		return nil, err
	}
	e.engine.Metrics().Calls.Inc()

	if err := s.stream.Write(common.NewRequest(id, value)); err != nil {
		return call, e.writeFailed(s, id, err)
	}
	e.sent.Inc(1)
	return call, nil
}

// Request sends value and waits for the reply. A timeout <= 0 uses the configured
// call timeout. The call timeout only bounds calls nobody awaits, a longer timeout
// here is honored.
func (e *Endpoint) Request(value any, timeout time.Duration) (any, error) {
	call, err := e.Call(value)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = e.Config().CallTimeout
	}
	result, err := call.Await(timeout)
	if err == nil {
		e.callTimer.UpdateSince(call.Created())
	}
	return result, err
}

// RequestContext is like Request but waits until ctx is done
func (e *Endpoint) RequestContext(ctx context.Context, value any) (any, error) {
	call, err := e.Call(value)
	if err != nil {
		return nil, err
	}

	result, err := call.AwaitContext(ctx)
	if err == nil {
		e.callTimer.UpdateSince(call.Created())
	}
	return result, err
}

// Write sends value as a Request without waiting for a reply. With the raw codec the
// bytes of value are written verbatim.
func (e *Endpoint) Write(value any) error {
	s, err := e.activeSession()
	if err != nil {
		return err
	}

	if err := s.stream.Write(common.NewRequest("", value)); err != nil {
		return e.writeFailed(s, "", err)
	}
	e.sent.Inc(1)
	return nil
}

// activeSession returns the running session or why there is none
func (e *Endpoint) activeSession() (*session, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	switch {
	case e.state == StateKilled:
		return nil, common.ErrKilled
	case e.state != StateConnected || e.session == nil:
		return nil, fmt.Errorf("%w: endpoint is %s", common.ErrNotConnected, e.state)
	default:
		return e.session, nil
	}
}

// writeFailed classifies a failed write. Encoding failures are reported, io failures
// are left to the reader loop which observes the same broken connection.
func (e *Endpoint) writeFailed(s *session, id string, err error) error {
	if errors.Is(err, common.ErrSerializationFailure) {
		Logger.Warningf("Failed to encode message for %s: %v", e.addr, err)
		e.bus.Dispatch(events.SerializationFailure{Origin: e.origin(), Err: err, CorrelationID: id})
		return err
	}
	if s.ctx.Err() != nil {
		return fmt.Errorf("%w: %w", common.ErrNotConnected, err)
	}
	return fmt.Errorf("%w: %w", common.ErrUnspecifiedIO, err)
}

// --------------------------------------------------------------------------
// Session Loops
// --------------------------------------------------------------------------

// run reads messages until the session ends
func (e *Endpoint) run(s *session) {
	defer s.wg.Done()

	for {
		msg, err := s.stream.ReadOne()
		if err != nil {
			var decodeErr *common.DecodeError
			if errors.As(err, &decodeErr) {
				Logger.Warningf("Dropping undecodable frame from %s: %v", e.addr, err)
				e.bus.Dispatch(events.UnspecifiedError{Origin: e.origin(), Err: fmt.Errorf("%w: %w", common.ErrUnspecifiedIO, err)})
				continue
			}

			e.detect(s, fmt.Errorf("%w: %w", common.ErrConnectionLost, err), false)
			return
		}

		e.received.Inc(1)
		e.handle(s, msg)
	}
}

// handle routes one incoming message by kind. Replies and keepalives are handled
// inline, requests go to the worker pool unless single thread processing is set.
func (e *Endpoint) handle(s *session, msg common.Message) {
	switch msg.Kind {
	case common.MsgKResponse, common.MsgKAcknowledge:
		if !e.engine.Calls().Resolve(msg.CorrelationID, msg.Value) {
			Logger.Debugf("Dropping %s for unknown call %s from %s", msg.Kind, msg.CorrelationID, e.addr)
		}

	case common.MsgKKeepAlive:
		if err := s.stream.Write(common.NewAcknowledge(msg.CorrelationID)); err != nil {
			Logger.Debugf("Failed to acknowledge keepalive of %s: %v", e.addr, err)
		}

	case common.MsgKRequest:
		task := func() { e.process(s, msg) }

		if e.Config().SingleThreadProcessing {
			task()
			return
		}
		if err := e.engine.Submit(task); err != nil {
			Logger.Warningf("Dropping request from %s: %v", e.addr, err)
		}

	default:
		e.bus.Dispatch(events.UnspecifiedError{
			Origin: e.origin(),
			Err:    fmt.Errorf("%w: unexpected message kind %s", common.ErrUnspecifiedIO, msg.Kind),
		})
	}
}

// process runs the data processor for a request and writes the reply
func (e *Endpoint) process(s *session, msg common.Message) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Errorf("Data processor of %s panicked: %v", e.addr, r)
			e.bus.Dispatch(events.UnspecifiedError{Origin: e.origin(), Err: fmt.Errorf("data processor panicked: %v", r)})
		}
	}()

	e.mu.RLock()
	processor := e.processor
	e.mu.RUnlock()

	reply := common.NewAcknowledge(msg.CorrelationID)
	if processor != nil {
		if result, ok := processor(msg.Value); ok {
			reply = common.NewResponse(msg.CorrelationID, result)
		}
	}

	if err := s.stream.Write(reply); err != nil {
		if errors.Is(err, common.ErrSerializationFailure) {
			_ = e.writeFailed(s, msg.CorrelationID, err)
			return
		}
		Logger.Debugf("Failed to write %s to %s: %v", reply.Kind, e.addr, err)
		return
	}
	e.sent.Inc(1)
}

// keepAlive probes the peer every interval and expects an acknowledge within interval
func (e *Endpoint) keepAlive(s *session, interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}

		id := uuid.NewString()
		call, err := e.engine.Calls().Register(id, interval)
		if err != nil {
			Logger.Errorf("Failed to register keepalive: %v", err)
			continue
		}

		start := time.Now()
		if err := s.stream.Write(common.NewKeepAlive(id)); err != nil {
			if s.ctx.Err() == nil {
				e.detect(s, fmt.Errorf("%w: %w", common.ErrConnectionLost, err), false)
			}
			return
		}

		ctx, cancel := context.WithTimeout(s.ctx, interval)
		_, err = call.AwaitContext(ctx)
		cancel()

		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			e.detect(s, fmt.Errorf("%w: no acknowledge from %s within %s", common.ErrKeepAliveTimeout, e.addr, interval), true)
			return
		}

		ping := time.Since(start)
		e.ping.Store(int64(ping))
		e.pingTimer.Update(ping)
		e.engine.Metrics().Ping.Update(ping.Seconds())
		e.bus.Dispatch(events.PingUpdate{Origin: e.origin(), Ping: ping})
	}
}

// --------------------------------------------------------------------------
// Recovery
// --------------------------------------------------------------------------

// detect reports a broken session. Only the first detector of a session starts the
// recovery, every later one (and every loop ending after Kill) is ignored.
func (e *Endpoint) detect(s *session, cause error, keepAliveTimeout bool) {
	if !s.lost.CompareAndSwap(false, true) {
		return
	}
	s.close()
	go e.recover(s, cause, keepAliveTimeout)
}

// recover waits for all loops of the broken session, dispatches the fault and then
// reconnects or kills the endpoint
func (e *Endpoint) recover(s *session, cause error, keepAliveTimeout bool) {
	s.wg.Wait()

	if err := e.transition(StateConnected, StateLost); err != nil {
		return // killed meanwhile
	}

	var handled bool
	if keepAliveTimeout {
		Logger.Warningf("Keepalive timeout of %s: %v", e.addr, cause)
		e.engine.Metrics().KeepAliveTimeouts.Inc()
		handled = e.bus.Dispatch(events.KeepAliveTimeout{
			Origin:  e.origin(),
			Err:     cause,
			Timeout: e.Config().KeepAliveInterval,
		}) > 0
	} else {
		Logger.Infof("Lost connection to %s: %v", e.addr, cause)
		e.engine.Metrics().ConnectionsLost.Inc()
		handled = e.bus.Dispatch(events.ConnectionLost{Origin: e.origin(), Err: cause}) > 0
	}

	if !e.Config().AutoReconnect {
		if !handled {
			e.engine.Fault(e.origin().Source(), cause)
		}
		e.kill(cause)
		return
	}

	if err := e.transition(StateLost, StateReconnecting); err != nil {
		return
	}
	_ = e.reconnect(e.ctx)
}

// reconnect dials until a new session is running, the attempts are exhausted, a dial
// error is not retryable or the endpoint is killed
func (e *Endpoint) reconnect(ctx context.Context) error {
	config := e.Config()
	maxAttempts := config.MaxReconnectAttempts

	Logger.Infof("Reconnecting to %s", e.addr)
	e.bus.Dispatch(events.ReconnectStarted{Origin: e.origin()})

	// the first attempt starts immediately, later ones are paced by the delay
	limiter := rate.NewLimiter(rate.Every(config.ReconnectDelay), 1)

	var lastErr error
	attempts := 0
	for maxAttempts < 0 || attempts < maxAttempts {
		if err := limiter.Wait(ctx); err != nil {
			lastErr = err
			break
		}
		if e.State() == StateKilled {
			return common.ErrKilled
		}

		attempts++
		e.engine.Metrics().ReconnectAttempts.Inc()
		e.bus.Dispatch(events.ReconnectAttempt{Origin: e.origin(), Attempt: attempts, MaxAttempts: maxAttempts})
		Logger.Debugf("Reconnect attempt %d to %s", attempts, e.addr)

		s, err := e.dial(ctx)
		if err == nil {
			if err := e.startSession(s, StateReconnecting); err != nil {
				return err
			}
			Logger.Infof("Reconnected to %s after %d attempts", e.addr, attempts)
			e.bus.Dispatch(events.ReconnectSucceeded{Origin: e.origin(), Attempts: attempts})
			return nil
		}

		if e.State() == StateKilled {
			return common.ErrKilled
		}

		lastErr = err
		e.bus.Dispatch(events.ReconnectAttemptFailed{
			Origin:      e.origin(),
			Err:         fmt.Errorf("%w: %w", common.ErrReconnectAttemptFailed, err),
			Attempt:     attempts,
			MaxAttempts: maxAttempts,
		})

		if !retryable(err) {
			Logger.Warningf("Giving up reconnecting to %s: %v", e.addr, err)
			break
		}
	}

	if e.State() == StateKilled {
		return common.ErrKilled
	}

	err := fmt.Errorf("%w after %d attempts", common.ErrReconnectFailed, attempts)
	if lastErr != nil {
		err = fmt.Errorf("%w: %w", err, lastErr)
	}
	Logger.Errorf("Failed to reconnect to %s: %v", e.addr, err)
	e.bus.Dispatch(events.ReconnectFailed{Origin: e.origin(), Err: err, Attempts: attempts})
	e.kill(err)
	return err
}

// retryable reports whether a failed dial may succeed on a later attempt. Refused
// and timed out dials are retryable, unknown hosts and failed upgrades are not.
func retryable(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return !dnsErr.IsNotFound
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// --------------------------------------------------------------------------
// Kill
// --------------------------------------------------------------------------

// Kill terminates the endpoint. It closes the connection, aborts a running reconnect,
// removes the endpoint from its listener and dispatches Killed. Calling Kill more than
// once is a no-op.
func (e *Endpoint) Kill() {
	e.kill(nil)
}

func (e *Endpoint) kill(cause error) {
	// CAS instead of sync.Once, Killed handlers may call Kill again
	if !e.killed.CompareAndSwap(false, true) {
		return
	}

	e.mu.Lock()
	e.state = StateKilled
	if cause != nil && e.err == nil {
		e.err = cause
	}
	s := e.session
	e.mu.Unlock()

	e.cancel()
	if s != nil {
		s.lost.Store(true)
		s.close()
	}

	e.engine.Unregister(e)
	if e.owner != nil {
		e.owner.remove(e)
	}

	Logger.Infof("Killed endpoint %s (%s)", e.id, e.addr)
	e.bus.Dispatch(events.Killed{Origin: e.origin(), Err: cause})
	close(e.done)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// transition moves the endpoint from state from to state to
func (e *Endpoint) transition(from, to State) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateKilled {
		return common.ErrKilled
	}
	if e.state != from || !from.CanTransition(to) {
		return fmt.Errorf("%w: cannot move from %s to %s", common.ErrInvalidState, e.state, to)
	}
	e.state = to
	return nil
}

func (e *Endpoint) origin() events.Origin {
	return events.Origin{ID: e.id, Addr: e.addr}
}
