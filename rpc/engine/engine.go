package engine

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/dSock/lib/pending"
	"github.com/ValentinKolb/dSock/rpc/common"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/sourcegraph/conc/pool"
	"io"
	"sync"
	"time"
)

var Logger = logger.GetLogger("engine")

// ErrShutdown is returned by Submit after the engine was shut down
var ErrShutdown = errors.New("engine shut down")

// DefaultJanitorInterval is used when EngineConfig.JanitorInterval is not set
const DefaultJanitorInterval = 5 * time.Second

// Killable is anything the engine terminates on shutdown (endpoints and listeners)
type Killable interface {
	Kill()
}

// Engine is the shared execution context of endpoints and listeners. It owns the
// worker pool for request processing, the pending-call table, the shutdown registry
// and the metrics set. Create one per process and pass it to every endpoint.
type Engine struct {
	config common.EngineConfig

	pool   *pool.Pool
	poolMu sync.RWMutex
	closed bool

	calls *pending.Registry

	killMu    sync.Mutex
	killables []Killable

	set     *metrics.Set
	metrics *Metrics

	stopJanitor  chan struct{}
	janitorDone  chan struct{}
	shutdownOnce sync.Once
}

// New creates an engine and starts its janitor
func New(config common.EngineConfig) *Engine {
	if config.JanitorInterval <= 0 {
		config.JanitorInterval = DefaultJanitorInterval
	}

	p := pool.New()
	if config.Workers > 0 {
		p = p.WithMaxGoroutines(config.Workers)
	}

	e := &Engine{
		config:      config,
		pool:        p,
		calls:       pending.NewRegistry(),
		set:         metrics.NewSet(),
		stopJanitor: make(chan struct{}),
		janitorDone: make(chan struct{}),
	}
	e.metrics = newMetrics(e.set, e.calls)

	go e.janitor()
	return e
}

// --------------------------------------------------------------------------
// Worker Pool
// --------------------------------------------------------------------------

// Submit runs task on the worker pool. With a bounded pool it blocks until a worker
// is free. A panicking task is logged and does not affect other tasks.
func (e *Engine) Submit(task func()) error {
	e.poolMu.RLock()
	defer e.poolMu.RUnlock()

	if e.closed {
		return ErrShutdown
	}

	e.pool.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				Logger.Errorf("task panicked: %v", r)
			}
		}()
		task()
	})
	return nil
}

// --------------------------------------------------------------------------
// Pending Calls
// --------------------------------------------------------------------------

// Calls returns the pending-call table shared by all endpoints of the engine
func (e *Engine) Calls() *pending.Registry {
	return e.calls
}

// janitor drops pending calls that nobody awaited before their deadline
func (e *Engine) janitor() {
	defer close(e.janitorDone)

	ticker := time.NewTicker(e.config.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopJanitor:
			return
		case now := <-ticker.C:
			if n := e.calls.Expire(now); n > 0 {
				e.metrics.ExpiredCalls.Add(n)
				Logger.Debugf("expired %d pending calls", n)
			}
		}
	}
}

// --------------------------------------------------------------------------
// Shutdown Registry
// --------------------------------------------------------------------------

// Register adds k to the shutdown registry
func (e *Engine) Register(k Killable) {
	e.killMu.Lock()
	defer e.killMu.Unlock()
	e.killables = append(e.killables, k)
}

// Unregister removes k from the shutdown registry, it is a no-op if k is unknown
func (e *Engine) Unregister(k Killable) {
	e.killMu.Lock()
	defer e.killMu.Unlock()

	for i, existing := range e.killables {
		if existing == k {
			e.killables = append(e.killables[:i:i], e.killables[i+1:]...)
			return
		}
	}
}

// Shutdown kills all registered killables in reverse registration order, stops the
// janitor and waits for running tasks. Calling it more than once is a no-op.
func (e *Engine) Shutdown() {
	e.shutdownOnce.Do(func() {
		Logger.Infof("shutting down engine")

		e.killMu.Lock()
		killables := make([]Killable, len(e.killables))
		copy(killables, e.killables)
		e.killMu.Unlock()

		// Kill unregisters, so iterate over the snapshot
		for i := len(killables) - 1; i >= 0; i-- {
			killables[i].Kill()
		}

		close(e.stopJanitor)
		<-e.janitorDone

		e.poolMu.Lock()
		e.closed = true
		e.poolMu.Unlock()

		e.pool.Wait()
		Logger.Infof("engine shut down")
	})
}

// --------------------------------------------------------------------------
// Faults
// --------------------------------------------------------------------------

// Fault hands a fault that required handling but had no subscriber to the configured
// OnUnhandledFault callback. Without a callback it is logged.
func (e *Engine) Fault(source string, err error) {
	e.metrics.UnhandledFaults.Inc()

	if e.config.OnUnhandledFault != nil {
		e.config.OnUnhandledFault(source, err)
		return
	}
	Logger.Errorf("unhandled fault of %s: %v", source, err)
}

// --------------------------------------------------------------------------
// Metrics
// --------------------------------------------------------------------------

// Metrics returns the counters shared by all endpoints of the engine
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// WritePrometheus writes all engine metrics in the prometheus text format
func (e *Engine) WritePrometheus(w io.Writer) {
	e.set.WritePrometheus(w)
}

// Metrics holds the engine wide counters
type Metrics struct {
	Accepted          *metrics.Counter
	Removed           *metrics.Counter
	ConnectionsLost   *metrics.Counter
	KeepAliveTimeouts *metrics.Counter
	ReconnectAttempts *metrics.Counter
	Calls             *metrics.Counter
	ExpiredCalls      *metrics.Counter
	UnhandledFaults   *metrics.Counter
	Ping              *metrics.Histogram
}

func newMetrics(set *metrics.Set, calls *pending.Registry) *Metrics {
	set.NewGauge("dsock_pending_calls", func() float64 {
		return float64(calls.Len())
	})

	return &Metrics{
		Accepted:          set.NewCounter("dsock_connections_accepted_total"),
		Removed:           set.NewCounter("dsock_connections_removed_total"),
		ConnectionsLost:   set.NewCounter("dsock_connections_lost_total"),
		KeepAliveTimeouts: set.NewCounter("dsock_keepalive_timeouts_total"),
		ReconnectAttempts: set.NewCounter("dsock_reconnect_attempts_total"),
		Calls:             set.NewCounter("dsock_calls_total"),
		ExpiredCalls:      set.NewCounter("dsock_calls_expired_total"),
		UnhandledFaults:   set.NewCounter("dsock_unhandled_faults_total"),
		Ping:              set.NewHistogram("dsock_ping_seconds"),
	}
}

// String returns a short description of the engine state
func (e *Engine) String() string {
	e.killMu.Lock()
	defer e.killMu.Unlock()
	return fmt.Sprintf("engine{killables=%d, pending=%d}", len(e.killables), e.calls.Len())
}
