package pending

import (
	"context"
	"errors"
	"fmt"
	"github.com/puzpuzpuz/xsync/v3"
	"sync/atomic"
	"time"
)

var (
	// ErrAsyncTimeout is returned by Await when the deadline passed without a reply
	ErrAsyncTimeout = errors.New("async call timed out")
	// ErrDuplicateCorrelationID is returned by Register if the id is already pending
	ErrDuplicateCorrelationID = errors.New("duplicate correlation id")
)

// Call is a pending call waiting for exactly one reply
type Call struct {
	id       string
	created  time.Time
	deadline time.Time
	result   chan any // buffered, receives at most one value
	registry *Registry

	awaited atomic.Bool // set once a caller awaits, Expire skips the call from then on
}

// ID returns the correlation id of the call
func (c *Call) ID() string {
	return c.id
}

// Created returns the time the call was registered
func (c *Call) Created() time.Time {
	return c.created
}

// Deadline returns the time after which the registry may drop the call if nobody
// awaits it
func (c *Call) Deadline() time.Time {
	return c.deadline
}

// Await blocks until the call is resolved or timeout elapsed. A timeout <= 0
// waits forever.
func (c *Call) Await(timeout time.Duration) (any, error) {
	c.awaited.Store(true)
	if timeout <= 0 {
		return c.AwaitContext(context.Background())
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case v := <-c.result:
		return c.unwrap(v, ErrAsyncTimeout)
	case <-timer.C:
		return c.expire(ErrAsyncTimeout)
	}
}

// AwaitContext blocks until the call is resolved or ctx is done
func (c *Call) AwaitContext(ctx context.Context) (any, error) {
	c.awaited.Store(true)
	select {
	case v := <-c.result:
		return c.unwrap(v, ErrAsyncTimeout)
	case <-ctx.Done():
		return c.expire(fmt.Errorf("%w: %w", ErrAsyncTimeout, ctx.Err()))
	}
}

// expire removes the orphaned call. If a resolver removed it first, the value is
// already on its way and is returned instead of the timeout.
func (c *Call) expire(err error) (any, error) {
	if _, removed := c.registry.calls.LoadAndDelete(c.id); removed {
		return nil, err
	}
	return c.unwrap(<-c.result, err)
}

// expiredMarker is delivered to calls dropped by Registry.Expire
type expiredMarker struct{}

func (c *Call) unwrap(v any, err error) (any, error) {
	if _, ok := v.(expiredMarker); ok {
		return nil, err
	}
	return v, nil
}

// Registry maps correlation ids to waiting calls
type Registry struct {
	calls *xsync.MapOf[string, *Call]
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		calls: xsync.NewMapOf[string, *Call](),
	}
}

// Register creates a pending call for id. A ttl <= 0 never expires through Expire.
func (r *Registry) Register(id string, ttl time.Duration) (*Call, error) {
	now := time.Now()
	call := &Call{
		id:       id,
		created:  now,
		result:   make(chan any, 1),
		registry: r,
	}
	if ttl > 0 {
		call.deadline = now.Add(ttl)
	}

	if _, loaded := r.calls.LoadOrStore(id, call); loaded {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateCorrelationID, id)
	}
	return call, nil
}

// Resolve completes the pending call for id with value. Only the first resolve of
// an id has an effect, later ones (duplicates or replies for expired calls) return false.
func (r *Registry) Resolve(id string, value any) bool {
	call, ok := r.calls.LoadAndDelete(id)
	if !ok {
		return false
	}
	call.result <- value
	return true
}

// Pending reports whether id is still waiting for a reply
func (r *Registry) Pending(id string) bool {
	_, ok := r.calls.Load(id)
	return ok
}

// Len returns the number of pending calls
func (r *Registry) Len() int {
	return r.calls.Size()
}

// Expire drops all calls nobody awaits whose deadline is before now and returns how
// many were dropped. An awaited call is only ended by its own await timeout.
func (r *Registry) Expire(now time.Time) int {
	expired := 0
	r.calls.Range(func(id string, call *Call) bool {
		if call.awaited.Load() {
			return true
		}
		if !call.deadline.IsZero() && call.deadline.Before(now) {
			if dropped, ok := r.calls.LoadAndDelete(id); ok {
				dropped.result <- expiredMarker{}
				expired++
			}
		}
		return true
	})
	return expired
}
