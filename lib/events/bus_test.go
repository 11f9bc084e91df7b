package events

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchOrder(t *testing.T) {
	bus := NewBus()

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		bus.Subscribe(KindConnectionLost, func(Event) { order = append(order, i) })
	}

	n := bus.Dispatch(ConnectionLost{Origin: Origin{ID: "ep"}})
	assert.Equal(t, 5, n)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestPanickingHandlerDoesNotStopDelivery(t *testing.T) {
	bus := NewBus()

	var calls []string
	bus.Subscribe(KindKilled, func(Event) { calls = append(calls, "first") })
	bus.Subscribe(KindKilled, func(Event) { panic("boom") })
	bus.Subscribe(KindKilled, func(Event) { calls = append(calls, "third") })

	// a panic must not be turned into an error event
	errorEvents := 0
	On(bus, func(UnspecifiedError) { errorEvents++ })

	require.NotPanics(t, func() { bus.Dispatch(Killed{}) })
	assert.Equal(t, []string{"first", "third"}, calls)
	assert.Zero(t, errorEvents)
}

func TestTypedSubscription(t *testing.T) {
	bus := NewBus()
	cause := errors.New("reset by peer")

	var got KeepAliveTimeout
	On(bus, func(e KeepAliveTimeout) { got = e })

	// other kinds must not reach the handler
	assert.Zero(t, bus.Dispatch(ConnectionLost{Err: cause}))

	bus.Dispatch(KeepAliveTimeout{Origin: Origin{ID: "a", Addr: "127.0.0.1:1"}, Err: cause, Timeout: 5})
	assert.Equal(t, "a (127.0.0.1:1)", got.Source())
	assert.ErrorIs(t, got.Cause(), cause)
	assert.EqualValues(t, 5, got.Timeout)
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus()

	calls := 0
	unsubscribe := On(bus, func(PingUpdate) { calls++ })
	assert.True(t, bus.HasSubscribers(KindPingUpdate))

	bus.Dispatch(PingUpdate{})
	unsubscribe()
	unsubscribe() // idempotent
	bus.Dispatch(PingUpdate{})

	assert.Equal(t, 1, calls)
	assert.False(t, bus.HasSubscribers(KindPingUpdate))
}

func TestReentrantDispatch(t *testing.T) {
	bus := NewBus()

	killed := 0
	On(bus, func(ReconnectFailed) {
		// handlers may dispatch and subscribe without deadlocking
		bus.Subscribe(KindServerKilled, func(Event) {})
		bus.Dispatch(Killed{})
	})
	On(bus, func(Killed) { killed++ })

	bus.Dispatch(ReconnectFailed{})
	assert.Equal(t, 1, killed)
}

func TestConcurrentDispatch(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	count := 0
	On(bus, func(NewConnection) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Dispatch(NewConnection{})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, count)
}
