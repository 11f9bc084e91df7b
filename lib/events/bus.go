package events

import (
	"github.com/lni/dragonboat/v4/logger"
	"sync"
)

var Logger = logger.GetLogger("events")

// Handler receives one dispatched event
type Handler func(ev Event)

// subscription is a single registered handler
type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a typed publish/subscribe channel for lifecycle and error events.
// Handlers of one kind run in subscription order on the dispatching goroutine.
// A panicking handler does not prevent delivery to the following handlers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind][]subscription
	nextID   uint64
}

// NewBus creates an empty event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Kind][]subscription),
	}
}

// Subscribe registers handler for kind and returns a function that removes it again
func (b *Bus) Subscribe(kind Kind, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[kind] = append(b.handlers[kind], subscription{id: id, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(kind, id) })
	}
}

// On registers a typed handler for the event type E
//
// Usage:
//
//	events.On(bus, func(e events.ConnectionLost) {
//		log.Printf("lost %s: %v", e.Source(), e.Err)
//	})
func On[E Event](b *Bus, fn func(E)) (unsubscribe func()) {
	var zero E
	return b.Subscribe(zero.Kind(), func(ev Event) {
		if e, ok := ev.(E); ok {
			fn(e)
		}
	})
}

// HasSubscribers reports whether at least one handler is registered for kind
func (b *Bus) HasSubscribers(kind Kind) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[kind]) > 0
}

// Dispatch delivers ev to all handlers of its kind and returns how many handlers
// were invoked. Handlers run without the bus lock held, so they may dispatch or
// subscribe themselves.
func (b *Bus) Dispatch(ev Event) int {
	b.mu.RLock()
	subs := make([]subscription, len(b.handlers[ev.Kind()]))
	copy(subs, b.handlers[ev.Kind()])
	b.mu.RUnlock()

	for _, sub := range subs {
		b.invoke(sub.handler, ev)
	}
	return len(subs)
}

// invoke runs a single handler. A panic is logged and swallowed, it is never
// dispatched as another event.
func (b *Bus) invoke(handler Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Errorf("handler for %s event of %s panicked: %v", ev.Kind(), ev.Source(), r)
		}
	}()
	handler(ev)
}

func (b *Bus) remove(kind Kind, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[kind]
	for i, sub := range subs {
		if sub.id == id {
			// copy on remove, running dispatches keep their snapshot
			next := make([]subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			b.handlers[kind] = next
			return
		}
	}
}
