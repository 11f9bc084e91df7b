// Package events provides the typed event bus used to publish connection
// lifecycle and error events of the socket engine.
//
// The set of events is closed: every event kind has exactly one struct type in
// this package, and subscriptions are keyed by Kind. Observers such as loggers,
// metrics or a UI subscribe with On[E] and receive the concrete struct.
//
// Guarantees:
//
//   - Handlers of one kind are called in subscription order.
//   - A panicking handler is recovered and logged; the remaining handlers still run.
//     The panic is not dispatched as an error event to avoid infinite recursion.
//   - Dispatch returns the number of handlers it reached. Emitters use this to
//     escalate faults that require handling when nobody subscribed.
package events
