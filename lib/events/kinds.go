package events

import (
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// Event Kind Definition
// --------------------------------------------------------------------------

// Kind identifies one variant of the closed set of lifecycle events.
type Kind uint8

const (
	KindUnknown Kind = iota

	// Endpoint events

	KindConnectionFailed       // Initial dial failed
	KindConnectionLost         // Stream ended or errored while connected
	KindKeepAliveTimeout       // No acknowledge within the keepalive deadline
	KindReconnectStarted       // Recovery started reconnecting
	KindReconnectAttempt       // One reconnect attempt is about to be made
	KindReconnectAttemptFailed // One reconnect attempt failed
	KindReconnectSucceeded     // A new connection was established
	KindReconnectFailed        // All reconnect attempts failed
	KindKilled                 // Endpoint reached its terminal state
	KindPingUpdate             // A keepalive round trip completed
	KindUnspecifiedError       // Non-fatal io fault during steady state
	KindSerializationFailure   // A payload could not be encoded

	// Listener events

	KindNewConnection     // A connection was accepted
	KindRemovedConnection // An accepted endpoint was removed after its kill
	KindServerError       // Non-fatal listener fault
	KindServerKilled      // Listener was killed
)

// String returns the string representation of a Kind.
func (k Kind) String() string {
	switch k {
	case KindConnectionFailed:
		return "connection-failed"
	case KindConnectionLost:
		return "connection-lost"
	case KindKeepAliveTimeout:
		return "keepalive-timeout"
	case KindReconnectStarted:
		return "reconnect-started"
	case KindReconnectAttempt:
		return "reconnect-attempt"
	case KindReconnectAttemptFailed:
		return "reconnect-attempt-failed"
	case KindReconnectSucceeded:
		return "reconnect-succeeded"
	case KindReconnectFailed:
		return "reconnect-failed"
	case KindKilled:
		return "killed"
	case KindPingUpdate:
		return "ping-update"
	case KindUnspecifiedError:
		return "unspecified-error"
	case KindSerializationFailure:
		return "serialization-failure"
	case KindNewConnection:
		return "new-connection"
	case KindRemovedConnection:
		return "removed-connection"
	case KindServerError:
		return "server-error"
	case KindServerKilled:
		return "server-killed"
	default:
		return "unknown"
	}
}

// --------------------------------------------------------------------------
// Event Interfaces
// --------------------------------------------------------------------------

// Event is implemented by every event struct of this package
type Event interface {
	Kind() Kind
	// Source identifies the endpoint or listener that emitted the event
	Source() string
}

// Fault is implemented by events that carry an error
type Fault interface {
	Event
	Cause() error
}

// Origin is embedded in every event and names its emitter
type Origin struct {
	ID   string // endpoint or listener id
	Addr string // remote address (endpoints) or listen address (listeners)
}

func (o Origin) Source() string {
	if o.Addr == "" {
		return o.ID
	}
	return fmt.Sprintf("%s (%s)", o.ID, o.Addr)
}

// --------------------------------------------------------------------------
// Endpoint Events
// --------------------------------------------------------------------------

type ConnectionFailed struct {
	Origin
	Err error
}

func (ConnectionFailed) Kind() Kind { return KindConnectionFailed }
func (e ConnectionFailed) Cause() error { return e.Err }

type ConnectionLost struct {
	Origin
	Err error
}

func (ConnectionLost) Kind() Kind { return KindConnectionLost }
func (e ConnectionLost) Cause() error { return e.Err }

type KeepAliveTimeout struct {
	Origin
	Err error
	// Timeout is the deadline that was exceeded
	Timeout time.Duration
}

func (KeepAliveTimeout) Kind() Kind { return KindKeepAliveTimeout }
func (e KeepAliveTimeout) Cause() error { return e.Err }

type ReconnectStarted struct {
	Origin
}

func (ReconnectStarted) Kind() Kind { return KindReconnectStarted }

type ReconnectAttempt struct {
	Origin
	Attempt     int
	MaxAttempts int // -1 for unlimited
}

func (ReconnectAttempt) Kind() Kind { return KindReconnectAttempt }

type ReconnectAttemptFailed struct {
	Origin
	Err         error
	Attempt     int
	MaxAttempts int
}

func (ReconnectAttemptFailed) Kind() Kind { return KindReconnectAttemptFailed }
func (e ReconnectAttemptFailed) Cause() error { return e.Err }

type ReconnectSucceeded struct {
	Origin
	Attempts int
}

func (ReconnectSucceeded) Kind() Kind { return KindReconnectSucceeded }

type ReconnectFailed struct {
	Origin
	Err      error
	Attempts int
}

func (ReconnectFailed) Kind() Kind { return KindReconnectFailed }
func (e ReconnectFailed) Cause() error { return e.Err }

type Killed struct {
	Origin
	// Err is the fault that terminated the endpoint, nil for a regular kill
	Err error
}

func (Killed) Kind() Kind { return KindKilled }
func (e Killed) Cause() error { return e.Err }

type PingUpdate struct {
	Origin
	Ping time.Duration
}

func (PingUpdate) Kind() Kind { return KindPingUpdate }

type UnspecifiedError struct {
	Origin
	Err error
}

func (UnspecifiedError) Kind() Kind { return KindUnspecifiedError }
func (e UnspecifiedError) Cause() error { return e.Err }

type SerializationFailure struct {
	Origin
	Err           error
	CorrelationID string
}

func (SerializationFailure) Kind() Kind { return KindSerializationFailure }
func (e SerializationFailure) Cause() error { return e.Err }

// --------------------------------------------------------------------------
// Listener Events
// --------------------------------------------------------------------------

type NewConnection struct {
	Origin
	EndpointID string
	RemoteAddr string
}

func (NewConnection) Kind() Kind { return KindNewConnection }

type RemovedConnection struct {
	Origin
	EndpointID string
	RemoteAddr string
}

func (RemovedConnection) Kind() Kind { return KindRemovedConnection }

type ServerError struct {
	Origin
	Err error
}

func (ServerError) Kind() Kind { return KindServerError }
func (e ServerError) Cause() error { return e.Err }

type ServerKilled struct {
	Origin
}

func (ServerKilled) Kind() Kind { return KindServerKilled }
