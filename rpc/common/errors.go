package common

import (
	"errors"
	"fmt"
)

// Fault taxonomy of the socket engine. Errors returned by the engine wrap one of
// these sentinels, use errors.Is to classify them.
var (
	ErrConnectFailure         = errors.New("connect failed")
	ErrConnectionLost         = errors.New("connection lost")
	ErrKeepAliveTimeout       = errors.New("keepalive timeout")
	ErrReconnectAttemptFailed = errors.New("reconnect attempt failed")
	ErrReconnectFailed        = errors.New("reconnect failed")
	ErrSerializationFailure   = errors.New("serialization failed")
	ErrUnspecifiedIO          = errors.New("unspecified io error")
	ErrNotConnected           = errors.New("not connected")
	ErrKilled                 = errors.New("endpoint killed")
	ErrInvalidState           = errors.New("invalid state")
)

// DecodeError is returned by a codec stream when a single frame could not be
// decoded. The frame was fully consumed, so the stream itself is still usable.
type DecodeError struct {
	Kind MessageKind
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s frame: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
