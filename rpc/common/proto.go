package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message is a single decoded message exchanged between two endpoints.
// Messages are immutable once constructed and travel one direction per send.
type Message struct {
	// Kind of message
	Kind MessageKind

	// CorrelationID links a Request to its Response or Acknowledge.
	// Raw messages carry no correlation id.
	CorrelationID string

	// ValueType is the registered type name of Value (structured codec only)
	ValueType string

	// Value is the decoded payload. The structured codec stores the typed value,
	// the raw codec stores a []byte.
	Value any
}

// Envelope is the wire form of a structured Message. The value is already encoded
// by the value serializer, so the envelope can be serialized without knowing the
// concrete payload type.
type Envelope struct {
	Kind          MessageKind `json:"kind"`
	CorrelationID string      `json:"id,omitempty"`
	ValueType     string      `json:"type,omitempty"`
	Value         []byte      `json:"value,omitempty"`
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewRequest creates a new Request carrying value
func NewRequest(id string, value any) Message {
	return Message{Kind: MsgKRequest, CorrelationID: id, Value: value}
}

// NewResponse creates a new Response to the request with the given id
func NewResponse(id string, value any) Message {
	return Message{Kind: MsgKResponse, CorrelationID: id, Value: value}
}

// NewAcknowledge creates an empty Acknowledge for the request with the given id
func NewAcknowledge(id string) Message {
	return Message{Kind: MsgKAcknowledge, CorrelationID: id}
}

// NewKeepAlive creates a new KeepAlive probe
func NewKeepAlive(id string) Message {
	return Message{Kind: MsgKKeepAlive, CorrelationID: id}
}

// --------------------------------------------------------------------------
// Processors
// --------------------------------------------------------------------------

// DataProcessor handles the payload of an incoming Request. If ok is true the
// result is sent back as a Response, otherwise an empty Acknowledge is sent.
type DataProcessor func(payload any) (result any, ok bool)

// ByteProcessor handles one chunk of a raw byte stream. A non-nil return value is
// written back to the peer.
type ByteProcessor func(data []byte) []byte

// DataProcessor adapts p to the request handler of an endpoint using the raw codec
func (p ByteProcessor) DataProcessor() DataProcessor {
	return func(payload any) (any, bool) {
		data, ok := payload.([]byte)
		if !ok {
			return nil, false
		}
		result := p(data)
		return result, result != nil
	}
}

// --------------------------------------------------------------------------
// Message Kind Definition
// --------------------------------------------------------------------------

// MessageKind defines the kind of a message on the wire.
type MessageKind uint8

const (
	MsgKUnknown     MessageKind = iota
	MsgKRequest                 // Request expecting a Response or Acknowledge
	MsgKResponse                // Response carrying a result value
	MsgKAcknowledge             // Empty reply, processed without result
	MsgKKeepAlive               // Liveness probe expecting an Acknowledge
)

// String returns the string representation of a MessageKind.
func (k MessageKind) String() string {
	switch k {
	case MsgKRequest:
		return "request"
	case MsgKResponse:
		return "response"
	case MsgKAcknowledge:
		return "acknowledge"
	case MsgKKeepAlive:
		return "keepalive"
	default:
		return "unknown"
	}
}

// IsReply reports whether messages of this kind resolve a pending call
func (k MessageKind) IsReply() bool {
	return k == MsgKResponse || k == MsgKAcknowledge
}

// MarshalJSON implements the json.Marshaller interface for MessageKind.
func (k MessageKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageKind.
func (k *MessageKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	switch s {
	case "request":
		*k = MsgKRequest
	case "response":
		*k = MsgKResponse
	case "acknowledge":
		*k = MsgKAcknowledge
	case "keepalive":
		*k = MsgKKeepAlive
	default:
		return fmt.Errorf("unknown message kind: %s", s)
	}

	return nil
}
