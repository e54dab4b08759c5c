package log

import "time"

// Event represents a protocol event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the broker connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// ClientID is the MQTT client id (the session name for persistent sessions).
	ClientID string `cbor:"6,keyasint,omitempty"`

	// Broker is the broker address (host:port).
	Broker string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Packet      *PacketEvent      `cbor:"10,keyasint,omitempty"` // Transport layer
	Command     *CommandEvent     `cbor:"11,keyasint,omitempty"` // Operation layer
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Connection/session state
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Topic returns the topic carried by the event, if any.
func (e Event) Topic() string {
	switch {
	case e.Packet != nil:
		return e.Packet.Topic
	case e.Command != nil:
		return e.Command.Topic
	default:
		return ""
	}
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates a message received from the broker.
	DirectionIn Direction = 0
	// DirectionOut indicates a message sent to the broker.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerTransport is the MQTT packet layer.
	LayerTransport Layer = 0
	// LayerSession is the session and connection management layer.
	LayerSession Layer = 1
	// LayerOperation is the command lifecycle layer.
	LayerOperation Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerSession:
		return "SESSION"
	case LayerOperation:
		return "OPERATION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates an application message (PUBLISH).
	CategoryMessage Category = 0
	// CategoryControl indicates a control packet (CONNECT, SUBSCRIBE, ...).
	CategoryControl Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MaxCapturedPayload bounds the payload bytes kept in a PacketEvent.
const MaxCapturedPayload = 4096

// PacketEvent captures an MQTT packet.
type PacketEvent struct {
	// Type of packet.
	Type PacketType `cbor:"1,keyasint"`

	// Topic of a PUBLISH.
	Topic string `cbor:"2,keyasint,omitempty"`

	// QoS of a PUBLISH.
	QoS uint8 `cbor:"3,keyasint,omitempty"`

	// Retain flag of a PUBLISH.
	Retain bool `cbor:"4,keyasint,omitempty"`

	// Size is the payload size in bytes.
	Size int `cbor:"5,keyasint,omitempty"`

	// Payload bytes (may be truncated to MaxCapturedPayload).
	Payload []byte `cbor:"6,keyasint,omitempty"`

	// Truncated indicates if Payload was truncated.
	Truncated bool `cbor:"7,keyasint,omitempty"`

	// ReturnCode of a CONNACK.
	ReturnCode *uint8 `cbor:"8,keyasint,omitempty"`

	// Filters of a SUBSCRIBE.
	Filters []string `cbor:"9,keyasint,omitempty"`
}

// NewPublishEvent builds a PUBLISH packet event, truncating the payload.
func NewPublishEvent(topic string, qos uint8, retain bool, payload []byte) *PacketEvent {
	p := &PacketEvent{
		Type:   PacketPublish,
		Topic:  topic,
		QoS:    qos,
		Retain: retain,
		Size:   len(payload),
	}
	if len(payload) > MaxCapturedPayload {
		p.Payload = append([]byte(nil), payload[:MaxCapturedPayload]...)
		p.Truncated = true
	} else if len(payload) > 0 {
		p.Payload = append([]byte(nil), payload...)
	}
	return p
}

// PacketType identifies an MQTT control packet.
type PacketType uint8

const (
	PacketConnect    PacketType = 1
	PacketConnAck    PacketType = 2
	PacketPublish    PacketType = 3
	PacketSubscribe  PacketType = 8
	PacketSubAck     PacketType = 9
	PacketDisconnect PacketType = 14
)

// String returns the packet type name.
func (p PacketType) String() string {
	switch p {
	case PacketConnect:
		return "CONNECT"
	case PacketConnAck:
		return "CONNACK"
	case PacketPublish:
		return "PUBLISH"
	case PacketSubscribe:
		return "SUBSCRIBE"
	case PacketSubAck:
		return "SUBACK"
	case PacketDisconnect:
		return "DISCONNECT"
	default:
		return "UNKNOWN"
	}
}

// CommandEvent captures a command status transition.
type CommandEvent struct {
	// Topic of the command.
	Topic string `cbor:"1,keyasint"`

	// Operation kind (restart, software_list, ...).
	Operation string `cbor:"2,keyasint"`

	// CmdID of the command.
	CmdID string `cbor:"3,keyasint"`

	// Status after the transition.
	Status string `cbor:"4,keyasint"`

	// Reason for a failure.
	Reason string `cbor:"5,keyasint,omitempty"`

	// Rejected is set when the update was dropped as out of order.
	Rejected bool `cbor:"6,keyasint,omitempty"`
}

// StateChangeEvent captures connection and session lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a connection state change.
	StateEntityConnection StateEntity = 0
	// StateEntitySession indicates a persistent session state change.
	StateEntitySession StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntitySession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the MQTT return code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
