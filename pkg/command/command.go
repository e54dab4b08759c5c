package command

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Ruadhri17/thin-edge.io/pkg/mqtt"
	"github.com/Ruadhri17/thin-edge.io/pkg/topics"
)

// ErrMalformedPayload is returned when a command payload cannot be decoded.
var ErrMalformedPayload = errors.New("malformed command payload")

// Key identifies an outstanding command.
type Key struct {
	Target    topics.EntityTopicID
	Operation topics.OperationKind
	CmdID     string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/cmd/%s/%s", k.Target, k.Operation, k.CmdID)
}

// Command is a request addressed to an entity.
type Command[P Payload] struct {
	Target  topics.EntityTopicID
	CmdID   string
	Payload P
}

type (
	RestartCommand        = Command[RestartPayload]
	SoftwareListCommand   = Command[SoftwareListPayload]
	SoftwareUpdateCommand = Command[SoftwareUpdatePayload]
)

// Generic is the type-erased view of any Command.
type Generic interface {
	Key() Key
	Status() Status
	Reason() string
	Encode() ([]byte, error)
}

var (
	_ Generic = RestartCommand{}
	_ Generic = SoftwareListCommand{}
	_ Generic = SoftwareUpdateCommand{}
)

// New creates a command with the given payload.
func New[P Payload](target topics.EntityTopicID, cmdID string, payload P) Command[P] {
	return Command[P]{Target: target, CmdID: cmdID, Payload: payload}
}

// Key returns the identity of the command.
func (c Command[P]) Key() Key {
	return Key{Target: c.Target, Operation: c.Payload.Operation(), CmdID: c.CmdID}
}

// Status returns the status carried by the payload.
func (c Command[P]) Status() Status {
	return c.Payload.CommandStatus()
}

// Reason returns the failure reason carried by the payload.
func (c Command[P]) Reason() string {
	return c.Payload.CommandReason()
}

// Encode serializes the payload to JSON.
func (c Command[P]) Encode() ([]byte, error) {
	return json.Marshal(c.Payload)
}

// Topic returns the command topic under schema.
func (c Command[P]) Topic(schema topics.Schema) string {
	return schema.Topic(c.Target, topics.CommandChannel(c.Payload.Operation(), c.CmdID))
}

// Message returns the retained QoS 1 message carrying the command.
func (c Command[P]) Message(schema topics.Schema) (mqtt.Message, error) {
	payload, err := c.Encode()
	if err != nil {
		return mqtt.Message{}, err
	}
	return mqtt.NewMessage(c.Topic(schema), payload).WithQoS(mqtt.AtLeastOnce).WithRetain(), nil
}

// Decode parses a command payload. Payloads without a valid status are
// rejected.
func Decode[P Payload](target topics.EntityTopicID, cmdID string, data []byte) (Command[P], error) {
	var payload P
	if err := json.Unmarshal(data, &payload); err != nil {
		return Command[P]{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if payload.CommandStatus() == StatusUnknown {
		return Command[P]{}, fmt.Errorf("%w: missing status", ErrMalformedPayload)
	}
	return New(target, cmdID, payload), nil
}

type statusSetter interface {
	SetStatus(status Status, reason string)
}

// WithStatus returns a copy of c moved to status. Operation-specific fields
// are kept.
func (c Command[P]) WithStatus(status Status, reason string) Command[P] {
	if s, ok := any(&c.Payload).(statusSetter); ok {
		s.SetStatus(status, reason)
	}
	return c
}
