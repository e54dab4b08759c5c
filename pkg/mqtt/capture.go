package mqtt

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ruadhri17/thin-edge.io/pkg/log"
)

// capture records protocol events for one broker connection.
type capture struct {
	logger   log.Logger
	connID   string
	clientID string
	broker   string
}

func newCapture(cfg Config) *capture {
	return &capture{
		logger:   log.OrNoop(cfg.ProtocolLogger),
		connID:   uuid.NewString(),
		clientID: cfg.SessionName,
		broker:   cfg.Address(),
	}
}

func (c *capture) event(dir log.Direction, layer log.Layer, cat log.Category) log.Event {
	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Direction:    dir,
		Layer:        layer,
		Category:     cat,
		ClientID:     c.clientID,
		Broker:       c.broker,
	}
}

func (c *capture) publish(dir log.Direction, msg Message) {
	e := c.event(dir, log.LayerTransport, log.CategoryMessage)
	e.Packet = log.NewPublishEvent(msg.Topic, uint8(msg.QoS), msg.Retain, msg.Payload)
	c.logger.Log(e)
}

func (c *capture) control(dir log.Direction, p *log.PacketEvent) {
	e := c.event(dir, log.LayerTransport, log.CategoryControl)
	e.Packet = p
	c.logger.Log(e)
}

func (c *capture) connect() {
	c.control(log.DirectionOut, &log.PacketEvent{Type: log.PacketConnect})
}

func (c *capture) connAck(rc byte) {
	code := rc
	c.control(log.DirectionIn, &log.PacketEvent{Type: log.PacketConnAck, ReturnCode: &code})
}

func (c *capture) subscribe(filters []string) {
	c.control(log.DirectionOut, &log.PacketEvent{Type: log.PacketSubscribe, Filters: filters})
}

func (c *capture) disconnect() {
	c.control(log.DirectionOut, &log.PacketEvent{Type: log.PacketDisconnect})
}

func (c *capture) state(entity log.StateEntity, from, to, reason string) {
	e := c.event(log.DirectionOut, log.LayerSession, log.CategoryState)
	e.StateChange = &log.StateChangeEvent{Entity: entity, OldState: from, NewState: to, Reason: reason}
	c.logger.Log(e)
}

func (c *capture) sessionState(from, to, reason string) {
	c.state(log.StateEntitySession, from, to, reason)
}

func (c *capture) connectionState(from, to, reason string) {
	c.state(log.StateEntityConnection, from, to, reason)
}

func (c *capture) failure(layer log.Layer, context string, err error, code *int) {
	e := c.event(log.DirectionIn, layer, log.CategoryError)
	e.Error = &log.ErrorEventData{Layer: layer, Message: errString(err), Code: code, Context: context}
	c.logger.Log(e)
}
