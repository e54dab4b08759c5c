package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	paho "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/sync/errgroup"

	"github.com/Ruadhri17/thin-edge.io/pkg/actor"
	"github.com/Ruadhri17/thin-edge.io/pkg/log"
)

// Registrar is implemented by builders that give actors access to the
// broker. The returned Sender publishes; messages matching filter are
// delivered on sink.
type Registrar interface {
	ConnectSubscriber(name string, filter TopicFilter, sink actor.Sender[Message]) actor.Sender[Message]
}

var _ Registrar = (*Builder)(nil)

type subscriber struct {
	name   string
	filter TopicFilter
	sink   actor.Sender[Message]
}

// Builder wires actors to the broker connection.
type Builder struct {
	cfg         Config
	inbox       *actor.Mailbox[Message]
	subscribers []subscriber
	newClient   ClientFactory
	built       bool
}

// NewBuilder creates a connection builder. The subscriptions of cfg are
// kept and extended by every ConnectSubscriber call.
func NewBuilder(cfg Config) *Builder {
	return &Builder{
		cfg:       cfg,
		inbox:     actor.NewMailbox[Message]("MQTT", cfg.queueCapacity()),
		newClient: newPahoClient,
	}
}

// WithClientFactory replaces the paho client, for tests.
func (b *Builder) WithClientFactory(f ClientFactory) *Builder {
	b.newClient = f
	return b
}

// ConnectSubscriber registers sink for the messages matching filter.
func (b *Builder) ConnectSubscriber(name string, filter TopicFilter, sink actor.Sender[Message]) actor.Sender[Message] {
	b.cfg.Subscriptions.AddAll(filter)
	b.subscribers = append(b.subscribers, subscriber{name: name, filter: filter, sink: sink})
	return b.inbox.Sender()
}

// Publisher returns a sender for an actor that only publishes.
func (b *Builder) Publisher() actor.Sender[Message] {
	return b.inbox.Sender()
}

// Config returns the connection config including the subscriptions of
// every registered subscriber.
func (b *Builder) Config() Config {
	return b.cfg
}

// Build returns the connection actor.
func (b *Builder) Build() (actor.Actor, error) {
	if b.built {
		return nil, errors.New("mqtt connection already built")
	}
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}
	b.built = true

	return &Connection{
		cfg:         b.cfg,
		newClient:   b.newClient,
		inbox:       b.inbox,
		subscribers: b.subscribers,
		received:    make(chan Message, b.cfg.queueCapacity()),
		logger:      b.cfg.logger(),
		capture:     newCapture(b.cfg),
	}, nil
}

// Connection is the actor owning the broker connection.
type Connection struct {
	cfg         Config
	newClient   ClientFactory
	client      Client
	inbox       *actor.Mailbox[Message]
	subscribers []subscriber
	received    chan Message
	logger      *slog.Logger
	capture     *capture
}

// Name returns "MQTT".
func (c *Connection) Name() string {
	return "MQTT"
}

// Run connects to the broker, then publishes the messages received on its
// inbox and dispatches incoming messages to the subscribers, until every
// publisher is closed or ctx is done.
func (c *Connection) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer c.inbox.Close()
	defer c.closeSinks()

	opts := c.cfg.clientOptions().
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetDefaultPublishHandler(c.messageHandler(ctx)).
		SetOnConnectHandler(func(paho.Client) { c.onConnect(ctx) }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			c.logger.Warn("Connection to broker lost", "broker", c.cfg.Address(), "error", err)
			c.capture.connectionState("connected", "disconnected", errString(err))
		})
	c.client = c.newClient(opts)

	c.logger.Info("Connecting to broker", "broker", c.cfg.Address(), "session", c.cfg.SessionName, "clean", c.cfg.CleanSession)
	c.capture.connect()
	token := c.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		// paho keeps retrying the connection until it is disconnected.
		c.client.Disconnect(0)
		c.capture.connectionState("connecting", "disconnected", "shutdown")
		return nil
	}
	if err := token.Error(); err != nil {
		rc, _ := connectResult(token)
		if rc == ReturnCodeAccepted {
			rc = ReturnCodeNetworkError
		}
		code := int(rc)
		c.capture.failure(log.LayerTransport, "connect", err, &code)
		return &ConnectionError{ReturnCode: rc, Err: err}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return c.publishLoop(gctx)
	})
	g.Go(func() error {
		return c.dispatchLoop(gctx)
	})
	err := g.Wait()

	c.disconnect()
	return err
}

func (c *Connection) messageHandler(ctx context.Context) paho.MessageHandler {
	return func(_ paho.Client, m paho.Message) {
		msg := Message{
			Topic:   m.Topic(),
			Payload: m.Payload(),
			QoS:     QoS(m.Qos()),
			Retain:  m.Retained(),
		}
		c.capture.publish(log.DirectionIn, msg)
		select {
		case c.received <- msg:
		case <-ctx.Done():
		}
	}
}

func (c *Connection) onConnect(ctx context.Context) {
	c.logger.Info("Connected to broker", "broker", c.cfg.Address())
	c.capture.connectionState("connecting", "connected", "")

	if !c.cfg.Subscriptions.IsEmpty() {
		c.capture.subscribe(c.cfg.Subscriptions.Patterns())
		token := c.client.SubscribeMultiple(c.cfg.Subscriptions.Filters(), nil)
		select {
		case <-token.Done():
			if err := token.Error(); err != nil {
				c.logger.Error("Subscription failed", "filters", c.cfg.Subscriptions.String(), "error", err)
				c.capture.failure(log.LayerTransport, "subscribe", err, nil)
			}
		case <-ctx.Done():
			return
		}
	}

	for _, msg := range c.cfg.InitialMessages {
		c.publish(ctx, msg)
	}
}

func (c *Connection) publishLoop(ctx context.Context) error {
	for {
		msg, ok := c.inbox.Recv(ctx)
		if !ok {
			return nil
		}
		c.publish(ctx, msg)
	}
}

// publish sends msg and, for QoS > 0, waits for the broker acknowledgement.
func (c *Connection) publish(ctx context.Context, msg Message) {
	c.capture.publish(log.DirectionOut, msg)
	token := c.client.Publish(msg.Topic, byte(msg.QoS), msg.Retain, msg.Payload)
	if msg.QoS == AtMostOnce {
		return
	}
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			c.logger.Error("Publish failed", "topic", msg.Topic, "error", err)
			c.capture.failure(log.LayerTransport, "publish "+msg.Topic, err, nil)
		}
	case <-ctx.Done():
	}
}

func (c *Connection) dispatchLoop(ctx context.Context) error {
	for {
		select {
		case msg := <-c.received:
			if err := c.dispatch(ctx, msg); err != nil {
				return nil
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// dispatch delivers msg to every matching subscriber, blocking while a
// subscriber inbox is full.
func (c *Connection) dispatch(ctx context.Context, msg Message) error {
	for _, s := range c.subscribers {
		if !s.filter.Accept(msg.Topic) {
			continue
		}
		if err := s.sink.Send(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Debug("Subscriber not accepting messages", "subscriber", s.name, "topic", msg.Topic, "error", err)
		}
	}
	return nil
}

func (c *Connection) closeSinks() {
	for _, s := range c.subscribers {
		s.sink.Close()
	}
}

func (c *Connection) disconnect() {
	if c.client == nil || !c.client.IsConnectionOpen() {
		return
	}
	c.logger.Info("Disconnecting from broker", "broker", c.cfg.Address())
	c.capture.disconnect()
	c.client.Disconnect(disconnectQuiesce)
	c.capture.connectionState("connected", "disconnected", "shutdown")
}

// Publish is a convenience for one-off publications outside an actor.
func Publish(ctx context.Context, s actor.Sender[Message], msg Message) error {
	if err := s.Send(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Topic, err)
	}
	return nil
}
