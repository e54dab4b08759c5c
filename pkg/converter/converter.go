package converter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Ruadhri17/thin-edge.io/pkg/actor"
	"github.com/Ruadhri17/thin-edge.io/pkg/command"
	"github.com/Ruadhri17/thin-edge.io/pkg/log"
	"github.com/Ruadhri17/thin-edge.io/pkg/mqtt"
	"github.com/Ruadhri17/thin-edge.io/pkg/topics"
)

// DefaultQueueCapacity is the default size of the converter inbox.
const DefaultQueueCapacity = 16

// Config configures the converter.
type Config struct {
	// TopicRoot is the root of every topic, "te" by default.
	TopicRoot string

	// Device is the entity whose commands are converted.
	Device topics.EntityTopicID

	QueueCapacity int

	Logger         *slog.Logger
	ProtocolLogger log.Logger
}

// DefaultConfig returns the config for the main device.
func DefaultConfig() Config {
	return Config{
		TopicRoot:     topics.DefaultRoot,
		Device:        topics.DefaultMainDevice(),
		QueueCapacity: DefaultQueueCapacity,
	}
}

type (
	// SoftwareProvider serves software_list and software_update commands.
	SoftwareProvider = actor.ServiceProvider[command.Generic, command.Generic]

	// RestartProvider serves restart commands.
	RestartProvider = actor.ServiceProvider[command.RestartCommand, command.RestartCommand]
)

// input is the closed set of messages received by the converter.
type input interface {
	isInput()
}

type brokerInput struct{ msg mqtt.Message }
type responseInput struct{ cmd command.Generic }

func (brokerInput) isInput()   {}
func (responseInput) isInput() {}

// Builder wires the converter to its peers.
type Builder struct {
	cfg      Config
	schema   topics.Schema
	inbox    *actor.Mailbox[input]
	publish  actor.Sender[mqtt.Message]
	software actor.Sender[command.Generic]
	restart  actor.Sender[command.RestartCommand]
	ops      []topics.OperationKind
}

// NewBuilder connects the converter to the software and restart actors and
// to the broker. A nil provider disables its operations.
func NewBuilder(cfg Config, software SoftwareProvider, restart RestartProvider, broker mqtt.Registrar) *Builder {
	if cfg.QueueCapacity < 1 {
		cfg.QueueCapacity = DefaultQueueCapacity
	}
	if cfg.Device.IsZero() {
		cfg.Device = topics.DefaultMainDevice()
	}

	b := &Builder{
		cfg:    cfg,
		schema: topics.NewSchema(cfg.TopicRoot),
		inbox:  actor.NewMailbox[input]("OperationConverter", cfg.QueueCapacity),
	}

	if restart != nil {
		responses := actor.MapSender[command.RestartCommand, input](b.inbox.Sender(), func(c command.RestartCommand) input {
			return responseInput{cmd: c}
		})
		b.restart = restart.ConnectConsumer("OperationConverter", responses)
		b.ops = append(b.ops, topics.OperationRestart)
	}
	if software != nil {
		responses := actor.MapSender[command.Generic, input](b.inbox.Sender(), func(c command.Generic) input {
			return responseInput{cmd: c}
		})
		b.software = software.ConnectConsumer("OperationConverter", responses)
		b.ops = append(b.ops, topics.OperationSoftwareList, topics.OperationSoftwareUpdate)
	}

	var filter mqtt.TopicFilter
	for _, op := range b.ops {
		_ = filter.Add(b.schema.CommandFilter(cfg.Device, op))
	}
	sink := actor.MapSender[mqtt.Message, input](b.inbox.Sender(), func(m mqtt.Message) input {
		return brokerInput{msg: m}
	})
	b.publish = broker.ConnectSubscriber("OperationConverter", filter, sink)

	return b
}

// Operations returns the served operations, in announcement order.
func (b *Builder) Operations() []topics.OperationKind {
	return append([]topics.OperationKind(nil), b.ops...)
}

// Build returns the converter actor.
func (b *Builder) Build() (actor.Actor, error) {
	logger := b.cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{
		cfg:       b.cfg,
		schema:    b.schema,
		inbox:     b.inbox,
		publish:   b.publish,
		software:  b.software,
		restart:   b.restart,
		ops:       b.ops,
		tracker:   command.NewTracker(),
		announced: make(map[topics.ChannelKey]bool),
		logger:    logger,
		capture:   log.OrNoop(b.cfg.ProtocolLogger),
	}, nil
}

// Converter is the operation converter actor.
type Converter struct {
	cfg      Config
	schema   topics.Schema
	inbox    *actor.Mailbox[input]
	publish  actor.Sender[mqtt.Message]
	software actor.Sender[command.Generic]
	restart  actor.Sender[command.RestartCommand]
	ops      []topics.OperationKind

	tracker   *command.Tracker
	announced map[topics.ChannelKey]bool

	logger  *slog.Logger
	capture log.Logger
}

// Name returns "OperationConverter".
func (c *Converter) Name() string {
	return "OperationConverter"
}

// Run announces the capabilities, then converts messages until the inbox
// is exhausted, ctx is done or a peer goes away.
func (c *Converter) Run(ctx context.Context) error {
	defer c.closePeers()

	if err := c.announceCapabilities(ctx); err != nil {
		return c.stopOn(err)
	}

	for {
		in, ok := c.inbox.Recv(ctx)
		if !ok {
			return nil
		}

		var err error
		switch in := in.(type) {
		case brokerInput:
			err = c.handleCommandMessage(ctx, in.msg)
		case responseInput:
			err = c.handleResponse(ctx, in.cmd)
		}
		if err != nil {
			return c.stopOn(err)
		}
	}
}

// stopOn turns the termination of a link into a clean stop.
func (c *Converter) stopOn(err error) error {
	switch {
	case errors.Is(err, actor.ErrMailboxClosed):
		c.logger.Info("Peer stopped, stopping converter", "error", err)
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil
	default:
		return err
	}
}

func (c *Converter) closePeers() {
	c.publish.Close()
	if c.software != nil {
		c.software.Close()
	}
	if c.restart != nil {
		c.restart.Close()
	}
}

func (c *Converter) announceCapabilities(ctx context.Context) error {
	for _, op := range c.ops {
		key := topics.ChannelKey{Entity: c.cfg.Device, Operation: op}
		if c.announced[key] {
			continue
		}
		topic := c.schema.Topic(key.Entity, topics.CommandMetadataChannel(op))
		msg := mqtt.NewMessage(topic, []byte("{}")).WithRetain()
		if err := c.publish.Send(ctx, msg); err != nil {
			return err
		}
		c.announced[key] = true
		c.logger.Debug("Capability announced", "capability", key.String())
	}
	return nil
}

func (c *Converter) handleCommandMessage(ctx context.Context, msg mqtt.Message) error {
	entity, ch, err := c.schema.EntityChannelOf(msg.Topic)
	if err != nil || ch.Kind != topics.ChannelCommand || entity != c.cfg.Device {
		return nil
	}
	key := command.Key{Target: entity, Operation: ch.Operation, CmdID: ch.CmdID}

	if msg.IsEmpty() {
		c.tracker.Forget(key)
		c.logger.Debug("Command cleared", "command", key.String())
		return nil
	}

	switch ch.Operation {
	case topics.OperationRestart:
		if c.restart == nil {
			return nil
		}
		cmd, err := command.Decode[command.RestartPayload](entity, ch.CmdID, msg.Payload)
		if err != nil {
			c.logMalformed(key, err)
			return nil
		}
		if !c.accept(key, cmd, msg.Topic) {
			return nil
		}
		return c.restart.Send(ctx, cmd)

	case topics.OperationSoftwareList:
		if c.software == nil {
			return nil
		}
		cmd, err := command.Decode[command.SoftwareListPayload](entity, ch.CmdID, msg.Payload)
		if err != nil {
			c.logMalformed(key, err)
			return nil
		}
		if !c.accept(key, cmd, msg.Topic) {
			return nil
		}
		return c.software.Send(ctx, cmd)

	case topics.OperationSoftwareUpdate:
		if c.software == nil {
			return nil
		}
		cmd, err := command.Decode[command.SoftwareUpdatePayload](entity, ch.CmdID, msg.Payload)
		if err != nil {
			c.logMalformed(key, err)
			return nil
		}
		if !c.accept(key, cmd, msg.Topic) {
			return nil
		}
		return c.software.Send(ctx, cmd)

	default:
		return nil
	}
}

func (c *Converter) logMalformed(key command.Key, err error) {
	c.logger.Warn("Dropping malformed command", "command", key.String(), "error", err)
}

// accept records the status of cmd, reporting false when the update is
// out of order. A repeated status is the echo of our own publication.
func (c *Converter) accept(key command.Key, cmd command.Generic, topic string) bool {
	status := cmd.Status()
	if current, ok := c.tracker.Status(key); ok && current == status {
		c.logger.Debug("Ignoring repeated command status", "command", key.String(), "status", status)
		return false
	}
	if err := c.tracker.Observe(key, status); err != nil {
		c.logger.Warn("Dropping out of order command status", "command", key.String(), "error", err)
		c.record(key, cmd, topic, true)
		return false
	}
	c.record(key, cmd, topic, false)
	return true
}

func (c *Converter) handleResponse(ctx context.Context, cmd command.Generic) error {
	key := cmd.Key()
	topic := c.schema.Topic(key.Target, topics.CommandChannel(key.Operation, key.CmdID))

	if !c.accept(key, cmd, topic) {
		return nil
	}

	payload, err := cmd.Encode()
	if err != nil {
		c.logger.Error("Cannot encode command response", "command", key.String(), "error", err)
		return nil
	}
	return c.publish.Send(ctx, mqtt.NewMessage(topic, payload).WithRetain())
}

func (c *Converter) record(key command.Key, cmd command.Generic, topic string, rejected bool) {
	c.capture.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerOperation,
		Category:  log.CategoryState,
		Command: &log.CommandEvent{
			Topic:     topic,
			Operation: string(key.Operation),
			CmdID:     key.CmdID,
			Status:    cmd.Status().String(),
			Reason:    cmd.Reason(),
			Rejected:  rejected,
		},
	})
}
