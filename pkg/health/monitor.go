package health

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/Ruadhri17/thin-edge.io/pkg/actor"
	"github.com/Ruadhri17/thin-edge.io/pkg/mqtt"
	"github.com/Ruadhri17/thin-edge.io/pkg/topics"
)

// AgentService is the service id of the agent itself.
var AgentService = topics.DefaultService("tedge-agent")

// Config configures the health monitor.
type Config struct {
	TopicRoot string

	// Service is the entity whose health is reported.
	Service topics.EntityTopicID

	Logger *slog.Logger
}

// Builder wires the health monitor to the broker.
type Builder struct {
	cfg     Config
	schema  topics.Schema
	inbox   *actor.Mailbox[mqtt.Message]
	publish actor.Sender[mqtt.Message]
}

// NewBuilder subscribes the monitor to the health checks of the service.
func NewBuilder(cfg Config, broker mqtt.Registrar) *Builder {
	if cfg.Service.IsZero() {
		cfg.Service = AgentService
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	b := &Builder{
		cfg:    cfg,
		schema: topics.NewSchema(cfg.TopicRoot),
		inbox:  actor.NewMailbox[mqtt.Message]("HealthMonitor", 4),
	}
	filter := mqtt.MustTopicFilter(CheckTopic(b.schema, cfg.Service))
	b.publish = broker.ConnectSubscriber("HealthMonitor", filter, b.inbox.Sender())
	return b
}

// LastWill returns the message the broker publishes if the agent vanishes.
func (b *Builder) LastWill() mqtt.Message {
	return DownMessage(b.schema, b.cfg.Service)
}

// Build returns the health monitor actor.
func (b *Builder) Build() (actor.Actor, error) {
	return &Monitor{
		schema:  b.schema,
		service: b.cfg.Service,
		inbox:   b.inbox,
		publish: b.publish,
		pid:     os.Getpid(),
		now:     time.Now,
		logger:  b.cfg.Logger,
	}, nil
}

// Monitor publishes the service status on start and on every health check.
type Monitor struct {
	schema  topics.Schema
	service topics.EntityTopicID
	inbox   *actor.Mailbox[mqtt.Message]
	publish actor.Sender[mqtt.Message]
	pid     int
	now     func() time.Time
	logger  *slog.Logger
}

// Name returns "HealthMonitor".
func (m *Monitor) Name() string {
	return "HealthMonitor"
}

// Run answers health checks until the inbox is exhausted.
func (m *Monitor) Run(ctx context.Context) error {
	defer m.publish.Close()

	if err := m.up(ctx); err != nil {
		return stopOn(err)
	}
	for {
		if _, ok := m.inbox.Recv(ctx); !ok {
			return nil
		}
		m.logger.Debug("Health check", "service", m.service.String())
		if err := m.up(ctx); err != nil {
			return stopOn(err)
		}
	}
}

func (m *Monitor) up(ctx context.Context) error {
	return m.publish.Send(ctx, UpMessage(m.schema, m.service, m.pid, m.now()))
}

func stopOn(err error) error {
	if errors.Is(err, actor.ErrMailboxClosed) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
