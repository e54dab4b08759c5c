package software

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Ruadhri17/thin-edge.io/pkg/actor"
	"github.com/Ruadhri17/thin-edge.io/pkg/command"
)

// DefaultQueueCapacity is the default size of the manager inbox.
const DefaultQueueCapacity = 10

// Config configures the software manager.
type Config struct {
	// DefaultType handles modules listed without a software type.
	DefaultType string

	QueueCapacity int

	Logger *slog.Logger
}

// Builder wires the software manager. It is the SoftwareProvider of the
// operation converter.
type Builder struct {
	cfg       Config
	inbox     *actor.Mailbox[command.Generic]
	consumers []actor.Sender[command.Generic]
	server    *actor.ServerActor[command.Generic, command.Generic]
}

// NewBuilder creates a software manager builder over plugins.
func NewBuilder(cfg Config, plugins Plugins) *Builder {
	if cfg.QueueCapacity < 1 {
		cfg.QueueCapacity = DefaultQueueCapacity
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	server := NewPluginServer(plugins, cfg.DefaultType, cfg.Logger)
	return &Builder{
		cfg:    cfg,
		inbox:  actor.NewMailbox[command.Generic]("SoftwareManager", cfg.QueueCapacity),
		server: actor.NewServerActor[command.Generic, command.Generic](server, 1, cfg.Logger),
	}
}

// ConnectConsumer returns the sender on which software commands are pushed.
// Status updates are sent back on responses.
func (b *Builder) ConnectConsumer(_ string, responses actor.Sender[command.Generic]) actor.Sender[command.Generic] {
	b.consumers = append(b.consumers, responses)
	return b.inbox.Sender()
}

// PluginActor returns the actor running the plugins. It must be spawned
// along with the manager, and stops once the manager is done.
func (b *Builder) PluginActor() actor.Actor {
	return b.server
}

// Build returns the software manager actor.
func (b *Builder) Build() (actor.Actor, error) {
	return &Manager{
		inbox:     b.inbox,
		responses: actor.FanOut(b.consumers...),
		plugins:   b.server.Handle(),
		logger:    b.cfg.Logger,
	}, nil
}

// Manager is the software manager actor. Each init command is reported as
// executing, run by the plugin server, then reported in its final state.
type Manager struct {
	inbox     *actor.Mailbox[command.Generic]
	responses actor.Sender[command.Generic]
	plugins   *actor.ServerHandle[command.Generic, command.Generic]
	logger    *slog.Logger
}

// Name returns "SoftwareManager".
func (m *Manager) Name() string {
	return "SoftwareManager"
}

// Run serves software commands until the inbox is exhausted.
func (m *Manager) Run(ctx context.Context) error {
	defer m.plugins.Close()
	defer m.responses.Close()

	for {
		cmd, ok := m.inbox.Recv(ctx)
		if !ok {
			return nil
		}
		if err := m.handle(ctx, cmd); err != nil {
			if errors.Is(err, actor.ErrMailboxClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}

func (m *Manager) handle(ctx context.Context, cmd command.Generic) error {
	if cmd.Status() != command.StatusInit {
		return nil
	}

	executing, ok := markExecuting(cmd)
	if !ok {
		m.logger.Warn("Unsupported software command", "command", cmd.Key().String())
		return nil
	}
	if err := m.responses.Send(ctx, executing); err != nil {
		return err
	}

	done, err := m.plugins.Call(ctx, executing)
	if err != nil {
		return err
	}
	if done == nil {
		return nil
	}
	m.logger.Info("Software command done", "command", done.Key().String(), "status", done.Status())
	return m.responses.Send(ctx, done)
}

func markExecuting(cmd command.Generic) (command.Generic, bool) {
	switch cmd := cmd.(type) {
	case command.SoftwareListCommand:
		return cmd.WithStatus(command.StatusExecuting, ""), true
	case command.SoftwareUpdateCommand:
		return cmd.WithStatus(command.StatusExecuting, ""), true
	default:
		return nil, false
	}
}
