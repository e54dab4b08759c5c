package restart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Ruadhri17/thin-edge.io/pkg/actor"
	"github.com/Ruadhri17/thin-edge.io/pkg/command"
	"github.com/Ruadhri17/thin-edge.io/pkg/persistence"
)

const (
	// DefaultQueueCapacity is the default size of the manager inbox.
	DefaultQueueCapacity = 10

	// DefaultRunDir is cleared by the system on reboot.
	DefaultRunDir = "/run/tedge-agent"

	markerFile = "restart-pending"
)

// ReasonNotRestarted is reported when the agent restarted but the system did not.
const ReasonNotRestarted = "system did not restart"

// ErrNoStatePath is returned by Build when no state file is configured.
var ErrNoStatePath = errors.New("restart: state path required")

// Config configures the restart manager.
type Config struct {
	// StatePath is the agent state file keeping the pending restart.
	StatePath string

	// RunDir holds the restart marker. It must not survive a reboot.
	RunDir string

	// RebootCommand is used when no Rebooter is set on the builder.
	RebootCommand []string

	QueueCapacity int

	Logger *slog.Logger
}

// Builder wires the restart manager. It is the RestartProvider of the
// operation converter.
type Builder struct {
	cfg       Config
	rebooter  Rebooter
	inbox     *actor.Mailbox[command.RestartCommand]
	consumers []actor.Sender[command.RestartCommand]
}

// NewBuilder creates a restart manager builder.
func NewBuilder(cfg Config) *Builder {
	if cfg.QueueCapacity < 1 {
		cfg.QueueCapacity = DefaultQueueCapacity
	}
	if cfg.RunDir == "" {
		cfg.RunDir = DefaultRunDir
	}
	if len(cfg.RebootCommand) == 0 {
		cfg.RebootCommand = DefaultRebootCommand
	}
	return &Builder{
		cfg:   cfg,
		inbox: actor.NewMailbox[command.RestartCommand]("RestartManager", cfg.QueueCapacity),
	}
}

// WithRebooter replaces the reboot command.
func (b *Builder) WithRebooter(r Rebooter) *Builder {
	b.rebooter = r
	return b
}

// ConnectConsumer returns the sender on which restart commands are pushed.
// Status updates are sent back on responses.
func (b *Builder) ConnectConsumer(_ string, responses actor.Sender[command.RestartCommand]) actor.Sender[command.RestartCommand] {
	b.consumers = append(b.consumers, responses)
	return b.inbox.Sender()
}

// Build returns the restart manager actor.
func (b *Builder) Build() (actor.Actor, error) {
	if b.cfg.StatePath == "" {
		return nil, ErrNoStatePath
	}
	rebooter := b.rebooter
	if rebooter == nil {
		rebooter = CommandRebooter{Args: b.cfg.RebootCommand}
	}
	logger := b.cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		inbox:     b.inbox,
		responses: actor.FanOut(b.consumers...),
		store:     persistence.NewAgentStateStore(b.cfg.StatePath),
		marker:    filepath.Join(b.cfg.RunDir, markerFile),
		rebooter:  rebooter,
		logger:    logger,
	}, nil
}

// Manager is the restart manager actor.
type Manager struct {
	inbox     *actor.Mailbox[command.RestartCommand]
	responses actor.Sender[command.RestartCommand]
	store     *persistence.AgentStateStore
	marker    string
	rebooter  Rebooter
	logger    *slog.Logger
}

// Name returns "RestartManager".
func (m *Manager) Name() string {
	return "RestartManager"
}

// Run concludes any restart pending from a previous run, then serves
// restart commands.
func (m *Manager) Run(ctx context.Context) error {
	defer m.responses.Close()

	if err := m.resume(ctx); err != nil {
		return stopOn(err)
	}

	for {
		cmd, ok := m.inbox.Recv(ctx)
		if !ok {
			return nil
		}
		if err := m.handle(ctx, cmd); err != nil {
			return stopOn(err)
		}
	}
}

func stopOn(err error) error {
	if errors.Is(err, actor.ErrMailboxClosed) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (m *Manager) resume(ctx context.Context) error {
	state, err := m.store.Load()
	if err != nil {
		m.logger.Warn("Cannot load agent state", "error", err)
		return nil
	}
	if state == nil || state.PendingRestart == nil {
		return nil
	}
	pending := state.PendingRestart

	status, reason := command.StatusSuccessful, ""
	if _, err := os.Stat(m.marker); err == nil {
		status, reason = command.StatusFailed, ReasonNotRestarted
	}
	m.logger.Info("Resuming restart command",
		"target", pending.Target.String(), "cmd_id", pending.CmdID, "status", status)

	m.clear()
	return m.responses.Send(ctx, command.New(pending.Target, pending.CmdID, command.RestartPayload{
		StatusPayload: command.StatusPayload{Status: status, Reason: reason},
	}))
}

func (m *Manager) handle(ctx context.Context, cmd command.RestartCommand) error {
	if cmd.Status() != command.StatusInit {
		m.logger.Debug("Ignoring restart command update", "command", cmd.Key().String(), "status", cmd.Status())
		return nil
	}

	if err := m.prepare(cmd); err != nil {
		m.clear()
		return m.responses.Send(ctx, cmd.WithStatus(command.StatusFailed, fmt.Sprintf("cannot prepare restart: %v", err)))
	}
	if err := m.responses.Send(ctx, cmd.WithStatus(command.StatusExecuting, "")); err != nil {
		return err
	}

	m.logger.Info("Restarting device", "command", cmd.Key().String())
	if err := m.rebooter.Reboot(ctx); err != nil {
		m.logger.Error("Restart failed", "command", cmd.Key().String(), "error", err)
		m.clear()
		return m.responses.Send(ctx, cmd.WithStatus(command.StatusFailed, fmt.Sprintf("restart command failed: %v", err)))
	}
	return nil
}

func (m *Manager) prepare(cmd command.RestartCommand) error {
	if err := os.MkdirAll(filepath.Dir(m.marker), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(m.marker, nil, 0644); err != nil {
		return err
	}
	return m.store.Update(func(s *persistence.AgentState) {
		s.PendingRestart = &persistence.PendingRestart{
			Target:      cmd.Target,
			CmdID:       cmd.CmdID,
			RequestedAt: time.Now(),
		}
	})
}

func (m *Manager) clear() {
	if err := m.store.Update(func(s *persistence.AgentState) { s.PendingRestart = nil }); err != nil {
		m.logger.Warn("Cannot clear pending restart", "error", err)
	}
	if err := os.Remove(m.marker); err != nil && !os.IsNotExist(err) {
		m.logger.Warn("Cannot remove restart marker", "error", err)
	}
}
