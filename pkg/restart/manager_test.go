package restart

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Ruadhri17/thin-edge.io/pkg/actor/actortest"
	"github.com/Ruadhri17/thin-edge.io/pkg/command"
	"github.com/Ruadhri17/thin-edge.io/pkg/persistence"
	"github.com/Ruadhri17/thin-edge.io/pkg/topics"
)

type stubRebooter struct{ mock.Mock }

func (r *stubRebooter) Reboot(ctx context.Context) error {
	return r.Called(ctx).Error(0)
}

type fixture struct {
	cfg      Config
	rebooter *stubRebooter
	box      *actortest.SimpleMessageBox[command.RestartCommand, command.RestartCommand]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	return &fixture{
		cfg: Config{
			StatePath: filepath.Join(dir, "state", "agent.json"),
			RunDir:    filepath.Join(dir, "run"),
		},
		rebooter: &stubRebooter{},
	}
}

func (f *fixture) spawn(t *testing.T) {
	t.Helper()
	b := NewBuilder(f.cfg).WithRebooter(f.rebooter)
	converter := actortest.NewSimpleMessageBoxBuilder[command.RestartCommand, command.RestartCommand]("Converter", 5)
	converter.Connect(b.ConnectConsumer("Converter", converter.Inbox()))
	f.box = converter.Build(t)

	m, err := b.Build()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func (f *fixture) marker() string {
	return filepath.Join(f.cfg.RunDir, markerFile)
}

func (f *fixture) pending(t *testing.T) *persistence.PendingRestart {
	t.Helper()
	state, err := persistence.NewAgentStateStore(f.cfg.StatePath).Load()
	require.NoError(t, err)
	if state == nil {
		return nil
	}
	return state.PendingRestart
}

func restartCommand(id string, status command.Status, reason string) command.RestartCommand {
	return command.New(topics.DefaultMainDevice(), id, command.RestartPayload{
		StatusPayload: command.StatusPayload{Status: status, Reason: reason},
	})
}

func TestRestartRequest(t *testing.T) {
	f := newFixture(t)
	f.rebooter.On("Reboot", mock.Anything).Return(nil).Once()
	f.spawn(t)

	f.box.Send(restartCommand("1234", command.StatusInit, ""))
	f.box.AssertReceived(restartCommand("1234", command.StatusExecuting, ""))
	f.box.AssertNothing(100 * time.Millisecond)

	f.rebooter.AssertExpectations(t)
	assert.FileExists(t, f.marker())
	pending := f.pending(t)
	require.NotNil(t, pending)
	assert.Equal(t, topics.DefaultMainDevice(), pending.Target)
	assert.Equal(t, "1234", pending.CmdID)
}

func TestRestartIgnoresStatusUpdates(t *testing.T) {
	f := newFixture(t)
	f.spawn(t)

	f.box.Send(restartCommand("1234", command.StatusExecuting, ""))
	f.box.Send(restartCommand("1234", command.StatusSuccessful, ""))
	f.box.AssertNothing(100 * time.Millisecond)

	f.rebooter.AssertNotCalled(t, "Reboot", mock.Anything)
}

func TestRestartCommandFailure(t *testing.T) {
	f := newFixture(t)
	f.rebooter.On("Reboot", mock.Anything).Return(errors.New("permission denied")).Once()
	f.spawn(t)

	f.box.Send(restartCommand("1234", command.StatusInit, ""))
	f.box.AssertReceived(
		restartCommand("1234", command.StatusExecuting, ""),
		restartCommand("1234", command.StatusFailed, "restart command failed: permission denied"),
	)

	assert.NoFileExists(t, f.marker())
	assert.Nil(t, f.pending(t))
}

func TestResumeAfterReboot(t *testing.T) {
	f := newFixture(t)
	store := persistence.NewAgentStateStore(f.cfg.StatePath)
	require.NoError(t, store.Save(&persistence.AgentState{
		PendingRestart: &persistence.PendingRestart{Target: topics.DefaultMainDevice(), CmdID: "1234"},
	}))

	f.spawn(t)

	f.box.AssertReceived(restartCommand("1234", command.StatusSuccessful, ""))
	assert.Nil(t, f.pending(t))
}

func TestResumeWithoutReboot(t *testing.T) {
	f := newFixture(t)
	store := persistence.NewAgentStateStore(f.cfg.StatePath)
	require.NoError(t, store.Save(&persistence.AgentState{
		PendingRestart: &persistence.PendingRestart{Target: topics.DefaultChildDevice("child"), CmdID: "abc"},
	}))
	require.NoError(t, os.MkdirAll(f.cfg.RunDir, 0755))
	require.NoError(t, os.WriteFile(f.marker(), nil, 0644))

	f.spawn(t)

	f.box.AssertReceived(command.New(topics.DefaultChildDevice("child"), "abc", command.RestartPayload{
		StatusPayload: command.StatusPayload{Status: command.StatusFailed, Reason: ReasonNotRestarted},
	}))
	assert.NoFileExists(t, f.marker())
	assert.Nil(t, f.pending(t))
}

func TestNothingPendingOnStart(t *testing.T) {
	f := newFixture(t)
	f.spawn(t)
	f.box.AssertNothing(100 * time.Millisecond)
}

func TestBuildRequiresStatePath(t *testing.T) {
	_, err := NewBuilder(Config{}).Build()
	assert.ErrorIs(t, err, ErrNoStatePath)
}

func TestCommandRebooter(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, CommandRebooter{Args: []string{"true"}}.Reboot(ctx))
	assert.Error(t, CommandRebooter{Args: []string{"false"}}.Reboot(ctx))
	assert.ErrorIs(t, CommandRebooter{}.Reboot(ctx), ErrNoRebootCommand)
}
