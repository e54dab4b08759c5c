package software

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Ruadhri17/thin-edge.io/pkg/command"
)

// PluginServer executes software commands with the registered plugins.
// It returns the command in its terminal state.
type PluginServer struct {
	plugins     Plugins
	defaultType string
	logger      *slog.Logger
}

// NewPluginServer creates a server over plugins. Modules listed without a
// type are handled by the defaultType plugin.
func NewPluginServer(plugins Plugins, defaultType string, logger *slog.Logger) *PluginServer {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultType == "" && len(plugins) == 1 {
		defaultType = plugins.Types()[0]
	}
	return &PluginServer{plugins: plugins, defaultType: defaultType, logger: logger}
}

// Name returns "SoftwarePlugins".
func (s *PluginServer) Name() string {
	return "SoftwarePlugins"
}

// Handle runs cmd to completion. Unsupported commands yield nil.
func (s *PluginServer) Handle(ctx context.Context, cmd command.Generic) command.Generic {
	switch cmd := cmd.(type) {
	case command.SoftwareListCommand:
		list, err := s.list(ctx)
		if err != nil {
			return cmd.WithStatus(command.StatusFailed, err.Error())
		}
		done := cmd.WithStatus(command.StatusSuccessful, "")
		done.Payload.CurrentSoftwareList = list
		return done

	case command.SoftwareUpdateCommand:
		if err := s.update(ctx, cmd.Payload.UpdateList); err != nil {
			return cmd.WithStatus(command.StatusFailed, err.Error())
		}
		return cmd.WithStatus(command.StatusSuccessful, "")

	default:
		s.logger.Warn("Unsupported software command", "command", cmd.Key().String())
		return nil
	}
}

func (s *PluginServer) list(ctx context.Context) ([]command.SoftwareModuleList, error) {
	lists := make([]command.SoftwareModuleList, 0, len(s.plugins))
	for _, t := range s.plugins.Types() {
		modules, err := s.plugins[t].List(ctx)
		if err != nil {
			return nil, err
		}
		if modules == nil {
			modules = []command.SoftwareModule{}
		}
		lists = append(lists, command.SoftwareModuleList{Type: t, Modules: modules})
	}
	return lists, nil
}

func (s *PluginServer) update(ctx context.Context, updates []command.SoftwareModuleList) error {
	// Resolve every plugin first so that nothing is touched for an invalid request.
	plugins := make([]Plugin, len(updates))
	for i, u := range updates {
		t := u.Type
		if t == "" || t == "default" {
			t = s.defaultType
		}
		p, ok := s.plugins[t]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownSoftwareType, u.Type)
		}
		plugins[i] = p
	}

	for i, u := range updates {
		p := plugins[i]
		if err := p.Prepare(ctx); err != nil {
			return err
		}
		for _, m := range u.Modules {
			var err error
			switch m.Action {
			case command.ActionInstall:
				err = p.Install(ctx, m)
			case command.ActionRemove:
				err = p.Remove(ctx, m)
			default:
				err = fmt.Errorf("module %s: unknown action %q", m.Name, m.Action)
			}
			if err != nil {
				return err
			}
			s.logger.Info("Software module updated", "type", u.Type, "module", m.Name, "action", m.Action)
		}
		if err := p.Finalize(ctx); err != nil {
			return err
		}
	}
	return nil
}
