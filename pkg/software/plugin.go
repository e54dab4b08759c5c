package software

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Ruadhri17/thin-edge.io/pkg/command"
)

// DefaultPluginDir is where external plugins are looked up.
const DefaultPluginDir = "/etc/tedge/sm-plugins"

// ErrUnknownSoftwareType is returned when no plugin handles a software type.
var ErrUnknownSoftwareType = errors.New("software: unknown software type")

// Plugin manages the modules of one software type.
type Plugin interface {
	List(ctx context.Context) ([]command.SoftwareModule, error)
	Prepare(ctx context.Context) error
	Install(ctx context.Context, module command.SoftwareModule) error
	Remove(ctx context.Context, module command.SoftwareModule) error
	Finalize(ctx context.Context) error
}

// PluginError reports a failed plugin call.
type PluginError struct {
	Type   string
	Op     string
	Err    error
	Stderr string
}

func (e *PluginError) Error() string {
	msg := fmt.Sprintf("%s plugin %s: %v", e.Type, e.Op, e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *PluginError) Unwrap() error {
	return e.Err
}

// ExternalPlugin runs an executable implementing the plugin protocol.
type ExternalPlugin struct {
	Type string
	Path string
}

// List returns the installed modules, one "name<TAB>version" per output line.
func (p ExternalPlugin) List(ctx context.Context) ([]command.SoftwareModule, error) {
	out, err := p.run(ctx, "list")
	if err != nil {
		return nil, err
	}
	return parseModuleList(out), nil
}

// Prepare is called before a sequence of install and remove calls.
func (p ExternalPlugin) Prepare(ctx context.Context) error {
	_, err := p.run(ctx, "prepare")
	return err
}

// Install installs a module, at the requested version if any.
func (p ExternalPlugin) Install(ctx context.Context, module command.SoftwareModule) error {
	_, err := p.run(ctx, moduleArgs("install", module)...)
	return err
}

// Remove removes a module.
func (p ExternalPlugin) Remove(ctx context.Context, module command.SoftwareModule) error {
	_, err := p.run(ctx, moduleArgs("remove", module)...)
	return err
}

// Finalize is called after a sequence of install and remove calls.
func (p ExternalPlugin) Finalize(ctx context.Context) error {
	_, err := p.run(ctx, "finalize")
	return err
}

func moduleArgs(op string, module command.SoftwareModule) []string {
	args := []string{op, module.Name}
	if module.Version != "" {
		args = append(args, "--module-version", module.Version)
	}
	return args
}

func (p ExternalPlugin) run(ctx context.Context, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.Path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &PluginError{
			Type:   p.Type,
			Op:     args[0],
			Err:    err,
			Stderr: strings.TrimSpace(stderr.String()),
		}
	}
	return stdout.Bytes(), nil
}

func parseModuleList(out []byte) []command.SoftwareModule {
	var modules []command.SoftwareModule
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		name, version, _ := strings.Cut(line, "\t")
		modules = append(modules, command.SoftwareModule{Name: name, Version: strings.TrimSpace(version)})
	}
	return modules
}

// Plugins maps software types to their plugin.
type Plugins map[string]Plugin

// Types returns the software types in lexical order.
func (p Plugins) Types() []string {
	types := make([]string, 0, len(p))
	for t := range p {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// LoadPlugins registers every executable file of dir as an external plugin
// named after the file. A missing directory yields no plugin.
func LoadPlugins(dir string) (Plugins, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Plugins{}, nil
		}
		return nil, fmt.Errorf("load plugins: %w", err)
	}

	plugins := make(Plugins)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.Mode()&0111 == 0 {
			continue
		}
		plugins[e.Name()] = ExternalPlugin{Type: e.Name(), Path: filepath.Join(dir, e.Name())}
	}
	return plugins, nil
}
