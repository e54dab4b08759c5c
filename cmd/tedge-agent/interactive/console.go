// Package interactive provides the interactive console of tedge-agent.
//
// The console watches the command traffic of every entity and lets the user
// issue commands. Commands are published on the broker like any other
// client would, so they go through the whole agent pipeline.
package interactive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/google/uuid"

	"github.com/Ruadhri17/thin-edge.io/pkg/actor"
	"github.com/Ruadhri17/thin-edge.io/pkg/command"
	"github.com/Ruadhri17/thin-edge.io/pkg/mqtt"
	"github.com/Ruadhri17/thin-edge.io/pkg/topics"
)

// Config provides the settings shared with the agent.
type Config struct {
	TopicRoot string

	// Device is the default target of commands.
	Device topics.EntityTopicID
}

// Console handles interactive mode for tedge-agent.
type Console struct {
	schema  topics.Schema
	device  topics.EntityTopicID
	inbox   *actor.Mailbox[mqtt.Message]
	publish actor.Sender[mqtt.Message]
	rl      *readline.Instance
	out     io.Writer
	newID   func() string

	mu           sync.Mutex
	capabilities map[topics.ChannelKey]bool
	commands     map[command.Key]command.Status
}

// New creates the console. Connect must be called before the console runs.
func New(cfg Config) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "tedge> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	c := newConsole(cfg, rl.Stdout())
	c.rl = rl
	return c, nil
}

func newConsole(cfg Config, out io.Writer) *Console {
	if cfg.Device.IsZero() {
		cfg.Device = topics.DefaultMainDevice()
	}
	c := &Console{
		schema:       topics.NewSchema(cfg.TopicRoot),
		device:       cfg.Device,
		inbox:        actor.NewMailbox[mqtt.Message]("Console", 16),
		out:          out,
		newID:        func() string { return uuid.NewString() },
		capabilities: make(map[topics.ChannelKey]bool),
		commands:     make(map[command.Key]command.Status),
	}
	return c
}

// Connect subscribes the console to the command topics of every entity.
func (c *Console) Connect(broker mqtt.Registrar) {
	filter := mqtt.MustTopicFilter(c.schema.Root + "/+/+/+/+/cmd/#")
	c.publish = broker.ConnectSubscriber("Console", filter, c.inbox.Sender())
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (c *Console) Stdout() io.Writer {
	return c.out
}

// Name returns "Console".
func (c *Console) Name() string {
	return "Console"
}

// Run prints the command traffic until the broker link ends.
func (c *Console) Run(ctx context.Context) error {
	defer c.publish.Close()
	for {
		msg, ok := c.inbox.Recv(ctx)
		if !ok {
			return nil
		}
		if line := c.observe(msg); line != "" {
			fmt.Fprintln(c.out, line)
		}
	}
}

// observe records a command message and returns the line to display.
func (c *Console) observe(msg mqtt.Message) string {
	entity, ch, err := c.schema.EntityChannelOf(msg.Topic)
	if err != nil {
		return ""
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch ch.Kind {
	case topics.ChannelCommandMetadata:
		key := topics.ChannelKey{Entity: entity, Operation: ch.Operation}
		if msg.IsEmpty() {
			delete(c.capabilities, key)
			return ""
		}
		c.capabilities[key] = true
		return ""

	case topics.ChannelCommand:
		key := command.Key{Target: entity, Operation: ch.Operation, CmdID: ch.CmdID}
		if msg.IsEmpty() {
			delete(c.commands, key)
			return fmt.Sprintf("[cmd] %s cleared", key)
		}
		var payload struct {
			Status command.Status `json:"status"`
			Reason string         `json:"reason"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return fmt.Sprintf("[cmd] %s malformed: %v", key, err)
		}
		c.commands[key] = payload.Status
		if payload.Reason != "" {
			return fmt.Sprintf("[cmd] %s %s (%s)", key, payload.Status, payload.Reason)
		}
		return fmt.Sprintf("[cmd] %s %s", key, payload.Status)
	}
	return ""
}

// Loop runs the interactive command loop.
func (c *Console) Loop(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}

		if quit := c.Execute(ctx, line); quit {
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}
	}
}

// Execute runs one console line. It returns true when the user asked to quit.
func (c *Console) Execute(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()
	case "restart":
		c.cmdRestart(ctx, args)
	case "software-list", "sl":
		c.cmdSoftwareList(ctx, args)
	case "install", "remove":
		c.cmdSoftwareUpdate(ctx, cmd, args)
	case "clear":
		c.cmdClear(ctx, args)
	case "capabilities", "caps":
		c.cmdCapabilities()
	case "commands", "cmds":
		c.cmdCommands()
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
tedge-agent Commands:
  Operations:
    restart [entity]                     - Restart a device
    software-list [entity]               - List installed software
    install <type> <name> [version]      - Install a software module
    remove <type> <name>                 - Remove a software module
    clear <operation> <id> [entity]      - Clear a finished command

  State:
    capabilities                         - Show announced operations
    commands                             - Show known commands and their status

  General:
    help                                 - Show this help
    quit                                 - Exit

  Entities are topic ids such as device/main// or device/child-foo//.`)
}

func (c *Console) target(args []string) (topics.EntityTopicID, bool) {
	if len(args) == 0 {
		return c.device, true
	}
	id, err := topics.ParseEntityTopicID(args[0])
	if err != nil {
		fmt.Fprintf(c.out, "Invalid entity: %v\n", err)
		return topics.EntityTopicID{}, false
	}
	return id, true
}

func (c *Console) cmdRestart(ctx context.Context, args []string) {
	target, ok := c.target(args)
	if !ok {
		return
	}
	c.send(ctx, command.New(target, c.newID(), command.RestartPayload{
		StatusPayload: command.StatusPayload{Status: command.StatusInit},
	}))
}

func (c *Console) cmdSoftwareList(ctx context.Context, args []string) {
	target, ok := c.target(args)
	if !ok {
		return
	}
	c.send(ctx, command.New(target, c.newID(), command.SoftwareListPayload{
		StatusPayload: command.StatusPayload{Status: command.StatusInit},
	}))
}

func (c *Console) cmdSoftwareUpdate(ctx context.Context, action string, args []string) {
	if len(args) < 2 {
		fmt.Fprintf(c.out, "Usage: %s <type> <name> [version]\n", action)
		return
	}
	module := command.SoftwareModule{Name: args[1], Action: action}
	if len(args) > 2 {
		module.Version = args[2]
	}
	c.send(ctx, command.New(c.device, c.newID(), command.SoftwareUpdatePayload{
		StatusPayload: command.StatusPayload{Status: command.StatusInit},
		UpdateList:    []command.SoftwareModuleList{{Type: args[0], Modules: []command.SoftwareModule{module}}},
	}))
}

func (c *Console) cmdClear(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.out, "Usage: clear <operation> <id> [entity]")
		return
	}
	target, ok := c.target(args[2:])
	if !ok {
		return
	}
	topic := c.schema.Topic(target, topics.CommandChannel(topics.OperationKind(args[0]), args[1]))
	c.publishMessage(ctx, mqtt.NewMessage(topic, nil).WithRetain())
}

func (c *Console) cmdCapabilities() {
	c.mu.Lock()
	keys := make([]string, 0, len(c.capabilities))
	for k := range c.capabilities {
		keys = append(keys, k.String())
	}
	c.mu.Unlock()

	if len(keys) == 0 {
		fmt.Fprintln(c.out, "No capability announced")
		return
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(c.out, "  %s\n", k)
	}
}

func (c *Console) cmdCommands() {
	c.mu.Lock()
	lines := make([]string, 0, len(c.commands))
	for k, s := range c.commands {
		lines = append(lines, fmt.Sprintf("  %-60s %s", k.String(), s))
	}
	c.mu.Unlock()

	if len(lines) == 0 {
		fmt.Fprintln(c.out, "No command seen")
		return
	}
	sort.Strings(lines)
	for _, l := range lines {
		fmt.Fprintln(c.out, l)
	}
}

func (c *Console) send(ctx context.Context, cmd command.Generic) {
	payload, err := cmd.Encode()
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	key := cmd.Key()
	topic := c.schema.Topic(key.Target, topics.CommandChannel(key.Operation, key.CmdID))
	if c.publishMessage(ctx, mqtt.NewMessage(topic, payload).WithRetain()) {
		fmt.Fprintf(c.out, "Sent %s\n", key)
	}
}

func (c *Console) publishMessage(ctx context.Context, msg mqtt.Message) bool {
	if err := c.publish.Send(ctx, msg); err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return false
	}
	return true
}
