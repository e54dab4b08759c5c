// Command tedge-agent is the thin-edge.io device agent.
//
// The agent connects to the local MQTT broker with a persistent session,
// announces the operations it supports and executes the commands published
// for the device: restarts and software list and update requests.
//
// Usage:
//
//	tedge-agent [flags]
//
// Flags:
//
//	-config string        Configuration file path (default "/etc/tedge/tedge-agent.yaml")
//	-log-level string     Log level: debug, info, warn, error (overrides the config)
//	-protocol-log string  File path for the CBOR protocol capture (overrides the config)
//	-interactive          Enable the interactive console
//	-clear-session        Remove the persistent broker session and exit
//
// Examples:
//
//	# Start with the system configuration
//	tedge-agent
//
//	# Start with a local configuration and debug logging
//	tedge-agent -config ./tedge-agent.yaml -log-level debug
//
//	# Record the broker traffic for tedge-log
//	tedge-agent -protocol-log /var/log/tedge/agent.cbor
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ruadhri17/thin-edge.io/cmd/tedge-agent/interactive"
	"github.com/Ruadhri17/thin-edge.io/pkg/actor"
	"github.com/Ruadhri17/thin-edge.io/pkg/config"
	"github.com/Ruadhri17/thin-edge.io/pkg/connection"
	"github.com/Ruadhri17/thin-edge.io/pkg/converter"
	"github.com/Ruadhri17/thin-edge.io/pkg/discovery"
	"github.com/Ruadhri17/thin-edge.io/pkg/health"
	agentlog "github.com/Ruadhri17/thin-edge.io/pkg/log"
	"github.com/Ruadhri17/thin-edge.io/pkg/mqtt"
	"github.com/Ruadhri17/thin-edge.io/pkg/restart"
	"github.com/Ruadhri17/thin-edge.io/pkg/software"
	"github.com/Ruadhri17/thin-edge.io/pkg/topics"
)

// Options holds the command line settings.
type Options struct {
	ConfigFile   string
	LogLevel     string
	ProtocolLog  string
	Interactive  bool
	ClearSession bool
}

var opts Options

func init() {
	flag.StringVar(&opts.ConfigFile, "config", config.DefaultPath, "Configuration file path")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides the config)")
	flag.StringVar(&opts.ProtocolLog, "protocol-log", "", "File path for the CBOR protocol capture (overrides the config)")
	flag.BoolVar(&opts.Interactive, "interactive", false, "Enable the interactive console")
	flag.BoolVar(&opts.ClearSession, "clear-session", false, "Remove the persistent broker session and exit")
}

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tedge-agent: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return err
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.ProtocolLog != "" {
		cfg.Log.ProtocolLog = opts.ProtocolLog
	}
	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var console *interactive.Console
	var out io.Writer = os.Stderr
	if opts.Interactive {
		console, err = interactive.New(interactive.Config{
			TopicRoot: cfg.Agent.TopicRoot,
			Device:    cfg.Device(),
		})
		if err != nil {
			return err
		}
		out = console.Stdout()
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Protocol logging
	var protocolLogger agentlog.Logger
	if cfg.Log.ProtocolLog != "" {
		fileLogger, err := agentlog.NewFileLogger(cfg.Log.ProtocolLog)
		if err != nil {
			return fmt.Errorf("failed to create protocol log: %w", err)
		}
		defer fileLogger.Close()
		protocolLogger = fileLogger
		if level <= slog.LevelDebug {
			protocolLogger = agentlog.NewMultiLogger(fileLogger, agentlog.NewSlogAdapter(logger))
		}
		logger.Info("Protocol logging enabled", "file", cfg.Log.ProtocolLog)
	}

	if cfg.Discovery.Enabled {
		if err := discoverBroker(ctx, &cfg, logger); err != nil {
			logger.Warn("Broker discovery failed, using the configured broker", "error", err)
		}
	}

	schema := topics.NewSchema(cfg.Agent.TopicRoot)
	mqttCfg, err := cfg.MQTTConfig()
	if err != nil {
		return err
	}
	mqttCfg.Logger = logger
	mqttCfg.ProtocolLogger = protocolLogger
	will := health.DownMessage(schema, health.AgentService)
	mqttCfg.LastWill = &will

	if opts.ClearSession {
		return clearSession(ctx, mqttCfg, cfg.MQTT.SessionTimeout, logger)
	}

	// Wiring
	mqttBuilder := mqtt.NewBuilder(mqttCfg)

	healthBuilder := health.NewBuilder(health.Config{
		TopicRoot: cfg.Agent.TopicRoot,
		Logger:    logger,
	}, mqttBuilder)

	restartBuilder := restart.NewBuilder(restart.Config{
		StatePath:     cfg.Agent.StatePath,
		RunDir:        cfg.Agent.RunDir,
		RebootCommand: cfg.Agent.RebootCommand,
		Logger:        logger,
	})

	plugins, err := software.LoadPlugins(cfg.Agent.PluginDir)
	if err != nil {
		return fmt.Errorf("load software plugins: %w", err)
	}
	var softwareBuilder *software.Builder
	var softwareProvider converter.SoftwareProvider
	if len(plugins) > 0 {
		softwareBuilder = software.NewBuilder(software.Config{
			DefaultType: cfg.Agent.DefaultSoftwareType,
			Logger:      logger,
		}, plugins)
		softwareProvider = softwareBuilder
		logger.Info("Software plugins loaded", "types", plugins.Types())
	} else {
		logger.Info("No software plugin found, software management disabled", "dir", cfg.Agent.PluginDir)
	}

	convCfg := converter.DefaultConfig()
	convCfg.TopicRoot = cfg.Agent.TopicRoot
	convCfg.Device = cfg.Device()
	convCfg.Logger = logger
	convCfg.ProtocolLogger = protocolLogger
	convBuilder := converter.NewBuilder(convCfg, softwareProvider, restartBuilder, mqttBuilder)

	if console != nil {
		console.Connect(mqttBuilder)
	}

	if err := initSession(ctx, mqttBuilder.Config(), cfg.MQTT.SessionTimeout, logger); err != nil {
		return err
	}

	// Runtime
	rt := actor.NewRuntime(ctx, 32)
	sup := newSupervisor(rt.Events(), logger, rt.Shutdown, "MQTT")
	supDone := make(chan error, 1)
	go func() { supDone <- sup.run() }()

	spawnErr := spawnAll(rt, mqttBuilder, healthBuilder, restartBuilder, convBuilder)
	if spawnErr == nil && softwareBuilder != nil {
		spawnErr = spawnAll(rt, softwareBuilder, actor.Ready(softwareBuilder.PluginActor()))
	}
	if spawnErr == nil && console != nil {
		spawnErr = rt.Spawn(console)
		if spawnErr == nil {
			go console.Loop(rt.Context(), rt.Shutdown)
		}
	}
	if spawnErr != nil {
		logger.Error("Failed to start the agent", "error", spawnErr)
		rt.Shutdown()
	} else {
		logger.Info("tedge-agent started",
			"broker", mqttCfg.Address(),
			"device", cfg.Device(),
			"operations", convBuilder.Operations())
	}

	<-rt.Context().Done()
	logger.Info("Shutting down...")

	waitErr := rt.Wait()
	supErr := <-supDone
	logger.Info("tedge-agent stopped")

	return errors.Join(spawnErr, waitErr, supErr)
}

func spawnAll(rt *actor.Runtime, builders ...actor.Builder) error {
	for _, b := range builders {
		if err := rt.SpawnBuilder(b); err != nil {
			return err
		}
	}
	return nil
}

// initSession makes sure the broker keeps the messages published for the
// agent while it is not running.
func initSession(ctx context.Context, cfg mqtt.Config, timeout time.Duration, logger *slog.Logger) error {
	if cfg.CleanSession {
		logger.Info("Clean session configured, messages sent while the agent is down are lost")
		return nil
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	err := connection.Retry(ctx, connection.RetryConfig{
		Name:      "mqtt session",
		Retryable: retryableSessionError,
		Logger:    logger,
	}, func(ctx context.Context) error {
		return mqtt.InitSession(ctx, cfg)
	})
	if err != nil {
		return fmt.Errorf("init mqtt session %q: %w", cfg.SessionName, err)
	}
	logger.Info("MQTT session ready", "session", cfg.SessionName)
	return nil
}

func clearSession(ctx context.Context, cfg mqtt.Config, timeout time.Duration, logger *slog.Logger) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := mqtt.ClearSession(ctx, cfg); err != nil {
		return fmt.Errorf("clear mqtt session %q: %w", cfg.SessionName, err)
	}
	logger.Info("MQTT session cleared", "session", cfg.SessionName)
	return nil
}

func retryableSessionError(err error) bool {
	if errors.Is(err, mqtt.ErrInvalidSessionConfig) {
		return false
	}
	var cerr *mqtt.ConnectionError
	if errors.As(err, &cerr) && cerr.Permanent() {
		return false
	}
	return true
}

// discoverBroker replaces the configured broker address by the first
// broker advertised over mDNS.
func discoverBroker(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	browserCfg := discovery.DefaultBrowserConfig()
	if cfg.Discovery.Service != "" {
		browserCfg.Services = []string{cfg.Discovery.Service}
	}
	if cfg.Discovery.Domain != "" {
		browserCfg.Domain = cfg.Discovery.Domain
	}
	if cfg.Discovery.Timeout > 0 {
		browserCfg.Timeout = cfg.Discovery.Timeout
	}
	browserCfg.Logger = logger

	svc, err := discovery.NewBrowser(browserCfg, nil).FindBroker(ctx)
	if err != nil {
		return err
	}

	cfg.MQTT.Host = svc.Address()
	cfg.MQTT.Port = int(svc.Port)
	if svc.TLS && !cfg.MQTT.TLS.Enabled() {
		logger.Warn("Discovered broker requires TLS but none is configured", "broker", svc.InstanceName)
	}
	if svc.TopicRoot != "" && svc.TopicRoot != cfg.Agent.TopicRoot {
		logger.Warn("Discovered broker advertises another topic root",
			"broker", svc.InstanceName, "advertised", svc.TopicRoot, "configured", cfg.Agent.TopicRoot)
	}
	logger.Info("Broker discovered", "broker", svc.InstanceName, "host", cfg.MQTT.Host, "port", cfg.MQTT.Port)
	return nil
}
