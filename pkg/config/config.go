package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Ruadhri17/thin-edge.io/pkg/mqtt"
	"github.com/Ruadhri17/thin-edge.io/pkg/topics"
)

//go:embed default.yaml
var defaultYAML []byte

// DefaultPath is the configuration file read by the agent.
const DefaultPath = "/etc/tedge/tedge-agent.yaml"

// ErrInvalidConfig is wrapped by every validation error.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the agent configuration.
type Config struct {
	MQTT      MQTT      `yaml:"mqtt"`
	Agent     Agent     `yaml:"agent"`
	Discovery Discovery `yaml:"discovery"`
	Log       Log       `yaml:"log"`
}

// MQTT configures the broker connection and the persistent session.
type MQTT struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	SessionName    string        `yaml:"session_name"`
	CleanSession   bool          `yaml:"clean_session"`
	QueueCapacity  int           `yaml:"queue_capacity"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// SessionTimeout bounds the session setup made before the agent starts.
	SessionTimeout time.Duration `yaml:"session_timeout"`

	TLS TLS `yaml:"tls"`
}

// TLS configures the broker connection security.
type TLS struct {
	CAFile             string `yaml:"ca_file"`
	CertFile           string `yaml:"cert_file"`
	KeyFile            string `yaml:"key_file"`
	ServerName         string `yaml:"server_name"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// Enabled reports whether any TLS setting is configured.
func (t TLS) Enabled() bool {
	return t.mqtt().Enabled()
}

func (t TLS) mqtt() mqtt.TLSConfig {
	return mqtt.TLSConfig{
		CAFile:             t.CAFile,
		CertFile:           t.CertFile,
		KeyFile:            t.KeyFile,
		ServerName:         t.ServerName,
		InsecureSkipVerify: t.InsecureSkipVerify,
	}
}

// Agent configures the command handling of the agent.
type Agent struct {
	TopicRoot           string   `yaml:"topic_root"`
	Device              string   `yaml:"device"`
	StatePath           string   `yaml:"state_path"`
	RunDir              string   `yaml:"run_dir"`
	RebootCommand       []string `yaml:"reboot_command"`
	PluginDir           string   `yaml:"plugin_dir"`
	DefaultSoftwareType string   `yaml:"default_software_type"`
}

// Discovery configures the mDNS lookup of the broker.
type Discovery struct {
	Enabled bool          `yaml:"enabled"`
	Service string        `yaml:"service"`
	Domain  string        `yaml:"domain"`
	Timeout time.Duration `yaml:"timeout"`
}

// Log configures logging.
type Log struct {
	Level string `yaml:"level"`

	// ProtocolLog is the CBOR capture file. Empty disables the capture.
	ProtocolLog string `yaml:"protocol_log"`
}

// LoadError reports a configuration file that cannot be used.
type LoadError struct {
	File    string
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.File != "" {
		msg = e.File + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Default returns the built-in configuration.
func Default() Config {
	var c Config
	if err := yaml.Unmarshal(defaultYAML, &c); err != nil {
		panic(fmt.Sprintf("config: invalid default.yaml: %v", err))
	}
	return c
}

// Parse overlays data on the default configuration and validates the result.
func Parse(data []byte) (Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, &LoadError{Message: "failed to parse YAML", Cause: err}
	}
	if err := c.Validate(); err != nil {
		return Config{}, &LoadError{Message: "validation failed", Cause: err}
	}
	return c, nil
}

// Load reads the configuration file at path. A missing file yields the
// default configuration.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}

	c, err := Parse(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
		}
		return Config{}, err
	}
	return c, nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MQTT.Host == "" && !c.Discovery.Enabled {
		return fmt.Errorf("%w: mqtt.host is required unless discovery is enabled", ErrInvalidConfig)
	}
	if c.MQTT.Port <= 0 || c.MQTT.Port > 65535 {
		return fmt.Errorf("%w: mqtt.port %d out of range", ErrInvalidConfig, c.MQTT.Port)
	}
	if !c.MQTT.CleanSession && c.MQTT.SessionName == "" {
		return fmt.Errorf("%w: mqtt.session_name is required for a persistent session", ErrInvalidConfig)
	}
	if (c.MQTT.TLS.CertFile == "") != (c.MQTT.TLS.KeyFile == "") {
		return fmt.Errorf("%w: mqtt.tls.cert_file and mqtt.tls.key_file go together", ErrInvalidConfig)
	}
	if _, err := topics.ParseEntityTopicID(c.Agent.Device); err != nil {
		return fmt.Errorf("%w: agent.device: %v", ErrInvalidConfig, err)
	}
	if strings.ContainsAny(c.Agent.TopicRoot, "/+#") {
		return fmt.Errorf("%w: agent.topic_root %q must be a single topic level", ErrInvalidConfig, c.Agent.TopicRoot)
	}
	if _, err := c.LogLevel(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Device returns the entity served by the agent.
func (c Config) Device() topics.EntityTopicID {
	id, err := topics.ParseEntityTopicID(c.Agent.Device)
	if err != nil {
		return topics.DefaultMainDevice()
	}
	return id
}

// LogLevel returns the slog level named by log.level.
func (c Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return level, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// MQTTConfig returns the broker connection settings. Subscriptions and
// loggers are added by the caller.
func (c Config) MQTTConfig() (mqtt.Config, error) {
	m := mqtt.DefaultConfig()
	m.Host = c.MQTT.Host
	m.Port = c.MQTT.Port
	m.SessionName = c.MQTT.SessionName
	m.CleanSession = c.MQTT.CleanSession
	m.Username = c.MQTT.Username
	m.Password = c.MQTT.Password
	if c.MQTT.QueueCapacity > 0 {
		m.QueueCapacity = c.MQTT.QueueCapacity
	}
	if c.MQTT.KeepAlive > 0 {
		m.KeepAlive = c.MQTT.KeepAlive
	}
	if c.MQTT.ConnectTimeout > 0 {
		m.ConnectTimeout = c.MQTT.ConnectTimeout
	}

	tlsCfg := c.MQTT.TLS.mqtt()
	if tlsCfg.Enabled() {
		t, err := mqtt.NewClientTLSConfig(tlsCfg)
		if err != nil {
			return mqtt.Config{}, fmt.Errorf("mqtt tls: %w", err)
		}
		m.TLS = t
	}
	return m, nil
}
