package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Ruadhri17/thin-edge.io/pkg/topics"
)

func TestDefault(t *testing.T) {
	c := Default()

	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if c.MQTT.Host != "localhost" || c.MQTT.Port != 1883 {
		t.Errorf("broker = %s:%d", c.MQTT.Host, c.MQTT.Port)
	}
	if c.MQTT.CleanSession || c.MQTT.SessionName != "tedge-agent" {
		t.Errorf("agent should use a persistent session, got %+v", c.MQTT)
	}
	if c.MQTT.KeepAlive != 60*time.Second || c.MQTT.SessionTimeout != 30*time.Second {
		t.Errorf("durations = %v, %v", c.MQTT.KeepAlive, c.MQTT.SessionTimeout)
	}
	if c.Device() != topics.DefaultMainDevice() {
		t.Errorf("Device() = %v", c.Device())
	}
	if len(c.Agent.RebootCommand) != 2 || c.Agent.RebootCommand[0] != "init" {
		t.Errorf("RebootCommand = %v", c.Agent.RebootCommand)
	}
	if c.Discovery.Service != "_mqtt._tcp" || c.Discovery.Enabled {
		t.Errorf("Discovery = %+v", c.Discovery)
	}
}

func TestParseOverlaysDefaults(t *testing.T) {
	c, err := Parse([]byte(`
mqtt:
  host: broker.local
  port: 8883
  keep_alive: 15s
agent:
  device: device/child-foo//
log:
  level: debug
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if c.MQTT.Host != "broker.local" || c.MQTT.Port != 8883 {
		t.Errorf("broker = %s:%d", c.MQTT.Host, c.MQTT.Port)
	}
	if c.MQTT.KeepAlive != 15*time.Second {
		t.Errorf("KeepAlive = %v", c.MQTT.KeepAlive)
	}
	if c.MQTT.SessionName != "tedge-agent" {
		t.Errorf("SessionName = %q, want default", c.MQTT.SessionName)
	}
	if c.Device() != topics.DefaultChildDevice("child-foo") {
		t.Errorf("Device() = %v", c.Device())
	}
	if level, _ := c.LogLevel(); level != slog.LevelDebug {
		t.Errorf("LogLevel() = %v", level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"no host", func(c *Config) { c.MQTT.Host = "" }},
		{"bad port", func(c *Config) { c.MQTT.Port = 70000 }},
		{"persistent session without name", func(c *Config) { c.MQTT.SessionName = "" }},
		{"cert without key", func(c *Config) { c.MQTT.TLS.CertFile = "client.pem" }},
		{"bad device", func(c *Config) { c.Agent.Device = "device/main" }},
		{"multi-level root", func(c *Config) { c.Agent.TopicRoot = "te/agent" }},
		{"bad level", func(c *Config) { c.Log.Level = "chatty" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(&c)
			if err := c.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}

	t.Run("discovery without host", func(t *testing.T) {
		c := Default()
		c.MQTT.Host = ""
		c.Discovery.Enabled = true
		if err := c.Validate(); err != nil {
			t.Errorf("Validate() = %v", err)
		}
	})

	t.Run("clean session without name", func(t *testing.T) {
		c := Default()
		c.MQTT.CleanSession = true
		c.MQTT.SessionName = ""
		if err := c.Validate(); err != nil {
			t.Errorf("Validate() = %v", err)
		}
	})
}

func TestLoad(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		c, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if c.MQTT.Host != "localhost" {
			t.Errorf("Load() should return the defaults, got %+v", c.MQTT)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "agent.yaml")
		if err := os.WriteFile(path, []byte("mqtt: [unterminated"), 0644); err != nil {
			t.Fatal(err)
		}
		_, err := Load(path)
		var le *LoadError
		if !errors.As(err, &le) {
			t.Fatalf("Load() error = %v, want *LoadError", err)
		}
		if le.File != path {
			t.Errorf("LoadError.File = %q, want %q", le.File, path)
		}
	})

	t.Run("invalid values", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "agent.yaml")
		if err := os.WriteFile(path, []byte("mqtt:\n  port: 0\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("Load() error = %v, want ErrInvalidConfig", err)
		}
	})
}

func TestMQTTConfig(t *testing.T) {
	c := Default()
	c.MQTT.Username = "agent"
	c.MQTT.QueueCapacity = 0

	m, err := c.MQTTConfig()
	if err != nil {
		t.Fatalf("MQTTConfig() error = %v", err)
	}
	if m.Host != "localhost" || m.Port != 1883 || m.SessionName != "tedge-agent" || m.CleanSession {
		t.Errorf("MQTTConfig() = %+v", m)
	}
	if m.Username != "agent" || m.QueueCapacity != 1024 || m.TLS != nil {
		t.Errorf("MQTTConfig() = %+v", m)
	}

	c.MQTT.TLS.CAFile = filepath.Join(t.TempDir(), "missing-ca.pem")
	if _, err := c.MQTTConfig(); err == nil {
		t.Error("MQTTConfig() should fail with an unreadable CA file")
	}
}
