package mqtt

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/Ruadhri17/thin-edge.io/pkg/log"
)

// Defaults for Config.
const (
	DefaultHost           = "localhost"
	DefaultPort           = 1883
	DefaultQueueCapacity  = 1024
	DefaultKeepAlive      = 60 * time.Second
	DefaultConnectTimeout = 10 * time.Second
)

// Config describes a broker connection.
type Config struct {
	Host string
	Port int

	// SessionName is the MQTT client id. A persistent session requires a
	// stable, non-empty name.
	SessionName string

	// CleanSession discards any broker-side session on connect.
	CleanSession bool

	// Subscriptions are subscribed on every connection.
	Subscriptions TopicFilter

	// QueueCapacity bounds the messages buffered between the client and
	// the subscribers.
	QueueCapacity int

	Username string
	Password string

	// TLS enables TLS when non-nil.
	TLS *tls.Config

	KeepAlive      time.Duration
	ConnectTimeout time.Duration

	// LastWill is published by the broker if the connection drops.
	LastWill *Message

	// InitialMessages are published after every successful connection.
	InitialMessages []Message

	// Logger is used for operational logging. Defaults to slog.Default().
	Logger *slog.Logger

	// ProtocolLogger receives packet-level capture events.
	ProtocolLogger log.Logger
}

// DefaultConfig returns a clean-session configuration for the local broker.
func DefaultConfig() Config {
	return Config{
		Host:           DefaultHost,
		Port:           DefaultPort,
		CleanSession:   true,
		QueueCapacity:  DefaultQueueCapacity,
		KeepAlive:      DefaultKeepAlive,
		ConnectTimeout: DefaultConnectTimeout,
	}
}

// Validate checks the fields needed to connect.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if !c.CleanSession && c.SessionName == "" {
		return fmt.Errorf("%w: a persistent session needs a session name", ErrInvalidConfig)
	}
	if c.LastWill != nil && c.LastWill.Topic == "" {
		return fmt.Errorf("%w: last will without topic", ErrInvalidConfig)
	}
	return nil
}

// Address returns host:port.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// BrokerURL returns the paho broker URL.
func (c Config) BrokerURL() string {
	scheme := "tcp"
	if c.TLS != nil {
		scheme = "ssl"
	}
	return scheme + "://" + c.Address()
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c Config) queueCapacity() int {
	if c.QueueCapacity < 1 {
		return DefaultQueueCapacity
	}
	return c.QueueCapacity
}

// clientOptions maps the config onto paho options. Reconnection behaviour
// and handlers are left to the caller.
func (c Config) clientOptions() *paho.ClientOptions {
	opts := paho.NewClientOptions().
		AddBroker(c.BrokerURL()).
		SetClientID(c.SessionName).
		SetCleanSession(c.CleanSession).
		SetOrderMatters(true)

	if c.KeepAlive > 0 {
		opts.SetKeepAlive(c.KeepAlive)
	}
	if c.ConnectTimeout > 0 {
		opts.SetConnectTimeout(c.ConnectTimeout)
	}
	if c.Username != "" {
		opts.SetUsername(c.Username)
		opts.SetPassword(c.Password)
	}
	if c.TLS != nil {
		opts.SetTLSConfig(c.TLS)
	}
	if c.LastWill != nil {
		opts.SetBinaryWill(c.LastWill.Topic, c.LastWill.Payload, byte(c.LastWill.QoS), c.LastWill.Retain)
	}
	return opts
}
