package mqtt

import (
	"context"
	"fmt"
	"log/slog"
)

// sessionEvent is produced by a sessionTransport.
type sessionEvent interface {
	isSessionEvent()
}

// connAck reports the CONNACK received from the broker.
type connAck struct {
	returnCode     byte
	sessionPresent bool
}

// subAck reports the SUBACK received from the broker, per filter.
type subAck struct {
	results map[string]byte
}

// transportError reports a failure before a CONNACK or SUBACK was received.
// A returnCode of ReturnCodeAccepted is the spurious "refused: success"
// some brokers produce when a persistent session is resumed.
type transportError struct {
	returnCode byte
	err        error
}

func (connAck) isSessionEvent()        {}
func (subAck) isSessionEvent()         {}
func (transportError) isSessionEvent() {}

// sessionTransport is the minimal client needed by the session protocol.
// Connect and Subscribe are asynchronous; their outcome arrives on Events.
type sessionTransport interface {
	Events() <-chan sessionEvent
	Connect()
	Subscribe(filters map[string]byte)
	Disconnect()
}

type dialFunc func(cfg Config) sessionTransport

// sessionState is the state of the session protocol.
type sessionState uint8

const (
	stateConnecting sessionState = iota
	stateConnAckReceived
	stateSubscribing
	stateTransportError
	stateDone
)

func (s sessionState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateConnAckReceived:
		return "connack-received"
	case stateSubscribing:
		return "subscribing"
	case stateTransportError:
		return "transport-error"
	case stateDone:
		return "done"
	default:
		return "unknown"
	}
}

// subscriptionFailure is the SUBACK code of a refused filter.
const subscriptionFailure = 0x80

// InitSession creates the persistent session described by cfg on the broker
// and subscribes its topics, so that messages published while the agent is
// down are queued. The config must name a non-clean session.
//
// A refused connection is returned as a *ConnectionError. Other transport
// failures are logged and treated as the end of the attempt. The caller
// bounds the operation with ctx.
func InitSession(ctx context.Context, cfg Config) error {
	return initSession(ctx, cfg, dialPaho)
}

// ClearSession removes the persistent session named by cfg by connecting
// once with a clean session. cfg must describe the persistent session, as
// for InitSession.
func ClearSession(ctx context.Context, cfg Config) error {
	return clearSession(ctx, cfg, dialPaho)
}

func initSession(ctx context.Context, cfg Config, dial dialFunc) error {
	if cfg.CleanSession || cfg.SessionName == "" {
		return fmt.Errorf("%w: a persistent session requires a session name and clean_session=false", ErrInvalidSessionConfig)
	}

	fsm := newSessionFSM("init", cfg)
	t := dial(cfg)
	defer t.Disconnect()

	t.Connect()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-t.Events():
			switch ev := ev.(type) {
			case connAck:
				if ev.returnCode != ReturnCodeAccepted {
					fsm.transition(stateDone, "connection refused")
					return connectionRefused(ev.returnCode)
				}
				fsm.transition(stateConnAckReceived, "")
				if cfg.Subscriptions.IsEmpty() {
					fsm.transition(stateDone, "no subscriptions")
					return nil
				}
				fsm.transition(stateSubscribing, "")
				t.Subscribe(cfg.Subscriptions.Filters())

			case subAck:
				for filter, code := range ev.results {
					if code == subscriptionFailure {
						fsm.logger.Warn("Subscription refused by broker", "session", cfg.SessionName, "filter", filter)
					}
				}
				fsm.transition(stateDone, "subscribed")
				return nil

			case transportError:
				if ev.returnCode == ReturnCodeAccepted {
					fsm.logger.Debug("Ignoring spurious connection refusal, reconnecting", "session", cfg.SessionName)
					fsm.transition(stateConnecting, "spurious refusal")
					t.Connect()
					continue
				}
				fsm.transition(stateTransportError, errString(ev.err))
				fsm.logger.Warn("Session initialization interrupted", "session", cfg.SessionName, "error", ev.err)
				fsm.transition(stateDone, "")
				return nil
			}
		}
	}
}

func clearSession(ctx context.Context, cfg Config, dial dialFunc) error {
	if cfg.CleanSession || cfg.SessionName == "" {
		return fmt.Errorf("%w: clearing a session requires a session name and clean_session=false", ErrInvalidSessionConfig)
	}
	cfg.CleanSession = true

	fsm := newSessionFSM("clear", cfg)
	t := dial(cfg)
	defer t.Disconnect()

	t.Connect()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-t.Events():
			switch ev := ev.(type) {
			case connAck:
				fsm.transition(stateDone, "connack")
				if ev.returnCode != ReturnCodeAccepted {
					return connectionRefused(ev.returnCode)
				}
				return nil

			case transportError:
				fsm.transition(stateTransportError, errString(ev.err))
				fsm.logger.Error("Failed to clear session", "session", cfg.SessionName, "error", ev.err)
				fsm.transition(stateDone, "")
				return nil

			case subAck:
				// Never subscribed; ignore.
			}
		}
	}
}

// sessionFSM tracks and records the protocol state.
type sessionFSM struct {
	op      string
	cfg     Config
	state   sessionState
	logger  *slog.Logger
	capture *capture
}

func newSessionFSM(op string, cfg Config) *sessionFSM {
	return &sessionFSM{
		op:      op,
		cfg:     cfg,
		state:   stateConnecting,
		logger:  cfg.logger(),
		capture: newCapture(cfg),
	}
}

func (f *sessionFSM) transition(next sessionState, reason string) {
	f.logger.Debug("Session state change", "op", f.op, "session", f.cfg.SessionName, "from", f.state, "to", next)
	f.capture.sessionState(f.state.String(), next.String(), reason)
	f.state = next
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
