package mqtt

import (
	"sort"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/Ruadhri17/thin-edge.io/pkg/log"
)

// Client is the part of the paho client used by the Connection actor.
type Client interface {
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	SubscribeMultiple(filters map[string]byte, callback paho.MessageHandler) paho.Token
	IsConnectionOpen() bool
}

var _ Client = paho.Client(nil)

// ClientFactory creates a client from paho options.
type ClientFactory func(opts *paho.ClientOptions) Client

func newPahoClient(opts *paho.ClientOptions) Client {
	return paho.NewClient(opts)
}

// connAckToken is implemented by paho's ConnectToken.
type connAckToken interface {
	ReturnCode() byte
	SessionPresent() bool
}

// connectResult reads the CONNACK outcome of a completed connect token.
// Tokens that carry no return code are reported as network errors.
func connectResult(token paho.Token) (rc byte, sessionPresent bool) {
	ct, ok := token.(connAckToken)
	if !ok {
		if token.Error() != nil {
			return ReturnCodeNetworkError, false
		}
		return ReturnCodeAccepted, false
	}
	return ct.ReturnCode(), ct.SessionPresent()
}

// disconnectQuiesce is the time in milliseconds granted to in-flight work
// on disconnect.
const disconnectQuiesce = 250

// pahoSession drives a single paho connection for InitSession and
// ClearSession. Reconnection is disabled: the session protocol decides
// when to reconnect.
type pahoSession struct {
	cfg     Config
	client  Client
	events  chan sessionEvent
	done    chan struct{}
	capture *capture
}

func dialPaho(cfg Config) sessionTransport {
	return pahoDialer(newPahoClient)(cfg)
}

func pahoDialer(newClient ClientFactory) dialFunc {
	return func(cfg Config) sessionTransport {
		return newPahoSession(cfg, newClient)
	}
}

func newPahoSession(cfg Config, newClient ClientFactory) *pahoSession {
	s := &pahoSession{
		cfg:     cfg,
		events:  make(chan sessionEvent, 4),
		done:    make(chan struct{}),
		capture: newCapture(cfg),
	}
	opts := cfg.clientOptions().
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			s.emit(transportError{returnCode: ReturnCodeNetworkError, err: err})
		})
	s.client = newClient(opts)
	return s
}

func (s *pahoSession) Events() <-chan sessionEvent {
	return s.events
}

func (s *pahoSession) emit(ev sessionEvent) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *pahoSession) Connect() {
	s.capture.connect()
	token := s.client.Connect()
	go func() {
		select {
		case <-token.Done():
		case <-s.done:
			return
		}
		rc, present := connectResult(token)
		err := token.Error()
		switch {
		case err == nil:
			s.capture.connAck(rc)
			s.emit(connAck{returnCode: rc, sessionPresent: present})
		case rc != ReturnCodeAccepted && rc != ReturnCodeNetworkError:
			s.capture.connAck(rc)
			s.emit(connAck{returnCode: rc})
		default:
			// No CONNACK was received. A zero code is paho's "refused:
			// success" and is left for the session protocol to decide on.
			code := int(rc)
			s.capture.failure(log.LayerSession, "connect", err, &code)
			s.emit(transportError{returnCode: rc, err: err})
		}
	}()
}

func (s *pahoSession) Subscribe(filters map[string]byte) {
	names := make([]string, 0, len(filters))
	for f := range filters {
		names = append(names, f)
	}
	sort.Strings(names)
	s.capture.subscribe(names)

	token := s.client.SubscribeMultiple(filters, nil)
	go func() {
		select {
		case <-token.Done():
		case <-s.done:
			return
		}
		if err := token.Error(); err != nil {
			s.emit(transportError{returnCode: ReturnCodeNetworkError, err: err})
			return
		}
		var results map[string]byte
		if st, ok := token.(interface{ Result() map[string]byte }); ok {
			results = st.Result()
		}
		s.capture.control(log.DirectionIn, &log.PacketEvent{Type: log.PacketSubAck, Filters: names})
		s.emit(subAck{results: results})
	}()
}

func (s *pahoSession) Disconnect() {
	select {
	case <-s.done:
		return
	default:
	}
	close(s.done)
	if s.client.IsConnectionOpen() {
		s.capture.disconnect()
		s.client.Disconnect(disconnectQuiesce)
	}
}
