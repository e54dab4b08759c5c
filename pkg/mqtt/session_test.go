package mqtt

import (
	"context"
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// scriptedTransport replays broker outcomes for each Connect and Subscribe.
type scriptedTransport struct {
	events      chan sessionEvent
	onConnect   []sessionEvent
	onSubscribe []sessionEvent

	connects    int
	subscribes  int
	disconnects int
	filters     map[string]byte
}

func newScriptedTransport() *scriptedTransport {
	return &scriptedTransport{events: make(chan sessionEvent, 8)}
}

func (s *scriptedTransport) Events() <-chan sessionEvent { return s.events }

func (s *scriptedTransport) Connect() {
	s.connects++
	if len(s.onConnect) > 0 {
		s.events <- s.onConnect[0]
		s.onConnect = s.onConnect[1:]
	}
}

func (s *scriptedTransport) Subscribe(filters map[string]byte) {
	s.subscribes++
	s.filters = filters
	if len(s.onSubscribe) > 0 {
		s.events <- s.onSubscribe[0]
		s.onSubscribe = s.onSubscribe[1:]
	}
}

func (s *scriptedTransport) Disconnect() { s.disconnects++ }

func dialer(t *scriptedTransport, seen *Config) dialFunc {
	return func(cfg Config) sessionTransport {
		if seen != nil {
			*seen = cfg
		}
		return t
	}
}

func persistentConfig(filters ...string) Config {
	cfg := DefaultConfig()
	cfg.SessionName = "tedge-agent"
	cfg.CleanSession = false
	cfg.Subscriptions = MustTopicFilter(filters...)
	return cfg
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestInitSessionRejectsCleanOrAnonymousSessions(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"clean session", func() Config { c := persistentConfig(); c.CleanSession = true; return c }()},
		{"no session name", func() Config { c := persistentConfig(); c.SessionName = ""; return c }()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dialed := false
			err := initSession(testContext(t), tt.cfg, func(Config) sessionTransport {
				dialed = true
				return newScriptedTransport()
			})
			if !errors.Is(err, ErrInvalidSessionConfig) {
				t.Errorf("initSession() error = %v, want %v", err, ErrInvalidSessionConfig)
			}
			if dialed {
				t.Error("no connection should be attempted")
			}
		})
	}
}

func TestInitSessionSubscribes(t *testing.T) {
	tr := newScriptedTransport()
	tr.onConnect = []sessionEvent{connAck{returnCode: ReturnCodeAccepted}}
	tr.onSubscribe = []sessionEvent{subAck{results: map[string]byte{"te/+/+/+/+/cmd/+/+": 1}}}

	cfg := persistentConfig("te/+/+/+/+/cmd/+/+")
	if err := initSession(testContext(t), cfg, dialer(tr, nil)); err != nil {
		t.Fatalf("initSession() error = %v", err)
	}
	if tr.subscribes != 1 {
		t.Errorf("subscribes = %d, want 1", tr.subscribes)
	}
	if q, ok := tr.filters["te/+/+/+/+/cmd/+/+"]; !ok || q != byte(AtLeastOnce) {
		t.Errorf("filters = %v, want the command filter at QoS 1", tr.filters)
	}
	if tr.disconnects != 1 {
		t.Errorf("disconnects = %d, want 1", tr.disconnects)
	}
}

func TestInitSessionWithoutSubscriptions(t *testing.T) {
	tr := newScriptedTransport()
	tr.onConnect = []sessionEvent{connAck{returnCode: ReturnCodeAccepted}}

	if err := initSession(testContext(t), persistentConfig(), dialer(tr, nil)); err != nil {
		t.Fatalf("initSession() error = %v", err)
	}
	if tr.subscribes != 0 {
		t.Errorf("subscribes = %d, want 0", tr.subscribes)
	}
	if tr.disconnects != 1 {
		t.Errorf("disconnects = %d, want 1", tr.disconnects)
	}
}

func TestInitSessionIsRepeatable(t *testing.T) {
	cfg := persistentConfig("te/+/+/+/+/cmd/+/+")
	for i := 0; i < 2; i++ {
		tr := newScriptedTransport()
		tr.onConnect = []sessionEvent{connAck{returnCode: ReturnCodeAccepted}}
		tr.onSubscribe = []sessionEvent{subAck{results: map[string]byte{"te/+/+/+/+/cmd/+/+": 1}}}

		var seen Config
		if err := initSession(testContext(t), cfg, dialer(tr, &seen)); err != nil {
			t.Fatalf("initSession() #%d error = %v", i+1, err)
		}
		if seen.CleanSession || seen.SessionName != "tedge-agent" {
			t.Errorf("initSession() #%d dialed %+v, want the persistent session", i+1, seen)
		}
		if tr.subscribes != 1 || len(tr.filters) != 1 {
			t.Errorf("initSession() #%d subscribed %d times to %v", i+1, tr.subscribes, tr.filters)
		}
	}
}

func TestConnectionErrorPermanent(t *testing.T) {
	tests := []struct {
		rc   byte
		want bool
	}{
		{ReturnCodeBadCredentials, true},
		{ReturnCodeNotAuthorized, true},
		{0x03, false},
		{ReturnCodeNetworkError, false},
	}
	for _, tt := range tests {
		if got := (&ConnectionError{ReturnCode: tt.rc}).Permanent(); got != tt.want {
			t.Errorf("Permanent() for return code %d = %v, want %v", tt.rc, got, tt.want)
		}
	}
}

func TestInitSessionConnectionRefused(t *testing.T) {
	tr := newScriptedTransport()
	tr.onConnect = []sessionEvent{connAck{returnCode: 0x05}}

	err := initSession(testContext(t), persistentConfig("a/b"), dialer(tr, nil))
	var cerr *ConnectionError
	if !errors.As(err, &cerr) {
		t.Fatalf("initSession() error = %v, want *ConnectionError", err)
	}
	if cerr.ReturnCode != 0x05 || !cerr.Refused() {
		t.Errorf("ReturnCode = %d, want 5", cerr.ReturnCode)
	}
	if !cerr.Permanent() {
		t.Error("a not-authorized refusal is permanent")
	}
	if tr.subscribes != 0 {
		t.Error("no subscription after a refused connection")
	}
	if tr.disconnects != 1 {
		t.Errorf("disconnects = %d, want 1", tr.disconnects)
	}
}

func TestInitSessionToleratesSpuriousRefusal(t *testing.T) {
	tr := newScriptedTransport()
	tr.onConnect = []sessionEvent{
		transportError{returnCode: ReturnCodeAccepted, err: errors.New("connection refused: success")},
		connAck{returnCode: ReturnCodeAccepted},
	}
	tr.onSubscribe = []sessionEvent{subAck{}}

	if err := initSession(testContext(t), persistentConfig("a/b"), dialer(tr, nil)); err != nil {
		t.Fatalf("initSession() error = %v", err)
	}
	if tr.connects != 2 {
		t.Errorf("connects = %d, want 2", tr.connects)
	}
	if tr.subscribes != 1 {
		t.Errorf("subscribes = %d, want 1", tr.subscribes)
	}
}

func TestInitSessionTransportErrorEndsQuietly(t *testing.T) {
	tr := newScriptedTransport()
	tr.onConnect = []sessionEvent{transportError{returnCode: ReturnCodeNetworkError, err: errors.New("connection reset")}}

	if err := initSession(testContext(t), persistentConfig("a/b"), dialer(tr, nil)); err != nil {
		t.Fatalf("initSession() error = %v, want nil", err)
	}
	if tr.disconnects != 1 {
		t.Errorf("disconnects = %d, want 1", tr.disconnects)
	}
}

func TestInitSessionHonoursContext(t *testing.T) {
	tr := newScriptedTransport()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := initSession(ctx, persistentConfig("a/b"), dialer(tr, nil))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("initSession() error = %v, want %v", err, context.DeadlineExceeded)
	}
	if tr.disconnects != 1 {
		t.Errorf("disconnects = %d, want 1", tr.disconnects)
	}
}

func TestClearSessionForcesCleanSession(t *testing.T) {
	tr := newScriptedTransport()
	tr.onConnect = []sessionEvent{connAck{returnCode: ReturnCodeAccepted, sessionPresent: true}}

	var seen Config
	if err := clearSession(testContext(t), persistentConfig("a/b"), dialer(tr, &seen)); err != nil {
		t.Fatalf("clearSession() error = %v", err)
	}
	if !seen.CleanSession {
		t.Error("clearSession must connect with a clean session")
	}
	if tr.subscribes != 0 {
		t.Error("clearSession must not subscribe")
	}
	if tr.disconnects != 1 {
		t.Errorf("disconnects = %d, want 1", tr.disconnects)
	}
}

func TestClearSessionErrors(t *testing.T) {
	t.Run("refused", func(t *testing.T) {
		tr := newScriptedTransport()
		tr.onConnect = []sessionEvent{connAck{returnCode: 0x04}}
		var cerr *ConnectionError
		if err := clearSession(testContext(t), persistentConfig(), dialer(tr, nil)); !errors.As(err, &cerr) {
			t.Errorf("clearSession() error = %v, want *ConnectionError", err)
		}
		if tr.disconnects != 1 {
			t.Errorf("disconnects = %d, want 1", tr.disconnects)
		}
	})

	t.Run("transport error", func(t *testing.T) {
		tr := newScriptedTransport()
		tr.onConnect = []sessionEvent{transportError{returnCode: ReturnCodeNetworkError, err: errors.New("eof")}}
		if err := clearSession(testContext(t), persistentConfig(), dialer(tr, nil)); err != nil {
			t.Errorf("clearSession() error = %v, want nil", err)
		}
	})

	t.Run("no session name", func(t *testing.T) {
		cfg := persistentConfig()
		cfg.SessionName = ""
		if err := clearSession(testContext(t), cfg, dialer(newScriptedTransport(), nil)); !errors.Is(err, ErrInvalidSessionConfig) {
			t.Errorf("clearSession() error = %v, want %v", err, ErrInvalidSessionConfig)
		}
	})

	t.Run("clean session", func(t *testing.T) {
		cfg := persistentConfig()
		cfg.CleanSession = true
		dialed := false
		err := clearSession(testContext(t), cfg, func(Config) sessionTransport {
			dialed = true
			return newScriptedTransport()
		})
		if !errors.Is(err, ErrInvalidSessionConfig) {
			t.Errorf("clearSession() error = %v, want %v", err, ErrInvalidSessionConfig)
		}
		if dialed {
			t.Error("no connection should be attempted")
		}
	})
}

func TestPahoSessionRetriesSpuriousRefusal(t *testing.T) {
	fc := newFakeClient()
	fc.connectTokens = []paho.Token{
		connectToken{doneToken: doneToken{err: errors.New("connection refused: success")}, rc: ReturnCodeAccepted},
	}

	if err := initSession(testContext(t), persistentConfig(), pahoDialer(fc.factory)); err != nil {
		t.Fatalf("initSession() error = %v", err)
	}
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if fc.connects != 2 {
		t.Errorf("connects = %d, want 2", fc.connects)
	}
	if fc.disconnects != 1 {
		t.Errorf("disconnects = %d, want 1", fc.disconnects)
	}
}

func TestPahoSessionOutcomes(t *testing.T) {
	t.Run("network error", func(t *testing.T) {
		fc := newFakeClient()
		fc.connectTokens = []paho.Token{
			connectToken{doneToken: doneToken{err: errors.New("dial tcp: connection refused")}, rc: ReturnCodeNetworkError},
		}
		if err := initSession(testContext(t), persistentConfig(), pahoDialer(fc.factory)); err != nil {
			t.Errorf("initSession() error = %v, want nil", err)
		}
		if fc.connects != 1 {
			t.Errorf("connects = %d, want 1", fc.connects)
		}
	})

	t.Run("refused", func(t *testing.T) {
		fc := newFakeClient()
		fc.connectTokens = []paho.Token{
			connectToken{doneToken: doneToken{err: errors.New("bad user name or password")}, rc: ReturnCodeBadCredentials},
		}
		err := initSession(testContext(t), persistentConfig(), pahoDialer(fc.factory))
		var connErr *ConnectionError
		if !errors.As(err, &connErr) || connErr.ReturnCode != ReturnCodeBadCredentials {
			t.Errorf("initSession() error = %v, want refusal with code %d", err, ReturnCodeBadCredentials)
		}
	})
}
