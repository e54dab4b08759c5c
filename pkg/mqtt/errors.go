package mqtt

import (
	"errors"
	"fmt"

	"github.com/eclipse/paho.mqtt.golang/packets"
)

var (
	// ErrInvalidSessionConfig is returned when a session operation is
	// attempted with a config that does not describe a persistent session.
	ErrInvalidSessionConfig = errors.New("invalid session config")

	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("invalid mqtt config")
)

// Return codes of a CONNACK, plus the code paho uses for network failures.
const (
	ReturnCodeAccepted     byte = packets.Accepted
	ReturnCodeNetworkError byte = packets.ErrNetworkError

	ReturnCodeBadCredentials byte = packets.ErrRefusedBadUsernameOrPassword
	ReturnCodeNotAuthorized  byte = packets.ErrRefusedNotAuthorised
)

// ConnectionError reports a connection refused by the broker or a transport
// failure during a session operation.
type ConnectionError struct {
	ReturnCode byte
	Err        error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mqtt connection error (return code %d): %v", e.ReturnCode, e.Err)
	}
	return fmt.Sprintf("mqtt connection error (return code %d)", e.ReturnCode)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Refused reports whether the broker answered with a non-zero CONNACK.
func (e *ConnectionError) Refused() bool {
	return e.ReturnCode != ReturnCodeAccepted && e.ReturnCode != ReturnCodeNetworkError
}

// Permanent reports a refusal that a new attempt with the same settings
// cannot fix.
func (e *ConnectionError) Permanent() bool {
	return e.ReturnCode == ReturnCodeBadCredentials || e.ReturnCode == ReturnCodeNotAuthorized
}

func connectionRefused(rc byte) *ConnectionError {
	err, ok := packets.ConnErrors[rc]
	if !ok || err == nil {
		err = fmt.Errorf("unknown return code %d", rc)
	}
	return &ConnectionError{ReturnCode: rc, Err: err}
}
