// Package command models the lifecycle of operations requested over MQTT.
//
// A command is a retained message on <root>/<entity>/cmd/<op>/<id>. Its
// payload carries a status that only moves forward:
//
//	init -> scheduled -> executing -> successful | failed
//
// Once a command reaches successful or failed it is terminal; a fresh init
// with the same id starts a new command.
package command

import (
	"errors"
	"fmt"
)

// ErrUnknownStatus is returned when decoding an unknown status string.
var ErrUnknownStatus = errors.New("unknown command status")

// Status is the state of a command.
type Status uint8

const (
	StatusUnknown Status = iota
	StatusInit
	StatusScheduled
	StatusExecuting
	StatusSuccessful
	StatusFailed
)

var statusNames = map[Status]string{
	StatusInit:       "init",
	StatusScheduled:  "scheduled",
	StatusExecuting:  "executing",
	StatusSuccessful: "successful",
	StatusFailed:     "failed",
}

// ParseStatus parses a lowercase status string.
func ParseStatus(s string) (Status, error) {
	for st, name := range statusNames {
		if name == s {
			return st, nil
		}
	}
	return StatusUnknown, fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// Rank orders statuses along the lifecycle. Both terminal statuses share
// the highest rank.
func (s Status) Rank() int {
	switch s {
	case StatusInit:
		return 1
	case StatusScheduled:
		return 2
	case StatusExecuting:
		return 3
	case StatusSuccessful, StatusFailed:
		return 4
	default:
		return 0
	}
}

// IsTerminal reports whether s is successful or failed.
func (s Status) IsTerminal() bool {
	return s == StatusSuccessful || s == StatusFailed
}

// CanTransitionTo reports whether a command in status s may move to next.
func (s Status) CanTransitionTo(next Status) bool {
	if next == StatusUnknown {
		return false
	}
	if s.IsTerminal() {
		return next == StatusInit
	}
	return next.Rank() > s.Rank()
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	name, ok := statusNames[s]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStatus, uint8(s))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	st, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}
