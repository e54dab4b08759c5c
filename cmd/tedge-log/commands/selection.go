// Package commands implements the tedge-log CLI commands.
package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/Ruadhri17/thin-edge.io/pkg/log"
)

// Selection holds the event selection flags shared by view and filter.
// Empty fields select every event.
type Selection struct {
	Layer     string
	Direction string
	Category  string
	Topic     string
	Operation string
	ConnID    string
	ClientID  string
	TimeStart string
	TimeEnd   string
}

// Filter parses the selection into a capture filter.
func (s Selection) Filter() (log.Filter, error) {
	filter := log.Filter{
		ConnectionID: s.ConnID,
		ClientID:     s.ClientID,
		TopicPrefix:  s.Topic,
		Operation:    s.Operation,
	}

	if s.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, s.TimeStart)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}
	if s.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, s.TimeEnd)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}
	if s.Layer != "" {
		l, err := parseLayer(s.Layer)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Layer = &l
	}
	if s.Direction != "" {
		d, err := parseDirection(s.Direction)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Direction = &d
	}
	if s.Category != "" {
		c, err := parseCategory(s.Category)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Category = &c
	}
	return filter, nil
}

// parseLayer parses a layer string (case-insensitive).
func parseLayer(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "session":
		return log.LayerSession, nil
	case "operation":
		return log.LayerOperation, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport, session, or operation)", s)
	}
}

// parseDirection parses a direction string (case-insensitive).
func parseDirection(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// parseCategory parses a category string (case-insensitive).
func parseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "control":
		return log.CategoryControl, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be message, control, state, or error)", s)
	}
}
