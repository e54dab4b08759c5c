package commands

import (
	"testing"
	"time"

	"github.com/Ruadhri17/thin-edge.io/pkg/log"
)

func TestParseLayer(t *testing.T) {
	tests := []struct {
		input    string
		expected log.Layer
		wantErr  bool
	}{
		{"transport", log.LayerTransport, false},
		{"SESSION", log.LayerSession, false},
		{"operation", log.LayerOperation, false},
		{"wire", 0, true},
	}

	for _, tt := range tests {
		got, err := parseLayer(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseLayer(%q) expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseLayer(%q) unexpected error: %v", tt.input, err)
		}
		if got != tt.expected {
			t.Errorf("parseLayer(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		input    string
		expected log.Category
		wantErr  bool
	}{
		{"message", log.CategoryMessage, false},
		{"MESSAGE", log.CategoryMessage, false},
		{"control", log.CategoryControl, false},
		{"state", log.CategoryState, false},
		{"error", log.CategoryError, false},
		{"invalid", 0, true},
	}

	for _, tt := range tests {
		got, err := parseCategory(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseCategory(%q) expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseCategory(%q) unexpected error: %v", tt.input, err)
		}
		if got != tt.expected {
			t.Errorf("parseCategory(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestParseDirection(t *testing.T) {
	if d, err := parseDirection("IN"); err != nil || d != log.DirectionIn {
		t.Errorf("parseDirection(IN) = %v, %v", d, err)
	}
	if d, err := parseDirection("out"); err != nil || d != log.DirectionOut {
		t.Errorf("parseDirection(out) = %v, %v", d, err)
	}
	if _, err := parseDirection("sideways"); err == nil {
		t.Error("parseDirection(sideways) expected error")
	}
}

func TestSelectionFilter(t *testing.T) {
	sel := Selection{
		Layer:     "operation",
		Direction: "out",
		Category:  "state",
		Topic:     "te/device/main//",
		Operation: "restart",
		ConnID:    "conn-1",
		ClientID:  "tedge-agent",
		TimeStart: "2026-01-28T10:00:00Z",
		TimeEnd:   "2026-01-28T11:00:00Z",
	}

	f, err := sel.Filter()
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}
	if f.Layer == nil || *f.Layer != log.LayerOperation {
		t.Errorf("Layer = %v", f.Layer)
	}
	if f.Direction == nil || *f.Direction != log.DirectionOut {
		t.Errorf("Direction = %v", f.Direction)
	}
	if f.Category == nil || *f.Category != log.CategoryState {
		t.Errorf("Category = %v", f.Category)
	}
	if f.TopicPrefix != "te/device/main//" || f.Operation != "restart" {
		t.Errorf("TopicPrefix = %q, Operation = %q", f.TopicPrefix, f.Operation)
	}
	if f.ConnectionID != "conn-1" || f.ClientID != "tedge-agent" {
		t.Errorf("ConnectionID = %q, ClientID = %q", f.ConnectionID, f.ClientID)
	}
	want := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	if f.TimeStart == nil || !f.TimeStart.Equal(want) {
		t.Errorf("TimeStart = %v", f.TimeStart)
	}
}

func TestSelectionFilterErrors(t *testing.T) {
	for _, sel := range []Selection{
		{Layer: "wire"},
		{Direction: "up"},
		{Category: "snapshot"},
		{TimeStart: "yesterday"},
		{TimeEnd: "tomorrow"},
	} {
		if _, err := sel.Filter(); err == nil {
			t.Errorf("Filter() for %+v expected error", sel)
		}
	}
}
