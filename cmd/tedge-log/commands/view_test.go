package commands

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Ruadhri17/thin-edge.io/pkg/log"
)

const testConnID = "abc12345-6789-0123-4567-890abcdef012"

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.cbor")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

func TestFormatPublishEvent(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)
	event := log.Event{
		Timestamp:    ts,
		ConnectionID: testConnID,
		Direction:    log.DirectionOut,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Packet:       log.NewPublishEvent("te/device/main///cmd/restart", 1, true, []byte("{}")),
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	for _, want := range []string{
		"2026-01-28T10:15:32.123456Z",
		"[conn:abc12345]",
		"OUT",
		"TRANSPORT PUBLISH",
		"Topic: te/device/main///cmd/restart",
		"QoS: 1  Retain: true  Size: 2 bytes",
		"Payload: {}",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestFormatBinaryPayload(t *testing.T) {
	event := log.Event{
		Category: log.CategoryMessage,
		Packet:   log.NewPublishEvent("a/b", 0, false, []byte{0xff, 0xfe}),
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)

	if !strings.Contains(buf.String(), "Payload: fffe") {
		t.Errorf("expected hex payload, got: %s", buf.String())
	}
}

func TestFormatControlEvent(t *testing.T) {
	rc := uint8(5)
	event := log.Event{
		ConnectionID: testConnID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerTransport,
		Category:     log.CategoryControl,
		Packet:       &log.PacketEvent{Type: log.PacketConnAck, ReturnCode: &rc},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	if !strings.Contains(output, "CTRL CONNACK") {
		t.Errorf("expected CTRL CONNACK header, got: %s", output)
	}
	if !strings.Contains(output, "ReturnCode: 5") {
		t.Errorf("expected return code, got: %s", output)
	}
}

func TestFormatCommandEvent(t *testing.T) {
	event := log.Event{
		ConnectionID: testConnID,
		Direction:    log.DirectionOut,
		Layer:        log.LayerOperation,
		Category:     log.CategoryState,
		Command: &log.CommandEvent{
			Topic:     "te/device/main///cmd/restart/abc",
			Operation: "restart",
			CmdID:     "abc",
			Status:    "failed",
			Reason:    "system did not restart",
			Rejected:  true,
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	for _, want := range []string{
		"OPERATION Command",
		"Operation: restart  Id: abc",
		"Status: failed",
		"Reason: system did not restart",
		"Rejected: out of order update",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestFormatStateChangeEvent(t *testing.T) {
	event := log.Event{
		Layer:    log.LayerSession,
		Category: log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySession,
			OldState: "CONNECTING",
			NewState: "CONNACK_RECEIVED",
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	if !strings.Contains(output, "Entity: SESSION") {
		t.Errorf("expected session entity, got: %s", output)
	}
	if !strings.Contains(output, "CONNECTING -> CONNACK_RECEIVED") {
		t.Errorf("expected transition, got: %s", output)
	}
}

func TestFormatErrorEvent(t *testing.T) {
	code := 3
	event := log.Event{
		Layer:    log.LayerSession,
		Category: log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerSession,
			Message: "server unavailable",
			Code:    &code,
			Context: "init session",
		},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	for _, want := range []string{"Error", "Message: server unavailable", "Code: 3", "Context: init session"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestShortenConnID(t *testing.T) {
	if got := shortenConnID(testConnID); got != "abc12345" {
		t.Errorf("shortenConnID() = %q", got)
	}
	if got := shortenConnID("abc"); got != "abc" {
		t.Errorf("shortenConnID() = %q", got)
	}
}

func TestRunView(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, []log.Event{
		{Timestamp: ts, Layer: log.LayerTransport, Category: log.CategoryMessage,
			Packet: log.NewPublishEvent("te/device/main///cmd/restart/1", 1, true, []byte(`{"status":"init"}`))},
		{Timestamp: ts, Layer: log.LayerOperation, Category: log.CategoryState,
			Command: &log.CommandEvent{Topic: "te/device/main///cmd/restart/1", Operation: "restart", CmdID: "1", Status: "init"}},
		{Timestamp: ts, Layer: log.LayerOperation, Category: log.CategoryState,
			Command: &log.CommandEvent{Topic: "te/device/main///cmd/software_list/2", Operation: "software_list", CmdID: "2", Status: "init"}},
	})

	layer := log.LayerOperation
	var buf bytes.Buffer
	if err := RunView(path, log.Filter{Layer: &layer, Operation: "restart"}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	output := buf.String()
	if strings.Count(output, "OPERATION Command") != 1 {
		t.Errorf("expected exactly one command event, got: %s", output)
	}
	if strings.Contains(output, "software_list") || strings.Contains(output, "PUBLISH") {
		t.Errorf("filtered events in output: %s", output)
	}
}

func TestRunViewMissingFile(t *testing.T) {
	var buf bytes.Buffer
	if err := RunView(filepath.Join(t.TempDir(), "missing.cbor"), log.Filter{}, &buf); err == nil {
		t.Error("expected error for a missing capture file")
	}
}
