package commands

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/Ruadhri17/thin-edge.io/pkg/log"
)

func TestFilterByConnectionID(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 0, time.UTC)
	path := createTestLogFile(t, []log.Event{
		{Timestamp: ts, ConnectionID: "conn-1", Category: log.CategoryMessage},
		{Timestamp: ts, ConnectionID: "conn-2", Category: log.CategoryMessage},
		{Timestamp: ts, ConnectionID: "conn-1", Category: log.CategoryMessage},
	})
	outPath := filepath.Join(t.TempDir(), "filtered.cbor")

	n, err := RunFilter(path, log.Filter{ConnectionID: "conn-1"}, outPath)
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if n != 2 {
		t.Errorf("RunFilter() = %d, want 2", n)
	}

	events, err := log.ReadAll(outPath, log.Filter{})
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	for _, e := range events {
		if e.ConnectionID != "conn-1" {
			t.Errorf("expected conn-1, got %s", e.ConnectionID)
		}
	}
}

func TestFilterByTopicAndTime(t *testing.T) {
	base := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	child := log.NewPublishEvent("te/device/child-foo///cmd/restart/1", 1, true, []byte(`{"status":"init"}`))
	main := log.NewPublishEvent("te/device/main///cmd/restart/2", 1, true, []byte(`{"status":"init"}`))
	path := createTestLogFile(t, []log.Event{
		{Timestamp: base, Packet: child},
		{Timestamp: base.Add(time.Hour), Packet: child},
		{Timestamp: base.Add(time.Hour), Packet: main},
		{Timestamp: base.Add(2 * time.Hour), Packet: child},
	})

	sel := Selection{
		Topic:     "te/device/child-foo//",
		TimeStart: base.Add(30 * time.Minute).Format(time.RFC3339),
		TimeEnd:   base.Add(90 * time.Minute).Format(time.RFC3339),
	}
	filter, err := sel.Filter()
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}

	outPath := filepath.Join(t.TempDir(), "filtered.cbor")
	n, err := RunFilter(path, filter, outPath)
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if n != 1 {
		t.Errorf("RunFilter() = %d, want 1", n)
	}

	events, _ := log.ReadAll(outPath, log.Filter{})
	if len(events) != 1 || events[0].Topic() != child.Topic || !events[0].Timestamp.Equal(base.Add(time.Hour)) {
		t.Errorf("unexpected filtered events: %+v", events)
	}
}

func TestFilterMissingInput(t *testing.T) {
	_, err := RunFilter(filepath.Join(t.TempDir(), "missing.cbor"), log.Filter{}, filepath.Join(t.TempDir(), "out.cbor"))
	if err == nil {
		t.Error("expected error for a missing capture file")
	}
}
