package log

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func createTestLogFile(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.tlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create test log: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()
	return path
}

func TestReaderFilters(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []Event{
		{Timestamp: base, ConnectionID: "a", Direction: DirectionIn, Category: CategoryMessage,
			Packet: NewPublishEvent("te/device/main///cmd/restart/1", 1, true, nil)},
		{Timestamp: base.Add(time.Second), ConnectionID: "a", Direction: DirectionOut, Category: CategoryMessage,
			Packet: NewPublishEvent("te/device/main///cmd/software_list/2", 1, true, nil)},
		{Timestamp: base.Add(2 * time.Second), ConnectionID: "b", Layer: LayerOperation, Category: CategoryState,
			Command: &CommandEvent{Topic: "te/device/main///cmd/restart/1", Operation: "restart", CmdID: "1", Status: "executing"}},
		{Timestamp: base.Add(3 * time.Second), ConnectionID: "b", Layer: LayerSession, Category: CategoryError,
			Error: &ErrorEventData{Layer: LayerSession, Message: "refused"}},
	}
	path := createTestLogFile(t, events)

	out := DirectionOut
	errCat := CategoryError
	end := base.Add(2 * time.Second)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 4},
		{"connection", Filter{ConnectionID: "b"}, 2},
		{"direction", Filter{Direction: &out}, 1},
		{"category", Filter{Category: &errCat}, 1},
		{"time end", Filter{TimeEnd: &end}, 2},
		{"topic prefix", Filter{TopicPrefix: "te/device/main///cmd/restart"}, 2},
		{"operation", Filter{Operation: "restart"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadAll(path, tt.filter)
			if err != nil {
				t.Fatalf("ReadAll failed: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d events, want %d", len(got), tt.want)
			}
		})
	}
}

func TestReaderMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "missing.tlog")); err == nil {
		t.Error("NewReader should fail for a missing file")
	}
}

func TestStreamReader(t *testing.T) {
	path := createTestLogFile(t, []Event{
		{ConnectionID: "a"},
		{ConnectionID: "b"},
		{ConnectionID: "a"},
	})
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}

	r := NewStreamReader(f, Filter{ConnectionID: "a"})
	defer r.Close()

	var got []string
	if err := r.Each(func(e Event) error {
		got = append(got, e.ConnectionID)
		return nil
	}); err != nil {
		t.Fatalf("Each failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %v, want two events of connection a", got)
	}
	if r.Decoded() != 3 {
		t.Errorf("Decoded() = %d, want 3", r.Decoded())
	}
}

func TestEachStopsOnError(t *testing.T) {
	path := createTestLogFile(t, []Event{{ConnectionID: "a"}, {ConnectionID: "b"}})
	r, err := NewReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	stop := errors.New("stop")
	calls := 0
	err = r.Each(func(Event) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Errorf("Each() = %v after %d calls, want stop after 1", err, calls)
	}
}

func TestReaderCorruptStream(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.tlog")
	if err := os.WriteFile(path, []byte{0xff, 0x00, 0x13}, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadAll(path, Filter{}); err == nil {
		t.Error("ReadAll should fail on a corrupt stream")
	}
}
