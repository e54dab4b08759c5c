package commands

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Ruadhri17/thin-edge.io/pkg/log"
)

func exportEvents() []log.Event {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)
	return []log.Event{
		{
			Timestamp:    ts,
			ConnectionID: "abc12345",
			ClientID:     "tedge-agent",
			Direction:    log.DirectionIn,
			Layer:        log.LayerTransport,
			Category:     log.CategoryMessage,
			Packet:       log.NewPublishEvent("te/device/main///cmd/restart/1", 1, true, []byte(`{"status":"init"}`)),
		},
		{
			Timestamp:    ts.Add(time.Second),
			ConnectionID: "abc12345",
			ClientID:     "tedge-agent",
			Direction:    log.DirectionOut,
			Layer:        log.LayerOperation,
			Category:     log.CategoryState,
			Command: &log.CommandEvent{
				Topic:     "te/device/main///cmd/restart/1",
				Operation: "restart",
				CmdID:     "1",
				Status:    "executing",
			},
		},
	}
}

func TestExportToJSONL(t *testing.T) {
	path := createTestLogFile(t, exportEvents())
	outPath := filepath.Join(t.TempDir(), "out.jsonl")

	if err := RunExport(path, "jsonl", outPath); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var event log.Event
	if err := json.Unmarshal([]byte(lines[1]), &event); err != nil {
		t.Fatalf("invalid JSON line: %v", err)
	}
	if event.Command == nil || event.Command.Status != "executing" {
		t.Errorf("unexpected exported event: %+v", event)
	}
}

func TestExportToCSV(t *testing.T) {
	path := createTestLogFile(t, exportEvents())
	outPath := filepath.Join(t.TempDir(), "out.csv")

	if err := RunExport(path, "csv", outPath); err != nil {
		t.Fatalf("RunExport failed: %v", err)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header and 2 rows, got %d records", len(records))
	}
	if strings.Join(records[0], ",") != strings.Join(csvHeader, ",") {
		t.Errorf("header = %v", records[0])
	}

	publish := records[1]
	if publish[0] != "2026-01-28T10:15:32.123456Z" || publish[2] != "IN" || publish[6] != "PUBLISH" {
		t.Errorf("publish row = %v", publish)
	}
	if publish[7] != "te/device/main///cmd/restart/1" || publish[5] != "tedge-agent" {
		t.Errorf("publish row = %v", publish)
	}

	cmd := records[2]
	if cmd[3] != "OPERATION" || cmd[6] != "Command" || cmd[8] != "executing" {
		t.Errorf("command row = %v", cmd)
	}
}

func TestExportUnknownFormat(t *testing.T) {
	path := createTestLogFile(t, exportEvents())

	err := RunExport(path, "xml", "")
	if err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Errorf("expected unknown format error, got %v", err)
	}
}
