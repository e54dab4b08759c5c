package commands

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/Ruadhri17/thin-edge.io/pkg/log"
)

const timestampLayout = "2006-01-02T15:04:05.000000Z"

// eventType returns the label of the event payload.
func eventType(event log.Event) string {
	switch {
	case event.Packet != nil:
		return event.Packet.Type.String()
	case event.Command != nil:
		return "Command"
	case event.StateChange != nil:
		return "State"
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [conn:id] DIRECTION LAYER Type
	ts := event.Timestamp.UTC().Format(timestampLayout)
	layer := event.Layer.String()
	if event.Category == log.CategoryControl {
		layer = "CTRL"
	}
	fmt.Fprintf(w, "%s [conn:%s] %-3s %s %s\n", ts, shortenConnID(event.ConnectionID),
		event.Direction.String(), layer, eventType(event))

	switch {
	case event.Packet != nil:
		formatPacketDetails(w, event.Packet)
	case event.Command != nil:
		formatCommandDetails(w, event.Command)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatPacketDetails(w io.Writer, p *log.PacketEvent) {
	switch p.Type {
	case log.PacketPublish:
		fmt.Fprintf(w, "  Topic: %s\n", p.Topic)
		fmt.Fprintf(w, "  QoS: %d  Retain: %t  Size: %d bytes\n", p.QoS, p.Retain, p.Size)
		if len(p.Payload) > 0 {
			fmt.Fprintf(w, "  Payload: %s", payloadText(p.Payload))
			if p.Truncated {
				fmt.Fprint(w, " (truncated)")
			}
			fmt.Fprintln(w)
		}
	case log.PacketConnAck:
		if p.ReturnCode != nil {
			fmt.Fprintf(w, "  ReturnCode: %d\n", *p.ReturnCode)
		}
	case log.PacketSubscribe:
		for _, f := range p.Filters {
			fmt.Fprintf(w, "  Filter: %s\n", f)
		}
	}
}

// payloadText prints UTF-8 payloads as is and binary ones in hex.
func payloadText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return fmt.Sprintf("%x", b)
}

func formatCommandDetails(w io.Writer, c *log.CommandEvent) {
	fmt.Fprintf(w, "  Topic: %s\n", c.Topic)
	fmt.Fprintf(w, "  Operation: %s  Id: %s\n", c.Operation, c.CmdID)
	fmt.Fprintf(w, "  Status: %s\n", c.Status)
	if c.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", c.Reason)
	}
	if c.Rejected {
		fmt.Fprintln(w, "  Rejected: out of order update")
	}
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity.String())
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Code != nil {
		fmt.Fprintf(w, "  Code: %d\n", *err.Code)
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// RunView prints the events of the capture file matching filter.
func RunView(path string, filter log.Filter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open capture file: %w", err)
	}
	defer reader.Close()

	return reader.Each(func(event log.Event) error {
		formatEvent(output, event)
		return nil
	})
}
