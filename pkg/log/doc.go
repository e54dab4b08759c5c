// Package log captures MQTT protocol events for the agent.
//
// This package defines the Logger interface and Event types recording what
// the agent exchanged with the broker: packets on the wire, session setup
// and teardown, and command lifecycle transitions. It is separate from
// operational logging (slog); the capture is a complete machine-readable
// trace for debugging and analysis.
//
// # Basic Usage
//
// Components accept a Logger in their config:
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// In the field: write to a capture file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/tedge/agent.tlog")
//
//	// Both
//	cfg.ProtocolLogger = log.NewMultiLogger(adapter, fileLogger)
//
// # Event Types
//
//   - Transport: MQTT packets (PacketEvent)
//   - Session: session and connection state changes (StateChangeEvent)
//   - Operation: command status transitions (CommandEvent)
//
// Errors at any layer have a dedicated event type.
//
// # File Format
//
// Capture files are a stream of CBOR-encoded events with integer keys. The
// tedge-log tool views, filters and exports them.
package log
