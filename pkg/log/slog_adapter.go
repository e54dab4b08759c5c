package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger.
// Useful for development when you want to see protocol events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("conn_id", event.ConnectionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}
	if event.ClientID != "" {
		attrs = append(attrs, slog.String("client_id", event.ClientID))
	}

	switch {
	case event.Packet != nil:
		attrs = append(attrs, slog.String("packet", event.Packet.Type.String()))
		if event.Packet.Topic != "" {
			attrs = append(attrs,
				slog.String("topic", event.Packet.Topic),
				slog.Int("qos", int(event.Packet.QoS)),
				slog.Bool("retain", event.Packet.Retain),
				slog.Int("size", event.Packet.Size),
			)
		}
		if event.Packet.ReturnCode != nil {
			attrs = append(attrs, slog.Int("return_code", int(*event.Packet.ReturnCode)))
		}
		if len(event.Packet.Filters) > 0 {
			attrs = append(attrs, slog.Any("filters", event.Packet.Filters))
		}
	case event.Command != nil:
		attrs = append(attrs,
			slog.String("topic", event.Command.Topic),
			slog.String("operation", event.Command.Operation),
			slog.String("cmd_id", event.Command.CmdID),
			slog.String("status", event.Command.Status),
		)
		if event.Command.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.Command.Reason))
		}
		if event.Command.Rejected {
			attrs = append(attrs, slog.Bool("rejected", true))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.Code != nil {
			attrs = append(attrs, slog.Int("error_code", *event.Error.Code))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "mqtt", attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
