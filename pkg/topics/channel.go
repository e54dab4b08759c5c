package topics

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidChannel is returned when a channel path cannot be parsed.
var ErrInvalidChannel = errors.New("invalid channel")

// OperationKind names an operation an entity can perform.
type OperationKind string

const (
	OperationRestart        OperationKind = "restart"
	OperationSoftwareList   OperationKind = "software_list"
	OperationSoftwareUpdate OperationKind = "software_update"
	OperationHealthCheck    OperationKind = "health"
)

// ChannelKey identifies a capability: an operation served for an entity.
type ChannelKey struct {
	Entity    EntityTopicID
	Operation OperationKind
}

func (k ChannelKey) String() string {
	return k.Entity.String() + "/cmd/" + string(k.Operation)
}

// ChannelKind distinguishes channel variants.
type ChannelKind uint8

const (
	ChannelOther ChannelKind = iota
	ChannelCommandMetadata
	ChannelCommand
	ChannelHealth
)

// Channel is the part of a topic following the entity topic id.
type Channel struct {
	Kind      ChannelKind
	Operation OperationKind
	CmdID     string

	// Path holds the raw channel for ChannelOther.
	Path string
}

// CommandMetadataChannel returns cmd/<op>.
func CommandMetadataChannel(op OperationKind) Channel {
	return Channel{Kind: ChannelCommandMetadata, Operation: op}
}

// CommandChannel returns cmd/<op>/<id>.
func CommandChannel(op OperationKind, cmdID string) Channel {
	return Channel{Kind: ChannelCommand, Operation: op, CmdID: cmdID}
}

// HealthChannel returns status/health.
func HealthChannel() Channel {
	return Channel{Kind: ChannelHealth}
}

// ParseChannel parses a channel path.
func ParseChannel(path string) (Channel, error) {
	parts := strings.Split(path, "/")
	switch {
	case len(parts) == 2 && parts[0] == "cmd" && parts[1] != "":
		return CommandMetadataChannel(OperationKind(parts[1])), nil
	case len(parts) == 3 && parts[0] == "cmd" && parts[1] != "" && parts[2] != "":
		return CommandChannel(OperationKind(parts[1]), parts[2]), nil
	case len(parts) >= 1 && parts[0] == "cmd":
		return Channel{}, fmt.Errorf("%w: %q", ErrInvalidChannel, path)
	case path == "status/health":
		return HealthChannel(), nil
	case path == "":
		return Channel{}, fmt.Errorf("%w: empty", ErrInvalidChannel)
	default:
		return Channel{Kind: ChannelOther, Path: path}, nil
	}
}

func (c Channel) String() string {
	switch c.Kind {
	case ChannelCommandMetadata:
		return "cmd/" + string(c.Operation)
	case ChannelCommand:
		return "cmd/" + string(c.Operation) + "/" + c.CmdID
	case ChannelHealth:
		return "status/health"
	default:
		return c.Path
	}
}
