package health

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ruadhri17/thin-edge.io/pkg/mqtt"
	"github.com/Ruadhri17/thin-edge.io/pkg/topics"
)

// Health status values.
const (
	StatusUp      = "up"
	StatusDown    = "down"
	StatusUnknown = "unknown"
)

// DefaultServiceType is used when a health message does not carry a type.
const DefaultServiceType = "service"

// Status is the health of a service as reported by itself.
type Status struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

// ParseStatus decodes a health payload. Missing fields, as well as a payload
// that cannot be decoded, fall back to the default type and an unknown status.
func ParseStatus(payload []byte, defaultType string) Status {
	if defaultType == "" {
		defaultType = DefaultServiceType
	}

	var s Status
	if err := json.Unmarshal(payload, &s); err != nil {
		return Status{Type: defaultType, Status: StatusUnknown}
	}
	if s.Status == "" {
		s.Status = StatusUnknown
	}
	if s.Type == "" {
		s.Type = defaultType
	}
	return s
}

// Topic returns the health topic of service.
func Topic(schema topics.Schema, service topics.EntityTopicID) string {
	return schema.Topic(service, topics.HealthChannel())
}

// CheckTopic returns the topic on which health checks are requested.
func CheckTopic(schema topics.Schema, service topics.EntityTopicID) string {
	return schema.Topic(service, topics.CommandChannel(topics.OperationHealthCheck, "check"))
}

// UpMessage returns the retained "up" status of a service.
func UpMessage(schema topics.Schema, service topics.EntityTopicID, pid int, now time.Time) mqtt.Message {
	payload := fmt.Sprintf(`{"status":%q,"pid":%d,"time":%d}`, StatusUp, pid, now.Unix())
	return mqtt.NewMessage(Topic(schema, service), []byte(payload)).WithRetain()
}

// DownMessage returns the retained "down" status registered as last will.
func DownMessage(schema topics.Schema, service topics.EntityTopicID) mqtt.Message {
	payload := fmt.Sprintf(`{"status":%q}`, StatusDown)
	return mqtt.NewMessage(Topic(schema, service), []byte(payload)).WithRetain()
}
