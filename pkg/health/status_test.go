package health

import (
	"testing"
	"time"

	"github.com/Ruadhri17/thin-edge.io/pkg/mqtt"
	"github.com/Ruadhri17/thin-edge.io/pkg/topics"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		defaultType string
		want        Status
	}{
		{"complete", `{"pid":"1234","type":"systemd","status":"up"}`, "", Status{Type: "systemd", Status: "up"}},
		{"missing status", `{"pid":"123456","type":"systemd"}`, "", Status{Type: "systemd", Status: "unknown"}},
		{"missing type", `{"pid":"123456","status":"up"}`, "", Status{Type: "service", Status: "up"}},
		{"missing type with default", `{"status":"down"}`, "systemd", Status{Type: "systemd", Status: "down"}},
		{"empty fields", `{"type":"","status":""}`, "", Status{Type: "service", Status: "unknown"}},
		{"invalid json", `up`, "", Status{Type: "service", Status: "unknown"}},
		{"empty payload", ``, "thin-edge.io", Status{Type: "thin-edge.io", Status: "unknown"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseStatus([]byte(tt.payload), tt.defaultType); got != tt.want {
				t.Errorf("ParseStatus(%q) = %+v, want %+v", tt.payload, got, tt.want)
			}
		})
	}
}

func TestHealthMessages(t *testing.T) {
	schema := topics.NewSchema("te")
	service := topics.DefaultService("tedge-agent")

	up := UpMessage(schema, service, 42, time.Unix(1700000000, 0))
	if up.Topic != "te/device/main/service/tedge-agent/status/health" {
		t.Errorf("up topic = %q", up.Topic)
	}
	if got := up.PayloadString(); got != `{"status":"up","pid":42,"time":1700000000}` {
		t.Errorf("up payload = %s", got)
	}
	if !up.Retain || up.QoS != mqtt.AtLeastOnce {
		t.Errorf("up message should be retained at QoS 1: %+v", up)
	}

	down := DownMessage(schema, service)
	if down.Topic != up.Topic || down.PayloadString() != `{"status":"down"}` || !down.Retain {
		t.Errorf("down message = %+v", down)
	}
	if got := ParseStatus(down.Payload, ""); got.Status != StatusDown {
		t.Errorf("ParseStatus(down) = %+v", got)
	}

	if got := CheckTopic(schema, service); got != "te/device/main/service/tedge-agent/cmd/health/check" {
		t.Errorf("CheckTopic() = %q", got)
	}
}
