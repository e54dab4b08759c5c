package mqtt

import (
	"errors"
	"testing"
)

func TestMatchTopic(t *testing.T) {
	tests := []struct {
		pattern, topic string
		want           bool
	}{
		{"te/device/main///cmd/+/+", "te/device/main///cmd/restart/1", true},
		{"te/device/main///cmd/+/+", "te/device/main///cmd/restart", false},
		{"te/device/main///cmd/restart/+", "te/device/child///cmd/restart/1", false},
		{"te/#", "te/device/main///m/temp", true},
		{"te/#", "te", true},
		{"#", "$SYS/broker/uptime", false},
		{"+/broker/uptime", "$SYS/broker/uptime", false},
		{"$SYS/#", "$SYS/broker/uptime", true},
		{"a/b", "a/b", true},
		{"a/b", "a/b/c", false},
	}
	for _, tt := range tests {
		if got := MatchTopic(tt.pattern, tt.topic); got != tt.want {
			t.Errorf("MatchTopic(%q, %q) = %v, want %v", tt.pattern, tt.topic, got, tt.want)
		}
	}
}

func TestValidateFilter(t *testing.T) {
	for _, ok := range []string{"a/b", "a/+/c", "a/#", "#", "+"} {
		if err := ValidateFilter(ok); err != nil {
			t.Errorf("ValidateFilter(%q) error = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "a/#/c", "a/b+", "a#"} {
		if err := ValidateFilter(bad); !errors.Is(err, ErrInvalidTopicFilter) {
			t.Errorf("ValidateFilter(%q) error = %v, want %v", bad, err, ErrInvalidTopicFilter)
		}
	}
}

func TestTopicFilter(t *testing.T) {
	var f TopicFilter
	if !f.IsEmpty() || f.QoS() != AtLeastOnce {
		t.Fatal("zero filter should be empty with QoS 1")
	}

	if err := f.Add("te/device/main///cmd/restart/+"); err != nil {
		t.Fatalf("Add error = %v", err)
	}
	_ = f.Add("te/device/main///cmd/restart/+")
	f.AddAll(MustTopicFilter("te/device/main///cmd/software_list/+"))

	if got := len(f.Patterns()); got != 2 {
		t.Errorf("Patterns() has %d entries, want 2", got)
	}
	if !f.Accept("te/device/main///cmd/software_list/abc") {
		t.Error("filter should accept software_list command")
	}
	if f.Accept("te/device/main///cmd/software_update/abc") {
		t.Error("filter should not accept software_update command")
	}

	filters := f.WithQoS(ExactlyOnce).Filters()
	for p, q := range filters {
		if q != byte(ExactlyOnce) {
			t.Errorf("filter %q QoS = %d, want 2", p, q)
		}
	}
	if f.QoS() != AtLeastOnce {
		t.Error("WithQoS must not change the receiver")
	}
}
