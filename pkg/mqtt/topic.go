package mqtt

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidTopicFilter is returned for filters that violate the MQTT
// wildcard rules.
var ErrInvalidTopicFilter = errors.New("invalid topic filter")

// TopicFilter is a set of MQTT topic filters subscribed with one QoS.
// The zero value is an empty filter subscribing at QoS 1.
type TopicFilter struct {
	patterns []string
	qos      QoS
	qosSet   bool
}

// NewTopicFilter builds a QoS 1 filter from patterns.
func NewTopicFilter(patterns ...string) (TopicFilter, error) {
	var f TopicFilter
	for _, p := range patterns {
		if err := f.Add(p); err != nil {
			return TopicFilter{}, err
		}
	}
	return f, nil
}

// MustTopicFilter is like NewTopicFilter but panics on invalid patterns.
func MustTopicFilter(patterns ...string) TopicFilter {
	f, err := NewTopicFilter(patterns...)
	if err != nil {
		panic(err)
	}
	return f
}

// ValidateFilter checks the MQTT wildcard rules: '+' and '#' must take a
// whole level and '#' must be last.
func ValidateFilter(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTopicFilter)
	}
	levels := strings.Split(pattern, "/")
	for i, level := range levels {
		switch {
		case level == "#" && i != len(levels)-1:
			return fmt.Errorf("%w: %q: '#' must be the last level", ErrInvalidTopicFilter, pattern)
		case level != "#" && level != "+" && strings.ContainsAny(level, "#+"):
			return fmt.Errorf("%w: %q: wildcard must occupy a whole level", ErrInvalidTopicFilter, pattern)
		}
	}
	return nil
}

// Add appends pattern unless it is already present.
func (f *TopicFilter) Add(pattern string) error {
	if err := ValidateFilter(pattern); err != nil {
		return err
	}
	for _, p := range f.patterns {
		if p == pattern {
			return nil
		}
	}
	f.patterns = append(f.patterns, pattern)
	return nil
}

// AddAll merges other into f.
func (f *TopicFilter) AddAll(other TopicFilter) {
	for _, p := range other.patterns {
		_ = f.Add(p)
	}
}

// WithQoS returns a copy of f subscribed at q.
func (f TopicFilter) WithQoS(q QoS) TopicFilter {
	f.patterns = append([]string(nil), f.patterns...)
	f.qos = q
	f.qosSet = true
	return f
}

// QoS returns the subscription QoS.
func (f TopicFilter) QoS() QoS {
	if !f.qosSet {
		return AtLeastOnce
	}
	return f.qos
}

// IsEmpty reports whether f has no pattern.
func (f TopicFilter) IsEmpty() bool {
	return len(f.patterns) == 0
}

// Patterns returns the patterns in insertion order.
func (f TopicFilter) Patterns() []string {
	return append([]string(nil), f.patterns...)
}

// Filters returns the patterns mapped to their QoS, as expected by a
// SUBSCRIBE with several filters.
func (f TopicFilter) Filters() map[string]byte {
	m := make(map[string]byte, len(f.patterns))
	for _, p := range f.patterns {
		m[p] = byte(f.QoS())
	}
	return m
}

// Accept reports whether topic matches any pattern.
func (f TopicFilter) Accept(topic string) bool {
	for _, p := range f.patterns {
		if MatchTopic(p, topic) {
			return true
		}
	}
	return false
}

func (f TopicFilter) String() string {
	p := f.Patterns()
	sort.Strings(p)
	return strings.Join(p, ",")
}

// MatchTopic reports whether topic matches the filter pattern.
func MatchTopic(pattern, topic string) bool {
	// Topics starting with '$' are not matched by leading wildcards.
	if strings.HasPrefix(topic, "$") && (strings.HasPrefix(pattern, "+") || strings.HasPrefix(pattern, "#")) {
		return false
	}

	pl := strings.Split(pattern, "/")
	tl := strings.Split(topic, "/")
	for i, level := range pl {
		if level == "#" {
			return true
		}
		if i >= len(tl) {
			return false
		}
		if level != "+" && level != tl[i] {
			return false
		}
	}
	return len(pl) == len(tl)
}
