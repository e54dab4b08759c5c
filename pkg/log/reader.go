package log

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter specifies criteria for filtering log events.
// Empty/nil fields match all events for that criterion.
type Filter struct {
	// ConnectionID filters by exact connection ID match.
	ConnectionID string

	// Direction filters by message direction.
	Direction *Direction

	// Layer filters by protocol layer.
	Layer *Layer

	// Category filters by event category.
	Category *Category

	// TimeStart filters events at or after this time.
	TimeStart *time.Time

	// TimeEnd filters events before this time.
	TimeEnd *time.Time

	// ClientID filters by MQTT client id.
	ClientID string

	// TopicPrefix keeps events whose topic starts with the prefix.
	TopicPrefix string

	// Operation keeps command events of one operation kind.
	Operation string
}

// matches returns true if the event matches all filter criteria.
func (f *Filter) matches(event Event) bool {
	if f.ConnectionID != "" && event.ConnectionID != f.ConnectionID {
		return false
	}
	if f.Direction != nil && event.Direction != *f.Direction {
		return false
	}
	if f.Layer != nil && event.Layer != *f.Layer {
		return false
	}
	if f.Category != nil && event.Category != *f.Category {
		return false
	}
	if f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart) {
		return false
	}
	if f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd) {
		return false
	}
	if f.ClientID != "" && event.ClientID != f.ClientID {
		return false
	}
	if f.TopicPrefix != "" && !strings.HasPrefix(event.Topic(), f.TopicPrefix) {
		return false
	}
	if f.Operation != "" && (event.Command == nil || event.Command.Operation != f.Operation) {
		return false
	}
	return true
}

// StdinPath names the standard input as a capture source.
const StdinPath = "-"

// Reader streams capture events, skipping the ones rejected by its filter.
type Reader struct {
	src     io.ReadCloser
	decoder *cbor.Decoder
	filter  Filter
	decoded int
}

// NewReader creates a Reader over every event of a capture file.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens a capture file, or the standard input for
// StdinPath, and keeps the events matching filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	if path == StdinPath {
		return NewStreamReader(io.NopCloser(os.Stdin), filter), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return NewStreamReader(f, filter), nil
}

// NewStreamReader decodes events from src. Close closes src.
func NewStreamReader(src io.ReadCloser, filter Filter) *Reader {
	return &Reader{
		src:     src,
		decoder: NewDecoder(src),
		filter:  filter,
	}
}

// Next returns the next matching event, or io.EOF at the end of the stream.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		if err := r.decoder.Decode(&event); err != nil {
			if errors.Is(err, io.EOF) {
				return Event{}, io.EOF
			}
			return Event{}, fmt.Errorf("decode event %d: %w", r.decoded+1, err)
		}
		r.decoded++
		if r.filter.matches(event) {
			return event, nil
		}
	}
}

// Decoded returns the number of events read so far, filtered out or not.
func (r *Reader) Decoded() int {
	return r.decoded
}

// Each calls fn with every remaining matching event. It stops at the end
// of the stream or at the first error, returned as is.
func (r *Reader) Each(fn func(Event) error) error {
	for {
		event, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(event); err != nil {
			return err
		}
	}
}

// Close closes the underlying source.
func (r *Reader) Close() error {
	return r.src.Close()
}

// ReadAll returns every event of the capture file matching filter.
func ReadAll(path string, filter Filter) ([]Event, error) {
	r, err := NewFilteredReader(path, filter)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var events []Event
	err = r.Each(func(e Event) error {
		events = append(events, e)
		return nil
	})
	return events, err
}
