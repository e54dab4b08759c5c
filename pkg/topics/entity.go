package topics

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidEntityTopicID is returned when an entity topic id does not have
// exactly four segments.
var ErrInvalidEntityTopicID = errors.New("invalid entity topic id")

const (
	mainDeviceName = "main"
	segmentDevice  = "device"
	segmentService = "service"
	entitySegments = 4
)

// EntityTopicID identifies an entity (device or service) in topics.
type EntityTopicID struct {
	segments [entitySegments]string
}

// ParseEntityTopicID parses a four-segment entity topic id.
func ParseEntityTopicID(s string) (EntityTopicID, error) {
	parts := strings.Split(s, "/")
	if len(parts) != entitySegments {
		return EntityTopicID{}, fmt.Errorf("%w: %q has %d segments", ErrInvalidEntityTopicID, s, len(parts))
	}
	var id EntityTopicID
	copy(id.segments[:], parts)
	return id, nil
}

// MustParseEntityTopicID is like ParseEntityTopicID but panics on error.
// Only use it with constant input.
func MustParseEntityTopicID(s string) EntityTopicID {
	id, err := ParseEntityTopicID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// DefaultMainDevice returns device/main//.
func DefaultMainDevice() EntityTopicID {
	return EntityTopicID{segments: [entitySegments]string{segmentDevice, mainDeviceName, "", ""}}
}

// DefaultChildDevice returns device/<name>//.
func DefaultChildDevice(name string) EntityTopicID {
	return EntityTopicID{segments: [entitySegments]string{segmentDevice, name, "", ""}}
}

// DefaultService returns the id of a service running on the main device.
func DefaultService(name string) EntityTopicID {
	return DefaultDeviceService(mainDeviceName, name)
}

// DefaultDeviceService returns device/<device>/service/<name>.
func DefaultDeviceService(device, name string) EntityTopicID {
	return EntityTopicID{segments: [entitySegments]string{segmentDevice, device, segmentService, name}}
}

// String returns the id with its four segments joined by '/'.
func (id EntityTopicID) String() string {
	return strings.Join(id.segments[:], "/")
}

// IsZero reports whether id was never set.
func (id EntityTopicID) IsZero() bool {
	return id == EntityTopicID{}
}

// IsDefaultMainDevice reports whether id is device/main//.
func (id EntityTopicID) IsDefaultMainDevice() bool {
	return id == DefaultMainDevice()
}

// IsDefaultChildDevice reports whether id is a child device in the
// default scheme.
func (id EntityTopicID) IsDefaultChildDevice() bool {
	s := id.segments
	return s[0] == segmentDevice && s[1] != "" && s[1] != mainDeviceName && s[2] == "" && s[3] == ""
}

// IsDefaultService reports whether id is a service in the default scheme.
func (id EntityTopicID) IsDefaultService() bool {
	s := id.segments
	return s[0] == segmentDevice && s[1] != "" && s[2] == segmentService && s[3] != ""
}

// DeviceName returns the device segment of a default-scheme id.
func (id EntityTopicID) DeviceName() (string, bool) {
	if id.segments[0] != segmentDevice || id.segments[1] == "" {
		return "", false
	}
	return id.segments[1], true
}

// ServiceName returns the service segment of a default-scheme service id.
func (id EntityTopicID) ServiceName() (string, bool) {
	if !id.IsDefaultService() {
		return "", false
	}
	return id.segments[3], true
}

// DefaultParent returns the parent of a default-scheme entity: the main
// device for child devices, the hosting device for services. The main
// device and custom-scheme ids have no default parent.
func (id EntityTopicID) DefaultParent() (EntityTopicID, bool) {
	switch {
	case id.IsDefaultChildDevice():
		return DefaultMainDevice(), true
	case id.IsDefaultService():
		return DefaultChildDevice(id.segments[1]), true
	default:
		return EntityTopicID{}, false
	}
}

// RootDevice returns the main device every default-scheme entity belongs to.
func (id EntityTopicID) RootDevice() EntityTopicID {
	return DefaultMainDevice()
}

// MarshalText implements encoding.TextMarshaler.
func (id EntityTopicID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *EntityTopicID) UnmarshalText(b []byte) error {
	parsed, err := ParseEntityTopicID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
