package discovery

import (
	"errors"
	"net"
	"strings"
	"time"
)

// Service type constants for mDNS.
const (
	// ServiceTypeMQTT is the service type of a plain MQTT broker.
	ServiceTypeMQTT = "_mqtt._tcp"

	// ServiceTypeSecureMQTT is the service type of a TLS-only broker.
	ServiceTypeSecureMQTT = "_secure-mqtt._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// BrowseTimeout is the default time spent looking for a broker.
	BrowseTimeout = 5 * time.Second
)

// TXT record keys.
const (
	TXTKeyTLS       = "tls"
	TXTKeyTopicRoot = "root"
)

// Errors.
var (
	ErrNotFound = errors.New("no broker found")
)

// BrokerService is a broker announced on the local network.
type BrokerService struct {
	InstanceName string
	Host         string
	Port         uint16
	Addresses    []string

	// TLS is set for _secure-mqtt._tcp or when the tls TXT record is set.
	TLS bool

	// TopicRoot is empty unless announced.
	TopicRoot string
}

// Address returns the address to dial: the first IPv4 address, then any
// address, then the host name without its trailing dot.
func (s *BrokerService) Address() string {
	for _, a := range s.Addresses {
		if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
			return a
		}
	}
	if len(s.Addresses) > 0 {
		return s.Addresses[0]
	}
	return strings.TrimSuffix(s.Host, ".")
}
