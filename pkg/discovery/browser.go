package discovery

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ServiceEntry is a resolved DNS-SD announcement, independent of the mDNS
// library.
type ServiceEntry struct {
	Instance string
	Service  string
	Domain   string
	Host     string
	Port     uint16
	Text     []string
	Addrs    []string
}

// ToBrokerService converts the entry. It returns false for entries that
// cannot be dialed.
func (e *ServiceEntry) ToBrokerService() (*BrokerService, bool) {
	if e.Port == 0 || (len(e.Addrs) == 0 && e.Host == "") {
		return nil, false
	}
	txt := StringsToTXTRecords(e.Text)
	return &BrokerService{
		InstanceName: e.Instance,
		Host:         e.Host,
		Port:         e.Port,
		Addresses:    append([]string(nil), e.Addrs...),
		TLS:          e.Service == ServiceTypeSecureMQTT || txt.Bool(TXTKeyTLS),
		TopicRoot:    txt[TXTKeyTopicRoot],
	}, true
}

// Resolver browses a DNS-SD service type, calling found for every entry
// until ctx is done.
type Resolver interface {
	Browse(ctx context.Context, service, domain string, found func(ServiceEntry)) error
}

// BrowserConfig configures broker discovery.
type BrowserConfig struct {
	// Services are browsed in parallel. Defaults to _mqtt._tcp.
	Services []string

	Domain string

	// Interface restricts browsing to one network interface.
	Interface string

	Timeout time.Duration

	Logger *slog.Logger
}

// DefaultBrowserConfig returns the configuration browsing _mqtt._tcp.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		Services: []string{ServiceTypeMQTT},
		Domain:   Domain,
		Timeout:  BrowseTimeout,
	}
}

// Browser looks up brokers.
type Browser struct {
	config   BrowserConfig
	resolver Resolver
}

// NewBrowser creates a browser using resolver, or mDNS when nil.
func NewBrowser(config BrowserConfig, resolver Resolver) *Browser {
	if len(config.Services) == 0 {
		config.Services = []string{ServiceTypeMQTT}
	}
	if config.Domain == "" {
		config.Domain = Domain
	}
	if config.Timeout <= 0 {
		config.Timeout = BrowseTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if resolver == nil {
		resolver = NewMDNSResolver(config.Interface)
	}
	return &Browser{config: config, resolver: resolver}
}

// FindBroker returns the first usable broker announced within the timeout.
func (b *Browser) FindBroker(ctx context.Context) (*BrokerService, error) {
	ctx, cancel := context.WithTimeout(ctx, b.config.Timeout)
	defer cancel()

	found := make(chan *BrokerService, 1)
	for _, service := range b.config.Services {
		go func(service string) {
			err := b.resolver.Browse(ctx, service, b.config.Domain, func(e ServiceEntry) {
				if e.Service == "" {
					e.Service = service
				}
				svc, ok := e.ToBrokerService()
				if !ok {
					b.config.Logger.Debug("Ignoring broker announcement", "instance", e.Instance)
					return
				}
				select {
				case found <- svc:
				default:
				}
			})
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				b.config.Logger.Warn("mDNS browse failed", "service", service, "error", err)
			}
		}(service)
	}

	select {
	case svc := <-found:
		b.config.Logger.Info("Broker discovered",
			"instance", svc.InstanceName, "address", svc.Address(), "port", svc.Port, "tls", svc.TLS)
		return svc, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrNotFound
		}
		return nil, ctx.Err()
	}
}
