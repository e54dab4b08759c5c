package discovery

import (
	"context"
	"net"

	"github.com/enbility/zeroconf/v3"
)

// MDNSResolver implements Resolver with zeroconf.
type MDNSResolver struct {
	iface string
}

// NewMDNSResolver creates a resolver on all interfaces, or on iface only.
func NewMDNSResolver(iface string) *MDNSResolver {
	return &MDNSResolver{iface: iface}
}

// Browse runs a zeroconf browse until ctx is done. Announcements of the same
// instance received on several interfaces are reported with their addresses
// merged.
func (r *MDNSResolver) Browse(ctx context.Context, service, domain string, found func(ServiceEntry)) error {
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		seen := make(map[string]*ServiceEntry)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				e := entryFrom(entry, service, domain)
				if existing, dup := seen[e.Instance]; dup {
					existing.Addrs = mergeAddresses(existing.Addrs, e.Addrs)
					found(*existing)
					continue
				}
				seen[e.Instance] = &e
				found(e)

			case entry, ok := <-removed:
				if ok {
					delete(seen, entry.Instance)
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	return zeroconf.Browse(ctx, service, domain, entries, removed, r.options()...)
}

func (r *MDNSResolver) options() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if r.iface != "" {
		if iface, err := net.InterfaceByName(r.iface); err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}
	return opts
}

func entryFrom(entry *zeroconf.ServiceEntry, service, domain string) ServiceEntry {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return ServiceEntry{
		Instance: entry.Instance,
		Service:  service,
		Domain:   domain,
		Host:     entry.HostName,
		Port:     uint16(entry.Port),
		Text:     entry.Text,
		Addrs:    addrs,
	}
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}
	for _, addr := range added {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

var _ Resolver = (*MDNSResolver)(nil)
