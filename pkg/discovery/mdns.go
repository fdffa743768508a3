package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"

	"github.com/framewire/netcore/pkg/frame"
	"github.com/framewire/netcore/pkg/version"
)

// Config configures mDNS advertising and browsing.
type Config struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL (default: 120 seconds).
	TTL time.Duration

	// Logger is the operational logger (default: slog.Default()).
	Logger *slog.Logger
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// interfaces returns the interfaces to use, or nil for all.
func (c Config) interfaces() []net.Interface {
	if c.Interface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(c.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// Advertiser publishes the local node via mDNS.
type Advertiser struct {
	config Config

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewAdvertiser creates an mDNS advertiser.
func NewAdvertiser(config Config) *Advertiser {
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	return &Advertiser{config: config}
}

// Advertise starts advertising info, replacing any previous advertisement.
func (a *Advertiser) Advertise(ctx context.Context, info *NodeInfo) error {
	serviceType, err := ServiceType(info.Network)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	port := int(info.Port)
	if port == 0 {
		port = DefaultPort
	}

	server, err := zeroconf.Register(
		info.InstanceName(),
		serviceType,
		Domain,
		port,
		TXTRecordsToStrings(EncodeNodeTXT(info)),
		a.config.interfaces(),
		zeroconf.TTL(uint32(a.config.TTL.Seconds())),
	)
	if err != nil {
		return fmt.Errorf("failed to register %s service: %w", serviceType, err)
	}

	a.server = server
	a.config.logger().Info("advertising node",
		"instance", info.InstanceName(), "service", serviceType, "port", port)
	return nil
}

// Update replaces the TXT records of the running advertisement.
func (a *Advertiser) Update(info *NodeInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return ErrNotAdvertising
	}
	a.server.SetText(TXTRecordsToStrings(EncodeNodeTXT(info)))
	return nil
}

// Stop withdraws the advertisement.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// Browser finds netcore nodes via mDNS.
type Browser struct {
	config  Config
	version version.Version
}

// NewBrowser creates an mDNS browser that reports nodes speaking v.
func NewBrowser(config Config, v version.Version) *Browser {
	return &Browser{config: config, version: v}
}

// Browse reports nodes advertising network ("tcp" or "udp") until ctx
// ends. Services are aggregated by instance name: addresses from multiple
// interfaces are combined and each instance is emitted once.
func (b *Browser) Browse(ctx context.Context, network string) (<-chan *Service, error) {
	serviceType, err := ServiceType(network)
	if err != nil {
		return nil, err
	}

	out := make(chan *Service)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	var opts []zeroconf.ClientOption
	if ifaces := b.config.interfaces(); ifaces != nil {
		opts = append(opts, zeroconf.SelectIfaces(ifaces))
	}

	go func() {
		defer close(out)

		services := make(map[string]*Service)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				svc := b.entryToService(entry, network)
				if svc == nil {
					continue
				}

				if existing, found := services[svc.InstanceName]; found {
					existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
					continue
				}
				services[svc.InstanceName] = svc
				select {
				case out <- svc:
				case <-ctx.Done():
					return
				}

			case entry, ok := <-removed:
				if !ok {
					continue
				}
				if existing, found := services[entry.Instance]; found {
					existing.Addresses = removeAddresses(existing.Addresses, entry)
					if len(existing.Addresses) == 0 {
						delete(services, entry.Instance)
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		if err := zeroconf.Browse(ctx, serviceType, Domain, entries, removed, opts...); err != nil {
			b.config.logger().Warn("mdns browse failed", "service", serviceType, "error", err)
		}
	}()

	return out, nil
}

// FindByPid browses until a node with pid is found or the timeout expires.
func (b *Browser) FindByPid(ctx context.Context, network string, pid frame.Pid) (*Service, error) {
	ctx, cancel := context.WithTimeout(ctx, BrowseTimeout)
	defer cancel()

	services, err := b.Browse(ctx, network)
	if err != nil {
		return nil, err
	}
	for svc := range services {
		if svc.Pid == pid {
			return svc, nil
		}
	}
	return nil, ErrNotFound
}

// entryToService converts a zeroconf entry, returning nil for entries that
// are malformed or speak another version.
func (b *Browser) entryToService(entry *zeroconf.ServiceEntry, network string) *Service {
	info, err := DecodeNodeTXT(StringsToTXTRecords(entry.Text))
	if err != nil {
		b.config.logger().Debug("ignoring malformed advertisement", "instance", entry.Instance, "error", err)
		return nil
	}
	if !info.Version.Equal(b.version) {
		b.config.logger().Debug("ignoring node with other version",
			"instance", entry.Instance, "version", info.Version)
		return nil
	}

	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}

	return &Service{
		InstanceName: entry.Instance,
		Host:         entry.HostName,
		Port:         uint16(entry.Port),
		Addresses:    addrs,
		Network:      network,
		Pid:          info.Pid,
		Version:      info.Version,
		MaxFrameSize: info.MaxFrameSize,
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

// removeAddresses removes the addresses of a zeroconf entry from the list.
func removeAddresses(addresses []string, entry *zeroconf.ServiceEntry) []string {
	toRemove := make(map[string]bool)
	for _, ip := range entry.AddrIPv4 {
		toRemove[ip.String()] = true
	}
	for _, ip := range entry.AddrIPv6 {
		toRemove[ip.String()] = true
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !toRemove[addr] {
			result = append(result, addr)
		}
	}
	return result
}
