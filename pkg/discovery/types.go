package discovery

import (
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/framewire/netcore/pkg/frame"
	"github.com/framewire/netcore/pkg/version"
)

// Service type constants for mDNS.
const (
	// ServiceTypeTCP is advertised by nodes accepting stream transports.
	ServiceTypeTCP = "_netcore._tcp"

	// ServiceTypeUDP is advertised by nodes accepting datagram transports.
	ServiceTypeUDP = "_netcore._udp"

	// Domain is the mDNS domain.
	Domain = "local."

	// DefaultPort is the default netcore port.
	DefaultPort = 7878

	// MaxInstanceNameLen is the DNS-SD limit for instance names.
	MaxInstanceNameLen = 63
)

// TXT record keys.
const (
	TXTKeyVersion      = "v"
	TXTKeyPid          = "pid"
	TXTKeyMaxFrameSize = "mf"
)

// Timing constants.
const (
	// BrowseTimeout is the default timeout for FindByPid.
	BrowseTimeout = 10 * time.Second

	// DefaultTTL is the default DNS record TTL.
	DefaultTTL = 120 * time.Second
)

// Discovery errors.
var (
	ErrMissingRequired  = errors.New("missing required TXT record")
	ErrInvalidTXTRecord = errors.New("invalid TXT record")
	ErrUnknownNetwork   = errors.New("unknown network")
	ErrNotFound         = errors.New("service not found")
	ErrNotAdvertising   = errors.New("not advertising")
)

// ServiceType returns the service type for a transport network ("tcp" or "udp").
func ServiceType(network string) (string, error) {
	switch network {
	case "tcp", "":
		return ServiceTypeTCP, nil
	case "udp":
		return ServiceTypeUDP, nil
	default:
		return "", ErrUnknownNetwork
	}
}

// NodeInfo describes the local node for advertisement.
type NodeInfo struct {
	Pid          frame.Pid
	Version      version.Version
	Network      string
	Port         uint16
	MaxFrameSize uint32
}

// InstanceName returns the DNS-SD instance name for the node.
func (n *NodeInfo) InstanceName() string {
	return "netcore-" + n.Pid.String()[:8]
}

// Service is a node found by browsing.
type Service struct {
	InstanceName string
	Host         string
	Port         uint16
	Addresses    []string
	Network      string

	Pid          frame.Pid
	Version      version.Version
	MaxFrameSize uint32
}

// Addr returns host:port for dialing the first known address, or an empty
// string when no address is known.
func (s *Service) Addr() string {
	if len(s.Addresses) == 0 {
		return ""
	}
	return net.JoinHostPort(s.Addresses[0], strconv.Itoa(int(s.Port)))
}
