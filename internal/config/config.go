// Package config loads netcore node configuration from YAML or TOML files.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/framewire/netcore/pkg/connection"
	"github.com/framewire/netcore/pkg/transport"
)

// Defaults.
const (
	DefaultNetwork          = "tcp"
	DefaultListen           = ":7878"
	DefaultLogLevel         = "info"
	DefaultHandshakeTimeout = 10 * time.Second
)

// Configuration errors.
var (
	ErrUnknownFormat = errors.New("unknown config format")
	ErrInvalid       = errors.New("invalid config")
)

// NodeConfig configures a netcore node.
type NodeConfig struct {
	// Network is "tcp" or "udp".
	Network string `yaml:"network" toml:"network"`

	// Listen is the local address. For tcp it is the accept address, for
	// udp the bound socket.
	Listen string `yaml:"listen" toml:"listen"`

	// Dial is the remote address. When set the node dials instead of
	// accepting connections.
	Dial string `yaml:"dial" toml:"dial"`

	// Role is "initiator", "responder" or empty. Empty makes a dialing
	// node the initiator and a listening node the responder.
	Role string `yaml:"role" toml:"role"`

	// Discover advertises the node via mDNS and, when Dial is "mdns",
	// resolves the peer by browsing.
	Discover bool `yaml:"discover" toml:"discover"`

	// ProtocolLog is the path of the CBOR protocol event log. Empty disables it.
	ProtocolLog string `yaml:"protocol_log" toml:"protocol_log"`

	LogLevel         string        `yaml:"log_level" toml:"log_level"`
	MaxFrameSize     uint32        `yaml:"max_frame_size" toml:"max_frame_size"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" toml:"handshake_timeout"`

	Backoff connection.BackoffConfig `yaml:"backoff" toml:"backoff"`
}

// Default returns the default configuration.
func Default() NodeConfig {
	return NodeConfig{
		Network:          DefaultNetwork,
		Listen:           DefaultListen,
		LogLevel:         DefaultLogLevel,
		MaxFrameSize:     transport.DefaultMaxFrameSize,
		HandshakeTimeout: DefaultHandshakeTimeout,
		Backoff:          connection.DefaultBackoffConfig(),
	}
}

// Load reads path on top of the defaults. The format is chosen by the file
// extension: .yaml and .yml for YAML, .toml for TOML.
func Load(path string) (NodeConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return NodeConfig{}, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return NodeConfig{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return NodeConfig{}, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return NodeConfig{}, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}

	if err := cfg.Validate(); err != nil {
		return NodeConfig{}, err
	}
	return cfg, nil
}

// Handshake roles.
const (
	RoleInitiator = "initiator"
	RoleResponder = "responder"
)

// Initiator reports whether the node drives the handshake.
func (c NodeConfig) Initiator() bool {
	switch c.Role {
	case RoleInitiator:
		return true
	case RoleResponder:
		return false
	default:
		return c.Dial != ""
	}
}

// Validate checks the configuration for consistency.
func (c NodeConfig) Validate() error {
	switch c.Network {
	case "tcp", "udp":
	default:
		return fmt.Errorf("%w: network %q (use tcp or udp)", ErrInvalid, c.Network)
	}
	switch c.Role {
	case "", RoleResponder:
	case RoleInitiator:
		if c.Dial == "" {
			return fmt.Errorf("%w: initiator requires a dial address", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: role %q (use initiator or responder)", ErrInvalid, c.Role)
	}
	if c.Network == "udp" && c.Dial == "" {
		return fmt.Errorf("%w: udp requires a dial address", ErrInvalid)
	}
	if c.Dial == "mdns" && !c.Discover {
		return fmt.Errorf("%w: dial mdns requires discover", ErrInvalid)
	}
	if c.Dial == "" && c.Listen == "" {
		return fmt.Errorf("%w: listen or dial address required", ErrInvalid)
	}
	if c.MaxFrameSize == 0 {
		return fmt.Errorf("%w: max_frame_size must be positive", ErrInvalid)
	}
	if c.HandshakeTimeout < 0 {
		return fmt.Errorf("%w: negative handshake_timeout", ErrInvalid)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a log level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: log level %q", ErrInvalid, s)
	}
}
