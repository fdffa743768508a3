package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.Initiator())
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "node.yaml", `
network: udp
listen: ":9000"
dial: "10.0.0.2:9000"
role: responder
log_level: debug
handshake_timeout: 3s
backoff:
  initial: 500ms
  max: 10s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "udp", cfg.Network)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.False(t, cfg.Initiator())
	assert.Equal(t, 3*time.Second, cfg.HandshakeTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Backoff.Initial)
	assert.Equal(t, 10*time.Second, cfg.Backoff.Max)
	// Unset keys keep their defaults.
	assert.Equal(t, Default().MaxFrameSize, cfg.MaxFrameSize)
	assert.Equal(t, Default().Backoff.Multiplier, cfg.Backoff.Multiplier)
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "node.toml", `
network = "tcp"
listen = ":7000"
discover = true
protocol_log = "/tmp/netcore.log"
max_frame_size = 4096

[backoff]
initial = "2s"
jitter = 0.0
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Listen)
	assert.True(t, cfg.Discover)
	assert.Equal(t, "/tmp/netcore.log", cfg.ProtocolLog)
	assert.Equal(t, uint32(4096), cfg.MaxFrameSize)
	assert.Equal(t, 2*time.Second, cfg.Backoff.Initial)
	assert.Zero(t, cfg.Backoff.Jitter)
}

func TestLoadUnknownExtension(t *testing.T) {
	path := writeFile(t, "node.ini", "network=tcp")
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalid(t *testing.T) {
	path := writeFile(t, "node.yaml", "network: sctp\n")
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*NodeConfig)
	}{
		{"unknown network", func(c *NodeConfig) { c.Network = "sctp" }},
		{"udp without dial", func(c *NodeConfig) { c.Network = "udp" }},
		{"mdns without discover", func(c *NodeConfig) { c.Dial = "mdns" }},
		{"no addresses", func(c *NodeConfig) { c.Listen = "" }},
		{"zero frame size", func(c *NodeConfig) { c.MaxFrameSize = 0 }},
		{"negative timeout", func(c *NodeConfig) { c.HandshakeTimeout = -time.Second }},
		{"bad log level", func(c *NodeConfig) { c.LogLevel = "loud" }},
		{"unknown role", func(c *NodeConfig) { c.Role = "observer" }},
		{"initiator without dial", func(c *NodeConfig) { c.Role = RoleInitiator }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"":      slog.LevelInfo,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestInitiator(t *testing.T) {
	tests := []struct {
		role, dial string
		want       bool
	}{
		{"", "", false},
		{"", "10.0.0.1:7878", true},
		{RoleResponder, "10.0.0.1:7878", false},
		{RoleInitiator, "10.0.0.1:7878", true},
	}
	for _, tt := range tests {
		cfg := NodeConfig{Role: tt.role, Dial: tt.dial}
		assert.Equal(t, tt.want, cfg.Initiator(), "role %q dial %q", tt.role, tt.dial)
	}
}
