// Command netcore-node is a reference netcore node.
//
// A node either listens for stream connections and answers handshakes, or
// dials a peer, initiates the handshake and redials with backoff whenever
// the link drops. Established links print the streams and messages they
// receive. The interactive console opens streams and sends messages.
//
// Usage:
//
//	netcore-node [flags]
//
// Flags:
//
//	-config string        Configuration file path (.yaml, .yml or .toml)
//	-network string       Transport: tcp or udp (default "tcp")
//	-listen string        Local address (default ":7878")
//	-dial string          Peer address, or "mdns" to find one
//	-role string          Handshake role: initiator or responder (default: initiator when dialing)
//	-discover             Advertise via mDNS and allow -dial mdns
//	-protocol-log string  Write a CBOR protocol capture to this file
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-interactive          Enable interactive command mode
//
// Examples:
//
//	# Listen and advertise
//	netcore-node -listen :7878 -discover -interactive
//
//	# Dial the first node found via mDNS
//	netcore-node -dial mdns -discover -interactive
//
//	# Datagram link between two fixed addresses
//	netcore-node -network udp -listen :9000 -dial 10.0.0.1:9001 -role responder
//	netcore-node -network udp -listen :9001 -dial 10.0.0.2:9000
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/framewire/netcore/cmd/netcore-node/interactive"
	"github.com/framewire/netcore/internal/config"
	"github.com/framewire/netcore/pkg/connection"
	"github.com/framewire/netcore/pkg/discovery"
	"github.com/framewire/netcore/pkg/frame"
	"github.com/framewire/netcore/pkg/log"
	"github.com/framewire/netcore/pkg/transport"
	"github.com/framewire/netcore/pkg/version"
)

var (
	configFile  string
	interactiveMode bool
	flagCfg     = config.Default()
)

func init() {
	flag.StringVar(&configFile, "config", "", "Configuration file path (.yaml, .yml or .toml)")
	flag.StringVar(&flagCfg.Network, "network", flagCfg.Network, "Transport: tcp or udp")
	flag.StringVar(&flagCfg.Listen, "listen", flagCfg.Listen, "Local address")
	flag.StringVar(&flagCfg.Dial, "dial", "", `Peer address, or "mdns" to find one`)
	flag.StringVar(&flagCfg.Role, "role", "", "Handshake role: initiator or responder (default: initiator when dialing)")
	flag.BoolVar(&flagCfg.Discover, "discover", false, "Advertise via mDNS and allow -dial mdns")
	flag.StringVar(&flagCfg.ProtocolLog, "protocol-log", "", "Write a CBOR protocol capture to this file")
	flag.StringVar(&flagCfg.LogLevel, "log-level", flagCfg.LogLevel, "Log level: debug, info, warn, error")
	flag.BoolVar(&interactiveMode, "interactive", false, "Enable interactive command mode")
}

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, if any, and applies flags the user set
// explicitly on top of it.
func loadConfig() (config.NodeConfig, error) {
	if configFile == "" {
		return flagCfg, flagCfg.Validate()
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return config.NodeConfig{}, err
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "network":
			cfg.Network = flagCfg.Network
		case "listen":
			cfg.Listen = flagCfg.Listen
		case "dial":
			cfg.Dial = flagCfg.Dial
		case "role":
			cfg.Role = flagCfg.Role
		case "discover":
			cfg.Discover = flagCfg.Discover
		case "protocol-log":
			cfg.ProtocolLog = flagCfg.ProtocolLog
		case "log-level":
			cfg.LogLevel = flagCfg.LogLevel
		}
	})
	return cfg, cfg.Validate()
}

func run(cfg config.NodeConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	pid := frame.NewPid()
	secret, err := frame.NewSecret()
	if err != nil {
		return fmt.Errorf("generate secret: %w", err)
	}

	var console *interactive.Console
	n := newNode(nil, os.Stdout)
	if interactiveMode {
		// Log output goes through readline to avoid interfering with input.
		console, err = interactive.New(n)
		if err != nil {
			return err
		}
		n.out = console.Stdout()
	}

	logger := slog.New(slog.NewTextHandler(n.out, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	n.logger = logger

	protoLog, closeProtoLog, err := protocolLogger(cfg, logger)
	if err != nil {
		return err
	}
	defer closeProtoLog()

	logger.Info("netcore node starting",
		"pid", pid, "version", version.Current, "network", cfg.Network, "initiator", cfg.Initiator())

	hs := connection.HandshakeConfig{
		Initiator:      cfg.Initiator(),
		Pid:            pid,
		Secret:         secret,
		Logger:         logger,
		ProtocolLogger: protoLog,
		Timeout:        cfg.HandshakeTimeout,
	}
	topts := []transport.Option{
		transport.WithLogger(logger),
		transport.WithProtocolLogger(protoLog),
		transport.WithMaxFrameSize(cfg.MaxFrameSize),
	}

	if console != nil {
		go console.Run(ctx, cancel)
	}

	if cfg.Dial != "" {
		err = runDialer(ctx, cfg, n, hs, topts)
	} else {
		err = runListener(ctx, cfg, n, hs, protoLog)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, connection.ErrRedialerClosed) {
		err = nil
	}

	logger.Info("netcore node stopped")
	return err
}

// protocolLogger builds the capture logger: a file when configured, mirrored
// to slog at debug level.
func protocolLogger(cfg config.NodeConfig, logger *slog.Logger) (log.Logger, func(), error) {
	var loggers []log.Logger
	closeFn := func() {}

	if cfg.ProtocolLog != "" {
		fl, err := log.NewFileLogger(cfg.ProtocolLog)
		if err != nil {
			return nil, nil, fmt.Errorf("open protocol log: %w", err)
		}
		loggers = append(loggers, fl)
		closeFn = func() {
			if dropped := fl.Dropped(); dropped > 0 {
				logger.Warn("protocol log dropped events", "count", dropped)
			}
			fl.Close()
		}
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		loggers = append(loggers, log.NewSlogAdapter(logger))
	}

	if len(loggers) == 0 {
		return nil, closeFn, nil
	}
	return log.NewMultiLogger(loggers...), closeFn, nil
}

func runListener(ctx context.Context, cfg config.NodeConfig, n *node, hs connection.HandshakeConfig, protoLog log.Logger) error {
	listener, err := transport.Listen(ctx, cfg.Listen, transport.ListenerConfig{
		Logger:         n.logger,
		ProtocolLogger: protoLog,
		MaxFrameSize:   cfg.MaxFrameSize,
	})
	if err != nil {
		return err
	}
	defer listener.Close()
	n.logger.Info("listening", "addr", listener.Addr())

	if cfg.Discover {
		adv := discovery.NewAdvertiser(discovery.Config{Logger: n.logger})
		info := &discovery.NodeInfo{
			Pid:          hs.Pid,
			Version:      version.Current,
			Network:      cfg.Network,
			Port:         listenerPort(listener),
			MaxFrameSize: cfg.MaxFrameSize,
		}
		if err := adv.Advertise(ctx, info); err != nil {
			n.logger.Warn("mdns advertising failed", "error", err)
		}
		defer adv.Stop()
	}

	return listener.Serve(ctx, func(ctx context.Context, t *transport.StreamTransport) {
		cid := n.allocCid()
		link, err := connection.Establish(ctx, cid, t, hs)
		if err != nil {
			n.logger.Warn("handshake failed", "remote", t.RemoteAddr(), "cid", cid, "error", err)
			return
		}
		n.serve(ctx, link)
	})
}

// runDialer keeps one link to the configured peer up, redialing with
// backoff after it drops.
func runDialer(ctx context.Context, cfg config.NodeConfig, n *node, hs connection.HandshakeConfig, topts []transport.Option) error {
	var browser *discovery.Browser
	if cfg.Discover {
		browser = discovery.NewBrowser(discovery.Config{Logger: n.logger}, version.Current)
	}

	dial := func(ctx context.Context) (transport.Transport, error) {
		addr := cfg.Dial
		if addr == "mdns" {
			svc, err := firstService(ctx, browser, cfg.Network)
			if err != nil {
				return nil, err
			}
			n.logger.Info("found peer via mdns", "instance", svc.InstanceName, "addr", svc.Addr())
			addr = svc.Addr()
		}
		if cfg.Network == "udp" {
			return transport.ListenDatagram(ctx, cfg.Listen, addr, topts...)
		}
		return transport.DialStream(ctx, addr, topts...)
	}

	redialer := connection.NewRedialer(dial, hs,
		connection.WithBackoff(connection.NewBackoffWithConfig(cfg.Backoff)),
		connection.WithFirstCid(1),
		connection.OnStateChange(func(oldState, newState connection.State) {
			n.logger.Debug("redialer state", "from", oldState, "to", newState)
		}),
	)
	defer redialer.Close()

	return redialer.Supervise(ctx, n.serve)
}

// firstService browses until a node is found or the browse timeout expires.
func firstService(ctx context.Context, browser *discovery.Browser, network string) (*discovery.Service, error) {
	ctx, cancel := context.WithTimeout(ctx, discovery.BrowseTimeout)
	defer cancel()

	services, err := browser.Browse(ctx, network)
	if err != nil {
		return nil, err
	}
	for svc := range services {
		if svc.Addr() != "" {
			return svc, nil
		}
	}
	return nil, discovery.ErrNotFound
}

func listenerPort(l *transport.Listener) uint16 {
	if addr, ok := l.Addr().(*net.TCPAddr); ok {
		return uint16(addr.Port)
	}
	return 0
}
