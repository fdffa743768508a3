package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/framewire/netcore/pkg/log"
)

// ListenerConfig configures a stream Listener.
type ListenerConfig struct {
	// Logger is the operational logger (default: slog.Default()).
	Logger *slog.Logger

	// ProtocolLogger captures frames and state changes of accepted
	// transports (optional).
	ProtocolLogger log.Logger

	// MaxFrameSize is the largest encoded frame accepted (default: 1 MiB).
	MaxFrameSize uint32
}

// Listener accepts TCP connections and wraps each one in a StreamTransport
// with its own connection id.
type Listener struct {
	ln      net.Listener
	config  ListenerConfig
	running atomic.Bool
	wg      sync.WaitGroup
}

// Listen starts listening on the TCP address addr.
func Listen(ctx context.Context, addr string, config ListenerConfig) (*Listener, error) {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	config.ProtocolLogger = log.OrNoop(config.ProtocolLogger)

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}

	l := &Listener{ln: ln, config: config}
	l.running.Store(true)
	return l, nil
}

// Addr returns the listen address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Accept waits for the next connection.
func (l *Listener) Accept() (*StreamTransport, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}

	t := NewStreamTransport(conn,
		WithLogger(l.config.Logger),
		WithProtocolLogger(l.config.ProtocolLogger),
		WithMaxFrameSize(l.config.MaxFrameSize),
	)
	t.logState("", "CONNECTED", "accepted")
	t.opts.logger.Debug("accepted connection", "remote", conn.RemoteAddr())
	return t, nil
}

// Serve accepts connections until ctx ends or the listener is closed, and
// runs handler for each one in its own goroutine. The transport is closed
// when handler returns. Serve waits for all handlers before returning.
func (l *Listener) Serve(ctx context.Context, handler func(context.Context, *StreamTransport)) error {
	stop := context.AfterFunc(ctx, func() { l.Close() })
	defer stop()
	defer l.wg.Wait()

	for {
		t, err := l.Accept()
		if err != nil {
			if !l.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			l.config.Logger.Warn("accept failed", "error", err)
			return fmt.Errorf("accept error: %w", err)
		}

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			defer func() {
				t.Close()
				t.logState("CONNECTED", "DISCONNECTED", "")
			}()
			handler(ctx, t)
		}()
	}
}

// Close stops accepting connections. Transports already accepted stay open.
func (l *Listener) Close() error {
	if !l.running.Swap(false) {
		return nil
	}
	return l.ln.Close()
}
