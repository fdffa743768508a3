package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/framewire/netcore/pkg/channel"
	"github.com/framewire/netcore/pkg/frame"
	"github.com/framewire/netcore/pkg/handshake"
	"github.com/framewire/netcore/pkg/log"
	"github.com/framewire/netcore/pkg/transport"
)

// closeFlushTimeout bounds how long Close waits for queued frames to be
// written before closing the transport.
const closeFlushTimeout = 2 * time.Second

// Link errors.
var (
	ErrLinkClosed     = errors.New("link closed")
	ErrAlreadyRunning = errors.New("link already running")
)

// HandshakeConfig holds the local identity and role used to establish links.
type HandshakeConfig struct {
	// Initiator selects the handshake role. Exactly one side of a
	// connection must be the initiator.
	Initiator bool

	// Pid and Secret identify this node to the peer.
	Pid    frame.Pid
	Secret frame.Secret

	// Logger is the operational logger (default: slog.Default()).
	Logger *slog.Logger

	// ProtocolLogger captures handshake and channel events (optional).
	ProtocolLogger log.Logger

	// Timeout bounds each handshake. Zero means only the caller's context
	// applies.
	Timeout time.Duration

	// HandshakeOptions are applied after the logger options.
	HandshakeOptions []handshake.Option
}

func (c HandshakeConfig) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// Link is an established connection: a transport that has completed the
// handshake together with the channel that carries it.
type Link struct {
	cid       frame.Cid
	transport transport.Transport
	result    handshake.Result
	logger    *slog.Logger

	ch   *channel.Channel
	out  chan<- frame.Frame
	stop *transport.StopSignal

	sidCounter atomic.Uint64
	running    atomic.Bool
	runDone    chan struct{}

	// mu guards out against a send racing with Close.
	mu        sync.RWMutex
	closed    bool
	closing   chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Establish runs the handshake for channel cid over t. On success the
// returned Link owns t. On failure t is closed.
func Establish(ctx context.Context, cid frame.Cid, t transport.Transport, cfg HandshakeConfig) (*Link, error) {
	logger := cfg.logger()
	opts := append([]handshake.Option{
		handshake.WithLogger(logger),
		handshake.WithProtocolLogger(cfg.ProtocolLogger),
	}, cfg.HandshakeOptions...)

	setupCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		setupCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	res, err := handshake.New(cid, cfg.Initiator, cfg.Pid, cfg.Secret, opts...).Setup(setupCtx, t)
	if err != nil {
		t.Close()
		return nil, fmt.Errorf("handshake failed: %w", err)
	}

	ch, out, stop := channel.New(cid,
		channel.WithLogger(logger),
		channel.WithProtocolLogger(cfg.ProtocolLogger),
	)
	return &Link{
		cid:       cid,
		transport: t,
		result:    res,
		logger:    logger.With("cid", cid, "peer_pid", res.PeerPid),
		ch:        ch,
		out:       out,
		stop:      stop,
		runDone:   make(chan struct{}),
		closing:   make(chan struct{}),
	}, nil
}

// Cid returns the channel id.
func (l *Link) Cid() frame.Cid { return l.cid }

// PeerPid returns the participant id of the peer.
func (l *Link) PeerPid() frame.Pid { return l.result.PeerPid }

// Offset returns the first stream id this side allocates.
func (l *Link) Offset() frame.Sid { return l.result.Offset }

// Secret returns the secret announced by the peer.
func (l *Link) Secret() frame.Secret { return l.result.Secret }

// Run pumps frames until Close is called. Inbound frames, starting with
// those left over from the handshake, and finally the connection error,
// are pushed into inbound. Run may be called once.
func (l *Link) Run(inbound transport.Sink) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(l.runDone)
	leftover := l.result.Leftover
	l.result.Leftover = nil

	l.logger.Debug("link running", "leftover", len(leftover))
	l.ch.Run(l.transport, inbound, leftover)
	l.logger.Debug("link stopped")
	return nil
}

// Done is closed once Close has been called.
func (l *Link) Done() <-chan struct{} { return l.closing }

// Send queues f for the peer. It blocks while the outbound queue is full,
// until ctx is done or the link is closed.
func (l *Link) Send(ctx context.Context, f frame.Frame) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrLinkClosed
	}

	select {
	case l.out <- f:
		return nil
	case <-l.closing:
		return ErrLinkClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NextSid allocates a stream id from this side's offset. Ids never collide
// with those allocated by the peer.
func (l *Link) NextSid() frame.Sid {
	return l.result.Offset + frame.Sid(l.sidCounter.Add(1)-1)
}

// Close stops the reader, ends the writer and closes the transport. Frames
// already queued are flushed first if Run is active, for at most
// closeFlushTimeout. Safe to call more than once.
func (l *Link) Close() error {
	l.closeOnce.Do(func() {
		l.stop.Fire()
		close(l.closing)

		l.mu.Lock()
		l.closed = true
		close(l.out)
		l.mu.Unlock()

		if l.running.Load() {
			select {
			case <-l.runDone:
			case <-time.After(closeFlushTimeout):
				l.logger.Warn("link close timed out flushing outbound frames")
			}
		}
		l.closeErr = l.transport.Close()
	})
	return l.closeErr
}
