package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/framewire/netcore/pkg/frame"
	"github.com/framewire/netcore/pkg/handshake"
	"github.com/framewire/netcore/pkg/transport"
)

// ErrRedialerClosed is returned by Connect and Supervise after Close.
var ErrRedialerClosed = errors.New("redialer closed")

// State represents the redialer state.
type State uint8

const (
	// StateDisconnected indicates no active link.
	StateDisconnected State = iota

	// StateConnecting indicates a dial and handshake attempt is in progress.
	StateConnecting

	// StateConnected indicates an established link.
	StateConnected

	// StateReconnecting indicates the redialer is waiting before the next attempt.
	StateReconnecting

	// StateClosed indicates the redialer has been closed.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// DialFunc opens a new transport to the peer.
type DialFunc func(ctx context.Context) (transport.Transport, error)

// RedialOption configures a Redialer.
type RedialOption func(*Redialer)

// WithBackoff replaces the default backoff.
func WithBackoff(b *Backoff) RedialOption {
	return func(r *Redialer) {
		if b != nil {
			r.backoff = b
		}
	}
}

// WithFirstCid sets the channel id of the first link. Each later link
// gets the next id.
func WithFirstCid(cid frame.Cid) RedialOption {
	return func(r *Redialer) { r.nextCid.Store(uint64(cid)) }
}

// OnStateChange sets a callback for state changes.
func OnStateChange(fn func(oldState, newState State)) RedialOption {
	return func(r *Redialer) { r.onStateChange = fn }
}

// OnAttemptFailed sets a callback invoked after each failed attempt with
// the delay before the next one.
func OnAttemptFailed(fn func(attempt int, err error, delay time.Duration)) RedialOption {
	return func(r *Redialer) { r.onAttemptFailed = fn }
}

// Redialer dials and handshakes until a link is established.
type Redialer struct {
	dial    DialFunc
	cfg     HandshakeConfig
	backoff *Backoff
	logger  *slog.Logger
	nextCid atomic.Uint64

	mu     sync.Mutex
	state  State
	ctx    context.Context
	cancel context.CancelFunc

	onStateChange   func(oldState, newState State)
	onAttemptFailed func(attempt int, err error, delay time.Duration)
}

// NewRedialer creates a redialer. cfg.Initiator is normally true for the
// dialing side.
func NewRedialer(dial DialFunc, cfg HandshakeConfig, opts ...RedialOption) *Redialer {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Redialer{
		dial:    dial,
		cfg:     cfg,
		backoff: NewBackoff(),
		logger:  cfg.logger(),
		state:   StateDisconnected,
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current state.
func (r *Redialer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Connect dials and handshakes until it succeeds, ctx ends, the redialer is
// closed, or the peer turns out to be incompatible.
func (r *Redialer) Connect(ctx context.Context) (*Link, error) {
	ctx, cancel := r.merge(ctx)
	defer cancel()

	for attempt := 1; ; attempt++ {
		if !r.setState(StateConnecting) {
			return nil, ErrRedialerClosed
		}

		link, err := r.attempt(ctx)
		if err == nil {
			r.backoff.Reset()
			r.setState(StateConnected)
			r.logger.Info("link established", "cid", link.Cid(), "peer_pid", link.PeerPid(), "attempt", attempt)
			return link, nil
		}

		if handshake.IsIncompatible(err) {
			r.setState(StateDisconnected)
			r.logger.Error("peer is incompatible, giving up", "error", err)
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, r.stopped(ctx)
		}

		delay := r.backoff.Next()
		r.setState(StateReconnecting)
		r.logger.Warn("connect attempt failed", "attempt", attempt, "retry_in", delay, "error", err)
		if r.onAttemptFailed != nil {
			r.onAttemptFailed(attempt, err, delay)
		}
		if err := sleep(ctx, delay); err != nil {
			return nil, r.stopped(ctx)
		}
	}
}

// Supervise keeps a link up: it connects, hands the link to handler, and
// redials once handler returns. The link is closed after handler returns.
// Supervise returns when ctx ends, the redialer is closed, or the peer is
// incompatible.
func (r *Redialer) Supervise(ctx context.Context, handler func(ctx context.Context, link *Link)) error {
	for {
		link, err := r.Connect(ctx)
		if err != nil {
			return err
		}

		handler(ctx, link)
		link.Close()

		if ctx.Err() != nil {
			r.setState(StateDisconnected)
			return ctx.Err()
		}
		r.logger.Info("link lost, redialing", "cid", link.Cid())
	}
}

// Close stops any ongoing or future attempt.
func (r *Redialer) Close() {
	r.mu.Lock()
	if r.state == StateClosed {
		r.mu.Unlock()
		return
	}
	old := r.state
	r.state = StateClosed
	fn := r.onStateChange
	r.mu.Unlock()

	if fn != nil {
		fn(old, StateClosed)
	}
	r.cancel()
}

func (r *Redialer) attempt(ctx context.Context) (*Link, error) {
	t, err := r.dial(ctx)
	if err != nil {
		return nil, err
	}
	cid := frame.Cid(r.nextCid.Add(1) - 1)
	return Establish(ctx, cid, t, r.cfg)
}

// merge returns a context that ends with either ctx or the redialer.
func (r *Redialer) merge(ctx context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(r.ctx, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}

func (r *Redialer) stopped(ctx context.Context) error {
	if r.ctx.Err() != nil {
		return ErrRedialerClosed
	}
	r.setState(StateDisconnected)
	return ctx.Err()
}

// setState moves to s unless the redialer is closed. It reports whether
// the redialer is still open.
func (r *Redialer) setState(s State) bool {
	r.mu.Lock()
	if r.state == StateClosed {
		r.mu.Unlock()
		return false
	}
	old := r.state
	r.state = s
	fn := r.onStateChange
	r.mu.Unlock()

	if fn != nil && old != s {
		fn(old, s)
	}
	return true
}
