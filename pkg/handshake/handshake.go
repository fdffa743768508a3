package handshake

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/framewire/netcore/internal/queue"
	"github.com/framewire/netcore/pkg/frame"
	"github.com/framewire/netcore/pkg/log"
	"github.com/framewire/netcore/pkg/transport"
	"github.com/framewire/netcore/pkg/version"
)

// outboundBuffer holds every frame the matcher can send in one run, so the
// matcher never blocks on the writer.
const outboundBuffer = 8

// Result is the outcome of a successful handshake.
type Result struct {
	// PeerPid is the participant id announced by the peer.
	PeerPid frame.Pid

	// Offset is the first stream id this side may allocate.
	Offset frame.Sid

	// Secret is the secret announced by the peer.
	Secret frame.Secret

	// Leftover holds items read after the matcher finished, in arrival
	// order. Pass them to channel.Run.
	Leftover []transport.Incoming
}

// Option configures a Handshake.
type Option func(*Handshake)

// WithMagicNumber overrides the magic number sent and expected.
func WithMagicNumber(magic uint64) Option {
	return func(h *Handshake) { h.magic = magic }
}

// WithVersion overrides the protocol version sent and expected.
func WithVersion(v version.Version) Option {
	return func(h *Handshake) { h.version = v }
}

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handshake) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithProtocolLogger sets the protocol capture logger.
func WithProtocolLogger(l log.Logger) Option {
	return func(h *Handshake) { h.protoLog = log.OrNoop(l) }
}

// WithDiagnostics controls whether a Raw frame describing a mismatch is
// sent before Shutdown. Diagnostics exist only in builds with the netdebug
// tag; elsewhere the option has no effect.
func WithDiagnostics(enabled bool) Option {
	return func(h *Handshake) { h.diagnostics = enabled && diagnosticsBuild }
}

// Handshake runs the bootstrap exchange for one connection.
type Handshake struct {
	cid       frame.Cid
	initiator bool
	localPid  frame.Pid
	secret    frame.Secret

	magic       uint64
	version     version.Version
	diagnostics bool

	logger   *slog.Logger
	protoLog log.Logger
}

// New creates a handshake for channel cid. initiator selects the role;
// exactly one side of a connection must be the initiator.
func New(cid frame.Cid, initiator bool, localPid frame.Pid, secret frame.Secret, opts ...Option) *Handshake {
	h := &Handshake{
		cid:         cid,
		initiator:   initiator,
		localPid:    localPid,
		secret:      secret,
		magic:       frame.MagicNumber,
		version:     version.Current,
		diagnostics: diagnosticsBuild,
		logger:      slog.Default(),
		protoLog:    log.NoopLogger{},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("cid", cid, "role", log.RoleOf(initiator))
	return h
}

// Setup runs the handshake over t. It reads and writes concurrently with
// the frame matcher and returns after both wire activities have finished,
// so any Shutdown sent on failure has been written. The transport is left
// open in all cases; closing it on failure is up to the caller.
//
// Setup waits for the writer to flush. A peer that never reads from a
// transport without buffering can therefore block Setup until the
// transport is closed.
func (h *Handshake) Setup(ctx context.Context, t transport.Transport) (Result, error) {
	inbound := queue.New[transport.Incoming]()
	outbound := make(chan frame.Frame, outboundBuffer)
	stop := transport.NewStopSignal()

	var g errgroup.Group
	g.Go(func() error {
		t.ReadFromWire(h.cid, inbound, stop.Done())
		return nil
	})
	g.Go(func() error {
		t.WriteToWire(h.cid, outbound)
		return nil
	})

	res, err := h.match(ctx, inbound, outbound, stop)
	_ = g.Wait()

	// The reader has returned, so nothing else can arrive here.
	leftover := inbound.Drain()
	inbound.Close()

	if err != nil {
		h.logger.Warn("handshake failed", "error", err)
		h.logError(err)
		return Result{}, err
	}

	res.Leftover = leftover
	h.logger.Info("handshake established",
		"peer_pid", res.PeerPid, "offset", uint64(res.Offset), "leftover", len(leftover))
	return res, nil
}

// match is the sequential frame matcher. It always fires stop and closes
// outbound before returning.
func (h *Handshake) match(ctx context.Context, inbound *queue.Queue[transport.Incoming],
	outbound chan<- frame.Frame, stop *transport.StopSignal) (Result, error) {
	defer func() {
		stop.Fire()
		close(outbound)
	}()

	state := StateAwaitHandshake
	h.logState("", state)
	if h.initiator {
		outbound <- h.handshakeFrame()
	}

	for {
		it, err := inbound.Pop(ctx)
		if err != nil {
			return Result{}, err
		}
		if it.Err != nil {
			return Result{}, it.Err
		}

		switch f := it.Frame.(type) {
		case frame.Raw:
			// Raw is never a bootstrap frame. Its payload is the peer's reason.
			reason := string(f.Payload)
			h.logger.Warn("peer sent diagnostic", "state", state, "reason", reason)
			err := fmt.Errorf("%w: %w: %s", transport.ErrConnectionClosed,
				&UnexpectedFrameError{State: state, Kind: frame.KindRaw}, reason)
			if state == StateAwaitHandshake {
				h.sendShutdown(outbound, err)
			}
			return Result{}, err
		case frame.Shutdown:
			return Result{}, fmt.Errorf("%w: peer shut down in %s", transport.ErrConnectionClosed, state)
		}

		switch state {
		case StateAwaitHandshake:
			if err := h.checkHandshake(it.Frame); err != nil {
				h.sendShutdown(outbound, err)
				return Result{}, err
			}
			if h.initiator {
				outbound <- frame.Init{Pid: h.localPid, Secret: h.secret}
			} else {
				outbound <- h.handshakeFrame()
			}
			h.logState(state.String(), StateAwaitInit)
			state = StateAwaitInit

		case StateAwaitInit:
			peerInit, ok := it.Frame.(frame.Init)
			if !ok {
				return Result{}, &UnexpectedFrameError{State: state, Kind: frame.KindOf(it.Frame)}
			}

			offset := frame.Offset1
			if !h.initiator {
				outbound <- frame.Init{Pid: h.localPid, Secret: h.secret}
				offset = frame.Offset2
			}
			h.logState(state.String(), StateEstablished)
			return Result{PeerPid: peerInit.Pid, Offset: offset, Secret: peerInit.Secret}, nil
		}
	}
}

func (h *Handshake) checkHandshake(f frame.Frame) error {
	hs, ok := f.(frame.Handshake)
	if !ok {
		return &UnexpectedFrameError{State: StateAwaitHandshake, Kind: frame.KindOf(f)}
	}
	if hs.Magic != h.magic {
		return &MagicNumberError{Local: h.magic, Remote: hs.Magic}
	}
	if !hs.Version.Equal(h.version) {
		return &VersionMismatchError{Local: h.version, Remote: hs.Version}
	}
	return nil
}

func (h *Handshake) handshakeFrame() frame.Handshake {
	return frame.Handshake{Magic: h.magic, Version: h.version}
}

// sendShutdown queues the close notice for an incompatible peer. Delivery
// is best effort.
func (h *Handshake) sendShutdown(outbound chan<- frame.Frame, cause error) {
	if diagnosticsBuild && h.diagnostics {
		outbound <- frame.Raw{Payload: []byte(cause.Error())}
	}
	outbound <- frame.Shutdown{}
}

func (h *Handshake) logState(oldState string, newState State) {
	h.protoLog.Log(log.Event{
		Timestamp: time.Now(),
		Cid:       h.cid,
		Layer:     log.LayerHandshake,
		Category:  log.CategoryState,
		LocalRole: log.RoleOf(h.initiator),
		StateChange: &log.StateChangeEvent{
			OldState: oldState,
			NewState: newState.String(),
		},
	})
	h.logger.Debug("handshake state", "state", newState)
}

func (h *Handshake) logError(err error) {
	h.protoLog.Log(log.Event{
		Timestamp: time.Now(),
		Cid:       h.cid,
		Layer:     log.LayerHandshake,
		Category:  log.CategoryError,
		LocalRole: log.RoleOf(h.initiator),
		Error: &log.ErrorEventData{
			Layer:   log.LayerHandshake,
			Message: err.Error(),
			Context: "setup",
		},
	})
}
