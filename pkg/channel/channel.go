// Package channel pumps frames between a transport and the caller once a
// connection has been established.
//
// A Channel runs two independent activities: a reader that pushes inbound
// frames into the caller's sink, and a writer that drains the caller's
// outbound queue onto the wire. The caller stops the reader by firing the
// returned StopSignal and stops the writer by closing the returned sender.
// Neither side retries or escalates I/O errors; a connection error reaches
// the caller as the last item in the sink.
package channel

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/framewire/netcore/pkg/frame"
	"github.com/framewire/netcore/pkg/log"
	"github.com/framewire/netcore/pkg/transport"
)

// OutboundBuffer is the capacity of the outbound sender returned by New.
const OutboundBuffer = 64

// Option configures a Channel.
type Option func(*Channel)

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Channel) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithProtocolLogger sets the protocol capture logger.
func WithProtocolLogger(l log.Logger) Option {
	return func(c *Channel) {
		c.protoLog = log.OrNoop(l)
	}
}

// Channel is the steady-state frame pump of one connection.
type Channel struct {
	cid      frame.Cid
	outbound chan frame.Frame
	stop     *transport.StopSignal

	logger   *slog.Logger
	protoLog log.Logger

	started atomic.Bool
}

// New creates a channel for cid. It returns the sender for outbound frames
// (close it to stop the writer) and the signal that stops the reader.
func New(cid frame.Cid, opts ...Option) (*Channel, chan<- frame.Frame, *transport.StopSignal) {
	c := &Channel{
		cid:      cid,
		outbound: make(chan frame.Frame, OutboundBuffer),
		stop:     transport.NewStopSignal(),
		logger:   slog.Default(),
		protoLog: log.NoopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("cid", cid)
	return c, c.outbound, c.stop
}

// Cid returns the channel id.
func (c *Channel) Cid() frame.Cid {
	return c.cid
}

// Run replays leftover items into inbound in order, then runs the reader
// and writer concurrently on t. It returns once both have finished. If a
// leftover item already carries the connection error, only the writer is
// started. Run may be called only once per Channel.
func (c *Channel) Run(t transport.Transport, inbound transport.Sink, leftover []transport.Incoming) {
	if !c.started.CompareAndSwap(false, true) {
		c.logger.Error("channel already started")
		return
	}

	replayed := 0
	ended := false
	for _, it := range leftover {
		if it.Err != nil {
			ended = true
		}
		if inbound.Push(it) {
			replayed++
		}
	}
	if replayed < len(leftover) {
		c.logger.Warn("inbound sink closed during replay",
			"replayed", replayed, "leftover", len(leftover))
	}
	c.logState("", "RUNNING", fmt.Sprintf("replayed %d leftover items", replayed))
	c.logger.Debug("channel running", "replayed", replayed)

	var g errgroup.Group
	if ended {
		// The connection ended during the handoff and the error was
		// already replayed.
		c.logger.Debug("connection ended before channel start, reader not started")
	} else {
		g.Go(func() error {
			t.ReadFromWire(c.cid, inbound, c.stop.Done())
			c.logger.Debug("channel reader finished")
			return nil
		})
	}
	g.Go(func() error {
		t.WriteToWire(c.cid, c.outbound)
		c.logger.Debug("channel writer finished")
		return nil
	})
	_ = g.Wait()

	c.logState("RUNNING", "STOPPED", "")
}

func (c *Channel) logState(oldState, newState, reason string) {
	c.protoLog.Log(log.Event{
		Timestamp: time.Now(),
		Cid:       c.cid,
		Layer:     log.LayerChannel,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}
