package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/framewire/netcore/pkg/frame"
	"github.com/framewire/netcore/pkg/log"
)

// packetIO moves whole encoded frames over a concrete connection.
type packetIO interface {
	readPacket() ([]byte, error)
	writePacket(data []byte) error
	// overhead is the number of framing bytes added per frame on the wire.
	overhead() int
	remoteAddr() string
	close() error
}

type readResult struct {
	frame frame.Frame
	data  []byte
	err   error
}

// wire implements Transport on top of a packetIO. It owns the single read
// pump that all ReadFromWire calls share.
type wire struct {
	io   packetIO
	opts options

	startOnce sync.Once
	results   chan readResult

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

func newWire(p packetIO, o options) *wire {
	return &wire{
		io:      p,
		opts:    o,
		results: make(chan readResult),
		closed:  make(chan struct{}),
	}
}

// ConnectionID returns the unique id of this connection.
func (w *wire) ConnectionID() string {
	return w.opts.connID
}

// ReadFromWire implements Transport.
func (w *wire) ReadFromWire(cid frame.Cid, out Sink, stop <-chan struct{}) {
	w.startOnce.Do(func() { go w.pump() })

	for {
		// A fired stop wins over a ready frame.
		select {
		case <-stop:
			return
		default:
		}

		select {
		case <-stop:
			return
		case r, ok := <-w.results:
			if !ok {
				out.Push(Incoming{Cid: cid, Err: ErrConnectionClosed})
				return
			}
			if r.err != nil {
				w.logError(cid, r.err, "read")
				out.Push(Incoming{Cid: cid, Err: r.err})
				return
			}
			w.logFrame(cid, log.DirectionIn, r.frame, r.data)
			if !out.Push(Incoming{Cid: cid, Frame: r.frame}) {
				w.opts.logger.Warn("inbound sink closed, reader exiting",
					"cid", cid, "kind", frame.KindOf(r.frame))
				return
			}
		}
	}
}

// WriteToWire implements Transport. A frame that cannot be encoded or is
// too large is logged and skipped. Any other write failure stops writing;
// the remaining frames are discarded until in is closed so that senders
// never block on a dead writer.
func (w *wire) WriteToWire(cid frame.Cid, in <-chan frame.Frame) {
	failed := false
	discarded := 0

	for f := range in {
		if failed {
			discarded++
			continue
		}

		data, err := frame.Encode(f)
		if err != nil {
			w.opts.logger.Warn("dropping unencodable frame", "cid", cid, "error", err)
			w.logError(cid, err, "encode")
			continue
		}

		if err := w.io.writePacket(data); err != nil {
			if errors.Is(err, ErrFrameTooLarge) {
				w.opts.logger.Warn("dropping oversized frame",
					"cid", cid, "kind", frame.KindOf(f), "size", len(data))
				w.logError(cid, err, "write")
				continue
			}
			w.opts.logger.Warn("write to wire failed", "cid", cid, "error", err)
			w.logError(cid, err, "write")
			failed = true
			continue
		}
		w.logFrame(cid, log.DirectionOut, f, data)
	}

	if discarded > 0 {
		w.opts.logger.Debug("writer discarded frames after failure", "cid", cid, "count", discarded)
	}
}

// Close closes the underlying connection. Safe to call more than once.
func (w *wire) Close() error {
	w.closeOnce.Do(func() {
		close(w.closed)
		w.closeErr = w.io.close()
	})
	return w.closeErr
}

func (w *wire) isClosed() bool {
	select {
	case <-w.closed:
		return true
	default:
		return false
	}
}

// pump reads and decodes frames until the first error, handing each one to
// whichever ReadFromWire call is currently receiving.
func (w *wire) pump() {
	defer close(w.results)

	for {
		var r readResult
		data, err := w.io.readPacket()
		switch {
		case err != nil:
			r.err = w.classify(err)
		default:
			f, derr := frame.Decode(data)
			if derr != nil {
				r.err = fmt.Errorf("%w: %w", ErrTransportIO, derr)
			} else {
				r = readResult{frame: f, data: data}
			}
		}

		select {
		case w.results <- r:
		case <-w.closed:
			return
		}
		if r.err != nil {
			return
		}
	}
}

func (w *wire) classify(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) || w.isClosed() {
		return ErrConnectionClosed
	}
	return fmt.Errorf("%w: %w", ErrTransportIO, err)
}

func (w *wire) logFrame(cid frame.Cid, dir log.Direction, f frame.Frame, data []byte) {
	w.opts.protoLog.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: w.opts.connID,
		Cid:          cid,
		Direction:    dir,
		Layer:        log.LayerTransport,
		Category:     log.CategoryFrame,
		RemoteAddr:   w.io.remoteAddr(),
		Frame:        log.NewFrameEvent(f, data, len(data)+w.io.overhead()),
	})
}

func (w *wire) logError(cid frame.Cid, err error, context string) {
	w.opts.protoLog.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: w.opts.connID,
		Cid:          cid,
		Layer:        log.LayerTransport,
		Category:     log.CategoryError,
		RemoteAddr:   w.io.remoteAddr(),
		Error: &log.ErrorEventData{
			Layer:   log.LayerTransport,
			Message: err.Error(),
			Context: context,
		},
	})
}

func (w *wire) logState(oldState, newState, reason string) {
	w.opts.protoLog.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: w.opts.connID,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		RemoteAddr:   w.io.remoteAddr(),
		StateChange: &log.StateChangeEvent{
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}
