package transport

import (
	"errors"

	"github.com/framewire/netcore/pkg/frame"
)

// Connection errors reported through Incoming.Err.
var (
	// ErrConnectionClosed indicates the peer or the local side closed the connection.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrTransportIO indicates a read or decode failure on the wire.
	ErrTransportIO = errors.New("transport i/o error")
)

// Incoming is one item produced by ReadFromWire: either a decoded frame or
// the error that ended the reader. Exactly one of Frame and Err is set.
type Incoming struct {
	Cid   frame.Cid
	Frame frame.Frame
	Err   error
}

// Sink receives the items produced by ReadFromWire. Push must not block.
// It returns false if the item was discarded because the sink is closed.
type Sink interface {
	Push(Incoming) bool
}

// Transport is a bidirectional frame carrier for a single peer.
//
// ReadFromWire and WriteToWire may run concurrently with each other.
// Consecutive ReadFromWire calls share the same stream of frames: a stopped
// reader loses nothing.
//
// The first ReadFromWire starts a read pump that outlives stopped readers
// and may hold one decoded frame for the next one. Callers must Close every
// transport they read from, even after the last reader stopped, to release
// the pump and that frame.
type Transport interface {
	// ReadFromWire pushes decoded frames tagged with cid into out until the
	// connection ends, a malformed frame is read, or stop is closed.
	// Connection end and decode failures are pushed as a final item.
	ReadFromWire(cid frame.Cid, out Sink, stop <-chan struct{})

	// WriteToWire encodes frames from in until in is closed. Frames that
	// cannot be encoded are skipped; after a write failure the rest of in
	// is discarded.
	WriteToWire(cid frame.Cid, in <-chan frame.Frame)

	// Close closes the underlying connection and releases the read pump.
	Close() error
}
