package transport

import (
	"io"
	"net"
	"sync"
)

// memBuffer is the number of encoded frames buffered in each direction of
// an in-memory pair.
const memBuffer = 256

// MemTransport is one end of an in-process transport pair. Frames are
// encoded and decoded exactly as on a real wire.
type MemTransport struct {
	*wire
}

var _ Transport = (*MemTransport)(nil)

// NewMemPair returns two connected in-memory transports. Closing either
// end makes the other end's reader report ErrConnectionClosed once the
// frames already sent have been delivered.
func NewMemPair(opts ...Option) (*MemTransport, *MemTransport) {
	ab := make(chan []byte, memBuffer)
	ba := make(chan []byte, memBuffer)
	aClosed := make(chan struct{})
	bClosed := make(chan struct{})

	a := &memPipe{name: "mem:b", recv: ba, send: ab, closed: aClosed, peerClosed: bClosed}
	b := &memPipe{name: "mem:a", recv: ab, send: ba, closed: bClosed, peerClosed: aClosed}

	return &MemTransport{wire: newWire(a, newOptions(opts))},
		&MemTransport{wire: newWire(b, newOptions(opts))}
}

type memPipe struct {
	name       string
	recv       <-chan []byte
	send       chan<- []byte
	closed     chan struct{}
	peerClosed <-chan struct{}
	once       sync.Once
}

func (p *memPipe) readPacket() ([]byte, error) {
	select {
	case data := <-p.recv:
		return data, nil
	case <-p.closed:
		return nil, net.ErrClosed
	case <-p.peerClosed:
		// Deliver what the peer sent before it closed.
		select {
		case data := <-p.recv:
			return data, nil
		default:
			return nil, io.EOF
		}
	}
}

func (p *memPipe) writePacket(data []byte) error {
	select {
	case <-p.closed:
		return net.ErrClosed
	case <-p.peerClosed:
		return io.ErrClosedPipe
	default:
	}

	select {
	case p.send <- data:
		return nil
	case <-p.closed:
		return net.ErrClosed
	case <-p.peerClosed:
		return io.ErrClosedPipe
	}
}

func (p *memPipe) overhead() int      { return 0 }
func (p *memPipe) remoteAddr() string { return p.name }

func (p *memPipe) close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}
