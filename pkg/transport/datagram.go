package transport

import (
	"fmt"
	"net"
)

// MaxDatagramSize is the largest encoded frame a datagram transport sends
// or accepts (the maximum UDP payload over IPv4).
const MaxDatagramSize = 65507

// DatagramTransport carries one frame per datagram to and from a single
// remote address. Datagrams from any other address are dropped. Delivery
// and ordering are whatever the underlying PacketConn provides.
type DatagramTransport struct {
	*wire
	pc     net.PacketConn
	remote net.Addr
}

var _ Transport = (*DatagramTransport)(nil)

// NewDatagramTransport wraps pc for traffic with remote. The transport
// takes ownership of pc. pc must not be connected.
func NewDatagramTransport(pc net.PacketConn, remote net.Addr, opts ...Option) *DatagramTransport {
	o := newOptions(opts)
	d := &datagramIO{
		pc:     pc,
		remote: remote,
		buf:    make([]byte, MaxDatagramSize+1),
	}
	return &DatagramTransport{wire: newWire(d, o), pc: pc, remote: remote}
}

// LocalAddr returns the local network address.
func (t *DatagramTransport) LocalAddr() net.Addr {
	return t.pc.LocalAddr()
}

// RemoteAddr returns the peer address.
func (t *DatagramTransport) RemoteAddr() net.Addr {
	return t.remote
}

type datagramIO struct {
	pc     net.PacketConn
	remote net.Addr
	buf    []byte
}

func (d *datagramIO) readPacket() ([]byte, error) {
	for {
		n, addr, err := d.pc.ReadFrom(d.buf)
		if err != nil {
			return nil, err
		}
		if !sameAddr(addr, d.remote) {
			continue
		}
		if n == 0 {
			return nil, ErrFrameEmpty
		}
		if n > MaxDatagramSize {
			return nil, fmt.Errorf("%w: datagram exceeds %d bytes", ErrFrameTooLarge, MaxDatagramSize)
		}
		data := make([]byte, n)
		copy(data, d.buf[:n])
		return data, nil
	}
}

func (d *datagramIO) writePacket(data []byte) error {
	if len(data) > MaxDatagramSize {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(data), MaxDatagramSize)
	}
	_, err := d.pc.WriteTo(data, d.remote)
	return err
}

func (d *datagramIO) overhead() int      { return 0 }
func (d *datagramIO) remoteAddr() string { return d.remote.String() }
func (d *datagramIO) close() error       { return d.pc.Close() }

func sameAddr(a, b net.Addr) bool {
	ua, okA := a.(*net.UDPAddr)
	ub, okB := b.(*net.UDPAddr)
	if okA && okB {
		return ua.Port == ub.Port && ua.IP.Equal(ub.IP)
	}
	return a.Network() == b.Network() && a.String() == b.String()
}
