package transport

import "net"

// StreamTransport carries length-prefixed frames over a reliable byte
// stream such as TCP.
type StreamTransport struct {
	*wire
	conn net.Conn
}

var _ Transport = (*StreamTransport)(nil)

// NewStreamTransport wraps conn. The transport takes ownership of conn.
func NewStreamTransport(conn net.Conn, opts ...Option) *StreamTransport {
	o := newOptions(opts)
	s := &streamIO{conn: conn, framer: NewFramer(conn, o.maxFrameSize)}
	return &StreamTransport{wire: newWire(s, o), conn: conn}
}

// LocalAddr returns the local network address.
func (t *StreamTransport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// RemoteAddr returns the remote network address.
func (t *StreamTransport) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}

type streamIO struct {
	conn   net.Conn
	framer *Framer
}

func (s *streamIO) readPacket() ([]byte, error) { return s.framer.ReadFrame() }
func (s *streamIO) writePacket(data []byte) error { return s.framer.WriteFrame(data) }
func (s *streamIO) overhead() int                 { return LengthPrefixSize }
func (s *streamIO) close() error                  { return s.conn.Close() }

func (s *streamIO) remoteAddr() string {
	if addr := s.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
