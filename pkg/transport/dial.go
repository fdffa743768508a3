package transport

import (
	"context"
	"fmt"
	"net"
)

// DialStream connects to a TCP address.
func DialStream(ctx context.Context, addr string, opts ...Option) (*StreamTransport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	t := NewStreamTransport(conn, opts...)
	t.logState("", "CONNECTED", "dialed")
	return t, nil
}

// ListenDatagram binds a UDP socket on localAddr and returns a transport
// for traffic with remoteAddr.
func ListenDatagram(ctx context.Context, localAddr, remoteAddr string, opts ...Option) (*DatagramTransport, error) {
	raddr, err := net.ResolveUDPAddr("udp", remoteAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", remoteAddr, err)
	}

	var lc net.ListenConfig
	pc, err := lc.ListenPacket(ctx, "udp", localAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind: %w", err)
	}

	t := NewDatagramTransport(pc, raddr, opts...)
	t.logState("", "CONNECTED", "bound")
	return t, nil
}

// DialDatagram returns a datagram transport for remoteAddr using an
// ephemeral local port.
func DialDatagram(ctx context.Context, remoteAddr string, opts ...Option) (*DatagramTransport, error) {
	return ListenDatagram(ctx, ":0", remoteAddr, opts...)
}

// Dial connects to addr over network, which is "tcp" (stream) or "udp"
// (datagram).
func Dial(ctx context.Context, network, addr string, opts ...Option) (Transport, error) {
	switch network {
	case "tcp", "":
		t, err := DialStream(ctx, addr, opts...)
		if err != nil {
			return nil, err
		}
		return t, nil
	case "udp":
		t, err := DialDatagram(ctx, addr, opts...)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported network %q", network)
	}
}
