package transport

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framewire/netcore/internal/queue"
	"github.com/framewire/netcore/pkg/frame"
)

func udpPair(t *testing.T) (*DatagramTransport, *DatagramTransport) {
	t.Helper()
	pa, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	pb, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	a := NewDatagramTransport(pa, pb.LocalAddr())
	b := NewDatagramTransport(pb, pa.LocalAddr())
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a, b
}

func TestDatagramTransport_RoundTrip(t *testing.T) {
	a, b := udpPair(t)

	q := queue.New[Incoming]()
	stop := NewStopSignal()
	done := startReader(b, 4, q, stop.Done())

	sendAll(a, 4, dataFrame(1))

	items := popN(t, q, 1)
	assert.Equal(t, frame.Cid(4), items[0].Cid)
	assert.Equal(t, dataFrame(1), items[0].Frame)

	stop.Fire()
	waitDone(t, done, "reader")
}

func TestDatagramTransport_DropsForeignSenders(t *testing.T) {
	a, b := udpPair(t)

	stranger, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer stranger.Close()

	foreign, err := frame.Encode(dataFrame(99))
	require.NoError(t, err)
	_, err = stranger.WriteTo(foreign, b.LocalAddr())
	require.NoError(t, err)

	sendAll(a, 0, dataFrame(1))

	q := queue.New[Incoming]()
	stop := NewStopSignal()
	done := startReader(b, 0, q, stop.Done())
	items := popN(t, q, 1)
	assert.Equal(t, dataFrame(1), items[0].Frame)

	stop.Fire()
	waitDone(t, done, "reader")
	assert.Zero(t, q.Len())
}

func TestDatagramTransport_LocalCloseEndsReader(t *testing.T) {
	_, b := udpPair(t)

	q := queue.New[Incoming]()
	done := startReader(b, 0, q, nil)
	require.NoError(t, b.Close())
	waitDone(t, done, "reader")

	items := q.Drain()
	require.Len(t, items, 1)
	assert.ErrorIs(t, items[0].Err, ErrConnectionClosed)
}

func TestSameAddr(t *testing.T) {
	a := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9000}
	b := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1).To16(), Port: 9000}
	c := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 9001}

	assert.True(t, sameAddr(a, b))
	assert.False(t, sameAddr(a, c))
}
