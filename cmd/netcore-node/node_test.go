package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framewire/netcore/pkg/connection"
	"github.com/framewire/netcore/pkg/frame"
	"github.com/framewire/netcore/pkg/transport"
)

const testTimeout = 5 * time.Second

// syncBuffer is a bytes.Buffer safe for the concurrent reads done by
// assert.Eventually.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) contains(s string) func() bool {
	return func() bool { return strings.Contains(b.String(), s) }
}

func handshakeConfig(t *testing.T, initiator bool) connection.HandshakeConfig {
	t.Helper()
	secret, err := frame.NewSecret()
	require.NoError(t, err)
	return connection.HandshakeConfig{
		Initiator: initiator,
		Pid:       frame.NewPid(),
		Secret:    secret,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

type testPair struct {
	a, b       *node
	outA, outB *syncBuffer
	cancel     context.CancelFunc
	done       sync.WaitGroup
}

// startPair establishes one link over an in-memory transport and serves
// each end with its own node.
func startPair(t *testing.T) *testPair {
	t.Helper()
	ta, tb := transport.NewMemPair()
	cfgA, cfgB := handshakeConfig(t, true), handshakeConfig(t, false)

	type result struct {
		link *connection.Link
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		l, err := connection.Establish(context.Background(), 1, tb, cfgB)
		ch <- result{l, err}
	}()
	la, err := connection.Establish(context.Background(), 1, ta, cfgA)
	require.NoError(t, err)
	rb := <-ch
	require.NoError(t, rb.err)

	p := &testPair{outA: &syncBuffer{}, outB: &syncBuffer{}}
	p.a = newNode(cfgA.Logger, p.outA)
	p.b = newNode(cfgB.Logger, p.outB)

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done.Add(2)
	go func() { defer p.done.Done(); p.a.serve(ctx, la) }()
	go func() { defer p.done.Done(); p.b.serve(ctx, rb.link) }()

	require.Eventually(t, func() bool { return len(p.a.Links()) == 1 && len(p.b.Links()) == 1 },
		testTimeout, 10*time.Millisecond)

	t.Cleanup(func() {
		cancel()
		p.done.Wait()
	})
	return p
}

func TestNode_StreamLifecycle(t *testing.T) {
	p := startPair(t)
	ctx := context.Background()

	links := p.a.Links()
	require.Len(t, links, 1)
	assert.Equal(t, frame.Offset1, links[0].Offset)
	assert.Equal(t, frame.Offset2, p.b.Links()[0].Offset)

	sid, err := p.a.OpenStream(ctx, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, frame.Offset1, sid)
	assert.Eventually(t, p.outB.contains("stream 0 opened (prio 3)"), testTimeout, 10*time.Millisecond)

	require.NoError(t, p.a.SendMessage(ctx, 1, sid, []byte("hello")))
	assert.Eventually(t, p.outB.contains(`stream 0: "hello"`), testTimeout, 10*time.Millisecond)

	require.NoError(t, p.a.CloseStream(ctx, 1, sid))
	assert.Eventually(t, p.outB.contains("stream 0 closed"), testTimeout, 10*time.Millisecond)
}

func TestNode_LargeMessageIsChunked(t *testing.T) {
	p := startPair(t)
	ctx := context.Background()

	sid, err := p.b.OpenStream(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, frame.Offset2, sid)

	body := strings.Repeat("x", 3*maxChunk+17)
	require.NoError(t, p.b.SendMessage(ctx, 1, sid, []byte(body)))
	assert.Eventually(t, p.outA.contains(body), testTimeout, 10*time.Millisecond)
}

func TestNode_UnknownLinkAndEmptyMessage(t *testing.T) {
	p := startPair(t)
	ctx := context.Background()

	_, err := p.a.OpenStream(ctx, 99, 0)
	assert.ErrorIs(t, err, errUnknownLink)
	assert.ErrorIs(t, p.a.SendMessage(ctx, 1, 0, nil), errEmptyBody)
	assert.ErrorIs(t, p.a.Shutdown(ctx, 99), errUnknownLink)
}

func TestNode_ShutdownEndsBothSides(t *testing.T) {
	p := startPair(t)

	require.NoError(t, p.a.Shutdown(context.Background(), 1))

	assert.Eventually(t, func() bool { return len(p.a.Links()) == 0 && len(p.b.Links()) == 0 },
		testTimeout, 10*time.Millisecond)
	assert.Contains(t, p.outB.String(), "peer requested shutdown")
}

func TestNode_HandleFrameReassembly(t *testing.T) {
	p := startPair(t)
	out := &syncBuffer{}
	n := newNode(slog.New(slog.NewTextHandler(io.Discard, nil)), out)

	links := p.a.Links()
	require.Len(t, links, 1)
	s, err := p.a.session(links[0].Cid)
	require.NoError(t, err)

	// Out-of-order data is dropped; the message completes once the
	// missing chunk arrives in sequence.
	local := &session{link: s.link, streams: map[frame.Sid]frame.Prio{}, messages: map[frame.Mid]*message{}}
	assert.True(t, n.handleFrame(local, frame.DataHeader{Mid: 1, Sid: 5, Length: 6}))
	assert.True(t, n.handleFrame(local, frame.Data{Mid: 1, Sid: 5, Start: 3, Payload: []byte("def")}))
	assert.NotContains(t, out.String(), "abcdef")
	assert.True(t, n.handleFrame(local, frame.Data{Mid: 1, Sid: 5, Start: 0, Payload: []byte("abc")}))
	assert.True(t, n.handleFrame(local, frame.Data{Mid: 1, Sid: 5, Start: 3, Payload: []byte("def")}))
	assert.Contains(t, out.String(), `stream 5: "abcdef"`)

	assert.True(t, n.handleFrame(local, frame.Raw{Payload: []byte("bye")}))
	assert.Contains(t, out.String(), "peer says: bye")
	assert.False(t, n.handleFrame(local, frame.Shutdown{}))
}

func TestNode_HandleFrameRejectsOversizedMessage(t *testing.T) {
	p := startPair(t)
	out := &syncBuffer{}
	n := newNode(slog.New(slog.NewTextHandler(io.Discard, nil)), out)

	links := p.a.Links()
	require.Len(t, links, 1)
	s, err := p.a.session(links[0].Cid)
	require.NoError(t, err)
	local := &session{link: s.link, streams: map[frame.Sid]frame.Prio{}, messages: map[frame.Mid]*message{}}

	// A header announcing more than maxMessage is dropped without allocating.
	assert.NotPanics(t, func() {
		assert.True(t, n.handleFrame(local, frame.DataHeader{Mid: 1, Sid: 5, Length: 1 << 62}))
	})
	assert.Empty(t, local.messages)
	assert.True(t, n.handleFrame(local, frame.Data{Mid: 1, Sid: 5, Payload: []byte("abc")}))
	assert.Empty(t, out.String())

	// Data past the announced length drops the message.
	assert.True(t, n.handleFrame(local, frame.DataHeader{Mid: 2, Sid: 5, Length: 2}))
	assert.True(t, n.handleFrame(local, frame.Data{Mid: 2, Sid: 5, Payload: []byte("abc")}))
	assert.Empty(t, local.messages)
	assert.Empty(t, out.String())

	assert.True(t, n.handleFrame(local, frame.DataHeader{Mid: 3, Sid: 5, Length: maxMessage}))
	assert.Contains(t, local.messages, frame.Mid(3))
}
