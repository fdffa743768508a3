package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/framewire/netcore/internal/queue"
	"github.com/framewire/netcore/pkg/frame"
)

const testTimeout = 5 * time.Second

func dataFrame(i int) frame.Data {
	return frame.Data{Mid: frame.Mid(i), Sid: 1, Start: 0, Payload: []byte{byte(i), 0xAA}}
}

// popN waits for n items from q.
func popN(t *testing.T, q *queue.Queue[Incoming], n int) []Incoming {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	items := make([]Incoming, 0, n)
	for len(items) < n {
		it, err := q.Pop(ctx)
		require.NoError(t, err, "got %d of %d items", len(items), n)
		items = append(items, it)
	}
	return items
}

// sendAll writes frames through WriteToWire and returns once all are written.
func sendAll(t Transport, cid frame.Cid, frames ...frame.Frame) {
	in := make(chan frame.Frame, len(frames))
	for _, f := range frames {
		in <- f
	}
	close(in)
	t.WriteToWire(cid, in)
}

// startReader runs ReadFromWire in a goroutine and returns a channel closed
// when it returns.
func startReader(t Transport, cid frame.Cid, out Sink, stop <-chan struct{}) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		t.ReadFromWire(cid, out, stop)
	}()
	return done
}

func waitDone(t *testing.T, done <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for %s", what)
	}
}
