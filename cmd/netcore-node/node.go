package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/framewire/netcore/cmd/netcore-node/interactive"
	"github.com/framewire/netcore/internal/queue"
	"github.com/framewire/netcore/pkg/connection"
	"github.com/framewire/netcore/pkg/frame"
	"github.com/framewire/netcore/pkg/transport"
)

// maxChunk is the largest payload carried by one Data frame.
const maxChunk = 1024

// maxMessage bounds the announced length of an inbound message.
const maxMessage = 16 << 20

var (
	errUnknownLink = errors.New("unknown link")
	errEmptyBody   = errors.New("empty message")
)

// message is a DataHeader whose Data frames are still arriving.
type message struct {
	sid    frame.Sid
	length uint64
	buf    []byte
}

// session is one running link and its inbound queue.
type session struct {
	link    *connection.Link
	inbound *queue.Queue[transport.Incoming]
	nextMid atomic.Uint64

	// Owned by the serve loop.
	streams  map[frame.Sid]frame.Prio
	messages map[frame.Mid]*message
}

// node tracks the links of a running netcore node and prints what they
// receive.
type node struct {
	logger *slog.Logger

	outMu sync.Mutex
	out   io.Writer

	mu       sync.Mutex
	sessions map[frame.Cid]*session
	nextCid  atomic.Uint64
}

func newNode(logger *slog.Logger, out io.Writer) *node {
	return &node{
		logger:   logger,
		out:      out,
		sessions: make(map[frame.Cid]*session),
	}
}

// allocCid returns the channel id for the next accepted connection.
func (n *node) allocCid() frame.Cid {
	return frame.Cid(n.nextCid.Add(1))
}

func (n *node) printf(format string, args ...any) {
	n.outMu.Lock()
	defer n.outMu.Unlock()
	fmt.Fprintf(n.out, format+"\n", args...)
}

// serve runs link until it ends or ctx is done, then closes it.
func (n *node) serve(ctx context.Context, link *connection.Link) {
	s := &session{
		link:     link,
		inbound:  queue.New[transport.Incoming](),
		streams:  make(map[frame.Sid]frame.Prio),
		messages: make(map[frame.Mid]*message),
	}
	cid := link.Cid()

	n.mu.Lock()
	n.sessions[cid] = s
	n.mu.Unlock()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = link.Run(s.inbound)
	}()

	defer func() {
		n.mu.Lock()
		delete(n.sessions, cid)
		n.mu.Unlock()

		link.Close()
		<-runDone
		s.inbound.Close()
	}()

	n.printf("[link %d] up, peer %s, streams from %d", cid, link.PeerPid(), link.Offset())

	// A locally closed link stops its reader without a final item.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-link.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		it, err := s.inbound.Pop(ctx)
		if err != nil {
			return
		}
		if it.Err != nil {
			n.printf("[link %d] down: %v", cid, it.Err)
			return
		}
		if !n.handleFrame(s, it.Frame) {
			return
		}
	}
}

// handleFrame reports f and returns false once the peer asked to shut down.
func (n *node) handleFrame(s *session, f frame.Frame) bool {
	cid := s.link.Cid()

	switch f := f.(type) {
	case frame.OpenStream:
		s.streams[f.Sid] = f.Prio
		n.printf("[link %d] stream %d opened (prio %d)", cid, f.Sid, f.Prio)

	case frame.CloseStream:
		delete(s.streams, f.Sid)
		for mid, m := range s.messages {
			if m.sid == f.Sid {
				delete(s.messages, mid)
			}
		}
		n.printf("[link %d] stream %d closed", cid, f.Sid)

	case frame.DataHeader:
		if f.Length == 0 {
			n.printf("[link %d] stream %d: %q", cid, f.Sid, "")
			return true
		}
		if f.Length > maxMessage {
			n.logger.Warn("dropping oversized message", "cid", cid, "sid", f.Sid, "mid", f.Mid,
				"length", f.Length, "max", maxMessage)
			return true
		}
		s.messages[f.Mid] = &message{sid: f.Sid, length: f.Length}

	case frame.Data:
		m, ok := s.messages[f.Mid]
		if !ok || m.sid != f.Sid || f.Start != uint64(len(m.buf)) {
			n.logger.Warn("dropping out of sequence data", "cid", cid, "sid", f.Sid, "mid", f.Mid, "start", f.Start)
			return true
		}
		if uint64(len(m.buf))+uint64(len(f.Payload)) > m.length {
			delete(s.messages, f.Mid)
			n.logger.Warn("dropping message that overruns its header", "cid", cid, "sid", f.Sid, "mid", f.Mid,
				"length", m.length)
			return true
		}
		m.buf = append(m.buf, f.Payload...)
		if uint64(len(m.buf)) >= m.length {
			delete(s.messages, f.Mid)
			n.printf("[link %d] stream %d: %q", cid, f.Sid, m.buf)
		}

	case frame.Raw:
		n.printf("[link %d] peer says: %s", cid, f.Payload)

	case frame.Shutdown:
		n.printf("[link %d] peer requested shutdown", cid)
		return false

	default:
		n.logger.Warn("unexpected frame on established link", "cid", cid, "kind", frame.KindOf(f))
	}
	return true
}

func (n *node) session(cid frame.Cid) (*session, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	s, ok := n.sessions[cid]
	if !ok {
		return nil, fmt.Errorf("%w: %d", errUnknownLink, cid)
	}
	return s, nil
}

// Links implements interactive.Node.
func (n *node) Links() []interactive.LinkInfo {
	n.mu.Lock()
	defer n.mu.Unlock()

	links := make([]interactive.LinkInfo, 0, len(n.sessions))
	for cid, s := range n.sessions {
		links = append(links, interactive.LinkInfo{
			Cid:     cid,
			PeerPid: s.link.PeerPid(),
			Offset:  s.link.Offset(),
		})
	}
	sort.Slice(links, func(i, j int) bool { return links[i].Cid < links[j].Cid })
	return links
}

// OpenStream implements interactive.Node.
func (n *node) OpenStream(ctx context.Context, cid frame.Cid, prio frame.Prio) (frame.Sid, error) {
	s, err := n.session(cid)
	if err != nil {
		return 0, err
	}
	sid := s.link.NextSid()
	err = s.link.Send(ctx, frame.OpenStream{
		Sid:      sid,
		Prio:     prio,
		Promises: frame.PromiseOrdered | frame.PromiseGuaranteedDelivery,
	})
	return sid, err
}

// CloseStream implements interactive.Node.
func (n *node) CloseStream(ctx context.Context, cid frame.Cid, sid frame.Sid) error {
	s, err := n.session(cid)
	if err != nil {
		return err
	}
	return s.link.Send(ctx, frame.CloseStream{Sid: sid})
}

// SendMessage implements interactive.Node. The body is announced with a
// DataHeader and carried in Data frames of at most maxChunk bytes.
func (n *node) SendMessage(ctx context.Context, cid frame.Cid, sid frame.Sid, body []byte) error {
	if len(body) == 0 {
		return errEmptyBody
	}
	s, err := n.session(cid)
	if err != nil {
		return err
	}

	mid := frame.Mid(s.nextMid.Add(1))
	if err := s.link.Send(ctx, frame.DataHeader{Mid: mid, Sid: sid, Length: uint64(len(body))}); err != nil {
		return err
	}
	for start := 0; start < len(body); start += maxChunk {
		end := min(start+maxChunk, len(body))
		data := frame.Data{Mid: mid, Sid: sid, Start: uint64(start), Payload: body[start:end]}
		if err := s.link.Send(ctx, data); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown implements interactive.Node. It asks the peer to close and
// closes the link after the Shutdown frame is flushed.
func (n *node) Shutdown(ctx context.Context, cid frame.Cid) error {
	s, err := n.session(cid)
	if err != nil {
		return err
	}
	if err := s.link.Send(ctx, frame.Shutdown{}); err != nil {
		return err
	}
	return s.link.Close()
}

var _ interactive.Node = (*node)(nil)
