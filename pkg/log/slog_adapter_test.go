package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/framewire/netcore/pkg/frame"
)

func newJSONAdapter() (*SlogAdapter, *bytes.Buffer) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogAdapter(slog.New(handler)), &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output %q: %v", buf.String(), err)
	}
	return entry
}

func TestSlogAdapterLogsFrameEvent(t *testing.T) {
	adapter, buf := newJSONAdapter()
	sid := frame.Sid(44)

	adapter.Log(Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-123",
		Cid:          7,
		Direction:    DirectionIn,
		Layer:        LayerTransport,
		Category:     CategoryFrame,
		Frame:        &FrameEvent{Kind: frame.KindOpenStream, Size: 12, Sid: &sid},
	})

	entry := decodeLine(t, buf)
	if entry["conn_id"] != "conn-123" {
		t.Errorf("conn_id: got %v", entry["conn_id"])
	}
	if entry["cid"] != float64(7) {
		t.Errorf("cid: got %v", entry["cid"])
	}
	if entry["frame_kind"] != "OPEN_STREAM" {
		t.Errorf("frame_kind: got %v", entry["frame_kind"])
	}
	if entry["sid"] != float64(44) {
		t.Errorf("sid: got %v", entry["sid"])
	}
	if entry["level"] != "DEBUG" {
		t.Errorf("level: got %v", entry["level"])
	}
}

func TestSlogAdapterLogsStateChange(t *testing.T) {
	adapter, buf := newJSONAdapter()

	adapter.Log(Event{
		Layer:       LayerHandshake,
		Category:    CategoryState,
		LocalRole:   RoleResponder,
		PeerPid:     "peer-1",
		StateChange: &StateChangeEvent{OldState: "AWAIT_INIT", NewState: "ESTABLISHED", Reason: "init received"},
	})

	entry := decodeLine(t, buf)
	if entry["role"] != "RESPONDER" {
		t.Errorf("role: got %v", entry["role"])
	}
	if entry["new_state"] != "ESTABLISHED" || entry["reason"] != "init received" {
		t.Errorf("state fields: got %v / %v", entry["new_state"], entry["reason"])
	}
	if entry["peer_pid"] != "peer-1" {
		t.Errorf("peer_pid: got %v", entry["peer_pid"])
	}
}

func TestSlogAdapterLogsError(t *testing.T) {
	adapter, buf := newJSONAdapter()

	adapter.Log(Event{
		Layer:    LayerHandshake,
		Category: CategoryError,
		Error:    &ErrorEventData{Layer: LayerHandshake, Message: "version mismatch", Context: "await handshake"},
	})

	entry := decodeLine(t, buf)
	if entry["error_msg"] != "version mismatch" {
		t.Errorf("error_msg: got %v", entry["error_msg"])
	}
	if entry["error_context"] != "await handshake" {
		t.Errorf("error_context: got %v", entry["error_context"])
	}
}
