package log

import (
	"bytes"
	"testing"
	"time"

	"github.com/framewire/netcore/pkg/frame"
)

func TestNewFrameEvent(t *testing.T) {
	ev := NewFrameEvent(frame.OpenStream{Sid: 12}, []byte{1, 2, 3}, 7)

	if ev.Kind != frame.KindOpenStream {
		t.Errorf("Kind = %s, want OPEN_STREAM", ev.Kind)
	}
	if ev.Size != 7 {
		t.Errorf("Size = %d, want 7", ev.Size)
	}
	if ev.Sid == nil || *ev.Sid != 12 {
		t.Errorf("Sid = %v, want 12", ev.Sid)
	}
	if ev.Truncated {
		t.Error("small frame must not be truncated")
	}
}

func TestNewFrameEvent_Truncates(t *testing.T) {
	encoded := bytes.Repeat([]byte{0xAA}, MaxFrameDataSize+10)
	ev := NewFrameEvent(frame.Raw{}, encoded, len(encoded)+4)

	if !ev.Truncated {
		t.Error("expected truncation")
	}
	if len(ev.Data) != MaxFrameDataSize {
		t.Errorf("len(Data) = %d, want %d", len(ev.Data), MaxFrameDataSize)
	}
	if ev.Sid != nil {
		t.Error("raw frame has no stream id")
	}
}

func TestEventEncodeDecode(t *testing.T) {
	sid := frame.Sid(5)
	event := Event{
		Timestamp:    time.Date(2026, 1, 2, 3, 4, 5, 6789, time.UTC),
		ConnectionID: "conn-1",
		Cid:          3,
		Direction:    DirectionOut,
		Layer:        LayerHandshake,
		Category:     CategoryFrame,
		LocalRole:    RoleInitiator,
		Frame: &FrameEvent{
			Kind: frame.KindDataHeader,
			Size: 20,
			Sid:  &sid,
		},
	}

	data, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent: %v", err)
	}
	got, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}

	if !got.Timestamp.Equal(event.Timestamp) {
		t.Errorf("Timestamp = %v, want %v (nanoseconds must survive)", got.Timestamp, event.Timestamp)
	}
	if got.Layer != LayerHandshake || got.LocalRole != RoleInitiator || got.Cid != 3 {
		t.Errorf("header fields lost: %+v", got)
	}
	if got.Frame == nil || got.Frame.Sid == nil || *got.Frame.Sid != sid {
		t.Errorf("Frame = %+v, want sid %d", got.Frame, sid)
	}
}

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{DirectionIn.String(), "IN"},
		{DirectionOut.String(), "OUT"},
		{Direction(9).String(), "UNKNOWN"},
		{LayerTransport.String(), "TRANSPORT"},
		{LayerHandshake.String(), "HANDSHAKE"},
		{LayerChannel.String(), "CHANNEL"},
		{CategoryFrame.String(), "FRAME"},
		{CategoryState.String(), "STATE"},
		{CategoryError.String(), "ERROR"},
		{RoleOf(true).String(), "INITIATOR"},
		{RoleOf(false).String(), "RESPONDER"},
		{RoleUnknown.String(), "UNKNOWN"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}
