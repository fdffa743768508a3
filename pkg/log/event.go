package log

import (
	"time"

	"github.com/framewire/netcore/pkg/frame"
)

// Event is one protocol capture record.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the physical connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Cid is the channel id assigned by the caller, if known.
	Cid frame.Cid `cbor:"3,keyasint,omitempty"`

	// Direction indicates frame flow.
	Direction Direction `cbor:"4,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"5,keyasint"`

	// Category classifies the event.
	Category Category `cbor:"6,keyasint"`

	// LocalRole is the handshake role of this side, if known.
	LocalRole Role `cbor:"7,keyasint,omitempty"`

	// RemoteAddr is the peer address.
	RemoteAddr string `cbor:"8,keyasint,omitempty"`

	// PeerPid is the peer participant id, once learned.
	PeerPid string `cbor:"9,keyasint,omitempty"`

	// Exactly one of these is set.
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"11,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"12,keyasint,omitempty"`
}

// Direction indicates the direction of frame flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming frame.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing frame.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which component captured the event.
type Layer uint8

const (
	// LayerTransport is the wire codec layer.
	LayerTransport Layer = 0
	// LayerHandshake is the bootstrap state machine.
	LayerHandshake Layer = 1
	// LayerChannel is the steady-state frame pump.
	LayerChannel Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerHandshake:
		return "HANDSHAKE"
	case LayerChannel:
		return "CHANNEL"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryFrame indicates a frame crossed the wire.
	CategoryFrame Category = 0
	// CategoryState indicates a state change.
	CategoryState Category = 1
	// CategoryError indicates an error.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryFrame:
		return "FRAME"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Role is the handshake role of the local side.
type Role uint8

const (
	// RoleUnknown is used before the role is assigned.
	RoleUnknown Role = 0
	// RoleInitiator sends its Handshake first.
	RoleInitiator Role = 1
	// RoleResponder answers the initiator.
	RoleResponder Role = 2
)

// RoleOf maps the initiator flag to a Role.
func RoleOf(initiator bool) Role {
	if initiator {
		return RoleInitiator
	}
	return RoleResponder
}

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleUnknown:
		return "UNKNOWN"
	case RoleInitiator:
		return "INITIATOR"
	case RoleResponder:
		return "RESPONDER"
	default:
		return "INVALID"
	}
}

// FrameEvent captures a frame at the transport layer.
type FrameEvent struct {
	// Kind of the frame.
	Kind frame.Kind `cbor:"1,keyasint"`

	// Size is the encoded size in bytes (including any length prefix).
	Size int `cbor:"2,keyasint"`

	// Sid is the stream the frame is tagged with, if any.
	Sid *frame.Sid `cbor:"3,keyasint,omitempty"`

	// Data is the encoded frame (may be truncated for large frames).
	Data []byte `cbor:"4,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"5,keyasint,omitempty"`
}

// StateChangeEvent captures a lifecycle transition.
type StateChangeEvent struct {
	// OldState is the previous state (may be empty).
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"2,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error text.
	Message string `cbor:"2,keyasint"`

	// Context describes what was being done.
	Context string `cbor:"3,keyasint,omitempty"`
}

// MaxFrameDataSize is the maximum encoded frame size copied into a
// FrameEvent. Larger frames are truncated.
const MaxFrameDataSize = 4096

// NewFrameEvent builds a FrameEvent for f, given its encoded form and the
// number of bytes it occupied on the wire.
func NewFrameEvent(f frame.Frame, encoded []byte, wireSize int) *FrameEvent {
	ev := &FrameEvent{
		Kind: frame.KindOf(f),
		Size: wireSize,
		Data: encoded,
	}
	if sid, ok := frame.StreamID(f); ok {
		ev.Sid = &sid
	}
	if len(encoded) > MaxFrameDataSize {
		ev.Data = encoded[:MaxFrameDataSize]
		ev.Truncated = true
	}
	return ev
}
