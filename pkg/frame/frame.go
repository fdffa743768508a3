package frame

import (
	"fmt"

	"github.com/framewire/netcore/pkg/version"
)

// Frame is one discrete protocol message. The implementations are exactly the
// variant types of this package.
type Frame interface {
	isFrame()
}

// Handshake is the first frame sent and received on every connection.
type Handshake struct {
	Magic   uint64
	Version version.Version
}

// Init is the second frame on every connection. It carries the sender's
// identity and secret.
type Init struct {
	Pid    Pid
	Secret Secret
}

// Shutdown asks the peer to close the connection.
type Shutdown struct{}

// OpenStream announces a new logical stream.
type OpenStream struct {
	Sid      Sid
	Prio     Prio
	Promises Promises
}

// CloseStream announces the end of a logical stream.
type CloseStream struct {
	Sid Sid
}

// DataHeader announces a message of Length bytes on a stream. Its payload
// follows in one or more Data frames with the same Mid.
type DataHeader struct {
	Mid    Mid
	Sid    Sid
	Length uint64
}

// Data carries payload bytes of message Mid on stream Sid, starting at
// offset Start.
type Data struct {
	Mid     Mid
	Sid     Sid
	Start   uint64
	Payload []byte
}

// Raw is a free-form diagnostic payload, sent to explain a protocol violation
// before Shutdown.
type Raw struct {
	Payload []byte
}

func (Handshake) isFrame()   {}
func (Init) isFrame()        {}
func (Shutdown) isFrame()    {}
func (OpenStream) isFrame()  {}
func (CloseStream) isFrame() {}
func (DataHeader) isFrame()  {}
func (Data) isFrame()        {}
func (Raw) isFrame()         {}

// Kind identifies a frame variant on the wire.
type Kind uint8

// Frame kinds. Values are part of the wire format.
const (
	KindHandshake   Kind = 1
	KindInit        Kind = 2
	KindShutdown    Kind = 3
	KindOpenStream  Kind = 4
	KindCloseStream Kind = 5
	KindDataHeader  Kind = 6
	KindData        Kind = 7
	KindRaw         Kind = 8
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindHandshake:
		return "HANDSHAKE"
	case KindInit:
		return "INIT"
	case KindShutdown:
		return "SHUTDOWN"
	case KindOpenStream:
		return "OPEN_STREAM"
	case KindCloseStream:
		return "CLOSE_STREAM"
	case KindDataHeader:
		return "DATA_HEADER"
	case KindData:
		return "DATA"
	case KindRaw:
		return "RAW"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(k))
	}
}

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool {
	return k >= KindHandshake && k <= KindRaw
}

// KindOf returns the kind of f. It panics on a nil frame.
func KindOf(f Frame) Kind {
	switch f.(type) {
	case Handshake:
		return KindHandshake
	case Init:
		return KindInit
	case Shutdown:
		return KindShutdown
	case OpenStream:
		return KindOpenStream
	case CloseStream:
		return KindCloseStream
	case DataHeader:
		return KindDataHeader
	case Data:
		return KindData
	case Raw:
		return KindRaw
	default:
		panic(fmt.Sprintf("frame: unknown frame type %T", f))
	}
}

// StreamID returns the stream a frame is tagged with. Connection-level frames
// report false.
func StreamID(f Frame) (Sid, bool) {
	switch v := f.(type) {
	case OpenStream:
		return v.Sid, true
	case CloseStream:
		return v.Sid, true
	case DataHeader:
		return v.Sid, true
	case Data:
		return v.Sid, true
	case Handshake, Init, Shutdown, Raw:
		return 0, false
	default:
		panic(fmt.Sprintf("frame: unknown frame type %T", f))
	}
}

// IsBootstrap reports whether f belongs to the handshake (Handshake or Init).
func IsBootstrap(f Frame) bool {
	switch f.(type) {
	case Handshake, Init:
		return true
	default:
		return false
	}
}
