package frame

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/framewire/netcore/pkg/version"
)

// ErrMalformedFrame indicates bytes that do not decode to a known frame.
var ErrMalformedFrame = errors.New("malformed frame")

// encMode is the CBOR encoder mode for frames.
// Configured for deterministic encoding with integer keys.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for frames.
var decMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	// Frames come from untrusted peers: reject duplicate keys and
	// indefinite lengths instead of guessing.
	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// idSize is the encoded length of a Pid or Secret.
const idSize = 16

// envelope is the outer wire shape: [kind, body].
type envelope struct {
	_    struct{} `cbor:",toarray"`
	Kind Kind
	Body cbor.RawMessage
}

type handshakeBody struct {
	Magic   uint64          `cbor:"1,keyasint"`
	Version version.Version `cbor:"2,keyasint"`
}

type initBody struct {
	Pid    []byte `cbor:"1,keyasint"`
	Secret []byte `cbor:"2,keyasint"`
}

type shutdownBody struct{}

type openStreamBody struct {
	Sid      uint64 `cbor:"1,keyasint"`
	Prio     uint8  `cbor:"2,keyasint,omitempty"`
	Promises uint8  `cbor:"3,keyasint,omitempty"`
}

type closeStreamBody struct {
	Sid uint64 `cbor:"1,keyasint"`
}

type dataHeaderBody struct {
	Mid    uint64 `cbor:"1,keyasint"`
	Sid    uint64 `cbor:"2,keyasint"`
	Length uint64 `cbor:"3,keyasint"`
}

type dataBody struct {
	Mid     uint64 `cbor:"1,keyasint"`
	Sid     uint64 `cbor:"2,keyasint"`
	Start   uint64 `cbor:"3,keyasint,omitempty"`
	Payload []byte `cbor:"4,keyasint"`
}

type rawBody struct {
	Payload []byte `cbor:"1,keyasint"`
}

// Encode encodes a frame to CBOR bytes.
func Encode(f Frame) ([]byte, error) {
	var body any
	switch v := f.(type) {
	case Handshake:
		body = handshakeBody{Magic: v.Magic, Version: v.Version}
	case Init:
		body = initBody{Pid: v.Pid[:], Secret: v.Secret[:]}
	case Shutdown:
		body = shutdownBody{}
	case OpenStream:
		body = openStreamBody{Sid: uint64(v.Sid), Prio: uint8(v.Prio), Promises: uint8(v.Promises)}
	case CloseStream:
		body = closeStreamBody{Sid: uint64(v.Sid)}
	case DataHeader:
		body = dataHeaderBody{Mid: uint64(v.Mid), Sid: uint64(v.Sid), Length: v.Length}
	case Data:
		body = dataBody{Mid: uint64(v.Mid), Sid: uint64(v.Sid), Start: v.Start, Payload: nonNil(v.Payload)}
	case Raw:
		body = rawBody{Payload: nonNil(v.Payload)}
	case nil:
		return nil, fmt.Errorf("%w: nil frame", ErrMalformedFrame)
	default:
		return nil, fmt.Errorf("%w: unknown frame type %T", ErrMalformedFrame, f)
	}

	encoded, err := encMode.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s body: %w", KindOf(f), err)
	}
	return encMode.Marshal(envelope{Kind: KindOf(f), Body: encoded})
}

// Decode decodes CBOR bytes into a frame.
func Decode(data []byte) (Frame, error) {
	var env envelope
	if err := decMode.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if len(env.Body) == 0 {
		return nil, fmt.Errorf("%w: missing body", ErrMalformedFrame)
	}

	switch env.Kind {
	case KindHandshake:
		var b handshakeBody
		if err := decodeBody(env, &b, 1, 2); err != nil {
			return nil, err
		}
		return Handshake{Magic: b.Magic, Version: b.Version}, nil

	case KindInit:
		var b initBody
		if err := decodeBody(env, &b, 1, 2); err != nil {
			return nil, err
		}
		if len(b.Pid) != idSize || len(b.Secret) != idSize {
			return nil, fmt.Errorf("%w: INIT pid/secret must be 16 bytes", ErrMalformedFrame)
		}
		var f Init
		copy(f.Pid[:], b.Pid)
		copy(f.Secret[:], b.Secret)
		return f, nil

	case KindShutdown:
		var b shutdownBody
		if err := decodeBody(env, &b); err != nil {
			return nil, err
		}
		return Shutdown{}, nil

	case KindOpenStream:
		var b openStreamBody
		if err := decodeBody(env, &b, 1); err != nil {
			return nil, err
		}
		return OpenStream{Sid: Sid(b.Sid), Prio: Prio(b.Prio), Promises: Promises(b.Promises)}, nil

	case KindCloseStream:
		var b closeStreamBody
		if err := decodeBody(env, &b, 1); err != nil {
			return nil, err
		}
		return CloseStream{Sid: Sid(b.Sid)}, nil

	case KindDataHeader:
		var b dataHeaderBody
		if err := decodeBody(env, &b, 1, 2, 3); err != nil {
			return nil, err
		}
		return DataHeader{Mid: Mid(b.Mid), Sid: Sid(b.Sid), Length: b.Length}, nil

	case KindData:
		var b dataBody
		if err := decodeBody(env, &b, 1, 2, 4); err != nil {
			return nil, err
		}
		return Data{Mid: Mid(b.Mid), Sid: Sid(b.Sid), Start: b.Start, Payload: b.Payload}, nil

	case KindRaw:
		var b rawBody
		if err := decodeBody(env, &b, 1); err != nil {
			return nil, err
		}
		return Raw{Payload: b.Payload}, nil

	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrMalformedFrame, uint8(env.Kind))
	}
}

// decodeBody decodes the body of env into v. Every key in required must be
// present; fields tagged omitempty are the only optional ones.
func decodeBody(env envelope, v any, required ...uint64) error {
	if len(required) > 0 {
		var keys map[uint64]cbor.RawMessage
		if err := decMode.Unmarshal(env.Body, &keys); err != nil {
			return fmt.Errorf("%w: %s body: %v", ErrMalformedFrame, env.Kind, err)
		}
		for _, k := range required {
			if _, ok := keys[k]; !ok {
				return fmt.Errorf("%w: %s body: missing field %d", ErrMalformedFrame, env.Kind, k)
			}
		}
	}
	if err := decMode.Unmarshal(env.Body, v); err != nil {
		return fmt.Errorf("%w: %s body: %v", ErrMalformedFrame, env.Kind, err)
	}
	return nil
}

// nonNil keeps empty payloads encoded as empty byte strings rather than null.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
