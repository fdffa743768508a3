package handshake

import (
	"errors"
	"fmt"

	"github.com/framewire/netcore/pkg/frame"
	"github.com/framewire/netcore/pkg/version"
)

// Handshake errors. Match with errors.Is; the concrete types carry details.
var (
	ErrMagicNumberMismatch = errors.New("magic number mismatch")
	ErrVersionMismatch     = errors.New("version mismatch")
	ErrUnexpectedFrame     = errors.New("unexpected frame")
)

// MagicNumberError reports a peer that is not speaking this protocol.
type MagicNumberError struct {
	Local  uint64
	Remote uint64
}

func (e *MagicNumberError) Error() string {
	return fmt.Sprintf("magic number mismatch: want %#x, got %#x", e.Local, e.Remote)
}

func (e *MagicNumberError) Unwrap() error { return ErrMagicNumberMismatch }

// VersionMismatchError reports a peer running a different protocol version.
type VersionMismatchError struct {
	Local  version.Version
	Remote version.Version
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("version mismatch: local %s, remote %s", e.Local, e.Remote)
}

func (e *VersionMismatchError) Unwrap() error { return ErrVersionMismatch }

// UnexpectedFrameError reports a frame that is not valid in the current state.
type UnexpectedFrameError struct {
	State State
	Kind  frame.Kind
}

func (e *UnexpectedFrameError) Error() string {
	return fmt.Sprintf("unexpected %s frame in state %s", e.Kind, e.State)
}

func (e *UnexpectedFrameError) Unwrap() error { return ErrUnexpectedFrame }

// IsIncompatible reports whether err means the peer can never complete a
// handshake with this node, so redialing is pointless.
func IsIncompatible(err error) bool {
	return errors.Is(err, ErrMagicNumberMismatch) || errors.Is(err, ErrVersionMismatch)
}
