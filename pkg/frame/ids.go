package frame

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/google/uuid"
)

// Cid identifies one physical connection within a participant. It is chosen
// by the caller before the handshake begins and never changes.
type Cid uint64

// Sid identifies a logical stream layered above a channel.
type Sid uint64

// Mid identifies a message within a stream.
type Mid uint64

// Prio is the scheduling priority of a stream. Lower values are more urgent.
type Prio uint8

// Promises is the bitset of delivery guarantees requested for a stream.
type Promises uint8

// Stream promises.
const (
	PromiseOrdered            Promises = 1 << 0
	PromiseConsistency        Promises = 1 << 1
	PromiseGuaranteedDelivery Promises = 1 << 2
	PromiseCompressed         Promises = 1 << 3
)

// Has reports whether all bits of p2 are set in p.
func (p Promises) Has(p2 Promises) bool {
	return p&p2 == p2
}

// MagicNumber is the fixed 8-byte value ("NETCORE\x00") every Handshake frame
// must carry.
const MagicNumber uint64 = 0x4E4554434F524500

// Stream id offsets. The handshake initiator numbers its streams from
// Offset1, the responder from Offset2, so independently allocated ids never
// collide.
const (
	Offset1 Sid = 0
	Offset2 Sid = math.MaxUint64 / 2
)

// Pid is the identity of a participant, exchanged in the Init frame.
type Pid [16]byte

// NewPid returns a random participant id.
func NewPid() Pid {
	return Pid(uuid.New())
}

// ParsePid parses the canonical UUID text form of a Pid.
func ParsePid(s string) (Pid, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Pid{}, fmt.Errorf("invalid pid %q: %w", s, err)
	}
	return Pid(u), nil
}

// String returns the Pid in UUID text form.
func (p Pid) String() string {
	return uuid.UUID(p).String()
}

// IsZero reports whether p is the zero Pid.
func (p Pid) IsZero() bool {
	return p == Pid{}
}

// Secret is the 128-bit value exchanged in the Init frame. Callers use it to
// validate a later resumption of the same participant.
type Secret [16]byte

// NewSecret returns a random secret.
func NewSecret() (Secret, error) {
	var s Secret
	if _, err := rand.Read(s[:]); err != nil {
		return Secret{}, fmt.Errorf("failed to generate secret: %w", err)
	}
	return s, nil
}

// String hides all but the first two bytes.
func (s Secret) String() string {
	return hex.EncodeToString(s[:2]) + "…"
}
