// Package handshake negotiates protocol compatibility and identity on a
// fresh transport before any application frame is trusted.
//
// # State Machine
//
//	AwaitHandshake ──Handshake ok──► AwaitInit ──Init──► Established
//	      │                              │
//	      └── mismatch / violation ──────┴──► failed (terminal)
//
// The initiator sends its Handshake immediately. Each side checks the
// peer's magic number and version for exact equality. The responder then
// answers with its own Handshake while the initiator sends Init. On the
// peer's Init the responder sends its Init. The initiator numbers its
// streams from frame.Offset1 and the responder from frame.Offset2.
//
// # Leftover Frames
//
// The handshake reader keeps running until the matcher finishes, so frames
// the peer sends right after its Init may already sit in the handshake's
// inbound queue. Setup drains that queue without blocking and returns its
// contents as Result.Leftover, which the caller replays through
// channel.Run before any frame read live off the wire.
//
// # Diagnostics
//
// On a mismatch the local side sends Shutdown to the peer. Builds with the
// netdebug tag precede it with a Raw frame describing the mismatch; other
// builds send no reason text.
package handshake
