// Package frame defines the wire-level message envelope exchanged between
// two netcore peers.
//
// A Frame is one of a closed set of variants. The set is sealed: only this
// package can add a variant, and every consumer dispatches with an explicit
// type switch, so adding a variant surfaces at each switch that lists them.
//
// # Connection Bootstrap
//
// The first frame on every connection is a Handshake carrying MagicNumber and
// the protocol version. The second is Init, carrying the sender's Pid and
// Secret. Everything after that is opaque to the transport core:
//
//	initiator                      responder
//	  Handshake{magic, version} ──▶
//	                            ◀── Handshake{magic, version}
//	  Init{pid, secret}         ──▶
//	                            ◀── Init{pid, secret}
//	  OpenStream / Data ...     ◀─▶ OpenStream / Data ...
//
// # Encoding
//
// Frames are encoded as a two-element CBOR array [kind, body], where body is
// a CBOR map with integer keys specific to the kind. See Encode and Decode.
package frame
