// Package transport moves frames between the local node and one peer.
//
// A Transport exposes two long-running operations. ReadFromWire decodes
// frames and pushes them, tagged with a channel id, into a Sink until the
// connection ends, a malformed frame arrives, or a stop signal fires.
// WriteToWire encodes frames taken from a Go channel until that channel is
// closed.
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│   Frame (CBOR [kind, body])    │
//	├────────────────────────────────┤
//	│   Length-Prefix Framing (4B)   │  stream only
//	├────────────────────────────────┤
//	│     TCP  /  UDP  /  memory     │
//	└────────────────────────────────┘
//
// # Sharing One Wire
//
// All reads from the underlying connection are performed by a single pump
// goroutine per transport, started on first use. A ReadFromWire call that
// is stopped leaves every undelivered frame with the pump, so the next
// ReadFromWire call on the same transport continues exactly where the
// previous one stopped. The handshake relies on this when it hands the
// connection over to the channel.
//
// # Framing
//
// Stream transports prefix every encoded frame with its length:
//
//	┌─────────────────┬─────────────────────────────┐
//	│  Length (4B)    │   CBOR frame                │
//	│  big-endian     │   (Length bytes)            │
//	└─────────────────┴─────────────────────────────┘
//
// Datagram transports carry exactly one encoded frame per datagram.
package transport
