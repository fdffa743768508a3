// Package connection turns a transport into an established link and keeps
// a dialing node connected.
//
// Establish runs the handshake on a transport and prepares the channel
// that will carry the connection afterwards. A Link owns the transport
// from then on. A Redialer dials and handshakes until it succeeds, waiting
// between attempts with exponential backoff.
//
// # Reconnection Strategy
//
//  1. Initial delay: 1 second
//  2. Exponential increase: 2s, 4s, 8s, 16s, 32s
//  3. Maximum delay: 60 seconds
//  4. Reset to 1s after a successful handshake
//
// To prevent thundering herd when many nodes redial at once:
//
//	actual_delay = base_delay + random(0, base_delay * 0.25)
//
// # Success Criteria
//
// An attempt succeeds once the handshake is established. A peer with a
// different magic number or protocol version is incompatible; redialing it
// cannot succeed, so the Redialer gives up immediately.
package connection
