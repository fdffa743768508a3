// Package discovery implements mDNS/DNS-SD discovery of netcore nodes.
//
// A node that listens for connections advertises one service per network:
//
//	_netcore._tcp   stream transport
//	_netcore._udp   datagram transport
//
// Instance name format: netcore-<first 8 hex digits of the pid>
//
// # TXT Records
//
//	v    protocol version, "major.minor.patch" (required)
//	pid  participant id, UUID text form (required)
//	mf   maximum frame size in bytes (optional)
//
// A browser only reports nodes whose version equals its own, since the
// handshake rejects any other version.
package discovery
