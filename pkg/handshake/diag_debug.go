//go:build netdebug

package handshake

// diagnosticsBuild reports whether diagnostic Raw frames are compiled in.
const diagnosticsBuild = true
