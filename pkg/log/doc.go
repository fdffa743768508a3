// Package log provides structured protocol capture for netcore connections.
//
// It is separate from operational logging (slog): a capture is a complete,
// machine-readable trace of what crossed each layer of a connection, written
// as a stream of CBOR events.
//
// # Basic Usage
//
//	// During development: mirror events to slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For later analysis: write a capture file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/netcore/node.nlog")
//
//	// Both
//	cfg.ProtocolLogger = log.NewMultiLogger(adapter, fileLogger)
//
// # Layers
//
//   - Transport: frames read from and written to the wire (FrameEvent)
//   - Handshake: bootstrap state transitions and failures
//   - Channel: replay of leftover frames and pump lifecycle
//
// The netcore-log command views and summarizes capture files.
package log
