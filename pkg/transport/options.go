package transport

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/framewire/netcore/pkg/log"
)

// Option configures a transport.
type Option func(*options)

type options struct {
	logger       *slog.Logger
	protoLog     log.Logger
	connID       string
	maxFrameSize uint32
}

// WithLogger sets the operational logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithProtocolLogger sets the protocol capture logger.
func WithProtocolLogger(l log.Logger) Option {
	return func(o *options) {
		o.protoLog = log.OrNoop(l)
	}
}

// WithConnectionID overrides the generated connection id.
func WithConnectionID(id string) Option {
	return func(o *options) {
		if id != "" {
			o.connID = id
		}
	}
}

// WithMaxFrameSize sets the largest encoded frame a stream transport will
// read or write. Zero keeps the default.
func WithMaxFrameSize(n uint32) Option {
	return func(o *options) {
		if n > 0 {
			o.maxFrameSize = n
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger:       slog.Default(),
		protoLog:     log.NoopLogger{},
		connID:       uuid.NewString(),
		maxFrameSize: DefaultMaxFrameSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With("conn_id", o.connID)
	return o
}
