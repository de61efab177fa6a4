package marc

import (
	"log/slog"

	"authindex/internal/logging"
)

type readerOptions struct {
	logger *slog.Logger
}

// ReaderOption configures XMLReader and ISO2709Reader.
type ReaderOption func(*readerOptions)

// WithLogger routes elision diagnostics to logger.
func WithLogger(logger *slog.Logger) ReaderOption {
	return func(o *readerOptions) {
		o.logger = logger
	}
}

func buildOptions(opts []ReaderOption) readerOptions {
	o := readerOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}
	return o
}
