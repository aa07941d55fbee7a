package tiffio

import (
	"fmt"

	"go.uber.org/zap"
)

type rOption func(*readerImpl) error

// WithRLogger sets the logger used by the reader and forwarded to the
// engine's per-open diagnostic handlers.
func WithRLogger(l *zap.Logger) rOption {
	return func(r *readerImpl) error { r.logger = l; return nil }
}

// WithDrainChunkSize overrides the read granularity used when a
// non-seekable source is copied into memory.
func WithDrainChunkSize(n int) rOption {
	return func(r *readerImpl) error {
		if n <= 0 {
			return fmt.Errorf("drain chunk size must be positive: %d", n)
		}
		r.chunkSize = n
		return nil
	}
}
