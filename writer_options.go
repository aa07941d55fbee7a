package tiffio

import (
	"fmt"

	"go.uber.org/zap"
)

type wOption func(*writerImpl) error

// WithWLogger sets the logger used by the writer and forwarded to the
// engine's per-open diagnostic handlers.
func WithWLogger(l *zap.Logger) wOption {
	return func(w *writerImpl) error { w.logger = l; return nil }
}

// WithWriteOptions supplies the packed 32-bit write options field.
func WithWriteOptions(bits uint32) wOption {
	return func(w *writerImpl) error { w.rawOpts = bits; return nil }
}

// WithStrictTiles makes a per-tile or per-scanline engine mismatch
// abort the encode instead of being logged and skipped.
func WithStrictTiles() wOption {
	return func(w *writerImpl) error { w.strict = true; return nil }
}

// WithBufferCapacity overrides the capacity of the owned encode
// buffer.  The default is the raw pixel size of the image plus
// headroom for the engine's directory output.
func WithBufferCapacity(n uint64) wOption {
	return func(w *writerImpl) error {
		if n == 0 {
			return fmt.Errorf("buffer capacity must be nonzero")
		}
		w.capacity = n
		return nil
	}
}
