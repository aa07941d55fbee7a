package tiffio

// Field tags understood by the engine's SetField/GetField calls.
// Values follow the TIFF 6.0 tag numbering.
const (
	TagImageWidth      uint32 = 256
	TagImageLength     uint32 = 257
	TagBitsPerSample   uint32 = 258
	TagPhotometric     uint32 = 262
	TagOrientation     uint32 = 274
	TagSamplesPerPixel uint32 = 277
	TagPlanarConfig    uint32 = 284
	TagTileWidth       uint32 = 322
	TagTileLength      uint32 = 323
	TagExtraSamples    uint32 = 338
)

// Field values used with the tags above.
const (
	OrientationTopLeft      uint32 = 1
	PlanarConfigContig      uint32 = 1
	PhotometricRGB          uint32 = 2
	ExtraSampleUnassocAlpha uint32 = 2
)

// HandlerFunc receives a diagnostic emitted by the engine.  The module
// argument identifies the engine subsystem that produced it.
type HandlerFunc func(module, msg string)

// OpenConfig carries per-open engine configuration.  Handlers are
// scoped to the handle returned by Open rather than installed as
// process-wide hooks, so concurrent opens cannot trample each other.
type OpenConfig struct {
	// Name labels the stream in engine diagnostics.
	Name string
	// Mode is the engine open mode, e.g. "rm" (read, no mmap) or "wb".
	Mode string
	// Warning and Error receive engine diagnostics.  A nil handler
	// silences that class of diagnostic.
	Warning HandlerFunc
	Error   HandlerFunc
}

// Engine is the external codec engine.  It performs all tag-directory,
// compression, and color work; this package only feeds it bytes and
// pixels through the Client callbacks.
type Engine interface {
	// Open creates a codec handle whose I/O goes through the supplied
	// client callbacks.  The engine must not retain the callbacks past
	// Handle.Close.
	Open(cfg OpenConfig, c Client) (Handle, error)
}

// Handle is one open codec stream.
type Handle interface {
	// SetField sets a directory field prior to writing pixel data.
	SetField(tag uint32, values ...uint32) error
	// GetField reads a directory field.  The boolean reports whether
	// the field is present in the stream.
	GetField(tag uint32) (uint32, bool)

	// TileSize returns the encoded byte size the engine expects for
	// one tile under the current field configuration.
	TileSize() int
	// WriteTile encodes one tile whose origin is (x, y) and returns
	// the number of bytes the engine accepted.
	WriteTile(p []byte, x, y uint32) (int, error)
	// WriteScanline encodes one full-width row at the given index.
	WriteScanline(p []byte, row uint32) error

	// ReadRGBA decodes the full image into dst as 4-byte RGBA pixels
	// in top-left row-major order.  It reports whether the stream
	// carried a real alpha channel; without one the engine materializes
	// opaque alpha.
	ReadRGBA(dst []byte, width, height uint32) (hasAlpha bool, err error)

	// Flush forces buffered directory and pixel state to the client.
	Flush() error
	// Close releases the handle.  It does not close the client; the
	// caller owns the underlying storage lifetime.
	Close() error
}
