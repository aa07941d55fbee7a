package tiffio

import (
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/google/btree"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// encodeHeadroom is added to the raw pixel size when sizing the encode
// buffer, covering the engine's directory and header output.
const encodeHeadroom = 64 << 10

type writerImpl struct {
	out    io.Writer
	engine Engine

	logger   *zap.Logger
	rawOpts  uint32
	opts     WriteOptions
	strict   bool
	capacity uint64

	tiles      *btree.BTreeG[*TileEntry]
	mismatches int
}

var _ Writer = (*writerImpl)(nil)

// Writer encodes framebuffers through the codec engine into an
// io.Writer.  The encoded stream is buffered in memory and handed to
// the output in one bulk write per image.
type Writer interface {
	// WriteImage encodes one framebuffer.  Only ColorModelRGBA and
	// ColorModelRGBX framebuffers are accepted; RGBX pixels are packed
	// down to 3 channels on the wire.
	WriteImage(src *Framebuffer) error

	// Tiles returns the per-tile records of the most recent tiled
	// encode in row-major order.  It is empty after a progressive
	// encode.
	Tiles() []TileEntry

	// Mismatches returns how many tiles or scanlines the engine
	// accepted with a byte count different from the one it advertised
	// during the most recent encode.
	Mismatches() int
}

// CanEncode reports whether a color model is accepted by WriteImage.
func CanEncode(m ColorModel) bool {
	return m.isRGBA()
}

// NewWriter wraps an io.Writer and a codec engine into an image
// writer.
func NewWriter(w io.Writer, engine Engine, opts ...wOption) (Writer, error) {
	if engine == nil {
		return nil, fmt.Errorf("nil engine")
	}
	sw := writerImpl{
		out:    w,
		engine: engine,
		logger: zap.NewNop(),
		tiles:  newTileIndex(),
	}
	for _, o := range opts {
		if err := o(&sw); err != nil {
			return nil, err
		}
	}
	sw.opts = ParseWriteOptions(sw.rawOpts, sw.logger)
	return &sw, nil
}

func (s *writerImpl) Tiles() []TileEntry {
	out := make([]TileEntry, 0, s.tiles.Len())
	s.tiles.Ascend(func(e *TileEntry) bool {
		out = append(out, *e)
		return true
	})
	return out
}

func (s *writerImpl) Mismatches() int {
	return s.mismatches
}

func (s *writerImpl) WriteImage(src *Framebuffer) (err error) {
	if src == nil {
		return fmt.Errorf("nil source framebuffer")
	}
	if !CanEncode(src.ColorModel()) {
		return fmt.Errorf("source color model is %s, only RGBA/RGBX is supported", src.ColorModel())
	}
	width, height := uint32(src.Width()), uint32(src.Height())
	if width == 0 || height == 0 {
		return fmt.Errorf("cannot encode a zero-size %dx%d image", width, height)
	}

	s.tiles.Clear(false)
	s.mismatches = 0

	capacity := s.capacity
	if capacity == 0 {
		capacity = uint64(src.Pitch())*uint64(height) + encodeHeadroom
	}
	buf := NewSeekableBuffer(capacity)

	handle, err := s.engine.Open(OpenConfig{
		Name:    "memory",
		Mode:    "wb",
		Warning: engineWarnHandler(s.logger),
		Error:   engineErrorHandler(s.logger),
	}, bufferClient(buf, s.logger))
	if err != nil {
		return fmt.Errorf("failed to open codec handle: %w", err)
	}
	defer func() {
		err = multierr.Append(err, handle.Close())
	}()

	hasAlpha := src.ColorModel() == ColorModelRGBA
	if err := s.setImageFields(handle, width, height, hasAlpha); err != nil {
		return err
	}

	if s.opts.Progressive {
		err = s.writeScanlines(handle, src, hasAlpha)
	} else {
		err = s.writeTiles(handle, src, hasAlpha)
	}
	if err != nil {
		return err
	}

	if err := handle.Flush(); err != nil {
		return fmt.Errorf("failed to flush codec state: %w", err)
	}

	// Single bulk copy of the finished stream to the caller's output.
	encoded := buf.Bytes()
	n, err := s.out.Write(encoded)
	if err != nil {
		return fmt.Errorf("failed to copy encoded output: %w", err)
	}
	if n != len(encoded) {
		return fmt.Errorf("short copy of encoded output: %d out of %d", n, len(encoded))
	}

	s.logger.Debug("image encoded",
		zap.Uint32("width", width),
		zap.Uint32("height", height),
		zap.Bool("alpha", hasAlpha),
		zap.Object("options", &s.opts),
		zap.Int("bytes", len(encoded)),
		zap.Int("mismatches", s.mismatches))
	return nil
}

func (s *writerImpl) setImageFields(handle Handle, width, height uint32, hasAlpha bool) error {
	samples := uint32(3)
	if hasAlpha {
		samples = 4
	}
	fields := []struct {
		tag    uint32
		values []uint32
	}{
		{TagImageWidth, []uint32{width}},
		{TagImageLength, []uint32{height}},
		{TagSamplesPerPixel, []uint32{samples}},
		{TagBitsPerSample, []uint32{8}},
		{TagOrientation, []uint32{OrientationTopLeft}},
		{TagPlanarConfig, []uint32{PlanarConfigContig}},
		{TagPhotometric, []uint32{PhotometricRGB}},
	}
	if hasAlpha {
		fields = append(fields, struct {
			tag    uint32
			values []uint32
		}{TagExtraSamples, []uint32{1, ExtraSampleUnassocAlpha}})
	}
	for _, f := range fields {
		if err := handle.SetField(f.tag, f.values...); err != nil {
			return fmt.Errorf("failed to set field %d: %w", f.tag, err)
		}
	}
	return nil
}

func (s *writerImpl) writeTiles(handle Handle, src *Framebuffer, hasAlpha bool) error {
	width, height := uint32(src.Width()), uint32(src.Height())
	ts, err := PickTileSize(s.opts.TileSize, width, height)
	if err != nil {
		return err
	}
	if err := handle.SetField(TagTileWidth, ts); err != nil {
		return fmt.Errorf("failed to set tile width: %w", err)
	}
	if err := handle.SetField(TagTileLength, ts); err != nil {
		return fmt.Errorf("failed to set tile length: %w", err)
	}

	// One scratch tile and one packed scratch for the whole image.
	tile := NewFramebuffer(int(ts), int(ts), src.ColorModel())
	var packed []byte
	if !hasAlpha {
		packed = make([]byte, int(ts)*int(ts)*3)
	}

	for y := uint32(0); y < height; y += ts {
		for x := uint32(0); x < width; x += ts {
			if err := src.CopyRect(tile, int(x), int(y), 0, 0, int(ts), int(ts)); err != nil {
				return fmt.Errorf("failed to extract tile at (%d, %d): %w", x, y, err)
			}
			payload := tile.Pix()
			if !hasAlpha {
				n, err := PackRGBX(packed, payload)
				if err != nil {
					return fmt.Errorf("failed to pack tile at (%d, %d): %w", x, y, err)
				}
				payload = packed[:n]
			}

			expected := handle.TileSize()
			written, err := handle.WriteTile(payload, x, y)
			entry := &TileEntry{
				X:        x,
				Y:        y,
				Written:  written,
				Expected: expected,
				Digest:   xxhash.Sum64(payload),
			}
			s.tiles.ReplaceOrInsert(entry)
			s.logger.Debug("tile written", zap.Object("tile", entry))

			if err != nil || entry.Mismatched() {
				s.mismatches++
				if s.strict {
					if err != nil {
						return fmt.Errorf("failed to write tile at (%d, %d): %w", x, y, err)
					}
					return fmt.Errorf("failed to write tile at (%d, %d): wrote %d of %d bytes",
						x, y, written, expected)
				}
				s.logger.Warn("tile write mismatch", zap.Object("tile", entry), zap.Error(err))
			}
		}
	}
	return nil
}

func (s *writerImpl) writeScanlines(handle Handle, src *Framebuffer, hasAlpha bool) error {
	var packed []byte
	if !hasAlpha {
		packed = make([]byte, src.Width()*3)
	}
	for y := 0; y < src.Height(); y++ {
		payload := src.Row(y)
		if !hasAlpha {
			n, err := PackRGBX(packed, payload)
			if err != nil {
				return fmt.Errorf("failed to pack row %d: %w", y, err)
			}
			payload = packed[:n]
		}
		if err := handle.WriteScanline(payload, uint32(y)); err != nil {
			s.mismatches++
			if s.strict {
				return fmt.Errorf("failed to write scanline %d: %w", y, err)
			}
			s.logger.Warn("scanline write failed", zap.Int("row", y), zap.Error(err))
		}
	}
	return nil
}

func engineWarnHandler(logger *zap.Logger) HandlerFunc {
	return func(module, msg string) {
		logger.Warn("engine warning", zap.String("module", module), zap.String("msg", msg))
	}
}

func engineErrorHandler(logger *zap.Logger) HandlerFunc {
	return func(module, msg string) {
		logger.Error("engine error", zap.String("module", module), zap.String("msg", msg))
	}
}
