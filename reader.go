package tiffio

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// drainChunkSize is the default read granularity used when copying a
// non-seekable source into memory.
const drainChunkSize = 1024

type readerImpl struct {
	src    io.ReadSeeker
	engine Engine

	logger    *zap.Logger
	chunkSize int

	handle   Handle
	width    uint32
	height   uint32
	hasAlpha bool

	once *sync.Once
}

var _ Reader = (*readerImpl)(nil)

// Reader decodes one image through the codec engine.
//
// The usual sequence is NewReader, ReadHeader, ReadImage, Close.
type Reader interface {
	// ReadHeader opens the codec handle over the source and reads the
	// image dimensions.
	ReadHeader() error

	// Width and Height return the header dimensions.  Valid after
	// ReadHeader.
	Width() uint32
	Height() uint32

	// NativeColorModel reports whether the stream carried a real alpha
	// channel (ColorModelRGBA) or not (ColorModelRGBX).  Valid after
	// ReadImage.
	NativeColorModel() ColorModel

	// ReadImage decodes the full image into dst, which must match the
	// header dimensions.  Alpha is forced opaque when the stream has
	// none.
	ReadImage(dst *Framebuffer) error

	// Close releases the codec handle.  It does not close the source.
	Close() error
}

// NewReader wraps a byte source and a codec engine into an image
// reader.
//
// The engine requires random access, so a source that does not
// implement io.Seeker is fully drained into an owned in-memory copy
// first.  That is a deliberate latency/memory trade-off, not an error.
func NewReader(r io.Reader, engine Engine, opts ...rOption) (Reader, error) {
	if engine == nil {
		return nil, fmt.Errorf("nil engine")
	}
	sr := readerImpl{
		engine:    engine,
		logger:    zap.NewNop(),
		chunkSize: drainChunkSize,
		once:      &sync.Once{},
	}
	for _, o := range opts {
		if err := o(&sr); err != nil {
			return nil, err
		}
	}

	if rs, ok := r.(io.ReadSeeker); ok {
		sr.src = rs
	} else {
		src, n, err := drain(r, sr.chunkSize)
		if err != nil {
			return nil, fmt.Errorf("failed to copy non-seekable source: %w", err)
		}
		sr.logger.Debug("copied non-seekable source", zap.Int64("bytes", n))
		sr.src = src
	}
	return &sr, nil
}

// drain reads r to end-of-stream in bounded chunks and wraps the
// accumulated bytes as a seekable source.
func drain(r io.Reader, chunkSize int) (io.ReadSeeker, int64, error) {
	var all []byte
	chunk := make([]byte, chunkSize)
	var total int64
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			all = append(all, chunk[:n]...)
			total += int64(n)
		}
		if err == io.EOF {
			return bytes.NewReader(all), total, nil
		}
		if err != nil {
			return nil, total, err
		}
	}
}

func (s *readerImpl) ReadHeader() error {
	handle, err := s.engine.Open(OpenConfig{
		Name:    "source",
		Mode:    "rm", // read only, no memory mapping
		Warning: engineWarnHandler(s.logger),
		Error:   engineErrorHandler(s.logger),
	}, readerClient(s.src, s.logger))
	if err != nil {
		return fmt.Errorf("failed to open codec handle: %w", err)
	}
	s.handle = handle

	width, ok := handle.GetField(TagImageWidth)
	if !ok {
		return fmt.Errorf("stream has no image width field")
	}
	height, ok := handle.GetField(TagImageLength)
	if !ok {
		return fmt.Errorf("stream has no image length field")
	}
	s.width = width
	s.height = height
	return nil
}

func (s *readerImpl) Width() uint32 {
	return s.width
}

func (s *readerImpl) Height() uint32 {
	return s.height
}

func (s *readerImpl) NativeColorModel() ColorModel {
	if s.hasAlpha {
		return ColorModelRGBA
	}
	return ColorModelRGBX
}

func (s *readerImpl) ReadImage(dst *Framebuffer) error {
	if s.handle == nil {
		return fmt.Errorf("header not read")
	}
	if dst == nil {
		return fmt.Errorf("nil destination framebuffer")
	}
	if !dst.ColorModel().isRGBA() {
		return fmt.Errorf("destination color model is %s, only RGBA/RGBX is supported", dst.ColorModel())
	}
	if uint32(dst.Width()) != s.width || uint32(dst.Height()) != s.height {
		return fmt.Errorf("destination is %dx%d, image is %dx%d",
			dst.Width(), dst.Height(), s.width, s.height)
	}
	if s.width == 0 || s.height == 0 {
		return fmt.Errorf("cannot decode a zero-size %dx%d image", s.width, s.height)
	}

	hasAlpha, err := s.handle.ReadRGBA(dst.Pix(), s.width, s.height)
	if err != nil {
		return fmt.Errorf("failed to decode image: %w", err)
	}
	s.hasAlpha = hasAlpha
	s.logger.Debug("image decoded",
		zap.Uint32("width", s.width),
		zap.Uint32("height", s.height),
		zap.Bool("alpha", hasAlpha))
	return nil
}

func (s *readerImpl) Close() (err error) {
	s.once.Do(func() {
		if s.handle != nil {
			err = multierr.Append(err, s.handle.Close())
			s.handle = nil
		}
	})
	return
}
