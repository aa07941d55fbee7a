package tiffio

import (
	"io"

	"go.uber.org/zap"
)

// SeekProbe is the sentinel seek position the engine uses to probe the
// client without moving it.  A probe is answered with the sentinel and
// performs no seek.
const SeekProbe = 0xFFFFFFFF

/*
Client is the callback contract the engine requires from its storage.

Read, Write, Seek and Size mirror the engine's C-style calling
convention: they report progress as a count and signal failure by
returning zero progress (or an unchanged position), never by panicking
back through the engine.  Map and Unmap exist so the engine can ask for
a memory mapping; this package never grants one, which makes the engine
fall back to Read/Write.
*/
type Client struct {
	Read  func(p []byte) int
	Write func(p []byte) int
	Seek  func(offset int64, whence int) int64
	Size  func() int64
	Close func() error
	Map   func() (p []byte, ok bool)
	Unmap func(p []byte)
}

// readerClient builds the decode-side callbacks over a seekable source.
//
// The decode path is read-only: the engine has no business writing, so
// a Write call is a contract violation and panics rather than failing
// soft and corrupting the source.
func readerClient(rs io.ReadSeeker, logger *zap.Logger) Client {
	return Client{
		Read: func(p []byte) int {
			n, err := rs.Read(p)
			if err != nil && err != io.EOF {
				logger.Warn("client read failed", zap.Error(err))
				return 0
			}
			return n
		},
		Write: func(p []byte) int {
			panic("tiffio: engine write through a read-only client")
		},
		Seek: func(offset int64, whence int) int64 {
			if offset == SeekProbe {
				return SeekProbe
			}
			if _, err := rs.Seek(offset, whence); err != nil {
				logger.Warn("client seek failed",
					zap.Int64("offset", offset), zap.Int("whence", whence), zap.Error(err))
			}
			pos, err := rs.Seek(0, io.SeekCurrent)
			if err != nil {
				return 0
			}
			return pos
		},
		// Not every source knows its own length, so measure it the
		// generic way: seek to the end, note the position, seek back.
		Size: func() int64 {
			pos, err := rs.Seek(0, io.SeekCurrent)
			if err != nil {
				return 0
			}
			end, err := rs.Seek(0, io.SeekEnd)
			if err != nil {
				return 0
			}
			if _, err := rs.Seek(pos, io.SeekStart); err != nil {
				logger.Warn("client size probe failed to restore position",
					zap.Int64("pos", pos), zap.Error(err))
			}
			return end
		},
		Close: func() error { return nil },
		Map:   func() ([]byte, bool) { return nil, false },
		Unmap: func([]byte) {},
	}
}

// bufferClient builds the encode-side callbacks over the owned
// seekable buffer.  Size comes straight off the high-water mark.
func bufferClient(b *SeekableBuffer, logger *zap.Logger) Client {
	return Client{
		Read: func(p []byte) int {
			n, err := b.Read(p)
			if err != nil && err != io.EOF {
				logger.Warn("buffer read failed", zap.Error(err))
				return 0
			}
			return n
		},
		Write: func(p []byte) int {
			n, err := b.Write(p)
			if err != nil {
				logger.Warn("buffer write failed", zap.Error(err))
				return 0
			}
			return n
		},
		Seek: func(offset int64, whence int) int64 {
			if offset == SeekProbe {
				return SeekProbe
			}
			var mode SeekMode
			switch whence {
			case io.SeekCurrent:
				mode = SeekCurrent
			case io.SeekEnd:
				mode = SeekEnd
			default:
				mode = SeekSet
			}
			if err := b.Seek(offset, mode); err != nil {
				logger.Warn("buffer seek failed",
					zap.Int64("offset", offset), zap.Int("whence", whence), zap.Error(err))
			}
			return int64(b.Tell())
		},
		Size: func() int64 {
			return int64(b.TotalBytesWritten())
		},
		// The orchestration layer owns the buffer lifetime, Close from
		// the engine is a no-op.
		Close: func() error { return nil },
		Map:   func() ([]byte, bool) { return nil, false },
		Unmap: func([]byte) {},
	}
}
