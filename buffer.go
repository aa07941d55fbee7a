package tiffio

import (
	"fmt"
	"io"
)

// SeekMode selects how a SeekableBuffer seek offset is interpreted.
type SeekMode int

const (
	// SeekSet moves the cursor to an absolute offset.
	SeekSet SeekMode = iota
	// SeekCurrent moves the cursor relative to its current position.
	SeekCurrent
	// SeekEnd extends the written high-water mark by the offset.
	//
	// Note that unlike io.SeekEnd this does not touch the cursor: the
	// engine uses end-relative seeks to probe and extend the logical
	// file size while keeping its own notion of the write position.
	SeekEnd
)

/*
SeekableBuffer is a fixed-capacity in-memory byte buffer with the seek
semantics the codec engine expects from its client storage.

It tracks two offsets independently:

	|<------------- capacity ------------->|
	|##### written #####|                  |
	          ^cursor   ^mark

The cursor is the current read/write position.  The mark is the
written high-water mark, the logical length of the stream.  The engine
may seek the cursor beyond the mark (for example to pre-reserve header
space) without changing what counts as written; only an actual write,
or an end-relative seek, advances the mark.
*/
type SeekableBuffer struct {
	buf    []byte
	cursor uint64
	mark   uint64
}

// NewSeekableBuffer returns a buffer with a fixed capacity of size bytes.
func NewSeekableBuffer(size uint64) *SeekableBuffer {
	return &SeekableBuffer{
		buf: make([]byte, size),
	}
}

// Cap returns the fixed capacity of the buffer.
func (b *SeekableBuffer) Cap() uint64 {
	return uint64(len(b.buf))
}

// Tell returns the current cursor position.
func (b *SeekableBuffer) Tell() uint64 {
	return b.cursor
}

// TotalBytesWritten returns the written high-water mark.
func (b *SeekableBuffer) TotalBytesWritten() uint64 {
	return b.mark
}

// Bytes returns the written portion of the underlying buffer.
// The slice aliases the buffer and is only valid until the next write.
func (b *SeekableBuffer) Bytes() []byte {
	return b.buf[:b.mark]
}

// Write copies p into the buffer at the cursor.  A write that would
// cross the capacity fails with no bytes consumed and no state change.
func (b *SeekableBuffer) Write(p []byte) (int, error) {
	if b.cursor+uint64(len(p)) > uint64(len(b.buf)) {
		return 0, fmt.Errorf("write of %d bytes at %d exceeds buffer capacity %d",
			len(p), b.cursor, len(b.buf))
	}
	copy(b.buf[b.cursor:], p)
	b.cursor += uint64(len(p))
	if b.cursor > b.mark {
		b.mark = b.cursor
	}
	return len(p), nil
}

// Read copies up to len(p) bytes from the cursor into p, never reading
// past the written mark even when capacity is larger.  A cursor beyond
// the mark (possible after a raw seek) reads zero bytes, not garbage.
func (b *SeekableBuffer) Read(p []byte) (int, error) {
	var avail uint64
	if b.cursor < b.mark {
		avail = b.mark - b.cursor
	}
	n := uint64(len(p))
	if n > avail {
		n = avail
	}
	if n == 0 {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	copy(p, b.buf[b.cursor:b.cursor+n])
	b.cursor += n
	return int(n), nil
}

// Seek repositions the buffer according to mode.  Any seek that would
// land past the capacity fails and leaves both offsets unchanged.
func (b *SeekableBuffer) Seek(offset int64, mode SeekMode) error {
	switch mode {
	case SeekCurrent:
		pos := int64(b.cursor) + offset
		if pos < 0 || uint64(pos) > uint64(len(b.buf)) {
			return fmt.Errorf("relative seek by %d from %d exceeds buffer capacity %d",
				offset, b.cursor, len(b.buf))
		}
		b.cursor = uint64(pos)
	case SeekEnd:
		pos := int64(b.mark) + offset
		if pos < 0 || uint64(pos) > uint64(len(b.buf)) {
			return fmt.Errorf("end seek by %d from mark %d exceeds buffer capacity %d",
				offset, b.mark, len(b.buf))
		}
		b.mark = uint64(pos)
	case SeekSet:
		if offset < 0 || uint64(offset) > uint64(len(b.buf)) {
			return fmt.Errorf("absolute seek to %d exceeds buffer capacity %d",
				offset, len(b.buf))
		}
		b.cursor = uint64(offset)
	default:
		return fmt.Errorf("unknown seek mode %d", mode)
	}
	return nil
}

// Flush is a no-op.  A generic flush would reset offsets in a way that
// is incompatible with the cursor/mark split above; keep it inert.
func (b *SeekableBuffer) Flush() error {
	return nil
}
