package tiffio

import (
	"encoding/binary"
	"fmt"
	"io"
)

// fakeEngine is a stand-in codec engine speaking the Client contract.
// It stores pixel payloads in a trivial container (header with a
// patched directory offset, raw payloads, trailing directory) so that
// encode/decode round-trips run through the real pipeline: seekable
// buffer, callbacks, channel packing and tile geometry.
type fakeEngine struct {
	// shortTileX/Y inject a written-byte undercount for one tile.
	shortTileX, shortTileY int
	// failScanline injects a write error for one row.
	failScanline int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{shortTileX: -1, shortTileY: -1, failScanline: -1}
}

const fakeMagic uint32 = 0x46495454

const (
	entryTile     uint32 = 0
	entryScanline uint32 = 1
)

type fakeEntry struct {
	kind uint32
	x, y uint32
	off  uint32
	size uint32
}

type fakeHandle struct {
	eng      *fakeEngine
	c        Client
	cfg      OpenConfig
	writable bool
	fields   map[uint32][]uint32
	order    []uint32
	entries  []fakeEntry
}

var _ Engine = (*fakeEngine)(nil)
var _ Handle = (*fakeHandle)(nil)

func (e *fakeEngine) Open(cfg OpenConfig, c Client) (Handle, error) {
	h := &fakeHandle{eng: e, c: c, cfg: cfg, fields: map[uint32][]uint32{}}
	switch cfg.Mode {
	case "wb":
		h.writable = true
		// Probe before writing, the way the real engine checks that
		// the client answers seeks at all.
		if c.Seek(SeekProbe, io.SeekStart) != SeekProbe {
			return nil, fmt.Errorf("client does not answer seek probe")
		}
		var hdr [8]byte
		binary.LittleEndian.PutUint32(hdr[0:], fakeMagic)
		// hdr[4:8] is the directory offset, patched on Flush.
		if c.Write(hdr[:]) != len(hdr) {
			return nil, fmt.Errorf("failed to write container header")
		}
	case "rm":
		if err := h.readDirectory(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported open mode %q", cfg.Mode)
	}
	return h, nil
}

func (h *fakeHandle) readFull(p []byte) error {
	off := 0
	for off < len(p) {
		n := h.c.Read(p[off:])
		if n <= 0 {
			return fmt.Errorf("short read: %d of %d", off, len(p))
		}
		off += n
	}
	return nil
}

func (h *fakeHandle) readU32s(n int) ([]uint32, error) {
	buf := make([]byte, n*4)
	if err := h.readFull(buf); err != nil {
		return nil, err
	}
	out := make([]uint32, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	return out, nil
}

func (h *fakeHandle) readDirectory() error {
	size := h.c.Size()
	if size < 8 {
		return fmt.Errorf("container too small: %d bytes", size)
	}
	if h.c.Seek(0, io.SeekStart) != 0 {
		return fmt.Errorf("failed to rewind container")
	}
	hdr, err := h.readU32s(2)
	if err != nil {
		return err
	}
	if hdr[0] != fakeMagic {
		return fmt.Errorf("bad container magic %#x", hdr[0])
	}
	dirOff := int64(hdr[1])
	if dirOff < 8 || dirOff >= size {
		return fmt.Errorf("directory offset %d outside container of %d bytes", dirOff, size)
	}
	if h.c.Seek(dirOff, io.SeekStart) != dirOff {
		return fmt.Errorf("failed to seek to directory")
	}

	counts, err := h.readU32s(1)
	if err != nil {
		return err
	}
	for i := uint32(0); i < counts[0]; i++ {
		head, err := h.readU32s(2)
		if err != nil {
			return err
		}
		values, err := h.readU32s(int(head[1]))
		if err != nil {
			return err
		}
		h.fields[head[0]] = values
	}

	counts, err = h.readU32s(1)
	if err != nil {
		return err
	}
	for i := uint32(0); i < counts[0]; i++ {
		raw, err := h.readU32s(5)
		if err != nil {
			return err
		}
		h.entries = append(h.entries, fakeEntry{raw[0], raw[1], raw[2], raw[3], raw[4]})
	}
	return nil
}

func (h *fakeHandle) SetField(tag uint32, values ...uint32) error {
	if !h.writable {
		return fmt.Errorf("set field %d on a read-only handle", tag)
	}
	if _, seen := h.fields[tag]; !seen {
		h.order = append(h.order, tag)
	}
	h.fields[tag] = append([]uint32(nil), values...)
	return nil
}

func (h *fakeHandle) GetField(tag uint32) (uint32, bool) {
	values, ok := h.fields[tag]
	if !ok || len(values) == 0 {
		return 0, false
	}
	return values[0], true
}

func (h *fakeHandle) samples() uint32 {
	if v, ok := h.GetField(TagSamplesPerPixel); ok {
		return v
	}
	return 4
}

func (h *fakeHandle) TileSize() int {
	tw, _ := h.GetField(TagTileWidth)
	th, _ := h.GetField(TagTileLength)
	return int(tw * th * h.samples())
}

func (h *fakeHandle) WriteTile(p []byte, x, y uint32) (int, error) {
	if !h.writable {
		return 0, fmt.Errorf("write tile on a read-only handle")
	}
	off := h.c.Seek(0, io.SeekCurrent)
	if n := h.c.Write(p); n != len(p) {
		return n, fmt.Errorf("client accepted %d of %d tile bytes", n, len(p))
	}
	h.entries = append(h.entries, fakeEntry{entryTile, x, y, uint32(off), uint32(len(p))})
	if h.eng.shortTileX == int(x) && h.eng.shortTileY == int(y) {
		// Data is stored in full; only the reported count lies.
		if h.cfg.Warning != nil {
			h.cfg.Warning("fake", fmt.Sprintf("short tile at (%d, %d)", x, y))
		}
		return len(p) - 4, nil
	}
	return len(p), nil
}

func (h *fakeHandle) WriteScanline(p []byte, row uint32) error {
	if !h.writable {
		return fmt.Errorf("write scanline on a read-only handle")
	}
	if h.eng.failScanline == int(row) {
		return fmt.Errorf("injected scanline failure at row %d", row)
	}
	off := h.c.Seek(0, io.SeekCurrent)
	if n := h.c.Write(p); n != len(p) {
		return fmt.Errorf("client accepted %d of %d scanline bytes", n, len(p))
	}
	h.entries = append(h.entries, fakeEntry{entryScanline, 0, row, uint32(off), uint32(len(p))})
	return nil
}

func (h *fakeHandle) ReadRGBA(dst []byte, width, height uint32) (bool, error) {
	if h.writable {
		return false, fmt.Errorf("read image on a write handle")
	}
	spp := h.samples()
	hasAlpha := spp == 4
	tw, _ := h.GetField(TagTileWidth)

	for _, e := range h.entries {
		payload := make([]byte, e.size)
		if h.c.Seek(int64(e.off), io.SeekStart) != int64(e.off) {
			return false, fmt.Errorf("failed to seek to payload at %d", e.off)
		}
		if err := h.readFull(payload); err != nil {
			return false, err
		}

		rowPixels := width
		rows := uint32(1)
		if e.kind == entryTile {
			rowPixels = tw
			rows = e.size / (tw * spp)
		}
		for r := uint32(0); r < rows; r++ {
			src := payload[r*rowPixels*spp : (r+1)*rowPixels*spp]
			dstOff := ((e.y+r)*width + e.x) * 4
			dstRow := dst[dstOff : dstOff+rowPixels*4]
			if spp == 3 {
				if _, err := UnpackRGB(dstRow, src); err != nil {
					return false, err
				}
			} else {
				copy(dstRow, src)
			}
		}
	}
	return hasAlpha, nil
}

func (h *fakeHandle) Flush() error {
	if !h.writable {
		return nil
	}
	dirOff := h.c.Seek(0, io.SeekCurrent)

	var dir []byte
	u32 := func(v uint32) {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		dir = append(dir, b[:]...)
	}
	u32(uint32(len(h.order)))
	for _, tag := range h.order {
		u32(tag)
		u32(uint32(len(h.fields[tag])))
		for _, v := range h.fields[tag] {
			u32(v)
		}
	}
	u32(uint32(len(h.entries)))
	for _, e := range h.entries {
		u32(e.kind)
		u32(e.x)
		u32(e.y)
		u32(e.off)
		u32(e.size)
	}
	if n := h.c.Write(dir); n != len(dir) {
		return fmt.Errorf("client accepted %d of %d directory bytes", n, len(dir))
	}

	// Patch the directory offset in the header.  The cursor lands
	// before the written high-water mark, which is exactly the
	// cursor/mark split the client buffer must support.
	if h.c.Seek(4, io.SeekStart) != 4 {
		return fmt.Errorf("failed to seek to header patch")
	}
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(dirOff))
	if n := h.c.Write(b[:]); n != len(b) {
		return fmt.Errorf("failed to patch directory offset")
	}
	return nil
}

func (h *fakeHandle) Close() error {
	return h.c.Close()
}
