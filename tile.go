package tiffio

import (
	"fmt"

	"github.com/google/btree"
	"go.uber.org/zap/zapcore"
)

const (
	// MinTileSize and MaxTileSize bound the supported square tile edge.
	MinTileSize = 16
	MaxTileSize = 256
)

// PickTileSize validates an explicit tile size or, given 0, selects
// the largest size in [MinTileSize, MaxTileSize] that evenly divides
// both image dimensions.  Partially filled tiles are not supported, so
// a size that does not divide both dimensions is an error rather than
// a truncation.
func PickTileSize(requested, width, height uint32) (uint32, error) {
	if width == 0 || height == 0 {
		return 0, fmt.Errorf("cannot tile a zero-size %dx%d image", width, height)
	}
	if requested != 0 {
		if requested < MinTileSize || requested > MaxTileSize {
			return 0, fmt.Errorf("tile size %d outside [%d..%d]", requested, MinTileSize, MaxTileSize)
		}
		if width%requested != 0 || height%requested != 0 {
			return 0, fmt.Errorf("tile size %d does not evenly divide %dx%d image, partially filled tiles not supported",
				requested, width, height)
		}
		return requested, nil
	}
	for ts := uint32(MaxTileSize); ts >= MinTileSize; ts-- {
		if width%ts == 0 && height%ts == 0 {
			return ts, nil
		}
	}
	return 0, fmt.Errorf("no tile size in [%d..%d] evenly divides %dx%d image, image must be 16px aligned on both axes",
		MinTileSize, MaxTileSize, width, height)
}

// TileEntry records one emitted tile: its origin, the byte count the
// engine accepted versus what it said a tile should take, and a digest
// of the payload handed over.
type TileEntry struct {
	// X and Y are the tile origin in pixels.
	X uint32
	Y uint32
	// Written is the byte count the engine reported accepting.
	Written int
	// Expected is the engine's per-tile byte size at emission time.
	Expected int
	// Digest is the XXH64 digest of the payload as emitted.
	Digest uint64
}

// Mismatched reports whether the engine accepted a different byte
// count than it advertised for this tile.
func (e *TileEntry) Mismatched() bool {
	return e.Written != e.Expected
}

func (e *TileEntry) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint32("x", e.X)
	enc.AddUint32("y", e.Y)
	enc.AddInt("written", e.Written)
	enc.AddInt("expected", e.Expected)
	enc.AddUint64("digest", e.Digest)
	return nil
}

// tileLess orders entries in row-major emission order.
func tileLess(a, b *TileEntry) bool {
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}

func newTileIndex() *btree.BTreeG[*TileEntry] {
	return btree.NewG(16, tileLess)
}
