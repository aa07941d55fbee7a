package tiffio

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

/*
Write options are packed into a 32-bit field:

	| Bits  | Field name          |
	| ----- | ----------          |
	| 31:25 | `Reserved`          |
	| 24:16 | `Tile_Size`         |
	| 15:0  | `Flags`             |

`Tile_Size` is either 0 (auto-select) or a value in [16..256].
`Reserved` bits must be zero.  The only defined flag is bit 0,
progressive (scanline) mode; tiled output is the default.
*/
const (
	// WriteOptionProgressive selects scanline output instead of tiles.
	WriteOptionProgressive uint32 = 1 << 0

	tileSizeShift        = 16
	tileSizeMask  uint32 = 0x01FF0000
)

// WriteOptions is the decoded form of the packed options field.
type WriteOptions struct {
	// Progressive selects scanline output instead of tiles.
	Progressive bool
	// TileSize is the square tile edge override; 0 selects
	// automatically.
	TileSize uint32
}

func (o *WriteOptions) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddBool("progressive", o.Progressive)
	enc.AddUint32("tileSize", o.TileSize)
	return nil
}

// Bits packs the options back into the wire form.
func (o *WriteOptions) Bits() uint32 {
	var bits uint32
	if o.Progressive {
		bits |= WriteOptionProgressive
	}
	bits |= (o.TileSize << tileSizeShift) & tileSizeMask
	return bits
}

// ParseWriteOptions decodes a packed options field.  Unknown flag bits
// and reserved bits are reported through the logger but do not abort;
// an out-of-range tile size is likewise warned about and demoted to
// auto-selection.  Whether the chosen tile size actually fits the
// image geometry is decided later, at encode time.
func ParseWriteOptions(bits uint32, logger *zap.Logger) WriteOptions {
	for i := 0; i < 32; i++ {
		if i >= tileSizeShift && i <= 24 {
			// Tile size field, not a flag.
			continue
		}
		set := bits & (1 << i)
		switch set {
		case 0, WriteOptionProgressive:
		default:
			logger.Warn("unsupported write option", zap.Uint32("option", set))
		}
	}

	tileSize := (bits & tileSizeMask) >> tileSizeShift
	if tileSize != 0 && (tileSize < MinTileSize || tileSize > MaxTileSize) {
		logger.Warn("tile size outside supported range, using auto",
			zap.Uint32("tileSize", tileSize),
			zap.Uint32("min", MinTileSize),
			zap.Uint32("max", MaxTileSize))
		tileSize = 0
	}

	return WriteOptions{
		Progressive: bits&WriteOptionProgressive != 0,
		TileSize:    tileSize,
	}
}
