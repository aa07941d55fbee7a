package tiffio

import (
	"fmt"
	"image"
)

// ColorModel identifies the pixel layout of a Framebuffer.
type ColorModel int

const (
	// ColorModelInvalid is the zero value; it is rejected everywhere.
	ColorModelInvalid ColorModel = iota
	// ColorModelRGBA is 4 bytes per pixel with a meaningful alpha channel.
	ColorModelRGBA
	// ColorModelRGBX is 4 bytes per pixel whose 4th byte carries no
	// information.  It exists so no-alpha images keep the same in-memory
	// pitch as RGBA while the encoded output can drop the dead channel.
	ColorModelRGBX
)

func (m ColorModel) String() string {
	switch m {
	case ColorModelRGBA:
		return "RGBA"
	case ColorModelRGBX:
		return "RGBX"
	default:
		return fmt.Sprintf("ColorModel(%d)", int(m))
	}
}

// isRGBA reports whether the model is one of the two supported 4-byte
// layouts.
func (m ColorModel) isRGBA() bool {
	return m == ColorModelRGBA || m == ColorModelRGBX
}

// Framebuffer is a rectangular 4-byte-per-pixel buffer in top-left
// row-major order.  Pitch is the row stride in bytes.
type Framebuffer struct {
	width  int
	height int
	pitch  int
	model  ColorModel
	pix    []byte
}

// NewFramebuffer allocates a width x height framebuffer with the given
// color model and a tightly packed pitch.
func NewFramebuffer(width, height int, model ColorModel) *Framebuffer {
	return &Framebuffer{
		width:  width,
		height: height,
		pitch:  width * 4,
		model:  model,
		pix:    make([]byte, width*height*4),
	}
}

// Width returns the framebuffer width in pixels.
func (f *Framebuffer) Width() int { return f.width }

// Height returns the framebuffer height in pixels.
func (f *Framebuffer) Height() int { return f.height }

// Pitch returns the row stride in bytes.
func (f *Framebuffer) Pitch() int { return f.pitch }

// ColorModel returns the pixel layout.
func (f *Framebuffer) ColorModel() ColorModel { return f.model }

// Pix returns the raw pixel bytes.  The slice aliases the framebuffer.
func (f *Framebuffer) Pix() []byte { return f.pix }

// Row returns the pixel bytes of one row.
func (f *Framebuffer) Row(y int) []byte {
	return f.pix[y*f.pitch : y*f.pitch+f.width*4]
}

// CopyRect copies a width x height rectangle from f at (srcX, srcY)
// into dst at (dstX, dstY).  The rectangle must lie inside both
// buffers.
func (f *Framebuffer) CopyRect(dst *Framebuffer, srcX, srcY, dstX, dstY, width, height int) error {
	if srcX < 0 || srcY < 0 || srcX+width > f.width || srcY+height > f.height {
		return fmt.Errorf("source rect %dx%d at (%d, %d) outside %dx%d framebuffer",
			width, height, srcX, srcY, f.width, f.height)
	}
	if dstX < 0 || dstY < 0 || dstX+width > dst.width || dstY+height > dst.height {
		return fmt.Errorf("dest rect %dx%d at (%d, %d) outside %dx%d framebuffer",
			width, height, dstX, dstY, dst.width, dst.height)
	}
	for row := 0; row < height; row++ {
		src := f.pix[(srcY+row)*f.pitch+srcX*4:]
		d := dst.pix[(dstY+row)*dst.pitch+dstX*4:]
		copy(d[:width*4], src[:width*4])
	}
	return nil
}

// FromImage converts an image.Image into a framebuffer.  Non-NRGBA
// images go through the generic At path; fully opaque sources still
// come back as ColorModelRGBA since image.Image does not distinguish
// a dead alpha channel.
func FromImage(img image.Image) *Framebuffer {
	bounds := img.Bounds()
	fb := NewFramebuffer(bounds.Dx(), bounds.Dy(), ColorModelRGBA)
	if src, ok := img.(*image.NRGBA); ok {
		for y := 0; y < fb.height; y++ {
			copy(fb.Row(y), src.Pix[y*src.Stride:y*src.Stride+fb.width*4])
		}
		return fb
	}
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := img.At(x, y)
			r, g, b, a := c.RGBA()
			if a > 0 && a < 0xffff {
				// Undo the premultiplication RGBA() applies.
				r = r * 0xffff / a
				g = g * 0xffff / a
				b = b * 0xffff / a
			}
			fb.pix[i+0] = byte(r >> 8)
			fb.pix[i+1] = byte(g >> 8)
			fb.pix[i+2] = byte(b >> 8)
			fb.pix[i+3] = byte(a >> 8)
			i += 4
		}
	}
	return fb
}

// ToImage converts the framebuffer into an image.NRGBA.  RGBX buffers
// come back fully opaque.
func (f *Framebuffer) ToImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, f.width, f.height))
	for y := 0; y < f.height; y++ {
		copy(img.Pix[y*img.Stride:], f.Row(y))
	}
	if f.model == ColorModelRGBX {
		for i := 3; i < len(img.Pix); i += 4 {
			img.Pix[i] = 0xff
		}
	}
	return img
}
