package tiffio

import "fmt"

// PackRGBX compacts 4-byte RGBX pixels in src into 3-byte RGB pixels
// in dst, dropping every 4th byte.  It returns the number of bytes
// written to dst.  This is purely an on-wire space optimization; the
// engine is told samples-per-pixel is 3 so it can make sense of the
// reduced stride.
func PackRGBX(dst, src []byte) (int, error) {
	if len(src)%4 != 0 {
		return 0, fmt.Errorf("source length %d is not a whole number of 4-byte pixels", len(src))
	}
	pixels := len(src) / 4
	if len(dst) < pixels*3 {
		return 0, fmt.Errorf("dest length %d too small for %d packed pixels", len(dst), pixels)
	}
	di := 0
	for si := 0; si < len(src); si += 4 {
		dst[di+0] = src[si+0]
		dst[di+1] = src[si+1]
		dst[di+2] = src[si+2]
		di += 3
	}
	return di, nil
}

// UnpackRGB expands 3-byte RGB pixels in src into 4-byte RGBA pixels
// in dst with opaque alpha.  Decoding always materializes 4 channels,
// so this is the inverse the read path relies on.
func UnpackRGB(dst, src []byte) (int, error) {
	if len(src)%3 != 0 {
		return 0, fmt.Errorf("source length %d is not a whole number of 3-byte pixels", len(src))
	}
	pixels := len(src) / 3
	if len(dst) < pixels*4 {
		return 0, fmt.Errorf("dest length %d too small for %d unpacked pixels", len(dst), pixels)
	}
	di := 0
	for si := 0; si < len(src); si += 3 {
		dst[di+0] = src[si+0]
		dst[di+1] = src[si+1]
		dst[di+2] = src[si+2]
		dst[di+3] = 0xff
		di += 4
	}
	return di, nil
}
