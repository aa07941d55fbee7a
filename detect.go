package tiffio

import "strings"

// MatchSignature reports whether sig begins with one of the two
// canonical byte-order markers, "II" (little-endian) or "MM"
// (big-endian).
func MatchSignature(sig []byte) bool {
	if len(sig) < 2 {
		return false
	}
	return (sig[0] == 'I' && sig[1] == 'I') || (sig[0] == 'M' && sig[1] == 'M')
}

// MatchExtension reports whether a file extension (without the dot)
// names this format, case-insensitively.
func MatchExtension(ext string) bool {
	return strings.EqualFold(ext, "tif") || strings.EqualFold(ext, "tiff")
}
