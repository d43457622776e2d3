package cache

import (
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/clone"
)

// fingerprintPrefix is how many leading bytes feed the hash.
const fingerprintPrefix = 1024

// Fingerprint identifies image content by a 31-multiplier hash over its first
// 1024 bytes plus its total length, formatted "hash_length". Only the bytes
// visible through data matter, so equal content behind different backing
// arrays or offsets fingerprints the same.
func Fingerprint(data []byte) string {
	h := hashPrefix(0, data, fingerprintPrefix)
	return fmt.Sprintf("%d_%d", h, len(data))
}

// ImageFingerprint fingerprints the RGBA pixel bytes of img's bounds, read row
// by row. Sub-images hash by their visible content.
func ImageFingerprint(img image.Image) string {
	rgba, ok := img.(*image.RGBA)
	if !ok {
		rgba = clone.AsRGBA(img)
	}

	b := rgba.Bounds()
	rowBytes := 4 * b.Dx()
	total := rowBytes * b.Dy()

	var h int32
	remaining := fingerprintPrefix
	for y := b.Min.Y; y < b.Max.Y && remaining > 0; y++ {
		start := rgba.PixOffset(b.Min.X, y)
		row := rgba.Pix[start : start+rowBytes]
		h = hashPrefix(h, row, remaining)
		remaining -= len(row)
	}
	return fmt.Sprintf("%d_%d", h, total)
}

// hashPrefix folds up to limit bytes of data into h with 32-bit wraparound.
func hashPrefix(h int32, data []byte, limit int) int32 {
	if len(data) > limit {
		data = data[:limit]
	}
	for _, b := range data {
		h = h*31 + int32(b)
	}
	return h
}
