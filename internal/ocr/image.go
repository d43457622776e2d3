package ocr

import (
	"errors"
	"image"

	"github.com/ironsheep/ocrpipe/internal/cache"
	apperrors "github.com/ironsheep/ocrpipe/internal/errors"
	"github.com/ironsheep/ocrpipe/internal/imaging"
)

// Image is pipeline input: either raw encoded bytes or a decoded image.
type Image struct {
	data    []byte
	decoded image.Image
}

// FromBytes wraps encoded image bytes (PNG, JPEG, GIF, BMP, TIFF, WebP).
func FromBytes(data []byte) Image {
	return Image{data: data}
}

// FromImage wraps an already decoded image. Boxes found in it are relative
// to its top-left corner, whatever its bounds.
func FromImage(img image.Image) Image {
	return Image{decoded: img}
}

// Fingerprint returns the cache key of the image content. Encoded input is
// keyed by its bytes, decoded input by its pixels.
func (i Image) Fingerprint() string {
	if i.decoded != nil {
		return cache.ImageFingerprint(i.decoded)
	}
	return cache.Fingerprint(i.data)
}

// decode returns the image with bounds starting at (0,0), the frame every
// box is reported in.
func (i Image) decode(proc imaging.Processor) (image.Image, error) {
	if i.decoded != nil {
		return imaging.AtOrigin(i.decoded), nil
	}
	if len(i.data) == 0 {
		return nil, apperrors.NewInvalidImageError(errors.New("no image data"))
	}
	img, err := proc.Decode(i.data)
	if err != nil {
		return nil, apperrors.NewInvalidImageError(err)
	}
	return imaging.AtOrigin(img), nil
}
