package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"

	apperrors "github.com/ironsheep/ocrpipe/internal/errors"
)

// EncodedImage contains a PNG-encoded image ready to be returned to a client.
type EncodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// CropRegion extracts r from img. r is clipped to the image bounds first; an
// empty result is an INVALID_CROP error. The returned image's bounds start at
// (0,0).
func CropRegion(img image.Image, r image.Rectangle) (image.Image, error) {
	clipped := r.Intersect(img.Bounds())
	if clipped.Dx() <= 0 || clipped.Dy() <= 0 {
		return nil, apperrors.NewInvalidCropError(clipped.Dx(), clipped.Dy())
	}
	return imaging.Crop(img, clipped), nil
}

// AtOrigin returns img with bounds starting at (0,0). Images that already
// start there are returned unchanged; others are copied.
func AtOrigin(img image.Image) image.Image {
	if img.Bounds().Min == (image.Point{}) {
		return img
	}
	return imaging.Clone(img)
}

// EncodePNG encodes img as base64 PNG, optionally scaled first.
func EncodePNG(img image.Image, scale float64) (*EncodedImage, error) {
	if scale != 1.0 && scale > 0 {
		newWidth := int(float64(img.Bounds().Dx()) * scale)
		newHeight := int(float64(img.Bounds().Dy()) * scale)
		if newWidth > 0 && newHeight > 0 {
			img = imaging.Resize(img, newWidth, newHeight, imaging.Lanczos)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &EncodedImage{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}
