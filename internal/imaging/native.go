package imaging

import (
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/segment"
	"github.com/disintegration/imaging"
)

// Native is the pure-Go Processor.
type Native struct{}

// NewNative returns the pure-Go Processor.
func NewNative() *Native {
	return &Native{}
}

var _ Processor = (*Native)(nil)

// Decode decodes PNG, JPEG, GIF, BMP, TIFF or WebP bytes.
func (n *Native) Decode(data []byte) (image.Image, error) {
	return DecodeBytes(data)
}

// Resize scales img with bilinear filtering.
func (n *Native) Resize(img image.Image, width, height int) image.Image {
	return imaging.Resize(img, width, height, imaging.Linear)
}

// Pad places img at the top-left of a black canvas.
func (n *Native) Pad(img image.Image, width, height int) image.Image {
	canvas := imaging.New(width, height, color.NRGBA{0, 0, 0, 255})
	return imaging.Paste(canvas, img, image.Pt(0, 0))
}

// Crop extracts r from img.
func (n *Native) Crop(img image.Image, r image.Rectangle) (image.Image, error) {
	return CropRegion(img, r)
}

// Rotate rotates clockwise by degrees, filling uncovered areas with white.
func (n *Native) Rotate(img image.Image, degrees float64) image.Image {
	if degrees == 0 {
		return img
	}
	// imaging rotates counter-clockwise for positive angles.
	return imaging.Rotate(img, -degrees, color.White)
}

// Threshold binarizes gray: 255 where gray > level.
func (n *Native) Threshold(gray *image.Gray, level uint8) *image.Gray {
	if level == 255 {
		return image.NewGray(gray.Bounds())
	}
	// bild keeps values >= level, so shift by one for a strict comparison.
	return segment.Threshold(gray, level+1)
}

// Otsu binarizes gray with Otsu's threshold.
func (n *Native) Otsu(gray *image.Gray) *image.Gray {
	return n.Threshold(gray, OtsuLevel(gray))
}

// FindContours returns the outer boundaries of 8-connected foreground regions.
func (n *Native) FindContours(bin *image.Gray) []Contour {
	return findContours(bin)
}

// MorphClose dilates then erodes with a rectangular kernel.
func (n *Native) MorphClose(bin *image.Gray, kernelWidth, kernelHeight int) *image.Gray {
	return erode(dilate(bin, kernelWidth, kernelHeight), kernelWidth, kernelHeight)
}

// HoughLinesP runs the probabilistic Hough transform.
func (n *Native) HoughLinesP(bin *image.Gray, params HoughParams) []Segment {
	return houghLinesP(bin, params)
}
