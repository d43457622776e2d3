// Package imaging provides the image-processing capability used by the OCR
// pipeline: decoding, geometric transforms, binarization, contour extraction,
// morphology and the probabilistic Hough transform.
//
// All operations work with standard Go image types and use a coordinate
// system where (0,0) is at the top-left corner, X increases rightward and Y
// increases downward. Rectangles follow image.Rectangle conventions: Min is
// inclusive, Max is exclusive.
//
// # Backends
//
// Processor abstracts the primitives so the pipeline can run on the pure-Go
// Native implementation (default) or on OpenCV through the cvproc package
// (build tag "gocv"). Binary images are *image.Gray where any non-zero pixel
// is foreground.
//
// # Thread Safety
//
// Native is stateless and safe for concurrent use. The ImageCache type in
// loader.go is safe for concurrent use.
package imaging

import (
	"image"
	"math"
)

// Processor is the image-processing capability consumed by the pipeline.
type Processor interface {
	// Decode decodes raw encoded bytes (PNG, JPEG, GIF, BMP, TIFF, WebP).
	Decode(data []byte) (image.Image, error)

	// Resize scales img to exactly width x height.
	Resize(img image.Image, width, height int) image.Image

	// Pad places img at the top-left corner of a black width x height canvas.
	// img is never scaled; parts outside the canvas are cut off.
	Pad(img image.Image, width, height int) image.Image

	// Crop extracts r from img. The result's bounds start at (0,0).
	Crop(img image.Image, r image.Rectangle) (image.Image, error)

	// Rotate rotates img by degrees around its center, clockwise as displayed
	// for positive angles. The canvas grows to hold the whole rotated image and
	// uncovered areas are filled white.
	Rotate(img image.Image, degrees float64) image.Image

	// Threshold returns a binary image: 255 where gray > level, else 0.
	Threshold(gray *image.Gray, level uint8) *image.Gray

	// Otsu binarizes gray with a threshold chosen by Otsu's method.
	Otsu(gray *image.Gray) *image.Gray

	// FindContours returns the outer contours of the foreground regions of bin.
	FindContours(bin *image.Gray) []Contour

	// MorphClose performs a morphological closing (dilate then erode) with a
	// kernelWidth x kernelHeight rectangular structuring element.
	MorphClose(bin *image.Gray, kernelWidth, kernelHeight int) *image.Gray

	// HoughLinesP finds line segments in bin with the probabilistic Hough
	// transform.
	HoughLinesP(bin *image.Gray, params HoughParams) []Segment
}

// HoughParams configures HoughLinesP.
type HoughParams struct {
	Rho           float64 // distance resolution in pixels
	Theta         float64 // angle resolution in radians
	Threshold     int     // minimum accumulator votes
	MinLineLength int     // minimum segment length
	MaxLineGap    int     // maximum gap between points on the same line
}

// DefaultHoughParams returns 1 px / 1 degree resolution with the given limits.
func DefaultHoughParams(threshold, minLineLength, maxLineGap int) HoughParams {
	return HoughParams{
		Rho:           1,
		Theta:         math.Pi / 180,
		Threshold:     threshold,
		MinLineLength: minLineLength,
		MaxLineGap:    maxLineGap,
	}
}

// Segment is a line segment. P1.X <= P2.X always holds.
type Segment struct {
	P1 image.Point
	P2 image.Point
}

// Length returns the Euclidean length of the segment.
func (s Segment) Length() float64 {
	dx := float64(s.P2.X - s.P1.X)
	dy := float64(s.P2.Y - s.P1.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// AngleDegrees returns atan2(dy, dx) in degrees, within [-90, 90].
func (s Segment) AngleDegrees() float64 {
	return math.Atan2(float64(s.P2.Y-s.P1.Y), float64(s.P2.X-s.P1.X)) * 180 / math.Pi
}

// orderSegment returns the segment with endpoints ordered left to right.
func orderSegment(a, b image.Point) Segment {
	if b.X < a.X || (b.X == a.X && b.Y < a.Y) {
		a, b = b, a
	}
	return Segment{P1: a, P2: b}
}
