package detection

import (
	"image"

	"github.com/ironsheep/ocrpipe/internal/imaging"
)

// Region is a candidate text region used by skew estimation.
type Region struct {
	Rect        image.Rectangle
	Points      []image.Point
	Area        float64
	AspectRatio float64 // Rect width / height
}

// regionsFromContours keeps contours with area at or above minArea and a
// bounding-rectangle aspect ratio strictly between 0.2 and 10, then drops
// regions taller than 1.5 times the mean height of those kept.
func regionsFromContours(contours []imaging.Contour, minArea float64) []Region {
	regions := make([]Region, 0, len(contours))
	totalHeight := 0
	for _, c := range contours {
		r := c.BoundingRect()
		if r.Dy() == 0 || c.Area < minArea {
			continue
		}
		aspect := float64(r.Dx()) / float64(r.Dy())
		if aspect <= 0.2 || aspect >= 10 {
			continue
		}
		regions = append(regions, Region{
			Rect:        r,
			Points:      c.Points,
			Area:        c.Area,
			AspectRatio: aspect,
		})
		totalHeight += r.Dy()
	}
	if len(regions) == 0 {
		return regions
	}

	limit := 1.5 * float64(totalHeight) / float64(len(regions))
	kept := regions[:0]
	for _, r := range regions {
		if float64(r.Rect.Dy()) <= limit {
			kept = append(kept, r)
		}
	}
	return kept
}
