package imaging

import (
	"fmt"
	"image"
	"math"
)

// GrayFromProbabilities renders a row-major probability map (values in
// [0,1]) as an 8-bit grayscale image: value = round(p * 255), clamped.
func GrayFromProbabilities(probs []float32, width, height int) (*image.Gray, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid map dimensions %dx%d", width, height)
	}
	if len(probs) < width*height {
		return nil, fmt.Errorf("probability map has %d values, need %d", len(probs), width*height)
	}

	gray := image.NewGray(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		v := math.Round(float64(probs[i]) * 255)
		if v < 0 || math.IsNaN(v) {
			v = 0
		} else if v > 255 {
			v = 255
		}
		gray.Pix[i] = uint8(v)
	}
	return gray, nil
}

// OtsuLevel returns the threshold that maximizes the between-class variance
// of gray's histogram. Pixels strictly above the level are foreground.
func OtsuLevel(gray *image.Gray) uint8 {
	var hist [256]int
	b := gray.Bounds()
	for y := 0; y < b.Dy(); y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+b.Dx()]
		for _, v := range row {
			hist[v]++
		}
	}

	total := b.Dx() * b.Dy()
	if total == 0 {
		return 0
	}

	var sum float64
	for i, c := range hist {
		sum += float64(i * c)
	}

	var sumB float64
	weightB := 0
	best := 0.0
	level := 0
	for t := 0; t < 256; t++ {
		weightB += hist[t]
		if weightB == 0 {
			continue
		}
		weightF := total - weightB
		if weightF == 0 {
			break
		}
		sumB += float64(t * hist[t])
		meanB := sumB / float64(weightB)
		meanF := (sum - sumB) / float64(weightF)
		between := float64(weightB) * float64(weightF) * (meanB - meanF) * (meanB - meanF)
		if between > best {
			best = between
			level = t
		}
	}
	return uint8(level)
}
