package recognition

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/clone"

	apperrors "github.com/ironsheep/ocrpipe/internal/errors"
	"github.com/ironsheep/ocrpipe/internal/imaging"
	"github.com/ironsheep/ocrpipe/internal/inference"
	"github.com/ironsheep/ocrpipe/internal/result"
)

// minInputWidth is the narrowest crop the model accepts.
const minInputWidth = 8

// InputWidth returns the model input width for a crop of w x h at the given
// target height.
func InputWidth(w, h, height int) int {
	width := int(math.Round(float64(height) * float64(w) / float64(h)))
	if width < minInputWidth {
		return minInputWidth
	}
	return width
}

// Preprocess crops box out of img and converts it to a [1,3,H,W] tensor.
//
// Every channel carries the normalized red component, (red/255 - 0.5) / 0.5.
func Preprocess(proc imaging.Processor, img image.Image, box result.Box, height int) (*inference.Tensor, error) {
	if box.Empty() {
		return nil, apperrors.NewInvalidCropError(box.Width, box.Height)
	}
	crop, err := proc.Crop(img, box.Rect())
	if err != nil {
		return nil, err
	}
	return PreprocessLine(proc, crop, height)
}

// PreprocessLine converts an already cropped line image to a model tensor.
func PreprocessLine(proc imaging.Processor, line image.Image, height int) (*inference.Tensor, error) {
	b := line.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, apperrors.NewInvalidCropError(b.Dx(), b.Dy())
	}

	width := InputWidth(b.Dx(), b.Dy(), height)
	rgba := clone.AsRGBA(proc.Resize(line, width, height))

	plane := width * height
	data := make([]float32, 3*plane)
	for y := 0; y < height; y++ {
		row := rgba.Pix[y*rgba.Stride:]
		for x := 0; x < width; x++ {
			v := float32(row[x*4])/127.5 - 1
			i := y*width + x
			data[i] = v
			data[plane+i] = v
			data[2*plane+i] = v
		}
	}

	return &inference.Tensor{
		Shape: []int64{1, 3, int64(height), int64(width)},
		Data:  data,
	}, nil
}
