package detection

import (
	"fmt"
	"image"
	"math"

	"github.com/anthonynsimon/bild/clone"

	"github.com/ironsheep/ocrpipe/internal/imaging"
	"github.com/ironsheep/ocrpipe/internal/inference"
)

// Meta records how an image was mapped onto the model input canvas.
type Meta struct {
	PaddedWidth    int
	PaddedHeight   int
	Ratio          float64 // resized side / original side
	OriginalWidth  int
	OriginalHeight int
}

// Preprocess scales, pads and normalizes img into a [1,3,H,W] tensor.
func Preprocess(proc imaging.Processor, img image.Image, opts Options) (*inference.Tensor, Meta, error) {
	opts = opts.withDefaults()

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, Meta{}, fmt.Errorf("image has no pixels (%dx%d)", w, h)
	}

	ratio := 1.0
	longer := w
	if h > longer {
		longer = h
	}
	if longer > opts.MaxSideLength {
		ratio = float64(opts.MaxSideLength) / float64(longer)
	}

	resizedW := maxInt(1, int(math.Round(float64(w)*ratio)))
	resizedH := maxInt(1, int(math.Round(float64(h)*ratio)))
	paddedW := roundUp32(resizedW)
	paddedH := roundUp32(resizedH)

	scaled := img
	if resizedW != w || resizedH != h {
		scaled = proc.Resize(img, resizedW, resizedH)
	}
	padded := clone.AsRGBA(proc.Pad(scaled, paddedW, paddedH))

	plane := paddedW * paddedH
	data := make([]float32, 3*plane)
	var scale, offset [3]float32
	for c := 0; c < 3; c++ {
		scale[c] = float32(1 / (255 * opts.Std[c]))
		offset[c] = float32(opts.Mean[c] / opts.Std[c])
	}
	for y := 0; y < paddedH; y++ {
		row := padded.Pix[y*padded.Stride:]
		for x := 0; x < paddedW; x++ {
			i := y*paddedW + x
			px := row[x*4 : x*4+3]
			data[i] = float32(px[0])*scale[0] - offset[0]
			data[plane+i] = float32(px[1])*scale[1] - offset[1]
			data[2*plane+i] = float32(px[2])*scale[2] - offset[2]
		}
	}

	tensor := &inference.Tensor{
		Shape: []int64{1, 3, int64(paddedH), int64(paddedW)},
		Data:  data,
	}
	meta := Meta{
		PaddedWidth:    paddedW,
		PaddedHeight:   paddedH,
		Ratio:          ratio,
		OriginalWidth:  w,
		OriginalHeight: h,
	}
	return tensor, meta, nil
}

func roundUp32(v int) int {
	return (v + 31) / 32 * 32
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
