package detection

import (
	"image"
	"math"

	"github.com/ironsheep/ocrpipe/internal/imaging"
	"github.com/ironsheep/ocrpipe/internal/inference"
	"github.com/ironsheep/ocrpipe/internal/logging"
	"github.com/ironsheep/ocrpipe/internal/result"
)

// minBoxSide is the smallest width or height of a box in original-image
// pixels.
const minBoxSide = 5

// ProbabilityMap is the detection model output over the padded canvas.
type ProbabilityMap struct {
	Probs []float32
	Meta  Meta
}

// Gray renders the map as an 8-bit grayscale image.
func (m *ProbabilityMap) Gray() (*image.Gray, error) {
	return imaging.GrayFromProbabilities(m.Probs, m.Meta.PaddedWidth, m.Meta.PaddedHeight)
}

// MapFromTensor extracts a probability map from a model output shaped
// [1,1,H,W], [1,H,W] or [H,W]. A shape that does not agree with meta is
// logged; the data is still used when its length matches the padded canvas.
func MapFromTensor(t *inference.Tensor, meta Meta, log *logging.Logger) *ProbabilityMap {
	want := meta.PaddedWidth * meta.PaddedHeight
	if n := len(t.Shape); n >= 2 {
		h, w := t.Shape[n-2], t.Shape[n-1]
		if int(h) != meta.PaddedHeight || int(w) != meta.PaddedWidth {
			log.Warn("Detection output shape does not match input canvas",
				"shape", t.Shape, "padded_width", meta.PaddedWidth, "padded_height", meta.PaddedHeight)
		}
	}
	probs := t.Data
	if len(probs) > want {
		probs = probs[:want]
	}
	return &ProbabilityMap{Probs: probs, Meta: meta}
}

// Postprocessor converts probability maps into text boxes.
type Postprocessor struct {
	proc imaging.Processor
	opts Options
	log  *logging.Logger
}

// NewPostprocessor returns a Postprocessor using proc for binarization and
// contour extraction.
func NewPostprocessor(proc imaging.Processor, opts Options, log *logging.Logger) *Postprocessor {
	return &Postprocessor{proc: proc, opts: opts.withDefaults(), log: log}
}

// Boxes extracts text boxes from m in original-image coordinates. The result
// is unordered. A map whose size does not match its canvas yields no boxes.
func (p *Postprocessor) Boxes(m *ProbabilityMap) []result.Box {
	meta := m.Meta
	if len(m.Probs) != meta.PaddedWidth*meta.PaddedHeight {
		p.log.Warn("Probability map size mismatch",
			"values", len(m.Probs), "padded_width", meta.PaddedWidth, "padded_height", meta.PaddedHeight)
		return nil
	}
	if meta.Ratio <= 0 {
		p.log.Warn("Invalid resize ratio", "ratio", meta.Ratio)
		return nil
	}

	gray, err := m.Gray()
	if err != nil {
		p.log.Warn("Failed to render probability map", "error", err)
		return nil
	}
	bin := p.proc.Threshold(gray, binarizeLevel(p.opts.BinarizeThreshold))

	boxes := make([]result.Box, 0)
	for _, c := range p.proc.FindContours(bin) {
		r := c.BoundingRect()
		if r.Dx()*r.Dy() <= p.opts.MinimumAreaThreshold {
			continue
		}
		if box, ok := p.mapBox(r, meta); ok {
			boxes = append(boxes, box)
		}
	}

	p.log.Debug("Extracted text boxes", "count", len(boxes))
	return boxes
}

// mapBox pads r, clamps it to the canvas, rescales it into the original image
// and clamps again.
func (p *Postprocessor) mapBox(r image.Rectangle, meta Meta) (result.Box, bool) {
	h := float64(r.Dy())
	padV := int(math.Round(h * p.opts.PaddingVertical))
	padH := int(math.Round(h * p.opts.PaddingHorizontal))

	x0 := clamp(r.Min.X-padH, 0, meta.PaddedWidth)
	y0 := clamp(r.Min.Y-padV, 0, meta.PaddedHeight)
	x1 := clamp(r.Max.X+padH, 0, meta.PaddedWidth)
	y1 := clamp(r.Max.Y+padV, 0, meta.PaddedHeight)

	// Origin and size are rescaled independently, then clipped.
	scale := func(v int) int { return int(math.Round(float64(v) / meta.Ratio)) }
	ox, oy := scale(x0), scale(y0)
	ow, oh := scale(x1-x0), scale(y1-y0)

	ox0 := clamp(ox, 0, meta.OriginalWidth)
	oy0 := clamp(oy, 0, meta.OriginalHeight)
	ox1 := clamp(ox+ow, 0, meta.OriginalWidth)
	oy1 := clamp(oy+oh, 0, meta.OriginalHeight)

	box := result.Box{X: ox0, Y: oy0, Width: ox1 - ox0, Height: oy1 - oy0}
	if box.Width < minBoxSide || box.Height < minBoxSide {
		return result.Box{}, false
	}
	return box, true
}

// binarizeLevel converts a probability threshold into the gray level that
// pixels must exceed.
func binarizeLevel(threshold float64) uint8 {
	v := math.Round(threshold * 255)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
