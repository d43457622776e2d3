package recognition

import (
	"fmt"
	"strings"

	"github.com/ironsheep/ocrpipe/internal/inference"
	"github.com/ironsheep/ocrpipe/internal/logging"
)

// blankClass is the CTC blank symbol.
const blankClass = 0

// Decoded is the text of one recognized line.
type Decoded struct {
	Text       string
	Confidence float64
}

// Decoder performs greedy CTC decoding of recognition logits.
type Decoder struct {
	log *logging.Logger
}

// NewDecoder returns a Decoder.
func NewDecoder(log *logging.Logger) *Decoder {
	return &Decoder{log: log}
}

// DecodeTensor decodes logits shaped [1,T,C] or [T,C].
func (d *Decoder) DecodeTensor(t *inference.Tensor, dict []string) (Decoded, error) {
	var steps, classes int
	switch len(t.Shape) {
	case 2:
		steps, classes = int(t.Shape[0]), int(t.Shape[1])
	case 3:
		if t.Shape[0] != 1 {
			return Decoded{}, fmt.Errorf("unsupported batch size %d", t.Shape[0])
		}
		steps, classes = int(t.Shape[1]), int(t.Shape[2])
	default:
		return Decoded{}, fmt.Errorf("unsupported logits shape %v", t.Shape)
	}
	if len(t.Data) < steps*classes {
		return Decoded{}, fmt.Errorf("logits have %d values, shape %v needs %d", len(t.Data), t.Shape, steps*classes)
	}
	return d.Decode(t.Data, steps, classes, dict), nil
}

// Decode collapses the per-step argmax classes of logits (steps x classes,
// row-major) into text.
//
// Blanks and repeats of the previous step's class are skipped. The last
// dictionary index decodes to a space unless that entry is UnknownToken.
// Confidence is the mean of the kept steps' maxima, or 0 when nothing was
// kept.
func (d *Decoder) Decode(logits []float32, steps, classes int, dict []string) Decoded {
	if classes != len(dict) {
		d.log.Warn("Model class count does not match dictionary",
			"classes", classes, "dictionary", len(dict))
	}
	if steps <= 0 || classes <= 0 {
		return Decoded{}
	}

	last := len(dict) - 1
	var sb strings.Builder
	var sum float64
	kept := 0
	prev := -1

	for t := 0; t < steps; t++ {
		row := logits[t*classes : (t+1)*classes]
		best, bestVal := 0, row[0]
		for c := 1; c < classes; c++ {
			if row[c] > bestVal {
				best, bestVal = c, row[c]
			}
		}

		if best == blankClass || best == prev {
			prev = best
			continue
		}
		prev = best

		if best > last {
			d.log.Warn("Class index outside dictionary", "class", best, "dictionary", len(dict))
			continue
		}
		if best == last {
			if dict[last] != UnknownToken {
				sb.WriteByte(' ')
			}
		} else {
			sb.WriteString(dict[best])
		}
		sum += float64(bestVal)
		kept++
	}

	if kept == 0 {
		return Decoded{Text: sb.String()}
	}
	return Decoded{Text: sb.String(), Confidence: sum / float64(kept)}
}
