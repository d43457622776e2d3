package detection

import (
	"context"
	"fmt"
	"image"

	apperrors "github.com/ironsheep/ocrpipe/internal/errors"
	"github.com/ironsheep/ocrpipe/internal/imaging"
	"github.com/ironsheep/ocrpipe/internal/inference"
	"github.com/ironsheep/ocrpipe/internal/logging"
	"github.com/ironsheep/ocrpipe/internal/result"
)

// Detector runs the detection model and postprocesses its output.
type Detector struct {
	proc imaging.Processor
	opts Options
	post *Postprocessor
	log  *logging.Logger
}

// NewDetector returns a Detector using proc for image operations.
func NewDetector(proc imaging.Processor, opts Options, log *logging.Logger) *Detector {
	opts = opts.withDefaults()
	return &Detector{
		proc: proc,
		opts: opts,
		post: NewPostprocessor(proc, opts, log),
		log:  log,
	}
}

// Options returns the detector's effective options.
func (d *Detector) Options() Options {
	return d.opts
}

// ProbabilityMap preprocesses img and runs it through session.
func (d *Detector) ProbabilityMap(ctx context.Context, session inference.Session, img image.Image) (*ProbabilityMap, error) {
	tensor, meta, err := Preprocess(d.proc, img, d.opts)
	if err != nil {
		return nil, apperrors.NewDetectionFailedError("preprocess", err)
	}

	inputName := d.opts.InputName
	if inputName == "" {
		names := session.InputNames()
		if len(names) == 0 {
			return nil, apperrors.NewDetectionFailedError("inference", fmt.Errorf("model has no inputs"))
		}
		inputName = names[0]
	}

	outputs, err := session.Run(ctx, map[string]*inference.Tensor{inputName: tensor})
	if err != nil {
		return nil, apperrors.NewDetectionFailedError("inference", err)
	}

	out, ok := inference.Output(outputs, session.OutputNames(), d.opts.OutputName)
	if out == nil {
		return nil, apperrors.NewDetectionFailedError("inference", fmt.Errorf("model returned no outputs"))
	}
	if !ok {
		d.log.Warn("Detection output not found, using first output", "output", d.opts.OutputName)
	}

	return MapFromTensor(out, meta, d.log), nil
}

// Detect returns the text boxes of img in original-image coordinates.
func (d *Detector) Detect(ctx context.Context, session inference.Session, img image.Image) ([]result.Box, error) {
	m, err := d.ProbabilityMap(ctx, session, img)
	if err != nil {
		return nil, err
	}
	return d.post.Boxes(m), nil
}

// Boxes postprocesses an existing probability map.
func (d *Detector) Boxes(m *ProbabilityMap) []result.Box {
	return d.post.Boxes(m)
}
