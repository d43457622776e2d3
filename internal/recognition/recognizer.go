package recognition

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

// Recognizer turns text boxes into text with the recognition model.
type Recognizer struct {
	proc    imaging.Processor
	opts    Options
	decoder *Decoder
	log     *logging.Logger
}

// NewRecognizer returns a Recognizer using proc for image operations.
func NewRecognizer(proc imaging.Processor, opts Options, log *logging.Logger) *Recognizer {
	return &Recognizer{
		proc:    proc,
		opts:    opts.withDefaults(),
		decoder: NewDecoder(log),
		log:     log,
	}
}

// Options returns the recognizer's effective options.
func (r *Recognizer) Options() Options {
	return r.opts
}

// Recognize reads the text inside box.
func (r *Recognizer) Recognize(ctx context.Context, session inference.Session, img image.Image, box result.Box, dict []string) (result.RecognitionResult, error) {
	tensor, err := Preprocess(r.proc, img, box, r.opts.ImageHeight)
	if err != nil {
		return result.RecognitionResult{}, err
	}
	decoded, err := r.run(ctx, session, tensor, dict)
	if err != nil {
		return result.RecognitionResult{}, err
	}
	return result.RecognitionResult{
		Text:       decoded.Text,
		Box:        box,
		Confidence: decoded.Confidence,
	}, nil
}

// RecognizeLine reads an already cropped line image.
func (r *Recognizer) RecognizeLine(ctx context.Context, session inference.Session, line image.Image, dict []string) (Decoded, error) {
	tensor, err := PreprocessLine(r.proc, line, r.opts.ImageHeight)
	if err != nil {
		return Decoded{}, err
	}
	return r.run(ctx, session, tensor, dict)
}

func (r *Recognizer) run(ctx context.Context, session inference.Session, tensor *inference.Tensor, dict []string) (Decoded, error) {
	inputName := r.opts.InputName
	if inputName == "" {
		names := session.InputNames()
		if len(names) == 0 {
			return Decoded{}, apperrors.NewRecognitionFailedError("inference", fmt.Errorf("model has no inputs"))
		}
		inputName = names[0]
	}

	outputs, err := session.Run(ctx, map[string]*inference.Tensor{inputName: tensor})
	if err != nil {
		return Decoded{}, apperrors.NewRecognitionFailedError("inference", err)
	}

	out, ok := inference.Output(outputs, session.OutputNames(), r.opts.OutputName)
	if out == nil {
		return Decoded{}, apperrors.NewRecognitionFailedError("inference", fmt.Errorf("model returned no outputs"))
	}
	if !ok {
		r.log.Warn("Recognition output not found, using first output", "output", r.opts.OutputName)
	}

	decoded, err := r.decoder.DecodeTensor(out, dict)
	if err != nil {
		return Decoded{}, apperrors.NewRecognitionFailedError("decode", err)
	}
	return decoded, nil
}
