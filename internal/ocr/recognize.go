package ocr

import (
	"context"
	"image"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/ocrpipe/internal/detection"
	apperrors "github.com/ironsheep/ocrpipe/internal/errors"
	"github.com/ironsheep/ocrpipe/internal/layout"
	"github.com/ironsheep/ocrpipe/internal/logging"
	"github.com/ironsheep/ocrpipe/internal/recognition"
	"github.com/ironsheep/ocrpipe/internal/result"
)

// RecognizeOptions adjusts a single Recognize call.
type RecognizeOptions struct {
	// Dictionary overrides the pipeline dictionary for this call. Results
	// decoded with a custom dictionary are never cached.
	Dictionary []string

	// NoCache skips both cache lookup and cache storage.
	NoCache bool

	// AutoDeskew overrides the pipeline's deskew setting when non-nil. An
	// override that differs from the setting bypasses the cache.
	AutoDeskew *bool
}

// Recognize detects and reads every text box of img, grouped into lines in
// reading order.
//
// Detection or recognition failures produce an empty result rather than an
// error. With deskewing enabled, boxes are reported in the coordinates of
// the straightened image.
func (p *Pipeline) Recognize(ctx context.Context, img Image, opts RecognizeOptions) (*result.GroupedResult, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.state != StateInitialized {
		return nil, apperrors.NewNotInitializedError("Recognize")
	}

	log := p.log.With("call_id", uuid.NewString())

	dict := p.dictionary
	if opts.Dictionary != nil {
		if err := recognition.ValidateDictionary(opts.Dictionary); err != nil {
			return nil, err
		}
		dict = opts.Dictionary
	}

	autoDeskew := p.detectionOpt.AutoDeskew
	if opts.AutoDeskew != nil {
		autoDeskew = *opts.AutoDeskew
	}

	// Cached entries hold results for the pipeline's own dictionary and
	// deskew setting only.
	useCache := p.cache != nil && !opts.NoCache && opts.Dictionary == nil &&
		autoDeskew == p.detectionOpt.AutoDeskew
	var key string
	if useCache {
		key = img.Fingerprint()
		if cached, ok := p.cacheGet(ctx, key, log); ok {
			log.Debug("Cache hit", "fingerprint", key)
			return cached, nil
		}
	}

	src, err := img.decode(p.proc)
	if err != nil {
		return nil, err
	}

	boxes, src, err := p.detect(ctx, src, autoDeskew, log)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Error("Detection failed", "error", err)
		return result.Empty(), nil
	}

	results := p.recognizeBoxes(ctx, src, boxes, dict, log)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	grouped := layout.Assemble(results)
	log.Info("Recognized image",
		"boxes", len(boxes),
		"results", len(results),
		"lines", len(grouped.Lines),
		"confidence", grouped.Confidence)

	if useCache {
		p.cacheSet(ctx, key, grouped, log)
	}
	return grouped, nil
}

// RecognizeFlat is Recognize with the line structure removed.
func (p *Pipeline) RecognizeFlat(ctx context.Context, img Image, opts RecognizeOptions) (*result.FlattenedResult, error) {
	grouped, err := p.Recognize(ctx, img, opts)
	if err != nil {
		return nil, err
	}
	return grouped.Flatten(), nil
}

// Detect returns the text boxes of img without recognizing them.
func (p *Pipeline) Detect(ctx context.Context, img Image) ([]result.Box, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.state != StateInitialized {
		return nil, apperrors.NewNotInitializedError("Detect")
	}

	src, err := img.decode(p.proc)
	if err != nil {
		return nil, err
	}
	return p.detector.Detect(ctx, p.detSession, src)
}

// DeskewImage returns img rotated so its text lines are horizontal.
func (p *Pipeline) DeskewImage(ctx context.Context, img Image) (image.Image, error) {
	rotated, _, err := p.Deskew(ctx, img)
	return rotated, err
}

// Deskew is DeskewImage that also reports the skew estimate used.
func (p *Pipeline) Deskew(ctx context.Context, img Image) (image.Image, detection.SkewEstimate, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.state != StateInitialized {
		return nil, detection.SkewEstimate{}, apperrors.NewNotInitializedError("DeskewImage")
	}

	src, err := img.decode(p.proc)
	if err != nil {
		return nil, detection.SkewEstimate{}, err
	}

	log := p.log.With("call_id", uuid.NewString())
	return p.deskew(ctx, src, log)
}

// deskew estimates the skew of src from one detection pass and rotates src
// by the opposite angle. Callers hold p.mu.
func (p *Pipeline) deskew(ctx context.Context, src image.Image, log *logging.Logger) (image.Image, detection.SkewEstimate, error) {
	m, err := p.detector.ProbabilityMap(ctx, p.detSession, src)
	if err != nil {
		return nil, detection.SkewEstimate{}, err
	}
	gray, err := m.Gray()
	if err != nil {
		return nil, detection.SkewEstimate{}, apperrors.NewDetectionFailedError("skew", err)
	}
	est := p.skew.Estimate(gray)
	log.Debug("Deskewing", "angle", est.Angle, "regions", est.Regions)
	if est.Angle == 0 {
		return src, est, nil
	}
	return p.proc.Rotate(src, -est.Angle), est, nil
}

// detect returns the boxes of src and the image they refer to, which is a
// straightened copy of src when autoDeskew is set. Callers hold p.mu.
func (p *Pipeline) detect(ctx context.Context, src image.Image, autoDeskew bool, log *logging.Logger) ([]result.Box, image.Image, error) {
	if autoDeskew {
		rotated, _, err := p.deskew(ctx, src, log)
		if err != nil {
			return nil, nil, err
		}
		src = rotated
	}

	boxes, err := p.detector.Detect(ctx, p.detSession, src)
	if err != nil {
		return nil, nil, err
	}
	log.Debug("Detected boxes", "count", len(boxes))
	return boxes, src, nil
}

// recognizeBoxes reads every box concurrently. Boxes that fail are logged
// and left out. Callers hold p.mu.
func (p *Pipeline) recognizeBoxes(ctx context.Context, src image.Image, boxes []result.Box, dict []string, log *logging.Logger) []result.RecognitionResult {
	if len(boxes) == 0 {
		return nil
	}

	type outcome struct {
		res result.RecognitionResult
		ok  bool
	}
	outcomes := make([]outcome, len(boxes))

	var g errgroup.Group
	g.SetLimit(p.recognizer.Options().Concurrency)
	for i, box := range boxes {
		i, box := i, box
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			res, err := p.recognizeBox(ctx, src, box, dict)
			if err != nil {
				log.Warn("Dropping box", "box", box, "error", err)
				return nil
			}
			outcomes[i] = outcome{res: res, ok: true}
			return nil
		})
	}
	g.Wait()

	results := make([]result.RecognitionResult, 0, len(boxes))
	for _, o := range outcomes {
		if o.ok {
			results = append(results, o.res)
		}
	}
	return results
}

func (p *Pipeline) recognizeBox(ctx context.Context, src image.Image, box result.Box, dict []string) (result.RecognitionResult, error) {
	if p.engine == nil {
		return p.recognizer.Recognize(ctx, p.recSession, src, box, dict)
	}

	if box.Empty() {
		return result.RecognitionResult{}, apperrors.NewInvalidCropError(box.Width, box.Height)
	}
	line, err := p.proc.Crop(src, box.Rect())
	if err != nil {
		return result.RecognitionResult{}, err
	}
	decoded, err := p.engine.RecognizeLine(ctx, line)
	if err != nil {
		return result.RecognitionResult{}, apperrors.NewRecognitionFailedError(p.engine.Name(), err)
	}
	return result.RecognitionResult{Text: decoded.Text, Box: box, Confidence: decoded.Confidence}, nil
}

func (p *Pipeline) cacheGet(ctx context.Context, key string, log *logging.Logger) (*result.GroupedResult, bool) {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()

	res, ok, err := p.cache.Get(ctx, key)
	if err != nil {
		log.Warn("Cache lookup failed", "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return res.Clone(), true
}

func (p *Pipeline) cacheSet(ctx context.Context, key string, res *result.GroupedResult, log *logging.Logger) {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()

	if err := p.cache.Set(ctx, key, res.Clone()); err != nil {
		log.Warn("Cache store failed", "error", err)
	}
}
