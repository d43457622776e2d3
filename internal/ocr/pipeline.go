package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/ironsheep/ocrpipe/internal/cache"
	"github.com/ironsheep/ocrpipe/internal/detection"
	apperrors "github.com/ironsheep/ocrpipe/internal/errors"
	"github.com/ironsheep/ocrpipe/internal/imaging"
	"github.com/ironsheep/ocrpipe/internal/inference"
	"github.com/ironsheep/ocrpipe/internal/logging"
	"github.com/ironsheep/ocrpipe/internal/recognition"
)

// State is the lifecycle state of a Pipeline.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// LineRecognizer reads the text of one cropped line image. When configured,
// it replaces the recognition model.
type LineRecognizer interface {
	Name() string
	RecognizeLine(ctx context.Context, line image.Image) (recognition.Decoded, error)
}

// Sources holds the raw resources loaded by Initialize.
type Sources struct {
	DetectionModel   []byte
	RecognitionModel []byte
	Dictionary       []byte
}

// Config wires a Pipeline's collaborators.
type Config struct {
	// Loader turns model bytes into inference sessions. Required.
	Loader inference.Loader

	// Processor defaults to the pure-Go implementation.
	Processor imaging.Processor

	// Detection defaults to detection.DefaultOptions when left zero. A
	// partly set value keeps its zero paddings; zero thresholds, mean and
	// side length take the defaults.
	Detection   detection.Options
	Recognition recognition.Options

	// Cache stores results by image fingerprint. Nil uses an in-memory LRU
	// of cache.DefaultCapacity entries; set DisableCache to run without one.
	Cache        cache.Store
	DisableCache bool

	// LineRecognizer, when set, recognizes boxes instead of the recognition
	// model. The recognition model and dictionary become optional.
	LineRecognizer LineRecognizer

	Logger *logging.Logger
}

// Pipeline detects and recognizes text in images.
//
// Recognize, Detect and Deskew run concurrently with each other. Initialize,
// the Change operations and Destroy wait for in-flight calls to finish.
type Pipeline struct {
	loader     inference.Loader
	proc       imaging.Processor
	detector   *detection.Detector
	skew       *detection.SkewEstimator
	recognizer *recognition.Recognizer
	engine     LineRecognizer
	log        *logging.Logger

	sources Sources

	mu           sync.RWMutex
	state        State
	detSession   inference.Session
	recSession   inference.Session
	dictionary   []string
	detectionOpt detection.Options

	cacheMu sync.Mutex
	cache   cache.Store
}

// New returns an uninitialized pipeline. Call Initialize before use.
func New(cfg Config, src Sources) *Pipeline {
	if cfg.Processor == nil {
		cfg.Processor = imaging.NewNative()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger("ocr")
	}
	if cfg.Detection == (detection.Options{}) {
		cfg.Detection = detection.DefaultOptions()
	}

	store := cfg.Cache
	if store == nil && !cfg.DisableCache {
		store = cache.NewLRU(cache.DefaultCapacity)
	}

	detector := detection.NewDetector(cfg.Processor, cfg.Detection, cfg.Logger)
	return &Pipeline{
		loader:       cfg.Loader,
		proc:         cfg.Processor,
		detector:     detector,
		skew:         detection.NewSkewEstimator(cfg.Processor, detector.Options().MinimumAreaThreshold, cfg.Logger),
		recognizer:   recognition.NewRecognizer(cfg.Processor, cfg.Recognition, cfg.Logger),
		engine:       cfg.LineRecognizer,
		log:          cfg.Logger,
		sources:      src,
		detectionOpt: detector.Options(),
		cache:        store,
	}
}

// Initialize loads the detection model, recognition model and dictionary.
// Calling it on an initialized pipeline does nothing; calling it after
// Destroy fails with a not-initialized error.
func (p *Pipeline) Initialize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateInitialized:
		return nil
	case StateDestroyed:
		return apperrors.NewNotInitializedError("Initialize")
	}

	if p.loader == nil {
		return apperrors.NewModelLoadError("detection model", errors.New("no model loader configured"))
	}

	det, err := p.loadSession(ctx, "detection model", p.sources.DetectionModel)
	if err != nil {
		return err
	}

	var rec inference.Session
	var dict []string
	if p.engine == nil || len(p.sources.RecognitionModel) > 0 {
		rec, err = p.loadSession(ctx, "recognition model", p.sources.RecognitionModel)
		if err != nil {
			det.Release()
			return err
		}
	}
	if p.engine == nil || len(p.sources.Dictionary) > 0 {
		dict, err = recognition.ParseDictionary(p.sources.Dictionary)
		if err != nil {
			det.Release()
			if rec != nil {
				rec.Release()
			}
			return err
		}
	}

	p.detSession = det
	p.recSession = rec
	p.dictionary = dict
	p.state = StateInitialized

	p.log.Info("Pipeline initialized",
		"dictionary_size", len(dict),
		"recognition_model", rec != nil,
		"engine", p.engineName())
	return nil
}

// IsInitialized reports whether the pipeline is ready for use.
func (p *Pipeline) IsInitialized() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state == StateInitialized
}

// State returns the lifecycle state.
func (p *Pipeline) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// ChangeDetectionModel replaces the detection model. The replacement is
// loaded before the current model is released, so a failed load leaves the
// pipeline unchanged.
func (p *Pipeline) ChangeDetectionModel(ctx context.Context, model []byte) error {
	if !p.IsInitialized() {
		return apperrors.NewNotInitializedError("ChangeDetectionModel")
	}
	next, err := p.loadSession(ctx, "detection model", model)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateInitialized {
		next.Release()
		return apperrors.NewNotInitializedError("ChangeDetectionModel")
	}
	prev := p.detSession
	p.detSession = next
	p.releaseSession("detection model", prev)

	p.log.Info("Detection model changed")
	return nil
}

// ChangeRecognitionModel replaces the recognition model.
func (p *Pipeline) ChangeRecognitionModel(ctx context.Context, model []byte) error {
	if !p.IsInitialized() {
		return apperrors.NewNotInitializedError("ChangeRecognitionModel")
	}
	next, err := p.loadSession(ctx, "recognition model", model)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateInitialized {
		next.Release()
		return apperrors.NewNotInitializedError("ChangeRecognitionModel")
	}
	prev := p.recSession
	p.recSession = next
	p.releaseSession("recognition model", prev)

	p.log.Info("Recognition model changed")
	return nil
}

// ChangeTextDictionary replaces the dictionary with newline-separated text.
func (p *Pipeline) ChangeTextDictionary(data []byte) error {
	if !p.IsInitialized() {
		return apperrors.NewNotInitializedError("ChangeTextDictionary")
	}
	dict, err := recognition.ParseDictionary(data)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateInitialized {
		return apperrors.NewNotInitializedError("ChangeTextDictionary")
	}
	p.dictionary = dict

	p.log.Info("Dictionary changed", "dictionary_size", len(dict))
	return nil
}

// Destroy releases both models. The pipeline cannot be used afterwards.
func (p *Pipeline) Destroy() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateInitialized {
		return apperrors.NewNotInitializedError("Destroy")
	}

	var errs []error
	if p.detSession != nil {
		if err := p.detSession.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release detection model: %w", err))
		}
	}
	if p.recSession != nil {
		if err := p.recSession.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release recognition model: %w", err))
		}
	}
	p.detSession = nil
	p.recSession = nil
	p.dictionary = nil
	p.state = StateDestroyed

	p.log.Info("Pipeline destroyed")
	return errors.Join(errs...)
}

// Status describes the pipeline for diagnostics.
type Status struct {
	State            string `json:"state"`
	DetectionModel   bool   `json:"detection_model"`
	RecognitionModel bool   `json:"recognition_model"`
	DictionarySize   int    `json:"dictionary_size"`
	Engine           string `json:"engine"`
	AutoDeskew       bool   `json:"auto_deskew"`
	CacheEnabled     bool   `json:"cache_enabled"`
}

// Status returns a snapshot of the pipeline's state.
func (p *Pipeline) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Status{
		State:            p.state.String(),
		DetectionModel:   p.detSession != nil,
		RecognitionModel: p.recSession != nil,
		DictionarySize:   len(p.dictionary),
		Engine:           p.engineName(),
		AutoDeskew:       p.detectionOpt.AutoDeskew,
		CacheEnabled:     p.cache != nil,
	}
}

func (p *Pipeline) engineName() string {
	if p.engine != nil {
		return p.engine.Name()
	}
	return "ctc"
}

func (p *Pipeline) loadSession(ctx context.Context, resource string, model []byte) (inference.Session, error) {
	if len(model) == 0 {
		return nil, apperrors.NewModelLoadError(resource, errors.New("model is empty"))
	}
	s, err := p.loader.Load(ctx, model)
	if err != nil {
		return nil, apperrors.NewModelLoadError(resource, err)
	}
	return inference.Serialized(s), nil
}

func (p *Pipeline) releaseSession(resource string, s inference.Session) {
	if s == nil {
		return
	}
	if err := s.Release(); err != nil {
		p.log.Warn("Failed to release session", "resource", resource, "error", err)
	}
}
