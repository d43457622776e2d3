// Package onnx runs models through ONNX Runtime.
//
// The runtime shared library is loaded once per process. Set its location with
// Options.LibraryPath (OCRPIPE_ONNXRUNTIME_LIB) when it is not on the default
// search path.
package onnx

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/ironsheep/ocrpipe/internal/inference"
)

// Options configures the runtime.
type Options struct {
	// LibraryPath is the onnxruntime shared library. Empty uses the default.
	LibraryPath string

	// IntraOpThreads limits each session's intra-op thread pool; 0 keeps the
	// runtime default.
	IntraOpThreads int
}

var (
	envOnce sync.Once
	envErr  error
)

func initEnvironment(libraryPath string) error {
	envOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if !ort.IsInitialized() {
			envErr = ort.InitializeEnvironment()
		}
	})
	return envErr
}

// Loader creates ONNX Runtime sessions.
type Loader struct {
	opts Options
}

// NewLoader initializes the runtime and returns a Loader.
func NewLoader(opts Options) (*Loader, error) {
	if err := initEnvironment(opts.LibraryPath); err != nil {
		return nil, fmt.Errorf("failed to initialize onnxruntime: %w", err)
	}
	return &Loader{opts: opts}, nil
}

var _ inference.Loader = (*Loader)(nil)

// Load parses model and opens a session over all its inputs and outputs.
func (l *Loader) Load(ctx context.Context, model []byte) (inference.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(model) == 0 {
		return nil, fmt.Errorf("empty model")
	}

	inputsInfo, outputsInfo, err := ort.GetInputOutputInfoWithONNXData(model)
	if err != nil {
		return nil, fmt.Errorf("failed to read model signature: %w", err)
	}
	inputNames := make([]string, len(inputsInfo))
	for i, info := range inputsInfo {
		inputNames[i] = info.Name
	}
	outputNames := make([]string, len(outputsInfo))
	for i, info := range outputsInfo {
		outputNames[i] = info.Name
	}

	var sessionOpts *ort.SessionOptions
	if l.opts.IntraOpThreads > 0 {
		sessionOpts, err = ort.NewSessionOptions()
		if err != nil {
			return nil, fmt.Errorf("failed to create session options: %w", err)
		}
		defer sessionOpts.Destroy()
		if err := sessionOpts.SetIntraOpNumThreads(l.opts.IntraOpThreads); err != nil {
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	s, err := ort.NewDynamicAdvancedSessionWithONNXData(model, inputNames, outputNames, sessionOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return inference.Serialized(&session{
		inner:   s,
		inputs:  inputNames,
		outputs: outputNames,
	}), nil
}

type session struct {
	inner   *ort.DynamicAdvancedSession
	inputs  []string
	outputs []string
}

func (s *session) InputNames() []string  { return s.inputs }
func (s *session) OutputNames() []string { return s.outputs }

func (s *session) Run(ctx context.Context, inputs map[string]*inference.Tensor) (map[string]*inference.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	in := make([]ort.Value, len(s.inputs))
	defer func() {
		for _, v := range in {
			if v != nil {
				v.Destroy()
			}
		}
	}()
	for i, name := range s.inputs {
		t, ok := inputs[name]
		if !ok {
			return nil, fmt.Errorf("missing input %q", name)
		}
		v, err := ort.NewTensor(ort.NewShape(t.Shape...), t.Data)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", name, err)
		}
		in[i] = v
	}

	// Nil outputs are allocated by the runtime.
	out := make([]ort.Value, len(s.outputs))
	defer func() {
		for _, v := range out {
			if v != nil {
				v.Destroy()
			}
		}
	}()
	if err := s.inner.Run(in, out); err != nil {
		return nil, fmt.Errorf("run failed: %w", err)
	}

	result := make(map[string]*inference.Tensor, len(out))
	for i, v := range out {
		ft, ok := v.(*ort.Tensor[float32])
		if !ok {
			continue
		}
		data := ft.GetData()
		shape := ft.GetShape()
		result[s.outputs[i]] = &inference.Tensor{
			Shape: append([]int64(nil), shape...),
			Data:  append([]float32(nil), data...),
		}
	}
	return result, nil
}

func (s *session) Release() error {
	return s.inner.Destroy()
}
