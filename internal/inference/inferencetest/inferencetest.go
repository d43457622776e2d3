// Package inferencetest provides scripted inference sessions for tests.
package inferencetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/ironsheep/ocrpipe/internal/inference"
)

// RunFunc computes a session's outputs.
type RunFunc func(ctx context.Context, inputs map[string]*inference.Tensor) (map[string]*inference.Tensor, error)

// Session is a scripted inference.Session that records how it was used.
type Session struct {
	Inputs  []string
	Outputs []string
	Fn      RunFunc

	runs     atomic.Int64
	released atomic.Bool
	mu       sync.Mutex
	shapes   [][]int64
}

// NewSession returns a session with one input and one output.
func NewSession(input, output string, fn RunFunc) *Session {
	return &Session{Inputs: []string{input}, Outputs: []string{output}, Fn: fn}
}

// Run records the first input's shape and calls Fn.
func (s *Session) Run(ctx context.Context, inputs map[string]*inference.Tensor) (map[string]*inference.Tensor, error) {
	if s.released.Load() {
		return nil, errors.New("session released")
	}
	s.runs.Add(1)
	if len(s.Inputs) > 0 {
		if t, ok := inputs[s.Inputs[0]]; ok {
			s.mu.Lock()
			s.shapes = append(s.shapes, append([]int64(nil), t.Shape...))
			s.mu.Unlock()
		}
	}
	if s.Fn == nil {
		return map[string]*inference.Tensor{}, nil
	}
	return s.Fn(ctx, inputs)
}

func (s *Session) InputNames() []string  { return s.Inputs }
func (s *Session) OutputNames() []string { return s.Outputs }

// Release marks the session released.
func (s *Session) Release() error {
	s.released.Store(true)
	return nil
}

// Runs returns the number of Run calls.
func (s *Session) Runs() int { return int(s.runs.Load()) }

// Released reports whether Release was called.
func (s *Session) Released() bool { return s.released.Load() }

// InputShapes returns the recorded shapes of the first input, in call order.
func (s *Session) InputShapes() [][]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]int64(nil), s.shapes...)
}

// Loader hands out sessions keyed by the model bytes' string value.
type Loader struct {
	mu       sync.Mutex
	Sessions map[string]inference.Session
	Err      error
	loads    int
}

// NewLoader returns a loader serving the given model-to-session mapping.
func NewLoader(sessions map[string]inference.Session) *Loader {
	return &Loader{Sessions: sessions}
}

// Load returns the session registered for model.
func (l *Loader) Load(ctx context.Context, model []byte) (inference.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads++
	if l.Err != nil {
		return nil, l.Err
	}
	s, ok := l.Sessions[string(model)]
	if !ok {
		return nil, errors.New("unknown model")
	}
	return s, nil
}

// Loads returns the number of Load calls.
func (l *Loader) Loads() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads
}
