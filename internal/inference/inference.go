// Package inference defines the neural-network capability the OCR pipeline
// runs its detection and recognition models through.
//
// A Session is an opaque model: named float tensors in, named float tensors
// out. Loaders turn model bytes into sessions. The ONNX Runtime adapter lives
// in the onnx subpackage; tests use scripted sessions.
package inference

import (
	"context"
	"fmt"
	"sync"
)

// Tensor is a dense float32 tensor in row-major order.
type Tensor struct {
	Shape []int64
	Data  []float32
}

// NewTensor returns a tensor of the given shape backed by data.
// It fails when the element count does not match the shape.
func NewTensor(shape []int64, data []float32) (*Tensor, error) {
	n := int64(1)
	for _, d := range shape {
		if d < 0 {
			return nil, fmt.Errorf("negative dimension in shape %v", shape)
		}
		n *= d
	}
	if int64(len(data)) != n {
		return nil, fmt.Errorf("shape %v needs %d elements, got %d", shape, n, len(data))
	}
	return &Tensor{Shape: shape, Data: data}, nil
}

// Elements returns the element count implied by the shape.
func (t *Tensor) Elements() int64 {
	n := int64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Session runs one loaded model.
type Session interface {
	// Run feeds inputs by name and returns every model output by name.
	Run(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error)

	InputNames() []string
	OutputNames() []string

	// Release frees the native resources. The session is unusable afterwards.
	Release() error
}

// Loader creates sessions from serialized model bytes.
type Loader interface {
	Load(ctx context.Context, model []byte) (Session, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, model []byte) (Session, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, model []byte) (Session, error) {
	return f(ctx, model)
}

// Serialized wraps s so that Run calls never overlap. Runtimes that allow
// one in-flight run per session are safe behind it.
func Serialized(s Session) Session {
	if _, ok := s.(*serialized); ok {
		return s
	}
	return &serialized{inner: s}
}

type serialized struct {
	mu       sync.Mutex
	inner    Session
	released bool
}

func (s *serialized) Run(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil, fmt.Errorf("session released")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.inner.Run(ctx, inputs)
}

func (s *serialized) InputNames() []string  { return s.inner.InputNames() }
func (s *serialized) OutputNames() []string { return s.inner.OutputNames() }

// Release waits for an in-flight Run to finish before freeing the session.
func (s *serialized) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil
	}
	s.released = true
	return s.inner.Release()
}

// Output picks the tensor named name from outputs. When name is empty or
// missing, the first output in names order is used; ok reports whether the
// named tensor was found.
func Output(outputs map[string]*Tensor, names []string, name string) (t *Tensor, ok bool) {
	if name != "" {
		if t, found := outputs[name]; found {
			return t, true
		}
	}
	for _, n := range names {
		if t, found := outputs[n]; found {
			return t, name == ""
		}
	}
	for _, t := range outputs {
		return t, false
	}
	return nil, false
}
