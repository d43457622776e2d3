//go:build !cgo

package ocr

import (
	"context"
	"errors"
	"image"

	"github.com/ironsheep/ocrpipe/internal/recognition"
)

// ErrTesseractUnavailable is returned when the binary was built without cgo.
var ErrTesseractUnavailable = errors.New("tesseract support requires a cgo build")

// Tesseract is unavailable in builds without cgo.
type Tesseract struct{}

// NewTesseract returns a recognizer whose calls fail with
// ErrTesseractUnavailable.
func NewTesseract(language, tessdataPrefix string) *Tesseract {
	return &Tesseract{}
}

func (t *Tesseract) Name() string {
	return "tesseract"
}

func (t *Tesseract) RecognizeLine(ctx context.Context, line image.Image) (recognition.Decoded, error) {
	return recognition.Decoded{}, ErrTesseractUnavailable
}

// EngineInfo describes the Tesseract installation.
type EngineInfo struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
	Backend   string `json:"backend"`
}

// TesseractInfo reports that Tesseract is not compiled in.
func TesseractInfo() EngineInfo {
	return EngineInfo{Available: false, Error: ErrTesseractUnavailable.Error(), Backend: "none"}
}
