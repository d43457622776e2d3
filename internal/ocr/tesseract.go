//go:build cgo

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/ironsheep/ocrpipe/internal/recognition"
)

// Tesseract recognizes lines with the Tesseract engine through gosseract.
// A client is created per call, so one Tesseract serves concurrent callers.
type Tesseract struct {
	language       string
	tessdataPrefix string
}

// NewTesseract returns a line recognizer for the given Tesseract language
// code ("eng" when empty). tessdataPrefix overrides the training data
// directory when non-empty.
func NewTesseract(language, tessdataPrefix string) *Tesseract {
	if language == "" {
		language = "eng"
	}
	return &Tesseract{language: language, tessdataPrefix: tessdataPrefix}
}

// Name identifies the engine in logs and status output.
func (t *Tesseract) Name() string {
	return "tesseract"
}

// RecognizeLine reads line as a single text line. Confidence is the mean
// word confidence scaled to 0..1.
func (t *Tesseract) RecognizeLine(ctx context.Context, line image.Image) (recognition.Decoded, error) {
	if err := ctx.Err(); err != nil {
		return recognition.Decoded{}, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, line); err != nil {
		return recognition.Decoded{}, fmt.Errorf("failed to encode line image: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if t.tessdataPrefix != "" {
		if err := client.SetTessdataPrefix(t.tessdataPrefix); err != nil {
			return recognition.Decoded{}, fmt.Errorf("failed to set tessdata path: %w", err)
		}
	}
	if err := client.SetLanguage(t.language); err != nil {
		return recognition.Decoded{}, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		return recognition.Decoded{}, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return recognition.Decoded{}, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return recognition.Decoded{}, fmt.Errorf("OCR failed: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return recognition.Decoded{}, nil
	}

	// Text is still usable when word boxes are unavailable.
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return recognition.Decoded{Text: text}, nil
	}

	sum, n := 0.0, 0
	for _, box := range boxes {
		if box.Word == "" {
			continue
		}
		sum += box.Confidence / 100.0
		n++
	}
	if n == 0 {
		return recognition.Decoded{Text: text}, nil
	}
	return recognition.Decoded{Text: text, Confidence: sum / float64(n)}, nil
}

// EngineInfo describes the Tesseract installation.
type EngineInfo struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
	Backend   string `json:"backend"`
}

// TesseractInfo reports whether Tesseract can be used.
func TesseractInfo() EngineInfo {
	client := gosseract.NewClient()
	defer client.Close()

	version := client.Version()
	if version == "" {
		return EngineInfo{Available: false, Error: "tesseract version unavailable", Backend: "gosseract"}
	}
	return EngineInfo{Available: true, Version: version, Backend: "gosseract"}
}
