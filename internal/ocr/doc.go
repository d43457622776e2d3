// Package ocr composes detection, recognition and layout into a text
// recognition pipeline.
//
// # Lifecycle
//
// A Pipeline starts uninitialized. Initialize loads the detection model, the
// recognition model and the dictionary; Destroy releases them for good.
// Every other operation fails with a not-initialized error outside the
// initialized state.
//
//	p := ocr.New(ocr.Config{Loader: loader}, ocr.Sources{
//		DetectionModel:   det,
//		RecognitionModel: rec,
//		Dictionary:       dict,
//	})
//	if err := p.Initialize(ctx); err != nil {
//		return err
//	}
//	defer p.Destroy()
//
//	res, err := p.Recognize(ctx, ocr.FromBytes(png), ocr.RecognizeOptions{})
//
// # Recognition
//
// Recognize runs detection, optionally preceded by a deskew pass that
// rotates the whole image, then recognizes every box concurrently. A box
// that fails is logged and dropped without affecting the others. Results
// are ordered into lines by the layout package.
//
// # Caching
//
// Results are cached by a fingerprint of the input. A call with a custom
// dictionary or NoCache neither reads nor writes the cache.
//
// # Engines
//
// Boxes are recognized with the CTC recognition model by default. A
// LineRecognizer such as Tesseract can replace it; Tesseract needs a cgo
// build and the Tesseract libraries:
//   - Ubuntu/Debian: apt-get install tesseract-ocr libtesseract-dev
//   - macOS: brew install tesseract
package ocr
