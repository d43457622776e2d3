// Package errors defines the coded error type shared by the OCR pipeline.
//
// Every error carries an ErrorCode so callers can branch with errors.Is
// against the sentinel values below, whatever message or cause is attached.
package errors

import (
	"fmt"
)

// ErrorCode classifies pipeline failures.
type ErrorCode string

const (
	// Lifecycle errors
	ErrorNotInitialized ErrorCode = "NOT_INITIALIZED"
	ErrorModelLoad      ErrorCode = "MODEL_LOAD_FAILED"

	// Input errors
	ErrorInvalidDictionary ErrorCode = "INVALID_DICTIONARY"
	ErrorInvalidCrop       ErrorCode = "INVALID_CROP"
	ErrorInvalidImage      ErrorCode = "INVALID_IMAGE"

	// Inference errors
	ErrorDetectionFailed   ErrorCode = "DETECTION_FAILED"
	ErrorRecognitionFailed ErrorCode = "RECOGNITION_FAILED"
)

// OCRError is a structured pipeline error.
type OCRError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Cause   error
}

func (e *OCRError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *OCRError) Unwrap() error {
	return e.Cause
}

// Is matches any OCRError with the same code, so errors.Is(err,
// ErrInvalidCrop) holds for every invalid-crop error regardless of message.
func (e *OCRError) Is(target error) bool {
	t, ok := target.(*OCRError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrNotInitialized    = &OCRError{Code: ErrorNotInitialized, Message: "pipeline is not initialized"}
	ErrModelLoad         = &OCRError{Code: ErrorModelLoad, Message: "model load failed"}
	ErrInvalidDictionary = &OCRError{Code: ErrorInvalidDictionary, Message: "invalid dictionary"}
	ErrInvalidCrop       = &OCRError{Code: ErrorInvalidCrop, Message: "invalid crop"}
	ErrInvalidImage      = &OCRError{Code: ErrorInvalidImage, Message: "invalid image"}
	ErrDetectionFailed   = &OCRError{Code: ErrorDetectionFailed, Message: "detection failed"}
	ErrRecognitionFailed = &OCRError{Code: ErrorRecognitionFailed, Message: "recognition failed"}
)

// Factory functions for common errors

func NewNotInitializedError(operation string) *OCRError {
	return &OCRError{
		Code:    ErrorNotInitialized,
		Message: fmt.Sprintf("%s called on a pipeline that is not initialized", operation),
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

func NewModelLoadError(resource string, cause error) *OCRError {
	return &OCRError{
		Code:    ErrorModelLoad,
		Message: fmt.Sprintf("failed to load %s", resource),
		Details: map[string]interface{}{
			"resource": resource,
		},
		Cause: cause,
	}
}

func NewInvalidDictionaryError(reason string) *OCRError {
	return &OCRError{
		Code:    ErrorInvalidDictionary,
		Message: reason,
	}
}

func NewInvalidCropError(width, height int) *OCRError {
	return &OCRError{
		Code:    ErrorInvalidCrop,
		Message: fmt.Sprintf("crop has zero extent (%dx%d)", width, height),
		Details: map[string]interface{}{
			"width":  width,
			"height": height,
		},
	}
}

func NewInvalidImageError(cause error) *OCRError {
	return &OCRError{
		Code:    ErrorInvalidImage,
		Message: "image could not be decoded",
		Cause:   cause,
	}
}

func NewDetectionFailedError(stage string, cause error) *OCRError {
	return &OCRError{
		Code:    ErrorDetectionFailed,
		Message: fmt.Sprintf("detection failed during %s", stage),
		Details: map[string]interface{}{
			"stage": stage,
		},
		Cause: cause,
	}
}

func NewRecognitionFailedError(stage string, cause error) *OCRError {
	return &OCRError{
		Code:    ErrorRecognitionFailed,
		Message: fmt.Sprintf("recognition failed during %s", stage),
		Details: map[string]interface{}{
			"stage": stage,
		},
		Cause: cause,
	}
}

// ToMap converts the error to a map for JSON error payloads.
func (e *OCRError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
