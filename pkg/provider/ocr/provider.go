// Package ocr defines the Engine interface for screen text recognition
// backends.
//
// The screen loop hands each captured snapshot to an Engine and feeds the
// recognized text into context fusion. Recognition quality and model choice
// are the backend's concern; code and language detection happen downstream on
// the extracted text.
package ocr

import (
	"context"

	"github.com/auricle-ai/auricle/pkg/capture"
)

// Result is the outcome of one recognition call.
type Result struct {
	// Text is the recognized text, reading order top-to-bottom. Empty means
	// the frame contained no legible text; the caller skips it.
	Text string

	// Confidence is the mean recognition confidence (0.0–1.0). Backends that
	// report no confidence return 1.0.
	Confidence float64
}

// Engine is the abstraction over any OCR backend.
//
// Implementations must be safe for concurrent use.
type Engine interface {
	// Recognize extracts text from one screen snapshot. Returns an error on
	// backend failure; an empty Result.Text with nil error means no text was
	// found.
	Recognize(ctx context.Context, frame capture.ScreenFrame) (Result, error)
}
