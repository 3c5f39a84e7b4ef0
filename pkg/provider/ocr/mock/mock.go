// Package mock provides a test double for the ocr.Engine interface.
package mock

import (
	"context"
	"sync"

	"github.com/auricle-ai/auricle/pkg/capture"
	"github.com/auricle-ai/auricle/pkg/provider/ocr"
)

// RecognizeCall records a single invocation of Engine.Recognize.
type RecognizeCall struct {
	// Frame is the screen frame passed to Recognize.
	Frame capture.ScreenFrame
}

// Engine is a mock implementation of ocr.Engine.
type Engine struct {
	mu sync.Mutex

	// Results, if non-empty, are returned one per Recognize call in order.
	// When the script runs out, the last result repeats.
	Results []ocr.Result

	// Result is returned by every Recognize call when Results is empty.
	Result ocr.Result

	// RecognizeErr, if non-nil, is returned by every Recognize call.
	RecognizeErr error

	// RecognizeCalls records every call to Recognize in order.
	RecognizeCalls []RecognizeCall
}

// Recognize records the call and returns the next scripted result (or Result)
// and RecognizeErr.
func (e *Engine) Recognize(_ context.Context, frame capture.ScreenFrame) (ocr.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.RecognizeCalls = append(e.RecognizeCalls, RecognizeCall{Frame: frame})

	res := e.Result
	if n := len(e.Results); n > 0 {
		idx := len(e.RecognizeCalls) - 1
		if idx >= n {
			idx = n - 1
		}
		res = e.Results[idx]
	}
	return res, e.RecognizeErr
}

// Ensure Engine implements ocr.Engine at compile time.
var _ ocr.Engine = (*Engine)(nil)
