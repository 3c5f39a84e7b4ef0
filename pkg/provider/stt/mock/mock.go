// Package mock provides a test double for the stt.Transcriber interface.
//
// Script per-call results via Results (consumed in order) or set a single
// Result for every call; inspect the submitted audio via TranscribeCalls.
package mock

import (
	"context"
	"sync"

	"github.com/auricle-ai/auricle/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcriber.Transcribe.
type TranscribeCall struct {
	// PCM is a copy of the audio passed to Transcribe.
	PCM []byte

	// Cfg is the Config passed to Transcribe.
	Cfg stt.Config
}

// Transcriber is a mock implementation of stt.Transcriber.
type Transcriber struct {
	mu sync.Mutex

	// Results, if non-empty, are returned one per Transcribe call in order.
	// When the script runs out, the last result repeats.
	Results []stt.Result

	// Result is returned by every Transcribe call when Results is empty.
	Result stt.Result

	// TranscribeErr, if non-nil, is returned by every Transcribe call.
	TranscribeErr error

	// TranscribeCalls records every call to Transcribe in order.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call and returns the next scripted result (or
// Result) and TranscribeErr.
func (t *Transcriber) Transcribe(_ context.Context, pcm []byte, cfg stt.Config) (stt.Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	t.TranscribeCalls = append(t.TranscribeCalls, TranscribeCall{PCM: cp, Cfg: cfg})

	res := t.Result
	if n := len(t.Results); n > 0 {
		idx := len(t.TranscribeCalls) - 1
		if idx >= n {
			idx = n - 1
		}
		res = t.Results[idx]
	}
	return res, t.TranscribeErr
}

// Ensure Transcriber implements stt.Transcriber at compile time.
var _ stt.Transcriber = (*Transcriber)(nil)
