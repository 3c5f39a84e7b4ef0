// Package stt defines the Transcriber interface for Speech-to-Text backends.
//
// The pipeline owns utterance segmentation: by the time audio reaches a
// Transcriber it is one complete, finalized utterance of raw PCM. A
// Transcriber therefore exposes a single batch call rather than a streaming
// session — it receives the whole utterance and returns the whole text.
//
// Implementations must be safe for concurrent use: the pipeline serializes
// its own calls, but tests and future multi-stream setups may not.
package stt

import "context"

// Config describes the audio format and recognition hints for a
// transcription call.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Common value: 16000.
	SampleRate int

	// Channels is the number of audio channels. 1 = mono (required by most
	// backends; implementations may downmix internally).
	Channels int

	// Language is the language code for recognition (e.g., "en", "de"). An
	// empty string lets the backend auto-detect, if supported.
	Language string
}

// Result is the outcome of one transcription call.
type Result struct {
	// Text is the transcribed utterance, whitespace-trimmed. Empty means the
	// backend could not make out any words; the caller drops the utterance.
	Text string

	// Confidence is the backend's transcription confidence (0.0–1.0). Backends
	// that report no confidence return 1.0.
	Confidence float64
}

// Transcriber is the abstraction over any batch STT backend.
type Transcriber interface {
	// Transcribe converts one finalized utterance of raw 16-bit signed
	// little-endian PCM into text. Returns an error on backend failure; an
	// empty Result.Text with nil error means the audio contained no
	// recognizable speech.
	Transcribe(ctx context.Context, pcm []byte, cfg Config) (Result, error)
}
