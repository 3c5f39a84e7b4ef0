// Package vad defines the Engine interface for Voice Activity Detection backends.
//
// A VAD engine wraps a frame-level speech detector and surfaces it as a
// stateful per-stream session. Each session tracks whether it is currently
// inside a speech segment so it can report start/continue/end transitions,
// which is what the utterance finalizer keys off.
//
// VAD is synchronous by design: ProcessFrame returns immediately with a
// detection result, making it suitable for the low-latency pipeline stage that
// gates transcription input.
//
// Implementations must be safe for concurrent use across different sessions.
// A single Session must not be shared across goroutines unless the
// implementation explicitly documents thread safety for that type.
package vad

// Config holds the parameters for a VAD session.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the rate of the
	// PCM frames passed to ProcessFrame. Common values: 8000, 16000, 48000.
	SampleRate int

	// FrameSizeMs is the duration of each audio frame in milliseconds. Most
	// detectors operate on fixed frame sizes (10, 20, or 30 ms). ProcessFrame
	// returns an error if the supplied frame does not match this size.
	FrameSizeMs int

	// EnergyThreshold is the RMS amplitude (int16 sample scale, 0–32767)
	// above which a frame is classified as speech by energy-based engines.
	// Typical: 500. Model-based engines may ignore it or use it only as a
	// fallback for undersized frames.
	EnergyThreshold float64

	// Mode selects the aggressiveness of model-based engines (0 = least
	// aggressive, 3 = most aggressive filtering). Energy engines ignore it.
	Mode int
}

// Event represents a voice activity detection result for a single audio frame.
type Event struct {
	// Type is the detection result.
	Type EventType

	// Energy is the frame RMS amplitude on the int16 sample scale. Reported
	// by all engines so the speaker attributor can reuse it.
	Energy float64
}

// EventType enumerates VAD detection states.
type EventType int

const (
	// SpeechStart indicates speech has just begun.
	SpeechStart EventType = iota

	// SpeechContinue indicates ongoing speech.
	SpeechContinue

	// SpeechEnd indicates speech has just ended.
	SpeechEnd

	// Silence indicates no speech detected.
	Silence
)

// IsSpeech reports whether the event marks a speech frame.
func (t EventType) IsSpeech() bool {
	return t == SpeechStart || t == SpeechContinue
}

// Session represents an active VAD session for a single audio stream. Each
// session maintains its own detection state; Reset clears this state without
// closing the session.
type Session interface {
	// ProcessFrame analyses a single audio frame and returns the detection
	// result. The frame must be raw little-endian 16-bit PCM at the
	// SampleRate and FrameSizeMs configured when the session was created.
	//
	// This method is called synchronously in the pipeline loop; it must not
	// block.
	ProcessFrame(frame []byte) (Event, error)

	// Reset clears all accumulated detection state without closing the
	// session. Use this when the audio stream is interrupted or restarted.
	Reset()

	// Close releases all resources associated with the session. Calling
	// Close more than once is safe and returns nil.
	Close() error
}

// Engine is the factory for VAD sessions. It is the top-level interface
// implemented by each VAD backend.
//
// Implementations must be safe for concurrent use: multiple goroutines may
// call NewSession simultaneously to create independent sessions.
type Engine interface {
	// NewSession creates a new VAD session with the given configuration.
	// Returns an error if the configuration is invalid or the engine cannot
	// allocate resources for the session.
	NewSession(cfg Config) (Session, error)
}
