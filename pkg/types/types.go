// Package types defines the shared types used across all Auricle packages.
//
// These types form the lingua franca between the capture layer, the audio
// pipeline, the decision gate, and the context fusion manager. They are
// intentionally minimal — each package defines its own domain types, but
// cross-cutting data structures live here to avoid circular imports.
package types

import "time"

// AudioFrame represents a single fixed-duration frame of audio flowing through
// the pipeline. Frames are the atomic unit of audio transport — captured from
// the input device, classified by VAD, and accumulated into utterance buffers.
type AudioFrame struct {
	// Data is raw 16-bit signed little-endian PCM. Sample rate and channel
	// count are determined by the pipeline config.
	Data []byte

	// SampleRate in Hz (e.g., 16000 for STT-optimised mono capture).
	SampleRate int

	// Channels: 1 for mono (the pipeline operates on mono only).
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Speaker is a coarse speaker label attributed to speech frames and utterances.
// The numeric order doubles as the overlap-resolution priority: when two
// speakers are detected concurrently the higher value wins and the lower is
// dropped for that interval.
type Speaker int

const (
	// SpeakerUnknown is the zero value. An utterance reaching the decision
	// gate with this label is an upstream invariant violation; the gate
	// degrades it to SpeakerUser so it can never trigger an answer.
	SpeakerUnknown Speaker = iota

	// SpeakerNoise marks frames attributed to non-speech noise.
	SpeakerNoise

	// SpeakerUser is the local user. User speech is transcribed for the
	// session log but never triggers answer generation.
	SpeakerUser

	// SpeakerInterviewer is the remote party. Only interviewer utterances may
	// pass the decision gate.
	SpeakerInterviewer
)

// String returns the human-readable name of the speaker label.
func (s Speaker) String() string {
	switch s {
	case SpeakerNoise:
		return "NOISE"
	case SpeakerUser:
		return "USER"
	case SpeakerInterviewer:
		return "INTERVIEWER"
	default:
		return "UNKNOWN"
	}
}

// TranscriptEvent is one finalized, complete utterance from one attributed
// speaker. It is the single reasoning unit of the whole system: nothing
// downstream acts on raw frames or partial buffers, and no partial variant of
// this type exists. Events are immutable once emitted.
type TranscriptEvent struct {
	// Speaker is the label attributed to the utterance's first speech frame.
	Speaker Speaker

	// Text is the transcribed utterance. Always non-empty; utterances the
	// transcription collaborator could not understand are never emitted.
	Text string

	// Confidence is the speaker-attribution confidence (0.0–1.0).
	Confidence float64

	// Timestamp marks when the utterance was finalized.
	Timestamp time.Time
}

// IntentKind classifies how a question-like utterance was recognised.
type IntentKind int

const (
	// IntentDirect means the text ends with a question mark.
	IntentDirect IntentKind = iota

	// IntentImperative means the text starts with or contains a standalone
	// imperative verb ("explain", "implement", "walk me through", …).
	IntentImperative

	// IntentContextual means the text references visible context
	// ("on the screen", "in this code", …).
	IntentContextual
)

// String returns the human-readable name of the intent kind.
func (k IntentKind) String() string {
	switch k {
	case IntentDirect:
		return "direct"
	case IntentImperative:
		return "imperative"
	case IntentContextual:
		return "contextual"
	default:
		return "unknown"
	}
}

// QuestionIntent is the result of question-intent detection on a finalized
// utterance. It is derived per TranscriptEvent and never stored.
type QuestionIntent struct {
	// Text is the utterance text the intent was detected in.
	Text string

	// Confidence is the rule confidence (0.95 direct, 0.90 imperative,
	// 0.85 contextual).
	Confidence float64

	// Kind tags which rule matched.
	Kind IntentKind
}
