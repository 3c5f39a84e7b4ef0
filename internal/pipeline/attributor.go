package pipeline

import (
	"encoding/binary"

	"github.com/auricle-ai/auricle/pkg/types"
)

// SpeakerAttributor decides which speaker a speech frame belongs to and how
// confident that decision is. Attribution runs on the first speech frame of
// every utterance, so implementations must be cheap.
//
// The attributor is a strategy boundary: the default energy heuristic can be
// replaced by real diarization without touching the processor.
type SpeakerAttributor interface {
	// Attribute classifies one speech frame of 16-bit little-endian PCM.
	// The returned confidence is in [0.0, 1.0].
	Attribute(frame []byte) (types.Speaker, float64)
}

// Default attribution constants. Meeting audio routed through a loopback
// device arrives hotter than close-mic input, which is what the mean absolute
// amplitude split keys on.
const (
	// DefaultInterviewerThreshold is the mean absolute amplitude above which
	// a frame is attributed to the interviewer.
	DefaultInterviewerThreshold = 1000.0

	interviewerConfidence = 0.85
	userConfidence        = 0.75
)

// EnergyAttributor attributes frames by mean absolute amplitude: loud frames
// (remote meeting audio) go to the interviewer, quieter ones to the local
// user.
type EnergyAttributor struct {
	// InterviewerThreshold is the mean absolute amplitude split point.
	// Zero means DefaultInterviewerThreshold.
	InterviewerThreshold float64
}

// Compile-time interface check.
var _ SpeakerAttributor = (*EnergyAttributor)(nil)

// Attribute implements SpeakerAttributor.
func (a *EnergyAttributor) Attribute(frame []byte) (types.Speaker, float64) {
	threshold := a.InterviewerThreshold
	if threshold == 0 {
		threshold = DefaultInterviewerThreshold
	}
	if meanAbs(frame) > threshold {
		return types.SpeakerInterviewer, interviewerConfidence
	}
	return types.SpeakerUser, userConfidence
}

// meanAbs computes the mean absolute amplitude of 16-bit little-endian PCM on
// the int16 sample scale. An empty slice yields 0.
func meanAbs(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		if s < 0 {
			sum -= float64(s)
		} else {
			sum += float64(s)
		}
	}
	return sum / float64(n)
}
