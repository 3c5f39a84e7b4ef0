// Package energy implements an RMS amplitude VAD engine.
//
// The engine classifies a frame as speech when its root-mean-square amplitude
// (on the int16 sample scale) exceeds a configured threshold. It is the
// default engine: no model download, no CGO, deterministic, and accurate
// enough for close-mic capture where speech sits well above the noise floor.
package energy

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/auricle-ai/auricle/pkg/provider/vad"
)

// DefaultThreshold is the RMS amplitude above which a frame counts as speech.
const DefaultThreshold = 500.0

// Engine creates RMS-threshold VAD sessions.
type Engine struct{}

// Compile-time interface check.
var _ vad.Engine = (*Engine)(nil)

// New returns an RMS energy VAD engine.
func New() *Engine {
	return &Engine{}
}

// NewSession validates cfg and returns a session. A zero EnergyThreshold is
// replaced with DefaultThreshold.
func (e *Engine) NewSession(cfg vad.Config) (vad.Session, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("energy vad: invalid sample rate %d", cfg.SampleRate)
	}
	if cfg.FrameSizeMs <= 0 {
		return nil, fmt.Errorf("energy vad: invalid frame size %dms", cfg.FrameSizeMs)
	}
	if cfg.EnergyThreshold < 0 {
		return nil, fmt.Errorf("energy vad: negative energy threshold %f", cfg.EnergyThreshold)
	}
	threshold := cfg.EnergyThreshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	// 16-bit mono: 2 bytes per sample.
	frameBytes := cfg.SampleRate * cfg.FrameSizeMs / 1000 * 2
	return &session{threshold: threshold, frameBytes: frameBytes}, nil
}

type session struct {
	threshold  float64
	frameBytes int
	inSpeech   bool
}

var _ vad.Session = (*session)(nil)

func (s *session) ProcessFrame(frame []byte) (vad.Event, error) {
	if len(frame) != s.frameBytes {
		return vad.Event{}, fmt.Errorf("energy vad: frame size %d bytes, want %d", len(frame), s.frameBytes)
	}
	rms := RMS(frame)
	speech := rms > s.threshold

	var typ vad.EventType
	switch {
	case speech && !s.inSpeech:
		typ = vad.SpeechStart
	case speech:
		typ = vad.SpeechContinue
	case s.inSpeech:
		typ = vad.SpeechEnd
	default:
		typ = vad.Silence
	}
	s.inSpeech = speech
	return vad.Event{Type: typ, Energy: rms}, nil
}

func (s *session) Reset() {
	s.inSpeech = false
}

func (s *session) Close() error {
	return nil
}

// RMS computes the root-mean-square amplitude of little-endian 16-bit PCM on
// the int16 sample scale. An empty or odd-length slice yields 0.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(n))
}
