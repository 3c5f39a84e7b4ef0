// Package webrtc implements a VAD engine backed by the WebRTC voice activity
// detector (via go-webrtcvad, a cgo binding to the libfvad fork of the WebRTC
// audio processing module).
//
// The detector accepts 10, 20 or 30 ms frames at 8/16/32/48 kHz. Frames too
// short for the detector, and frames the detector rejects at runtime, fall
// back to the same RMS threshold the energy engine uses, so the session never
// fails mid-stream on a malformed boundary frame.
package webrtc

import (
	"fmt"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"github.com/auricle-ai/auricle/pkg/provider/vad"
	"github.com/auricle-ai/auricle/pkg/provider/vad/energy"
)

// minFrameBytes is 10 ms of 16-bit mono at 16 kHz, the smallest frame the
// WebRTC detector accepts at that rate.
const minFrameBytes = 320

// Engine creates WebRTC VAD sessions.
type Engine struct{}

// Compile-time interface check.
var _ vad.Engine = (*Engine)(nil)

// New returns a WebRTC VAD engine.
func New() *Engine {
	return &Engine{}
}

// NewSession allocates a detector instance for one audio stream. Mode selects
// aggressiveness 0–3; EnergyThreshold (default 500) drives the RMS fallback.
func (e *Engine) NewSession(cfg vad.Config) (vad.Session, error) {
	switch cfg.SampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return nil, fmt.Errorf("webrtc vad: unsupported sample rate %d", cfg.SampleRate)
	}
	switch cfg.FrameSizeMs {
	case 10, 20, 30:
	default:
		return nil, fmt.Errorf("webrtc vad: unsupported frame size %dms", cfg.FrameSizeMs)
	}
	if cfg.Mode < 0 || cfg.Mode > 3 {
		return nil, fmt.Errorf("webrtc vad: mode %d out of range 0-3", cfg.Mode)
	}

	v, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("webrtc vad: create detector: %w", err)
	}
	if err := v.SetMode(cfg.Mode); err != nil {
		v.Close()
		return nil, fmt.Errorf("webrtc vad: set mode %d: %w", cfg.Mode, err)
	}

	threshold := cfg.EnergyThreshold
	if threshold == 0 {
		threshold = energy.DefaultThreshold
	}
	return &session{
		vad:        v,
		sampleRate: cfg.SampleRate,
		threshold:  threshold,
	}, nil
}

type session struct {
	vad        *webrtcvad.VAD
	sampleRate int
	threshold  float64
	inSpeech   bool
	closed     bool
}

var _ vad.Session = (*session)(nil)

func (s *session) ProcessFrame(frame []byte) (vad.Event, error) {
	if s.closed {
		return vad.Event{}, fmt.Errorf("webrtc vad: session closed")
	}

	rms := energy.RMS(frame)
	var speech bool
	if len(frame) < minFrameBytes {
		speech = rms > s.threshold
	} else if got, err := s.vad.Process(s.sampleRate, frame); err != nil {
		speech = rms > s.threshold
	} else {
		speech = got
	}

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
	if s.closed {
		return nil
	}
	s.closed = true
	s.vad.Close()
	return nil
}
