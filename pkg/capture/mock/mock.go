// Package mock provides test doubles for the capture.Device and
// capture.ScreenSource interfaces.
//
// The Device replays a scripted sequence of frames and can inject a fatal
// device error at any point, letting pipeline tests drive VAD and
// finalization deterministically without real hardware.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/auricle-ai/auricle/pkg/capture"
	"github.com/auricle-ai/auricle/pkg/types"
)

// Device is a mock implementation of capture.Device. Configure ScriptedFrames
// and FatalErr before calling Open.
type Device struct {
	mu sync.Mutex

	// ScriptedFrames is the sequence of frames delivered in order by the
	// stream returned from Open.
	ScriptedFrames []types.AudioFrame

	// FatalErr, if non-nil, is delivered on the stream's error channel after
	// all scripted frames have been consumed.
	FatalErr error

	// OpenErr, if non-nil, is returned by Open instead of a stream.
	OpenErr error

	// OpenCalls records the configs passed to Open, in order.
	OpenCalls []capture.StreamConfig
}

// Compile-time interface check.
var _ capture.Device = (*Device)(nil)

// Open records the call and returns a stream that replays ScriptedFrames.
func (d *Device) Open(_ context.Context, cfg capture.StreamConfig) (capture.Stream, error) {
	d.mu.Lock()
	d.OpenCalls = append(d.OpenCalls, cfg)
	frames := make([]types.AudioFrame, len(d.ScriptedFrames))
	copy(frames, d.ScriptedFrames)
	fatalErr := d.FatalErr
	openErr := d.OpenErr
	d.mu.Unlock()

	if openErr != nil {
		return nil, openErr
	}

	s := &stream{
		frames: make(chan types.AudioFrame, len(frames)),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
	go func() {
		for _, f := range frames {
			select {
			case s.frames <- f:
			case <-s.done:
				return
			}
		}
		// The frame channel stays open after the script runs out: an idle
		// device is not a closed one. It closes only on a scripted fault,
		// mirroring the real contract that no frames follow an error.
		if fatalErr != nil {
			s.errs <- fatalErr
			close(s.frames)
		}
	}()
	return s, nil
}

type stream struct {
	frames chan types.AudioFrame
	errs   chan error
	done   chan struct{}
	once   sync.Once
}

func (s *stream) Frames() <-chan types.AudioFrame { return s.frames }
func (s *stream) Errs() <-chan error              { return s.errs }

func (s *stream) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// ScreenSource is a mock implementation of capture.ScreenSource. Each call to
// Capture pops the next scripted frame; when the script is exhausted the last
// frame is repeated (a static screen).
type ScreenSource struct {
	mu sync.Mutex

	// ScriptedFrames is the sequence of frames returned by Capture.
	ScriptedFrames []capture.ScreenFrame

	// CaptureErr, if non-nil, is returned by every Capture call.
	CaptureErr error

	// CaptureCount is the number of Capture calls made.
	CaptureCount int
}

// Compile-time interface check.
var _ capture.ScreenSource = (*ScreenSource)(nil)

// Capture returns the next scripted frame or CaptureErr.
func (s *ScreenSource) Capture(_ context.Context) (capture.ScreenFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.CaptureCount++
	if s.CaptureErr != nil {
		return capture.ScreenFrame{}, s.CaptureErr
	}
	if len(s.ScriptedFrames) == 0 {
		return capture.ScreenFrame{Timestamp: time.Now()}, nil
	}
	idx := s.CaptureCount - 1
	if idx >= len(s.ScriptedFrames) {
		idx = len(s.ScriptedFrames) - 1
	}
	return s.ScriptedFrames[idx], nil
}
