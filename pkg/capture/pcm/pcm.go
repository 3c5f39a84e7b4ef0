// Package pcm implements capture.Device over a raw PCM byte stream.
//
// The device reads little-endian 16-bit mono samples from a file, a named
// pipe, or stdin, and emits fixed-size frames paced at real time. Feeding
// the pipeline from a system audio loopback is then a one-liner:
//
//	ffmpeg -f pulse -i default -f s16le -ar 16000 -ac 1 - | auricle
//
// Pacing matters: a file would otherwise flood the bounded frame queue
// faster than speech arrives and get dropped wholesale.
package pcm

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/auricle-ai/auricle/pkg/capture"
	"github.com/auricle-ai/auricle/pkg/types"
)

// StdinPath selects standard input as the PCM source.
const StdinPath = "-"

// Device reads raw PCM from a file path. The zero value is not usable; use
// New.
type Device struct {
	path string
}

// Compile-time interface check.
var _ capture.Device = (*Device)(nil)

// New creates a Device reading from path. An empty path or [StdinPath]
// selects stdin.
func New(path string) *Device {
	return &Device{path: path}
}

// Open starts reading frames. The stream ends with an error on the error
// channel when the source reaches EOF or fails; a closed pipe means the
// recorder died, which is a device fault, not a clean end.
func (d *Device) Open(ctx context.Context, cfg capture.StreamConfig) (capture.Stream, error) {
	if cfg.SampleRate <= 0 || cfg.Channels <= 0 || cfg.FrameSizeMs <= 0 {
		return nil, fmt.Errorf("pcm: invalid stream config %+v", cfg)
	}

	var (
		src  io.ReadCloser
		name string
	)
	switch d.path {
	case "", StdinPath:
		src, name = io.NopCloser(os.Stdin), "stdin"
	default:
		f, err := os.Open(d.path)
		if err != nil {
			return nil, fmt.Errorf("pcm: open source: %w", err)
		}
		src, name = f, d.path
	}

	s := &stream{
		src:    src,
		name:   name,
		frames: make(chan types.AudioFrame, 4),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
	go s.readLoop(ctx, cfg)
	return s, nil
}

type stream struct {
	src    io.ReadCloser
	name   string
	frames chan types.AudioFrame
	errs   chan error
	done   chan struct{}
}

func (s *stream) Frames() <-chan types.AudioFrame { return s.frames }
func (s *stream) Errs() <-chan error              { return s.errs }

func (s *stream) Close() error {
	select {
	case <-s.done:
		return nil
	default:
	}
	close(s.done)
	return s.src.Close()
}

func (s *stream) readLoop(ctx context.Context, cfg capture.StreamConfig) {
	frameBytes := cfg.SampleRate * cfg.FrameSizeMs / 1000 * cfg.Channels * 2
	frameDur := time.Duration(cfg.FrameSizeMs) * time.Millisecond

	ticker := time.NewTicker(frameDur)
	defer ticker.Stop()

	var elapsed time.Duration
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
		}

		buf := make([]byte, frameBytes)
		if _, err := io.ReadFull(s.src, buf); err != nil {
			select {
			case <-s.done:
			default:
				s.errs <- fmt.Errorf("pcm: read %s: %w", s.name, err)
			}
			close(s.frames)
			return
		}

		frame := types.AudioFrame{
			Data:       buf,
			SampleRate: cfg.SampleRate,
			Channels:   cfg.Channels,
			Timestamp:  elapsed,
		}
		elapsed += frameDur

		select {
		case s.frames <- frame:
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}
