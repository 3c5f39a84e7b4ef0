// Package capture defines the interfaces for the two raw-signal sources
// feeding the Auricle pipeline: the audio capture device and the screen
// snapshot source.
//
// Both are external I/O boundaries. The audio device delivers a continuous
// stream of fixed-duration PCM frames; the screen source returns a bitmap on
// demand (the screen timer in the application layer decides when). Concrete
// implementations wrap platform capture APIs; the capture/mock package
// provides scripted doubles for tests.
//
// Failure semantics: a device error delivered on the stream's error channel is
// a resource fault (disconnect, permission loss) and is fatal to the owning
// loop — it must be surfaced to the process supervisor, never silently
// retried. Transient per-frame glitches are the implementation's problem and
// must not surface here.
package capture

import (
	"context"
	"errors"
	"time"

	"github.com/auricle-ai/auricle/pkg/types"
)

// ErrScreenFault marks a permanent screen-capture failure such as permission
// loss or a gone source. Sources wrap it so the screen loop can tell a
// resource fault (stop and surface) from a transient glitch (skip the tick).
var ErrScreenFault = errors.New("screen source fault")

// StreamConfig describes the audio format requested from a capture device.
type StreamConfig struct {
	// SampleRate is the capture sample rate in Hz. Typical: 16000.
	SampleRate int

	// Channels is the number of channels. The pipeline requires mono (1).
	Channels int

	// FrameSizeMs is the duration of each delivered frame in milliseconds.
	// Typical: 20–30 ms.
	FrameSizeMs int
}

// Stream is an open audio capture session.
//
// The frame channel is closed when the stream ends (Close or fatal error).
// After a value is delivered on the error channel no further frames arrive.
type Stream interface {
	// Frames returns the read-only channel delivering captured frames in
	// capture order. The channel is owned by the stream; callers must not
	// retain frames beyond consumption — Data buffers may be reused.
	Frames() <-chan types.AudioFrame

	// Errs returns a channel that delivers at most one fatal device error.
	Errs() <-chan error

	// Close stops capture and releases the device. Safe to call more than
	// once; subsequent calls return nil.
	Close() error
}

// Device is the entry point for an audio capture backend.
//
// Implementations must be safe for concurrent use; a device may be opened at
// most once at a time by this application, but Open itself may be called from
// any goroutine.
type Device interface {
	// Open starts capturing with the given format and returns the live
	// stream. ctx governs the open attempt only; the stream stays alive
	// until Close is called or the device fails.
	Open(ctx context.Context, cfg StreamConfig) (Stream, error)
}

// ScreenFrame is a single screen snapshot handed to the OCR collaborator.
type ScreenFrame struct {
	// PNG is the encoded screen bitmap.
	PNG []byte

	// Timestamp marks when the snapshot was taken.
	Timestamp time.Time
}

// ScreenSource produces screen snapshots on demand. The application's screen
// timer decides the capture cadence; the source itself holds no timer state.
//
// A permission failure returned from Capture is a resource fault — wrapped
// [ErrScreenFault] — and stops the screen loop; an empty frame with nil
// error means "nothing changed" and is skipped silently.
type ScreenSource interface {
	Capture(ctx context.Context) (ScreenFrame, error)
}
