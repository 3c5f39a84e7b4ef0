package pcm

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/auricle-ai/auricle/pkg/capture"
)

func writePCM(t *testing.T, samples []int16) string {
	t.Helper()
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	path := filepath.Join(t.TempDir(), "audio.raw")
	if err := os.WriteFile(path, buf, 0o600); err != nil {
		t.Fatalf("write pcm: %v", err)
	}
	return path
}

func TestDeviceFramesAndEOF(t *testing.T) {
	t.Parallel()

	// Two full 10ms frames at 8kHz mono (80 samples each), then EOF.
	samples := make([]int16, 160)
	for i := range samples {
		samples[i] = int16(i)
	}
	dev := New(writePCM(t, samples))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := dev.Open(ctx, capture.StreamConfig{SampleRate: 8000, Channels: 1, FrameSizeMs: 10})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer stream.Close()

	var frames int
	for frames < 2 {
		select {
		case f, ok := <-stream.Frames():
			if !ok {
				t.Fatalf("stream closed after %d frames, want 2", frames)
			}
			if len(f.Data) != 160 {
				t.Fatalf("frame size = %d bytes, want 160", len(f.Data))
			}
			if want := time.Duration(frames) * 10 * time.Millisecond; f.Timestamp != want {
				t.Errorf("frame %d timestamp = %v, want %v", frames, f.Timestamp, want)
			}
			frames++
		case err := <-stream.Errs():
			t.Fatalf("unexpected device error: %v", err)
		case <-ctx.Done():
			t.Fatal("timed out waiting for frames")
		}
	}

	// The source is exhausted: the next read reports a fault.
	select {
	case err := <-stream.Errs():
		if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Errorf("error = %v, want EOF", err)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for EOF fault")
	}
}

func TestOpenRejectsBadConfig(t *testing.T) {
	t.Parallel()

	dev := New(writePCM(t, nil))
	if _, err := dev.Open(context.Background(), capture.StreamConfig{}); err == nil {
		t.Fatal("Open accepted a zero config")
	}
}

func TestOpenMissingFile(t *testing.T) {
	t.Parallel()

	dev := New(filepath.Join(t.TempDir(), "missing.raw"))
	if _, err := dev.Open(context.Background(), capture.StreamConfig{SampleRate: 8000, Channels: 1, FrameSizeMs: 10}); err == nil {
		t.Fatal("Open accepted a missing source")
	}
}
