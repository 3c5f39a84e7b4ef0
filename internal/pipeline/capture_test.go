package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/auricle-ai/auricle/pkg/capture"
	capturemock "github.com/auricle-ai/auricle/pkg/capture/mock"
	sttmock "github.com/auricle-ai/auricle/pkg/provider/stt/mock"
	"github.com/auricle-ai/auricle/pkg/provider/vad/energy"
)

func TestRunCaptureSurfacesDeviceFault(t *testing.T) {
	t.Parallel()

	deviceErr := errors.New("device disconnected")
	dev := &capturemock.Device{
		ScriptedFrames: speechBurst(3, 0),
		FatalErr:       deviceErr,
	}

	p, err := New(Config{}, energy.New(), &EnergyAttributor{}, &sttmock.Transcriber{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = RunCapture(ctx, dev, capture.StreamConfig{SampleRate: 16000, Channels: 1, FrameSizeMs: 30}, p, nil, nil)
	if err == nil {
		t.Fatal("RunCapture returned nil, want device fault")
	}
	if !errors.Is(err, deviceErr) {
		t.Errorf("error = %v, want wrapped device fault", err)
	}
	if len(dev.OpenCalls) != 1 {
		t.Errorf("Open called %d times, want 1", len(dev.OpenCalls))
	}
}

func TestRunCaptureReturnsOpenError(t *testing.T) {
	t.Parallel()

	openErr := errors.New("permission denied")
	dev := &capturemock.Device{OpenErr: openErr}

	p, err := New(Config{}, energy.New(), &EnergyAttributor{}, &sttmock.Transcriber{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	err = RunCapture(context.Background(), dev, capture.StreamConfig{}, p, nil, nil)
	if !errors.Is(err, openErr) {
		t.Errorf("error = %v, want wrapped open error", err)
	}
}

func TestRunCaptureStopsOnCancel(t *testing.T) {
	t.Parallel()

	// No fatal error and no frames after the script: the pump idles until
	// cancellation.
	dev := &capturemock.Device{ScriptedFrames: speechBurst(2, 0)}

	p, err := New(Config{}, energy.New(), &EnergyAttributor{}, &sttmock.Transcriber{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- RunCapture(ctx, dev, capture.StreamConfig{}, p, nil, nil)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunCapture did not stop after cancellation")
	}
}
