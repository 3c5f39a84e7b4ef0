package app

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/auricle-ai/auricle/internal/config"
	storemock "github.com/auricle-ai/auricle/internal/store/mock"
	"github.com/auricle-ai/auricle/pkg/capture"
	capturemock "github.com/auricle-ai/auricle/pkg/capture/mock"
	ocrmock "github.com/auricle-ai/auricle/pkg/provider/ocr/mock"
	"github.com/auricle-ai/auricle/pkg/provider/llm"
	llmmock "github.com/auricle-ai/auricle/pkg/provider/llm/mock"
	"github.com/auricle-ai/auricle/pkg/provider/stt"
	sttmock "github.com/auricle-ai/auricle/pkg/provider/stt/mock"
	"github.com/auricle-ai/auricle/pkg/provider/vad/energy"
	"github.com/auricle-ai/auricle/pkg/types"
)

// frame builds a 30ms 16kHz mono frame with constant sample amplitude.
func frame(amplitude int16) types.AudioFrame {
	const samples = 16000 * 30 / 1000
	buf := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(amplitude))
	}
	return types.AudioFrame{Data: buf, SampleRate: 16000, Channels: 1}
}

// utteranceFrames scripts one loud utterance followed by finalizing silence.
func utteranceFrames() []types.AudioFrame {
	var frames []types.AudioFrame
	for i := 0; i < 15; i++ {
		frames = append(frames, frame(2000))
	}
	for i := 0; i < 8; i++ {
		frames = append(frames, frame(0))
	}
	return frames
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.ListenAddr = "127.0.0.1:0"
	config.ApplyDefaults(cfg)
	cfg.Screen.Enabled = false
	return cfg
}

func TestAppAnswersInterviewerQuestion(t *testing.T) {
	t.Parallel()

	device := &capturemock.Device{ScriptedFrames: utteranceFrames()}
	transcriber := &sttmock.Transcriber{
		Result: stt.Result{Text: "What is the time complexity of binary search?", Confidence: 1.0},
	}
	model := &llmmock.Provider{Chunks: []llm.Chunk{
		{Text: "O(log n)."},
		{FinishReason: "stop"},
	}}
	st := &storemock.Store{}

	a, err := New(context.Background(), testConfig(t), &Providers{
		Device: device,
		VAD:    energy.New(),
		STT:    transcriber,
		LLM:    model,
	}, WithStore(st))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	// The answer lands in the store once the dispatch completes.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(st.Exchanges) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if len(st.Utterances) != 1 {
		t.Fatalf("persisted %d utterances, want 1", len(st.Utterances))
	}
	if st.Utterances[0].Speaker != types.SpeakerInterviewer {
		t.Errorf("speaker = %v, want INTERVIEWER", st.Utterances[0].Speaker)
	}
	if len(st.Exchanges) != 1 {
		t.Fatalf("persisted %d exchanges, want 1", len(st.Exchanges))
	}
	if st.Exchanges[0].Question != "What is the time complexity of binary search?" {
		t.Errorf("question = %q", st.Exchanges[0].Question)
	}
	if st.Exchanges[0].Answer != "O(log n)." {
		t.Errorf("answer = %q", st.Exchanges[0].Answer)
	}
	if len(model.StreamCalls) != 1 {
		t.Errorf("model called %d times, want 1", len(model.StreamCalls))
	}
}

func TestAppSurfacesDeviceFault(t *testing.T) {
	t.Parallel()

	deviceErr := errors.New("device disconnected")
	device := &capturemock.Device{FatalErr: deviceErr}

	a, err := New(context.Background(), testConfig(t), &Providers{
		Device: device,
		VAD:    energy.New(),
		STT:    &sttmock.Transcriber{},
		LLM:    &llmmock.Provider{},
	}, WithStore(&storemock.Store{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = a.Run(ctx)
	if !errors.Is(err, deviceErr) {
		t.Fatalf("Run error = %v, want wrapped device fault", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestAppSurfacesScreenFault(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Screen.Enabled = true
	cfg.Screen.IntervalMs = 10

	screen := &capturemock.ScreenSource{
		CaptureErr: fmt.Errorf("status 403: %w", capture.ErrScreenFault),
	}

	a, err := New(context.Background(), cfg, &Providers{
		Device: &capturemock.Device{},
		VAD:    energy.New(),
		STT:    &sttmock.Transcriber{},
		LLM:    &llmmock.Provider{},
		Screen: screen,
		OCR:    &ocrmock.Engine{},
	}, WithStore(&storemock.Store{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = a.Run(ctx)
	if !errors.Is(err, capture.ErrScreenFault) {
		t.Fatalf("Run error = %v, want wrapped screen fault", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestAppSurfacesScreenFailureStreak(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Screen.Enabled = true
	cfg.Screen.IntervalMs = 5

	captureErr := errors.New("connection refused")
	screen := &capturemock.ScreenSource{CaptureErr: captureErr}

	a, err := New(context.Background(), cfg, &Providers{
		Device: &capturemock.Device{},
		VAD:    energy.New(),
		STT:    &sttmock.Transcriber{},
		LLM:    &llmmock.Provider{},
		Screen: screen,
		OCR:    &ocrmock.Engine{},
	}, WithStore(&storemock.Store{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = a.Run(ctx)
	if !errors.Is(err, captureErr) {
		t.Fatalf("Run error = %v, want wrapped capture error", err)
	}
	if screen.CaptureCount < screenFailureLimit {
		t.Errorf("capture attempted %d times, want at least %d", screen.CaptureCount, screenFailureLimit)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestAppRequiresCoreProviders(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), testConfig(t), &Providers{})
	if err == nil {
		t.Fatal("New accepted empty providers")
	}
}
