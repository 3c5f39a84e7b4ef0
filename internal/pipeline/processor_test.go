package pipeline

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/auricle-ai/auricle/pkg/provider/stt"
	sttmock "github.com/auricle-ai/auricle/pkg/provider/stt/mock"
	"github.com/auricle-ai/auricle/pkg/provider/vad/energy"
	"github.com/auricle-ai/auricle/pkg/types"
)

// frame builds a 30ms 16kHz mono frame where every sample has the given
// amplitude.
func frame(amplitude int16) types.AudioFrame {
	const samples = 16000 * 30 / 1000
	buf := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(amplitude))
	}
	return types.AudioFrame{Data: buf, SampleRate: 16000, Channels: 1}
}

func newTestProcessor(t *testing.T, transcriber stt.Transcriber) *Processor {
	t.Helper()
	p, err := New(Config{
		SampleRate:      16000,
		Channels:        1,
		FrameSizeMs:     30,
		SilenceMs:       200,
		MinSpeechFrames: 10,
	}, energy.New(), &EnergyAttributor{}, transcriber)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func runProcessor(t *testing.T, p *Processor) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func feed(p *Processor, frames ...types.AudioFrame) {
	for _, f := range frames {
		p.Enqueue(f)
	}
}

func speechBurst(n int, amplitude int16) []types.AudioFrame {
	out := make([]types.AudioFrame, n)
	for i := range out {
		out[i] = frame(amplitude)
	}
	return out
}

func waitEvent(t *testing.T, p *Processor) types.TranscriptEvent {
	t.Helper()
	select {
	case ev := <-p.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for transcript event")
		return types.TranscriptEvent{}
	}
}

func assertNoEvent(t *testing.T, p *Processor, wait time.Duration) {
	t.Helper()
	select {
	case ev := <-p.Events():
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(wait):
	}
}

func TestUtteranceAtomicity(t *testing.T) {
	t.Parallel()

	tr := &sttmock.Transcriber{Result: stt.Result{Text: "what is a binary tree", Confidence: 1.0}}
	p := newTestProcessor(t, tr)
	runProcessor(t, p)

	// 15 speech frames followed by enough silence (7 × 30 ms ≥ 200 ms) must
	// produce exactly one event covering the whole utterance.
	feed(p, speechBurst(15, 2000)...)
	feed(p, speechBurst(7, 0)...)

	ev := waitEvent(t, p)
	if ev.Text != "what is a binary tree" {
		t.Errorf("text = %q", ev.Text)
	}
	if ev.Speaker != types.SpeakerInterviewer {
		t.Errorf("speaker = %v, want INTERVIEWER", ev.Speaker)
	}
	if ev.Confidence != 0.85 {
		t.Errorf("confidence = %.2f, want 0.85", ev.Confidence)
	}
	if ev.Timestamp.IsZero() {
		t.Error("timestamp is zero")
	}

	assertNoEvent(t, p, 100*time.Millisecond)

	if calls := len(tr.TranscribeCalls); calls != 1 {
		t.Fatalf("transcriber called %d times, want 1", calls)
	}
	// The whole 15-frame utterance goes to the transcriber in one call.
	if got, want := len(tr.TranscribeCalls[0].PCM), 15*960; got != want {
		t.Errorf("transcribed pcm = %d bytes, want %d", got, want)
	}
}

func TestSubMinimumSpeechDiscarded(t *testing.T) {
	t.Parallel()

	tr := &sttmock.Transcriber{Result: stt.Result{Text: "never used"}}
	p := newTestProcessor(t, tr)
	runProcessor(t, p)

	// 5 speech frames is below the 10-frame minimum: no event, no
	// transcription call.
	feed(p, speechBurst(5, 2000)...)
	feed(p, speechBurst(7, 0)...)

	assertNoEvent(t, p, 200*time.Millisecond)
	if calls := len(tr.TranscribeCalls); calls != 0 {
		t.Errorf("transcriber called %d times, want 0", calls)
	}
}

func TestEventOrderMatchesUtteranceOrder(t *testing.T) {
	t.Parallel()

	tr := &sttmock.Transcriber{Results: []stt.Result{
		{Text: "first question"},
		{Text: "second question"},
	}}
	p := newTestProcessor(t, tr)
	runProcessor(t, p)

	feed(p, speechBurst(12, 2000)...)
	feed(p, speechBurst(7, 0)...)
	feed(p, speechBurst(12, 2000)...)
	feed(p, speechBurst(7, 0)...)

	if ev := waitEvent(t, p); ev.Text != "first question" {
		t.Errorf("first event text = %q", ev.Text)
	}
	if ev := waitEvent(t, p); ev.Text != "second question" {
		t.Errorf("second event text = %q", ev.Text)
	}
}

func TestQuietSpeechAttributedToUser(t *testing.T) {
	t.Parallel()

	tr := &sttmock.Transcriber{Result: stt.Result{Text: "thinking out loud"}}
	p := newTestProcessor(t, tr)
	runProcessor(t, p)

	// Amplitude 600 is above the VAD threshold (500) but below the
	// interviewer attribution threshold (1000).
	feed(p, speechBurst(12, 600)...)
	feed(p, speechBurst(7, 0)...)

	ev := waitEvent(t, p)
	if ev.Speaker != types.SpeakerUser {
		t.Errorf("speaker = %v, want USER", ev.Speaker)
	}
	if ev.Confidence != 0.75 {
		t.Errorf("confidence = %.2f, want 0.75", ev.Confidence)
	}
}

func TestOverlapUpgradesToInterviewer(t *testing.T) {
	t.Parallel()

	tr := &sttmock.Transcriber{Result: stt.Result{Text: "overlapping speech"}}
	p := newTestProcessor(t, tr)
	runProcessor(t, p)

	// Quiet start (user) overlapped by loud frames (interviewer): the
	// higher-priority speaker owns the utterance.
	feed(p, speechBurst(6, 600)...)
	feed(p, speechBurst(6, 3000)...)
	feed(p, speechBurst(7, 0)...)

	ev := waitEvent(t, p)
	if ev.Speaker != types.SpeakerInterviewer {
		t.Errorf("speaker = %v, want INTERVIEWER", ev.Speaker)
	}
}

func TestEmptyTranscriptDiscarded(t *testing.T) {
	t.Parallel()

	tr := &sttmock.Transcriber{Result: stt.Result{Text: ""}}
	p := newTestProcessor(t, tr)
	runProcessor(t, p)

	feed(p, speechBurst(12, 2000)...)
	feed(p, speechBurst(7, 0)...)

	assertNoEvent(t, p, 200*time.Millisecond)
	if calls := len(tr.TranscribeCalls); calls != 1 {
		t.Errorf("transcriber called %d times, want 1", calls)
	}
}

func TestEnqueueDropsWhenQueueFull(t *testing.T) {
	t.Parallel()

	tr := &sttmock.Transcriber{}
	p, err := New(Config{QueueSize: 4}, energy.New(), &EnergyAttributor{}, tr)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Run is not started, so the queue fills up and overflow is dropped.
	accepted := 0
	for i := 0; i < 10; i++ {
		if p.Enqueue(frame(0)) {
			accepted++
		}
	}
	if accepted != 4 {
		t.Errorf("accepted = %d, want 4", accepted)
	}
	if p.Dropped() != 6 {
		t.Errorf("dropped = %d, want 6", p.Dropped())
	}
}

func TestEnergyAttributor(t *testing.T) {
	t.Parallel()

	a := &EnergyAttributor{}

	loud := frame(3000)
	s, c := a.Attribute(loud.Data)
	if s != types.SpeakerInterviewer || c != 0.85 {
		t.Errorf("loud frame: speaker %v conf %.2f, want INTERVIEWER 0.85", s, c)
	}

	quiet := frame(400)
	s, c = a.Attribute(quiet.Data)
	if s != types.SpeakerUser || c != 0.75 {
		t.Errorf("quiet frame: speaker %v conf %.2f, want USER 0.75", s, c)
	}

	if got := meanAbs(nil); got != 0 {
		t.Errorf("meanAbs(nil) = %f, want 0", got)
	}
}
