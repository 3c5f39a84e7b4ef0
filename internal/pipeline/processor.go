// Package pipeline turns the raw audio frame stream into finalized
// TranscriptEvents.
//
// The processor is the sole owner of all utterance state: VAD session,
// utterance buffer, speaker attribution, and silence accounting. Frames enter
// through a bounded queue fed by the capture loop (which never blocks on the
// processor — overflow frames are dropped and counted); finalized utterances
// leave through a sequential transcription worker so that event order always
// matches utterance order.
//
// Nothing downstream ever sees a partial utterance. An utterance is either
// finalized into exactly one TranscriptEvent or discarded entirely (too few
// speech frames, or the transcriber could not make out any words).
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/auricle-ai/auricle/internal/observe"
	"github.com/auricle-ai/auricle/pkg/provider/stt"
	"github.com/auricle-ai/auricle/pkg/provider/vad"
	"github.com/auricle-ai/auricle/pkg/types"
)

// Config holds processor tuning. Zero values are replaced with the documented
// defaults by New.
type Config struct {
	// SampleRate is the PCM sample rate in Hz. Default 16000.
	SampleRate int

	// Channels is the channel count. Default 1.
	Channels int

	// FrameSizeMs is the frame duration in milliseconds. Default 30.
	FrameSizeMs int

	// SilenceMs is the consecutive-silence duration that finalizes the
	// current utterance. Default 200.
	SilenceMs int

	// MinSpeechFrames is the minimum number of speech frames an utterance
	// needs to be transcribed; shorter bursts are discarded as noise.
	// Default 10.
	MinSpeechFrames int

	// QueueSize is the frame queue capacity between Enqueue and Run.
	// Default 64.
	QueueSize int

	// VADEnergyThreshold is the RMS speech threshold handed to energy-based
	// VAD engines. Zero keeps the engine default.
	VADEnergyThreshold float64

	// VADMode is the aggressiveness handed to model-based VAD engines.
	VADMode int

	// Language is the transcription language hint.
	Language string
}

func (c *Config) applyDefaults() {
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	if c.Channels == 0 {
		c.Channels = 1
	}
	if c.FrameSizeMs == 0 {
		c.FrameSizeMs = 30
	}
	if c.SilenceMs == 0 {
		c.SilenceMs = 200
	}
	if c.MinSpeechFrames == 0 {
		c.MinSpeechFrames = 10
	}
	if c.QueueSize == 0 {
		c.QueueSize = 64
	}
}

// utterance is a finalized speech segment awaiting transcription.
type utterance struct {
	pcm        []byte
	speaker    types.Speaker
	confidence float64
}

// Processor consumes audio frames and emits finalized TranscriptEvents.
type Processor struct {
	cfg         Config
	session     vad.Session
	attributor  SpeakerAttributor
	transcriber stt.Transcriber
	metrics     *observe.Metrics
	logger      *slog.Logger

	frames  chan types.AudioFrame
	pending chan utterance
	events  chan types.TranscriptEvent
	dropped atomic.Int64
}

// Option is a functional option for Processor.
type Option func(*Processor)

// WithMetrics sets the metrics instance. Defaults to observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// New creates a Processor. A VAD session is allocated from engine using the
// processor's audio format.
func New(cfg Config, engine vad.Engine, attributor SpeakerAttributor, transcriber stt.Transcriber, opts ...Option) (*Processor, error) {
	cfg.applyDefaults()
	if engine == nil {
		return nil, fmt.Errorf("pipeline: vad engine is required")
	}
	if attributor == nil {
		return nil, fmt.Errorf("pipeline: speaker attributor is required")
	}
	if transcriber == nil {
		return nil, fmt.Errorf("pipeline: transcriber is required")
	}

	session, err := engine.NewSession(vad.Config{
		SampleRate:      cfg.SampleRate,
		FrameSizeMs:     cfg.FrameSizeMs,
		EnergyThreshold: cfg.VADEnergyThreshold,
		Mode:            cfg.VADMode,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: create vad session: %w", err)
	}

	p := &Processor{
		cfg:         cfg,
		session:     session,
		attributor:  attributor,
		transcriber: transcriber,
		frames:      make(chan types.AudioFrame, cfg.QueueSize),
		pending:     make(chan utterance, 16),
		events:      make(chan types.TranscriptEvent, 16),
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p, nil
}

// NewWithSession creates a Processor around an existing VAD session. Used by
// tests that script session behaviour directly.
func NewWithSession(cfg Config, session vad.Session, attributor SpeakerAttributor, transcriber stt.Transcriber, opts ...Option) *Processor {
	cfg.applyDefaults()
	p := &Processor{
		cfg:         cfg,
		session:     session,
		attributor:  attributor,
		transcriber: transcriber,
		frames:      make(chan types.AudioFrame, cfg.QueueSize),
		pending:     make(chan utterance, 16),
		events:      make(chan types.TranscriptEvent, 16),
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Enqueue offers a frame to the processor without blocking. It reports
// whether the frame was accepted; rejected frames are counted as dropped.
// Safe to call from the capture loop concurrently with Run.
func (p *Processor) Enqueue(frame types.AudioFrame) bool {
	select {
	case p.frames <- frame:
		return true
	default:
		p.dropped.Add(1)
		p.metrics.FramesDropped.Add(context.Background(), 1)
		return false
	}
}

// Dropped returns the number of frames rejected by Enqueue so far.
func (p *Processor) Dropped() int64 {
	return p.dropped.Load()
}

// Events returns the channel of finalized transcript events, in utterance
// order. The channel is closed when Run returns.
func (p *Processor) Events() <-chan types.TranscriptEvent {
	return p.events
}

// Run drives the frame loop and the transcription worker until ctx is
// cancelled. It always returns ctx.Err() semantics: nil is never returned
// before cancellation.
func (p *Processor) Run(ctx context.Context) error {
	defer close(p.events)
	defer p.session.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.frameLoop(ctx) })
	g.Go(func() error { return p.transcribeLoop(ctx) })
	return g.Wait()
}

// frameLoop owns all utterance state. It runs VAD and attribution per frame
// and hands finalized utterances to the transcription worker.
func (p *Processor) frameLoop(ctx context.Context) error {
	var (
		buffer       []byte
		speechFrames int
		silenceMs    int
		speaker      types.Speaker
		confidence   float64
	)

	reset := func() {
		buffer = nil
		speechFrames = 0
		silenceMs = 0
		speaker = types.SpeakerUnknown
		confidence = 0
	}

	finalize := func() error {
		if speechFrames < p.cfg.MinSpeechFrames {
			if speechFrames > 0 {
				p.metrics.RecordUtterance(ctx, speaker.String(), "discarded")
				p.logger.Debug("discarded short utterance",
					"speech_frames", speechFrames,
					"min", p.cfg.MinSpeechFrames,
				)
			}
			reset()
			return nil
		}

		utt := utterance{
			pcm:        buffer,
			speaker:    speaker,
			confidence: confidence,
		}
		reset()

		select {
		case p.pending <- utt:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case frame := <-p.frames:
			ev, err := p.session.ProcessFrame(frame.Data)
			if err != nil {
				p.logger.Warn("vad frame rejected", "error", err)
				continue
			}

			if ev.Type.IsSpeech() {
				silenceMs = 0
				speechFrames++
				buffer = append(buffer, frame.Data...)

				// Attribution is decided by the first speech frame and
				// stays sticky, except that a concurrent higher-priority
				// speaker takes the utterance over: interviewer speech is
				// never demoted by overlapping user audio.
				s, c := p.attributor.Attribute(frame.Data)
				if s > speaker {
					speaker = s
					confidence = c
				}
				continue
			}

			// Silence frame.
			if len(buffer) == 0 {
				continue
			}
			silenceMs += p.cfg.FrameSizeMs
			if silenceMs >= p.cfg.SilenceMs {
				if err := finalize(); err != nil {
					return err
				}
			}
		}
	}
}

// transcribeLoop is the sequential transcription worker. One utterance at a
// time keeps event order identical to utterance order.
func (p *Processor) transcribeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case utt := <-p.pending:
			start := time.Now()
			res, err := p.transcriber.Transcribe(ctx, utt.pcm, stt.Config{
				SampleRate: p.cfg.SampleRate,
				Channels:   p.cfg.Channels,
				Language:   p.cfg.Language,
			})
			p.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				p.metrics.RecordProviderError(ctx, "stt", "transcribe")
				p.logger.Error("transcription failed", "error", err)
				continue
			}
			if res.Text == "" {
				p.metrics.RecordUtterance(ctx, utt.speaker.String(), "discarded")
				continue
			}

			event := types.TranscriptEvent{
				Speaker:    utt.speaker,
				Text:       res.Text,
				Confidence: utt.confidence,
				Timestamp:  time.Now(),
			}
			p.metrics.RecordUtterance(ctx, utt.speaker.String(), "emitted")

			select {
			case p.events <- event:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
