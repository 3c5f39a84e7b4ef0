// Package dispatch turns a gate-passed question into a streamed answer.
//
// The dispatcher is deliberately thin: it merges context, asks the model,
// and forwards chunks to the UI sink. Everything stateful (cooldown,
// buffers) lives in the gate and the fusion manager; a dispatch that fails
// mid-stream leaves no partial answer in the history.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/auricle-ai/auricle/internal/fusion"
	"github.com/auricle-ai/auricle/internal/observe"
	"github.com/auricle-ai/auricle/internal/store"
	"github.com/auricle-ai/auricle/pkg/provider/llm"
	"github.com/auricle-ai/auricle/pkg/types"
)

// Sink receives the user-visible output of a dispatch. Implementations must
// tolerate calls from the dispatch worker goroutine.
type Sink interface {
	// Question announces the question an answer is being generated for.
	Question(intent types.QuestionIntent)

	// AnswerDelta delivers one streamed answer fragment.
	AnswerDelta(text string)

	// AnswerDone marks the end of the current answer stream.
	AnswerDone()
}

// Config holds dispatcher tuning.
type Config struct {
	// ResumeTopK is how many resume chunks to retrieve per question.
	// Default 3.
	ResumeTopK int

	// PreferredLanguage is the code language to request when none is
	// detected on screen.
	PreferredLanguage string

	// Temperature and MaxTokens are passed through to the model.
	Temperature float64
	MaxTokens   int
}

// Dispatcher generates answers for gate-passed questions.
type Dispatcher struct {
	cfg      Config
	provider llm.Provider
	fusion   *fusion.Manager
	store    store.Store
	sink     Sink
	metrics  *observe.Metrics
	logger   *slog.Logger
}

// Option is a functional option for Dispatcher.
type Option func(*Dispatcher)

// WithMetrics sets the metrics instance. Defaults to observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// New creates a Dispatcher. A nil store disables persistence via store.Nop.
func New(cfg Config, provider llm.Provider, fm *fusion.Manager, st store.Store, sink Sink, opts ...Option) (*Dispatcher, error) {
	if provider == nil {
		return nil, fmt.Errorf("dispatch: llm provider is required")
	}
	if fm == nil {
		return nil, fmt.Errorf("dispatch: fusion manager is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("dispatch: sink is required")
	}
	if st == nil {
		st = store.Nop{}
	}
	if cfg.ResumeTopK == 0 {
		cfg.ResumeTopK = 3
	}

	d := &Dispatcher{
		cfg:      cfg,
		provider: provider,
		fusion:   fm,
		store:    st,
		sink:     sink,
	}
	for _, o := range opts {
		o(d)
	}
	if d.metrics == nil {
		d.metrics = observe.DefaultMetrics()
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d, nil
}

// Dispatch generates and streams one answer for the given intent. It blocks
// until the stream ends; run it on a worker goroutine so a slow model never
// stalls the audio path. The completed exchange is recorded into history and
// the store; an aborted stream is not.
func (d *Dispatcher) Dispatch(ctx context.Context, intent types.QuestionIntent) error {
	start := time.Now()
	d.sink.Question(intent)

	merged := d.fusion.Merge(intent.Text)

	resumeChunks, err := d.store.ResumeContext(ctx, intent.Text, d.cfg.ResumeTopK)
	if err != nil {
		// Background material is optional; answer without it.
		d.metrics.RecordProviderError(ctx, "store", "resume_context")
		d.logger.Warn("resume retrieval failed", "error", err)
	}

	req := llm.CompletionRequest{
		SystemPrompt: systemPrompt(intent.Text),
		Messages: []llm.Message{
			{Role: "user", Content: userPrompt(intent.Text, merged, resumeChunks, d.cfg.PreferredLanguage)},
		},
		Temperature: d.cfg.Temperature,
		MaxTokens:   d.cfg.MaxTokens,
	}

	chunks, err := d.provider.StreamCompletion(ctx, req)
	if err != nil {
		d.metrics.RecordProviderError(ctx, "llm", "stream")
		return fmt.Errorf("dispatch: start answer stream: %w", err)
	}

	var answer strings.Builder
	for chunk := range chunks {
		if chunk.FinishReason == "error" {
			d.metrics.RecordProviderError(ctx, "llm", "mid_stream")
			return fmt.Errorf("dispatch: answer stream failed after %d chars", answer.Len())
		}
		if chunk.Text != "" {
			answer.WriteString(chunk.Text)
			d.sink.AnswerDelta(chunk.Text)
		}
	}
	d.sink.AnswerDone()
	d.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	d.metrics.AnswersDispatched.Add(ctx, 1)

	d.fusion.AddExchange(intent.Text, answer.String())
	if err := d.store.AppendExchange(ctx, intent.Text, answer.String()); err != nil {
		d.metrics.RecordProviderError(ctx, "store", "append_exchange")
		d.logger.Warn("exchange not persisted", "error", err)
	}

	d.logger.Info("answer dispatched",
		"kind", intent.Kind.String(),
		"answer_chars", answer.Len(),
		"duration", time.Since(start),
	)
	return nil
}
