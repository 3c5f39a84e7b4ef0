// Package gate implements the answer decision gate: the single place where a
// finalized transcript event is turned into "generate an answer now" or
// nothing.
//
// Four conditions must all hold for an event to pass: the speaker is the
// interviewer, the event is finalized (guaranteed by the pipeline), the text
// carries question intent, and no cooldown is active. A failed condition is
// normal and frequent, not an error.
//
// The gate owns the only cooldown instance in the process. Every transition —
// activation on a gate pass, release on later interviewer speech, on a
// significant screen change, or on timeout — runs under one mutex, so
// "answer dispatched" can never race with "interviewer spoke again".
package gate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/auricle-ai/auricle/internal/observe"
	"github.com/auricle-ai/auricle/pkg/types"
)

// DefaultCooldown is the timeout safety net: an active cooldown that nothing
// else releases clears after this long.
const DefaultCooldown = 2 * time.Second

// Gate is the question-intent decision gate with its cooldown state machine.
type Gate struct {
	mu          sync.Mutex
	active      bool
	activatedAt time.Time

	detector QuestionIntentDetector
	cooldown time.Duration
	now      func() time.Time
	metrics  *observe.Metrics
	logger   *slog.Logger
}

// Option is a functional option for Gate.
type Option func(*Gate)

// WithDetector replaces the built-in rule detector.
func WithDetector(d QuestionIntentDetector) Option {
	return func(g *Gate) { g.detector = d }
}

// WithCooldown sets the cooldown timeout. Defaults to DefaultCooldown.
func WithCooldown(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.cooldown = d
		}
	}
}

// WithClock injects the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithMetrics sets the metrics instance. Defaults to observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(g *Gate) { g.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// New creates a Gate in the idle state.
func New(opts ...Option) *Gate {
	g := &Gate{
		detector: &RuleDetector{},
		cooldown: DefaultCooldown,
		now:      time.Now,
	}
	for _, o := range opts {
		o(g)
	}
	if g.metrics == nil {
		g.metrics = observe.DefaultMetrics()
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

// Evaluate decides, exactly once for this event, whether to trigger answer
// generation. On a pass it returns the detected intent and activates the
// cooldown atomically, so a second event cannot pass before the first answer
// is dispatched.
//
// Interviewer speech arriving during an active cooldown is suppressed but
// releases the cooldown, so the next utterance is evaluated fresh. Later
// interviewer speech is never silently lost behind an earlier answer.
func (g *Gate) Evaluate(ctx context.Context, event types.TranscriptEvent) (types.QuestionIntent, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	speaker := event.Speaker
	if speaker == types.SpeakerUnknown {
		// An unset speaker reaching the gate is a pipeline bug. Degrade to
		// USER (never answer) instead of crashing.
		g.logger.Error("transcript event with unset speaker, treating as user", "text", event.Text)
		speaker = types.SpeakerUser
	}

	if speaker != types.SpeakerInterviewer {
		g.metrics.RecordGateDecision(ctx, "rejected", "speaker")
		return types.QuestionIntent{}, false
	}

	if g.active {
		g.release(ctx, "interviewer_speech")
		g.metrics.RecordGateDecision(ctx, "rejected", "cooldown")
		return types.QuestionIntent{}, false
	}

	intent, ok := g.detector.Detect(event.Text)
	if !ok {
		g.metrics.RecordGateDecision(ctx, "rejected", "no_intent")
		return types.QuestionIntent{}, false
	}

	g.activate(ctx)
	g.metrics.RecordGateDecision(ctx, "passed", intent.Kind.String())
	g.logger.Info("gate passed",
		"kind", intent.Kind.String(),
		"confidence", intent.Confidence,
		"question", intent.Text,
	)
	return intent, true
}

// ScreenChanged releases an active cooldown: new visual context means a new
// on-screen question must not be blocked by an unrelated earlier answer.
func (g *Gate) ScreenChanged(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active {
		g.release(ctx, "screen_change")
	}
}

// Tick checks the cooldown timeout. Call it from a periodic ticker.
func (g *Gate) Tick(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active && g.now().Sub(g.activatedAt) >= g.cooldown {
		g.release(ctx, "timeout")
	}
}

// Active reports whether the cooldown is currently active.
func (g *Gate) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// activate must be called with g.mu held.
func (g *Gate) activate(ctx context.Context) {
	if g.active {
		// Activating an active cooldown is a programming error; log and keep
		// the original activation time.
		g.logger.Error("cooldown activated while already active")
		return
	}
	g.active = true
	g.activatedAt = g.now()
	g.metrics.RecordCooldownTransition(ctx, "activate", "gate_pass")
	g.logger.Debug("cooldown activated")
}

// release must be called with g.mu held.
func (g *Gate) release(ctx context.Context, cause string) {
	g.active = false
	g.metrics.RecordCooldownTransition(ctx, "release", cause)
	g.logger.Debug("cooldown released", "cause", cause)
}
