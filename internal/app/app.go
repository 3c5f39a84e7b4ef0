// Package app wires all subsystems into a running application.
//
// The App owns the full lifecycle: New connects providers, buffers, gate and
// dispatcher; Run drives the worker loops (capture pump, frame processing,
// screen timer, cooldown ticker, overlay server) under one errgroup; Shutdown
// tears everything down in order.
//
// Fault policy: component-local errors (a failed OCR read, one bad LLM call)
// are logged and absorbed; a capture-device fault is fatal — the overlay is
// told the pipeline stopped and every loop unwinds cleanly.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/auricle-ai/auricle/internal/config"
	"github.com/auricle-ai/auricle/internal/dispatch"
	"github.com/auricle-ai/auricle/internal/fusion"
	"github.com/auricle-ai/auricle/internal/gate"
	"github.com/auricle-ai/auricle/internal/observe"
	"github.com/auricle-ai/auricle/internal/overlay"
	"github.com/auricle-ai/auricle/internal/pipeline"
	"github.com/auricle-ai/auricle/internal/store"
	"github.com/auricle-ai/auricle/pkg/capture"
	"github.com/auricle-ai/auricle/pkg/provider/embeddings"
	"github.com/auricle-ai/auricle/pkg/provider/llm"
	"github.com/auricle-ai/auricle/pkg/provider/ocr"
	"github.com/auricle-ai/auricle/pkg/provider/stt"
	"github.com/auricle-ai/auricle/pkg/provider/vad"
)

// ErrStopped is returned by Run when an overlay client issues the stop
// control. It is a clean shutdown, not a fault.
var ErrStopped = errors.New("stopped by overlay control")

// cooldownTickInterval is how often the gate's timeout safety net is
// checked. Much finer than the cooldown itself so a timeout release is
// never late by more than a tick.
const cooldownTickInterval = 250 * time.Millisecond

// purgeInterval is how often over-age context items are evicted.
const purgeInterval = 30 * time.Second

// Providers holds one interface value per provider slot, populated by
// main.go from the config.
type Providers struct {
	Device     capture.Device
	Screen     capture.ScreenSource
	VAD        vad.Engine
	STT        stt.Transcriber
	OCR        ocr.Engine
	LLM        llm.Provider
	Embeddings embeddings.Provider
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	hub        *overlay.Hub
	server     *overlay.Server
	gate       *gate.Gate
	fusion     *fusion.Manager
	processor  *pipeline.Processor
	dispatcher *dispatch.Dispatcher
	store      store.Store

	metrics *observe.Metrics
	logger  *slog.Logger

	paused   atomic.Bool
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a store instead of creating one from config.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithHub injects an overlay hub instead of creating one.
func WithHub(h *overlay.Hub) Option {
	return func(a *App) { a.hub = h }
}

// WithMetrics sets the metrics instance. Defaults to observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// New wires all subsystems together. The providers struct comes from main.go.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.Device == nil || providers.VAD == nil ||
		providers.STT == nil || providers.LLM == nil {
		return nil, fmt.Errorf("app: device, vad, stt and llm providers are required")
	}

	a := &App{cfg: cfg, providers: providers}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.hub == nil {
		a.hub = overlay.NewHub(overlay.WithMetrics(a.metrics), overlay.WithLogger(a.logger))
	}

	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	a.gate = gate.New(
		gate.WithCooldown(time.Duration(cfg.Gate.CooldownMs)*time.Millisecond),
		gate.WithDetector(&gate.RuleDetector{
			ImperativeVerbs:   cfg.Gate.ImperativeVerbs,
			ContextualPhrases: cfg.Gate.ContextualPhrases,
		}),
		gate.WithMetrics(a.metrics),
		gate.WithLogger(a.logger),
	)

	a.fusion = fusion.NewManager(fusion.Config{
		TokenBudget:       cfg.Fusion.TokenBudget,
		DecayWindow:       time.Duration(cfg.Fusion.DecayWindowSec) * time.Second,
		DecayFloor:        cfg.Fusion.DecayFloor,
		ScreenBufferSize:  cfg.Fusion.ScreenBufferSize,
		AudioBufferSize:   cfg.Fusion.AudioBufferSize,
		HistoryBufferSize: cfg.Fusion.HistoryBufferSize,
		MaxAge:            time.Duration(cfg.Fusion.MaxAgeSec) * time.Second,
		ConflictKeywords:  cfg.Fusion.ConflictKeywords,
	},
		fusion.WithScreenChangeFunc(func() { a.gate.ScreenChanged(context.Background()) }),
		fusion.WithMetrics(a.metrics),
		fusion.WithLogger(a.logger),
	)

	proc, err := pipeline.New(pipeline.Config{
		SampleRate:         cfg.Audio.SampleRate,
		Channels:           1,
		FrameSizeMs:        cfg.Audio.FrameSizeMs,
		SilenceMs:          cfg.Audio.SilenceMs,
		MinSpeechFrames:    cfg.Audio.MinSpeechFrames,
		QueueSize:          cfg.Audio.QueueSize,
		VADEnergyThreshold: cfg.Audio.EnergyThreshold,
		VADMode:            cfg.Audio.VADMode,
		Language:           cfg.Audio.Language,
	},
		providers.VAD,
		&pipeline.EnergyAttributor{InterviewerThreshold: cfg.Audio.InterviewerEnergyThreshold},
		providers.STT,
		pipeline.WithMetrics(a.metrics),
		pipeline.WithLogger(a.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("app: init pipeline: %w", err)
	}
	a.processor = proc

	a.dispatcher, err = dispatch.New(dispatch.Config{
		ResumeTopK:        cfg.Store.ResumeTopK,
		PreferredLanguage: cfg.Background.PreferredLanguage,
	},
		providers.LLM, a.fusion, a.store, a.hub,
		dispatch.WithMetrics(a.metrics),
		dispatch.WithLogger(a.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("app: init dispatcher: %w", err)
	}

	a.server = overlay.NewServer(overlay.ServerConfig{
		ListenAddr: cfg.Server.ListenAddr,
		Metrics:    cfg.Server.Metrics,
	}, a.hub, a.logger)

	if err := a.loadBackground(ctx); err != nil {
		return nil, fmt.Errorf("app: load background: %w", err)
	}
	return a, nil
}

// initStore connects PostgreSQL when a DSN is configured; otherwise the
// pipeline runs without persistence.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	if a.cfg.Store.PostgresDSN == "" {
		a.store = store.Nop{}
		a.logger.Info("no database configured, persistence disabled")
		return nil
	}
	if a.providers.Embeddings == nil {
		return fmt.Errorf("store.postgres_dsn is set but no embeddings provider is configured")
	}
	pg, err := store.NewPostgres(ctx, a.cfg.Store.PostgresDSN, a.providers.Embeddings, a.cfg.Store.EmbeddingDimensions)
	if err != nil {
		return err
	}
	a.store = pg
	return nil
}

// loadBackground installs the static background material and indexes it for
// retrieval, one chunk per paragraph. Indexing failures are logged, not
// fatal: answering without resume context beats not starting.
func (a *App) loadBackground(ctx context.Context) error {
	text := a.cfg.Background.Text
	if a.cfg.Background.File != "" {
		data, err := os.ReadFile(a.cfg.Background.File)
		if err != nil {
			return fmt.Errorf("read background file: %w", err)
		}
		if text != "" {
			text += "\n\n"
		}
		text += string(data)
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	a.fusion.SetBackground(text)
	for i, chunk := range strings.Split(text, "\n\n") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		id := fmt.Sprintf("background-%d", i)
		if err := a.store.IndexResumeChunk(ctx, id, chunk); err != nil {
			a.logger.Warn("background chunk not indexed", "id", id, "error", err)
		}
	}
	return nil
}

// Run drives all worker loops until ctx is cancelled, a fatal fault occurs,
// or an overlay client issues stop. On a fault the overlay is notified
// before Run returns.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.server.Run(ctx) })
	g.Go(func() error { return a.processor.Run(ctx) })
	g.Go(func() error {
		return pipeline.RunCapture(ctx, a.providers.Device, capture.StreamConfig{
			SampleRate:  a.cfg.Audio.SampleRate,
			Channels:    1,
			FrameSizeMs: a.cfg.Audio.FrameSizeMs,
		}, a.processor, a.metrics, a.logger)
	})
	g.Go(func() error { return a.eventLoop(ctx) })
	g.Go(func() error { return a.controlLoop(ctx) })
	g.Go(func() error { return a.tickLoop(ctx) })
	if a.cfg.Screen.Enabled {
		g.Go(func() error { return a.screenLoop(ctx) })
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrStopped) {
		a.hub.Fatal(err)
		return err
	}
	return err
}

// eventLoop consumes finalized transcript events: overlay line, fusion
// buffer, persistence, and the gate decision. A gate pass dispatches answer
// generation on its own goroutine so a slow model never stalls this loop;
// the cooldown, already armed by the pass, keeps it to one answer at a time.
func (a *App) eventLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-a.processor.Events():
			if !ok {
				return nil
			}
			a.hub.Transcript(ev)
			a.fusion.AddTranscript(ev)
			if err := a.store.AppendUtterance(ctx, ev); err != nil {
				a.logger.Warn("utterance not persisted", "error", err)
			}

			if a.paused.Load() {
				continue
			}
			intent, ok := a.gate.Evaluate(ctx, ev)
			if !ok {
				continue
			}
			go func() {
				if err := a.dispatcher.Dispatch(ctx, intent); err != nil {
					a.logger.Error("answer dispatch failed", "error", err)
				}
			}()
		}
	}
}

// controlLoop applies overlay control signals. Pause suspends gate
// evaluation (transcription continues); stop unwinds the whole app.
func (a *App) controlLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ctrl := <-a.hub.Controls():
			switch ctrl {
			case overlay.ControlPause:
				a.paused.Store(true)
				a.logger.Info("answering paused")
			case overlay.ControlResume:
				a.paused.Store(false)
				a.logger.Info("answering resumed")
			case overlay.ControlStop:
				a.logger.Info("stop requested")
				return ErrStopped
			}
		}
	}
}

// tickLoop drives the cooldown timeout check and the periodic buffer purge.
func (a *App) tickLoop(ctx context.Context) error {
	cooldown := time.NewTicker(cooldownTickInterval)
	defer cooldown.Stop()
	purge := time.NewTicker(purgeInterval)
	defer purge.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-cooldown.C:
			a.gate.Tick(ctx)
		case <-purge.C:
			a.fusion.Purge()
		}
	}
}

// screenFailureLimit is how many consecutive capture/OCR failures the screen
// loop tolerates before treating the source as gone. One flaky tick is
// normal; a solid run of them means nobody is feeding the screen buffer.
const screenFailureLimit = 10

// screenLoop periodically captures the screen, runs OCR, and feeds the
// result into fusion. A significant content change releases the cooldown
// through the fusion manager's callback. Individual capture and OCR errors
// are transient (logged and skipped), but a [capture.ErrScreenFault] or
// screenFailureLimit consecutive failures is a resource fault: the loop
// returns the error so the supervisor surfaces it.
func (a *App) screenLoop(ctx context.Context) error {
	if a.providers.Screen == nil || a.providers.OCR == nil {
		return fmt.Errorf("app: screen capture enabled but screen source or ocr provider missing")
	}

	ticker := time.NewTicker(time.Duration(a.cfg.Screen.IntervalMs) * time.Millisecond)
	defer ticker.Stop()

	var failures int
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			frame, err := a.providers.Screen.Capture(ctx)
			if err != nil {
				if errors.Is(err, capture.ErrScreenFault) {
					return fmt.Errorf("app: screen capture: %w", err)
				}
				failures++
				if failures >= screenFailureLimit {
					return fmt.Errorf("app: screen capture failed %d times in a row: %w", failures, err)
				}
				a.logger.Warn("screen capture failed", "error", err)
				continue
			}
			res, err := a.providers.OCR.Recognize(ctx, frame)
			if err != nil {
				a.metrics.RecordProviderError(ctx, "ocr", "recognize")
				failures++
				if failures >= screenFailureLimit {
					return fmt.Errorf("app: ocr failed %d times in a row: %w", failures, err)
				}
				a.logger.Warn("ocr failed", "error", err)
				continue
			}
			failures = 0
			if res.Text == "" {
				continue
			}
			a.fusion.AddScreen(res.Text, res.Confidence)
		}
	}
}

// Shutdown releases all resources. Safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	a.stopOnce.Do(func() {
		a.hub.Close()
		a.store.Close()
	})
	return nil
}
