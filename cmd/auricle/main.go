// Command auricle is the main entry point for the Auricle interview copilot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/auricle-ai/auricle/internal/app"
	"github.com/auricle-ai/auricle/internal/config"
	"github.com/auricle-ai/auricle/internal/observe"
	"github.com/auricle-ai/auricle/internal/resilience"
	"github.com/auricle-ai/auricle/pkg/capture/pcm"
	"github.com/auricle-ai/auricle/pkg/capture/screenhttp"
	"github.com/auricle-ai/auricle/pkg/provider/embeddings"
	oaembed "github.com/auricle-ai/auricle/pkg/provider/embeddings/openai"
	"github.com/auricle-ai/auricle/pkg/provider/llm"
	"github.com/auricle-ai/auricle/pkg/provider/llm/anyllm"
	oallm "github.com/auricle-ai/auricle/pkg/provider/llm/openai"
	ocrremote "github.com/auricle-ai/auricle/pkg/provider/ocr/remote"
	"github.com/auricle-ai/auricle/pkg/provider/stt"
	oastt "github.com/auricle-ai/auricle/pkg/provider/stt/openai"
	"github.com/auricle-ai/auricle/pkg/provider/stt/whisper"
	vadenergy "github.com/auricle-ai/auricle/pkg/provider/vad/energy"
	vadwebrtc "github.com/auricle-ai/auricle/pkg/provider/vad/webrtc"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "auricle: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "auricle: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("auricle starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Metrics ───────────────────────────────────────────────────────────────
	// Must come before app.New so the default Metrics instance binds to the
	// Prometheus-backed meter provider rather than the no-op global.
	if cfg.Server.Metrics {
		shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{})
		if err != nil {
			slog.Error("failed to initialise metrics", "err", err)
			return 1
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownMetrics(flushCtx); err != nil {
				slog.Warn("metrics shutdown error", "err", err)
			}
		}()
	}

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("copilot ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil &&
		!errors.Is(err, context.Canceled) && !errors.Is(err, app.ErrStopped) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// buildProviders instantiates every provider named in cfg and returns them in
// an [app.Providers] struct for the application to consume.
func buildProviders(cfg *config.Config) (*app.Providers, error) {
	ps := &app.Providers{
		Device: pcm.New(cfg.Audio.Device),
	}

	switch cfg.Audio.VADEngine {
	case config.VADWebRTC:
		ps.VAD = vadwebrtc.New()
	default:
		ps.VAD = vadenergy.New()
	}
	slog.Info("provider created", "kind", "vad", "name", cfg.Audio.VADEngine)

	transcriber, err := buildSTT(cfg.Providers.STT, cfg.Audio.Language)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", cfg.Providers.STT.Name, err)
	}
	if fb := cfg.Providers.FallbackSTT; fb.Name != "" {
		fallback, err := buildSTT(fb, cfg.Audio.Language)
		if err != nil {
			return nil, fmt.Errorf("create fallback stt provider %q: %w", fb.Name, err)
		}
		group := resilience.NewSTTFallback(transcriber, cfg.Providers.STT.Name, resilience.FallbackConfig{})
		group.AddFallback(fb.Name, fallback)
		ps.STT = group
		slog.Info("provider created", "kind", "stt",
			"name", cfg.Providers.STT.Name, "fallback", fb.Name)
	} else {
		ps.STT = transcriber
		slog.Info("provider created", "kind", "stt", "name", cfg.Providers.STT.Name)
	}

	model, err := buildLLM(cfg.Providers.LLM)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", cfg.Providers.LLM.Name, err)
	}
	if fb := cfg.Providers.FallbackLLM; fb.Name != "" {
		fallback, err := buildLLM(fb)
		if err != nil {
			return nil, fmt.Errorf("create fallback llm provider %q: %w", fb.Name, err)
		}
		group := resilience.NewLLMFallback(model, cfg.Providers.LLM.Name, resilience.FallbackConfig{})
		group.AddFallback(fb.Name, fallback)
		ps.LLM = group
		slog.Info("provider created", "kind", "llm",
			"name", cfg.Providers.LLM.Name, "fallback", fb.Name)
	} else {
		ps.LLM = model
		slog.Info("provider created", "kind", "llm", "name", cfg.Providers.LLM.Name)
	}

	if entry := cfg.Providers.OCR; entry.Name != "" {
		engine, err := ocrremote.New(entry.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("create ocr provider %q: %w", entry.Name, err)
		}
		ps.OCR = engine
		slog.Info("provider created", "kind", "ocr", "name", entry.Name)
	}

	if cfg.Screen.Enabled {
		screen, err := screenhttp.New(cfg.Screen.SourceURL)
		if err != nil {
			return nil, fmt.Errorf("create screen source: %w", err)
		}
		ps.Screen = screen
	}

	if entry := cfg.Providers.Embeddings; entry.Name != "" {
		embedder, err := buildEmbeddings(entry)
		if err != nil {
			return nil, fmt.Errorf("create embeddings provider %q: %w", entry.Name, err)
		}
		ps.Embeddings = embedder
		slog.Info("provider created", "kind", "embeddings", "name", entry.Name)
	}

	return ps, nil
}

func buildSTT(entry config.ProviderEntry, language string) (stt.Transcriber, error) {
	if lang := optString(entry.Options, "language"); lang != "" {
		language = lang
	}

	switch entry.Name {
	case "whisper":
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if language != "" {
			opts = append(opts, whisper.WithLanguage(language))
		}
		return whisper.New(entry.BaseURL, opts...)

	case "whisper-native":
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.NativeOption
		if language != "" {
			opts = append(opts, whisper.WithNativeLanguage(language))
		}
		return whisper.NewNative(modelPath, opts...)

	case "openai":
		var opts []oastt.Option
		if entry.Model != "" {
			opts = append(opts, oastt.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, oastt.WithBaseURL(entry.BaseURL))
		}
		return oastt.New(entry.APIKey, opts...)
	}
	return nil, fmt.Errorf("unknown stt provider %q", entry.Name)
}

func buildLLM(entry config.ProviderEntry) (llm.Provider, error) {
	// The native OpenAI provider streams through the official SDK; every
	// other vendor goes through the any-llm gateway.
	if entry.Name == "openai" {
		var opts []oallm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oallm.WithBaseURL(entry.BaseURL))
		}
		return oallm.New(entry.APIKey, entry.Model, opts...)
	}

	var opts []anyllmlib.Option
	if entry.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
	}
	if entry.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
	}
	return anyllm.New(entry.Name, entry.Model, opts...)
}

func buildEmbeddings(entry config.ProviderEntry) (embeddings.Provider, error) {
	switch entry.Name {
	case "openai":
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	}
	return nil, fmt.Errorf("unknown embeddings provider %q", entry.Name)
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Auricle — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("Fallback LLM", cfg.Providers.FallbackLLM.Name, cfg.Providers.FallbackLLM.Model)
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("Fallback STT", cfg.Providers.FallbackSTT.Name, cfg.Providers.FallbackSTT.Model)
	printProvider("OCR", cfg.Providers.OCR.Name, "")
	printProvider("Embeddings", cfg.Providers.Embeddings.Name, cfg.Providers.Embeddings.Model)
	printProvider("VAD", string(cfg.Audio.VADEngine), "")
	if cfg.Screen.Enabled {
		fmt.Printf("║  Screen capture  : %-19s ║\n", "enabled")
	} else {
		fmt.Printf("║  Screen capture  : %-19s ║\n", "(disabled)")
	}
	if cfg.Store.PostgresDSN != "" {
		fmt.Printf("║  Session store   : %-19s ║\n", "postgres")
	} else {
		fmt.Printf("║  Session store   : %-19s ║\n", "(disabled)")
	}
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
