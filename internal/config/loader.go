package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":        {"whisper", "whisper-native", "openai"},
	"ocr":        {"remote"},
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"embeddings": {"openai"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero-valued tuning fields with their documented
// defaults. Called by the loader; exported so tests building a Config by hand
// can normalise it the same way.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8420"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.FrameSizeMs == 0 {
		cfg.Audio.FrameSizeMs = 30
	}
	if cfg.Audio.VADEngine == "" {
		cfg.Audio.VADEngine = VADEnergy
	}
	if cfg.Audio.EnergyThreshold == 0 {
		cfg.Audio.EnergyThreshold = 500
	}
	if cfg.Audio.SilenceMs == 0 {
		cfg.Audio.SilenceMs = 200
	}
	if cfg.Audio.MinSpeechFrames == 0 {
		cfg.Audio.MinSpeechFrames = 10
	}
	if cfg.Audio.InterviewerEnergyThreshold == 0 {
		cfg.Audio.InterviewerEnergyThreshold = 1000
	}
	if cfg.Audio.QueueSize == 0 {
		cfg.Audio.QueueSize = 64
	}
	if cfg.Audio.Language == "" {
		cfg.Audio.Language = "en"
	}
	if cfg.Screen.IntervalMs == 0 {
		cfg.Screen.IntervalMs = 2000
	}
	if cfg.Gate.CooldownMs == 0 {
		cfg.Gate.CooldownMs = 2000
	}
	if cfg.Fusion.TokenBudget == 0 {
		cfg.Fusion.TokenBudget = 3000
	}
	if cfg.Fusion.DecayWindowSec == 0 {
		cfg.Fusion.DecayWindowSec = 60
	}
	if cfg.Fusion.DecayFloor == 0 {
		cfg.Fusion.DecayFloor = 0.5
	}
	if cfg.Fusion.ScreenBufferSize == 0 {
		cfg.Fusion.ScreenBufferSize = 10
	}
	if cfg.Fusion.AudioBufferSize == 0 {
		cfg.Fusion.AudioBufferSize = 20
	}
	if cfg.Fusion.HistoryBufferSize == 0 {
		cfg.Fusion.HistoryBufferSize = 10
	}
	if cfg.Fusion.MaxAgeSec == 0 {
		cfg.Fusion.MaxAgeSec = 300
	}
	if cfg.Store.EmbeddingDimensions == 0 {
		cfg.Store.EmbeddingDimensions = 1536
	}
	if cfg.Store.ResumeTopK == 0 {
		cfg.Store.ResumeTopK = 3
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Audio
	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}
	switch cfg.Audio.FrameSizeMs {
	case 10, 20, 30:
	default:
		errs = append(errs, fmt.Errorf("audio.frame_size_ms %d is invalid; valid values: 10, 20, 30", cfg.Audio.FrameSizeMs))
	}
	if cfg.Audio.VADEngine != "" && !cfg.Audio.VADEngine.IsValid() {
		errs = append(errs, fmt.Errorf("audio.vad_engine %q is invalid; valid values: energy, webrtc", cfg.Audio.VADEngine))
	}
	if cfg.Audio.VADMode < 0 || cfg.Audio.VADMode > 3 {
		errs = append(errs, fmt.Errorf("audio.vad_mode %d is out of range [0, 3]", cfg.Audio.VADMode))
	}
	if cfg.Audio.EnergyThreshold < 0 {
		errs = append(errs, fmt.Errorf("audio.energy_threshold %.1f must not be negative", cfg.Audio.EnergyThreshold))
	}
	if cfg.Audio.SilenceMs <= 0 {
		errs = append(errs, fmt.Errorf("audio.silence_ms %d must be positive", cfg.Audio.SilenceMs))
	}
	if cfg.Audio.MinSpeechFrames <= 0 {
		errs = append(errs, fmt.Errorf("audio.min_speech_frames %d must be positive", cfg.Audio.MinSpeechFrames))
	}
	if cfg.Audio.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("audio.queue_size %d must be positive", cfg.Audio.QueueSize))
	}

	// Screen
	if cfg.Screen.Enabled && cfg.Screen.IntervalMs <= 0 {
		errs = append(errs, fmt.Errorf("screen.interval_ms %d must be positive when screen capture is enabled", cfg.Screen.IntervalMs))
	}

	// Gate
	if cfg.Gate.CooldownMs <= 0 {
		errs = append(errs, fmt.Errorf("gate.cooldown_ms %d must be positive", cfg.Gate.CooldownMs))
	}

	// Fusion
	if cfg.Fusion.TokenBudget <= 0 {
		errs = append(errs, fmt.Errorf("fusion.token_budget %d must be positive", cfg.Fusion.TokenBudget))
	}
	if cfg.Fusion.DecayFloor <= 0 || cfg.Fusion.DecayFloor > 1 {
		errs = append(errs, fmt.Errorf("fusion.decay_floor %.2f is out of range (0, 1]", cfg.Fusion.DecayFloor))
	}
	if cfg.Fusion.DecayWindowSec <= 0 {
		errs = append(errs, fmt.Errorf("fusion.decay_window_sec %d must be positive", cfg.Fusion.DecayWindowSec))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("stt", cfg.Providers.FallbackSTT.Name)
	validateProviderName("ocr", cfg.Providers.OCR.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("llm", cfg.Providers.FallbackLLM.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)

	// Provider availability
	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm is required; no answers can be generated without it"))
	}
	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt is required; utterances cannot be transcribed without it"))
	}
	if cfg.Screen.Enabled && cfg.Providers.OCR.Name == "" {
		errs = append(errs, errors.New("providers.ocr is required when screen capture is enabled"))
	}

	// Store ↔ embeddings cross-validation
	if cfg.Store.EmbeddingDimensions <= 0 {
		errs = append(errs, fmt.Errorf("store.embedding_dimensions must be positive, got %d", cfg.Store.EmbeddingDimensions))
	}
	if cfg.Store.PostgresDSN != "" && cfg.Providers.Embeddings.Name == "" {
		slog.Warn("store.postgres_dsn is set but providers.embeddings is not; resume retrieval will be unavailable")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
