// Package fusion merges screen text, audio transcript, conversation history,
// and background material into one bounded context for answer generation.
//
// The core invariant: screen content is ground truth. When the screen and
// the conversation name different domain topics, the screen stays primary
// and the audio is demoted to non-authoritative support — never dropped,
// since it may carry useful phrasing, but never allowed to override
// screen-derived facts.
//
// All state lives behind one Manager and one mutex. Merge is read-only and
// idempotent: calling it twice with no intervening writes yields the same
// result.
package fusion

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/antzucaro/matchr"

	"github.com/auricle-ai/auricle/internal/observe"
	"github.com/auricle-ai/auricle/pkg/types"
)

// Defaults applied by NewManager for zero Config fields.
const (
	DefaultTokenBudget       = 3000
	DefaultDecayWindow       = 60 * time.Second
	DefaultDecayFloor        = 0.5
	DefaultScreenBufferSize  = 10
	DefaultAudioBufferSize   = 20
	DefaultHistoryBufferSize = 10
	DefaultMaxAge            = 5 * time.Minute
)

// Merge selection windows. Screen items must be fresh to lead the context;
// audio and history contribute their most recent few entries.
const (
	screenRecencyWindow = 30 * time.Second
	screenMaxItems      = 3
	audioRecentItems    = 5
	historyRecentItems  = 3
)

// screenSimilarityThreshold separates a cosmetic screen update (cursor
// moved, one line scrolled) from a significant content change that should
// release the answer cooldown.
const screenSimilarityThreshold = 0.80

// Config holds fusion tuning. Zero values take the documented defaults.
type Config struct {
	// TokenBudget bounds the merged output, in estimated tokens.
	TokenBudget int

	// DecayWindow is how long an item takes to decay to the floor weight.
	DecayWindow time.Duration

	// DecayFloor is the minimum age-decay multiplier, in (0, 1].
	DecayFloor float64

	// ScreenBufferSize, AudioBufferSize and HistoryBufferSize cap the
	// per-source ring buffers.
	ScreenBufferSize  int
	AudioBufferSize   int
	HistoryBufferSize int

	// MaxAge evicts items regardless of buffer occupancy.
	MaxAge time.Duration

	// ConflictKeywords overrides the topic vocabulary used for
	// screen/audio conflict detection.
	ConflictKeywords []string
}

func (c *Config) applyDefaults() {
	if c.TokenBudget == 0 {
		c.TokenBudget = DefaultTokenBudget
	}
	if c.DecayWindow == 0 {
		c.DecayWindow = DefaultDecayWindow
	}
	if c.DecayFloor == 0 {
		c.DecayFloor = DefaultDecayFloor
	}
	if c.ScreenBufferSize == 0 {
		c.ScreenBufferSize = DefaultScreenBufferSize
	}
	if c.AudioBufferSize == 0 {
		c.AudioBufferSize = DefaultAudioBufferSize
	}
	if c.HistoryBufferSize == 0 {
		c.HistoryBufferSize = DefaultHistoryBufferSize
	}
	if c.MaxAge == 0 {
		c.MaxAge = DefaultMaxAge
	}
}

// Manager owns the per-source context buffers and produces merged context.
// All methods are safe for concurrent use.
type Manager struct {
	mu sync.Mutex

	cfg      Config
	screen   *buffer
	audio    *buffer
	history  *buffer
	detector *ConflictDetector

	background     ContextItem
	hasBackground  bool
	lastScreenHash uint64
	lastScreenText string

	onScreenChange func()
	now            func() time.Time
	metrics        *observe.Metrics
	logger         *slog.Logger
}

// Option is a functional option for Manager.
type Option func(*Manager)

// WithScreenChangeFunc registers a callback invoked (outside the manager
// lock) whenever AddScreen observes a significant content change.
func WithScreenChangeFunc(fn func()) Option {
	return func(m *Manager) { m.onScreenChange = fn }
}

// WithClock injects the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithMetrics sets the metrics instance. Defaults to observe.DefaultMetrics.
func WithMetrics(mx *observe.Metrics) Option {
	return func(m *Manager) { m.metrics = mx }
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a Manager with empty buffers.
func NewManager(cfg Config, opts ...Option) *Manager {
	cfg.applyDefaults()
	m := &Manager{
		cfg:      cfg,
		screen:   newBuffer(cfg.ScreenBufferSize, cfg.MaxAge),
		audio:    newBuffer(cfg.AudioBufferSize, cfg.MaxAge),
		history:  newBuffer(cfg.HistoryBufferSize, cfg.MaxAge),
		detector: NewConflictDetector(cfg.ConflictKeywords),
		now:      time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// AddScreen records OCR output from a screen capture and reports whether the
// content changed significantly since the previous capture. Identical
// content (same hash) is deduplicated and only refreshes the newest item's
// timestamp.
func (m *Manager) AddScreen(text string, confidence float64) bool {
	norm := normalizeScreen(text)
	if norm == "" {
		return false
	}

	h := fnv.New64a()
	h.Write([]byte(norm))
	hash := h.Sum64()

	m.mu.Lock()
	now := m.now()

	if hash == m.lastScreenHash {
		if n := m.screen.len(); n > 0 {
			m.screen.items[n-1].Timestamp = now
		}
		m.mu.Unlock()
		return false
	}

	significant := m.lastScreenText == "" ||
		matchr.JaroWinkler(norm, m.lastScreenText, false) < screenSimilarityThreshold

	m.screen.add(ContextItem{
		Source:     SourceScreen,
		Content:    strings.TrimSpace(text),
		Timestamp:  now,
		Priority:   PriorityCritical,
		Confidence: confidence,
	}, now)
	m.lastScreenHash = hash
	m.lastScreenText = norm

	fn := m.onScreenChange
	m.mu.Unlock()

	if significant {
		m.logger.Debug("significant screen change", "tokens", countTokens(text))
		if fn != nil {
			fn()
		}
	}
	return significant
}

// AddTranscript records a finalized utterance into the audio buffer.
// Interviewer speech outranks the user's own.
func (m *Manager) AddTranscript(ev types.TranscriptEvent) {
	if strings.TrimSpace(ev.Text) == "" {
		return
	}
	prio := PriorityMedium
	if ev.Speaker == types.SpeakerInterviewer {
		prio = PriorityHigh
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.audio.add(ContextItem{
		Source:     SourceAudio,
		Content:    fmt.Sprintf("%s: %s", ev.Speaker, ev.Text),
		Timestamp:  now,
		Priority:   prio,
		Confidence: ev.Confidence,
	}, now)
}

// AddExchange records a completed question/answer pair into the history
// buffer so follow-up questions can reference earlier answers.
func (m *Manager) AddExchange(question, answer string) {
	if question == "" && answer == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.history.add(ContextItem{
		Source:     SourceHistory,
		Content:    fmt.Sprintf("Q: %s\nA: %s", question, answer),
		Timestamp:  now,
		Priority:   PriorityLow,
		Confidence: 1.0,
	}, now)
}

// SetBackground installs the static background material (resume summary,
// role description). It never decays and never evicts; an empty text clears
// it.
func (m *Manager) SetBackground(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	text = strings.TrimSpace(text)
	if text == "" {
		m.hasBackground = false
		m.background = ContextItem{}
		return
	}
	m.background = ContextItem{
		Source:     SourceBackground,
		Content:    text,
		Timestamp:  m.now(),
		Priority:   PriorityBackground,
		Confidence: 1.0,
	}
	m.hasBackground = true
}

// Purge evicts over-age items from every buffer. Call it from a periodic
// maintenance tick; Merge itself never mutates the buffers.
func (m *Manager) Purge() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.screen.purge(now)
	m.audio.purge(now)
	m.history.purge(now)
}

// Len reports the current number of items buffered for a source. Background
// counts as 0 or 1.
func (m *Manager) Len(src Source) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch src {
	case SourceScreen:
		return m.screen.len()
	case SourceAudio:
		return m.audio.len()
	case SourceHistory:
		return m.history.len()
	case SourceBackground:
		if m.hasBackground {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// Merge assembles the bounded context for the given question. The question's
// own tokens are reserved out of the budget; items are appended whole in
// source order (screen, audio, history, background), highest effective
// priority first within each source, and an item that does not fit is
// dropped whole, never truncated.
func (m *Manager) Merge(question string) MergedContext {
	start := time.Now()
	m.mu.Lock()
	defer func() {
		m.mu.Unlock()
		m.metrics.MergeDuration.Record(context.Background(), time.Since(start).Seconds())
	}()

	now := m.now()
	budget := m.cfg.TokenBudget
	used := countTokens(question)

	screenItems := m.rank(m.screen.recent(screenMaxItems, screenRecencyWindow, now), now)
	audioItems := m.rank(m.audio.recent(audioRecentItems, 0, now), now)
	historyItems := m.rank(m.history.recent(historyRecentItems, 0, now), now)

	var (
		screenParts, audioParts, historyParts, bgParts []string
		sources                                        []Source
	)
	appendGroup := func(items []ContextItem, parts *[]string, src Source) {
		added := false
		for _, item := range items {
			cost := item.tokens()
			if used+cost > budget {
				continue
			}
			used += cost
			*parts = append(*parts, item.Content)
			added = true
		}
		if added {
			sources = append(sources, src)
		}
	}

	appendGroup(screenItems, &screenParts, SourceScreen)
	appendGroup(audioItems, &audioParts, SourceAudio)
	appendGroup(historyItems, &historyParts, SourceHistory)
	if m.hasBackground {
		appendGroup([]ContextItem{m.background}, &bgParts, SourceBackground)
	}

	screenText := strings.Join(screenParts, "\n\n")
	conflictNote, conflict := m.detector.Detect(screenText, audioParts)

	var primary []string
	var supporting string
	if conflict {
		primary = concatParts(screenParts, historyParts, bgParts)
		supporting = strings.Join(audioParts, "\n")
	} else {
		primary = concatParts(screenParts, audioParts, historyParts, bgParts)
	}

	merged := MergedContext{
		PrimaryText:    strings.Join(primary, "\n\n"),
		SupportingText: supporting,
		ConflictNote:   conflictNote,
		SourcesUsed:    sources,
	}
	merged.TokenCount = countTokens(merged.PrimaryText) + countTokens(merged.SupportingText)

	if lang, code, ok := DetectCode(screenText); ok {
		merged.DetectedLanguage = lang
		merged.DetectedCode = code
	}
	return merged
}

// rank sorts items by effective priority, descending. It copies before
// sorting so Merge stays read-only.
func (m *Manager) rank(items []ContextItem, now time.Time) []ContextItem {
	out := make([]ContextItem, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		return effectivePriority(out[i], now, m.cfg.DecayWindow, m.cfg.DecayFloor) >
			effectivePriority(out[j], now, m.cfg.DecayWindow, m.cfg.DecayFloor)
	})
	return out
}

func concatParts(groups ...[]string) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// normalizeScreen collapses whitespace so cursor jitter and re-wrapping do
// not read as new content.
func normalizeScreen(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
