package gate

import (
	"strings"

	"github.com/auricle-ai/auricle/pkg/types"
)

// QuestionIntentDetector classifies finalized utterance text. Implementations
// must be deterministic and side-effect free; the gate calls Detect under its
// own lock.
//
// The detector is a strategy interface so a learned classifier can replace
// the rule set without touching the gate.
type QuestionIntentDetector interface {
	// Detect reports the question intent found in text, if any.
	Detect(text string) (types.QuestionIntent, bool)
}

// Confidence assigned per intent kind, strongest signal first.
const (
	directConfidence     = 0.95
	imperativeConfidence = 0.90
	contextualConfidence = 0.85
)

// defaultImperativeVerbs are request markers that make an utterance a task
// even without a question mark ("implement a queue", "walk me through this").
var defaultImperativeVerbs = []string{
	"explain", "walk me through", "solve", "design", "implement",
	"write", "create", "build", "develop", "describe",
	"tell me", "show me", "demonstrate", "code", "program",
	"debug", "fix", "optimize",
}

// defaultContextualPhrases point at shared visual context, which usually
// means "the question is whatever is on the screen".
var defaultContextualPhrases = []string{
	"on the screen", "based on this", "look at this", "see here",
	"in this code", "this problem", "given this", "for this", "with this",
}

// RuleDetector is the built-in keyword QuestionIntentDetector. The zero value
// uses the default verb and phrase lists.
type RuleDetector struct {
	// ImperativeVerbs overrides the built-in imperative verb list.
	ImperativeVerbs []string

	// ContextualPhrases overrides the built-in contextual phrase list.
	ContextualPhrases []string
}

// Compile-time interface check.
var _ QuestionIntentDetector = (*RuleDetector)(nil)

// Detect matches the strongest applicable rule: a trailing question mark
// beats an imperative verb beats a contextual phrase.
func (d *RuleDetector) Detect(text string) (types.QuestionIntent, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return types.QuestionIntent{}, false
	}
	lower := strings.ToLower(trimmed)

	if strings.HasSuffix(lower, "?") {
		return types.QuestionIntent{
			Text:       trimmed,
			Confidence: directConfidence,
			Kind:       types.IntentDirect,
		}, true
	}

	verbs := d.ImperativeVerbs
	if verbs == nil {
		verbs = defaultImperativeVerbs
	}
	for _, verb := range verbs {
		if containsPhrase(lower, verb) {
			return types.QuestionIntent{
				Text:       trimmed,
				Confidence: imperativeConfidence,
				Kind:       types.IntentImperative,
			}, true
		}
	}

	phrases := d.ContextualPhrases
	if phrases == nil {
		phrases = defaultContextualPhrases
	}
	for _, phrase := range phrases {
		if containsPhrase(lower, phrase) {
			return types.QuestionIntent{
				Text:       trimmed,
				Confidence: contextualConfidence,
				Kind:       types.IntentContextual,
			}, true
		}
	}

	return types.QuestionIntent{}, false
}

// containsPhrase reports whether phrase appears in text on word boundaries,
// so "fix" matches "please fix it" but not "prefix".
func containsPhrase(text, phrase string) bool {
	for from := 0; from <= len(text)-len(phrase); {
		idx := strings.Index(text[from:], phrase)
		if idx < 0 {
			return false
		}
		start := from + idx
		end := start + len(phrase)
		if boundaryAt(text, start-1) && boundaryAt(text, end) {
			return true
		}
		from = start + 1
	}
	return false
}

func boundaryAt(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return true
	}
	c := text[i]
	return !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9')
}
