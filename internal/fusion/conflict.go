package fusion

import (
	"fmt"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// defaultConflictKeywords is the domain vocabulary used to decide whether
// screen and audio are talking about the same problem. Interview questions
// overwhelmingly name a data structure or algorithm family, so a mismatch in
// these terms is a reliable topic-divergence signal.
var defaultConflictKeywords = []string{
	"sort", "search", "tree", "graph", "array", "list",
	"binary", "merge", "quick", "heap", "stack", "queue",
	"linked", "hash", "dynamic", "greedy",
}

// fuzzyKeywordThreshold is the minimum Jaro-Winkler score for a transcribed
// word to count as a garbled keyword when its phonetic code also matches.
const fuzzyKeywordThreshold = 0.88

// ConflictDetector finds topic divergence between screen text and audio
// transcript using keyword sets over a fixed vocabulary. Transcription
// garbles domain terms ("binery", "quicksoart"), so matching falls back to
// Double Metaphone plus Jaro-Winkler when an exact hit is missing.
type ConflictDetector struct {
	keywords []string
	codes    map[string]string
}

// NewConflictDetector builds a detector over the given vocabulary. A nil or
// empty list selects the built-in data-structure/algorithm keywords.
func NewConflictDetector(keywords []string) *ConflictDetector {
	if len(keywords) == 0 {
		keywords = defaultConflictKeywords
	}
	codes := make(map[string]string, len(keywords))
	for _, kw := range keywords {
		primary, _ := matchr.DoubleMetaphone(kw)
		codes[kw] = primary
	}
	return &ConflictDetector{keywords: keywords, codes: codes}
}

// Keywords extracts the set of vocabulary terms present in text. Substring
// containment catches compounds like "quicksort" for both "quick" and
// "sort"; a phonetic pass then catches transcription garbles.
func (d *ConflictDetector) Keywords(text string) map[string]struct{} {
	lower := strings.ToLower(text)
	found := make(map[string]struct{})

	for _, kw := range d.keywords {
		if strings.Contains(lower, kw) {
			found[kw] = struct{}{}
		}
	}

	for _, word := range strings.Fields(lower) {
		word = strings.Trim(word, ".,;:!?()[]{}\"'`")
		if len(word) < 3 {
			continue
		}
		primary, _ := matchr.DoubleMetaphone(word)
		if primary == "" {
			continue
		}
		for _, kw := range d.keywords {
			if _, ok := found[kw]; ok {
				continue
			}
			if primary == d.codes[kw] &&
				matchr.JaroWinkler(word, kw, false) >= fuzzyKeywordThreshold {
				found[kw] = struct{}{}
			}
		}
	}
	return found
}

// Detect reports whether the screen and audio keyword sets diverge. Both
// sides must mention at least one vocabulary term; identical sets are
// agreement, anything else is a conflict. The returned note names both sides
// for the answer prompt.
func (d *ConflictDetector) Detect(screenText string, audioTexts []string) (string, bool) {
	screenKW := d.Keywords(screenText)
	audioKW := make(map[string]struct{})
	for _, text := range audioTexts {
		for kw := range d.Keywords(text) {
			audioKW[kw] = struct{}{}
		}
	}

	if len(screenKW) == 0 || len(audioKW) == 0 {
		return "", false
	}
	if setsEqual(screenKW, audioKW) {
		return "", false
	}

	note := fmt.Sprintf(
		"screen content mentions [%s] while the conversation mentions [%s]; the screen is authoritative",
		strings.Join(sortedKeys(screenKW), ", "),
		strings.Join(sortedKeys(audioKW), ", "),
	)
	return note, true
}

func setsEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
