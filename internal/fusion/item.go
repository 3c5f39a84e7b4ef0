package fusion

import "time"

// Source identifies where a context item came from. The source determines the
// item's base weight during merging: screen content outranks audio, audio
// outranks history, and background material fills whatever budget is left.
type Source int

const (
	SourceScreen Source = iota
	SourceAudio
	SourceHistory
	SourceBackground
)

// String returns the source label used in merged output and metrics.
func (s Source) String() string {
	switch s {
	case SourceScreen:
		return "screen"
	case SourceAudio:
		return "audio"
	case SourceHistory:
		return "history"
	case SourceBackground:
		return "background"
	default:
		return "unknown"
	}
}

// baseWeight is the per-source multiplier in the effective-priority formula.
func (s Source) baseWeight() float64 {
	switch s {
	case SourceScreen:
		return 1.5
	case SourceAudio:
		return 1.2
	case SourceHistory:
		return 1.0
	case SourceBackground:
		return 0.8
	default:
		return 0
	}
}

// Priority is the coarse importance class assigned when an item is added.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityMedium
	PriorityLow
	PriorityBackground
)

// String returns the lowercase priority label.
func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	case PriorityBackground:
		return "background"
	default:
		return "unknown"
	}
}

// ContextItem is one unit of context held in a fusion buffer. Items are
// immutable once stored; merging never modifies them.
type ContextItem struct {
	Source     Source
	Content    string
	Timestamp  time.Time
	Priority   Priority
	Confidence float64
}

// tokens estimates the item's token cost as its whitespace-delimited word
// count.
func (it ContextItem) tokens() int {
	return countTokens(it.Content)
}

// MergedContext is the bounded, single-string view of all live context,
// produced by Manager.Merge for the answer generator.
type MergedContext struct {
	// PrimaryText is the authoritative context, screen content first.
	PrimaryText string

	// SupportingText holds audio-derived content that was demoted because it
	// conflicts with the screen. Empty when there is no conflict.
	SupportingText string

	// ConflictNote describes a detected screen/audio conflict, if any.
	ConflictNote string

	// TokenCount is the estimated token total of the merged output.
	TokenCount int

	// SourcesUsed lists the sources that contributed at least one item.
	SourcesUsed []Source

	// DetectedLanguage is the programming language found in screen content,
	// empty when none was detected.
	DetectedLanguage string

	// DetectedCode is the code block the language was detected in.
	DetectedCode string
}
