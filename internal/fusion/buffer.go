package fusion

import (
	"strings"
	"time"
)

// buffer is a fixed-capacity ring of context items with age-based eviction.
// It enforces both a maximum entry count and a maximum age; whichever limit
// is exceeded first evicts the oldest entries. Callers synchronize access;
// the Manager holds its own lock around every buffer operation.
type buffer struct {
	items   []ContextItem
	maxSize int
	maxAge  time.Duration
}

func newBuffer(maxSize int, maxAge time.Duration) *buffer {
	return &buffer{
		items:   make([]ContextItem, 0, maxSize),
		maxSize: maxSize,
		maxAge:  maxAge,
	}
}

// add appends an item and evicts whatever exceeds the size or age limit.
func (b *buffer) add(item ContextItem, now time.Time) {
	b.items = append(b.items, item)
	b.purge(now)
}

// purge drops items older than maxAge and trims the buffer to maxSize,
// oldest first. Survivors move to a fresh backing array so evicted items do
// not pin memory.
func (b *buffer) purge(now time.Time) {
	cutoff := now.Add(-b.maxAge)

	start := 0
	for start < len(b.items) && b.items[start].Timestamp.Before(cutoff) {
		start++
	}
	keep := b.items[start:]

	if len(keep) > b.maxSize {
		keep = keep[len(keep)-b.maxSize:]
	}

	fresh := make([]ContextItem, len(keep), b.maxSize)
	copy(fresh, keep)
	b.items = fresh
}

// recent returns up to n live items no older than window, newest-first by
// insertion order. A zero window disables the age filter.
func (b *buffer) recent(n int, window time.Duration, now time.Time) []ContextItem {
	out := make([]ContextItem, 0, n)
	for i := len(b.items) - 1; i >= 0 && len(out) < n; i-- {
		item := b.items[i]
		if window > 0 && item.Timestamp.Before(now.Add(-window)) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func (b *buffer) len() int { return len(b.items) }

// countTokens estimates token cost as the whitespace-delimited word count.
func countTokens(text string) int {
	return len(strings.Fields(text))
}

// effectivePriority is the merge ordering weight: the source base weight
// scaled by the item's confidence and a linear age decay. Decay reduces the
// weight down to floor over window; items older than the window keep the
// floor weight until a purge removes them.
func effectivePriority(item ContextItem, now time.Time, window time.Duration, floor float64) float64 {
	decay := 1.0
	if window > 0 {
		age := now.Sub(item.Timestamp)
		if age > 0 {
			decay = 1.0 - (1.0-floor)*(float64(age)/float64(window))
			if decay < floor {
				decay = floor
			}
		}
	}
	return item.Source.baseWeight() * item.Confidence * decay
}
