package gate

import (
	"testing"

	"github.com/auricle-ai/auricle/pkg/types"
)

func TestRuleDetector(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		text           string
		wantKind       types.IntentKind
		wantConfidence float64
		wantOK         bool
	}{
		{
			name:           "trailing question mark",
			text:           "What is the time complexity of binary search?",
			wantKind:       types.IntentDirect,
			wantConfidence: 0.95,
			wantOK:         true,
		},
		{
			name:           "question mark after trailing whitespace",
			text:           "  can you hear me?  ",
			wantKind:       types.IntentDirect,
			wantConfidence: 0.95,
			wantOK:         true,
		},
		{
			name:           "imperative verb at start",
			text:           "Explain how a hash map handles collisions",
			wantKind:       types.IntentImperative,
			wantConfidence: 0.90,
			wantOK:         true,
		},
		{
			name:           "imperative verb mid-sentence",
			text:           "okay now implement a bounded queue",
			wantKind:       types.IntentImperative,
			wantConfidence: 0.90,
			wantOK:         true,
		},
		{
			name:           "multi-word imperative phrase",
			text:           "walk me through your solution",
			wantKind:       types.IntentImperative,
			wantConfidence: 0.90,
			wantOK:         true,
		},
		{
			name:           "contextual screen reference",
			text:           "take a look at the function on the screen",
			wantKind:       types.IntentContextual,
			wantConfidence: 0.85,
			wantOK:         true,
		},
		{
			name:           "contextual this problem",
			text:           "let's start with this problem",
			wantKind:       types.IntentContextual,
			wantConfidence: 0.85,
			wantOK:         true,
		},
		{
			name:   "verb inside a longer word does not match",
			text:   "the prefix was already codenamed",
			wantOK: false,
		},
		{
			name:   "plain statement",
			text:   "I worked at a fintech company for three years",
			wantOK: false,
		},
		{
			name:   "empty text",
			text:   "   ",
			wantOK: false,
		},
		{
			// Question mark wins even when an imperative verb is present.
			name:           "question mark beats imperative",
			text:           "can you explain recursion?",
			wantKind:       types.IntentDirect,
			wantConfidence: 0.95,
			wantOK:         true,
		},
	}

	d := &RuleDetector{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			intent, ok := d.Detect(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("Detect(%q) ok = %v, want %v", tt.text, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if intent.Kind != tt.wantKind {
				t.Errorf("kind = %v, want %v", intent.Kind, tt.wantKind)
			}
			if intent.Confidence != tt.wantConfidence {
				t.Errorf("confidence = %.2f, want %.2f", intent.Confidence, tt.wantConfidence)
			}
			if intent.Text == "" {
				t.Error("intent text is empty")
			}
		})
	}
}

func TestRuleDetectorCustomLists(t *testing.T) {
	t.Parallel()

	d := &RuleDetector{
		ImperativeVerbs:   []string{"summarize"},
		ContextualPhrases: []string{"in the editor"},
	}

	if _, ok := d.Detect("explain this function"); ok {
		t.Error("default verb matched despite override")
	}
	intent, ok := d.Detect("summarize the design")
	if !ok || intent.Kind != types.IntentImperative {
		t.Errorf("Detect = (%+v, %v), want imperative match", intent, ok)
	}
	intent, ok = d.Detect("the bug is in the editor right now")
	if !ok || intent.Kind != types.IntentContextual {
		t.Errorf("Detect = (%+v, %v), want contextual match", intent, ok)
	}
}
