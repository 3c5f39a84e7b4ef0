package dispatch

import (
	"strings"

	"github.com/auricle-ai/auricle/internal/fusion"
)

const technicalSystemPrompt = `You are a concise interview answer assistant. The user is currently in a live technical interview and needs an answer they can deliver out loud.

Structure every answer as:
1. One-sentence restatement of the problem.
2. The approach, in two or three sentences.
3. Step-by-step reasoning or implementation outline.
4. Code, when the question calls for it.
5. Time and space complexity.

Be direct. No preamble, no "great question". If screen content and spoken context disagree, trust the screen.`

const behavioralSystemPrompt = `You are a concise interview answer assistant. The user is currently in a live interview and needs an answer they can deliver out loud.

The question is behavioral. Structure the answer with the STAR method: Situation, Task, Action, Result — one short paragraph each, grounded in the background material when available. Speak in the first person.`

// behavioralMarkers flag questions about past experience rather than
// technical problems.
var behavioralMarkers = []string{
	"tell me about a time",
	"tell me about yourself",
	"describe a situation",
	"describe a time",
	"have you ever",
	"what would you do if",
	"how do you handle",
	"your greatest strength",
	"your greatest weakness",
	"why do you want",
	"walk me through your resume",
}

// isBehavioral reports whether the question asks about experience or conduct
// rather than a technical problem.
func isBehavioral(question string) bool {
	lower := strings.ToLower(question)
	for _, marker := range behavioralMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// systemPrompt picks the answer template for the question style.
func systemPrompt(question string) string {
	if isBehavioral(question) {
		return behavioralSystemPrompt
	}
	return technicalSystemPrompt
}

// userPrompt assembles the question plus all merged context into the single
// user message sent to the model. preferredLanguage is used when no language
// was detected on screen.
func userPrompt(question string, merged fusion.MergedContext, resumeChunks []string, preferredLanguage string) string {
	var b strings.Builder

	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n")

	if merged.PrimaryText != "" {
		b.WriteString("\nContext:\n")
		b.WriteString(merged.PrimaryText)
		b.WriteString("\n")
	}
	if merged.ConflictNote != "" {
		b.WriteString("\nNote: ")
		b.WriteString(merged.ConflictNote)
		b.WriteString("\n")
	}
	if merged.SupportingText != "" {
		b.WriteString("\nNon-authoritative conversation context:\n")
		b.WriteString(merged.SupportingText)
		b.WriteString("\n")
	}
	if len(resumeChunks) > 0 {
		b.WriteString("\nBackground on the candidate:\n")
		b.WriteString(strings.Join(resumeChunks, "\n"))
		b.WriteString("\n")
	}

	language := merged.DetectedLanguage
	if language == "" {
		language = preferredLanguage
	}
	if language != "" && !isBehavioral(question) {
		b.WriteString("\nIf code is needed, write it in ")
		b.WriteString(language)
		b.WriteString(".\n")
	}

	return b.String()
}
