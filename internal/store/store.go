// Package store persists session transcripts and answered questions, and
// retrieves resume material by semantic similarity for answer grounding.
//
// Persistence is optional: with no database configured the rest of the
// pipeline runs against [Nop], which accepts writes and returns nothing.
package store

import (
	"context"

	"github.com/auricle-ai/auricle/pkg/types"
)

// Store is the persistence boundary of the session.
type Store interface {
	// AppendUtterance records a finalized transcript event.
	AppendUtterance(ctx context.Context, ev types.TranscriptEvent) error

	// AppendExchange records an answered question.
	AppendExchange(ctx context.Context, question, answer string) error

	// IndexResumeChunk upserts one chunk of resume material under the given
	// id, embedding it for similarity search.
	IndexResumeChunk(ctx context.Context, id, content string) error

	// ResumeContext returns up to topK resume chunks most relevant to the
	// question, most similar first. An empty result is normal.
	ResumeContext(ctx context.Context, question string, topK int) ([]string, error)

	// Close releases the underlying resources.
	Close()
}

// Nop is the disabled store. All writes succeed and all reads are empty.
type Nop struct{}

// Compile-time interface check.
var _ Store = Nop{}

func (Nop) AppendUtterance(context.Context, types.TranscriptEvent) error { return nil }
func (Nop) AppendExchange(context.Context, string, string) error         { return nil }
func (Nop) IndexResumeChunk(context.Context, string, string) error       { return nil }
func (Nop) ResumeContext(context.Context, string, int) ([]string, error) { return nil, nil }
func (Nop) Close()                                                       {}
