// Package mock provides an in-memory test double for store.Store.
package mock

import (
	"context"
	"sync"

	"github.com/auricle-ai/auricle/internal/store"
	"github.com/auricle-ai/auricle/pkg/types"
)

// ExchangeCall records one AppendExchange invocation.
type ExchangeCall struct {
	Question string
	Answer   string
}

// Store is a scripted in-memory store.Store implementation. The zero value
// is ready to use. All fields are safe to inspect after the code under test
// has finished.
type Store struct {
	mu sync.Mutex

	// ResumeChunks is returned by every ResumeContext call (truncated to
	// topK).
	ResumeChunks []string

	// Errors returned by the corresponding methods.
	AppendUtteranceErr error
	AppendExchangeErr  error
	IndexErr           error
	ResumeErr          error

	// Recorded calls.
	Utterances    []types.TranscriptEvent
	Exchanges     []ExchangeCall
	IndexedChunks map[string]string
	ResumeQueries []string

	CloseCallCount int
}

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

func (s *Store) AppendUtterance(_ context.Context, ev types.TranscriptEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AppendUtteranceErr != nil {
		return s.AppendUtteranceErr
	}
	s.Utterances = append(s.Utterances, ev)
	return nil
}

func (s *Store) AppendExchange(_ context.Context, question, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AppendExchangeErr != nil {
		return s.AppendExchangeErr
	}
	s.Exchanges = append(s.Exchanges, ExchangeCall{Question: question, Answer: answer})
	return nil
}

func (s *Store) IndexResumeChunk(_ context.Context, id, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.IndexErr != nil {
		return s.IndexErr
	}
	if s.IndexedChunks == nil {
		s.IndexedChunks = make(map[string]string)
	}
	s.IndexedChunks[id] = content
	return nil
}

func (s *Store) ResumeContext(_ context.Context, question string, topK int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ResumeQueries = append(s.ResumeQueries, question)
	if s.ResumeErr != nil {
		return nil, s.ResumeErr
	}
	chunks := s.ResumeChunks
	if len(chunks) > topK {
		chunks = chunks[:topK]
	}
	out := make([]string, len(chunks))
	copy(out, chunks)
	return out, nil
}

func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
}
