package resilience

import (
	"context"
	"fmt"

	"github.com/auricle-ai/auricle/pkg/provider/llm"
)

// LLMFallback implements [llm.Provider] with automatic failover across
// multiple completion backends. Each backend has its own circuit breaker;
// when the primary fails or its breaker is open, the next healthy fallback
// is tried. An answer from the fallback model beats no answer
// mid-conversation.
//
// Failover covers the stream setup AND the first chunk: a backend that
// accepts the request and then dies before producing anything is treated as
// failed while nothing has been forwarded yet, so the whole answer can be
// retried on the next backend. Once the first chunk is through, mid-stream
// errors are the caller's to handle — the overlay has already started
// rendering.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

// Compile-time interface assertion.
var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback creates an [LLMFallback] with primary as the preferred
// backend.
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional LLM provider as a fallback.
func (f *LLMFallback) AddFallback(name string, provider llm.Provider) {
	f.group.AddFallback(name, provider)
}

// Complete sends the request to the first healthy backend and returns its
// response.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// StreamCompletion opens a stream against the first healthy backend and
// holds it back until the first chunk arrives. A stream that errors or ends
// before producing a chunk counts as a backend failure and the next backend
// is tried with the same request.
func (f *LLMFallback) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (<-chan llm.Chunk, error) {
		stream, err := p.StreamCompletion(ctx, req)
		if err != nil {
			return nil, err
		}

		var first llm.Chunk
		select {
		case c, ok := <-stream:
			if !ok {
				return nil, fmt.Errorf("llm fallback: stream ended before the first chunk")
			}
			if c.FinishReason == "error" {
				return nil, fmt.Errorf("llm fallback: stream failed on the first chunk")
			}
			first = c
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		// Hand the consumed chunk back ahead of the live stream.
		out := make(chan llm.Chunk, 1)
		out <- first
		go func() {
			defer close(out)
			for c := range stream {
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}()
		return out, nil
	})
}

// CountTokens delegates to the primary. Token counting is a local estimate
// used for budgeting; it never hits the backend, so failover and breaker
// accounting would only add noise.
func (f *LLMFallback) CountTokens(messages []llm.Message) (int, error) {
	return f.group.entries[0].value.CountTokens(messages)
}

// Capabilities returns the capabilities of the primary. Static metadata does
// not participate in failover.
func (f *LLMFallback) Capabilities() llm.ModelCapabilities {
	return f.group.entries[0].value.Capabilities()
}
