package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/auricle-ai/auricle/pkg/provider/llm"
	llmmock "github.com/auricle-ai/auricle/pkg/provider/llm/mock"
)

func TestLLMFallback_Complete_PrimarySuccess(t *testing.T) {
	primary := &llmmock.Provider{
		Response: &llm.CompletionResponse{Content: "hello from primary"},
	}
	secondary := &llmmock.Provider{
		Response: &llm.CompletionResponse{Content: "hello from secondary"},
	}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	resp, err := fb.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hello from primary" {
		t.Fatalf("content = %q, want 'hello from primary'", resp.Content)
	}
	if len(primary.CompleteCalls) != 1 {
		t.Fatalf("primary called %d times, want 1", len(primary.CompleteCalls))
	}
	if len(secondary.CompleteCalls) != 0 {
		t.Fatalf("secondary called %d times, want 0", len(secondary.CompleteCalls))
	}
}

func TestLLMFallback_Complete_Failover(t *testing.T) {
	primary := &llmmock.Provider{
		CompleteErr: errors.New("primary down"),
	}
	secondary := &llmmock.Provider{
		Response: &llm.CompletionResponse{Content: "hello from secondary"},
	}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	resp, err := fb.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hello from secondary" {
		t.Fatalf("content = %q, want 'hello from secondary'", resp.Content)
	}
	if len(primary.CompleteCalls) != 1 || len(secondary.CompleteCalls) != 1 {
		t.Fatalf("calls: primary %d secondary %d, want 1 and 1",
			len(primary.CompleteCalls), len(secondary.CompleteCalls))
	}
}

func TestLLMFallback_Complete_AllFail(t *testing.T) {
	primary := &llmmock.Provider{CompleteErr: errors.New("primary down")}
	secondary := &llmmock.Provider{CompleteErr: errors.New("secondary down")}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	_, err := fb.Complete(context.Background(), llm.CompletionRequest{})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("error = %v, want ErrAllFailed", err)
	}
}

func TestLLMFallback_StreamCompletion_Failover(t *testing.T) {
	primary := &llmmock.Provider{
		StreamErr: errors.New("primary down"),
	}
	secondary := &llmmock.Provider{
		Chunks: []llm.Chunk{{Text: "streamed"}, {FinishReason: "stop"}},
	}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	chunks, err := fb.StreamCompletion(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var text string
	for ch := range chunks {
		text += ch.Text
	}
	if text != "streamed" {
		t.Fatalf("streamed text = %q, want 'streamed'", text)
	}
}

func TestLLMFallback_StreamFirstChunkErrorFailsOver(t *testing.T) {
	// The primary accepts the request but its very first chunk reports a
	// failure: nothing has been forwarded yet, so the whole answer is
	// retried on the secondary.
	primary := &llmmock.Provider{
		Chunks: []llm.Chunk{{FinishReason: "error"}},
	}
	secondary := &llmmock.Provider{
		Chunks: []llm.Chunk{{Text: "from secondary"}, {FinishReason: "stop"}},
	}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	chunks, err := fb.StreamCompletion(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var text string
	for ch := range chunks {
		text += ch.Text
	}
	if text != "from secondary" {
		t.Fatalf("streamed text = %q, want 'from secondary'", text)
	}
	if len(primary.StreamCalls) != 1 || len(secondary.StreamCalls) != 1 {
		t.Fatalf("stream calls: primary %d secondary %d, want 1 and 1",
			len(primary.StreamCalls), len(secondary.StreamCalls))
	}
}

func TestLLMFallback_StreamEmptyFailsOver(t *testing.T) {
	// A stream that closes without producing a chunk is a backend failure.
	primary := &llmmock.Provider{Chunks: nil}
	secondary := &llmmock.Provider{
		Chunks: []llm.Chunk{{Text: "ok"}, {FinishReason: "stop"}},
	}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	chunks, err := fb.StreamCompletion(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var text string
	for ch := range chunks {
		text += ch.Text
	}
	if text != "ok" {
		t.Fatalf("streamed text = %q, want 'ok'", text)
	}
}

func TestLLMFallback_CountTokensUsesPrimary(t *testing.T) {
	primary := &llmmock.Provider{TokensPerMessage: 7}
	secondary := &llmmock.Provider{TokensPerMessage: 99}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{})
	fb.AddFallback("secondary", secondary)

	got, err := fb.CountTokens([]llm.Message{{}, {}})
	if err != nil {
		t.Fatalf("CountTokens: %v", err)
	}
	if got != 14 {
		t.Fatalf("tokens = %d, want 14 (primary's estimate)", got)
	}
}

func TestLLMFallback_OpenBreakerSkipsPrimary(t *testing.T) {
	primary := &llmmock.Provider{CompleteErr: errors.New("primary down")}
	secondary := &llmmock.Provider{
		Response: &llm.CompletionResponse{Content: "ok"},
	}

	fb := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2},
	})
	fb.AddFallback("secondary", secondary)

	// Two failures trip the primary's breaker; the third call must not reach
	// the primary at all.
	for i := 0; i < 3; i++ {
		if _, err := fb.Complete(context.Background(), llm.CompletionRequest{}); err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
	}
	if len(primary.CompleteCalls) != 2 {
		t.Fatalf("primary called %d times, want 2 (breaker open)", len(primary.CompleteCalls))
	}
	if len(secondary.CompleteCalls) != 3 {
		t.Fatalf("secondary called %d times, want 3", len(secondary.CompleteCalls))
	}
}

func TestLLMFallback_Capabilities(t *testing.T) {
	primary := &llmmock.Provider{
		CapabilitiesResult: llm.ModelCapabilities{ContextWindow: 128000, SupportsStreaming: true},
	}
	fb := NewLLMFallback(primary, "primary", FallbackConfig{})
	if got := fb.Capabilities(); got.ContextWindow != 128000 || !got.SupportsStreaming {
		t.Fatalf("capabilities = %+v", got)
	}
}
