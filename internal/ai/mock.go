package ai

import (
	"context"
	"sync"

	"github.com/p-n-ai/pai-solver/internal/extract"
)

// MockProvider is a test double for AI providers.
type MockProvider struct {
	Response string
	// Respond, when set, overrides Response per request.
	Respond func(req CompletionRequest) string
	// Chunks are streamed in order; Response is streamed as one chunk when empty.
	Chunks []string
	Err    error

	mu          sync.Mutex
	LastRequest *CompletionRequest // captures the last request for inspection
	Requests    []CompletionRequest
}

// NewMockProvider creates a MockProvider that returns the given response.
func NewMockProvider(response string) *MockProvider {
	return &MockProvider{Response: response}
}

func (m *MockProvider) record(req CompletionRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRequest = &req
	m.Requests = append(m.Requests, req)
}

// Calls returns a copy of every request seen so far.
func (m *MockProvider) Calls() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CompletionRequest(nil), m.Requests...)
}

func (m *MockProvider) reply(req CompletionRequest) string {
	if m.Respond != nil {
		return m.Respond(req)
	}
	return m.Response
}

func (m *MockProvider) Complete(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
	m.record(req)
	if m.Err != nil {
		return CompletionResponse{}, m.Err
	}
	text := m.reply(req)
	return CompletionResponse{
		Content:      extract.Text(text),
		Model:        "mock",
		InputTokens:  10,
		OutputTokens: len(text),
	}, nil
}

func (m *MockProvider) StreamComplete(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	m.record(req)
	if m.Err != nil {
		return nil, m.Err
	}
	chunks := m.Chunks
	if len(chunks) == 0 {
		chunks = []string{m.reply(req)}
	}

	ch := make(chan StreamChunk, len(chunks)+1)
	go func() {
		defer close(ch)
		for _, c := range chunks {
			select {
			case ch <- StreamChunk{Content: c}:
			case <-ctx.Done():
				return
			}
		}
		ch <- StreamChunk{Done: true}
	}()
	return ch, nil
}

func (m *MockProvider) Models() []ModelInfo {
	return []ModelInfo{
		{ID: "mock", Name: "Mock Model", MaxTokens: 4096, Description: "Test mock"},
	}
}

func (m *MockProvider) HealthCheck(_ context.Context) error {
	return m.Err
}
