package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "qwen2.5:7b"
)

// OllamaProvider talks to a self-hosted Ollama server through its
// OpenAI-compatible API. It needs no key and serves as a local fallback
// for the text model.
type OllamaProvider struct {
	*OpenAIProvider
	root string
}

// NewOllamaProvider creates a provider for the Ollama server at baseURL.
func NewOllamaProvider(baseURL string, opts ...OpenAIOption) *OllamaProvider {
	root := strings.TrimRight(baseURL, "/")
	if root == "" {
		root = defaultOllamaURL
	}
	opts = append([]OpenAIOption{
		WithBaseURL(root + "/v1"),
		WithDefaultModel(defaultOllamaModel),
		WithProviderName("ollama"),
		WithModels([]ModelInfo{
			{ID: defaultOllamaModel, Name: "Qwen 2.5 7B", MaxTokens: 32768, Description: "Self-hosted model via Ollama"},
		}),
	}, opts...)
	return &OllamaProvider{OpenAIProvider: NewOpenAIProvider("", opts...), root: root}
}

// HealthCheck lists local models instead of spending a completion.
func (p *OllamaProvider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.root+"/api/tags", nil)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}
