package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/p-n-ai/pai-solver/internal/extract"
)

const (
	defaultOpenAIBaseURL  = "https://api.openai.com/v1"
	defaultChatGLMBaseURL = "https://open.bigmodel.cn/api/paas/v4"
	defaultChatGLMModel   = "glm-4.7-flashx"

	// maxSSELineSize bounds a single event line; long completions can exceed
	// the 64 KiB scanner default.
	maxSSELineSize = 1 << 20
	doneSentinel   = "[DONE]"
)

// OpenAIProvider implements Provider for OpenAI and OpenAI-compatible APIs
// (Zhipu ChatGLM, DeepSeek, etc.) via a configurable base URL.
type OpenAIProvider struct {
	apiKey       string
	baseURL      string
	defaultModel string
	client       *http.Client
	name         string
	models       []ModelInfo
}

// OpenAIOption configures an OpenAIProvider.
type OpenAIOption func(*OpenAIProvider)

// WithBaseURL sets the base URL for the OpenAI-compatible API.
func WithBaseURL(url string) OpenAIOption {
	return func(p *OpenAIProvider) {
		if url != "" {
			p.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.client = client
	}
}

// WithModels sets the available models for this provider.
func WithModels(models []ModelInfo) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.models = models
	}
}

// WithDefaultModel sets the model used when a request names none.
func WithDefaultModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) {
		if model != "" {
			p.defaultModel = model
		}
	}
}

// WithProviderName sets the provider name (for multi-instance use, e.g. "multimodal").
func WithProviderName(name string) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.name = name
	}
}

// NewOpenAIProvider creates a new OpenAI-compatible provider.
func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	p := &OpenAIProvider{
		apiKey:       apiKey,
		baseURL:      defaultOpenAIBaseURL,
		defaultModel: "gpt-4o-mini",
		client:       http.DefaultClient,
		name:         "openai",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewChatGLMProvider creates a provider for the Zhipu ChatGLM API (OpenAI-compatible).
func NewChatGLMProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	opts = append([]OpenAIOption{
		WithBaseURL(defaultChatGLMBaseURL),
		WithDefaultModel(defaultChatGLMModel),
		WithProviderName("chatglm"),
		WithModels([]ModelInfo{
			{ID: "glm-4.7-flashx", Name: "GLM-4.7 FlashX", MaxTokens: 128000, Description: "Fast text reasoning"},
			{ID: "glm-4.6v-flashx", Name: "GLM-4.6V FlashX", MaxTokens: 64000, Description: "Vision model for problem recognition"},
		}),
	}, opts...)
	return NewOpenAIProvider(apiKey, opts...)
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return p.name
}

// openaiRequest is the request body for the OpenAI chat completions API.
type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
	Thinking    *openaiThinking `json:"thinking,omitempty"`
}

type openaiThinking struct {
	Type string `json:"type"`
}

// openaiMessage carries either a plain string or a list of content parts.
type openaiMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openaiPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openaiImageURL `json:"image_url,omitempty"`
}

type openaiImageURL struct {
	URL string `json:"url"`
}

// openaiResponse is the response from the OpenAI chat completions API.
// Content may arrive as a string, a list of parts or an object.
type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content          extract.Content `json:"content"`
			ReasoningContent string          `json:"reasoning_content"`
		} `json:"message"`
	} `json:"choices"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// openaiStreamEvent is one SSE payload from a streaming completion.
type openaiStreamEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func toOpenAIMessage(m Message) openaiMessage {
	if len(m.ImageURLs) == 0 {
		return openaiMessage{Role: m.Role, Content: m.Content}
	}
	parts := make([]openaiPart, 0, len(m.ImageURLs)+1)
	if m.Content != "" {
		parts = append(parts, openaiPart{Type: "text", Text: m.Content})
	}
	for _, u := range m.ImageURLs {
		parts = append(parts, openaiPart{Type: "image_url", ImageURL: &openaiImageURL{URL: u}})
	}
	return openaiMessage{Role: m.Role, Content: parts}
}

func (p *OpenAIProvider) buildRequest(req CompletionRequest, stream bool) openaiRequest {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	messages := make([]openaiMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = toOpenAIMessage(m)
	}

	oaiReq := openaiRequest{
		Model:    model,
		Messages: messages,
		Stream:   stream,
	}
	if req.MaxTokens > 0 {
		oaiReq.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		temp := req.Temperature
		oaiReq.Temperature = &temp
	}
	if req.Thinking {
		oaiReq.Thinking = &openaiThinking{Type: "enabled"}
	}
	return oaiReq
}

func (p *OpenAIProvider) post(ctx context.Context, body any, accept string) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", accept)
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, fmt.Errorf("%s api error (status %d): %s", p.name, resp.StatusCode, string(respBody))
	}
	return resp, nil
}

func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	resp, err := p.post(ctx, p.buildRequest(req, false), "application/json")
	if err != nil {
		return CompletionResponse{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("read response: %w", err)
	}

	var oaiResp openaiResponse
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		return CompletionResponse{}, fmt.Errorf("unmarshal response: %w", err)
	}

	if len(oaiResp.Choices) == 0 {
		return CompletionResponse{}, fmt.Errorf("no choices in response")
	}

	msg := oaiResp.Choices[0].Message
	return CompletionResponse{
		Content:          msg.Content,
		ReasoningContent: msg.ReasoningContent,
		Model:            oaiResp.Model,
		InputTokens:      oaiResp.Usage.PromptTokens,
		OutputTokens:     oaiResp.Usage.CompletionTokens,
	}, nil
}

// StreamComplete sends a streaming request and relays each delta's content
// verbatim. The channel closes after a Done or Error chunk.
func (p *OpenAIProvider) StreamComplete(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	resp, err := p.post(ctx, p.buildRequest(req, true), "text/event-stream")
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		send := func(c StreamChunk) bool {
			select {
			case ch <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxSSELineSize)
		for scanner.Scan() {
			data, ok := sseData(scanner.Text())
			if !ok {
				continue
			}
			if data == doneSentinel {
				send(StreamChunk{Done: true})
				return
			}

			var ev openaiStreamEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				slog.Debug("skipping undecodable stream event", "provider", p.name, "error", err)
				continue
			}
			if len(ev.Choices) == 0 || ev.Choices[0].Delta.Content == "" {
				continue
			}
			if !send(StreamChunk{Content: ev.Choices[0].Delta.Content}) {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			if ctx.Err() == nil {
				send(StreamChunk{Error: fmt.Errorf("read stream: %w", err)})
			}
			return
		}
		send(StreamChunk{Done: true})
	}()
	return ch, nil
}

// sseData returns the payload of a "data:" line.
func sseData(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, ":") {
		return "", false
	}
	data, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return "", false
	}
	data = strings.TrimSpace(data)
	return data, data != ""
}

func (p *OpenAIProvider) Models() []ModelInfo {
	if p.models != nil {
		return p.models
	}
	return []ModelInfo{
		{ID: "gpt-4o", Name: "GPT-4o", MaxTokens: 128000, Description: "Most capable OpenAI model"},
		{ID: "gpt-4o-mini", Name: "GPT-4o Mini", MaxTokens: 128000, Description: "Fast, affordable OpenAI model"},
	}
}

// HealthCheck sends a minimal completion; not every compatible API serves
// a model listing.
func (p *OpenAIProvider) HealthCheck(ctx context.Context) error {
	_, err := p.Complete(ctx, CompletionRequest{
		Messages:  []Message{{Role: "user", Content: "你好"}},
		MaxTokens: 10,
	})
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
