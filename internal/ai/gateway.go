// Package ai provides a provider-agnostic gateway to OpenAI-compatible chat
// models, with task-based routing and ordered fallback.
package ai

import (
	"context"

	"github.com/p-n-ai/pai-solver/internal/extract"
)

// TaskType defines the kind of AI task for routing purposes.
type TaskType int

const (
	TaskSolve TaskType = iota
	TaskParse
	TaskRecognize
)

func (t TaskType) String() string {
	switch t {
	case TaskSolve:
		return "solve"
	case TaskParse:
		return "parse"
	case TaskRecognize:
		return "recognize"
	default:
		return "unknown"
	}
}

// Message represents a chat message. ImageURLs are sent as image parts
// alongside the text, as http(s) URLs or data URLs.
type Message struct {
	Role      string   `json:"role"`
	Content   string   `json:"content"`
	ImageURLs []string `json:"image_urls,omitempty"`
}

// CompletionRequest is the input to an AI completion.
type CompletionRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Task        TaskType  `json:"task,omitempty"`
	// Thinking asks models that support it for a reasoning pass.
	Thinking bool `json:"thinking,omitempty"`
}

// CompletionResponse is the output from an AI completion.
type CompletionResponse struct {
	Content          extract.Content `json:"content"`
	ReasoningContent string          `json:"reasoning_content,omitempty"`
	Model            string          `json:"model"`
	InputTokens      int             `json:"input_tokens"`
	OutputTokens     int             `json:"output_tokens"`
}

// Text returns the normalized reply. Reasoning models sometimes leave the
// content empty and answer in the reasoning field; that text is used then.
func (r CompletionResponse) Text() string {
	if s := r.Content.Normalize(); s != "" {
		return s
	}
	return extract.Text(r.ReasoningContent).Normalize()
}

// TotalTokens returns the sum of input and output tokens.
func (r CompletionResponse) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// StreamChunk represents a streaming response chunk.
type StreamChunk struct {
	Content string
	Done    bool
	Error   error
}

// ModelInfo describes an available model.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MaxTokens   int    `json:"max_tokens"`
	Description string `json:"description"`
}

// Provider is the interface all AI providers must implement.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	StreamComplete(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)
	Models() []ModelInfo
	HealthCheck(ctx context.Context) error
}
