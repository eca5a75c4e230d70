// Package solver runs the problem pipeline: recognize an image, classify the
// problem, then produce a step-by-step solution, saving the outcome to the
// user's history.
package solver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/p-n-ai/pai-solver/internal/ai"
	"github.com/p-n-ai/pai-solver/internal/extract"
	"github.com/p-n-ai/pai-solver/internal/history"
)

// Input types accepted by SolveProblem.
const (
	InputText  = "text"
	InputImage = "image"
)

// Provider names reported by Health.
const (
	ProviderChatGLM    = "chatglm"
	ProviderMultimodal = "multimodal"
)

const defaultCacheTTL = time.Hour

// ErrInvalidInput is returned for an input type other than text or image.
var ErrInvalidInput = errors.New("invalid input type")

// Completer is the model gateway. *ai.Router satisfies it.
type Completer interface {
	Complete(ctx context.Context, req ai.CompletionRequest) (ai.CompletionResponse, error)
	StreamComplete(ctx context.Context, req ai.CompletionRequest) (<-chan ai.StreamChunk, error)
	HealthCheck(ctx context.Context) map[string]error
	Names() []string
}

// Cache memoises classification records. *cache.Cache satisfies it.
type Cache interface {
	GetJSON(ctx context.Context, key string, v any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
}

// Config holds dependencies for the solver service.
type Config struct {
	AIRouter  Completer
	Extractor *extract.Extractor // default extract.New()
	History   history.Store      // nil disables saving
	Cache     Cache              // nil disables classification caching
	CacheTTL  time.Duration      // default 1h
	Thinking  bool               // request a reasoning pass from the text model
}

// Service is the problem-solving pipeline.
type Service struct {
	aiRouter  Completer
	extractor *extract.Extractor
	history   history.Store
	cache     Cache
	cacheTTL  time.Duration
	thinking  bool
}

// New creates a solver service.
func New(cfg Config) *Service {
	extractor := cfg.Extractor
	if extractor == nil {
		extractor = extract.New()
	}
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = defaultCacheTTL
	}
	return &Service{
		aiRouter:  cfg.AIRouter,
		extractor: extractor,
		history:   cfg.History,
		cache:     cfg.Cache,
		cacheTTL:  ttl,
		thinking:  cfg.Thinking,
	}
}

// Input is one problem submitted for the full pipeline.
type Input struct {
	Type     string // InputText or InputImage
	Content  string // problem text, or the image as a data URL or base64
	UserID   string // empty for anonymous callers; nothing is saved then
	Username string
}

// Result is what the full pipeline produced. On failure it carries the
// stages that completed.
type Result struct {
	RecognizedText string                        `json:"recognizedText"`
	ParseResult    *extract.ClassificationRecord `json:"parseResult,omitempty"`
	Solution       *extract.SolutionRecord       `json:"solution,omitempty"`
	HistoryID      string                        `json:"historyId,omitempty"`
}

// SolveProblem runs recognition (for images), classification and solving,
// then saves the outcome when the input names a user.
func (s *Service) SolveProblem(ctx context.Context, in Input) (Result, error) {
	var res Result

	switch in.Type {
	case InputImage:
		text, err := s.Recognize(ctx, in.Content)
		if err != nil {
			return res, err
		}
		res.RecognizedText = text
	case InputText:
		res.RecognizedText = in.Content
	default:
		return res, fmt.Errorf("%w: %q", ErrInvalidInput, in.Type)
	}

	slog.Info("solving problem",
		"type", in.Type,
		"user_id", in.UserID,
		"text_len", len(res.RecognizedText),
	)

	cls, err := s.Parse(ctx, res.RecognizedText)
	if err != nil {
		return res, err
	}
	res.ParseResult = &cls

	sol, err := s.Solve(ctx, res.RecognizedText, cls)
	if err != nil {
		return res, err
	}
	res.Solution = &sol

	if in.UserID == "" || s.history == nil {
		return res, nil
	}
	rec, err := s.history.Save(ctx, history.Record{
		UserID:      in.UserID,
		Username:    in.Username,
		Question:    res.RecognizedText,
		ParseResult: cls,
		Solution:    sol,
	})
	if err != nil {
		return res, fmt.Errorf("save history: %w", err)
	}
	res.HistoryID = rec.ID
	return res, nil
}

// Recognize transcribes the problem in an image.
func (s *Service) Recognize(ctx context.Context, image string) (string, error) {
	image = strings.TrimSpace(image)
	if image == "" {
		return "", fmt.Errorf("recognize: no image: %w", extract.ErrEmptyInput)
	}

	resp, err := s.aiRouter.Complete(ctx, ai.CompletionRequest{
		Task:      ai.TaskRecognize,
		MaxTokens: recognizeMaxTokens,
		Messages: []ai.Message{{
			Role:      "user",
			Content:   recognizePrompt,
			ImageURLs: []string{imageURL(image)},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("recognize: model returned no text: %w", extract.ErrEmptyInput)
	}
	return text, nil
}

// Parse classifies a problem. Unusable model output degrades to a record
// inferred from the problem text; only transport failures are errors.
func (s *Service) Parse(ctx context.Context, text string) (extract.ClassificationRecord, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return extract.ClassificationRecord{}, fmt.Errorf("parse: no problem text: %w", extract.ErrEmptyInput)
	}

	key := classificationKey(text)
	if cached, ok := s.cachedClassification(ctx, key); ok {
		return cached, nil
	}

	resp, err := s.aiRouter.Complete(ctx, ai.CompletionRequest{
		Task:        ai.TaskParse,
		Temperature: parseTemperature,
		MaxTokens:   parseMaxTokens,
		Thinking:    s.thinking,
		Messages: []ai.Message{
			{Role: "system", Content: parseSystemPrompt},
			{Role: "user", Content: buildParsePrompt(text)},
		},
	})
	if err != nil {
		return extract.ClassificationRecord{}, fmt.Errorf("parse: %w", err)
	}

	rec := s.extractor.Classification(resp.Content, text)

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, rec, s.cacheTTL); err != nil {
			slog.Warn("classification cache write failed", "error", err)
		}
	}
	return rec, nil
}

// Solve produces a solution record for a classified problem.
func (s *Service) Solve(ctx context.Context, text string, cls extract.ClassificationRecord) (extract.SolutionRecord, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return extract.SolutionRecord{}, fmt.Errorf("solve: no problem text: %w", extract.ErrEmptyInput)
	}

	resp, err := s.aiRouter.Complete(ctx, ai.CompletionRequest{
		Task:        ai.TaskSolve,
		Temperature: solveTemperature,
		MaxTokens:   solveMaxTokens,
		Thinking:    s.thinking,
		Messages: []ai.Message{
			{Role: "system", Content: solveSystemPrompt},
			{Role: "user", Content: buildSolvePrompt(text, cls)},
		},
	})
	if err != nil {
		return extract.SolutionRecord{}, fmt.Errorf("solve: %w", err)
	}

	content := resp.Content
	if content.Normalize() == "" {
		content = extract.Text(resp.ReasoningContent)
	}
	if content.Normalize() == "" {
		return extract.SolutionRecord{}, fmt.Errorf("solve: model returned no content: %w", extract.ErrEmptyInput)
	}

	sol, err := s.extractor.Solution(content)
	if err != nil {
		return extract.SolutionRecord{}, fmt.Errorf("solve: %w", err)
	}
	return sol, nil
}

// SolveStream streams a Markdown solution. Chunks are the model's deltas,
// forwarded without extraction.
func (s *Service) SolveStream(ctx context.Context, text string, cls extract.ClassificationRecord) (<-chan ai.StreamChunk, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("solve stream: no problem text: %w", extract.ErrEmptyInput)
	}

	ch, err := s.aiRouter.StreamComplete(ctx, ai.CompletionRequest{
		Task:        ai.TaskSolve,
		Temperature: streamTemperature,
		MaxTokens:   streamMaxTokens,
		Thinking:    s.thinking,
		Messages: []ai.Message{
			{Role: "system", Content: streamSystemPrompt},
			{Role: "user", Content: buildStreamPrompt(text, cls)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("solve stream: %w", err)
	}
	return ch, nil
}

// Health reports, per model endpoint, whether it answered a health check.
// Endpoints that are not configured report false.
func (s *Service) Health(ctx context.Context) map[string]bool {
	out := map[string]bool{
		ProviderChatGLM:    false,
		ProviderMultimodal: false,
	}
	failed := s.aiRouter.HealthCheck(ctx)
	for _, name := range s.aiRouter.Names() {
		out[name] = failed[name] == nil
	}
	return out
}

func (s *Service) cachedClassification(ctx context.Context, key string) (extract.ClassificationRecord, bool) {
	if s.cache == nil {
		return extract.ClassificationRecord{}, false
	}
	var rec extract.ClassificationRecord
	ok, err := s.cache.GetJSON(ctx, key, &rec)
	if err != nil {
		slog.Warn("classification cache read failed", "error", err)
		return extract.ClassificationRecord{}, false
	}
	if ok {
		slog.Debug("classification cache hit", "key", key)
	}
	return rec, ok
}

func classificationKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "classification:" + hex.EncodeToString(sum[:])
}

// imageURL accepts a data URL, an http(s) URL or bare base64.
func imageURL(image string) string {
	if strings.HasPrefix(image, "data:") || strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://") {
		return image
	}
	return "data:image/png;base64," + image
}
