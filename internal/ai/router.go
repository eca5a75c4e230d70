package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrNoProvider is returned when no provider can serve a task.
var ErrNoProvider = errors.New("no AI provider configured")

// Router selects the best provider based on task type and availability.
type Router struct {
	providers map[string]Provider
	fallback  []string // ordered fallback chain
	routes    map[TaskType][]string
	mu        sync.RWMutex
}

// NewRouter creates a new AI router.
func NewRouter() *Router {
	return &Router{
		providers: make(map[string]Provider),
		routes:    make(map[TaskType][]string),
	}
}

// Register adds a provider to the router.
func (r *Router) Register(name string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[name]; !exists {
		r.fallback = append(r.fallback, name)
	}
	r.providers[name] = provider
}

// Route pins a task to an ordered list of registered providers. Tasks
// without a route use the registration order.
func (r *Router) Route(task TaskType, names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[task] = append([]string(nil), names...)
}

// chain returns the providers to try for task, in order. Caller holds mu.
func (r *Router) chain(task TaskType) []string {
	if names, ok := r.routes[task]; ok && len(names) > 0 {
		return names
	}
	return r.fallback
}

// Complete routes a request to the best available provider.
func (r *Router) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.chain(req.Task)
	if len(names) == 0 {
		return CompletionResponse{}, ErrNoProvider
	}

	// Try each provider in fallback order.
	for _, name := range names {
		provider, ok := r.providers[name]
		if !ok {
			continue
		}

		resp, err := provider.Complete(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return CompletionResponse{}, ctx.Err()
			}
			slog.Warn("AI provider failed, trying next",
				"provider", name,
				"task", req.Task.String(),
				"error", err,
			)
			continue
		}

		slog.Debug("AI request completed",
			"provider", name,
			"task", req.Task.String(),
			"model", resp.Model,
			"input_tokens", resp.InputTokens,
			"output_tokens", resp.OutputTokens,
		)
		return resp, nil
	}

	return CompletionResponse{}, fmt.Errorf("all AI providers failed")
}

// StreamComplete opens a stream on the first provider that accepts the
// request. Failures after the stream has started are reported in-band.
func (r *Router) StreamComplete(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.chain(req.Task)
	if len(names) == 0 {
		return nil, ErrNoProvider
	}

	for _, name := range names {
		provider, ok := r.providers[name]
		if !ok {
			continue
		}

		ch, err := provider.StreamComplete(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("AI provider stream failed, trying next",
				"provider", name,
				"task", req.Task.String(),
				"error", err,
			)
			continue
		}
		return ch, nil
	}

	return nil, fmt.Errorf("all AI providers failed")
}

// HealthCheck checks every registered provider and reports the failures
// keyed by provider name. A nil map means all are healthy.
func (r *Router) HealthCheck(ctx context.Context) map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var failed map[string]error
	for _, name := range r.fallback {
		if err := r.providers[name].HealthCheck(ctx); err != nil {
			if failed == nil {
				failed = make(map[string]error)
			}
			failed[name] = err
		}
	}
	return failed
}

// Names returns the registered provider names in registration order.
func (r *Router) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.fallback...)
}

// HasProvider returns true if at least one provider is registered.
func (r *Router) HasProvider() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers) > 0
}
