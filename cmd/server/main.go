package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-solver/internal/ai"
	"github.com/p-n-ai/pai-solver/internal/extract"
	"github.com/p-n-ai/pai-solver/internal/history"
	"github.com/p-n-ai/pai-solver/internal/httpapi"
	"github.com/p-n-ai/pai-solver/internal/platform/cache"
	"github.com/p-n-ai/pai-solver/internal/platform/config"
	"github.com/p-n-ai/pai-solver/internal/platform/database"
	"github.com/p-n-ai/pai-solver/internal/solver"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log))

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	app, err := newApp(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Streamed solutions outlive any fixed write deadline; model calls
		// are bounded by the provider client timeout instead.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting",
			"addr", srv.Addr,
			"history", cfg.History.Driver,
			"cache", cfg.Cache.Enabled,
			"multimodal", cfg.HasMultimodal(),
			"ollama", cfg.HasOllama(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// app holds the wired dependencies and everything that must be closed.
type app struct {
	handler http.Handler
	closers []func()
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp wires providers, storage and the HTTP API. Optional backends that
// fail to connect degrade to in-process fallbacks.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	checks := map[string]httpapi.CheckFunc{}

	router := newRouter(cfg.AI)

	var opts []extract.Option
	if cfg.DefaultsPath != "" {
		d, err := extract.LoadDefaults(cfg.DefaultsPath)
		if err != nil {
			return nil, fmt.Errorf("extract defaults: %w", err)
		}
		opts = append(opts, extract.WithDefaults(d))
	}
	extractor := extract.New(opts...)

	store := a.openHistory(ctx, cfg)
	if hc, ok := store.(healthChecker); ok {
		checks["history"] = hc.HealthCheck
	}

	var classCache solver.Cache
	if cfg.Cache.Enabled {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			slog.Warn("cache unavailable, classification caching disabled", "error", err)
		} else {
			a.closers = append(a.closers, func() { _ = c.Close() })
			checks["cache"] = c.HealthCheck
			classCache = c
		}
	}

	svc := solver.New(solver.Config{
		AIRouter:  router,
		Extractor: extractor,
		History:   store,
		Cache:     classCache,
		CacheTTL:  cfg.Cache.TTL,
		Thinking:  cfg.AI.ChatGLM.EnableThinking,
	})

	a.handler = httpapi.New(httpapi.Config{
		Solver:       svc,
		History:      store,
		Checks:       checks,
		MaxImageSize: cfg.MaxImageSize,
	}).Handler()
	return a, nil
}

// newRouter registers the text model and, when configured, routes image
// recognition to the multimodal model. A configured Ollama server follows
// the text model in the fallback chain.
func newRouter(cfg config.AIConfig) *ai.Router {
	client := &http.Client{Timeout: cfg.RequestTimeout}
	router := ai.NewRouter()

	router.Register(solver.ProviderChatGLM, ai.NewChatGLMProvider(cfg.ChatGLM.APIKey,
		ai.WithBaseURL(cfg.ChatGLM.BaseURL),
		ai.WithDefaultModel(cfg.ChatGLM.Model),
		ai.WithHTTPClient(client),
	))
	slog.Info("AI provider registered", "provider", solver.ProviderChatGLM, "model", cfg.ChatGLM.Model)

	if cfg.Multimodal.APIKey != "" {
		router.Register(solver.ProviderMultimodal, ai.NewChatGLMProvider(cfg.Multimodal.APIKey,
			ai.WithProviderName(solver.ProviderMultimodal),
			ai.WithBaseURL(cfg.Multimodal.BaseURL),
			ai.WithDefaultModel(cfg.Multimodal.Model),
			ai.WithHTTPClient(client),
		))
		router.Route(ai.TaskRecognize, solver.ProviderMultimodal)
		slog.Info("AI provider registered", "provider", solver.ProviderMultimodal, "model", cfg.Multimodal.Model)
	} else {
		slog.Warn("no multimodal key, image recognition uses the text model")
	}

	text := []string{solver.ProviderChatGLM}
	if cfg.Ollama.URL != "" {
		router.Register("ollama", ai.NewOllamaProvider(cfg.Ollama.URL,
			ai.WithDefaultModel(cfg.Ollama.Model),
			ai.WithHTTPClient(client),
		))
		text = append(text, "ollama")
		slog.Info("AI fallback registered", "provider", "ollama", "model", cfg.Ollama.Model)
	}
	router.Route(ai.TaskParse, text...)
	router.Route(ai.TaskSolve, text...)
	return router
}

// openHistory opens the configured history store, falling back to memory.
func (a *app) openHistory(ctx context.Context, cfg *config.Config) history.Store {
	switch cfg.History.Driver {
	case config.DriverSQLite:
		s, err := history.OpenSQLite(ctx, cfg.History.SQLitePath)
		if err != nil {
			slog.Warn("sqlite history unavailable, using memory", "path", cfg.History.SQLitePath, "error", err)
			return history.NewMemoryStore()
		}
		a.closers = append(a.closers, func() { _ = s.Close() })
		slog.Info("history store ready", "driver", "sqlite", "path", cfg.History.SQLitePath)
		return s

	case config.DriverPostgres:
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			slog.Warn("postgres history unavailable, using memory", "error", err)
			return history.NewMemoryStore()
		}
		s, err := history.NewPostgresStore(db.Pool)
		if err == nil {
			err = s.Migrate(ctx)
		}
		if err != nil {
			db.Close()
			slog.Warn("postgres history unavailable, using memory", "error", err)
			return history.NewMemoryStore()
		}
		a.closers = append(a.closers, db.Close)
		slog.Info("history store ready", "driver", "postgres")
		return s

	default:
		slog.Info("history store ready", "driver", "memory")
		return history.NewMemoryStore()
	}
}
