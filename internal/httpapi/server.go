// Package httpapi exposes the solver pipeline and history over HTTP.
//
// Every JSON reply uses the envelope {"success":bool,"data":…,"error":…}.
// Callers are identified by the X-User-ID header set by the upstream
// authentication layer; anonymous requests can solve problems but have no
// history.
package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/p-n-ai/pai-solver/internal/ai"
	"github.com/p-n-ai/pai-solver/internal/extract"
	"github.com/p-n-ai/pai-solver/internal/history"
	"github.com/p-n-ai/pai-solver/internal/solver"
)

// Identity headers supplied by the authentication proxy.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserName = "X-User-Name"
)

const defaultMaxImageSize = 5 * 1024 * 1024

// CheckFunc reports whether a dependency is ready.
type CheckFunc func(ctx context.Context) error

// Config holds dependencies for the HTTP API.
type Config struct {
	Solver       *solver.Service
	History      history.Store        // default in-memory store
	Checks       map[string]CheckFunc // readiness checks, run concurrently
	MaxImageSize int64                // decoded bytes, default 5 MiB
}

// Server serves the HTTP API.
type Server struct {
	solver       *solver.Service
	history      history.Store
	checks       map[string]CheckFunc
	maxImageSize int64
}

// New creates the HTTP API server.
func New(cfg Config) *Server {
	store := cfg.History
	if store == nil {
		store = history.NewMemoryStore()
	}
	maxImage := cfg.MaxImageSize
	if maxImage <= 0 {
		maxImage = defaultMaxImageSize
	}
	return &Server{
		solver:       cfg.Solver,
		history:      store,
		checks:       cfg.Checks,
		maxImageSize: maxImage,
	}
}

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/recognize", s.handleRecognize)
	mux.HandleFunc("POST /api/parse", s.handleParse)
	mux.HandleFunc("POST /api/solve", s.handleSolve)
	mux.HandleFunc("POST /api/solve-problem", s.handleSolveProblem)
	mux.HandleFunc("POST /api/solve-stream", s.handleSolveStream)
	mux.HandleFunc("GET /api/solve-ws", s.handleSolveWS)

	mux.HandleFunc("GET /api/history", s.handleListHistory)
	mux.HandleFunc("GET /api/history/export", s.handleExportHistory)
	mux.HandleFunc("GET /api/history/{id}", s.handleGetHistory)
	mux.HandleFunc("DELETE /api/history/{id}", s.handleDeleteHistory)
	mux.HandleFunc("DELETE /api/history", s.handleClearHistory)

	return logRequests(mux)
}

// envelope is the JSON reply shape shared by every API route.
type envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response failed", "error", err)
	}
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Error: msg})
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, extract.ErrEmptyInput), errors.Is(err, solver.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, history.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ai.ErrNoProvider):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// decodeJSON reads a JSON request body of at most limit bytes.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(v)
}

func userID(r *http.Request) string {
	return r.Header.Get(HeaderUserID)
}

// statusRecorder captures the response status for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	_ = http.NewResponseController(r.ResponseWriter).Flush()
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	r.status = http.StatusSwitchingProtocols
	return http.NewResponseController(r.ResponseWriter).Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
