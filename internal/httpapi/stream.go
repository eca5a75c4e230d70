package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-solver/internal/ai"
)

const (
	sseDone       = "[DONE]"
	wsReadTimeout = 30 * time.Second
)

// streamEvent is one frame of a streamed solution.
type streamEvent struct {
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
	Done    bool   `json:"done,omitempty"`
}

// handleSolveStream relays solution deltas as server-sent events:
// `data: {"content":…}` per delta, then `data: [DONE]`. Failures after the
// stream has started are sent as `data: {"error":…}`.
func (s *Server) handleSolveStream(w http.ResponseWriter, r *http.Request) {
	var req solveRequest
	if err := decodeJSON(w, r, maxTextBody, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" || req.ParseResult == nil {
		writeError(w, http.StatusBadRequest, msgMissingParams)
		return
	}

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(data string) bool {
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return false
		}
		return rc.Flush() == nil
	}

	ch, err := s.solver.SolveStream(r.Context(), req.Text, classificationFromMap(req.ParseResult))
	if err != nil {
		slog.Error("solve stream failed", "error", err)
		send(eventJSON(streamEvent{Error: err.Error()}))
		return
	}

	err = relay(r.Context(), ch, func(ev streamEvent) error {
		if !send(eventJSON(ev)) {
			return fmt.Errorf("client gone")
		}
		return nil
	})
	if err != nil {
		slog.Warn("solve stream interrupted", "error", err)
		send(eventJSON(streamEvent{Error: err.Error()}))
		return
	}
	send(sseDone)
}

// handleSolveWS relays the same deltas over a WebSocket. The client sends
// one request message shaped like the solve-stream body; the server answers
// with {"content":…} messages, then {"done":true}, then closes.
func (s *Server) handleSolveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxTextBody)

	ctx := r.Context()
	readCtx, cancel := context.WithTimeout(ctx, wsReadTimeout)
	var req solveRequest
	err = wsjson.Read(readCtx, conn, &req)
	cancel()
	if err != nil {
		conn.Close(websocket.StatusUnsupportedData, msgBadBody)
		return
	}
	if strings.TrimSpace(req.Text) == "" || req.ParseResult == nil {
		_ = wsjson.Write(ctx, conn, streamEvent{Error: msgMissingParams})
		conn.Close(websocket.StatusPolicyViolation, msgMissingParams)
		return
	}

	ch, err := s.solver.SolveStream(ctx, req.Text, classificationFromMap(req.ParseResult))
	if err != nil {
		slog.Error("solve stream failed", "error", err)
		_ = wsjson.Write(ctx, conn, streamEvent{Error: err.Error()})
		conn.Close(websocket.StatusInternalError, "solve failed")
		return
	}

	err = relay(ctx, ch, func(ev streamEvent) error {
		return wsjson.Write(ctx, conn, ev)
	})
	if err != nil {
		slog.Warn("websocket stream interrupted", "error", err)
		_ = wsjson.Write(ctx, conn, streamEvent{Error: err.Error()})
		conn.Close(websocket.StatusInternalError, "stream interrupted")
		return
	}
	if err := wsjson.Write(ctx, conn, streamEvent{Done: true}); err != nil {
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

// relay forwards content chunks to emit until the stream finishes. It
// returns the first in-band stream error, emit error or cancellation.
func relay(ctx context.Context, ch <-chan ai.StreamChunk, emit func(streamEvent) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-ch:
			if !ok {
				return nil
			}
			if chunk.Error != nil {
				return chunk.Error
			}
			if chunk.Content != "" {
				if err := emit(streamEvent{Content: chunk.Content}); err != nil {
					return err
				}
			}
			if chunk.Done {
				return nil
			}
		}
	}
}

func eventJSON(ev streamEvent) string {
	b, err := json.Marshal(ev)
	if err != nil {
		return `{"error":"encode failed"}`
	}
	return string(b)
}
