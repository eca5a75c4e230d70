package httpapi_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-solver/internal/httpapi"
)

const streamBody = `{"text":"` + problem + `","parseResult":{"type":"解答","subject":"数学","knowledgePoints":["方程"]}}`

func TestSolveStream(t *testing.T) {
	f := newFixture(t, httpapi.Config{})

	rec, _ := f.do(t, http.MethodPost, "/api/solve-stream", streamBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	want := "data: {\"content\":\"## 思路\\n\"}\n\n" +
		"data: {\"content\":\"x=2\"}\n\n" +
		"data: [DONE]\n\n"
	if got := rec.Body.String(); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}

func TestSolveStream_ProviderError(t *testing.T) {
	f := newFixture(t, httpapi.Config{})
	f.text.Err = errors.New("upstream down")

	rec, _ := f.do(t, http.MethodPost, "/api/solve-stream", streamBody)
	body := rec.Body.String()
	if !strings.HasPrefix(body, `data: {"error":`) {
		t.Errorf("body = %q, want an error event", body)
	}
	if strings.Contains(body, "[DONE]") {
		t.Errorf("failed stream should not end with [DONE]: %q", body)
	}
}

type wsEvent struct {
	Content string `json:"content"`
	Error   string `json:"error"`
	Done    bool   `json:"done"`
}

func dialSolveWS(t *testing.T, f *fixture) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(f.handler)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/solve-ws"
	conn, _, err := websocket.Dial(t.Context(), url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func TestSolveWS(t *testing.T) {
	f := newFixture(t, httpapi.Config{})
	conn := dialSolveWS(t, f)
	ctx := t.Context()

	req := map[string]any{
		"text":        problem,
		"parseResult": map[string]any{"type": "解答", "subject": "数学"},
	}
	if err := wsjson.Write(ctx, conn, req); err != nil {
		t.Fatalf("write request: %v", err)
	}

	var content strings.Builder
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		var ev wsEvent
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			t.Fatalf("read event: %v", err)
		}
		if ev.Error != "" {
			t.Fatalf("unexpected error event: %q", ev.Error)
		}
		if ev.Done {
			break
		}
		content.WriteString(ev.Content)
	}
	if got := content.String(); got != "## 思路\nx=2" {
		t.Errorf("content = %q", got)
	}

	_, _, err := conn.Read(ctx)
	if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure {
		t.Errorf("close status = %v (err %v), want normal closure", status, err)
	}
}

func TestSolveWS_MissingParams(t *testing.T) {
	f := newFixture(t, httpapi.Config{})
	conn := dialSolveWS(t, f)
	ctx := t.Context()

	if err := wsjson.Write(ctx, conn, map[string]string{"text": problem}); err != nil {
		t.Fatalf("write request: %v", err)
	}

	var ev wsEvent
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Error != "缺少必要参数" {
		t.Errorf("error = %q, want 缺少必要参数", ev.Error)
	}

	_, _, err := conn.Read(ctx)
	if status := websocket.CloseStatus(err); status != websocket.StatusPolicyViolation {
		t.Errorf("close status = %v, want policy violation", status)
	}
	if n := len(f.text.Calls()); n != 0 {
		t.Errorf("model called %d times", n)
	}
}
