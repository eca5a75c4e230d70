package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/p-n-ai/pai-solver/internal/ai"
	"github.com/p-n-ai/pai-solver/internal/extract"
	"github.com/p-n-ai/pai-solver/internal/history"
	"github.com/p-n-ai/pai-solver/internal/httpapi"
	"github.com/p-n-ai/pai-solver/internal/solver"
)

const (
	problem    = "解方程 2x+3=7"
	parseReply = `{"type":"解答","subject":"数学","knowledgePoints":["一元一次方程"],"difficulty":"简单","prerequisites":["移项"]}`
	solveReply = `{"thinking":"先移项","steps":["2x=4","x=2"],"answer":"x=2","summary":"移项要变号"}`
)

type fixture struct {
	handler http.Handler
	text    *ai.MockProvider
	store   *history.MemoryStore
}

func newFixture(t *testing.T, cfg httpapi.Config) *fixture {
	t.Helper()
	text := &ai.MockProvider{
		Respond: func(req ai.CompletionRequest) string {
			switch req.Task {
			case ai.TaskParse:
				return parseReply
			case ai.TaskSolve:
				return solveReply
			default:
				return problem
			}
		},
		Chunks: []string{"## 思路\n", "x=2"},
	}
	router := ai.NewRouter()
	router.Register(solver.ProviderChatGLM, text)

	store := history.NewMemoryStore()
	cfg.Solver = solver.New(solver.Config{
		AIRouter:  router,
		Extractor: extract.New(extract.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))),
		History:   store,
	})
	cfg.History = store
	return &fixture{handler: httpapi.New(cfg).Handler(), text: text, store: store}
}

// reply is the decoded JSON envelope.
type reply struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

func (f *fixture) do(t *testing.T, method, path, body string, headers ...string) (*httptest.ResponseRecorder, reply) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var out reply
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s %s: %v (body %q)", method, path, err, rec.Body.String())
		}
	}
	return rec, out
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, httpapi.Config{})
	rec, _ := f.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]httpapi.CheckFunc
		wantStatus int
		wantBody   string
	}{
		{"no checks", nil, http.StatusOK, `"status":"ready"`},
		{
			"all pass",
			map[string]httpapi.CheckFunc{
				"history": func(context.Context) error { return nil },
				"cache":   func(context.Context) error { return nil },
			},
			http.StatusOK,
			`"status":"ready"`,
		},
		{
			"one fails",
			map[string]httpapi.CheckFunc{
				"history": func(context.Context) error { return nil },
				"cache":   func(context.Context) error { return errors.New("connection refused") },
			},
			http.StatusServiceUnavailable,
			`"cache":"connection refused"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, httpapi.Config{Checks: tt.checks})
			rec, _ := f.do(t, http.MethodGet, "/readyz", "")
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestAPIHealth(t *testing.T) {
	f := newFixture(t, httpapi.Config{})
	rec, out := f.do(t, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK || !out.Success {
		t.Fatalf("health = %d %+v", rec.Code, out)
	}
	var data map[string]bool
	if err := json.Unmarshal(out.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if !data["chatglm"] || data["multimodal"] {
		t.Errorf("data = %v, want chatglm true multimodal false", data)
	}
}

func TestParse(t *testing.T) {
	f := newFixture(t, httpapi.Config{})

	rec, out := f.do(t, http.MethodPost, "/api/parse", `{"text":"`+problem+`"}`)
	if rec.Code != http.StatusOK || !out.Success {
		t.Fatalf("parse = %d %+v", rec.Code, out)
	}
	var cls extract.ClassificationRecord
	if err := json.Unmarshal(out.Data, &cls); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if cls.Type != extract.TypeOpenResponse || cls.Subject != "数学" {
		t.Errorf("classification = %+v", cls)
	}
}

func TestValidationErrors(t *testing.T) {
	f := newFixture(t, httpapi.Config{})

	tests := []struct {
		name    string
		path    string
		body    string
		wantErr string
	}{
		{"parse missing text", "/api/parse", `{}`, "缺少题目文本"},
		{"parse blank text", "/api/parse", `{"text":"  "}`, "缺少题目文本"},
		{"parse bad json", "/api/parse", `{"text":`, "请求体格式错误"},
		{"solve missing text", "/api/solve", `{"parseResult":{}}`, "缺少题目文本"},
		{"solve missing parse", "/api/solve", `{"text":"1+1"}`, "缺少解析结果"},
		{"recognize missing image", "/api/recognize", `{}`, "缺少图片数据"},
		{"recognize bad base64", "/api/recognize", `{"image":"data:image/png;base64,***"}`, "缺少图片数据"},
		{"solve-problem missing", "/api/solve-problem", `{"type":"text"}`, "缺少必要参数"},
		{"solve-problem bad type", "/api/solve-problem", `{"type":"audio","content":"x"}`, "无效的输入类型"},
		{"solve-stream missing", "/api/solve-stream", `{"text":"1+1"}`, "缺少必要参数"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, out := f.do(t, http.MethodPost, tt.path, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if out.Success || out.Error != tt.wantErr {
				t.Errorf("reply = %+v, want error %q", out, tt.wantErr)
			}
		})
	}
	if n := len(f.text.Calls()); n != 0 {
		t.Errorf("model called %d times on invalid requests", n)
	}
}

func TestSolve(t *testing.T) {
	f := newFixture(t, httpapi.Config{})

	body := `{"text":"` + problem + `","parseResult":{"type":"解答","subject":"数学","knowledgePoints":"方程，移项","difficulty":"简单"}}`
	rec, out := f.do(t, http.MethodPost, "/api/solve", body)
	if rec.Code != http.StatusOK || !out.Success {
		t.Fatalf("solve = %d %+v", rec.Code, out)
	}
	var sol extract.SolutionRecord
	if err := json.Unmarshal(out.Data, &sol); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if sol.Answer != "x=2" || len(sol.Steps) != 2 {
		t.Errorf("solution = %+v", sol)
	}
	if prompt := f.text.LastRequest.Messages[1].Content; !strings.Contains(prompt, "知识点：方程、移项") {
		t.Errorf("prompt does not list knowledge points: %q", prompt)
	}
}

func TestRecognize(t *testing.T) {
	f := newFixture(t, httpapi.Config{MaxImageSize: 16})

	rec, out := f.do(t, http.MethodPost, "/api/recognize", `{"image":"data:image/png;base64,aGVsbG8="}`)
	if rec.Code != http.StatusOK || !out.Success {
		t.Fatalf("recognize = %d %+v", rec.Code, out)
	}
	if !strings.Contains(string(out.Data), problem) {
		t.Errorf("data = %s", out.Data)
	}

	// 26 decoded bytes against a 16 byte limit.
	large := `{"image":"aGVsbG8gd29ybGQgaGVsbG8gd29ybGQgISE="}`
	rec, out = f.do(t, http.MethodPost, "/api/recognize", large)
	if rec.Code != http.StatusBadRequest || out.Error != "图片大小超过限制" {
		t.Errorf("oversized = %d %+v", rec.Code, out)
	}
}

func TestSolveProblem_SavesHistory(t *testing.T) {
	f := newFixture(t, httpapi.Config{})

	rec, out := f.do(t, http.MethodPost, "/api/solve-problem",
		`{"type":"text","content":"`+problem+`"}`,
		httpapi.HeaderUserID, "u1", httpapi.HeaderUserName, "小明")
	if rec.Code != http.StatusOK || !out.Success {
		t.Fatalf("solve-problem = %d %+v", rec.Code, out)
	}

	var res solver.Result
	if err := json.Unmarshal(out.Data, &res); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if res.RecognizedText != problem || res.Solution == nil || res.Solution.Answer != "x=2" {
		t.Errorf("result = %+v", res)
	}
	if res.HistoryID == "" {
		t.Fatal("historyId should be set for an identified caller")
	}

	got, err := f.store.Get(context.Background(), "u1", res.HistoryID)
	if err != nil {
		t.Fatalf("store.Get() error = %v", err)
	}
	if got.Username != "小明" {
		t.Errorf("Username = %q, want 小明", got.Username)
	}
}

func TestSolveProblem_Anonymous(t *testing.T) {
	f := newFixture(t, httpapi.Config{})

	_, out := f.do(t, http.MethodPost, "/api/solve-problem", `{"type":"text","content":"`+problem+`"}`)
	if !out.Success {
		t.Fatalf("solve-problem = %+v", out)
	}
	if strings.Contains(string(out.Data), "historyId") {
		t.Errorf("anonymous result should carry no historyId: %s", out.Data)
	}
}

func TestSolveProblem_UpstreamFailure(t *testing.T) {
	f := newFixture(t, httpapi.Config{})
	f.text.Respond = func(req ai.CompletionRequest) string {
		if req.Task == ai.TaskParse {
			return parseReply
		}
		return ""
	}

	rec, out := f.do(t, http.MethodPost, "/api/solve-problem", `{"type":"text","content":"`+problem+`"}`)
	if out.Success {
		t.Fatal("solve-problem should fail on an empty solution")
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for an empty model answer", rec.Code)
	}
	if !strings.Contains(string(out.Data), `"parseResult"`) {
		t.Errorf("partial data missing: %s", out.Data)
	}
}

func TestSolveProblem_NoProvider(t *testing.T) {
	srv := httpapi.New(httpapi.Config{Solver: solver.New(solver.Config{AIRouter: ai.NewRouter()})})
	req := httptest.NewRequest(http.MethodPost, "/api/solve-problem", strings.NewReader(`{"type":"text","content":"1+1"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestRequestBodyLimit(t *testing.T) {
	f := newFixture(t, httpapi.Config{})
	big := `{"text":"` + strings.Repeat("a", 2<<20) + `"}`

	rec, out := f.do(t, http.MethodPost, "/api/parse", big)
	if rec.Code != http.StatusRequestEntityTooLarge || out.Success {
		t.Errorf("oversized body = %d %+v", rec.Code, out)
	}
}
