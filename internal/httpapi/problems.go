package httpapi

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/p-n-ai/pai-solver/internal/extract"
	"github.com/p-n-ai/pai-solver/internal/solver"
)

// maxTextBody bounds JSON bodies that carry problem text only.
const maxTextBody = 1 << 20

// User-facing validation messages.
const (
	msgMissingImage  = "缺少图片数据"
	msgImageTooLarge = "图片大小超过限制"
	msgMissingText   = "缺少题目文本"
	msgMissingParse  = "缺少解析结果"
	msgMissingParams = "缺少必要参数"
	msgInvalidType   = "无效的输入类型"
	msgBadBody       = "请求体格式错误"
)

type recognizeRequest struct {
	Image string `json:"image"`
}

type parseRequest struct {
	Text string `json:"text"`
}

type solveRequest struct {
	Text        string         `json:"text"`
	ParseResult map[string]any `json:"parseResult"`
}

type solveProblemRequest struct {
	Type    string `json:"type"`
	Content any    `json:"content"`
}

func (s *Server) handleRecognize(w http.ResponseWriter, r *http.Request) {
	var req recognizeRequest
	if err := decodeJSON(w, r, s.maxImageBody(), &req); err != nil {
		writeBodyError(w, err)
		return
	}
	if strings.TrimSpace(req.Image) == "" {
		writeError(w, http.StatusBadRequest, msgMissingImage)
		return
	}

	size, err := decodedImageSize(req.Image)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgMissingImage)
		return
	}
	if size > s.maxImageSize {
		writeError(w, http.StatusBadRequest, msgImageTooLarge)
		return
	}

	text, err := s.solver.Recognize(r.Context(), req.Image)
	if err != nil {
		slog.Error("recognize failed", "error", err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeData(w, map[string]string{"text": text})
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := decodeJSON(w, r, maxTextBody, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, msgMissingText)
		return
	}

	rec, err := s.solver.Parse(r.Context(), req.Text)
	if err != nil {
		slog.Error("parse failed", "error", err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeData(w, rec)
}

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	var req solveRequest
	if err := decodeJSON(w, r, maxTextBody, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, msgMissingText)
		return
	}
	if req.ParseResult == nil {
		writeError(w, http.StatusBadRequest, msgMissingParse)
		return
	}

	sol, err := s.solver.Solve(r.Context(), req.Text, classificationFromMap(req.ParseResult))
	if err != nil {
		slog.Error("solve failed", "error", err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeData(w, sol)
}

func (s *Server) handleSolveProblem(w http.ResponseWriter, r *http.Request) {
	var req solveProblemRequest
	if err := decodeJSON(w, r, s.maxImageBody(), &req); err != nil {
		writeBodyError(w, err)
		return
	}
	if req.Type == "" || req.Content == nil {
		writeError(w, http.StatusBadRequest, msgMissingParams)
		return
	}
	if req.Type != solver.InputText && req.Type != solver.InputImage {
		writeError(w, http.StatusBadRequest, msgInvalidType)
		return
	}

	content := extract.FromValue(req.Content).Normalize()
	if req.Type == solver.InputImage {
		size, err := decodedImageSize(content)
		if err != nil || content == "" {
			writeError(w, http.StatusBadRequest, msgMissingImage)
			return
		}
		if size > s.maxImageSize {
			writeError(w, http.StatusBadRequest, msgImageTooLarge)
			return
		}
	}

	res, err := s.solver.SolveProblem(r.Context(), solver.Input{
		Type:     req.Type,
		Content:  content,
		UserID:   userID(r),
		Username: r.Header.Get(HeaderUserName),
	})
	if err != nil {
		slog.Error("solve problem failed", "type", req.Type, "error", err)
		writeJSON(w, statusFor(err), envelope{Success: false, Error: err.Error(), Data: res})
		return
	}
	writeData(w, res)
}

// maxImageBody bounds bodies carrying a base64 image.
func (s *Server) maxImageBody() int64 {
	return s.maxImageSize*4/3 + maxTextBody
}

// decodedImageSize returns the byte size of a base64 image, with or without
// a data URL prefix.
func decodedImageSize(image string) (int64, error) {
	body := image
	if i := strings.Index(body, ","); i >= 0 {
		body = body[i+1:]
	}
	body = strings.Join(strings.Fields(body), "")
	if body == "" {
		return 0, fmt.Errorf("empty image data")
	}

	raw, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(body, "="))
	}
	if err != nil {
		return 0, fmt.Errorf("decode image: %w", err)
	}
	return int64(len(raw)), nil
}

// classificationFromMap converts a client-supplied parse result. Values are
// used as given; lists may arrive as arrays or delimited strings.
func classificationFromMap(m map[string]any) extract.ClassificationRecord {
	str := func(key string) string {
		return extract.FromValue(m[key]).Normalize()
	}
	return extract.ClassificationRecord{
		Type:            extract.QuestionType(str("type")),
		Subject:         str("subject"),
		KnowledgePoints: extract.SplitList(m["knowledgePoints"]),
		Difficulty:      extract.Difficulty(str("difficulty")),
		Prerequisites:   extract.SplitList(m["prerequisites"]),
	}
}

func writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, msgImageTooLarge)
		return
	}
	writeError(w, http.StatusBadRequest, msgBadBody)
}
