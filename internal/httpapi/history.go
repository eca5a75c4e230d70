package httpapi

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/p-n-ai/pai-solver/internal/history"
)

const (
	msgUnauthorized  = "未登录"
	msgBadPaging     = "分页参数无效"
	msgRecordMissing = "记录不存在或无权限查看"
	msgDeleteMissing = "记录不存在或无权限删除"
	msgStoreFailed   = "历史记录服务异常"

	maxPage = 100000

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// requireUser returns the caller's id, answering 401 when there is none.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := userID(r)
	if id == "" {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return "", false
	}
	return id, true
}

// queryInt reads an integer query parameter within [lo, hi].
func queryInt(r *http.Request, key string, fallback, lo, hi int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return 0, false
	}
	return n, true
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}
	page, okPage := queryInt(r, "page", 1, 1, maxPage)
	limit, okLimit := queryInt(r, "limit", history.DefaultLimit, 1, history.MaxLimit)
	if !okPage || !okLimit {
		writeError(w, http.StatusBadRequest, msgBadPaging)
		return
	}

	p, err := s.history.List(r.Context(), uid, page, limit)
	if err != nil {
		slog.Error("list history failed", "user_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, msgStoreFailed)
		return
	}
	writeData(w, map[string]any{
		"records": p.Records,
		"pagination": pagination{
			Page:       p.Page,
			Limit:      p.Limit,
			Total:      p.Total,
			TotalPages: p.TotalPages(),
		},
	})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	rec, err := s.history.Get(r.Context(), uid, r.PathValue("id"))
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgRecordMissing)
		return
	}
	if err != nil {
		slog.Error("get history failed", "user_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, msgStoreFailed)
		return
	}
	writeData(w, map[string]any{"record": rec})
}

func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	err := s.history.Delete(r.Context(), uid, r.PathValue("id"))
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgDeleteMissing)
		return
	}
	if err != nil {
		slog.Error("delete history failed", "user_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, msgStoreFailed)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "删除成功"})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := s.history.Clear(r.Context(), uid); err != nil {
		slog.Error("clear history failed", "user_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, msgStoreFailed)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "清空历史记录成功"})
}

// handleExportHistory sends all of the caller's records as a spreadsheet.
func (s *Server) handleExportHistory(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	records, err := history.All(r.Context(), s.history, uid)
	if err != nil {
		slog.Error("export history failed", "user_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, msgStoreFailed)
		return
	}

	var buf bytes.Buffer
	if err := history.WriteXLSX(&buf, records); err != nil {
		slog.Error("export history failed", "user_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, msgStoreFailed)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="history.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
