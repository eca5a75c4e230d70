package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"testing"

	"github.com/p-n-ai/pai-solver/internal/ai"
	"github.com/p-n-ai/pai-solver/internal/extract"
	"github.com/p-n-ai/pai-solver/internal/history"
	"github.com/p-n-ai/pai-solver/internal/solver"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("parse: %w", extract.ErrEmptyInput), http.StatusBadRequest},
		{fmt.Errorf("%w: %q", solver.ErrInvalidInput, "audio"), http.StatusBadRequest},
		{history.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("solve: %w", ai.ErrNoProvider), http.StatusServiceUnavailable},
		{fmt.Errorf("solve: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errors.New("upstream 500"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestDecodedImageSize(t *testing.T) {
	tests := []struct {
		name    string
		image   string
		want    int64
		wantErr bool
	}{
		{"bare", "aGVsbG8=", 5, false},
		{"data url", "data:image/jpeg;base64,aGVsbG8=", 5, false},
		{"unpadded", "aGVsbG8", 5, false},
		{"wrapped", "aGVs\nbG8=", 5, false},
		{"empty payload", "data:image/png;base64,", 0, true},
		{"not base64", "!!!", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodedImageSize(tt.image)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("size = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestClassificationFromMap(t *testing.T) {
	got := classificationFromMap(map[string]any{
		"type":            "选择",
		"subject":         " 物理 ",
		"knowledgePoints": []any{"牛顿第二定律", "受力分析"},
		"difficulty":      "中等",
		"prerequisites":   "矢量，加速度",
	})

	if got.Type != extract.TypeMultipleChoice || got.Difficulty != extract.DifficultyMedium {
		t.Errorf("enums = %q %q", got.Type, got.Difficulty)
	}
	if got.Subject != "物理" {
		t.Errorf("Subject = %q", got.Subject)
	}
	if !slices.Equal(got.KnowledgePoints, []string{"牛顿第二定律", "受力分析"}) {
		t.Errorf("KnowledgePoints = %v", got.KnowledgePoints)
	}
	if !slices.Equal(got.Prerequisites, []string{"矢量", "加速度"}) {
		t.Errorf("Prerequisites = %v", got.Prerequisites)
	}
}

func TestClassificationFromMap_Empty(t *testing.T) {
	got := classificationFromMap(map[string]any{})
	if got.Type != "" || got.Subject != "" || got.KnowledgePoints != nil {
		t.Errorf("got %+v, want zero record", got)
	}
}
