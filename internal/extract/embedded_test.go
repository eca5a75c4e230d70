package extract_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/p-n-ai/pai-solver/internal/extract"
)

func TestExtractEmbedded(t *testing.T) {
	tests := []struct {
		name  string
		input string
		key   string
		want  any
	}{
		{"fenced json", "前言\n```json\n{\"answer\": \"5\"}\n```\n后记", "answer", "5"},
		{"unlabelled fence", "```\n{\"a\": 1}\n```", "a", json.Number("1")},
		{"surrounded by prose", `结果如下 {"answer":"x"} 谢谢`, "answer", "x"},
		{"byte order mark", "\ufeff{\"a\":\"b\"}", "a", "b"},
		{"single quotes and trailing comma", `{'answer': '5', 'note': 'ok',}`, "answer", "5"},
		{"truncated", `{"answer": "5", "steps": ["a","b"`, "answer", "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extract.ExtractEmbedded(extract.Text(tt.input))
			if err != nil {
				t.Fatalf("ExtractEmbedded() error = %v", err)
			}
			if got[tt.key] != tt.want {
				t.Errorf("record[%q] = %#v, want %#v", tt.key, got[tt.key], tt.want)
			}
		})
	}
}

func TestExtractEmbedded_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content extract.Content
		wantErr error
	}{
		{"absent", extract.Absent(), extract.ErrEmptyInput},
		{"whitespace", extract.Text(" \n "), extract.ErrEmptyInput},
		{"no data", extract.Text("只是普通的解答文字"), extract.ErrMalformedEmbeddedData},
		{"array", extract.Text("[1, 2]"), extract.ErrMalformedEmbeddedData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := extract.ExtractEmbedded(tt.content)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ExtractEmbedded() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
