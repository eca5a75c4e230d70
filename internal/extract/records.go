package extract

import (
	"fmt"
	"strings"
)

// QuestionType is the problem format of a classification record.
type QuestionType string

const (
	TypeMultipleChoice QuestionType = "选择"
	TypeFillInBlank    QuestionType = "填空"
	TypeOpenResponse   QuestionType = "解答"
	TypeTrueFalse      QuestionType = "判断"
)

var questionTypeAliases = map[string]QuestionType{
	"multiple-choice":   TypeMultipleChoice,
	"multiple_choice":   TypeMultipleChoice,
	"choice":            TypeMultipleChoice,
	"fill-in-blank":     TypeFillInBlank,
	"fill-in-the-blank": TypeFillInBlank,
	"fill_in_blank":     TypeFillInBlank,
	"open-response":     TypeOpenResponse,
	"open_response":     TypeOpenResponse,
	"true-false":        TypeTrueFalse,
	"true_false":        TypeTrueFalse,
}

// ParseQuestionType maps a raw label onto the enum. The canonical labels,
// the same labels with a trailing 题, and the English names are accepted.
func ParseQuestionType(raw string) (QuestionType, error) {
	s := strings.TrimSpace(raw)
	switch t := QuestionType(strings.TrimSuffix(s, "题")); t {
	case TypeMultipleChoice, TypeFillInBlank, TypeOpenResponse, TypeTrueFalse:
		return t, nil
	}
	if t, ok := questionTypeAliases[strings.ToLower(s)]; ok {
		return t, nil
	}
	return "", fmt.Errorf("question type %q: %w", raw, ErrValidationGap)
}

// Difficulty grades a problem.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "简单"
	DifficultyMedium Difficulty = "中等"
	DifficultyHard   Difficulty = "困难"
)

// ParseDifficulty maps a raw label onto the enum. English easy/medium/hard
// are accepted.
func ParseDifficulty(raw string) (Difficulty, error) {
	s := strings.TrimSpace(raw)
	switch d := Difficulty(s); d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, nil
	}
	switch strings.ToLower(s) {
	case "easy":
		return DifficultyEasy, nil
	case "medium":
		return DifficultyMedium, nil
	case "hard":
		return DifficultyHard, nil
	}
	return "", fmt.Errorf("difficulty %q: %w", raw, ErrValidationGap)
}

// ClassificationRecord describes what kind of problem was asked.
// Every field is always populated.
type ClassificationRecord struct {
	Type            QuestionType `json:"type"`
	Subject         string       `json:"subject"`
	KnowledgePoints []string     `json:"knowledgePoints"`
	Difficulty      Difficulty   `json:"difficulty"`
	Prerequisites   []string     `json:"prerequisites"`
}

// SolutionRecord is the step-by-step answer recovered from model output.
type SolutionRecord struct {
	Thinking string   `json:"thinking"`
	Steps    []string `json:"steps"`
	Answer   string   `json:"answer"`
	Summary  string   `json:"summary"`
}

// HasContent reports whether any field carries a value.
func (r SolutionRecord) HasContent() bool {
	return r.Thinking != "" || len(r.Steps) > 0 || r.Answer != "" || r.Summary != ""
}

// complete reports whether every field carries a value.
func (r SolutionRecord) complete() bool {
	return r.Thinking != "" && len(r.Steps) > 0 && r.Answer != "" && r.Summary != ""
}

// fillFrom copies into r every field r leaves empty and other provides.
func (r SolutionRecord) fillFrom(other SolutionRecord) SolutionRecord {
	if r.Thinking == "" {
		r.Thinking = other.Thinking
	}
	if len(r.Steps) == 0 {
		r.Steps = other.Steps
	}
	if r.Answer == "" {
		r.Answer = other.Answer
	}
	if r.Summary == "" {
		r.Summary = other.Summary
	}
	return r
}

// Defaults holds the placeholder values substituted when classification
// fields cannot be recovered. Treat a Defaults value as read-only.
type Defaults struct {
	KnowledgePoints []string `yaml:"knowledge_points"`
	Prerequisites   []string `yaml:"prerequisites"`
	Subject         string   `yaml:"subject"`
}

// StandardDefaults returns the built-in placeholders.
func StandardDefaults() Defaults {
	return Defaults{
		KnowledgePoints: []string{"题型分析", "解题方法"},
		Prerequisites:   []string{"相关基础概念", "基本运算能力"},
		Subject:         "综合",
	}
}

func (d Defaults) withFallbacks() Defaults {
	std := StandardDefaults()
	if len(d.KnowledgePoints) == 0 {
		d.KnowledgePoints = std.KnowledgePoints
	}
	if len(d.Prerequisites) == 0 {
		d.Prerequisites = std.Prerequisites
	}
	if strings.TrimSpace(d.Subject) == "" {
		d.Subject = std.Subject
	}
	return d
}
