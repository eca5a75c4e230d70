// Package extract recovers classification and solution records from
// loosely structured language-model output.
//
// Solution text runs through an ordered chain of strategies: an embedded
// data block, quasi-structured key/value text, then heading sections or
// plain paragraphs. Each later strategy only fills fields the earlier ones
// left empty. Classification output is coerced field by field, with
// inference over the problem text and configured placeholders covering
// anything the model left out.
package extract

import (
	"errors"
	"log/slog"
	"slices"
	"strings"
)

// excerptRunes bounds how much model output is copied into log lines.
const excerptRunes = 600

// Extractor turns raw model output into records. It holds no mutable state
// and is safe for concurrent use.
type Extractor struct {
	defaults Defaults
	logger   *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithDefaults sets the placeholders used for unresolved classification
// fields. Empty entries keep the built-in values.
func WithDefaults(d Defaults) Option {
	return func(e *Extractor) {
		e.defaults = d
	}
}

// WithLogger sets the logger for degraded-output warnings.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		defaults: StandardDefaults(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	d := e.defaults.withFallbacks()
	d.KnowledgePoints = slices.Clone(d.KnowledgePoints)
	d.Prerequisites = slices.Clone(d.Prerequisites)
	e.defaults = d
	return e
}

var defaultExtractor = New()

// ExtractClassification runs Classification on a default Extractor.
func ExtractClassification(raw Content, problemText string) ClassificationRecord {
	return defaultExtractor.Classification(raw, problemText)
}

// ExtractSolution runs Solution on a default Extractor.
func ExtractSolution(raw Content) (SolutionRecord, error) {
	return defaultExtractor.Solution(raw)
}

// Classification builds a fully populated classification record from raw
// model output. problemText is the problem as posed; type, subject and
// difficulty are inferred from it when the output does not supply them.
// It never fails.
func (e *Extractor) Classification(raw Content, problemText string) ClassificationRecord {
	text := raw.Normalize()
	source := strings.TrimSpace(problemText)
	if source == "" {
		source = text
	}

	var fields map[string]any
	switch rec, err := ExtractEmbedded(Text(text)); {
	case err == nil:
		fields = rec
	case errors.Is(err, ErrEmptyInput):
		e.logger.Warn("classification output empty, inferring from problem text")
	default:
		e.logger.Warn("classification output not decodable, scanning text",
			"error", err,
			"excerpt", excerpt(text),
		)
		fields = ScanClassificationFields(text)
	}

	rec := e.coerceClassification(fields, source)
	if err := ValidateClassification(rec); err != nil {
		e.logger.Error("classification record invalid, using inferred record", "error", err)
		rec = e.coerceClassification(nil, source)
	}
	return rec
}

func (e *Extractor) coerceClassification(fields map[string]any, source string) ClassificationRecord {
	rec := ClassificationRecord{
		Type:       InferType(source),
		Subject:    strings.TrimSpace(stringify(pick(fields, "subject"))),
		Difficulty: InferDifficulty(source),
	}
	if t, err := ParseQuestionType(stringify(pick(fields, "type", "questionType", "question_type"))); err == nil {
		rec.Type = t
	}
	if d, err := ParseDifficulty(stringify(pick(fields, "difficulty"))); err == nil {
		rec.Difficulty = d
	}
	if rec.Subject == "" {
		rec.Subject = InferSubject(source, e.defaults.Subject)
	}

	rec.KnowledgePoints = SplitList(pick(fields, "knowledgePoints", "knowledge_points"))
	if len(rec.KnowledgePoints) == 0 {
		rec.KnowledgePoints = slices.Clone(e.defaults.KnowledgePoints)
	}
	rec.Prerequisites = SplitList(pick(fields, "prerequisites"))
	if len(rec.Prerequisites) == 0 {
		rec.Prerequisites = slices.Clone(e.defaults.Prerequisites)
	}
	return rec
}

type strategy struct {
	name string
	run  func(text string) SolutionRecord
}

func (e *Extractor) strategies() []strategy {
	return []strategy{
		{name: "embedded", run: e.embeddedSolution},
		{name: "quasi", run: ExtractQuasi},
		{name: "sections", run: ExtractSections},
	}
}

// Solution recovers a solution record from raw model output. Only output
// with no text at all is an error (ErrEmptyInput).
func (e *Extractor) Solution(raw Content) (SolutionRecord, error) {
	text := raw.Normalize()
	if text == "" {
		return SolutionRecord{}, ErrEmptyInput
	}

	var rec SolutionRecord
	for _, s := range e.strategies() {
		if rec.complete() {
			break
		}
		part := s.run(text)
		if part.HasContent() {
			e.logger.Debug("solution strategy produced fields", "strategy", s.name)
		}
		rec = rec.fillFrom(part)
	}

	if rec.Answer == "" && len(rec.Steps) > 0 {
		rec.Answer = rec.Steps[len(rec.Steps)-1]
	}
	if rec.Answer == "" {
		rec.Answer = InferAnswer(joinNonEmpty("\n", text, rec.Thinking, rec.Summary))
	}
	if rec.Summary == "" {
		if rec.Thinking != "" && rec.Thinking != rec.Answer {
			rec.Summary = rec.Thinking
		} else {
			rec.Summary = rec.Answer
		}
	}

	if err := ValidateSolution(rec); err != nil {
		e.logger.Error("solution record invalid", "error", err)
	}
	return rec, nil
}

func (e *Extractor) embeddedSolution(text string) SolutionRecord {
	fields, err := ExtractEmbedded(Text(text))
	if err != nil {
		if LooksLikeEmbeddedData(text) {
			e.logger.Warn("solution data block not decodable, falling back",
				"error", err,
				"excerpt", excerpt(text),
			)
		}
		return SolutionRecord{}
	}
	return coerceSolution(fields)
}

func coerceSolution(fields map[string]any) SolutionRecord {
	return SolutionRecord{
		Thinking: FromValue(pick(fields, thinkingKeys...)).Normalize(),
		Steps:    SplitSteps(FromValue(pick(fields, stepsKeys...))),
		Answer:   FromValue(pick(fields, answerKeys...)).Normalize(),
		Summary:  FromValue(pick(fields, summaryKeys...)).Normalize(),
	}
}

// pick returns the value of the first key present with a non-null value.
func pick(fields map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := fields[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func excerpt(s string) string {
	r := []rune(s)
	if len(r) <= excerptRunes {
		return s
	}
	return string(r[:excerptRunes]) + "..."
}
