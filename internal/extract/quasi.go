package extract

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Field aliases as they appear as keys in model output, canonical name first.
var (
	thinkingKeys = []string{"thinking", "analysis", "thought", "解题思路", "思路"}
	stepsKeys    = []string{"steps", "detailedSteps", "solutionSteps", "详细步骤", "解题步骤", "步骤"}
	answerKeys   = []string{"answer", "finalAnswer", "final_answer", "最终答案", "答案"}
	summaryKeys  = []string{"summary", "knowledgeSummary", "knowledge_summary", "知识总结", "知识点总结", "学习总结", "总结"}
)

var embeddedMarkers = []string{
	`"thinking"`, `"steps"`, `"answer"`, `"summary"`,
	`'thinking'`, `'steps'`, `'answer'`, `'summary'`,
}

var (
	quasiThinking = quasiStringPattern(thinkingKeys)
	quasiAnswer   = quasiStringPattern(answerKeys)
	quasiSummary  = quasiStringPattern(summaryKeys)
	quasiSteps    = quasiBlockPattern(stepsKeys)

	quasiType          = quasiStringPattern([]string{"type", "questionType", "question_type"})
	quasiSubject       = quasiStringPattern([]string{"subject"})
	quasiDifficulty    = quasiStringPattern([]string{"difficulty"})
	quasiKnowledge     = quasiBlockPattern([]string{"knowledgePoints", "knowledge_points"})
	quasiPrerequisites = quasiBlockPattern([]string{"prerequisites"})

	doubleQuoted = regexp.MustCompile(`"((?:\\.|[^"\\])*)"`)
	singleQuoted = regexp.MustCompile(`'((?:\\.|[^'\\])*)'`)

	labelType          = regexp.MustCompile(`(?:题目类型|类型)\s*[:：]\s*([^\n，,。；;]+)`)
	labelSubject       = regexp.MustCompile(`(?:所属学科|学科)\s*[:：]\s*([^\n，,。；;]+)`)
	labelDifficulty    = regexp.MustCompile(`(?:难度等级|难度)\s*[:：]\s*([^\n，,。；;]+)`)
	labelKnowledge     = regexp.MustCompile(`(?:知识点)\s*[:：]\s*([^\n]+)`)
	labelPrerequisites = regexp.MustCompile(`(?:前置知识|先修知识)\s*[:：]\s*([^\n]+)`)
)

func keyAlternation(keys []string) string {
	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = regexp.QuoteMeta(k)
	}
	return strings.Join(quoted, "|")
}

func quasiStringPattern(keys []string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)["'](?:` + keyAlternation(keys) + `)["']\s*:\s*(?:"((?:\\.|[^"\\])*)"|'((?:\\.|[^'\\])*)')`)
}

func quasiBlockPattern(keys []string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)["'](?:` + keyAlternation(keys) + `)["']\s*:\s*\[([\s\S]*?)(?:\]|$)`)
}

// LooksLikeEmbeddedData reports whether text resembles a data block: it
// starts with "{" or a json fence, or it quotes one of the solution keys.
func LooksLikeEmbeddedData(text string) bool {
	s := strings.TrimSpace(text)
	if s == "" {
		return false
	}
	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "```json") {
		return true
	}
	for _, m := range embeddedMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// ExtractQuasi pulls solution fields out of text that resembles a data block
// but does not decode. Fields that cannot be found stay empty.
func ExtractQuasi(text string) SolutionRecord {
	if !LooksLikeEmbeddedData(text) {
		return SolutionRecord{}
	}
	s := strings.TrimSpace(text)
	var out SolutionRecord
	out.Thinking = quasiString(quasiThinking, s)
	out.Answer = quasiString(quasiAnswer, s)
	out.Summary = quasiString(quasiSummary, s)
	if items := quasiItems(quasiSteps, s); items != nil {
		frags := make([]Fragment, len(items))
		for i, item := range items {
			frags[i] = TextFragment(item)
		}
		out.Steps = SplitSteps(Fragments(frags...))
	}
	return out
}

// ScanClassificationFields assembles a keyed classification record from
// text that did not decode. Quoted "key": "value" pairs are read first, then
// labelled lines such as "题目类型：选择题" fill what is still missing.
func ScanClassificationFields(text string) map[string]any {
	s := strings.TrimSpace(text)
	fields := make(map[string]any)
	if s == "" {
		return fields
	}

	setString := func(key string, v string) {
		if _, ok := fields[key]; !ok && v != "" {
			fields[key] = v
		}
	}
	setList := func(key string, v []string) {
		if _, ok := fields[key]; !ok && len(v) > 0 {
			fields[key] = v
		}
	}

	setString("type", quasiString(quasiType, s))
	setString("subject", quasiString(quasiSubject, s))
	setString("difficulty", quasiString(quasiDifficulty, s))
	setList("knowledgePoints", quasiItems(quasiKnowledge, s))
	setList("prerequisites", quasiItems(quasiPrerequisites, s))

	setString("type", labelled(labelType, s))
	setString("subject", labelled(labelSubject, s))
	setString("difficulty", labelled(labelDifficulty, s))
	setList("knowledgePoints", SplitList(labelled(labelKnowledge, s)))
	setList("prerequisites", SplitList(labelled(labelPrerequisites, s)))

	return fields
}

func quasiString(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	raw := m[1]
	if raw == "" {
		raw = m[2]
	}
	return unescapeQuoted(raw)
}

// quasiItems returns the quoted strings inside the bracket span following
// the key. Double-quoted items win over single-quoted ones.
func quasiItems(re *regexp.Regexp, s string) []string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	body := m[1]
	items := collectQuoted(doubleQuoted, body)
	if len(items) == 0 {
		items = collectQuoted(singleQuoted, body)
	}
	return items
}

func collectQuoted(re *regexp.Regexp, body string) []string {
	var items []string
	for _, m := range re.FindAllStringSubmatch(body, -1) {
		if v := unescapeQuoted(m[1]); v != "" {
			items = append(items, v)
		}
	}
	return items
}

func labelled(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

var manualUnescape = strings.NewReplacer(`\"`, `"`, `\n`, "\n", `\t`, "\t", `\r`, "\r")

// unescapeQuoted decodes JSON escape sequences in a quoted value. Values
// that are not valid JSON string bodies get the common escapes replaced.
func unescapeQuoted(raw string) string {
	if raw == "" {
		return ""
	}
	var out string
	if err := json.Unmarshal([]byte(`"`+raw+`"`), &out); err == nil {
		return strings.TrimSpace(out)
	}
	return strings.TrimSpace(manualUnescape.Replace(raw))
}
