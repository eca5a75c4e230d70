package extract

import (
	"regexp"
	"sort"
	"strings"
)

type field int

const (
	fieldNone field = iota
	fieldThinking
	fieldSteps
	fieldAnswer
	fieldSummary
)

// Heading vocabulary for narrative output.
var headingAliases = map[string]field{
	"解题思路":     fieldThinking,
	"思路":       fieldThinking,
	"analysis": fieldThinking,
	"thought":  fieldThinking,
	"详细步骤":     fieldSteps,
	"解题步骤":     fieldSteps,
	"步骤":       fieldSteps,
	"最终答案":     fieldAnswer,
	"答案":       fieldAnswer,
	"知识总结":     fieldSummary,
	"知识点总结":    fieldSummary,
	"学习总结":     fieldSummary,
	"总结":       fieldSummary,
}

var (
	headingLine   = compileHeadingLine()
	paragraphGap  = regexp.MustCompile(`\n\s*\n`)
	bulletLine    = regexp.MustCompile(`^(?:\d+[\.、\)]|[-*•])\s*`)
	inlineAnswer  = regexp.MustCompile(`(?:最终答案|答案)\s*[:：]\s*(.+)`)
	inlineSummary = regexp.MustCompile(`(?:知识总结|知识点总结|学习总结|总结)\s*[:：]\s*(.+)`)
)

func compileHeadingLine() *regexp.Regexp {
	aliases := make([]string, 0, len(headingAliases))
	for a := range headingAliases {
		aliases = append(aliases, a)
	}
	// Longer aliases first so 最终答案 is not read as 答案.
	sort.Slice(aliases, func(i, j int) bool {
		if len(aliases[i]) != len(aliases[j]) {
			return len(aliases[i]) > len(aliases[j])
		}
		return aliases[i] < aliases[j]
	})
	return regexp.MustCompile(`(?i)^\s*(#{1,6}\s*)?(【\s*)?(\*\*\s*)?(` + keyAlternation(aliases) +
		`)\s*(\*\*)?\s*(】)?\s*(\*\*)?\s*([:：])?\s*(.*)$`)
}

// matchHeading reports which field a line opens, plus any text that follows
// the heading on the same line. The alias must be closed by "**", "】" or a
// colon, or stand alone on its line, so labels such as "### 步骤1：移项"
// or "步骤很简单" are not headings.
func matchHeading(line string) (field, string) {
	m := headingLine.FindStringSubmatch(line)
	if m == nil {
		return fieldNone, ""
	}
	closed := m[5] != "" || m[6] != "" || m[7] != "" || m[8] != ""
	rest := strings.TrimSpace(m[9])
	if !closed && rest != "" {
		return fieldNone, ""
	}
	return headingAliases[strings.ToLower(m[4])], rest
}

// ExtractSections recovers solution fields from narrative text organised
// under headings such as "## 解题思路", "【最终答案】" or "答案：".
func ExtractSections(text string) SolutionRecord {
	s := strings.TrimSpace(text)
	if s == "" {
		return SolutionRecord{}
	}

	captured := make(map[field][]string)
	seen := make(map[field]bool)
	current := fieldNone
	for _, line := range lineBreak.Split(s, -1) {
		if f, rest := matchHeading(line); f != fieldNone {
			switch {
			case f == current:
				// A repeated heading inside its own section continues it.
			case seen[f]:
				current = fieldNone
			default:
				seen[f] = true
				current = f
			}
			line = rest
		}
		if current != fieldNone {
			captured[current] = append(captured[current], line)
		}
	}
	section := func(f field) string {
		return strings.TrimSpace(strings.Join(captured[f], "\n"))
	}

	out := SolutionRecord{
		Thinking: section(fieldThinking),
		Answer:   section(fieldAnswer),
		Summary:  section(fieldSummary),
	}
	if steps := section(fieldSteps); steps != "" {
		out.Steps = SplitSteps(Text(steps))
	}

	paragraphs := splitParagraphs(s)
	paragraphMode := false
	if !out.HasContent() && !LooksLikeEmbeddedData(s) {
		paragraphMode = true
		out = fromParagraphs(s, paragraphs)
	}

	if out.Answer == "" {
		if m := inlineAnswer.FindStringSubmatch(s); m != nil {
			out.Answer = strings.TrimSpace(m[1])
		} else if len(out.Steps) > 0 {
			out.Answer = out.Steps[len(out.Steps)-1]
		}
	}
	if out.Summary == "" {
		if m := inlineSummary.FindStringSubmatch(s); m != nil {
			out.Summary = strings.TrimSpace(m[1])
		} else if !paragraphMode && len(paragraphs) > 1 {
			if tail := stripHeadings(paragraphs[len(paragraphs)-1]); tail != "" && tail != out.Answer {
				out.Summary = tail
			}
		}
	}
	return out
}

// fromParagraphs maps unmarked prose onto a solution: the first paragraph
// is the thinking, the last the summary, and the ones between are steps.
// Bullet or numbered lines become the steps when no interior paragraph
// exists.
func fromParagraphs(s string, paragraphs []string) SolutionRecord {
	var out SolutionRecord
	if len(paragraphs) == 0 {
		return out
	}
	out.Thinking = paragraphs[0]
	if len(paragraphs) > 1 {
		out.Summary = paragraphs[len(paragraphs)-1]
	}
	if len(paragraphs) > 2 {
		out.Steps = append([]string(nil), paragraphs[1:len(paragraphs)-1]...)
	}

	if len(out.Steps) == 0 {
		for _, line := range lineBreak.Split(s, -1) {
			l := strings.TrimSpace(line)
			if !bulletLine.MatchString(l) {
				continue
			}
			if cleaned := strings.TrimSpace(bulletLine.ReplaceAllString(l, "")); cleaned != "" {
				out.Steps = append(out.Steps, cleaned)
			}
		}
	}
	return out
}

func splitParagraphs(s string) []string {
	var out []string
	for _, p := range paragraphGap.Split(s, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// stripHeadings drops heading markup from a paragraph, keeping any text
// that shared a line with a heading.
func stripHeadings(paragraph string) string {
	lines := lineBreak.Split(paragraph, -1)
	kept := lines[:0]
	for _, line := range lines {
		if f, rest := matchHeading(line); f != fieldNone {
			line = rest
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
