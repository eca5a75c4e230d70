package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	trueFalseCues = []string{"判断", "对错", "正确吗", "错误吗", "true or false", "True or False"}
	blankCues     = []string{"填空", "____", "（  ）", "(  )"}
	choicePattern = regexp.MustCompile(`\bA[\.、]\s*.+\bB[\.、]\s*.+`)

	// Variables and "-", "*" or "/" alone are too common in prose to count;
	// an expression using them carries a digit or "=" as well.
	mathSymbols = regexp.MustCompile(`[0-9+=^√π∫Σ≤≥<>×÷]`)
)

type subjectCues struct {
	subject  string
	keywords []string
}

// Checked in order; the first subject with a matching keyword wins.
var subjectVocabulary = []subjectCues{
	{"数学", []string{"方程", "函数", "几何", "数学", "代数", "概率"}},
	{"英语", []string{"英语", "English", "完形填空", "阅读理解"}},
	{"语文", []string{"语文", "古诗", "文言文", "作文", "修辞"}},
	{"物理", []string{"物理", "电路", "力学", "速度", "加速度"}},
	{"化学", []string{"化学", "反应", "方程式", "元素"}},
	{"生物", []string{"生物", "细胞", "DNA", "遗传"}},
}

var answerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:最终答案|答案)\s*[:：]\s*([^\n，,。；;]+)`),
	regexp.MustCompile(`(?i)(?:答案是|结果为|可得|answer is|result is)\s*([^\s，,。；;]+)`),
	regexp.MustCompile(`(?i)(?:等于|equals)\s*([^\s，,。；;]+)`),
	regexp.MustCompile(`=\s*([^\s，,。；;]+)`),
}

// InferType guesses the problem format from cue words.
func InferType(text string) QuestionType {
	if containsAny(text, trueFalseCues) {
		return TypeTrueFalse
	}
	if containsAny(text, blankCues) {
		return TypeFillInBlank
	}
	if strings.Contains(text, "选择") || choicePattern.MatchString(text) {
		return TypeMultipleChoice
	}
	return TypeOpenResponse
}

// InferSubject guesses the subject from symbols and keywords. Mathematics
// symbols take precedence; fallback is returned when nothing matches.
func InferSubject(text, fallback string) string {
	if mathSymbols.MatchString(text) {
		return "数学"
	}
	for _, sc := range subjectVocabulary {
		if containsAny(text, sc.keywords) {
			return sc.subject
		}
	}
	return fallback
}

// InferDifficulty grades by length: up to 30 characters is easy, up to 120
// is medium, anything longer is hard.
func InferDifficulty(text string) Difficulty {
	switch n := utf8.RuneCountInString(strings.TrimSpace(text)); {
	case n <= 30:
		return DifficultyEasy
	case n <= 120:
		return DifficultyMedium
	default:
		return DifficultyHard
	}
}

// InferAnswer looks for an answer stated in prose ("答案：", "答案是",
// "等于", "="). It returns "" when no pattern matches.
func InferAnswer(text string) string {
	s := strings.TrimSpace(text)
	if s == "" {
		return ""
	}
	for _, re := range answerPatterns {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		if v := strings.Trim(strings.TrimSpace(m[1]), "。；;，,"); v != "" {
			return v
		}
	}
	return ""
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
