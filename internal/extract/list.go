package extract

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

var (
	listSeparator = regexp.MustCompile(`[，,、；;\n]+`)
	stepOrdinal   = regexp.MustCompile(`^\s*(?:(?:#{1,6}\s*)?(?:\*\*)?(?:步骤\s*[一二三四五六七八九十百零\d]+|第[一二三四五六七八九十百零\d]+步)\s*(?:\*\*)?\s*[:：]?|[-*•]|\d+[\.、\)])\s*`)
	stepSentence  = regexp.MustCompile(`[。；;\n]+`)
	lineBreak     = regexp.MustCompile(`\r\n|\r|\n`)
)

// listMarkers are stripped from both ends of every list item.
const listMarkers = " -•*"

// SplitList turns a list-valued field into trimmed, non-empty items.
// Sequences are taken element by element. Strings shaped like a JSON array
// are decoded first; any other string is split on commas, enumeration
// commas, semicolons and newlines.
func SplitList(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		return cleanItems(t)
	case []any:
		items := make([]string, 0, len(t))
		for _, item := range t {
			items = append(items, stringify(item))
		}
		return cleanItems(items)
	case Content:
		return SplitList(t.Normalize())
	}

	text := strings.TrimSpace(stringify(v))
	if text == "" {
		return nil
	}
	if strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]") {
		if decoded, ok := decodeArray(text); ok {
			return SplitList(decoded)
		}
	}

	var out []string
	for _, part := range listSeparator.Split(text, -1) {
		if p := strings.Trim(part, listMarkers); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SplitSteps turns step content into ordered, trimmed steps. Leading
// bullets, "N." / "N、" / "N)" ordinals and "第N步" / "步骤N：" labels
// (optionally bold or under "###") are removed.
// When no line survives, the text is split on sentence punctuation instead.
func SplitSteps(c Content) []string {
	text := c.Normalize()
	if text == "" {
		return nil
	}

	var steps []string
	for _, line := range lineBreak.Split(text, -1) {
		if s := strings.TrimSpace(stepOrdinal.ReplaceAllString(line, "")); s != "" {
			steps = append(steps, s)
		}
	}
	if len(steps) > 0 {
		return steps
	}

	for _, part := range stepSentence.Split(text, -1) {
		if s := strings.TrimSpace(part); s != "" {
			steps = append(steps, s)
		}
	}
	return steps
}

func cleanItems(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func decodeArray(text string) ([]any, bool) {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	var arr []any
	if err := dec.Decode(&arr); err != nil {
		return nil, false
	}
	return arr, true
}
