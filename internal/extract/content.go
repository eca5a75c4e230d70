package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ContentKind identifies which shape a Content value holds.
type ContentKind int

const (
	ContentAbsent ContentKind = iota
	ContentText
	ContentFragments
	ContentRecord
)

func (k ContentKind) String() string {
	switch k {
	case ContentAbsent:
		return "absent"
	case ContentText:
		return "text"
	case ContentFragments:
		return "fragments"
	case ContentRecord:
		return "record"
	default:
		return "unknown"
	}
}

// Keys checked, in order, for the text of a record fragment.
var fragmentTextKeys = []string{"text", "content", "output_text"}

// Keys checked, in order, for the text of a whole record.
var recordTextKeys = []string{"text", "content", "output_text", "reasoning_content"}

// Fragment is one element of a fragment sequence: either plain text or a
// keyed record carrying its text under a recognized key.
type Fragment struct {
	Text   string
	Record map[string]any
}

// TextFragment returns a plain-text fragment.
func TextFragment(s string) Fragment {
	return Fragment{Text: s}
}

// RecordFragment returns a keyed-record fragment.
func RecordFragment(m map[string]any) Fragment {
	return Fragment{Record: m}
}

func (f Fragment) text() string {
	if f.Record == nil {
		return strings.TrimSpace(f.Text)
	}
	return firstText(f.Record, fragmentTextKeys)
}

// Content is the model output in one of the shapes providers deliver:
// plain text, an ordered sequence of fragments, a keyed record, or nothing.
// The zero value is absent content.
type Content struct {
	kind      ContentKind
	text      string
	fragments []Fragment
	record    map[string]any
}

// Text wraps a plain string.
func Text(s string) Content {
	return Content{kind: ContentText, text: s}
}

// Fragments wraps an ordered fragment sequence.
func Fragments(f ...Fragment) Content {
	return Content{kind: ContentFragments, fragments: f}
}

// Record wraps a keyed record. A nil map is absent content.
func Record(m map[string]any) Content {
	if m == nil {
		return Absent()
	}
	return Content{kind: ContentRecord, record: m}
}

// Absent returns empty content.
func Absent() Content {
	return Content{}
}

// FromValue converts a decoded JSON value into Content. Sequence elements
// that are neither strings nor records are skipped; other scalars become text.
func FromValue(v any) Content {
	switch t := v.(type) {
	case nil:
		return Absent()
	case Content:
		return t
	case string:
		return Text(t)
	case []string:
		frags := make([]Fragment, 0, len(t))
		for _, s := range t {
			frags = append(frags, TextFragment(s))
		}
		return Fragments(frags...)
	case []any:
		frags := make([]Fragment, 0, len(t))
		for _, item := range t {
			switch it := item.(type) {
			case string:
				frags = append(frags, TextFragment(it))
			case map[string]any:
				frags = append(frags, RecordFragment(it))
			}
		}
		return Fragments(frags...)
	case map[string]any:
		return Record(t)
	default:
		return Text(stringify(t))
	}
}

// Kind reports the shape held by c.
func (c Content) Kind() ContentKind {
	return c.kind
}

// IsAbsent reports whether c carries no value at all.
func (c Content) IsAbsent() bool {
	return c.kind == ContentAbsent
}

// Normalize collapses c into a single trimmed string. It never fails.
func (c Content) Normalize() string {
	var s string
	switch c.kind {
	case ContentText:
		s = c.text
	case ContentFragments:
		chunks := make([]string, 0, len(c.fragments))
		for _, f := range c.fragments {
			if t := f.text(); t != "" {
				chunks = append(chunks, t)
			}
		}
		s = strings.Join(chunks, "\n")
	case ContentRecord:
		if t := firstText(c.record, recordTextKeys); t != "" {
			s = t
		} else {
			s = canonicalJSON(c.record)
		}
	case ContentAbsent:
		return ""
	}
	return strings.TrimSpace(norm.NFC.String(s))
}

// UnmarshalJSON decodes any JSON value into Content.
func (c *Content) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("decode content: %w", err)
	}
	*c = FromValue(v)
	return nil
}

// MarshalJSON encodes c back into the shape it was built from.
func (c Content) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case ContentText:
		return json.Marshal(c.text)
	case ContentFragments:
		out := make([]any, 0, len(c.fragments))
		for _, f := range c.fragments {
			if f.Record != nil {
				out = append(out, f.Record)
			} else {
				out = append(out, f.Text)
			}
		}
		return json.Marshal(out)
	case ContentRecord:
		return json.Marshal(c.record)
	default:
		return []byte("null"), nil
	}
}

func firstText(m map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			if t := strings.TrimSpace(s); t != "" {
				return t
			}
		}
	}
	return ""
}

// canonicalJSON encodes v with sorted keys and without HTML escaping.
func canonicalJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimSpace(buf.String())
}

// stringify renders a decoded JSON value as text. nil renders empty.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case map[string]any, []any:
		return canonicalJSON(t)
	default:
		return fmt.Sprint(t)
	}
}
