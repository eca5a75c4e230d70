package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var (
	fencedBlock = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")
	braceSpan   = regexp.MustCompile(`\{[\s\S]*\}`)
)

// ExtractEmbedded recovers one keyed record embedded anywhere in c.
//
// A fenced block is unwrapped first, then the widest {...} span is taken.
// Strict decoding is tried before a repair pass that tolerates single
// quotes, trailing commas, unquoted keys and truncation.
func ExtractEmbedded(c Content) (map[string]any, error) {
	text := c.Normalize()
	if text == "" {
		return nil, ErrEmptyInput
	}

	candidate := text
	if m := fencedBlock.FindStringSubmatch(candidate); m != nil {
		candidate = strings.TrimSpace(m[1])
	}
	if span := braceSpan.FindString(candidate); span != "" {
		candidate = span
	}
	candidate = strings.TrimSpace(strings.ReplaceAll(candidate, "\ufeff", ""))

	v, err := decodeStrict(candidate)
	if err != nil {
		if !strings.HasPrefix(candidate, "{") {
			return nil, fmt.Errorf("decode embedded data: %w: %v", ErrMalformedEmbeddedData, err)
		}
		repaired, repairErr := jsonrepair.JSONRepair(candidate)
		if repairErr != nil {
			return nil, fmt.Errorf("repair embedded data: %w: %v", ErrMalformedEmbeddedData, repairErr)
		}
		if v, err = decodeStrict(repaired); err != nil {
			return nil, fmt.Errorf("decode repaired data: %w: %v", ErrMalformedEmbeddedData, err)
		}
	}

	record, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("embedded data is %T, not a record: %w", v, ErrMalformedEmbeddedData)
	}
	return record, nil
}

func decodeStrict(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if rest := strings.TrimSpace(s[dec.InputOffset():]); rest != "" {
		return nil, errors.New("unexpected data after value")
	}
	return v, nil
}
