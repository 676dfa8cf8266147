package util

import (
	"encoding/json"
	"strings"
)

// ExtractFirstJSONObject returns the first balanced {...} span in s that is a
// valid JSON object. Spans that balance but fail to parse are skipped and the
// scan resumes at the next '{'. Braces inside JSON strings are ignored.
func ExtractFirstJSONObject(s string) (string, bool) {
	for start := strings.IndexByte(s, '{'); start >= 0; {
		end := balancedEnd(s, start)
		if end > start {
			span := s[start : end+1]
			var probe map[string]json.RawMessage
			if err := json.Unmarshal([]byte(span), &probe); err == nil {
				return span, true
			}
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// balancedEnd returns the index of the '}' closing the '{' at start, or -1.
func balancedEnd(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// StringOrList decodes a JSON value leniently into a list of strings:
// arrays keep their elements (non-strings are re-encoded as JSON text),
// a lone string becomes a one-element list, null and absent become empty.
func StringOrList(raw json.RawMessage) []string {
	raw = json.RawMessage(strings.TrimSpace(string(raw)))
	if len(raw) == 0 || string(raw) == "null" {
		return []string{}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err == nil {
		out := make([]string, 0, len(items))
		for _, it := range items {
			if s, ok := Scalar(it); ok {
				out = append(out, s)
			}
		}
		return out
	}
	if s, ok := Scalar(raw); ok && s != "" {
		return []string{s}
	}
	return []string{}
}

// Scalar renders a JSON value as a string: strings are unquoted, null is
// dropped, everything else is kept as compact JSON text.
func Scalar(raw json.RawMessage) (string, bool) {
	raw = json.RawMessage(strings.TrimSpace(string(raw)))
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	return string(raw), true
}
