// Package parse extracts structured JSON payloads from free-form model
// output. Models are asked for a bare JSON object but routinely wrap it
// in markdown fences or surround it with prose, so extraction tries a
// fenced ```json block first, then the first balanced {...} span, then
// fails with a typed error. The fallback policy on failure belongs to
// the caller, not to this package.
package parse

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Error describes a failed extraction attempt.
type Error struct {
	Stage string // "fence", "span", "decode"
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("model output parse failed at %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*?\\})\\s*\\n?```")

// Object decodes the first JSON object found in text into out.
func Object(text string, out any) error {
	raw, err := extractRaw(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return &Error{Stage: "decode", Err: err}
	}
	return nil
}

func extractRaw(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", &Error{Stage: "span", Err: fmt.Errorf("empty response")}
	}

	// 1. Fenced ```json block
	if m := fencePattern.FindStringSubmatch(trimmed); len(m) >= 2 {
		return m[1], nil
	}

	// 2. First balanced top-level {...} span
	if obj, ok := firstObjectSpan(trimmed); ok {
		return obj, nil
	}

	return "", &Error{Stage: "span", Err: fmt.Errorf("no JSON object found")}
}

// firstObjectSpan finds the first balanced JSON object by brace matching,
// honoring string literals and escapes.
func firstObjectSpan(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch ch {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
