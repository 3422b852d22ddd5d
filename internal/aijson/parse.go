// Package aijson extracts and validates the JSON object an AI text service
// is asked to produce. Models wrap their answer in prose or fenced code
// blocks often enough that strict decoding of the raw text is useless.
package aijson

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyResponse flags a blank AI response.
var ErrEmptyResponse = errors.New("empty AI response")

// ErrNoObject flags a response with no JSON object to extract.
var ErrNoObject = errors.New("no JSON object found in AI response")

// ParseObject locates and decodes the JSON object inside raw model output.
// A single fenced code block is unwrapped first; the object is then taken
// from the first '{' through the last '}'. Arrays and null are rejected:
// only a plain keyed object is acceptable. Native decode failures keep the
// decoder's exact message for diagnosability.
func ParseObject(raw string) (map[string]any, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return nil, ErrEmptyResponse
	}

	cleaned = unwrapFence(cleaned)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || end < start {
		return nil, ErrNoObject
	}

	var value any
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &value); err != nil {
		return nil, fmt.Errorf("parse AI response: %w", err)
	}

	obj, ok := value.(map[string]any)
	if !ok || obj == nil {
		return nil, fmt.Errorf("%w: value is not a keyed object", ErrNoObject)
	}
	return obj, nil
}

// unwrapFence strips a markdown code fence when the whole input is a single
// fenced block, with or without a language tag.
func unwrapFence(s string) string {
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") {
		return s
	}
	inner := strings.TrimSuffix(s, "```")
	inner = strings.TrimPrefix(inner, "```")
	// Drop the language tag line ("json", "JSON", ...), if any.
	if nl := strings.Index(inner, "\n"); nl != -1 {
		first := strings.TrimSpace(inner[:nl])
		if first != "" && !strings.ContainsAny(first, "{}") {
			inner = inner[nl+1:]
		}
	}
	return strings.TrimSpace(inner)
}
