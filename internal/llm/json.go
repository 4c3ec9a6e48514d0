package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeJSON extracts the JSON object embedded in a model response and
// unmarshals it into v. Markdown code fences and leading/trailing prose are
// tolerated; anything else is ErrMalformedOutput.
func DecodeJSON(raw string, v any) error {
	body := extractObject(raw)
	if body == "" {
		return fmt.Errorf("%w: no JSON object in response", ErrMalformedOutput)
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return nil
}

func extractObject(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

// StripFences removes markdown code fences a model may wrap plain text in
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.Index(s, "\n"); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
