package oracle

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// validator is implemented by every task result type.
type validator[T any] interface {
	*T
	Validate() error
}

// Decode parses an oracle answer into T and validates its required fields.
// Code fences and prose around the JSON object are tolerated. Any failure is a *ResponseError.
func Decode[T any, PT validator[T]](kind TaskKind, raw string) (*T, error) {
	out := new(T)
	if err := decodeJSON(raw, out); err != nil {
		return nil, &ResponseError{Kind: kind, Reason: err.Error(), Snippet: summarizePayloadSnippet(raw)}
	}
	if err := PT(out).Validate(); err != nil {
		return nil, &ResponseError{Kind: kind, Reason: err.Error(), Snippet: summarizePayloadSnippet(raw)}
	}
	return out, nil
}

func decodeJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}

	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}

	sanitized := sanitizeJSONPayload(trimmed)
	if sanitized == "" || sanitized == trimmed {
		return fmt.Errorf("decode: %w", directErr)
	}
	if err := json.Unmarshal([]byte(sanitized), target); err != nil {
		return fmt.Errorf("decode sanitized payload: %w", err)
	}
	return nil
}

func sanitizeJSONPayload(content string) string {
	trimmed := strings.TrimSpace(stripCodeFence(content))
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' {
		return trimmed
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimLeft(trimmed[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func summarizePayloadSnippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 160
	if runes := []rune(clean); len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
