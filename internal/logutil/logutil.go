package logutil

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"
)

const redacted = "[REDACTED]"

// sensitiveFragments are matched against normalized keys.
// "access" and "refresh" cover the review API's JWT login response.
var sensitiveFragments = []string{
	"token",
	"secret",
	"password",
	"apikey",
	"cookie",
	"auth",
	"access",
	"refresh",
}

// IsSensitiveKey reports whether a header or JSON key likely holds credentials.
func IsSensitiveKey(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	normalized = strings.NewReplacer("-", "", "_", "").Replace(normalized)
	if normalized == "" {
		return false
	}
	for _, fragment := range sensitiveFragments {
		if strings.Contains(normalized, fragment) {
			return true
		}
	}
	return false
}

// HeaderAttrs returns sorted, redacted header pairs suitable for slog.Group.
func HeaderAttrs(headers http.Header) []any {
	if len(headers) == 0 {
		return nil
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	attrs := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		value := strings.Join(headers.Values(k), ", ")
		if IsSensitiveKey(k) {
			value = redacted
		}
		attrs = append(attrs, strings.ToLower(k), value)
	}
	return attrs
}

// RedactJSON replaces sensitive fields in a JSON payload.
// Bodies that are not valid JSON come back unchanged.
func RedactJSON(body []byte) string {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return string(body)
	}
	redactValue(payload)
	out, err := json.Marshal(payload)
	if err != nil {
		return string(body)
	}
	return string(out)
}

func redactValue(v any) {
	switch typed := v.(type) {
	case map[string]any:
		for k, child := range typed {
			if IsSensitiveKey(k) {
				typed[k] = redacted
				continue
			}
			redactValue(child)
		}
	case []any:
		for _, child := range typed {
			redactValue(child)
		}
	}
}

// BodyPreview truncates and redacts an HTTP body for a single log attribute.
func BodyPreview(contentType string, body []byte, maxBytes int) string {
	if len(body) == 0 {
		return ""
	}
	truncated := false
	if maxBytes > 0 && len(body) > maxBytes {
		body = body[:maxBytes]
		truncated = true
	}
	text := string(body)
	if strings.Contains(strings.ToLower(contentType), "json") {
		text = RedactJSON(body)
	}
	if truncated {
		return text + " [truncated]"
	}
	return text
}

// Truncate returns a single-line preview of value capped at maxChars.
func Truncate(value string, maxChars int) string {
	trimmed := strings.TrimSpace(value)
	normalized := strings.ReplaceAll(trimmed, "\n", "\\n")
	if maxChars <= 0 || len(normalized) <= maxChars {
		return normalized
	}
	return normalized[:maxChars] + "... [truncated]"
}
