package ai

import (
	"regexp"
	"strings"
)

var numberingPattern = regexp.MustCompile(`^\s*(?:\d+[\.\)]\s*|[-*]\s+)`)

// ParseLines extracts the non-empty lines of a response, stripping list
// numbering and bullet markers. Used for query lists and outlines.
func ParseLines(text string) []string {
	lines := strings.Split(text, "\n")

	var out []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cleaned := stripNumbering(line)
		if cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}

func stripNumbering(s string) string {
	return strings.TrimSpace(numberingPattern.ReplaceAllString(s, ""))
}

// CleanJSONResponse strips markdown code fences from a response.
func CleanJSONResponse(raw string) string {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}

// ExtractJSON pulls a JSON object or array out of a model response that may
// be wrapped in prose or code fences. Returns "" only when nothing even
// vaguely JSON-shaped is present.
func ExtractJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Try as-is first
	if looksLikeJSON(raw) {
		return raw
	}

	// Strip markdown code fences
	cleaned := CleanJSONResponse(raw)
	if looksLikeJSON(cleaned) {
		return cleaned
	}

	// Find first { and last } for objects
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			candidate := raw[start : end+1]
			if looksLikeJSON(candidate) {
				return candidate
			}
		}
	}

	// Find first [ and last ] for arrays
	if start := strings.Index(raw, "["); start >= 0 {
		if end := strings.LastIndex(raw, "]"); end > start {
			candidate := raw[start : end+1]
			if looksLikeJSON(candidate) {
				return candidate
			}
		}
	}

	if looksLikeJSON(cleaned) {
		return cleaned
	}
	return ""
}

func looksLikeJSON(s string) bool {
	s = strings.TrimSpace(s)
	return (strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]")) ||
		(strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}"))
}
