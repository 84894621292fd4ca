package middleware

import (
	"strconv"
	"strings"
)

// Input validation and sanitization utilities

// SanitizeString removes null bytes and control characters, keeping tabs and newlines.
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// SanitizeLine is SanitizeString for single-line values such as topics and labels.
func SanitizeLine(input string) string {
	s := SanitizeString(input)
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	return strings.Join(strings.Fields(s), " ")
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}

// ParsePage parses a 1-based page number, defaulting to 1.
func ParsePage(raw string) int {
	p, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || p <= 0 {
		return 1
	}
	return p
}
