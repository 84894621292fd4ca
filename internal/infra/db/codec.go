package db

import (
	"database/sql"
	"encoding/json"
	"strings"
)

// EncodeLabels stores labels as a JSON array; nil becomes "[]".
func EncodeLabels(labels []string) (string, error) {
	if labels == nil {
		labels = []string{}
	}
	b, err := json.Marshal(labels)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeLabels is lenient: a broken column yields no labels rather than an error.
func DecodeLabels(s string) []string {
	out := []string{}
	if strings.TrimSpace(s) == "" {
		return out
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil || out == nil {
		return []string{}
	}
	return out
}

// NullString maps a nil pointer to SQL NULL.
func NullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// StringPtr maps SQL NULL to nil.
func StringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// EscapeLikePattern escapes special characters in LIKE patterns; use with ESCAPE '\'.
func EscapeLikePattern(s string) string {
	// Escape backslash first, then other LIKE special characters
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}

// ContainsPattern builds a lower-cased %term% LIKE argument.
func ContainsPattern(term string) string {
	return "%" + EscapeLikePattern(strings.ToLower(term)) + "%"
}

// OwnerArgs converts owner ids for an IN clause.
func OwnerArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
