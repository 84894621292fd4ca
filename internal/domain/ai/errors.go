package ai

import "errors"

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrEmptyCompletion means the provider answered without usable content.
var ErrEmptyCompletion = errors.New("ai returned no content")

// ErrMissingCredentials means no API key is configured.
var ErrMissingCredentials = errors.New("ai credentials not configured")
