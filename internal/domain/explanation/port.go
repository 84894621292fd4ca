package explanation

import (
	"context"
	"errors"
)

// ErrNotFound signals a cache miss.
var ErrNotFound = errors.New("explanation not cached")

// Cache is the explanation store. Upsert overwrites any entry with the same key.
type Cache interface {
	Get(ctx context.Context, k Key) (*Entry, error)
	Upsert(ctx context.Context, e *Entry) error
}
