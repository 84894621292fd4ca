package analysis

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a record does not exist or is not owned by the caller.
var ErrNotFound = errors.New("analysis not found")

// Repository port for persisting and querying analyses
type Repository interface {
	Save(ctx context.Context, a *Analysis) error
	Get(ctx context.Context, id ID, owner Owner) (*Analysis, error)
	List(ctx context.Context, owner Owner, f Filter) ([]*Summary, error)
	// UpdateLabels replaces the whole label set and returns the stored labels.
	UpdateLabels(ctx context.Context, id ID, owner Owner, labels []string) ([]string, error)
}

// Archive keeps the raw provider reply for an analysis.
type Archive interface {
	Put(ctx context.Context, key string, body []byte) (string, error)
}
