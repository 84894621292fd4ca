package user

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("user not found")

// Repository port
type Repository interface {
	// FindOrCreate matches on email OR federated id, refreshes profile fields and
	// returns the stored user.
	FindOrCreate(ctx context.Context, fi FederatedIdentity) (*User, error)
	GetByFederatedID(ctx context.Context, federatedID string) (*User, error)
}
