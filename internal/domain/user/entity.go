package user

import "time"

// User is the local account behind a federated login.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name,omitempty"`
	Image       string    `json:"image,omitempty"`
	FederatedID string    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// FederatedIdentity is what the upstream identity provider tells us about a login.
type FederatedIdentity struct {
	Provider string
	Subject  string
	Email    string
	Name     string
	Image    string
}
