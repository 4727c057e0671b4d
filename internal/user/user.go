// Package user manages platform users and their cached credit balance.
//
// The credits column is a projection of the credit ledger: request handlers
// never write it directly, only ledger application does (see internal/ledger
// and internal/recon).
package user

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// User represents a registered user and their cached credit balance.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Credits   int64     `json:"credits"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store persists users.
type Store interface {
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}
