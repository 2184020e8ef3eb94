package user

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a user id does not exist.
var ErrNotFound = errors.New("user not found")

// User is the identity slice the engine needs: ownership checks and
// notification addressing. Credential handling lives elsewhere.
type User struct {
	ID      string
	Name    string
	Email   string
	IsAdmin bool
}

// Repository provides user lookup.
type Repository interface {
	GetByID(ctx context.Context, id string) (*User, error)
}
