package identity

import (
	"context"
	"errors"
)

var (
	ErrUsernameTaken   = errors.New("username already taken")
	ErrAccountNotFound = errors.New("account not found")
)

// Store persists participant accounts. Usernames are unique per kind.
type Store interface {
	// CreateAccount inserts a new account. Fails with ErrUsernameTaken if
	// (kind, username) already exists.
	CreateAccount(ctx context.Context, acc Account) error

	// Account looks up one account by kind and username.
	Account(ctx context.Context, kind Kind, username string) (*Account, error)
}
