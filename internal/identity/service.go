package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLen    = 16
	hashLen    = 32
	pbkdf2Iter = 210_000
)

var ErrInvalidCredentials = errors.New("invalid username or password")

// Service is the identity collaborator: it owns credential mechanics so the
// booking engine only ever sees participant ids.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Register creates a new account of the given kind. The username doubles as
// the participant id referenced by availabilities and appointments.
func (s *Service) Register(ctx context.Context, kind Kind, username, password string) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown participant kind %q", kind)
	}
	if username == "" || password == "" {
		return errors.New("username and password must be non-empty")
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}

	acc := Account{
		Kind:     kind,
		Username: username,
		Salt:     salt,
		Hash:     hashPassword(password, salt),
	}

	if err := s.store.CreateAccount(ctx, acc); err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// Authenticate verifies credentials and returns the participant id.
// Lookup misses and hash mismatches are deliberately indistinguishable.
func (s *Service) Authenticate(ctx context.Context, kind Kind, username, password string) (string, error) {
	acc, err := s.store.Account(ctx, kind, username)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("load account: %w", err)
	}

	if subtle.ConstantTimeCompare(hashPassword(password, acc.Salt), acc.Hash) != 1 {
		return "", ErrInvalidCredentials
	}

	return acc.Username, nil
}

func hashPassword(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, pbkdf2Iter, hashLen, sha256.New)
}
