package identity

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the test and development substitute for PgStore.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[accountKey]Account
}

type accountKey struct {
	kind     Kind
	username string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[accountKey]Account)}
}

func (s *MemoryStore) CreateAccount(_ context.Context, acc Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := accountKey{kind: acc.Kind, username: acc.Username}
	if _, ok := s.accounts[key]; ok {
		return ErrUsernameTaken
	}

	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now()
	}
	s.accounts[key] = acc
	return nil
}

func (s *MemoryStore) Account(_ context.Context, kind Kind, username string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[accountKey{kind: kind, username: username}]
	if !ok {
		return nil, ErrAccountNotFound
	}
	out := acc
	return &out, nil
}
