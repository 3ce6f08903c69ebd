package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) CreateAccount(ctx context.Context, acc Account) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (kind, username, salt, hash, created_at)
		VALUES ($1, $2, $3, $4, now())
	`, acc.Kind, acc.Username, acc.Salt, acc.Hash)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505 = unique_violation on (kind, username)
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrUsernameTaken
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *PgStore) Account(ctx context.Context, kind Kind, username string) (*Account, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT kind, username, salt, hash, created_at
		FROM accounts
		WHERE kind = $1 AND username = $2
	`, kind, username)

	var acc Account
	err := row.Scan(&acc.Kind, &acc.Username, &acc.Salt, &acc.Hash, &acc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("select account: %w", err)
	}

	return &acc, nil
}
