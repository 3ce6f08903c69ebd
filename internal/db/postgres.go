package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool sizing follows the write profile of the booking ledgers: bursts of
// short single-statement transactions on contended days, so spare
// connections matter more than long lifetimes.
const (
	poolMaxConns     = 16
	poolMinConns     = 2
	poolHealthCheck  = time.Minute
	poolConnLifetime = 30 * time.Minute
	poolConnIdleTime = 5 * time.Minute

	connectTimeout = 5 * time.Second
)

// ConnectPostgres opens the shared pool and pings it, so a bad DSN or an
// unreachable server fails at startup rather than on the first reservation.
func ConnectPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	cfg.MaxConns = poolMaxConns
	cfg.MinConns = poolMinConns
	cfg.HealthCheckPeriod = poolHealthCheck
	cfg.MaxConnLifetime = poolConnLifetime
	cfg.MaxConnIdleTime = poolConnIdleTime
	cfg.ConnConfig.ConnectTimeout = connectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}
