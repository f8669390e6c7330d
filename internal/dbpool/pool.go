// Package dbpool defines the minimal Postgres access seam shared by every
// SQL-backed component (internal/geocache, internal/shapefile,
// internal/streetfile). It mirrors the teacher's repository.Database
// contract, which the retrieved snippet referenced (repository.NewDatabase)
// but did not include: a *pgxpool.Pool in production and a pgxmock.Pool in
// tests, unified behind one interface.
package dbpool

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool is the subset of *pgxpool.Pool every repository-style component
// needs. pgxmock.Pool satisfies it too, which is what makes the teacher's
// pgxmock-based test style work unchanged for the new packages.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

// New connects to Postgres using host/port/user/password/db-name parts, the
// same argument shape as the teacher's cmd/main.go expected from
// repository.NewDatabase.
func New(ctx context.Context, host, port, user, password, dbname string) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, dbname)

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}

	const (
		maxConns       = 10
		minConns       = 2
		maxConnLife    = 30 * time.Minute
		maxConnIdle    = 5 * time.Minute
		connectTimeout = 5 * time.Second
	)
	cfg.MaxConns = maxConns
	cfg.MinConns = minConns
	cfg.MaxConnLifetime = maxConnLife
	cfg.MaxConnIdleTime = maxConnIdle

	connCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err = pool.Ping(connCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return pool, nil
}
