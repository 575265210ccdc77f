package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"solana-call-tracker/internal/observability"
)

// Pool wraps pgxpool.Pool for dependency injection.
type Pool struct {
	*pgxpool.Pool
}

// NewPool creates a new Postgres connection pool sized for maxConns
// concurrent writers (0 keeps the pgxpool default).
func NewPool(ctx context.Context, dsn string, maxConns int32) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		config.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() {
	p.Pool.Close()
}

// PostgreSQL error codes
const (
	pgErrUniqueViolation     = "23505" // unique_violation
	pgErrForeignKeyViolation = "23503" // foreign_key_violation
	pgErrCheckViolation      = "23514" // check_violation
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isDuplicateKeyError checks if error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	return err != nil && pgErrorCode(err) == pgErrUniqueViolation
}

// isInvalidInputError checks if error is a foreign key or check constraint violation.
func isInvalidInputError(err error) bool {
	if err == nil {
		return false
	}
	code := pgErrorCode(err)
	return code == pgErrForeignKeyViolation || code == pgErrCheckViolation
}

// isNotFoundError checks if error indicates no rows found.
func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// timeQuery starts a latency measurement; the returned func records it
// together with the query outcome under the "postgres" label.
func timeQuery(operation string) func(error) {
	start := time.Now()
	return func(err error) {
		observability.RecordDBQuery("postgres", operation, time.Since(start).Seconds(), err)
	}
}
