package migrations

import (
	"context"
	"fmt"

	"solana-call-tracker/internal/storage/postgres"
)

// RunPostgresMigrations applies all embedded PostgreSQL files in lexical order.
// Every file is written with IF NOT EXISTS guards so reruns are harmless.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := sqlFiles(PostgresFS, "postgres")
	if err != nil {
		return err
	}

	for _, f := range files {
		if _, err := pool.Exec(ctx, f.body); err != nil {
			return fmt.Errorf("apply migration %s: %w", f.name, err)
		}
	}
	return nil
}
