package repository

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS

// Dialects understood by Migrate.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// Migrate applies the embedded goose migrations for dialect.
func Migrate(ctx context.Context, db *sql.DB, dialect string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	var gooseDialect goose.Dialect
	switch dialect {
	case DialectPostgres:
		gooseDialect = goose.DialectPostgres
	case DialectSQLite:
		gooseDialect = goose.DialectSQLite3
	default:
		return fmt.Errorf("migrate: unknown dialect %q", dialect)
	}

	provider, err := goose.NewProvider(gooseDialect, db, migrationsFS(dialect))
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	for _, r := range results {
		logger.Info("repo.migrate.applied", "version", r.Source.Version, "path", r.Source.Path, "elapsed_ms", r.Duration.Milliseconds())
	}
	logger.Info("repo.migrate.done", "dialect", dialect, "applied", len(results))
	return nil
}

// MigratePool runs the postgres migrations through a database/sql view of the pool.
func MigratePool(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	return Migrate(ctx, stdlib.OpenDBFromPool(pool), DialectPostgres, logger)
}

func migrationsFS(dialect string) fs.FS {
	sub, err := fs.Sub(migrations, "migrations/"+dialect)
	if err != nil {
		// both directories are embedded
		panic(err)
	}
	return sub
}
