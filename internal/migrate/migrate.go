package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed sql/*.sql
var migrationsFS embed.FS

// Apply runs all migrations up using the embedded migration files.
func Apply(ctx context.Context, pool *pgxpool.Pool, logger *log.Logger) error {
	return run(ctx, pool, logger, func(m *migrate.Migrate) error { return m.Up() })
}

// Rollback reverts the given number of migration steps.
func Rollback(ctx context.Context, pool *pgxpool.Pool, logger *log.Logger, steps int) error {
	if steps <= 0 {
		return fmt.Errorf("rollback steps must be positive, got %d", steps)
	}
	return run(ctx, pool, logger, func(m *migrate.Migrate) error { return m.Steps(-steps) })
}

func run(ctx context.Context, pool *pgxpool.Pool, logger *log.Logger, step func(*migrate.Migrate) error) error {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	srcDriver, err := iofs.New(migrationsFS, "sql")
	if err != nil {
		return fmt.Errorf("init iofs: %w", err)
	}

	sqlDB, err := sql.Open("pgx", pool.Config().ConnString())
	if err != nil {
		return fmt.Errorf("open sql db: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sql db: %w", err)
	}

	dbDriver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("init db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", srcDriver, "pgx", dbDriver)
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	defer m.Close()

	if err := step(m); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Printf("migrate: no change")
			return nil
		}
		return fmt.Errorf("migrate: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read version: %w", err)
	}
	logger.Printf("migrate: schema at version=%d dirty=%t", version, dirty)
	return nil
}
