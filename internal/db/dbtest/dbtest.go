// Package dbtest provides a migrated, empty Postgres pool for repository
// tests. Tests are skipped unless TEST_DB_DSN is set.
package dbtest

import (
	"context"
	"os"
	"testing"

	"marketplace-core/internal/migrate"

	"github.com/jackc/pgx/v5/pgxpool"
)

func Pool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Fatalf("ping db: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := migrate.Apply(ctx, pool, nil); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE orders, coupons, products, stores RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return pool
}

// InsertStore creates a store row and returns its id.
func InsertStore(ctx context.Context, t *testing.T, pool *pgxpool.Pool, slug string) string {
	t.Helper()
	var id string
	err := pool.QueryRow(ctx, `INSERT INTO stores (owner_id, name, slug) VALUES ('owner-1', $1, $1) RETURNING id::text`, slug).Scan(&id)
	if err != nil {
		t.Fatalf("insert store: %v", err)
	}
	return id
}
