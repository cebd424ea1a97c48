// Package uow runs a group of repository calls as one atomic unit.
package uow

import (
	"context"
	"fmt"
	"io"
	"log"

	"marketplace-core/internal/repository/coupon"
	"marketplace-core/internal/repository/order"
	"marketplace-core/internal/repository/product"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repos are the repositories bound to one unit of work.
type Repos struct {
	Orders   order.Repository
	Products product.Repository
	Coupons  coupon.Repository
}

// Runner executes fn atomically: either every write made through the given
// Repos is committed or none is.
type Runner interface {
	Do(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
}

type postgresRunner struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Runner {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRunner{pool: pool, logger: logger}
}

func (r *postgresRunner) Do(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		// no-op after a successful commit
		_ = tx.Rollback(ctx)
	}()

	repos := Repos{
		Orders:   order.NewPostgres(tx, r.logger),
		Products: product.NewPostgres(tx, r.logger),
		Coupons:  coupon.NewPostgres(tx, r.logger),
	}
	if err := fn(ctx, repos); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
