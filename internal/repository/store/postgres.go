package store

import (
	"context"
	"errors"
	"io"
	"log"

	"marketplace-core/internal/db"
	"marketplace-core/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type postgresRepo struct {
	q      db.Querier
	logger *log.Logger
}

func NewPostgres(q db.Querier, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{q: q, logger: logger}
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Store, error) {
	const q = `
SELECT id::text, owner_id, name, slug, category, currency, is_active, created_at
FROM stores
WHERE id = $1
`
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	var s domain.Store
	err := r.q.QueryRow(ctx, q, id).Scan(&s.ID, &s.OwnerID, &s.Name, &s.Slug, &s.Category, &s.Currency, &s.IsActive, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("store repo: get id=%s error=%v", id, err)
		return nil, err
	}
	return &s, nil
}

func (r *postgresRepo) Upsert(ctx context.Context, s domain.Store) (*domain.Store, error) {
	const q = `
INSERT INTO stores (owner_id, name, slug, category, currency, is_active)
VALUES ($1, $2, $3, COALESCE(NULLIF($4, ''), 'other'), $5, $6)
ON CONFLICT (slug) DO UPDATE SET
    owner_id = EXCLUDED.owner_id,
    name = EXCLUDED.name,
    category = EXCLUDED.category,
    currency = EXCLUDED.currency,
    is_active = EXCLUDED.is_active
RETURNING id::text, category, created_at
`
	res := s
	err := r.q.QueryRow(ctx, q, s.OwnerID, s.Name, s.Slug, s.Category, s.Currency, s.IsActive).
		Scan(&res.ID, &res.Category, &res.CreatedAt)
	if err != nil {
		r.logger.Printf("store repo: upsert slug=%s error=%v", s.Slug, err)
		return nil, err
	}
	r.logger.Printf("store repo: upserted slug=%s id=%s", res.Slug, res.ID)
	return &res, nil
}
