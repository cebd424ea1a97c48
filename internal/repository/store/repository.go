package store

import (
	"context"

	"marketplace-core/internal/domain"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Store, error)
	// Upsert inserts or updates a store keyed by slug.
	Upsert(ctx context.Context, s domain.Store) (*domain.Store, error)
}
