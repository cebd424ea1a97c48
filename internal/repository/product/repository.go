package product

import (
	"context"

	"marketplace-core/internal/domain"
)

type Filter struct {
	StoreIDs   []string
	IDs        []string
	ActiveOnly bool
	Limit      int
	Offset     int
}

type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	List(ctx context.Context, f Filter) ([]domain.Product, error)
	// Save is a conditional write on expectedVersion, see order.Repository.Save.
	Save(ctx context.Context, p *domain.Product, expectedVersion int) error
	// Upsert inserts or replaces a product keyed by SKU (catalog imports, seeding).
	Upsert(ctx context.Context, p domain.Product) (*domain.Product, error)
}
