package coupon

import (
	"context"

	"marketplace-core/internal/domain"
)

type Repository interface {
	// GetByCode matches codes case-insensitively.
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)
	Save(ctx context.Context, c *domain.Coupon, expectedVersion int) error
	Upsert(ctx context.Context, c domain.Coupon) (*domain.Coupon, error)
}
