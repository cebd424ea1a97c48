package order

import (
	"context"
	"time"

	"marketplace-core/internal/domain"
)

// Filter narrows List results. Zero values mean "no constraint";
// CreatedFrom/CreatedTo form a half-open [from, to) window.
type Filter struct {
	StoreIDs    []string
	CustomerID  string
	Statuses    []domain.OrderStatus
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	// Create inserts a new order, filling ID, Version and timestamps.
	Create(ctx context.Context, o *domain.Order) error
	// Save is a conditional write: it fails with domain.ErrVersionConflict
	// unless the stored version equals expectedVersion. On success o.Version
	// is advanced.
	Save(ctx context.Context, o *domain.Order, expectedVersion int) error
	List(ctx context.Context, f Filter) ([]domain.Order, error)
}
