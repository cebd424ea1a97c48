package analytics

import (
	"context"
	"io"
	"log"
	"time"

	"marketplace-core/internal/domain"
	orderrepo "marketplace-core/internal/repository/order"
	productrepo "marketplace-core/internal/repository/product"
)

const defaultWindow = 30 * 24 * time.Hour

type orderLister interface {
	List(ctx context.Context, f orderrepo.Filter) ([]domain.Order, error)
}

type productLister interface {
	List(ctx context.Context, f productrepo.Filter) ([]domain.Product, error)
}

type authorizer interface {
	CanViewAnalytics(actor domain.Actor, storeID string) bool
}

type Service struct {
	orders   orderLister
	products productLister
	authz    authorizer
	logger   *log.Logger
	now      func() time.Time
}

func New(orders orderLister, products productLister, authz authorizer, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{
		orders:   orders,
		products: products,
		authz:    authz,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Query selects a store (empty for the whole platform), the window and how
// many top-selling products to keep (0 keeps all).
type Query struct {
	StoreID string
	From    time.Time
	To      time.Time
	Top     int
}

// Summary reads a snapshot of the store's orders and products and summarizes
// it. A zero window means the last 30 days.
func (s *Service) Summary(ctx context.Context, actor domain.Actor, q Query) (Summary, error) {
	if !s.authz.CanViewAnalytics(actor, q.StoreID) {
		return Summary{}, domain.ErrUnauthorized
	}
	if q.To.IsZero() {
		q.To = s.now()
	}
	if q.From.IsZero() {
		q.From = q.To.Add(-defaultWindow)
	}
	if !q.From.Before(q.To) {
		return Summary{}, domain.Validationf("from must be before to")
	}
	if q.Top < 0 {
		return Summary{}, domain.Validationf("top must not be negative")
	}

	var stores []string
	if q.StoreID != "" {
		stores = []string{q.StoreID}
	}
	to := q.To
	orders, err := s.orders.List(ctx, orderrepo.Filter{StoreIDs: stores, CreatedTo: &to})
	if err != nil {
		return Summary{}, err
	}
	products, err := s.products.List(ctx, productrepo.Filter{StoreIDs: stores})
	if err != nil {
		return Summary{}, err
	}

	sum := Summarize(orders, products, Period{From: q.From, To: q.To})
	if q.Top > 0 && len(sum.Products.TopSelling) > q.Top {
		sum.Products.TopSelling = sum.Products.TopSelling[:q.Top]
	}
	s.logger.Printf("analytics: store_id=%q from=%s to=%s orders=%d products=%d",
		q.StoreID, q.From.Format(time.RFC3339), q.To.Format(time.RFC3339), len(orders), len(products))
	return sum, nil
}
