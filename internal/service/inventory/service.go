package inventory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"

	"marketplace-core/internal/domain"
	"marketplace-core/internal/metrics"
	"marketplace-core/internal/repository/uow"
)

const defaultMaxAttempts = 3

// productStore is the slice of product.Repository the service writes through.
type productStore interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	Save(ctx context.Context, p *domain.Product, expectedVersion int) error
}

type authorizer interface {
	CanAdjustInventory(actor domain.Actor, p domain.Product) bool
}

// Line is one quantity of a product or variant, as found on an order item.
type Line struct {
	ProductID string
	VariantID string
	Quantity  int
}

// Batch is the outcome of ApplyLines. Crossed holds the levels that moved into
// low stock with this batch.
type Batch struct {
	Levels  []domain.StockLevel
	Crossed []domain.StockLevel
}

type Service struct {
	runner      uow.Runner
	authz       authorizer
	metrics     *metrics.Metrics
	logger      *log.Logger
	maxAttempts int
}

func New(runner uow.Runner, authz authorizer, m *metrics.Metrics, logger *log.Logger, maxAttempts int) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Service{runner: runner, authz: authz, metrics: m, logger: logger, maxAttempts: maxAttempts}
}

// Adjust changes the stock of a product, or of one of its variants when
// variantID is set, by delta.
func (s *Service) Adjust(ctx context.Context, productID, variantID string, delta int) (domain.StockLevel, error) {
	return s.adjust(ctx, nil, productID, variantID, delta)
}

// AdjustAs is Adjust on behalf of actor, checked before anything is written.
func (s *Service) AdjustAs(ctx context.Context, actor domain.Actor, productID, variantID string, delta int) (domain.StockLevel, error) {
	return s.adjust(ctx, &actor, productID, variantID, delta)
}

func (s *Service) adjust(ctx context.Context, actor *domain.Actor, productID, variantID string, delta int) (domain.StockLevel, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		var (
			level   domain.StockLevel
			crossed bool
		)
		err := s.runner.Do(ctx, func(ctx context.Context, r uow.Repos) error {
			p, err := r.Products.GetByID(ctx, productID)
			if err != nil {
				return err
			}
			if actor != nil && (s.authz == nil || !s.authz.CanAdjustInventory(*actor, *p)) {
				return domain.ErrUnauthorized
			}
			expected := p.Version
			var changed bool
			level, crossed, changed, err = ApplyDelta(p, variantID, delta)
			if err != nil || !changed {
				return err
			}
			return r.Products.Save(ctx, p, expected)
		})
		switch {
		case err == nil:
			s.metrics.InventoryAdjusted("ok")
			if crossed {
				s.reportCrossing(level)
			}
			return level, nil
		case errors.Is(err, domain.ErrVersionConflict):
			s.logger.Printf("inventory: adjust product=%s attempt=%d version conflict", productID, attempt)
			continue
		default:
			s.metrics.InventoryAdjusted(resultLabel(err))
			return domain.StockLevel{}, err
		}
	}
	s.metrics.InventoryAdjusted("conflict")
	return domain.StockLevel{}, fmt.Errorf("adjust product %s: %w", productID, domain.ErrConcurrentModification)
}

// ApplyLines applies sign*quantity of every line through products. All
// resulting levels are validated before the first write, so a failing line
// leaves every product untouched. Lines are grouped per product and each
// product is saved once with its read version; a concurrent write surfaces as
// domain.ErrVersionConflict for the caller's unit of work to retry.
func (s *Service) ApplyLines(ctx context.Context, products productStore, lines []Line, sign int) (Batch, error) {
	if sign != 1 && sign != -1 {
		return Batch{}, domain.Validationf("sign must be 1 or -1, got %d", sign)
	}
	grouped := map[string][]Line{}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return Batch{}, domain.Validationf("quantity of product %s must be positive", l.ProductID)
		}
		grouped[l.ProductID] = append(grouped[l.ProductID], l)
	}
	ids := make([]string, 0, len(grouped))
	for id := range grouped {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	type pending struct {
		p        *domain.Product
		expected int
	}
	var (
		batch  Batch
		writes []pending
	)
	for _, id := range ids {
		p, err := products.GetByID(ctx, id)
		if err != nil {
			return Batch{}, fmt.Errorf("load product %s: %w", id, err)
		}
		expected := p.Version
		dirty := false
		for _, l := range grouped[id] {
			level, crossed, changed, err := ApplyDelta(p, l.VariantID, sign*l.Quantity)
			if err != nil {
				return Batch{}, err
			}
			batch.Levels = append(batch.Levels, level)
			if crossed {
				batch.Crossed = append(batch.Crossed, level)
			}
			dirty = dirty || changed
		}
		if dirty {
			writes = append(writes, pending{p: p, expected: expected})
		}
	}

	for _, w := range writes {
		if err := products.Save(ctx, w.p, w.expected); err != nil {
			return Batch{}, err
		}
	}
	return batch, nil
}

// Observe records a committed batch in logs and metrics.
func (s *Service) Observe(b Batch) {
	for range b.Levels {
		s.metrics.InventoryAdjusted("ok")
	}
	for _, level := range b.Crossed {
		s.reportCrossing(level)
	}
}

func (s *Service) reportCrossing(level domain.StockLevel) {
	s.metrics.LowStockCrossed()
	s.logger.Printf("inventory: low stock product=%s variant=%s quantity=%d", level.ProductID, level.VariantID, level.Quantity)
}

// ApplyDelta changes the inventory of p (or of its variant) in place.
// Untracked inventory is a successful no-op. A tracked level may only go
// negative when backorders are allowed. changed reports whether p was
// modified; crossed whether the level moved into low stock.
func ApplyDelta(p *domain.Product, variantID string, delta int) (level domain.StockLevel, crossed, changed bool, err error) {
	inv := &p.Inventory
	if variantID != "" {
		v, ok := p.Variant(variantID)
		if !ok {
			return domain.StockLevel{}, false, false, fmt.Errorf("variant %s of product %s: %w", variantID, p.ID, domain.ErrNotFound)
		}
		inv = &v.Inventory
	}
	level = domain.StockLevel{ProductID: p.ID, VariantID: variantID, Tracked: inv.TrackQuantity, Quantity: inv.Quantity}
	if !inv.TrackQuantity || delta == 0 {
		level.LowStock = inv.IsLow()
		return level, false, false, nil
	}

	next := inv.Quantity + delta
	if next < 0 && !inv.AllowBackorder {
		return domain.StockLevel{}, false, false, &domain.InsufficientStockError{
			ProductID: p.ID,
			VariantID: variantID,
			Delta:     delta,
			Available: inv.Quantity,
		}
	}
	wasLow := inv.IsLow()
	inv.Quantity = next
	level.Quantity = next
	level.LowStock = inv.IsLow()
	return level, !wasLow && level.LowStock, true, nil
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	}
	return "error"
}
