package seed

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"marketplace-core/internal/domain"
	couponrepo "marketplace-core/internal/repository/coupon"
	productrepo "marketplace-core/internal/repository/product"
	storerepo "marketplace-core/internal/repository/store"
)

// Repos are the writers the seed needs. Both the Postgres repositories and
// the in-memory store satisfy them.
type Repos struct {
	Stores   storerepo.Repository
	Products productrepo.Repository
	Coupons  couponrepo.Repository
}

// Result names what was seeded, for printing dev credentials.
type Result struct {
	StoreID    string
	OwnerID    string
	ProductIDs []string
	CouponCode string
}

const (
	demoOwnerID = "merchant-demo"
	demoCoupon  = "WELCOME10"
)

// Apply inserts a demo store with a small catalog and a welcome coupon. It is
// idempotent: stores, products and coupons are upserted by slug, SKU and code.
func Apply(ctx context.Context, r Repos, logger *log.Logger) (Result, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	store, err := r.Stores.Upsert(ctx, domain.Store{
		OwnerID:  demoOwnerID,
		Name:     "Demo Store",
		Slug:     "demo-store",
		Category: "home",
		Currency: "USD",
		IsActive: true,
	})
	if err != nil {
		return Result{}, fmt.Errorf("ensure store: %w", err)
	}
	res := Result{StoreID: store.ID, OwnerID: store.OwnerID, CouponCode: demoCoupon}

	for _, p := range demoProducts(store.ID) {
		saved, err := r.Products.Upsert(ctx, p)
		if err != nil {
			return Result{}, fmt.Errorf("upsert product %s: %w", p.SKU, err)
		}
		res.ProductIDs = append(res.ProductIDs, saved.ID)
	}

	limit := 100
	if _, err := r.Coupons.Upsert(ctx, domain.Coupon{
		StoreID:              store.ID,
		Code:                 demoCoupon,
		Name:                 "10% off your first order",
		Type:                 domain.CouponTypePercentage,
		Value:                10,
		MinimumAmountCents:   1000,
		MaximumDiscountCents: 2000,
		UsageLimit:           &limit,
		IsActive:             true,
		StartsAt:             time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		return Result{}, fmt.Errorf("upsert coupon: %w", err)
	}

	logger.Printf("seed: store=%s products=%d coupon=%s", store.ID, len(res.ProductIDs), demoCoupon)
	return res, nil
}

func demoProducts(storeID string) []domain.Product {
	return []domain.Product{
		{
			StoreID:     storeID,
			SKU:         "SKU-DEMO-TSHIRT",
			Name:        "Demo T-Shirt",
			Slug:        "demo-t-shirt",
			Description: "Soft cotton tee for demo purposes",
			PriceCents:  1999,
			Currency:    "USD",
			IsActive:    true,
			Variants: []domain.ProductVariant{
				{ID: "s", Name: "Small", SKU: "SKU-DEMO-TSHIRT-S", PriceCents: 1999, Inventory: domain.Inventory{TrackQuantity: true, Quantity: 12, LowStockThreshold: 3}},
				{ID: "m", Name: "Medium", SKU: "SKU-DEMO-TSHIRT-M", PriceCents: 1999, Inventory: domain.Inventory{TrackQuantity: true, Quantity: 4, LowStockThreshold: 3}},
				{ID: "l", Name: "Large", SKU: "SKU-DEMO-TSHIRT-L", PriceCents: 2199, Inventory: domain.Inventory{TrackQuantity: true, Quantity: 20, LowStockThreshold: 3}},
			},
		},
		{
			StoreID:     storeID,
			SKU:         "SKU-DEMO-MUG",
			Name:        "Demo Mug",
			Slug:        "demo-mug",
			Description: "Ceramic mug with demo logo",
			PriceCents:  1299,
			Currency:    "USD",
			IsActive:    true,
			Inventory:   domain.Inventory{TrackQuantity: true, Quantity: 40, LowStockThreshold: 5},
		},
		{
			StoreID:     storeID,
			SKU:         "SKU-DEMO-EBOOK",
			Name:        "Demo E-Book",
			Slug:        "demo-e-book",
			Description: "Digital download, no stock tracking",
			PriceCents:  499,
			Currency:    "USD",
			IsActive:    true,
		},
	}
}
