package product

import (
	"context"
	"errors"
	"testing"

	"marketplace-core/internal/db/dbtest"
	"marketplace-core/internal/domain"
)

func TestPostgres_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(ctx, t)
	storeID := dbtest.InsertStore(ctx, t, pool, "store-1")

	repo := NewPostgres(pool, nil)
	p, err := repo.Upsert(ctx, domain.Product{
		StoreID:    storeID,
		SKU:        "SKU1",
		Name:       "Prod 1",
		PriceCents: 100,
		Currency:   "USD",
		Inventory:  domain.Inventory{TrackQuantity: true, Quantity: 10, LowStockThreshold: 3},
		Variants: []domain.ProductVariant{
			{ID: "v1", Name: "Red", SKU: "SKU1-R", PriceCents: 120, Inventory: domain.Inventory{TrackQuantity: true, Quantity: 2}},
		},
		IsActive: true,
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if p.ID == "" || p.Version != 1 {
		t.Fatalf("unexpected product %+v", p)
	}

	got, err := repo.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Inventory.Quantity != 10 || len(got.Variants) != 1 || got.Variants[0].Inventory.Quantity != 2 {
		t.Fatalf("unexpected product %+v", got)
	}

	again, err := repo.Upsert(ctx, domain.Product{StoreID: storeID, SKU: "SKU1", Name: "Prod 1 updated", PriceCents: 200, Currency: "USD"})
	if err != nil {
		t.Fatalf("Upsert update: %v", err)
	}
	if again.ID != p.ID || again.Version != 2 {
		t.Fatalf("expected same id and bumped version, got %+v", again)
	}
}

func TestPostgres_SaveChecksVersion(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(ctx, t)
	storeID := dbtest.InsertStore(ctx, t, pool, "store-1")

	repo := NewPostgres(pool, nil)
	p, err := repo.Upsert(ctx, domain.Product{
		StoreID: storeID, SKU: "SKU1", Name: "Prod", PriceCents: 100, Currency: "USD",
		Inventory: domain.Inventory{TrackQuantity: true, Quantity: 10},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	p.Inventory.Quantity = 7
	if err := repo.Save(ctx, p, p.Version); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if p.Version != 2 {
		t.Fatalf("expected version 2, got %d", p.Version)
	}
	if err := repo.Save(ctx, p, 1); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
	if err := repo.Save(ctx, &domain.Product{ID: "not-a-uuid"}, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	list, err := repo.List(ctx, Filter{StoreIDs: []string{storeID}})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Inventory.Quantity != 7 {
		t.Fatalf("unexpected list %+v", list)
	}
}
