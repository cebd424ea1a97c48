package coupon

import (
	"context"
	"errors"
	"testing"

	"marketplace-core/internal/db/dbtest"
	"marketplace-core/internal/domain"
)

func TestPostgres_UpsertGetSave(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(ctx, t)
	storeID := dbtest.InsertStore(ctx, t, pool, "store-1")
	repo := NewPostgres(pool, nil)

	limit := 1
	c, err := repo.Upsert(ctx, domain.Coupon{
		StoreID:    storeID,
		Code:       "save10",
		Name:       "Save 10",
		Type:       domain.CouponTypePercentage,
		Value:      10,
		UsageLimit: &limit,
		IsActive:   true,
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if c.Code != "SAVE10" {
		t.Fatalf("expected normalized code, got %q", c.Code)
	}

	got, err := repo.GetByCode(ctx, "Save10")
	if err != nil {
		t.Fatalf("GetByCode: %v", err)
	}
	if got.ID != c.ID || got.UsageLimit == nil || *got.UsageLimit != 1 || !got.ExpiresAt.IsZero() {
		t.Fatalf("unexpected coupon %+v", got)
	}

	got.UsedCount = 1
	if err := repo.Save(ctx, got, got.Version); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := repo.Save(ctx, got, 1); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
	if _, err := repo.GetByCode(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
