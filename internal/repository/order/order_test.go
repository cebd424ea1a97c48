package order

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"marketplace-core/internal/db/dbtest"
	"marketplace-core/internal/domain"
)

func newOrder(storeID, number string) *domain.Order {
	return &domain.Order{
		OrderNumber:   number,
		CustomerID:    "cust-1",
		StoreID:       storeID,
		Items:         []domain.OrderItem{{ProductID: "p1", Name: "Widget", UnitPriceCents: 500, Quantity: 2, TotalCents: 1000}},
		SubtotalCents: 1000,
		TotalCents:    1000,
		Currency:      "USD",
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		PaymentMethod: domain.PaymentMethodCreditCard,
		ShippingAddress: domain.Address{
			Street: "1 Main St", City: "Springfield", Country: "US",
		},
	}
}

func TestPostgres_CreateGetSave(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(ctx, t)
	storeID := dbtest.InsertStore(ctx, t, pool, "store-1")
	repo := NewPostgres(pool, nil)

	o := newOrder(storeID, "ORD-AAAA1111")
	if err := repo.Create(ctx, o); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if o.ID == "" || o.Version != 1 {
		t.Fatalf("unexpected order %+v", o)
	}
	if err := repo.Create(ctx, newOrder(storeID, "ORD-AAAA1111")); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected duplicate number rejected, got %v", err)
	}

	got, err := repo.GetByID(ctx, o.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(got.Items) != 1 || got.Items[0].Quantity != 2 || got.ShippingAddress.City != "Springfield" {
		t.Fatalf("unexpected order %+v", got)
	}

	tracking := "TRK-1"
	got.Status = domain.OrderStatusConfirmed
	got.TrackingNumber = &tracking
	got.InventoryApplied = true
	got.UpdatedAt = time.Now().UTC()
	if err := repo.Save(ctx, got, 1); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := repo.Save(ctx, got, 1); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	reloaded, err := repo.GetByID(ctx, o.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if reloaded.Status != domain.OrderStatusConfirmed || !reloaded.InventoryApplied || reloaded.Version != 2 {
		t.Fatalf("unexpected reloaded order %+v", reloaded)
	}
	if reloaded.TrackingNumber == nil || *reloaded.TrackingNumber != "TRK-1" {
		t.Fatalf("expected tracking number persisted, got %v", reloaded.TrackingNumber)
	}
}

func TestPostgres_GetUnknownID(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(ctx, t)
	repo := NewPostgres(pool, nil)

	if _, err := repo.GetByID(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for malformed id, got %v", err)
	}
	if _, err := repo.GetByID(ctx, "7f1c1d36-2a43-4c9e-9d3f-000000000000"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPostgres_ListFilters(t *testing.T) {
	ctx := context.Background()
	pool := dbtest.Pool(ctx, t)
	s1 := dbtest.InsertStore(ctx, t, pool, "store-1")
	s2 := dbtest.InsertStore(ctx, t, pool, "store-2")
	repo := NewPostgres(pool, nil)

	for i, sid := range []string{s1, s1, s2} {
		o := newOrder(sid, fmt.Sprintf("ORD-LIST%04d", i))
		if err := repo.Create(ctx, o); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	list, err := repo.List(ctx, Filter{StoreIDs: []string{s1}})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 orders for store 1, got %d", len(list))
	}

	list, err = repo.List(ctx, Filter{Statuses: []domain.OrderStatus{domain.OrderStatusDelivered}})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected no delivered orders, got %d", len(list))
	}

	future := time.Now().Add(time.Hour)
	list, err = repo.List(ctx, Filter{CreatedFrom: &future})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected window to exclude all orders, got %d", len(list))
	}
}
