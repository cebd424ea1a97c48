package importer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"marketplace-core/internal/domain"
	"marketplace-core/internal/repository/memory"
	productrepo "marketplace-core/internal/repository/product"
)

type stubProductRepo struct {
	items []domain.Product
}

func (s *stubProductRepo) Upsert(_ context.Context, p domain.Product) (*domain.Product, error) {
	s.items = append(s.items, p)
	return &p, nil
}

func TestCSVImporter_Run(t *testing.T) {
	csvData := `id,sku,name,description,price,compare_price,currency,image,quantity,low_stock_threshold,variant.sku,variant.name,variant.price,variant.quantity,variant.low_stock_threshold
00000000-0000-0000-0000-000000000001,TEE,Basic Tee,Cotton tee,19.99,24.50,eur,https://example.com/tee.jpg,,,,,,,
,,,,,,,,,,TEE-S,Small,,4,2
,,,,,,,,,,TEE-L,Large,21,10,2
,MUG,Coffee Mug!,,12,,,,7,3,,,,,`

	repo := &stubProductRepo{}
	imp := NewCSVImporter(strings.NewReader(csvData), repo, "store-1", "USD")

	count, err := imp.Run(context.Background())
	if err != nil {
		t.Fatalf("import run: %v", err)
	}
	if count != 2 || len(repo.items) != 2 {
		t.Fatalf("expected 2 products imported, got count=%d saved=%d", count, len(repo.items))
	}

	tee := repo.items[0]
	if tee.ID != "00000000-0000-0000-0000-000000000001" || tee.StoreID != "store-1" || tee.Currency != "EUR" {
		t.Fatalf("unexpected product data: %+v", tee)
	}
	if tee.PriceCents != 1999 || tee.ComparePriceCents == nil || *tee.ComparePriceCents != 2450 {
		t.Fatalf("unexpected prices: %d %v", tee.PriceCents, tee.ComparePriceCents)
	}
	if tee.Inventory.TrackQuantity {
		t.Fatalf("product without quantity must not track stock")
	}
	if len(tee.Variants) != 2 {
		t.Fatalf("expected 2 variants, got %d", len(tee.Variants))
	}
	small, large := tee.Variants[0], tee.Variants[1]
	if small.ID != "tee-s" || small.PriceCents != 1999 || !small.Inventory.TrackQuantity || small.Inventory.Quantity != 4 {
		t.Fatalf("unexpected small variant: %+v", small)
	}
	if large.PriceCents != 2100 || large.Inventory.Quantity != 10 || large.Inventory.LowStockThreshold != 2 {
		t.Fatalf("unexpected large variant: %+v", large)
	}

	mug := repo.items[1]
	if mug.Slug != "coffee-mug" || mug.Currency != "USD" || mug.PriceCents != 1200 {
		t.Fatalf("unexpected mug: %+v", mug)
	}
	if !mug.Inventory.TrackQuantity || mug.Inventory.Quantity != 7 || mug.Inventory.LowStockThreshold != 3 {
		t.Fatalf("unexpected mug inventory: %+v", mug.Inventory)
	}
}

func TestCSVImporter_RejectsInvalidRows(t *testing.T) {
	cases := map[string]string{
		"missing price":     "sku,name,price\nA,Thing,\n",
		"bad quantity":      "sku,name,price,quantity\nA,Thing,1,lots\n",
		"negative quantity": "sku,name,price,quantity\nA,Thing,1,-2\n",
		"bad id":            "id,sku,name,price\nnope,A,Thing,1\n",
		"orphan variant":    "sku,name,price,variant.sku\n,,,A-1\n",
	}
	for name, data := range cases {
		repo := &stubProductRepo{}
		_, err := NewCSVImporter(strings.NewReader(data), repo, "store-1", "USD").Run(context.Background())
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if len(repo.items) != 0 {
			t.Fatalf("%s: nothing should be saved, got %d", name, len(repo.items))
		}
	}
}

func TestCSVImporter_MissingSKUColumn(t *testing.T) {
	_, err := NewCSVImporter(strings.NewReader("name,price\nA,1\n"), &stubProductRepo{}, "s", "USD").Run(context.Background())
	if err == nil {
		t.Fatalf("expected header error")
	}
}

func TestCSVImporter_ReimportUpdatesBySKU(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	first := "sku,name,price,quantity\nMUG,Mug,10,5\n"
	if _, err := NewCSVImporter(strings.NewReader(first), st.Products(), "store-1", "USD").Run(ctx); err != nil {
		t.Fatalf("first import: %v", err)
	}
	second := "sku,name,price,quantity\nMUG,Big Mug,11,8\n"
	if _, err := NewCSVImporter(strings.NewReader(second), st.Products(), "store-1", "USD").Run(ctx); err != nil {
		t.Fatalf("second import: %v", err)
	}

	list, err := st.Products().List(ctx, productrepo.Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 product after re-import, got %d", len(list))
	}
	if list[0].Name != "Big Mug" || list[0].Inventory.Quantity != 8 {
		t.Fatalf("unexpected product after re-import: %+v", list[0])
	}
}

func TestCSVImporter_StopsOnWriteError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewCSVImporter(strings.NewReader("sku,name,price\nA,Thing,1\n"), failingRepo{err: boom}, "s", "USD").Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped write error, got %v", err)
	}
}

type failingRepo struct{ err error }

func (f failingRepo) Upsert(context.Context, domain.Product) (*domain.Product, error) {
	return nil, f.err
}
