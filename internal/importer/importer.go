package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"marketplace-core/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// CSVImporter reads catalog CSV files and inserts or updates the products of
// one store, keyed by SKU.
//
// A row with a sku starts a product. Following rows with an empty sku and a
// variant.sku add variants to it.
type CSVImporter struct {
	reader   *csv.Reader
	products ProductWriter
	storeID  string
	currency string
}

func NewCSVImporter(r io.Reader, repo ProductWriter, storeID, currency string) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	return &CSVImporter{
		reader:   csvr,
		products: repo,
		storeID:  storeID,
		currency: currency,
	}
}

// Run parses CSV rows and upserts products. It stops at the first invalid
// row; products saved before it stay saved.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	if _, ok := index["sku"]; !ok {
		return 0, errors.New("read headers: sku column missing")
	}

	var (
		current  *domain.Product
		imported int
		line     = 1
	)

	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return imported, fmt.Errorf("read row %d: %w", line, err)
		}
		r := row{record: record, index: index}

		if r.get("sku") != "" {
			if current != nil {
				if err := i.save(ctx, current); err != nil {
					return imported, err
				}
				imported++
			}
			if current, err = i.parseProduct(r); err != nil {
				return imported, fmt.Errorf("row %d: %w", line, err)
			}
			continue
		}

		if r.get("variant.sku") == "" {
			continue
		}
		if current == nil {
			return imported, fmt.Errorf("row %d: variant without a product row", line)
		}
		v, err := parseVariant(r, current.PriceCents)
		if err != nil {
			return imported, fmt.Errorf("row %d: %w", line, err)
		}
		current.Variants = append(current.Variants, v)
	}

	if current != nil {
		if err := i.save(ctx, current); err != nil {
			return imported, err
		}
		imported++
	}

	return imported, nil
}

func (i *CSVImporter) save(ctx context.Context, p *domain.Product) error {
	if _, err := i.products.Upsert(ctx, *p); err != nil {
		return fmt.Errorf("upsert product %q: %w", p.SKU, err)
	}
	return nil
}

func (i *CSVImporter) parseProduct(r row) (*domain.Product, error) {
	p := &domain.Product{
		ID:          r.get("id"),
		StoreID:     i.storeID,
		SKU:         r.get("sku"),
		Name:        r.get("name"),
		Slug:        r.get("slug"),
		Description: r.get("description"),
		Image:       r.get("image"),
		Currency:    strings.ToUpper(r.get("currency")),
		IsActive:    true,
	}
	if p.Name == "" {
		return nil, domain.Validationf("product %q has no name", p.SKU)
	}
	if p.ID != "" {
		if _, err := uuid.Parse(p.ID); err != nil {
			return nil, domain.Validationf("invalid id for sku %q: %s", p.SKU, p.ID)
		}
	}
	if p.Currency == "" {
		p.Currency = i.currency
	}
	if p.Slug == "" {
		p.Slug = slugify(p.Name)
	}

	var err error
	if p.PriceCents, err = r.cents("price"); err != nil {
		return nil, err
	}
	if p.PriceCents <= 0 {
		return nil, domain.Validationf("product %q needs a positive price", p.SKU)
	}
	if raw := r.get("compare_price"); raw != "" {
		compare, err := r.cents("compare_price")
		if err != nil {
			return nil, err
		}
		p.ComparePriceCents = &compare
	}
	if p.IsActive, err = r.boolOr("is_active", true); err != nil {
		return nil, err
	}
	if p.Inventory, err = parseInventory(r, ""); err != nil {
		return nil, err
	}
	return p, nil
}

func parseVariant(r row, basePrice int64) (domain.ProductVariant, error) {
	v := domain.ProductVariant{
		ID:   r.get("variant.id"),
		Name: r.get("variant.name"),
		SKU:  r.get("variant.sku"),
	}
	if v.ID == "" {
		v.ID = strings.ToLower(v.SKU)
	}
	if v.Name == "" {
		v.Name = v.SKU
	}
	var err error
	if v.PriceCents, err = r.cents("variant.price"); err != nil {
		return v, err
	}
	if v.PriceCents == 0 {
		v.PriceCents = basePrice
	}
	if v.Inventory, err = parseInventory(r, "variant."); err != nil {
		return v, err
	}
	return v, nil
}

// parseInventory reads the stock columns. A quantity column turns tracking on
// unless track_quantity says otherwise.
func parseInventory(r row, prefix string) (domain.Inventory, error) {
	var (
		inv domain.Inventory
		err error
	)
	if inv.Quantity, err = r.atoi(prefix + "quantity"); err != nil {
		return inv, err
	}
	if inv.Quantity < 0 {
		return inv, domain.Validationf("%squantity must not be negative", prefix)
	}
	if inv.LowStockThreshold, err = r.atoi(prefix + "low_stock_threshold"); err != nil {
		return inv, err
	}
	if inv.TrackQuantity, err = r.boolOr(prefix+"track_quantity", r.get(prefix+"quantity") != ""); err != nil {
		return inv, err
	}
	if inv.AllowBackorder, err = r.boolOr(prefix+"allow_backorder", false); err != nil {
		return inv, err
	}
	return inv, nil
}

type row struct {
	record []string
	index  map[string]int
}

func (r row) get(key string) string {
	pos, ok := r.index[key]
	if !ok || pos >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[pos])
}

func (r row) atoi(key string) (int, error) {
	raw := r.get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Validationf("%s: %q is not an integer", key, raw)
	}
	return n, nil
}

func (r row) boolOr(key string, def bool) (bool, error) {
	raw := r.get(key)
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, domain.Validationf("%s: %q is not a boolean", key, raw)
	}
	return b, nil
}

// cents reads a price in major units ("12.99") and returns it in cents.
func (r row) cents(key string) (int64, error) {
	raw := r.get(key)
	if raw == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, domain.Validationf("%s: %q is not a number", key, raw)
	}
	if d.IsNegative() {
		return 0, domain.Validationf("%s must not be negative", key)
	}
	return d.Shift(2).Round(0).IntPart(), nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func slugify(name string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			dash = false
		case sb.Len() > 0 && !dash:
			sb.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(sb.String(), "-")
}
