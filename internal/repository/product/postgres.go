package product

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"marketplace-core/internal/db"
	"marketplace-core/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type postgresRepo struct {
	q      db.Querier
	logger *log.Logger
}

func NewPostgres(q db.Querier, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{q: q, logger: logger}
}

const selectColumns = `
SELECT id::text, store_id::text, sku, name, slug, COALESCE(description, ''), image, price_cents, compare_price_cents,
       currency, track_quantity, quantity, low_stock_threshold, allow_backorder, variants, is_active, version,
       created_at, updated_at
FROM products
`

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	p, err := scanProduct(r.q.QueryRow(ctx, selectColumns+`WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Printf("product repo: get id=%s not found", id)
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("product repo: get id=%s error=%v", id, err)
		return nil, err
	}
	return p, nil
}

func (r *postgresRepo) List(ctx context.Context, f Filter) ([]domain.Product, error) {
	var (
		where []string
		args  []any
	)
	if len(f.StoreIDs) > 0 {
		args = append(args, f.StoreIDs)
		where = append(where, fmt.Sprintf("store_id::text = ANY($%d)", len(args)))
	}
	if len(f.IDs) > 0 {
		args = append(args, f.IDs)
		where = append(where, fmt.Sprintf("id::text = ANY($%d)", len(args)))
	}
	if f.ActiveOnly {
		where = append(where, "is_active")
	}

	var sb strings.Builder
	sb.WriteString(selectColumns)
	if len(where) > 0 {
		sb.WriteString("WHERE " + strings.Join(where, " AND ") + "\n")
	}
	sb.WriteString("ORDER BY id ASC\n")
	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&sb, "LIMIT $%d\n", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		fmt.Fprintf(&sb, "OFFSET $%d\n", len(args))
	}

	rows, err := r.q.Query(ctx, sb.String(), args...)
	if err != nil {
		r.logger.Printf("product repo: list error=%v", err)
		return nil, err
	}
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	r.logger.Printf("product repo: list count=%d", len(result))
	return result, nil
}

func (r *postgresRepo) Save(ctx context.Context, p *domain.Product, expectedVersion int) error {
	const q = `
UPDATE products
SET name = $3,
    slug = $4,
    description = NULLIF($5, ''),
    image = $6,
    price_cents = $7,
    compare_price_cents = $8,
    track_quantity = $9,
    quantity = $10,
    low_stock_threshold = $11,
    allow_backorder = $12,
    variants = $13,
    is_active = $14,
    updated_at = now(),
    version = version + 1
WHERE id = $1 AND version = $2
RETURNING updated_at
`
	if _, err := uuid.Parse(p.ID); err != nil {
		return domain.ErrNotFound
	}
	variants, err := encodeVariants(p.Variants)
	if err != nil {
		return err
	}
	inv := p.Inventory
	err = r.q.QueryRow(ctx, q, p.ID, expectedVersion,
		p.Name, p.Slug, p.Description, p.Image, p.PriceCents, p.ComparePriceCents,
		inv.TrackQuantity, inv.Quantity, inv.LowStockThreshold, inv.AllowBackorder,
		variants, p.IsActive,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			r.logger.Printf("product repo: save id=%s error=%v", p.ID, err)
			return err
		}
		var exists bool
		if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, p.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrNotFound
		}
		r.logger.Printf("product repo: save id=%s version conflict expected=%d", p.ID, expectedVersion)
		return domain.ErrVersionConflict
	}
	p.Version = expectedVersion + 1
	return nil
}

func (r *postgresRepo) Upsert(ctx context.Context, p domain.Product) (*domain.Product, error) {
	const q = `
INSERT INTO products (id, store_id, sku, name, slug, description, image, price_cents, compare_price_cents, currency,
                      track_quantity, quantity, low_stock_threshold, allow_backorder, variants, is_active)
VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10,
        $11, $12, $13, $14, $15, $16)
ON CONFLICT (sku) DO UPDATE SET
    name = EXCLUDED.name,
    slug = EXCLUDED.slug,
    description = EXCLUDED.description,
    image = EXCLUDED.image,
    price_cents = EXCLUDED.price_cents,
    compare_price_cents = EXCLUDED.compare_price_cents,
    currency = EXCLUDED.currency,
    track_quantity = EXCLUDED.track_quantity,
    quantity = EXCLUDED.quantity,
    low_stock_threshold = EXCLUDED.low_stock_threshold,
    allow_backorder = EXCLUDED.allow_backorder,
    variants = EXCLUDED.variants,
    is_active = EXCLUDED.is_active,
    updated_at = now(),
    version = products.version + 1
RETURNING id::text, version, created_at, updated_at
`
	variants, err := encodeVariants(p.Variants)
	if err != nil {
		return nil, err
	}
	inv := p.Inventory
	res := p.Clone()
	err = r.q.QueryRow(ctx, q,
		p.ID, p.StoreID, p.SKU, p.Name, p.Slug, p.Description, p.Image, p.PriceCents, p.ComparePriceCents, p.Currency,
		inv.TrackQuantity, inv.Quantity, inv.LowStockThreshold, inv.AllowBackorder, variants, p.IsActive,
	).Scan(&res.ID, &res.Version, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		r.logger.Printf("product repo: upsert sku=%s store_id=%s error=%v", p.SKU, p.StoreID, err)
		return nil, err
	}
	if p.ID != "" && res.ID != p.ID {
		return nil, fmt.Errorf("product repo: id mismatch for sku=%s existing_id=%s import_id=%s", p.SKU, res.ID, p.ID)
	}
	r.logger.Printf("product repo: upserted sku=%s store_id=%s id=%s", res.SKU, res.StoreID, res.ID)
	return &res, nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var (
		p        domain.Product
		variants []byte
	)
	err := row.Scan(
		&p.ID, &p.StoreID, &p.SKU, &p.Name, &p.Slug, &p.Description, &p.Image, &p.PriceCents, &p.ComparePriceCents,
		&p.Currency, &p.Inventory.TrackQuantity, &p.Inventory.Quantity, &p.Inventory.LowStockThreshold,
		&p.Inventory.AllowBackorder, &variants, &p.IsActive, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(variants) > 0 {
		if err := json.Unmarshal(variants, &p.Variants); err != nil {
			return nil, fmt.Errorf("decode variants of product %s: %w", p.ID, err)
		}
	}
	if len(p.Variants) == 0 {
		p.Variants = nil
	}
	return &p, nil
}

func encodeVariants(v []domain.ProductVariant) ([]byte, error) {
	if v == nil {
		v = []domain.ProductVariant{}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode variants: %w", err)
	}
	return data, nil
}
