package coupon

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"time"

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

func (r *postgresRepo) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	const q = `
SELECT id::text, COALESCE(store_id::text, ''), code, name, type, value, minimum_amount_cents, maximum_discount_cents,
       usage_limit, used_count, is_active, starts_at, expires_at, version, created_at
FROM coupons
WHERE code = $1
`
	var (
		c         domain.Coupon
		typ       string
		expiresAt *time.Time
	)
	err := r.q.QueryRow(ctx, q, strings.ToUpper(strings.TrimSpace(code))).Scan(
		&c.ID, &c.StoreID, &c.Code, &c.Name, &typ, &c.Value, &c.MinimumAmountCents, &c.MaximumDiscountCents,
		&c.UsageLimit, &c.UsedCount, &c.IsActive, &c.StartsAt, &expiresAt, &c.Version, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("coupon repo: get code=%s error=%v", code, err)
		return nil, err
	}
	c.Type = domain.CouponType(typ)
	if expiresAt != nil {
		c.ExpiresAt = *expiresAt
	}
	return &c, nil
}

func (r *postgresRepo) Save(ctx context.Context, c *domain.Coupon, expectedVersion int) error {
	const q = `
UPDATE coupons
SET used_count = $3,
    is_active = $4,
    version = version + 1
WHERE id = $1 AND version = $2
`
	if _, err := uuid.Parse(c.ID); err != nil {
		return domain.ErrNotFound
	}
	tag, err := r.q.Exec(ctx, q, c.ID, expectedVersion, c.UsedCount, c.IsActive)
	if err != nil {
		r.logger.Printf("coupon repo: save code=%s error=%v", c.Code, err)
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM coupons WHERE id = $1)`, c.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrVersionConflict
	}
	c.Version = expectedVersion + 1
	return nil
}

func (r *postgresRepo) Upsert(ctx context.Context, c domain.Coupon) (*domain.Coupon, error) {
	const q = `
INSERT INTO coupons (store_id, code, name, type, value, minimum_amount_cents, maximum_discount_cents,
                     usage_limit, is_active, starts_at, expires_at)
VALUES (NULLIF($1, '')::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (code) DO UPDATE SET
    name = EXCLUDED.name,
    type = EXCLUDED.type,
    value = EXCLUDED.value,
    minimum_amount_cents = EXCLUDED.minimum_amount_cents,
    maximum_discount_cents = EXCLUDED.maximum_discount_cents,
    usage_limit = EXCLUDED.usage_limit,
    is_active = EXCLUDED.is_active,
    starts_at = EXCLUDED.starts_at,
    expires_at = EXCLUDED.expires_at,
    version = coupons.version + 1
RETURNING id::text, used_count, version, created_at
`
	var expiresAt *time.Time
	if !c.ExpiresAt.IsZero() {
		expiresAt = &c.ExpiresAt
	}
	if c.StartsAt.IsZero() {
		c.StartsAt = time.Now().UTC()
	}
	res := c
	res.Code = strings.ToUpper(strings.TrimSpace(c.Code))
	err := r.q.QueryRow(ctx, q, c.StoreID, res.Code, c.Name, string(c.Type), c.Value, c.MinimumAmountCents,
		c.MaximumDiscountCents, c.UsageLimit, c.IsActive, c.StartsAt, expiresAt,
	).Scan(&res.ID, &res.UsedCount, &res.Version, &res.CreatedAt)
	if err != nil {
		r.logger.Printf("coupon repo: upsert code=%s error=%v", res.Code, err)
		return nil, err
	}
	r.logger.Printf("coupon repo: upserted code=%s id=%s", res.Code, res.ID)
	return &res, nil
}
